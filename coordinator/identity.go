package coordinator

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// Identity returns a worker identity of the form "hostname-1a2b3c4d".
// The random suffix keeps two workers on one machine distinguishable; the
// hostname keeps the Workers table readable for operators.
func Identity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return host + "-" + suffix
}
