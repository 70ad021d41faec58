package resolver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	coorderr "github.com/vodkit/vodkit/errors"
	"github.com/vodkit/vodkit/logging"
)

// DefaultBinary is the yt-dlp executable looked up on PATH when no
// explicit path is configured.
const DefaultBinary = "yt-dlp"

// maxStderr bounds how much subprocess stderr is retained for error
// reporting.
const maxStderr = 8 * 1024

// maxLine bounds a single JSON line from yt-dlp. Flat-playlist entries are
// small but channel metadata lines can run long.
const maxLine = 1024 * 1024

// YTDLP resolves source URLs by running yt-dlp in flat-playlist mode and
// parsing one JSON object per stdout line.
type YTDLP struct {
	binPath   string
	extraArgs []string
	logger    *logging.Logger
}

// YTDLPOption configures a YTDLP resolver.
type YTDLPOption func(*YTDLP)

// WithBinary sets the yt-dlp executable path.
func WithBinary(path string) YTDLPOption {
	return func(y *YTDLP) {
		if path != "" {
			y.binPath = path
		}
	}
}

// WithExtraArgs appends additional yt-dlp flags, placed before the URL.
func WithExtraArgs(args ...string) YTDLPOption {
	return func(y *YTDLP) {
		y.extraArgs = append(y.extraArgs, args...)
	}
}

// WithResolverLogger sets the logger used for per-entry diagnostics.
func WithResolverLogger(logger *logging.Logger) YTDLPOption {
	return func(y *YTDLP) {
		if logger != nil {
			y.logger = logger
		}
	}
}

// NewYTDLP creates a yt-dlp backed resolver.
func NewYTDLP(opts ...YTDLPOption) *YTDLP {
	y := &YTDLP{
		binPath: DefaultBinary,
		logger:  logging.New().WithComponent("resolver"),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Resolve starts a yt-dlp subprocess for the URL and returns a stream of
// its entries. Entries are parsed lazily as the subprocess emits them.
func (y *YTDLP) Resolve(ctx context.Context, url string) (Stream, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}

	args := []string{"--flat-playlist", "--skip-download", "-j"}
	args = append(args, y.extraArgs...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.binPath, args...)
	stderr := &tailBuffer{limit: maxStderr}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, coorderr.Resolution(fmt.Sprintf("open stdout pipe: %v", err), coorderr.WithCause(err))
	}
	if err := cmd.Start(); err != nil {
		return nil, coorderr.Resolution(fmt.Sprintf("start %s: %v", y.binPath, err), coorderr.WithCause(err))
	}

	y.logger.Debug("resolving source", map[string]interface{}{"url": url})

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	return &processStream{
		url:     url,
		scanner: scanner,
		stderr:  stderr,
		cmd:     cmd,
		logger:  y.logger,
	}, nil
}

// flatEntry is the subset of a yt-dlp flat-playlist JSON line we consume.
type flatEntry struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	WebpageURL string   `json:"webpage_url"`
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
}

// parseEntry decodes a single JSON line into an Entry. The watch URL falls
// back to webpage_url when the flat extractor omits url.
func parseEntry(line []byte) (*Entry, error) {
	var fe flatEntry
	if err := json.Unmarshal(line, &fe); err != nil {
		return nil, coorderr.Resolution(fmt.Sprintf("malformed entry line: %v", err), coorderr.WithCause(err))
	}
	url := fe.URL
	if url == "" {
		url = fe.WebpageURL
	}
	return &Entry{
		ID:       fe.ID,
		URL:      url,
		Title:    fe.Title,
		Duration: fe.Duration,
	}, nil
}

// processStream reads entries from a live yt-dlp subprocess.
type processStream struct {
	url     string
	scanner *bufio.Scanner
	stderr  *tailBuffer
	cmd     *exec.Cmd
	logger  *logging.Logger

	mu     sync.Mutex
	done   bool
	finErr error
}

// Next returns the next entry, io.EOF after the subprocess exits cleanly,
// or a terminal error carrying the stderr tail when it does not.
func (s *processStream) Next(ctx context.Context) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		if s.finErr != nil {
			return nil, s.finErr
		}
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseEntry([]byte(line))
		if err != nil {
			s.logger.Warn("skipping malformed entry", map[string]interface{}{"url": s.url})
			continue
		}
		return entry, nil
	}

	return nil, s.finish()
}

// finish reaps the subprocess and records the terminal state. Callers must
// hold the mutex.
func (s *processStream) finish() error {
	s.done = true
	if err := s.scanner.Err(); err != nil {
		s.finErr = coorderr.Resolution(fmt.Sprintf("read subprocess output: %v", err), coorderr.WithCause(err))
		_ = s.cmd.Wait()
		return s.finErr
	}
	if err := s.cmd.Wait(); err != nil {
		msg := fmt.Sprintf("yt-dlp failed for %s: %v", s.url, err)
		if tail := s.stderr.String(); tail != "" {
			msg += ": " + tail
		}
		s.finErr = coorderr.Resolution(msg, coorderr.WithCause(err))
		return s.finErr
	}
	return io.EOF
}

// Close terminates the subprocess if it is still running and releases the
// stream. Safe to call after the stream is drained.
func (s *processStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil
	}
	s.done = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
