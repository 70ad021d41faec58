// Package credentials loads store credentials from standard locations.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// ErrInsecurePermissions is returned when the credentials file is readable
// by group or others.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// ErrIncomplete is returned when a required field is missing.
var ErrIncomplete = fmt.Errorf("credentials incomplete")

// Credentials holds everything needed to reach the shared spreadsheet.
type Credentials struct {
	// Sheets configures the Google Sheets backend.
	Sheets SheetsCreds `toml:"sheets"`
}

// SheetsCreds is the [sheets] section of credentials.toml.
type SheetsCreds struct {
	// ServiceAccountFile is the path to the service account JSON key.
	ServiceAccountFile string `toml:"service_account_file"`

	// SpreadsheetID identifies the coordination spreadsheet.
	SpreadsheetID string `toml:"spreadsheet_id"`
}

// StandardPaths returns the credential file locations in priority order.
func StandardPaths() []string {
	paths := []string{"credentials.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "vodkit", "credentials.toml"),
			filepath.Join(home, ".vodkit", "credentials.toml"),
		)
	}
	return paths
}

// Load loads credentials from the first standard location that exists.
// A missing file is not an error; callers get nil credentials and an empty
// path and decide whether they can run without the store backend.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil
}

// LoadFile loads credentials from a specific file.
// Returns ErrInsecurePermissions unless the file is mode 0400 (Unix only).
func LoadFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		mode := info.Mode().Perm()
		if mode != 0400 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must be 0400)",
				ErrInsecurePermissions, path, mode)
		}
	}

	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Validate checks that the sheets section is usable. The service account
// path falls back to the GOOGLE_APPLICATION_CREDENTIALS environment
// variable when the section omits it.
func (c *Credentials) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: no credentials loaded", ErrIncomplete)
	}
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("%w: sheets.spreadsheet_id is required", ErrIncomplete)
	}
	if c.ServiceAccountFile() == "" {
		return fmt.Errorf("%w: sheets.service_account_file is required", ErrIncomplete)
	}
	return nil
}

// ServiceAccountFile returns the configured key path, falling back to the
// GOOGLE_APPLICATION_CREDENTIALS environment variable.
func (c *Credentials) ServiceAccountFile() string {
	if c != nil && c.Sheets.ServiceAccountFile != "" {
		return c.Sheets.ServiceAccountFile
	}
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
}
