package sources

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vodkit/vodkit/logging"
	"github.com/vodkit/vodkit/store"
)

// DefaultMetaColumns is the positional mapping for pipe-separated fields
// after the URL in a source list line.
var DefaultMetaColumns = []string{store.ColAccent, store.ColType}

// Importer appends new sources from a line-oriented list file.
//
// Each line is "URL|meta|meta..."; blank lines are skipped. The import is
// gated on the file's SHA-256: when the content hash matches the hash
// recorded by the previous run, the whole import is skipped without
// touching the store.
type Importer struct {
	st          store.RowStore
	path        string
	hashPath    string
	metaColumns []string
	logger      *logging.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithHashPath overrides where the last-imported content hash is recorded.
// Defaults to the list file path with a ".sha256" suffix.
func WithHashPath(path string) ImporterOption {
	return func(i *Importer) {
		if path != "" {
			i.hashPath = path
		}
	}
}

// WithMetaColumns overrides the positional column names for fields after
// the URL. Fields beyond the mapping are dropped with a warning.
func WithMetaColumns(cols ...string) ImporterOption {
	return func(i *Importer) {
		i.metaColumns = cols
	}
}

// WithImporterLogger sets the logger.
func WithImporterLogger(logger *logging.Logger) ImporterOption {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewImporter creates an importer reading from path.
func NewImporter(st store.RowStore, path string, opts ...ImporterOption) *Importer {
	imp := &Importer{
		st:          st,
		path:        path,
		hashPath:    path + ".sha256",
		metaColumns: DefaultMetaColumns,
		logger:      logging.New().WithComponent("import"),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Import appends sources for list lines whose URL is not already in the
// Sources table. A missing list file is created empty. Returns the number
// of sources appended; zero with a nil error means nothing new, including
// the unchanged-hash fast path.
func (i *Importer) Import(ctx context.Context) (int, error) {
	if err := i.ensureFile(); err != nil {
		return 0, err
	}

	hash, err := fileHash(i.path)
	if err != nil {
		return 0, fmt.Errorf("hash %s: %w", i.path, err)
	}
	if last := i.lastHash(); last == hash {
		i.logger.Debug("source list unchanged, skipping import", map[string]interface{}{
			"path": i.path,
		})
		return 0, nil
	}

	existing, err := i.existingURLs(ctx)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(i.path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", i.path, err)
	}
	defer f.Close()

	var (
		rows    []store.Row
		skipped int
		lineNum int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		row, ok := i.parseLine(line, lineNum)
		if !ok {
			continue
		}
		url := row.URL()
		if existing[url] {
			skipped++
			continue
		}
		existing[url] = true
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", i.path, err)
	}

	if len(rows) > 0 {
		if err := i.st.AppendRows(ctx, store.TableSources, rows); err != nil {
			return 0, fmt.Errorf("append %d sources: %w", len(rows), err)
		}
	}

	// Record the hash only after a fully successful pass so a failed
	// import is retried on the next cycle.
	if err := os.WriteFile(i.hashPath, []byte(hash), 0o644); err != nil {
		return len(rows), fmt.Errorf("record hash %s: %w", i.hashPath, err)
	}

	i.logger.Info("source import finished", map[string]interface{}{
		"path":    i.path,
		"added":   len(rows),
		"skipped": skipped,
	})
	return len(rows), nil
}

// parseLine turns one list line into a pending source row. Lines without a
// URL are skipped with a warning.
func (i *Importer) parseLine(line string, lineNum int) (store.Row, bool) {
	parts := strings.Split(line, "|")
	for idx := range parts {
		parts[idx] = strings.TrimSpace(parts[idx])
	}
	if parts[0] == "" {
		i.logger.Warn("skipping line without URL", map[string]interface{}{
			"path": i.path,
			"line": lineNum,
		})
		return nil, false
	}

	row := store.Row{
		store.ColURL:    parts[0],
		store.ColStatus: store.StatusPending.String(),
	}
	for idx, val := range parts[1:] {
		if idx >= len(i.metaColumns) {
			i.logger.Warn("dropping extra fields", map[string]interface{}{
				"path": i.path,
				"line": lineNum,
			})
			break
		}
		row[i.metaColumns[idx]] = val
	}
	return row, true
}

// ensureFile creates the list file, and its directory, when missing.
func (i *Importer) ensureFile() error {
	if _, err := os.Stat(i.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", i.path, err)
	}

	if dir := filepath.Dir(i.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	i.logger.Warn("source list missing, creating empty file", map[string]interface{}{
		"path": i.path,
	})
	f, err := os.OpenFile(i.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", i.path, err)
	}
	return f.Close()
}

// existingURLs reads the Sources table once and returns the set of URLs
// already present.
func (i *Importer) existingURLs(ctx context.Context) (map[string]bool, error) {
	rows, err := i.st.GetAll(ctx, store.TableSources)
	if err != nil {
		return nil, fmt.Errorf("read existing sources: %w", err)
	}
	urls := make(map[string]bool, len(rows))
	for _, r := range rows {
		if url := strings.TrimSpace(r.URL()); url != "" {
			urls[url] = true
		}
	}
	return urls, nil
}

// lastHash reads the recorded content hash from the previous run. Missing
// or unreadable hash files just force a full import.
func (i *Importer) lastHash() string {
	data, err := os.ReadFile(i.hashPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// fileHash returns the SHA-256 of the file's content as lowercase hex.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
