package store

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Common errors.
var (
	// ErrTableNotFound indicates the named table does not exist in the store.
	ErrTableNotFound = errors.New("table not found")

	// ErrRowNotFound indicates no row with the requested ID exists.
	ErrRowNotFound = errors.New("row not found")

	// ErrNoPendingRows indicates the table has no row in pending status.
	ErrNoPendingRows = errors.New("no pending rows")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")
)

// Default table names, matching the shared spreadsheet layout.
const (
	TableSources        = "Sources"
	TableTasks          = "Video Tasks"
	TableDeadLetterTasks = "Dead-Letter Tasks"
	TableWorkers        = "Workers"
)

// Well-known column names. Tables may carry additional passthrough columns
// that the kit never interprets.
const (
	ColID         = "ID"
	ColSourceID   = "SourceID"
	ColURL        = "URL"
	ColStatus     = "Status"
	ColClaimedBy  = "ClaimedBy"
	ColClaimedAt  = "ClaimedAt"
	ColRetryCount = "RetryCount"
	ColLastError  = "LastError"
	ColDuration   = "Duration"
	ColLastSeen   = "LastSeen"
	ColAccent     = "Accent"
	ColType       = "Type"
)

// TimestampFormat is the wall-clock format written to ClaimedAt and LastSeen.
const TimestampFormat = "2006-01-02 15:04:05"

// Status represents the lifecycle state of a source or task row.
type Status string

const (
	// StatusPending indicates the row is waiting to be claimed.
	StatusPending Status = "pending"

	// StatusInProgress indicates a worker has claimed the row.
	StatusInProgress Status = "in-progress"

	// StatusDone indicates the row's work finished successfully.
	StatusDone Status = "done"

	// StatusError indicates the row's work failed terminally.
	StatusError Status = "error"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// Row is one table row, keyed by column name. Values are stored as strings,
// matching the backing store's untyped cells.
type Row map[string]string

// ID returns the row's unique identifier.
func (r Row) ID() string {
	return r[ColID]
}

// URL returns the row's URL column.
func (r Row) URL() string {
	return r[ColURL]
}

// Status returns the row's lifecycle status.
func (r Row) Status() Status {
	return Status(r[ColStatus])
}

// ClaimedBy returns the identity of the worker holding the row, if any.
func (r Row) ClaimedBy() string {
	return r[ColClaimedBy]
}

// ClaimedAt parses the row's claim timestamp. Returns ok=false when the
// column is empty or unparseable.
func (r Row) ClaimedAt() (time.Time, bool) {
	raw := r[ColClaimedAt]
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampFormat, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RetryCount parses the row's retry counter. Empty or garbage cells count
// as zero, matching how the backing store reports untouched cells.
func (r Row) RetryCount() int {
	raw := r[ColRetryCount]
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RowStore is the uniform contract over the shared tables. Implementations
// own no business state; status and claim columns are written only by the
// claim protocol and the lifecycle managers.
type RowStore interface {
	// GetAll returns every row of the table in store order.
	GetAll(ctx context.Context, table string) ([]Row, error)

	// GetRow returns the row with the given ID.
	// Returns ErrRowNotFound if no such row exists.
	GetRow(ctx context.Context, table, id string) (Row, error)

	// FindFirstPending returns the first row with pending status, in store
	// order. Returns ErrNoPendingRows when the table has none.
	FindFirstPending(ctx context.Context, table string) (Row, error)

	// UpdateColumns overwrites the named columns of the row with the given
	// ID. A missing row is a logged no-op, not an error: the row may have
	// been moved or deleted by a racing worker between read and write.
	UpdateColumns(ctx context.Context, table, id string, updates map[string]string) error

	// AppendRows appends the rows to the end of the table.
	AppendRows(ctx context.Context, table string, rows []Row) error

	// MoveToDeadLetter appends the row, with errorMessage recorded in its
	// LastError column, to the table's quarantine table and deletes it
	// from the live table. If the row was already removed by a racing
	// worker this is a no-op.
	MoveToDeadLetter(ctx context.Context, table, id, errorMessage string) error

	// Close releases resources held by the store.
	Close() error
}

// DeadLetterTableFor returns the quarantine table name for a live table when
// no explicit mapping is configured.
func DeadLetterTableFor(table string) string {
	return "Dead-Letter " + table
}
