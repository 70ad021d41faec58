package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vodkit/vodkit/logging"
)

// MemoryStore implements RowStore using in-memory tables.
// Useful for testing and single-worker scenarios.
type MemoryStore struct {
	mu         sync.Mutex
	tables     map[string][]Row
	nextID     map[string]int
	deadLetter map[string]string
	closed     atomic.Bool
	log        *logging.Logger
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithDeadLetterTable maps a live table to its quarantine table.
// Unmapped tables fall back to DeadLetterTableFor.
func WithDeadLetterTable(table, quarantine string) MemoryOption {
	return func(s *MemoryStore) {
		s.deadLetter[table] = quarantine
	}
}

// WithLogger sets the store's logger.
func WithLogger(log *logging.Logger) MemoryOption {
	return func(s *MemoryStore) {
		s.log = log.WithComponent("store")
	}
}

// NewMemoryStore creates a new in-memory row store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tables:     make(map[string][]Row),
		nextID:     make(map[string]int),
		deadLetter: map[string]string{TableTasks: TableDeadLetterTasks},
		log:        logging.New().WithComponent("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAll returns every row of the table in insertion order.
func (s *MemoryStore) GetAll(ctx context.Context, table string) ([]Row, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out, nil
}

// GetRow returns the row with the given ID.
func (s *MemoryStore) GetRow(ctx context.Context, table, id string) (Row, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(table, id); i >= 0 {
		return s.tables[table][i].Clone(), nil
	}
	return nil, ErrRowNotFound
}

// FindFirstPending returns the first pending row in insertion order.
func (s *MemoryStore) FindFirstPending(ctx context.Context, table string) (Row, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.tables[table] {
		if r.Status() == StatusPending {
			return r.Clone(), nil
		}
	}
	return nil, ErrNoPendingRows
}

// UpdateColumns overwrites the named columns of the row with the given ID.
// A missing row is a logged no-op.
func (s *MemoryStore) UpdateColumns(ctx context.Context, table, id string, updates map[string]string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(table, id)
	if i < 0 {
		s.log.Warn("update skipped, row not found", map[string]interface{}{
			"table": table,
			"row":   id,
		})
		return nil
	}

	for col, val := range updates {
		s.tables[table][i][col] = val
	}
	return nil
}

// AppendRows appends the rows to the end of the table, assigning sequential
// IDs to rows that arrive without one (the spreadsheet does the same via a
// formula column).
func (s *MemoryStore) AppendRows(ctx context.Context, table string, rows []Row) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		clone := r.Clone()
		if clone[ColID] == "" {
			s.nextID[table]++
			clone[ColID] = fmt.Sprintf("%d", s.nextID[table])
		}
		s.tables[table] = append(s.tables[table], clone)
	}
	return nil
}

// MoveToDeadLetter appends the row to the table's quarantine table with the
// error message recorded, then deletes it from the live table.
func (s *MemoryStore) MoveToDeadLetter(ctx context.Context, table, id, errorMessage string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(table, id)
	if i < 0 {
		// Already removed by a racing worker.
		s.log.Warn("dead-letter move skipped, row not found", map[string]interface{}{
			"table": table,
			"row":   id,
		})
		return nil
	}

	quarantine := s.deadLetter[table]
	if quarantine == "" {
		quarantine = DeadLetterTableFor(table)
	}

	moved := s.tables[table][i].Clone()
	moved[ColLastError] = errorMessage
	s.tables[quarantine] = append(s.tables[quarantine], moved)
	s.tables[table] = append(s.tables[table][:i], s.tables[table][i+1:]...)
	return nil
}

// Close releases the store. Subsequent calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

// indexOf returns the position of the row with the given ID, or -1.
// Callers must hold the mutex.
func (s *MemoryStore) indexOf(table, id string) int {
	for i, r := range s.tables[table] {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
