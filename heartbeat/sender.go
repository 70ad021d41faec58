package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vodkit/vodkit/logging"
	"github.com/vodkit/vodkit/store"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DefaultInterval is the minimum gap between liveness writes.
const DefaultInterval = 5 * time.Minute

// Config configures a Sender.
type Config struct {
	// Store is the row store holding the Workers table.
	Store store.RowStore

	// WorkerID identifies this worker.
	WorkerID string

	// Table overrides the Workers table name.
	Table string

	// Interval is the minimum gap between writes. Beat calls inside the
	// window are no-ops, so the sender can be invoked every cycle.
	// Default: DefaultInterval.
	Interval time.Duration
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if c.WorkerID == "" {
		return fmt.Errorf("%w: worker ID is required", ErrInvalidConfig)
	}
	return nil
}

// Sender upserts this worker's liveness row, at most once per interval.
type Sender struct {
	st       store.RowStore
	workerID string
	table    string
	interval time.Duration
	logger   *logging.Logger

	mu       sync.Mutex
	lastBeat time.Time
	status   string

	nowFunc func() time.Time
}

// NewSender creates a heartbeat sender.
func NewSender(cfg Config) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Table == "" {
		cfg.Table = store.TableWorkers
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Sender{
		st:       cfg.Store,
		workerID: cfg.WorkerID,
		table:    cfg.Table,
		interval: cfg.Interval,
		status:   "idle",
		logger:   logging.New().WithComponent("heartbeat").WithWorkerID(cfg.WorkerID),
		nowFunc:  time.Now,
	}, nil
}

// SetStatus updates the status written by subsequent beats.
func (s *Sender) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Beat writes the liveness row if the interval has elapsed since the last
// write. Returns true when a write happened.
func (s *Sender) Beat(ctx context.Context) (bool, error) {
	s.mu.Lock()
	now := s.nowFunc()
	if !s.lastBeat.IsZero() && now.Sub(s.lastBeat) < s.interval {
		s.mu.Unlock()
		return false, nil
	}
	status := s.status
	s.mu.Unlock()

	if err := s.upsert(ctx, now, status); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.lastBeat = now
	s.mu.Unlock()
	return true, nil
}

// upsert updates this worker's row, appending it on first contact.
func (s *Sender) upsert(ctx context.Context, now time.Time, status string) error {
	row := map[string]string{
		store.ColLastSeen: now.Format(store.TimestampFormat),
		store.ColStatus:   status,
	}

	_, err := s.st.GetRow(ctx, s.table, s.workerID)
	if errors.Is(err, store.ErrRowNotFound) {
		fresh := store.Row{store.ColID: s.workerID}
		for col, val := range row {
			fresh[col] = val
		}
		if err := s.st.AppendRows(ctx, s.table, []store.Row{fresh}); err != nil {
			return fmt.Errorf("register worker %s: %w", s.workerID, err)
		}
		s.logger.Info("worker registered", map[string]interface{}{"table": s.table})
		return nil
	}
	if err != nil {
		return fmt.Errorf("read worker row %s: %w", s.workerID, err)
	}

	if err := s.st.UpdateColumns(ctx, s.table, s.workerID, row); err != nil {
		return fmt.Errorf("update worker row %s: %w", s.workerID, err)
	}
	return nil
}
