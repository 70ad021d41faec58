package claim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/vodkit/vodkit/logging"
	"github.com/vodkit/vodkit/store"
)

// Common errors.
var (
	// ErrNoWork indicates no pending row could be claimed this cycle,
	// either because the table had none or another worker won the race.
	ErrNoWork = errors.New("no claimable work")
)

// Defaults for claim cycle tuning.
const (
	// DefaultJitterMax is the upper bound of the random pre-claim sleep.
	DefaultJitterMax = 5 * time.Second

	// DefaultStallTimeout is how long an in-progress claim may go without
	// completing before it is presumed abandoned.
	DefaultStallTimeout = 60 * time.Minute

	// DefaultMaxRetries is how many failed attempts a row gets before it
	// is quarantined.
	DefaultMaxRetries = 3
)

// Config tunes a claim protocol instance for one table.
type Config struct {
	// Table is the live table claims operate on.
	Table string

	// JitterMax bounds the random sleep before each claim attempt.
	// Zero selects DefaultJitterMax; negative disables jitter.
	JitterMax time.Duration

	// StallTimeout is the age past which an in-progress claim is presumed
	// abandoned. Zero selects DefaultStallTimeout.
	StallTimeout time.Duration

	// MaxRetries is the retry budget consulted when releasing stalled
	// rows. Zero selects DefaultMaxRetries.
	MaxRetries int

	// DeadLetterStalled quarantines stalled rows whose retry budget is
	// already spent instead of releasing them for another attempt.
	DeadLetterStalled bool
}

func (c Config) withDefaults() Config {
	if c.JitterMax == 0 {
		c.JitterMax = DefaultJitterMax
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = DefaultStallTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// Protocol claims pending rows on behalf of one worker. Instances are safe
// for sequential use; run one protocol per table per worker.
type Protocol struct {
	st       store.RowStore
	workerID string
	cfg      Config
	logger   *logging.Logger

	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
	jitterFn  func(max time.Duration) time.Duration
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Protocol) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a claim protocol for the given store, table and worker
// identity.
func New(st store.RowStore, workerID string, cfg Config, opts ...Option) *Protocol {
	p := &Protocol{
		st:       st,
		workerID: workerID,
		cfg:      cfg.withDefaults(),
		nowFunc:  time.Now,
		sleepFunc: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		jitterFn: func(max time.Duration) time.Duration {
			return time.Duration(rand.Int63n(int64(max)))
		},
		logger: logging.New().WithComponent("claim").WithWorkerID(workerID),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next attempts to claim one pending row.
//
// A cycle runs in four phases: a random jitter sleep to spread workers out,
// a sweep that releases at most one stalled row, a claim write against the
// first pending row, and a reread that confirms the claim survived. Losing
// the reread is not an error; the caller simply gets ErrNoWork and tries
// again later.
func (p *Protocol) Next(ctx context.Context) (store.Row, error) {
	if p.cfg.JitterMax > 0 {
		if err := p.sleepFunc(ctx, p.jitterFn(p.cfg.JitterMax)); err != nil {
			return nil, err
		}
	}

	rows, err := p.st.GetAll(ctx, p.cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.cfg.Table, err)
	}
	if err := p.releaseOneStalled(ctx, rows); err != nil {
		return nil, err
	}

	candidate, err := p.st.FindFirstPending(ctx, p.cfg.Table)
	if err != nil {
		if errors.Is(err, store.ErrNoPendingRows) {
			return nil, ErrNoWork
		}
		return nil, fmt.Errorf("find pending in %s: %w", p.cfg.Table, err)
	}

	updates := map[string]string{
		store.ColStatus:    store.StatusInProgress.String(),
		store.ColClaimedBy: p.workerID,
		store.ColClaimedAt: p.nowFunc().Format(store.TimestampFormat),
	}
	if err := p.st.UpdateColumns(ctx, p.cfg.Table, candidate.ID(), updates); err != nil {
		return nil, fmt.Errorf("claim row %s: %w", candidate.ID(), err)
	}

	// Reread to settle the race. Whoever's identity survived owns the row.
	confirmed, err := p.st.GetRow(ctx, p.cfg.Table, candidate.ID())
	if err != nil {
		if errors.Is(err, store.ErrRowNotFound) {
			return nil, ErrNoWork
		}
		return nil, fmt.Errorf("confirm claim on row %s: %w", candidate.ID(), err)
	}
	if confirmed.ClaimedBy() != p.workerID {
		p.logger.Warn("lost claim race", map[string]interface{}{
			"table":  p.cfg.Table,
			"row":    candidate.ID(),
			"winner": confirmed.ClaimedBy(),
		})
		return nil, ErrNoWork
	}

	p.logger.RowEvent("claimed", p.cfg.Table, confirmed.ID())
	return confirmed, nil
}

// releaseOneStalled resets the first stalled row found back to pending, or
// quarantines it when its retry budget is spent and the config says to.
// At most one row is touched per cycle.
func (p *Protocol) releaseOneStalled(ctx context.Context, rows []store.Row) error {
	now := p.nowFunc()
	for _, row := range rows {
		if row.Status() != store.StatusInProgress {
			continue
		}
		claimedAt, ok := row.ClaimedAt()
		if !ok {
			if row[store.ColClaimedAt] != "" {
				p.logger.Warn("unparseable claim timestamp", map[string]interface{}{
					"table": p.cfg.Table,
					"row":   row.ID(),
					"value": row[store.ColClaimedAt],
				})
			}
			continue
		}
		age := now.Sub(claimedAt)
		if age <= p.cfg.StallTimeout {
			continue
		}

		if p.cfg.DeadLetterStalled && row.RetryCount() >= p.cfg.MaxRetries {
			msg := fmt.Sprintf("stalled for %s with retries exhausted (last worker %s)",
				age.Truncate(time.Second), row.ClaimedBy())
			if err := p.st.MoveToDeadLetter(ctx, p.cfg.Table, row.ID(), msg); err != nil {
				return fmt.Errorf("quarantine stalled row %s: %w", row.ID(), err)
			}
			p.logger.RowEvent("stalled-quarantined", p.cfg.Table, row.ID())
			return nil
		}

		updates := map[string]string{
			store.ColStatus:     store.StatusPending.String(),
			store.ColClaimedBy:  "",
			store.ColClaimedAt:  "",
			store.ColRetryCount: strconv.Itoa(row.RetryCount() + 1),
			store.ColLastError:  fmt.Sprintf("claim stalled after %s (worker %s)", age.Truncate(time.Second), row.ClaimedBy()),
		}
		if err := p.st.UpdateColumns(ctx, p.cfg.Table, row.ID(), updates); err != nil {
			return fmt.Errorf("release stalled row %s: %w", row.ID(), err)
		}
		p.logger.RowEvent("stalled-released", p.cfg.Table, row.ID())
		return nil
	}
	return nil
}
