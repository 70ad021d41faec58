package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vodkit/vodkit/claim"
	coorderr "github.com/vodkit/vodkit/errors"
	"github.com/vodkit/vodkit/heartbeat"
	"github.com/vodkit/vodkit/logging"
	"github.com/vodkit/vodkit/resolver"
	"github.com/vodkit/vodkit/sources"
	"github.com/vodkit/vodkit/store"
	"github.com/vodkit/vodkit/tasks"
)

// ErrInvalidConfig is returned when the configuration is unusable.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultIdleDelay is how long Run waits after an idle cycle.
const DefaultIdleDelay = 30 * time.Second

// ProcessFunc is the caller-supplied processing step. It receives the
// claimed task's URL; returning an error, or panicking, records a failure
// with the error's message.
type ProcessFunc func(ctx context.Context, url string) error

// Config assembles a worker.
type Config struct {
	// Store is the shared row store. Required.
	Store store.RowStore

	// Resolver expands source URLs into video entries. Required.
	Resolver resolver.Resolver

	// WorkerID identifies this worker. Default: Identity().
	WorkerID string

	// SourcesFile is the local source list imported when the queue and
	// the Sources table both run dry. Empty disables importing.
	SourcesFile string

	// Claim tunes jitter, stall detection and the retry budget for both
	// tables. The table name and quarantine policy are set per table.
	Claim claim.Config

	// BatchSize is the expansion append batch size. Default: 25.
	BatchSize int

	// HeartbeatInterval is the minimum gap between liveness writes.
	// Negative disables the heartbeat. Default: heartbeat.DefaultInterval.
	HeartbeatInterval time.Duration

	// IdleDelay is how long Run sleeps after a cycle with no work.
	// Default: DefaultIdleDelay.
	IdleDelay time.Duration

	// FatalSubstrings overrides the failure messages that quarantine a
	// task immediately. Default: tasks.FatalSubstrings.
	FatalSubstrings []string

	// Logger overrides the default logger.
	Logger *logging.Logger
}

// Coordinator runs the cooperative worker loop.
type Coordinator struct {
	st        store.RowStore
	tasks     *tasks.Manager
	sources   *sources.Manager
	expander  *sources.Expander
	importer  *sources.Importer
	hb        *heartbeat.Sender
	idleDelay time.Duration
	logger    *logging.Logger

	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a coordinator from the configuration.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("%w: resolver is required", ErrInvalidConfig)
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = Identity()
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = DefaultIdleDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	logger = logger.WithComponent("coordinator").WithWorkerID(cfg.WorkerID)

	var taskOpts []tasks.ManagerOption
	if cfg.FatalSubstrings != nil {
		taskOpts = append(taskOpts, tasks.WithFatalSubstrings(cfg.FatalSubstrings...))
	}

	var expOpts []sources.ExpanderOption
	if cfg.BatchSize > 0 {
		expOpts = append(expOpts, sources.WithBatchSize(cfg.BatchSize))
	}

	c := &Coordinator{
		st:        cfg.Store,
		tasks:     tasks.NewManager(cfg.Store, cfg.WorkerID, cfg.Claim, taskOpts...),
		sources:   sources.NewManager(cfg.Store, cfg.WorkerID, cfg.Claim),
		expander:  sources.NewExpander(cfg.Store, cfg.Resolver, expOpts...),
		idleDelay: cfg.IdleDelay,
		logger:    logger,
		sleepFunc: sleepContext,
	}

	if cfg.SourcesFile != "" {
		c.importer = sources.NewImporter(cfg.Store, cfg.SourcesFile)
	}
	if cfg.HeartbeatInterval >= 0 {
		hb, err := heartbeat.NewSender(heartbeat.Config{
			Store:    cfg.Store,
			WorkerID: cfg.WorkerID,
			Interval: cfg.HeartbeatInterval,
		})
		if err != nil {
			return nil, err
		}
		c.hb = hb
	}
	return c, nil
}

// ProcessNext runs one work cycle: emit a liveness signal, make sure the
// task queue is fed, claim a task and hand it to fn. Returns true when a
// task was attempted, regardless of whether fn succeeded, and false when
// the cycle was idle.
//
// fn runs inside a failure boundary: errors and panics are recorded on the
// task and never propagate out of the cycle.
func (c *Coordinator) ProcessNext(ctx context.Context, fn ProcessFunc) (bool, error) {
	c.beat(ctx)

	if err := c.ensureTasks(ctx); err != nil {
		return false, err
	}

	task, err := c.tasks.ClaimNext(ctx)
	if errors.Is(err, tasks.ErrNoTask) {
		c.logger.Info("no claimable tasks this cycle")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}

	c.logger.Info("task delivered", map[string]interface{}{
		"task": task.ID,
		"url":  task.URL,
	})

	if procErr := c.runProcess(ctx, fn, task.URL); procErr != nil {
		c.logger.Error("processing failed", map[string]interface{}{
			"task":   task.ID,
			"url":    task.URL,
			"reason": procErr.Error(),
		})
		if err := c.tasks.MarkFailed(ctx, task, procErr.Error()); err != nil {
			c.logger.Error("could not record failure", map[string]interface{}{
				"task":   task.ID,
				"reason": err.Error(),
			})
		}
		return true, nil
	}

	if err := c.tasks.MarkDone(ctx, task.ID); err != nil {
		c.logger.Error("could not record completion", map[string]interface{}{
			"task":   task.ID,
			"reason": err.Error(),
		})
	}
	return true, nil
}

// Run calls ProcessNext until the context ends, sleeping IdleDelay after
// each idle cycle. Cycle errors are logged and the loop continues; only
// context cancellation stops it.
func (c *Coordinator) Run(ctx context.Context, fn ProcessFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		worked, err := c.ProcessNext(ctx, fn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("work cycle failed", map[string]interface{}{
				"reason": err.Error(),
			})
		}
		if worked {
			continue
		}
		if err := c.sleepFunc(ctx, c.idleDelay); err != nil {
			return err
		}
	}
}

// beat emits the liveness signal. Heartbeat failures are logged, never
// fatal.
func (c *Coordinator) beat(ctx context.Context) {
	if c.hb == nil {
		return
	}
	if _, err := c.hb.Beat(ctx); err != nil {
		c.logger.Warn("heartbeat write failed", map[string]interface{}{
			"reason": err.Error(),
		})
	}
}

// ensureTasks feeds the task queue when it has no pending row: claim a
// source and expand it, importing fresh sources from the list file when
// the Sources table is dry too.
func (c *Coordinator) ensureTasks(ctx context.Context) error {
	pending, err := c.tasks.HasPending(ctx)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	c.logger.Info("no pending tasks, looking for a source to expand")

	src, err := c.sources.ClaimNext(ctx)
	if errors.Is(err, sources.ErrNoSource) {
		if err := c.importSources(ctx); err != nil {
			return err
		}
		src, err = c.sources.ClaimNext(ctx)
		if errors.Is(err, sources.ErrNoSource) {
			c.logger.Info("no sources to expand after import")
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("claim source: %w", err)
	}

	c.expand(ctx, src)
	return nil
}

// expand runs one source expansion and records the source's terminal
// status. Expansion failures are recorded on the source, not returned; one
// bad source must not halt the worker.
func (c *Coordinator) expand(ctx context.Context, src sources.Source) {
	c.logger.Info("expanding source", map[string]interface{}{
		"source": src.ID,
		"url":    src.URL,
	})

	added, err := c.expander.Expand(ctx, src)
	if err != nil {
		if markErr := c.sources.MarkError(ctx, src.ID, err.Error()); markErr != nil {
			c.logger.Error("could not record source failure", map[string]interface{}{
				"source": src.ID,
				"reason": markErr.Error(),
			})
		}
		return
	}

	c.logger.Info("source expansion finished", map[string]interface{}{
		"source": src.ID,
		"added":  added,
	})
	if err := c.sources.MarkDone(ctx, src.ID); err != nil {
		c.logger.Error("could not record source completion", map[string]interface{}{
			"source": src.ID,
			"reason": err.Error(),
		})
	}
}

// importSources runs the one-shot list import when configured.
func (c *Coordinator) importSources(ctx context.Context) error {
	if c.importer == nil {
		return nil
	}
	added, err := c.importer.Import(ctx)
	if err != nil {
		return fmt.Errorf("import sources: %w", err)
	}
	if added > 0 {
		c.logger.Info("imported new sources", map[string]interface{}{
			"added": added,
		})
	}
	return nil
}

// runProcess invokes fn inside the failure boundary.
func (c *Coordinator) runProcess(ctx context.Context, fn ProcessFunc, url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = coorderr.RecoverPanic(r)
		}
	}()
	return fn(ctx, url)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
