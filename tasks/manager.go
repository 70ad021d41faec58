package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vodkit/vodkit/claim"
	"github.com/vodkit/vodkit/logging"
	"github.com/vodkit/vodkit/store"
)

// ErrNoTask is returned by ClaimNext when no pending task exists or
// another worker won the claim race.
var ErrNoTask = claim.ErrNoWork

// Manager claims tasks and records their outcomes for one worker.
type Manager struct {
	st         store.RowStore
	proto      *claim.Protocol
	maxRetries int
	fatal      []string
	logger     *logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFatalSubstrings overrides the fatal failure-message fragments.
func WithFatalSubstrings(substrings ...string) ManagerOption {
	return func(m *Manager) {
		m.fatal = substrings
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a task manager for one worker. Stalled tasks whose
// retry budget is spent are quarantined during the claim cycle's stall
// sweep rather than released for another doomed attempt.
func NewManager(st store.RowStore, workerID string, cfg claim.Config, opts ...ManagerOption) *Manager {
	cfg.Table = store.TableTasks
	cfg.DeadLetterStalled = true
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = claim.DefaultMaxRetries
	}
	m := &Manager{
		st:         st,
		proto:      claim.New(st, workerID, cfg),
		maxRetries: cfg.MaxRetries,
		fatal:      FatalSubstrings,
		logger:     logging.New().WithComponent("tasks").WithWorkerID(workerID),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ClaimNext claims one pending task. Returns ErrNoTask when nothing is
// claimable this cycle.
func (m *Manager) ClaimNext(ctx context.Context) (Task, error) {
	row, err := m.proto.Next(ctx)
	if err != nil {
		return Task{}, err
	}
	return FromRow(row), nil
}

// MarkDone records successful processing of the task.
func (m *Manager) MarkDone(ctx context.Context, id string) error {
	err := m.st.UpdateColumns(ctx, store.TableTasks, id, map[string]string{
		store.ColStatus: store.StatusDone.String(),
	})
	if err != nil {
		return fmt.Errorf("mark task %s done: %w", id, err)
	}
	m.logger.RowEvent("done", store.TableTasks, id)
	return nil
}

// MarkFailed applies the retry-or-quarantine decision for a failed task.
// Fatal messages quarantine immediately; otherwise the task returns to
// pending with retryCount+1 until the budget is spent, then it is
// quarantined with the last failure message.
func (m *Manager) MarkFailed(ctx context.Context, task Task, message string) error {
	if m.isFatal(message) {
		if err := m.st.MoveToDeadLetter(ctx, store.TableTasks, task.ID, message); err != nil {
			return fmt.Errorf("quarantine task %s: %w", task.ID, err)
		}
		m.logger.RowEvent("quarantined-fatal", store.TableTasks, task.ID, map[string]interface{}{
			"reason": message,
		})
		return nil
	}

	retries := task.RetryCount + 1
	if retries > m.maxRetries {
		if err := m.st.MoveToDeadLetter(ctx, store.TableTasks, task.ID, message); err != nil {
			return fmt.Errorf("quarantine task %s: %w", task.ID, err)
		}
		m.logger.RowEvent("quarantined-exhausted", store.TableTasks, task.ID, map[string]interface{}{
			"retries": retries,
		})
		return nil
	}

	updates := map[string]string{
		store.ColStatus:     store.StatusPending.String(),
		store.ColClaimedBy:  "",
		store.ColClaimedAt:  "",
		store.ColRetryCount: strconv.Itoa(retries),
		store.ColLastError:  message,
	}
	if err := m.st.UpdateColumns(ctx, store.TableTasks, task.ID, updates); err != nil {
		return fmt.Errorf("requeue task %s: %w", task.ID, err)
	}
	m.logger.RowEvent("requeued", store.TableTasks, task.ID, map[string]interface{}{
		"retries": retries,
		"reason":  message,
	})
	return nil
}

// HasPending reports whether the Tasks table currently has a claimable
// pending row.
func (m *Manager) HasPending(ctx context.Context) (bool, error) {
	_, err := m.st.FindFirstPending(ctx, store.TableTasks)
	if err == store.ErrNoPendingRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scan pending tasks: %w", err)
	}
	return true, nil
}

func (m *Manager) isFatal(message string) bool {
	for _, s := range m.fatal {
		if strings.Contains(message, s) {
			return true
		}
	}
	return false
}
