package sources

import (
	"context"
	"fmt"

	"github.com/vodkit/vodkit/claim"
	"github.com/vodkit/vodkit/logging"
	"github.com/vodkit/vodkit/store"
)

// ErrNoSource is returned by ClaimNext when no pending source exists or
// another worker won the claim race.
var ErrNoSource = claim.ErrNoWork

// Manager claims sources and records their terminal status. Sources are
// never quarantined; a source that keeps stalling just keeps being retried
// until an operator intervenes.
type Manager struct {
	st     store.RowStore
	proto  *claim.Protocol
	logger *logging.Logger
}

// NewManager creates a source manager for one worker.
func NewManager(st store.RowStore, workerID string, cfg claim.Config, opts ...claim.Option) *Manager {
	cfg.Table = store.TableSources
	cfg.DeadLetterStalled = false
	return &Manager{
		st:     st,
		proto:  claim.New(st, workerID, cfg, opts...),
		logger: logging.New().WithComponent("sources").WithWorkerID(workerID),
	}
}

// ClaimNext claims one pending source. Returns ErrNoSource when nothing is
// claimable this cycle.
func (m *Manager) ClaimNext(ctx context.Context) (Source, error) {
	row, err := m.proto.Next(ctx)
	if err != nil {
		return Source{}, err
	}
	return FromRow(row), nil
}

// MarkDone records successful expansion of the source.
func (m *Manager) MarkDone(ctx context.Context, id string) error {
	err := m.st.UpdateColumns(ctx, store.TableSources, id, map[string]string{
		store.ColStatus: store.StatusDone.String(),
	})
	if err != nil {
		return fmt.Errorf("mark source %s done: %w", id, err)
	}
	m.logger.RowEvent("done", store.TableSources, id)
	return nil
}

// MarkError records a terminal expansion failure. The source stays in the
// table with status error until manually reset.
func (m *Manager) MarkError(ctx context.Context, id, message string) error {
	err := m.st.UpdateColumns(ctx, store.TableSources, id, map[string]string{
		store.ColStatus:    store.StatusError.String(),
		store.ColLastError: message,
	})
	if err != nil {
		return fmt.Errorf("mark source %s error: %w", id, err)
	}
	m.logger.RowEvent("error", store.TableSources, id, map[string]interface{}{
		"reason": message,
	})
	return nil
}
