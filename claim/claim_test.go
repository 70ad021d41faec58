package claim

import (
	"context"
	"testing"
	"time"

	"github.com/vodkit/vodkit/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestProtocol builds a protocol with deterministic clock, no jitter
// delay and no real sleeping.
func newTestProtocol(st store.RowStore, workerID string, cfg Config) *Protocol {
	p := New(st, workerID, cfg)
	p.nowFunc = func() time.Time { return testNow }
	p.sleepFunc = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	p.jitterFn = func(max time.Duration) time.Duration { return 0 }
	return p
}

func seed(t *testing.T, st store.RowStore, table string, rows ...store.Row) {
	t.Helper()
	if err := st.AppendRows(context.Background(), table, rows); err != nil {
		t.Fatalf("seed %s: %v", table, err)
	}
}

func TestNextClaimsFirstPending(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, store.TableTasks,
		store.Row{store.ColID: "t1", store.ColStatus: "done"},
		store.Row{store.ColID: "t2", store.ColStatus: "pending"},
		store.Row{store.ColID: "t3", store.ColStatus: "pending"},
	)
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableTasks})

	row, err := p.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if row.ID() != "t2" {
		t.Errorf("claimed %q, want first pending t2", row.ID())
	}
	if row.Status() != store.StatusInProgress {
		t.Errorf("status = %q, want in-progress", row.Status())
	}
	if row.ClaimedBy() != "worker-a" {
		t.Errorf("claimedBy = %q, want worker-a", row.ClaimedBy())
	}
	if got := row[store.ColClaimedAt]; got != testNow.Format(store.TimestampFormat) {
		t.Errorf("claimedAt = %q", got)
	}
}

func TestNextNoPendingRows(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, store.TableTasks, store.Row{store.ColID: "t1", store.ColStatus: "done"})
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableTasks})

	if _, err := p.Next(context.Background()); err != ErrNoWork {
		t.Errorf("expected ErrNoWork, got %v", err)
	}
}

// rivalStore lets another worker's claim land between this worker's write
// and its confirming reread.
type rivalStore struct {
	store.RowStore
	rival string
}

func (s *rivalStore) UpdateColumns(ctx context.Context, table, id string, updates map[string]string) error {
	if err := s.RowStore.UpdateColumns(ctx, table, id, updates); err != nil {
		return err
	}
	return s.RowStore.UpdateColumns(ctx, table, id, map[string]string{
		store.ColClaimedBy: s.rival,
	})
}

func TestNextLosesClaimRace(t *testing.T) {
	inner := store.NewMemoryStore()
	seed(t, inner, store.TableTasks, store.Row{store.ColID: "t1", store.ColStatus: "pending"})
	st := &rivalStore{RowStore: inner, rival: "worker-b"}
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableTasks})

	if _, err := p.Next(context.Background()); err != ErrNoWork {
		t.Fatalf("expected ErrNoWork on lost race, got %v", err)
	}

	row, err := inner.GetRow(context.Background(), store.TableTasks, "t1")
	if err != nil {
		t.Fatalf("GetRow failed: %v", err)
	}
	if row.ClaimedBy() != "worker-b" {
		t.Errorf("winner = %q, want worker-b", row.ClaimedBy())
	}
}

func TestNextReleasesOneStalledRow(t *testing.T) {
	stale := testNow.Add(-2 * time.Hour).Format(store.TimestampFormat)
	st := store.NewMemoryStore()
	seed(t, st, store.TableTasks,
		store.Row{store.ColID: "t1", store.ColStatus: "in-progress", store.ColClaimedBy: "dead-worker", store.ColClaimedAt: stale, store.ColRetryCount: "1"},
		store.Row{store.ColID: "t2", store.ColStatus: "in-progress", store.ColClaimedBy: "dead-worker", store.ColClaimedAt: stale},
	)
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableTasks})

	// t1 is released back to pending and immediately claimed.
	row, err := p.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if row.ID() != "t1" {
		t.Errorf("claimed %q, want released row t1", row.ID())
	}
	if row.RetryCount() != 2 {
		t.Errorf("retryCount = %d, want 2 after stall release", row.RetryCount())
	}

	// Only one stalled row is touched per cycle; t2 stays in-progress.
	t2, err := st.GetRow(context.Background(), store.TableTasks, "t2")
	if err != nil {
		t.Fatalf("GetRow failed: %v", err)
	}
	if t2.Status() != store.StatusInProgress {
		t.Errorf("t2 status = %q, second stalled row should wait a cycle", t2.Status())
	}
}

func TestNextQuarantinesExhaustedStalledRow(t *testing.T) {
	stale := testNow.Add(-2 * time.Hour).Format(store.TimestampFormat)
	st := store.NewMemoryStore()
	seed(t, st, store.TableTasks,
		store.Row{store.ColID: "t1", store.ColStatus: "in-progress", store.ColClaimedBy: "dead-worker", store.ColClaimedAt: stale, store.ColRetryCount: "3"},
	)
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableTasks, DeadLetterStalled: true})

	if _, err := p.Next(context.Background()); err != ErrNoWork {
		t.Fatalf("expected ErrNoWork after quarantine, got %v", err)
	}

	if _, err := st.GetRow(context.Background(), store.TableTasks, "t1"); err != store.ErrRowNotFound {
		t.Errorf("t1 should be gone from live table, got %v", err)
	}
	dead, err := st.GetAll(context.Background(), store.TableDeadLetterTasks)
	if err != nil {
		t.Fatalf("GetAll dead letter: %v", err)
	}
	if len(dead) != 1 || dead[0].ID() != "t1" {
		t.Fatalf("dead letter = %v, want t1", dead)
	}
}

func TestNextStalledSourcesNeverQuarantined(t *testing.T) {
	stale := testNow.Add(-2 * time.Hour).Format(store.TimestampFormat)
	st := store.NewMemoryStore()
	seed(t, st, store.TableSources,
		store.Row{store.ColID: "s1", store.ColStatus: "in-progress", store.ColClaimedBy: "dead-worker", store.ColClaimedAt: stale, store.ColRetryCount: "9"},
	)
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableSources})

	row, err := p.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if row.ID() != "s1" {
		t.Errorf("claimed %q, want released source s1", row.ID())
	}
}

func TestNextStallTimeoutBoundary(t *testing.T) {
	// A row claimed exactly StallTimeout ago is not yet stalled.
	onEdge := testNow.Add(-DefaultStallTimeout).Format(store.TimestampFormat)
	st := store.NewMemoryStore()
	seed(t, st, store.TableTasks,
		store.Row{store.ColID: "t1", store.ColStatus: "in-progress", store.ColClaimedBy: "someone", store.ColClaimedAt: onEdge},
	)
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableTasks})

	if _, err := p.Next(context.Background()); err != ErrNoWork {
		t.Fatalf("expected ErrNoWork, got %v", err)
	}
	row, err := st.GetRow(context.Background(), store.TableTasks, "t1")
	if err != nil {
		t.Fatalf("GetRow failed: %v", err)
	}
	if row.Status() != store.StatusInProgress {
		t.Errorf("row on the timeout edge must stay claimed, status = %q", row.Status())
	}
}

func TestNextSkipsUnparseableClaimedAt(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, store.TableTasks,
		store.Row{store.ColID: "t1", store.ColStatus: "in-progress", store.ColClaimedBy: "someone", store.ColClaimedAt: "not a timestamp"},
	)
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableTasks})

	if _, err := p.Next(context.Background()); err != ErrNoWork {
		t.Fatalf("expected ErrNoWork, got %v", err)
	}
	row, err := st.GetRow(context.Background(), store.TableTasks, "t1")
	if err != nil {
		t.Fatalf("GetRow failed: %v", err)
	}
	if row.Status() != store.StatusInProgress {
		t.Errorf("row with garbage timestamp must not be reset, status = %q", row.Status())
	}
}

func TestNextAppliesJitter(t *testing.T) {
	st := store.NewMemoryStore()
	p := New(st, "worker-a", Config{Table: store.TableTasks, JitterMax: 5 * time.Second})
	p.jitterFn = func(max time.Duration) time.Duration { return max / 2 }

	var slept time.Duration
	p.sleepFunc = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	if _, err := p.Next(context.Background()); err != ErrNoWork {
		t.Fatalf("expected ErrNoWork, got %v", err)
	}
	if slept != 2500*time.Millisecond {
		t.Errorf("slept %v, want 2.5s", slept)
	}
}

func TestNextCanceledDuringJitter(t *testing.T) {
	st := store.NewMemoryStore()
	p := newTestProtocol(st, "worker-a", Config{Table: store.TableTasks})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Next(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
