package tasks

import (
	"context"
	"testing"

	"github.com/vodkit/vodkit/claim"
	"github.com/vodkit/vodkit/store"
)

func newTestManager(t *testing.T, rows ...store.Row) (*Manager, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	if len(rows) > 0 {
		if err := st.AppendRows(context.Background(), store.TableTasks, rows); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return NewManager(st, "worker-a", claim.Config{JitterMax: -1}), st
}

func taskRow(id string, retries string) store.Row {
	r := store.Row{
		store.ColID:     id,
		store.ColURL:    "https://example.com/" + id,
		store.ColStatus: "pending",
	}
	if retries != "" {
		r[store.ColRetryCount] = retries
	}
	return r
}

func TestClaimNext(t *testing.T) {
	m, _ := newTestManager(t, taskRow("v1", "0"))

	task, err := m.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if task.ID != "v1" {
		t.Errorf("claimed %q, want v1", task.ID)
	}
	if task.Status != store.StatusInProgress {
		t.Errorf("status = %q, want in-progress", task.Status)
	}
}

func TestClaimNextNoTask(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.ClaimNext(context.Background()); err != ErrNoTask {
		t.Errorf("expected ErrNoTask, got %v", err)
	}
}

func TestMarkDone(t *testing.T) {
	m, st := newTestManager(t, taskRow("v1", "0"))

	if err := m.MarkDone(context.Background(), "v1"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	row, _ := st.GetRow(context.Background(), store.TableTasks, "v1")
	if row.Status() != store.StatusDone {
		t.Errorf("status = %q, want done", row.Status())
	}
}

func TestMarkFailedRequeuesWithIncrement(t *testing.T) {
	m, st := newTestManager(t, taskRow("v1", "1"))

	task := Task{ID: "v1", RetryCount: 1}
	if err := m.MarkFailed(context.Background(), task, "network timeout"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	row, _ := st.GetRow(context.Background(), store.TableTasks, "v1")
	if row.Status() != store.StatusPending {
		t.Errorf("status = %q, want pending", row.Status())
	}
	if row.RetryCount() != 2 {
		t.Errorf("retryCount = %d, want 2", row.RetryCount())
	}
	if row[store.ColLastError] != "network timeout" {
		t.Errorf("lastError = %q", row[store.ColLastError])
	}
	if row.ClaimedBy() != "" || row[store.ColClaimedAt] != "" {
		t.Error("claim columns should be cleared on requeue")
	}
}

func TestMarkFailedRetryBudgetBoundary(t *testing.T) {
	// retryCount=2 with maxRetries=3: one more recoverable failure is
	// allowed, the one after that quarantines.
	m, st := newTestManager(t, taskRow("v1", "2"))
	ctx := context.Background()

	if err := m.MarkFailed(ctx, Task{ID: "v1", RetryCount: 2}, "network timeout"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	row, err := st.GetRow(ctx, store.TableTasks, "v1")
	if err != nil {
		t.Fatalf("GetRow failed: %v", err)
	}
	if row.Status() != store.StatusPending || row.RetryCount() != 3 {
		t.Fatalf("after third failure: status=%q retries=%d, want pending/3", row.Status(), row.RetryCount())
	}

	if err := m.MarkFailed(ctx, FromRow(row), "network timeout"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if _, err := st.GetRow(ctx, store.TableTasks, "v1"); err != store.ErrRowNotFound {
		t.Errorf("task should be quarantined, got %v", err)
	}
	dead, _ := st.GetAll(ctx, store.TableDeadLetterTasks)
	if len(dead) != 1 || dead[0].ID() != "v1" {
		t.Fatalf("dead letter = %v, want v1", dead)
	}
	if dead[0][store.ColLastError] != "network timeout" {
		t.Errorf("lastError = %q", dead[0][store.ColLastError])
	}
}

func TestMarkFailedFatalSkipsRetries(t *testing.T) {
	m, st := newTestManager(t, taskRow("v1", "0"))
	ctx := context.Background()

	err := m.MarkFailed(ctx, Task{ID: "v1", RetryCount: 0}, "ERROR: Private video. Sign in if you've been granted access")
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if _, err := st.GetRow(ctx, store.TableTasks, "v1"); err != store.ErrRowNotFound {
		t.Errorf("fatal failure should quarantine immediately, got %v", err)
	}
	dead, _ := st.GetAll(ctx, store.TableDeadLetterTasks)
	if len(dead) != 1 {
		t.Fatalf("dead letter rows = %d, want 1", len(dead))
	}
}

func TestMarkFailedCustomFatalList(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.AppendRows(context.Background(), store.TableTasks, []store.Row{taskRow("v1", "0")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := NewManager(st, "worker-a", claim.Config{JitterMax: -1}, WithFatalSubstrings("custom doom"))

	// The default fatal messages are recoverable under a custom list.
	if err := m.MarkFailed(context.Background(), Task{ID: "v1"}, "Private video"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	row, err := st.GetRow(context.Background(), store.TableTasks, "v1")
	if err != nil {
		t.Fatalf("task should still be live: %v", err)
	}
	if row.Status() != store.StatusPending {
		t.Errorf("status = %q, want pending", row.Status())
	}
}

func TestHasPending(t *testing.T) {
	m, _ := newTestManager(t, taskRow("v1", "0"))
	ctx := context.Background()

	ok, err := m.HasPending(ctx)
	if err != nil || !ok {
		t.Fatalf("HasPending = %v, %v; want true", ok, err)
	}

	if err := m.MarkDone(ctx, "v1"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	ok, err = m.HasPending(ctx)
	if err != nil || ok {
		t.Fatalf("HasPending = %v, %v; want false", ok, err)
	}
}

func TestTaskRowRoundTrip(t *testing.T) {
	task := Task{
		ID:         "v1",
		SourceID:   "s1",
		URL:        "https://example.com/v1",
		Status:     store.StatusPending,
		RetryCount: 2,
		Duration:   "314",
	}
	row := task.ToRow()
	back := FromRow(row)
	if back != task {
		t.Errorf("round trip mismatch: %+v != %+v", back, task)
	}
}
