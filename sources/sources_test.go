package sources

import (
	"context"
	"testing"

	"github.com/vodkit/vodkit/claim"
	"github.com/vodkit/vodkit/store"
)

func TestFromRowLiftsKnownColumns(t *testing.T) {
	row := store.Row{
		store.ColID:         "s1",
		store.ColURL:        "https://example.com/list",
		store.ColStatus:     "pending",
		store.ColRetryCount: "2",
		store.ColLastError:  "claim stalled",
		store.ColAccent:     "british",
		store.ColType:       "channel",
	}
	src := FromRow(row)

	if src.ID != "s1" || src.URL != "https://example.com/list" {
		t.Errorf("unexpected identity: %+v", src)
	}
	if src.Status != store.StatusPending {
		t.Errorf("status = %q", src.Status)
	}
	if src.RetryCount != 2 {
		t.Errorf("retryCount = %d", src.RetryCount)
	}
	if src.Extra[store.ColAccent] != "british" || src.Extra[store.ColType] != "channel" {
		t.Errorf("passthrough columns lost: %v", src.Extra)
	}
	if _, ok := src.Extra[store.ColLastError]; ok {
		t.Error("known columns must not leak into Extra")
	}
}

func TestToRowRoundTripsPassthrough(t *testing.T) {
	src := Source{
		ID:     "s1",
		URL:    "u",
		Status: store.StatusPending,
		Extra:  map[string]string{store.ColAccent: "irish"},
	}
	row := src.ToRow()

	if row.ID() != "s1" || row.URL() != "u" {
		t.Errorf("unexpected row: %v", row)
	}
	if row[store.ColAccent] != "irish" {
		t.Errorf("passthrough column lost: %v", row)
	}
	if row[store.ColClaimedBy] != "" || row[store.ColClaimedAt] != "" {
		t.Error("claim columns must stay empty")
	}
}

func TestManagerClaimAndFinalize(t *testing.T) {
	st := store.NewMemoryStore()
	seedRow := store.Row{store.ColID: "s1", store.ColURL: "u", store.ColStatus: "pending"}
	if err := st.AppendRows(context.Background(), store.TableSources, []store.Row{seedRow}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := NewManager(st, "worker-a", claim.Config{JitterMax: -1})

	src, err := m.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if src.ID != "s1" {
		t.Errorf("claimed %q, want s1", src.ID)
	}

	if err := m.MarkDone(context.Background(), src.ID); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	row, _ := st.GetRow(context.Background(), store.TableSources, "s1")
	if row.Status() != store.StatusDone {
		t.Errorf("status = %q, want done", row.Status())
	}
}

func TestManagerMarkError(t *testing.T) {
	st := store.NewMemoryStore()
	seedRow := store.Row{store.ColID: "s1", store.ColURL: "u", store.ColStatus: "in-progress"}
	if err := st.AppendRows(context.Background(), store.TableSources, []store.Row{seedRow}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := NewManager(st, "worker-a", claim.Config{JitterMax: -1})

	if err := m.MarkError(context.Background(), "s1", "resolver exploded"); err != nil {
		t.Fatalf("MarkError failed: %v", err)
	}
	row, _ := st.GetRow(context.Background(), store.TableSources, "s1")
	if row.Status() != store.StatusError {
		t.Errorf("status = %q, want error", row.Status())
	}
	if row[store.ColLastError] != "resolver exploded" {
		t.Errorf("lastError = %q", row[store.ColLastError])
	}
}

func TestManagerNoSource(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewManager(st, "worker-a", claim.Config{JitterMax: -1})

	if _, err := m.ClaimNext(context.Background()); err != ErrNoSource {
		t.Errorf("expected ErrNoSource, got %v", err)
	}
}
