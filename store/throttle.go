package store

import (
	"context"

	"github.com/vodkit/vodkit/ratelimit"
)

// Throttled wraps a RowStore so every operation first blocks on a shared
// rate-limit gate. The gap applies uniformly regardless of operation type.
type Throttled struct {
	inner RowStore
	gate  *ratelimit.Gate
}

// Ensure Throttled implements RowStore.
var _ RowStore = (*Throttled)(nil)

// Throttle wraps the store with the gate. The gate is shared by reference:
// pass the same gate to every store wrapper in the process.
func Throttle(inner RowStore, gate *ratelimit.Gate) *Throttled {
	return &Throttled{inner: inner, gate: gate}
}

// GetAll blocks on the gate, then delegates.
func (t *Throttled) GetAll(ctx context.Context, table string) ([]Row, error) {
	if err := t.gate.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.GetAll(ctx, table)
}

// GetRow blocks on the gate, then delegates.
func (t *Throttled) GetRow(ctx context.Context, table, id string) (Row, error) {
	if err := t.gate.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.GetRow(ctx, table, id)
}

// FindFirstPending blocks on the gate, then delegates.
func (t *Throttled) FindFirstPending(ctx context.Context, table string) (Row, error) {
	if err := t.gate.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.FindFirstPending(ctx, table)
}

// UpdateColumns blocks on the gate, then delegates.
func (t *Throttled) UpdateColumns(ctx context.Context, table, id string, updates map[string]string) error {
	if err := t.gate.Wait(ctx); err != nil {
		return err
	}
	return t.inner.UpdateColumns(ctx, table, id, updates)
}

// AppendRows blocks on the gate, then delegates.
func (t *Throttled) AppendRows(ctx context.Context, table string, rows []Row) error {
	if err := t.gate.Wait(ctx); err != nil {
		return err
	}
	return t.inner.AppendRows(ctx, table, rows)
}

// MoveToDeadLetter blocks on the gate, then delegates.
func (t *Throttled) MoveToDeadLetter(ctx context.Context, table, id, errorMessage string) error {
	if err := t.gate.Wait(ctx); err != nil {
		return err
	}
	return t.inner.MoveToDeadLetter(ctx, table, id, errorMessage)
}

// Close delegates without waiting; shutdown is not a store call.
func (t *Throttled) Close() error {
	return t.inner.Close()
}
