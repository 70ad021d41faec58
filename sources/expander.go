package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/vodkit/vodkit/logging"
	"github.com/vodkit/vodkit/resolver"
	"github.com/vodkit/vodkit/store"
)

// DefaultBatchSize is how many task rows are appended per store call
// during expansion.
const DefaultBatchSize = 25

// Expander turns one claimed source into task rows.
type Expander struct {
	st        store.RowStore
	res       resolver.Resolver
	batchSize int
	logger    *logging.Logger
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithBatchSize overrides the append batch size.
func WithBatchSize(n int) ExpanderOption {
	return func(e *Expander) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithExpanderLogger sets the logger.
func WithExpanderLogger(logger *logging.Logger) ExpanderOption {
	return func(e *Expander) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExpander creates an expander writing to the given store.
func NewExpander(st store.RowStore, res resolver.Resolver, opts ...ExpanderOption) *Expander {
	e := &Expander{
		st:        st,
		res:       res,
		batchSize: DefaultBatchSize,
		logger:    logging.New().WithComponent("expander"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand resolves the source URL and appends a pending task row for every
// entry that has an id and URL and no existing task row. Batches of
// batchSize are appended as they fill, so earlier batches survive a later
// failure. Returns the number of task rows appended.
//
// Zero appended rows is not an error; an empty playlist still expands
// successfully.
func (e *Expander) Expand(ctx context.Context, src Source) (int, error) {
	existing, err := e.existingTaskIDs(ctx)
	if err != nil {
		return 0, err
	}

	stream, err := e.res.Resolve(ctx, src.URL)
	if err != nil {
		return 0, fmt.Errorf("resolve source %s: %w", src.ID, err)
	}
	defer stream.Close()

	var (
		batch   []store.Row
		added   int
		skipped int
		dropped int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.st.AppendRows(ctx, store.TableTasks, batch); err != nil {
			return fmt.Errorf("append %d tasks for source %s: %w", len(batch), src.ID, err)
		}
		added += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		entry, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return added, fmt.Errorf("resolve source %s: %w", src.ID, err)
		}
		if entry.ID == "" || entry.URL == "" {
			dropped++
			e.logger.Warn("dropping entry without id or url", map[string]interface{}{
				"source": src.ID,
				"id":     entry.ID,
				"url":    entry.URL,
			})
			continue
		}
		if existing[entry.ID] {
			skipped++
			continue
		}
		existing[entry.ID] = true

		batch = append(batch, taskRow(src.ID, entry))
		if len(batch) >= e.batchSize {
			if err := flush(); err != nil {
				return added, err
			}
		}
	}
	if err := flush(); err != nil {
		return added, err
	}

	e.logger.Info("source expanded", map[string]interface{}{
		"source":  src.ID,
		"added":   added,
		"skipped": skipped,
		"dropped": dropped,
	})
	return added, nil
}

// existingTaskIDs reads the Tasks table once and returns the set of task
// IDs already present.
func (e *Expander) existingTaskIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := e.st.GetAll(ctx, store.TableTasks)
	if err != nil {
		return nil, fmt.Errorf("read existing tasks: %w", err)
	}
	ids := make(map[string]bool, len(rows))
	for _, r := range rows {
		if id := r.ID(); id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}

// taskRow builds a pending task row from a resolved entry.
func taskRow(sourceID string, entry *resolver.Entry) store.Row {
	r := store.Row{
		store.ColID:         entry.ID,
		store.ColSourceID:   sourceID,
		store.ColURL:        entry.URL,
		store.ColStatus:     store.StatusPending.String(),
		store.ColRetryCount: "0",
	}
	if entry.Duration != nil {
		r[store.ColDuration] = strconv.FormatFloat(*entry.Duration, 'f', -1, 64)
	}
	return r
}
