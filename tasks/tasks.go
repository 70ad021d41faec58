package tasks

import (
	"strconv"

	"github.com/vodkit/vodkit/store"
)

// FatalSubstrings are the failure-message fragments that quarantine a task
// immediately instead of consuming a retry. They match the messages the
// video extractor emits for content that will never become downloadable.
var FatalSubstrings = []string{
	"Sign in to confirm your age",
	"Private video",
	"Video unavailable",
	"This video is not available",
	"This live event has ended",
	"This live stream recording is not available",
	"The uploader has not made this video available in your country",
	"This video has been removed for violating YouTube's Terms of Service",
	"This video is no longer available",
}

// Task is one row of the Video Tasks table.
type Task struct {
	ID         string
	SourceID   string
	URL        string
	Status     store.Status
	RetryCount int
	Duration   string
	LastError  string
}

// FromRow builds a Task from a store row.
func FromRow(r store.Row) Task {
	return Task{
		ID:         r.ID(),
		SourceID:   r[store.ColSourceID],
		URL:        r.URL(),
		Status:     r.Status(),
		RetryCount: r.RetryCount(),
		Duration:   r[store.ColDuration],
		LastError:  r[store.ColLastError],
	}
}

// ToRow converts the task back to a store row. Claim columns are left
// empty; only the claim protocol writes them.
func (t Task) ToRow() store.Row {
	r := store.Row{
		store.ColID:         t.ID,
		store.ColSourceID:   t.SourceID,
		store.ColURL:        t.URL,
		store.ColStatus:     t.Status.String(),
		store.ColRetryCount: strconv.Itoa(t.RetryCount),
	}
	if t.Duration != "" {
		r[store.ColDuration] = t.Duration
	}
	if t.LastError != "" {
		r[store.ColLastError] = t.LastError
	}
	return r
}
