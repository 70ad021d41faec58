package resolver

import (
	"context"
	"errors"
)

// Common errors.
var (
	// ErrEmptyURL is returned when Resolve is given a blank URL.
	ErrEmptyURL = errors.New("source URL is empty")
)

// Entry is a single resolved video.
type Entry struct {
	// ID is the provider's stable video identifier. Used as the task ID.
	ID string

	// URL is the direct watch URL for the video.
	URL string

	// Title is the video title, when the provider reports one.
	Title string

	// Duration is the video length in seconds, when known. Flat playlist
	// extraction often omits it, so it may be nil.
	Duration *float64
}

// Stream yields resolved entries one at a time.
//
// Next returns io.EOF after the final entry. A stream is not restartable;
// once Next returns an error the stream is exhausted. Close releases the
// underlying resources and must be called exactly once.
type Stream interface {
	Next(ctx context.Context) (*Entry, error)
	Close() error
}

// Resolver expands a source URL into a stream of video entries.
type Resolver interface {
	Resolve(ctx context.Context, url string) (Stream, error)
}
