package resolver

import (
	"context"
	"io"
)

// Func adapts a function to the Resolver interface.
type Func func(ctx context.Context, url string) (Stream, error)

// Resolve calls f.
func (f Func) Resolve(ctx context.Context, url string) (Stream, error) {
	return f(ctx, url)
}

// FromEntries returns a stream over a fixed slice of entries. Useful for
// tests and for sources that are already expanded.
func FromEntries(entries ...Entry) Stream {
	return &sliceStream{entries: entries}
}

type sliceStream struct {
	entries []Entry
	pos     int
	closed  bool
}

func (s *sliceStream) Next(ctx context.Context) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.pos >= len(s.entries) {
		return nil, io.EOF
	}
	e := s.entries[s.pos]
	s.pos++
	return &e, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}
