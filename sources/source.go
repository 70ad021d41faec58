package sources

import (
	"strconv"

	"github.com/vodkit/vodkit/store"
)

// Source is one row of the Sources table. Columns the coordinator does not
// interpret (Accent, Type, anything operators add) ride along in Extra.
type Source struct {
	ID         string
	URL        string
	Status     store.Status
	RetryCount int
	LastError  string
	Extra      map[string]string
}

// knownSourceColumns are the columns FromRow lifts into struct fields.
var knownSourceColumns = map[string]bool{
	store.ColID:         true,
	store.ColURL:        true,
	store.ColStatus:     true,
	store.ColClaimedBy:  true,
	store.ColClaimedAt:  true,
	store.ColRetryCount: true,
	store.ColLastError:  true,
}

// FromRow builds a Source from a store row.
func FromRow(r store.Row) Source {
	s := Source{
		ID:         r.ID(),
		URL:        r.URL(),
		Status:     r.Status(),
		RetryCount: r.RetryCount(),
		LastError:  r[store.ColLastError],
	}
	for col, val := range r {
		if knownSourceColumns[col] {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]string)
		}
		s.Extra[col] = val
	}
	return s
}

// ToRow converts the source back to a store row. Claim columns are left
// empty; only the claim protocol writes them.
func (s Source) ToRow() store.Row {
	r := store.Row{
		store.ColID:     s.ID,
		store.ColURL:    s.URL,
		store.ColStatus: s.Status.String(),
	}
	if s.RetryCount > 0 {
		r[store.ColRetryCount] = strconv.Itoa(s.RetryCount)
	}
	if s.LastError != "" {
		r[store.ColLastError] = s.LastError
	}
	for col, val := range s.Extra {
		r[col] = val
	}
	return r
}
