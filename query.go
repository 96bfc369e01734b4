package propbooks

import (
	"sort"
	"strconv"
	"strings"

	"github.com/propbooks/propbooks-go/internal/util"
)

// Query describes one list view: filters, free-text search, ordering and
// pagination. Two queries with the same canonical form share a cache entry.
type Query struct {
	Filters  map[string]string
	Search   string
	Sort     string // e.g. "due_date" or "-due_date"
	Page     int    // 1-based; 0 = unpaginated
	PageSize int    // 0 = unpaginated
}

// Paged reports whether the query asks for a page rather than the full list.
func (q Query) Paged() bool { return q.PageSize > 0 }

// WithoutPage strips pagination, keeping filters, search and sort.
func (q Query) WithoutPage() Query {
	q.Page, q.PageSize = 0, 0
	return q
}

// Canonical renders the query deterministically: filter keys sorted, then the
// reserved _q/_sort/_page/_size parameters.
func (q Query) Canonical() string {
	parts := make([]string, 0, len(q.Filters)+4)

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+q.Filters[k])
	}

	if q.Search != "" {
		parts = append(parts, "_q="+q.Search)
	}
	if q.Sort != "" {
		parts = append(parts, "_sort="+q.Sort)
	}
	if q.Page > 0 {
		parts = append(parts, "_page="+strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		parts = append(parts, "_size="+strconv.Itoa(q.PageSize))
	}
	return strings.Join(parts, "&")
}

// Key is the storage key for this query's entry, hashed to stay bounded.
func (q Query) Key() string {
	return util.QueryKey("q", q.Canonical())
}
