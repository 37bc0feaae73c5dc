package model

import (
	"maps"
	"strconv"
	"strings"
)

// Page size bounds accepted by the scheduler's paginator.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Filters constrain a listing. Keys are backend query parameter names.
type Filters map[string]string

// Known filter keys.
const (
	FilterStatus        = "status"
	FilterLastRunStatus = "last_run_status"
	FilterBackend       = "backend"
	FilterCategory      = "category"
	FilterURI           = "uri"
	FilterOrdering      = "ordering"
)

// Normalize returns a copy without empty values and without a status
// constraint equal to StatusAll.
func (f Filters) Normalize() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if k == FilterStatus && strings.EqualFold(v, StatusAll) {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (f Filters) Clone() Filters {
	if f == nil {
		return Filters{}
	}
	return maps.Clone(f)
}

// Equal reports whether both filter sets normalize to the same constraints.
func (f Filters) Equal(other Filters) bool {
	return maps.Equal(f.Normalize(), other.Normalize())
}

// Query is a page request.
type Query struct {
	Page    int
	Size    int
	Filters Filters
}

// DefaultQuery returns the first page with the default size and no filters.
func DefaultQuery() Query {
	return Query{Page: 1, Size: DefaultPageSize, Filters: Filters{}}
}

// Clamp enforces page >= 1 and size within [1, MaxPageSize].
func (q *Query) Clamp() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
}

// Values renders the query as URL query parameters, normalizing filters.
func (q Query) Values() map[string]string {
	q.Clamp()
	v := map[string]string{
		"page": strconv.Itoa(q.Page),
		"size": strconv.Itoa(q.Size),
	}
	for k, val := range q.Filters.Normalize() {
		v[k] = val
	}
	return v
}

// Page is one fetched slice of a paginated, filtered listing.
type Page[T any] struct {
	Items      []T
	Number     int
	TotalPages int
	TotalCount int
	Size       int
	Filters    Filters
}

// InRange reports whether Number lies in [1, TotalPages] (or the listing is
// empty) and the item count respects the page size.
func (p Page[T]) InRange() bool {
	if p.Size > 0 && len(p.Items) > p.Size {
		return false
	}
	if p.TotalCount == 0 {
		return true
	}
	return p.Number >= 1 && p.Number <= p.TotalPages
}

// Empty reports whether the page carries no items.
func (p Page[T]) Empty() bool {
	return len(p.Items) == 0
}

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool {
	return p.Number < p.TotalPages
}

// ListResponse is the wire shape of list endpoints.
type ListResponse[T any] struct {
	Results    []T `json:"results"`
	Count      int `json:"count"`
	TotalPages int `json:"total_pages"`
	Page       int `json:"page"`
}

// ToPage converts the wire shape into a Page.
func (r ListResponse[T]) ToPage(q Query) Page[T] {
	items := r.Results
	if items == nil {
		items = []T{}
	}
	number := r.Page
	if number == 0 {
		number = q.Page
	}
	return Page[T]{
		Items:      items,
		Number:     number,
		TotalPages: r.TotalPages,
		TotalCount: r.Count,
		Size:       q.Size,
		Filters:    q.Filters.Normalize(),
	}
}

// MessageResponse is the body of mutation replies and error replies.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Code    string `json:"code,omitempty"`
	UUID    string `json:"uuid,omitempty"`
}

// Text returns whichever message field the backend filled in.
func (m MessageResponse) Text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Detail
}

// LogsResponse is the body of the job logs endpoint.
type LogsResponse struct {
	Logs []string `json:"logs"`
}
