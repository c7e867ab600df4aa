package pagination

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Page is an offset window over an ordered result set
type Page struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Skip    int  `json:"skip"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

var (
	ErrInvalidSkip  = errors.New("skip must be a non-negative integer")
	ErrInvalidLimit = errors.New("limit must be a positive integer")
)

// FromQuery reads skip and limit from query values. Missing values fall back
// to zero skip and defaultLimit. Upper bounds are left to the caller.
func FromQuery(values url.Values, defaultLimit int) (Page, error) {
	page := Page{Limit: defaultLimit}

	if raw := strings.TrimSpace(values.Get("skip")); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return Page{}, ErrInvalidSkip
		}
		page.Skip = skip
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return Page{}, ErrInvalidLimit
		}
		page.Limit = limit
	}

	return page, nil
}

// Values encodes the page back into query values
func (p Page) Values() url.Values {
	v := url.Values{}
	v.Set("skip", strconv.Itoa(p.Skip))
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	return v
}

// NewPageResult wraps one page of items with its window and the filtered total
func NewPageResult[T any](items []T, total, skip, limit int) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items:   items,
		Total:   total,
		Skip:    skip,
		Limit:   limit,
		HasMore: skip+len(items) < total,
	}
}
