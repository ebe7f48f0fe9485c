package domain

import (
	"fmt"
	"strings"
)

// SearchStatus distinguishes an empty in-range result from a refused query.
type SearchStatus string

const (
	SearchOK         SearchStatus = "ok"
	SearchNoMatches  SearchStatus = "no_matches"
	SearchOutOfRange SearchStatus = "out_of_range"
)

// SearchRequest is a single bounded, paginated, text-filtered query.
// Build it with NewSearchRequest; it is not mutated afterwards.
type SearchRequest struct {
	Bounds     ViewportBounds `json:"bounds"`
	TextQuery  string         `json:"text_query,omitempty"`
	PageNumber int            `json:"page_number"`
	PageSize   int            `json:"page_size"`
}

// NewSearchRequest validates and normalises a search request.
func NewSearchRequest(bounds ViewportBounds, textQuery string, pageNumber, pageSize int) (SearchRequest, error) {
	if err := bounds.ValidateWrapped(); err != nil {
		return SearchRequest{}, err
	}
	if pageSize <= 0 {
		return SearchRequest{}, fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidPage, pageSize)
	}
	if pageNumber < 1 {
		return SearchRequest{}, fmt.Errorf("%w: page number must be >= 1, got %d", ErrInvalidPage, pageNumber)
	}
	return SearchRequest{
		Bounds:     bounds,
		TextQuery:  strings.TrimSpace(textQuery),
		PageNumber: pageNumber,
		PageSize:   pageSize,
	}, nil
}

// Page converts the request's page number and size into skip/limit.
func (r SearchRequest) Page() Page {
	return Page{Skip: (r.PageNumber - 1) * r.PageSize, Limit: r.PageSize}
}

// SearchResult is the outcome of one executed SearchRequest. Businesses are
// in store order; ranking is applied by the caller.
type SearchResult struct {
	Businesses  []Business   `json:"data"`
	Status      SearchStatus `json:"status"`
	PageNumber  int          `json:"page"`
	PageSize    int          `json:"page_size"`
	HasNextPage bool         `json:"has_next_page"`
}

// Page is an offset window into a result set.
type Page struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// SortOrder selects the ordering a store applies before paging.
type SortOrder string

const (
	SortNone            SortOrder = ""
	SortClickCountDesc  SortOrder = "click_count_desc"
	SortLastClickedDesc SortOrder = "last_clicked_desc"
)

// BusinessFilter is the typed predicate handed to a BusinessRepository.
// Zero-valued fields do not constrain the result.
type BusinessFilter struct {
	LatRange     *Range
	LongRanges   []Range // OR-ed; two ranges when a box crosses the antimeridian
	NameContains string  // case-insensitive substring
	IDs          []string
	ClickedOnly  bool
	Sort         SortOrder
}

// FilterForBounds builds a filter selecting records strictly inside b.
func FilterForBounds(b ViewportBounds, nameContains string) BusinessFilter {
	return BusinessFilter{
		LatRange:     &Range{Min: b.MinLat, Max: b.MaxLat},
		LongRanges:   b.LongitudeRanges(),
		NameContains: nameContains,
	}
}

// Validate rejects inverted ranges and unknown sort orders.
func (f BusinessFilter) Validate() error {
	if f.LatRange != nil && !(f.LatRange.Min < f.LatRange.Max) {
		return fmt.Errorf("%w: latitude range [%v, %v]", ErrInvalidFilter, f.LatRange.Min, f.LatRange.Max)
	}
	for _, r := range f.LongRanges {
		if !(r.Min < r.Max) {
			return fmt.Errorf("%w: longitude range [%v, %v]", ErrInvalidFilter, r.Min, r.Max)
		}
	}
	switch f.Sort {
	case SortNone, SortClickCountDesc, SortLastClickedDesc:
	default:
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, f.Sort)
	}
	return nil
}
