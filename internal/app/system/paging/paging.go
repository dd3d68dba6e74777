// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows shown in paged lists.
const PageSize = 50

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	s := query.Get(r, "start")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start     int  `json:"start"` // 1-based start index (0 if no results)
	End       int  `json:"end"`   // 1-based end index (0 if no results)
	Total     int  `json:"total"`
	PrevStart int  `json:"prev_start"` // start value for previous page link
	NextStart int  `json:"next_start"` // start value for next page link
	HasPrev   bool `json:"has_prev"`
	HasNext   bool `json:"has_next"`
}

// ComputeRange calculates display range values given the current start
// index, number of items shown, total rows and page size.
func ComputeRange(start, shown, total, pageSize int) Range {
	if shown == 0 {
		return Range{Total: total, PrevStart: 1, NextStart: 1, HasPrev: start > 1}
	}

	prevStart := start - pageSize
	if prevStart < 1 {
		prevStart = 1
	}
	end := start + shown - 1

	return Range{
		Start:     start,
		End:       end,
		Total:     total,
		PrevStart: prevStart,
		NextStart: end + 1,
		HasPrev:   start > 1,
		HasNext:   end < total,
	}
}

// Page returns the window of rows beginning at the 1-based start index.
// A start past the end yields an empty page.
func Page[T any](rows []T, start, pageSize int) ([]T, Range) {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	if start < 1 {
		start = 1
	}
	total := len(rows)
	if start > total {
		return []T{}, ComputeRange(start, 0, total, pageSize)
	}
	end := start - 1 + pageSize
	if end > total {
		end = total
	}
	window := rows[start-1 : end]
	return window, ComputeRange(start, len(window), total, pageSize)
}
