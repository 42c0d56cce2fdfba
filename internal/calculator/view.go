package calculator

import (
	"fmt"
	"sort"

	"PredictionLedger/internal/model"
)

// Column names a sortable field of a normalized point.
type Column string

const (
	ColumnTimestamp     Column = "timestamp"
	ColumnOpen          Column = "open"
	ColumnHigh          Column = "high"
	ColumnLow           Column = "low"
	ColumnClose         Column = "close"
	ColumnVolume        Column = "volume"
	ColumnChangePercent Column = "change_percent"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// DefaultPageWindow is the number of page links shown around the current page.
const DefaultPageWindow = 5

// less returns the strict ordering for a column, or nil if unknown.
func less(col Column) func(a, b *model.NormalizedPoint) bool {
	switch col {
	case ColumnTimestamp:
		return func(a, b *model.NormalizedPoint) bool { return a.Timestamp.Before(b.Timestamp) }
	case ColumnOpen:
		return func(a, b *model.NormalizedPoint) bool { return a.Open < b.Open }
	case ColumnHigh:
		return func(a, b *model.NormalizedPoint) bool { return a.High < b.High }
	case ColumnLow:
		return func(a, b *model.NormalizedPoint) bool { return a.Low < b.Low }
	case ColumnClose:
		return func(a, b *model.NormalizedPoint) bool { return a.Close < b.Close }
	case ColumnVolume:
		return func(a, b *model.NormalizedPoint) bool { return a.Volume < b.Volume }
	case ColumnChangePercent:
		return func(a, b *model.NormalizedPoint) bool { return a.ChangePercent < b.ChangePercent }
	}
	return nil
}

// SortBy returns a stably sorted copy of series. Ties keep their input order
// in both directions. The input slice is left untouched.
func SortBy(series []model.NormalizedPoint, col Column, dir SortDirection) ([]model.NormalizedPoint, error) {
	lt := less(col)
	if lt == nil {
		return nil, fmt.Errorf("sort by %q: %w", col, model.ErrInvalidRange)
	}
	if dir != Asc && dir != Desc {
		return nil, fmt.Errorf("sort direction %q: %w", dir, model.ErrInvalidRange)
	}

	out := make([]model.NormalizedPoint, len(series))
	copy(out, series)
	sort.SliceStable(out, func(i, j int) bool {
		if dir == Desc {
			return lt(&out[j], &out[i])
		}
		return lt(&out[i], &out[j])
	})
	return out, nil
}

// SortState is the caller-owned toggle state of a sortable table.
type SortState struct {
	Column    Column
	Direction SortDirection
}

// Toggle flips the direction when col is already active and otherwise
// switches to col ascending.
func (s SortState) Toggle(col Column) SortState {
	if s.Column == col {
		if s.Direction == Asc {
			return SortState{Column: col, Direction: Desc}
		}
		return SortState{Column: col, Direction: Asc}
	}
	return SortState{Column: col, Direction: Asc}
}

// Page is one page of a series.
type Page struct {
	Items      []model.NormalizedPoint `json:"items"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	TotalItems int                     `json:"total_items"`
	TotalPages int                     `json:"total_pages"`
}

// TotalPages returns ceil(length / pageSize).
func TotalPages(length, pageSize int) int {
	if pageSize < 1 || length == 0 {
		return 0
	}
	return (length + pageSize - 1) / pageSize
}

// Paginate returns the 1-indexed page of series. An empty series has zero
// pages and yields an empty page for any request; otherwise a page outside
// [1, TotalPages] is rejected rather than clamped.
func Paginate(series []model.NormalizedPoint, page, pageSize int) (Page, error) {
	if pageSize < 1 {
		return Page{}, fmt.Errorf("page size %d: %w", pageSize, model.ErrInvalidRange)
	}
	p := Page{
		Items:      []model.NormalizedPoint{},
		Page:       page,
		PageSize:   pageSize,
		TotalItems: len(series),
		TotalPages: TotalPages(len(series), pageSize),
	}
	if p.TotalPages == 0 {
		return p, nil
	}
	if page < 1 || page > p.TotalPages {
		return Page{}, fmt.Errorf("page %d of %d: %w", page, p.TotalPages, model.ErrInvalidRange)
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(series) {
		end = len(series)
	}
	p.Items = append(p.Items, series[start:end]...)
	return p, nil
}

// PageWindow returns up to maxVisible page numbers centred on current.
func PageWindow(current, total, maxVisible int) []int {
	if total <= 0 || maxVisible <= 0 {
		return nil
	}
	start := current - maxVisible/2
	if start < 1 {
		start = 1
	}
	end := start + maxVisible - 1
	if end > total {
		end = total
	}
	if end-start < maxVisible-1 {
		start = end - maxVisible + 1
		if start < 1 {
			start = 1
		}
	}

	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}
