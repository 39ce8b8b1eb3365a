// Package table derives the visible page of a row collection: case-insensitive
// search over every column, single-key sort, and pagination. The input rows are
// never modified.
package table

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps user input to a Direction, defaulting to Asc.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(Desc)) {
		return Desc
	}
	return Asc
}

// Column describes how to read, render and sort one field of R.
type Column[R any] struct {
	Header   string
	Key      string
	Accessor func(R) any
	Sortable bool
	// Cell overrides the default rendering of the accessor value.
	Cell func(R) string
}

func (c Column[R]) value(row R) any {
	if c.Accessor == nil {
		return nil
	}
	return deref(c.Accessor(row))
}

// Render returns the display text for row in this column.
func (c Column[R]) Render(row R) string {
	if c.Cell != nil {
		return c.Cell(row)
	}
	v := c.value(row)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// ViewState is the user-controlled part of a table. PageIndex is 1-based.
type ViewState struct {
	SearchTerm    string
	SortKey       string
	SortDirection Direction
	PageIndex     int
	PageSize      int
}

// View is the derived output for one ViewState.
type View[R any] struct {
	Filtered   []R
	Sorted     []R
	Page       []R
	TotalPages int
	PageIndex  int
	// Start and End are the 1-based positions of the first and last row of
	// Page within Sorted, both zero when there are no rows.
	Start int
	End   int
}

func (v View[R]) Total() int {
	return len(v.Sorted)
}

type options struct {
	locale language.Tag
}

type Option func(*options)

// WithLocale sets the collation used for string columns.
func WithLocale(tag language.Tag) Option {
	return func(o *options) {
		o.locale = tag
	}
}

func buildOptions(opts []Option) options {
	o := options{locale: language.MustParse("es-MX")}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Derive computes filtered, sorted and paged rows for state. A page index
// outside [1, TotalPages] falls back to the first page.
func Derive[R any](rows []R, columns []Column[R], state ViewState, opts ...Option) View[R] {
	o := buildOptions(opts)

	filtered := filterRows(rows, columns, state.SearchTerm)
	sorted := sortRows(filtered, columns, state.SortKey, state.SortDirection, newComparer(o.locale))

	pageSize := max(state.PageSize, 1)
	totalPages := max(1, (len(sorted)+pageSize-1)/pageSize)
	pageIndex := state.PageIndex
	if pageIndex < 1 || pageIndex > totalPages {
		pageIndex = 1
	}

	start := (pageIndex - 1) * pageSize
	end := min(start+pageSize, len(sorted))
	view := View[R]{
		Filtered:   filtered,
		Sorted:     sorted,
		Page:       sorted[start:end:end],
		TotalPages: totalPages,
		PageIndex:  pageIndex,
	}
	if end > start {
		view.Start = start + 1
		view.End = end
	}
	return view
}

func filterRows[R any](rows []R, columns []Column[R], term string) []R {
	if term == "" {
		return slices.Clone(rows)
	}
	folder := cases.Fold()
	needle := folder.String(term)

	out := make([]R, 0, len(rows))
	for _, row := range rows {
		for _, col := range columns {
			v := col.value(row)
			if v == nil {
				continue
			}
			if strings.Contains(folder.String(fmt.Sprint(v)), needle) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

func sortRows[R any](rows []R, columns []Column[R], key string, dir Direction, cmp *comparer) []R {
	col, ok := sortableColumn(columns, key)
	if !ok {
		return rows
	}
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b R) int {
		av, bv := col.value(a), col.value(b)
		switch {
		case av == nil && bv == nil:
			return 0
		case av == nil:
			return 1
		case bv == nil:
			return -1
		}
		c := cmp.compare(av, bv)
		if dir == Desc {
			return -c
		}
		return c
	})
	return sorted
}

func sortableColumn[R any](columns []Column[R], key string) (Column[R], bool) {
	if key == "" {
		return Column[R]{}, false
	}
	for _, col := range columns {
		if col.Key == key {
			return col, col.Sortable
		}
	}
	return Column[R]{}, false
}
