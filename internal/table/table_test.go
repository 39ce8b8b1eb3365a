package table

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type item struct {
	ID    int
	Name  string
	Code  *string
	Price decimal.Decimal
}

func strPtr(s string) *string { return &s }

func itemColumns() []Column[item] {
	return []Column[item]{
		{Header: "ID", Key: "id", Accessor: func(i item) any { return i.ID }, Sortable: true},
		{Header: "Nombre", Key: "name", Accessor: func(i item) any { return i.Name }, Sortable: true},
		{Header: "Código", Key: "code", Accessor: func(i item) any { return i.Code }, Sortable: true},
		{Header: "Precio", Key: "price", Accessor: func(i item) any { return i.Price }, Sortable: true,
			Cell: func(i item) string { return "$" + i.Price.StringFixed(2) }},
		{Header: "Acciones", Key: "actions"},
	}
}

func makeItems(n int) []item {
	rows := make([]item, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, item{
			ID:    i,
			Name:  fmt.Sprintf("Producto %02d", i),
			Code:  strPtr(fmt.Sprintf("C-%d", i)),
			Price: decimal.NewFromInt(int64(i)),
		})
	}
	return rows
}

func ids(rows []item) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestEmptyRowsYieldOnePage(t *testing.T) {
	view := Derive(nil, itemColumns(), ViewState{PageIndex: 1, PageSize: 10})

	assert.Equal(t, 1, view.TotalPages)
	assert.Equal(t, 1, view.PageIndex)
	assert.Empty(t, view.Page)
	assert.Zero(t, view.Start)
	assert.Zero(t, view.End)
}

func TestPageSizeChangeResetsToFirstPage(t *testing.T) {
	tbl := New(itemColumns(), 10)
	tbl.SetRows(makeItems(25))

	assert.Equal(t, 3, tbl.View().TotalPages)
	tbl.GoToPage(3)
	assert.Equal(t, 3, tbl.State().PageIndex)
	assert.Equal(t, []int{21, 22, 23, 24, 25}, ids(tbl.View().Page))

	tbl.SetPageSize(100)
	view := tbl.View()
	assert.Equal(t, 1, view.TotalPages)
	assert.Equal(t, 1, tbl.State().PageIndex)
	assert.Len(t, view.Page, 25)
}

func TestTotalPagesBound(t *testing.T) {
	rows := makeItems(37)
	for _, size := range []int{1, 2, 5, 10, 36, 37, 38, 100} {
		for page := -1; page <= 40; page += 3 {
			view := Derive(rows, itemColumns(), ViewState{PageIndex: page, PageSize: size})
			want := max(1, (len(view.Filtered)+size-1)/size)
			assert.Equal(t, want, view.TotalPages, "size %d", size)
			assert.GreaterOrEqual(t, view.PageIndex, 1)
			assert.LessOrEqual(t, view.PageIndex, view.TotalPages)
			assert.LessOrEqual(t, len(view.Page), size)
		}
	}
}

func TestGoToPageClamps(t *testing.T) {
	tbl := New(itemColumns(), 10)
	tbl.SetRows(makeItems(25))

	tbl.GoToPage(99)
	assert.Equal(t, 3, tbl.State().PageIndex)
	tbl.GoToPage(-4)
	assert.Equal(t, 1, tbl.State().PageIndex)
	tbl.NextPage()
	tbl.NextPage()
	tbl.NextPage()
	assert.Equal(t, 3, tbl.State().PageIndex)
	tbl.PrevPage()
	assert.Equal(t, 2, tbl.State().PageIndex)

	view := tbl.View()
	assert.Equal(t, 11, view.Start)
	assert.Equal(t, 20, view.End)
	assert.Equal(t, 25, view.Total())
}

func TestSearchMatchesAnyColumnCaseInsensitive(t *testing.T) {
	rows := makeItems(12)
	rows[4].Name = "Café Molido"

	view := Derive(rows, itemColumns(), ViewState{SearchTerm: "CAFÉ", PageIndex: 1, PageSize: 10})
	assert.Equal(t, []int{5}, ids(view.Filtered))

	view = Derive(rows, itemColumns(), ViewState{SearchTerm: "c-1", PageIndex: 1, PageSize: 10})
	assert.Equal(t, []int{1, 10, 11, 12}, ids(view.Filtered))

	view = Derive(rows, itemColumns(), ViewState{SearchTerm: "zzz", PageIndex: 1, PageSize: 10})
	assert.Empty(t, view.Filtered)
	assert.Equal(t, 1, view.TotalPages)
}

func TestSearchShrinkingResultsResetsPage(t *testing.T) {
	tbl := New(itemColumns(), 5)
	tbl.SetRows(makeItems(25))
	tbl.GoToPage(4)

	tbl.SetSearchTerm("Producto 0")
	assert.Equal(t, 1, tbl.State().PageIndex)
	assert.Equal(t, 2, tbl.View().TotalPages)

	tbl.GoToPage(2)
	tbl.SetSearchTerm("Producto")
	assert.Equal(t, 2, tbl.State().PageIndex, "page stays when still in range")
}

func TestSortToggle(t *testing.T) {
	tbl := New(itemColumns(), 10)
	tbl.SetRows(makeItems(3))

	tbl.SetSort("name")
	assert.Equal(t, Asc, tbl.State().SortDirection)
	tbl.SetSort("name")
	assert.Equal(t, Desc, tbl.State().SortDirection)
	tbl.SetSort("name")
	assert.Equal(t, Asc, tbl.State().SortDirection)

	tbl.SetSort("name")
	tbl.SetSort("price")
	assert.Equal(t, "price", tbl.State().SortKey)
	assert.Equal(t, Asc, tbl.State().SortDirection)
}

func TestSortIgnoresNonSortableColumns(t *testing.T) {
	tbl := New(itemColumns(), 10)
	tbl.SetRows(makeItems(3))
	tbl.SetSort("id")
	tbl.SetSort("id")

	tbl.SetSort("actions")
	tbl.SetSort("missing")

	assert.Equal(t, "id", tbl.State().SortKey)
	assert.Equal(t, Desc, tbl.State().SortDirection)
	assert.Equal(t, []int{3, 2, 1}, ids(tbl.View().Sorted))
}

func TestSortNumericByMagnitude(t *testing.T) {
	rows := makeItems(12)
	view := Derive(rows, itemColumns(), ViewState{SortKey: "price", SortDirection: Desc, PageIndex: 1, PageSize: 20})
	assert.Equal(t, []int{12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, ids(view.Sorted))
}

func TestSortNilLastInBothDirections(t *testing.T) {
	rows := makeItems(4)
	rows[1].Code = nil
	rows[3].Code = nil

	asc := Derive(rows, itemColumns(), ViewState{SortKey: "code", SortDirection: Asc, PageIndex: 1, PageSize: 10})
	desc := Derive(rows, itemColumns(), ViewState{SortKey: "code", SortDirection: Desc, PageIndex: 1, PageSize: 10})

	assert.Equal(t, []int{1, 3, 2, 4}, ids(asc.Sorted))
	assert.Equal(t, []int{3, 1, 2, 4}, ids(desc.Sorted))
}

func TestSortLocaleAware(t *testing.T) {
	rows := []item{
		{ID: 1, Name: "zanahoria"},
		{ID: 2, Name: "Ñame"},
		{ID: 3, Name: "nuez"},
		{ID: 4, Name: "Árbol"},
		{ID: 5, Name: "oliva"},
	}
	view := Derive(rows, itemColumns(), ViewState{SortKey: "name", SortDirection: Asc, PageIndex: 1, PageSize: 10})
	assert.Equal(t, []int{4, 3, 2, 5, 1}, ids(view.Sorted))

	view = Derive(rows, itemColumns(), ViewState{SortKey: "name", SortDirection: Asc, PageIndex: 1, PageSize: 10},
		WithLocale(language.English))
	assert.Equal(t, 4, view.Sorted[0].ID)
}

func TestSortIsStableForTies(t *testing.T) {
	rows := []item{
		{ID: 1, Name: "b"},
		{ID: 2, Name: "a"},
		{ID: 3, Name: "b"},
		{ID: 4, Name: "a"},
	}
	asc := Derive(rows, itemColumns(), ViewState{SortKey: "name", SortDirection: Asc, PageIndex: 1, PageSize: 10})
	desc := Derive(rows, itemColumns(), ViewState{SortKey: "name", SortDirection: Desc, PageIndex: 1, PageSize: 10})

	assert.Equal(t, []int{2, 4, 1, 3}, ids(asc.Sorted))
	assert.Equal(t, []int{1, 3, 2, 4}, ids(desc.Sorted))
}

func TestDeriveDoesNotMutateRows(t *testing.T) {
	rows := makeItems(6)
	original := append([]item(nil), rows...)

	view := Derive(rows, itemColumns(), ViewState{SortKey: "id", SortDirection: Desc, PageIndex: 1, PageSize: 2})
	require.Len(t, view.Page, 2)
	view.Page[0].Name = "changed"
	view.Sorted[1].Name = "changed"

	assert.Equal(t, original, rows)
}

func TestRender(t *testing.T) {
	cols := itemColumns()
	row := item{ID: 7, Name: "Pan", Price: decimal.RequireFromString("3.5")}

	assert.Equal(t, "7", cols[0].Render(row))
	assert.Equal(t, "", cols[2].Render(row))
	assert.Equal(t, "$3.50", cols[3].Render(row))
	assert.Equal(t, "", cols[4].Render(row))
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, Desc, ParseDirection(" DESC "))
	assert.Equal(t, Asc, ParseDirection("asc"))
	assert.Equal(t, Asc, ParseDirection(""))
}
