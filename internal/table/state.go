package table

// Table owns a row collection, its columns and the current view state.
// A Table belongs to one view and is not safe for concurrent use.
type Table[R any] struct {
	rows    []R
	columns []Column[R]
	state   ViewState
	opts    []Option
}

func New[R any](columns []Column[R], pageSize int, opts ...Option) *Table[R] {
	return &Table[R]{
		columns: columns,
		state: ViewState{
			SortDirection: Asc,
			PageIndex:     1,
			PageSize:      max(pageSize, 1),
		},
		opts: opts,
	}
}

func (t *Table[R]) Columns() []Column[R] {
	return t.columns
}

func (t *Table[R]) State() ViewState {
	return t.state
}

// SetRows replaces the row collection, e.g. after a refetch.
func (t *Table[R]) SetRows(rows []R) {
	t.rows = rows
	t.settle()
}

func (t *Table[R]) SetSearchTerm(term string) {
	t.state.SearchTerm = term
	t.settle()
}

// SetSort sorts by key, toggling the direction when key is already active.
// Unknown and non-sortable keys are ignored.
func (t *Table[R]) SetSort(key string) {
	if _, ok := sortableColumn(t.columns, key); !ok {
		return
	}
	if t.state.SortKey == key {
		if t.state.SortDirection == Asc {
			t.state.SortDirection = Desc
		} else {
			t.state.SortDirection = Asc
		}
	} else {
		t.state.SortKey = key
		t.state.SortDirection = Asc
	}
	t.settle()
}

// SetPageSize changes the page size and returns to the first page.
func (t *Table[R]) SetPageSize(size int) {
	t.state.PageSize = max(size, 1)
	t.state.PageIndex = 1
}

// GoToPage moves to page n, clamped into [1, TotalPages].
func (t *Table[R]) GoToPage(n int) {
	total := t.View().TotalPages
	t.state.PageIndex = min(max(n, 1), total)
}

func (t *Table[R]) NextPage() {
	t.GoToPage(t.state.PageIndex + 1)
}

func (t *Table[R]) PrevPage() {
	t.GoToPage(t.state.PageIndex - 1)
}

func (t *Table[R]) View() View[R] {
	return Derive(t.rows, t.columns, t.state, t.opts...)
}

// settle resets the page index to 1 when the result no longer reaches it.
func (t *Table[R]) settle() {
	t.state.PageIndex = t.View().PageIndex
}
