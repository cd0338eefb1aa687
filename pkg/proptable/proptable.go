// Package proptable provides an immutable, ordered table of named per-row
// columns. Every column in a table has the same length (the table's row
// count); keys preserve insertion order for iteration. Tables are the
// property store behind vertex sets, tesselations, and meshes.
//
// All mutating operations (With, Without, Merge, ...) return a new table and
// never modify the receiver; unaffected cells are shared between the old and
// new table. Cells may be lazy: the column value is computed on first access
// and cached, which is safe under concurrent readers.
package proptable

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRowCount is returned when a column's length does not match the table's
// row count.
var ErrRowCount = errors.New("proptable: column length does not match table row count")

// cell holds one column, possibly lazily computed. A cell is shared between
// every table derived from the one that introduced it, so a lazy value is
// computed at most once across all of them.
type cell struct {
	once sync.Once
	fn   func() Column
	col  Column
	n    int // declared length, checked when a lazy fn resolves
}

func (c *cell) resolve() Column {
	c.once.Do(func() {
		if c.fn != nil {
			c.col = c.fn()
			c.fn = nil
			if c.col.Len() != c.n {
				panic(fmt.Sprintf("proptable: lazy column resolved to length %d, declared %d",
					c.col.Len(), c.n))
			}
		}
	})
	return c.col
}

// Table is an immutable ordered mapping from string keys to columns.
// The zero value is not usable; call New.
type Table struct {
	keys  []string
	cells map[string]*cell
	rows  int
	fixed bool // rows has been established by the first column
}

// New returns an empty table. The row count is established by the first
// column added.
func New() *Table {
	return &Table{cells: map[string]*cell{}}
}

// clone copies the key order and cell map; the cells themselves are shared.
func (t *Table) clone() *Table {
	nt := &Table{
		keys:  make([]string, len(t.keys)),
		cells: make(map[string]*cell, len(t.cells)),
		rows:  t.rows,
		fixed: t.fixed,
	}
	copy(nt.keys, t.keys)
	for k, v := range t.cells {
		nt.cells[k] = v
	}
	return nt
}

// RowCount reports the common length of every column in the table. An empty
// table reports 0.
func (t *Table) RowCount() int { return t.rows }

// Len reports the number of columns.
func (t *Table) Len() int { return len(t.keys) }

// Keys returns the column keys in insertion order.
func (t *Table) Keys() []string {
	ks := make([]string, len(t.keys))
	copy(ks, t.keys)
	return ks
}

// Has reports whether the table contains the given key.
func (t *Table) Has(key string) bool {
	_, ok := t.cells[key]
	return ok
}

// Get returns the column stored under key. Lazy cells are resolved and
// cached on first access.
func (t *Table) Get(key string) (Column, bool) {
	c, ok := t.cells[key]
	if !ok {
		return Column{}, false
	}
	return c.resolve(), true
}

// With returns a new table with the given column added or replaced.
func (t *Table) With(key string, col Column) (*Table, error) {
	if t.fixed && col.Len() != t.rows {
		return nil, fmt.Errorf("%w: %q has %d rows, table has %d", ErrRowCount, key, col.Len(), t.rows)
	}
	nt := t.clone()
	if !nt.fixed {
		nt.rows = col.Len()
		nt.fixed = true
	}
	if _, exists := nt.cells[key]; !exists {
		nt.keys = append(nt.keys, key)
	}
	nt.cells[key] = &cell{col: col, n: col.Len()}
	return nt, nil
}

// WithLazy returns a new table whose key resolves to fn() on first access.
// The declared length n must match the table's row count, and fn must return
// a column of exactly that length.
func (t *Table) WithLazy(key string, n int, fn func() Column) (*Table, error) {
	if t.fixed && n != t.rows {
		return nil, fmt.Errorf("%w: %q declares %d rows, table has %d", ErrRowCount, key, n, t.rows)
	}
	nt := t.clone()
	if !nt.fixed {
		nt.rows = n
		nt.fixed = true
	}
	if _, exists := nt.cells[key]; !exists {
		nt.keys = append(nt.keys, key)
	}
	nt.cells[key] = &cell{fn: fn, n: n}
	return nt, nil
}

// Without returns a new table with the given key removed. Removing a missing
// key returns the receiver unchanged.
func (t *Table) Without(key string) *Table {
	if _, ok := t.cells[key]; !ok {
		return t
	}
	nt := t.clone()
	delete(nt.cells, key)
	for i, k := range nt.keys {
		if k == key {
			nt.keys = append(nt.keys[:i], nt.keys[i+1:]...)
			break
		}
	}
	return nt
}

// Merge returns a new table containing the receiver's columns overlaid with
// the columns of o. Keys from o that already exist keep their position;
// new keys append in o's order.
func (t *Table) Merge(o *Table) (*Table, error) {
	if o == nil || o.Len() == 0 {
		return t, nil
	}
	nt := t
	var err error
	for _, k := range o.keys {
		oc := o.cells[k]
		if oc.fn != nil {
			nt, err = nt.WithLazy(k, oc.n, oc.resolve)
		} else {
			nt, err = nt.With(k, oc.col)
		}
		if err != nil {
			return nil, err
		}
	}
	return nt, nil
}

// Select returns a new table restricted to the given rows, in the given
// order. Lazy cells are resolved by selection.
func (t *Table) Select(rows []int) (*Table, error) {
	nt := New()
	var err error
	for _, k := range t.keys {
		col := t.cells[k].resolve()
		sel, serr := col.Select(rows)
		if serr != nil {
			return nil, serr
		}
		nt, err = nt.With(k, sel)
		if err != nil {
			return nil, err
		}
	}
	return nt, nil
}

// Row is a read-only view of one row of a table, used by predicates.
type Row struct {
	t *Table
	i int
}

// Row returns a view of row i. The index is not bounds-checked here; the
// accessors report missing values.
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

// Index reports the row index of the view.
func (r Row) Index() int { return r.i }

// Value returns the row's value under key as an interface, or false when the
// key is missing or the index is out of range.
func (r Row) Value(key string) (interface{}, bool) {
	col, ok := r.t.Get(key)
	if !ok || r.i < 0 || r.i >= col.Len() {
		return nil, false
	}
	return col.Value(r.i), true
}

// Float returns the row's value under key as a float64. Non-numeric columns
// and missing keys report false.
func (r Row) Float(key string) (float64, bool) {
	col, ok := r.t.Get(key)
	if !ok || !col.IsNumeric() || r.i < 0 || r.i >= col.Len() {
		return 0, false
	}
	return col.floatAt(r.i), true
}
