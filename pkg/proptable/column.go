package proptable

import (
	"errors"
	"fmt"
	"math"
)

// Kind discriminates the value type held by a Column.
type Kind int

const (
	Float Kind = iota
	Int
	String
	Bool
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	case String:
		return "string"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ErrRowRange is returned by Select for out-of-range row indices.
var ErrRowRange = errors.New("proptable: row index out of range")

// Column is an immutable fixed-length array of one of four value kinds.
// Constructors copy their input; accessors copy their output, so a Column
// can be shared freely.
type Column struct {
	kind Kind
	f    []float64
	i    []int64
	s    []string
	b    []bool
}

// Floats returns a float column holding a copy of v.
func Floats(v []float64) Column {
	c := make([]float64, len(v))
	copy(c, v)
	return Column{kind: Float, f: c}
}

// Ints returns an integer column holding a copy of v.
func Ints(v []int64) Column {
	c := make([]int64, len(v))
	copy(c, v)
	return Column{kind: Int, i: c}
}

// Strings returns a string column holding a copy of v.
func Strings(v []string) Column {
	c := make([]string, len(v))
	copy(c, v)
	return Column{kind: String, s: c}
}

// Bools returns a boolean column holding a copy of v.
func Bools(v []bool) Column {
	c := make([]bool, len(v))
	copy(c, v)
	return Column{kind: Bool, b: c}
}

// Kind reports the column's value kind.
func (c Column) Kind() Kind { return c.kind }

// Len reports the number of rows in the column.
func (c Column) Len() int {
	switch c.kind {
	case Float:
		return len(c.f)
	case Int:
		return len(c.i)
	case String:
		return len(c.s)
	case Bool:
		return len(c.b)
	}
	return 0
}

// IsNumeric reports whether the column can be viewed as float64 values.
// Bool columns are numeric (0/1).
func (c Column) IsNumeric() bool { return c.kind != String }

// IsFloat reports whether the column holds floating-point values. Used by
// automatic interpolation-method selection: float fields interpolate
// linearly, everything else by nearest vertex.
func (c Column) IsFloat() bool { return c.kind == Float }

func (c Column) floatAt(i int) float64 {
	switch c.kind {
	case Float:
		return c.f[i]
	case Int:
		return float64(c.i[i])
	case Bool:
		if c.b[i] {
			return 1
		}
		return 0
	}
	return math.NaN()
}

// Float64s returns the column's values as a fresh []float64. Non-numeric
// columns report false.
func (c Column) Float64s() ([]float64, bool) {
	if !c.IsNumeric() {
		return nil, false
	}
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.floatAt(i)
	}
	return out, true
}

// StringsValue returns the column's values as a fresh []string. Non-string
// columns report false.
func (c Column) StringsValue() ([]string, bool) {
	if c.kind != String {
		return nil, false
	}
	out := make([]string, len(c.s))
	copy(out, c.s)
	return out, true
}

// Value returns row i as an interface value.
func (c Column) Value(i int) interface{} {
	switch c.kind {
	case Float:
		return c.f[i]
	case Int:
		return c.i[i]
	case String:
		return c.s[i]
	case Bool:
		return c.b[i]
	}
	return nil
}

// Select returns a new column holding the given rows in the given order.
func (c Column) Select(rows []int) (Column, error) {
	n := c.Len()
	for _, r := range rows {
		if r < 0 || r >= n {
			return Column{}, fmt.Errorf("%w: %d of %d", ErrRowRange, r, n)
		}
	}
	switch c.kind {
	case Float:
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = c.f[r]
		}
		return Column{kind: Float, f: out}, nil
	case Int:
		out := make([]int64, len(rows))
		for i, r := range rows {
			out[i] = c.i[r]
		}
		return Column{kind: Int, i: out}, nil
	case String:
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = c.s[r]
		}
		return Column{kind: String, s: out}, nil
	case Bool:
		out := make([]bool, len(rows))
		for i, r := range rows {
			out[i] = c.b[r]
		}
		return Column{kind: Bool, b: out}, nil
	}
	return Column{}, nil
}
