package surface

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"

	"github.com/chazu/surfgeo/pkg/proptable"
)

// Method selects how values are carried from vertices to points.
type Method int

const (
	// MethodAuto picks per column: linear for float columns, nearest for
	// everything else.
	MethodAuto Method = iota
	// MethodLinear uses barycentric weights over the containing face.
	MethodLinear
	// MethodNearest copies the nearest vertex's value.
	MethodNearest
)

func (m Method) String() string {
	switch m {
	case MethodLinear:
		return "linear"
	case MethodNearest:
		return "nearest"
	default:
		return "auto"
	}
}

// Data names what to interpolate: a property of the source mesh, an explicit
// column, or a whole table.
type Data struct {
	name  string
	col   proptable.Column
	table *proptable.Table
	kind  dataKind
}

type dataKind int

const (
	dataNamed dataKind = iota
	dataColumn
	dataTable
)

// DataNamed interpolates the source mesh property stored under name.
func DataNamed(name string) Data { return Data{name: name, kind: dataNamed} }

// DataColumn interpolates an explicit column; its length must equal the
// source vertex count.
func DataColumn(col proptable.Column) Data { return Data{col: col, kind: dataColumn} }

// DataTable interpolates every column of a table.
func DataTable(t *proptable.Table) Data { return Data{table: t, kind: dataTable} }

// InterpOptions configures Interpolate. The zero value means automatic
// method choice, no mask, no weights, NaN fill; nil is accepted everywhere.
type InterpOptions struct {
	Method Method
	// Mask restricts contributing source vertices; length must equal the
	// source vertex count.
	Mask []bool
	// Weights scales per-vertex contributions before row renormalization;
	// negative and non-finite weights clamp to zero.
	Weights []float64
	// Null is the fill value for rows no vertex contributes to. Nil means
	// NaN; an explicit zero fill is allowed.
	Null *float64
	// Workers fans point queries out over goroutines when > 1.
	Workers int
}

func (o *InterpOptions) null() float64 {
	if o == nil || o.Null == nil {
		return math.NaN()
	}
	return *o.Null
}

// InterpResult carries interpolated values plus a per-point miss flag:
// points that ended with an empty interpolation row (no containing face, a
// nearest contributor excluded by the mask, or non-finite data at every
// surviving contributor) hold the null value and are flagged. For table data
// a point is flagged when any column missed it.
type InterpResult struct {
	Column proptable.Column // single-column data
	Table  *proptable.Table // table data
	Misses []bool
}

// NearestInterpolation builds the m x n matrix that copies each point's
// nearest vertex value: a single unit entry per row.
func (m *Mesh) NearestInterpolation(points [][]float64, workers int) (*sparse.CSR, error) {
	ids, _, err := m.NearestVertexBatch(points, workers)
	if err != nil {
		return nil, err
	}
	rows := make([]int, len(ids))
	data := make([]float64, len(ids))
	for i := range ids {
		rows[i] = i
		data[i] = 1
	}
	return sparse.NewCOO(len(points), m.VertexCount(), rows, ids, data).ToCSR(), nil
}

// LinearInterpolation builds the m x n matrix of barycentric weights over
// each point's containing face. Uncontained points get an empty row. When
// the barycentric solve degenerates the weight is split between the two
// nearest corners in inverse proportion to their distances.
func (m *Mesh) LinearInterpolation(points [][]float64, workers int) (*sparse.CSR, error) {
	addrs, err := m.Addresses(points, workers)
	if err != nil {
		return nil, err
	}
	faces := m.tess.IndexedFaces()
	var rows, cols []int
	var data []float64
	for i, a := range addrs {
		if !a.Valid() {
			continue
		}
		f := faces[a.Face]
		w := a.Coords
		if math.IsNaN(w[0]) || math.IsNaN(w[1]) || math.IsNaN(w[2]) {
			w = m.degenerateWeights(f, points[i])
		}
		// Clamp the tolerance-negative weights and renormalize.
		var sum float64
		for k := range w {
			if w[k] < 0 {
				w[k] = 0
			}
			sum += w[k]
		}
		if sum <= 0 {
			continue
		}
		for k, vi := range f {
			if w[k] == 0 {
				continue
			}
			rows = append(rows, i)
			cols = append(cols, vi)
			data = append(data, w[k]/sum)
		}
	}
	return sparse.NewCOO(len(points), m.VertexCount(), rows, cols, data).ToCSR(), nil
}

// degenerateWeights splits unit weight between the two corners of f nearest
// to p, in inverse proportion to their distances.
func (m *Mesh) degenerateWeights(f [3]int, p []float64) [3]float64 {
	var d [3]float64
	for k, vi := range f {
		var s float64
		for j, c := range m.coords[vi] {
			dd := c - p[j]
			s += dd * dd
		}
		d[k] = math.Sqrt(s)
	}
	// Indices sorted by distance; drop the farthest.
	a, b, c := 0, 1, 2
	if d[a] > d[b] {
		a, b = b, a
	}
	if d[b] > d[c] {
		b, c = c, b
		if d[a] > d[b] {
			a, b = b, a
		}
	}
	var w [3]float64
	if d[a]+d[b] == 0 {
		w[a] = 1
		return w
	}
	w[a] = d[b] / (d[a] + d[b])
	w[b] = d[a] / (d[a] + d[b])
	return w
}

// ScaleInterpolation rescales an interpolation matrix: per-vertex weights
// multiply their columns (negative and non-finite weights clamp to zero),
// masked-out vertices drop entirely, and every surviving row is renormalized
// to unit sum. A row whose heaviest contributing vertex is excluded by the
// mask is not redistributed over the survivors: it comes back empty, marking
// the point not interpolable. Rows whose scaled sum is zero or non-finite
// also come back empty.
func (m *Mesh) ScaleInterpolation(mtx *sparse.CSR, weights []float64, mask []bool) (*sparse.CSR, error) {
	_, cols := mtx.Dims()
	if weights != nil && len(weights) != cols {
		return nil, fmt.Errorf("%w: weights has %d entries for %d vertices", ErrValue, len(weights), cols)
	}
	if mask != nil && len(mask) != cols {
		return nil, fmt.Errorf("%w: mask has %d entries for %d vertices", ErrValue, len(mask), cols)
	}
	return scaleCSR(mtx, weights, mask), nil
}

func scaleCSR(mtx *sparse.CSR, weights []float64, mask []bool) *sparse.CSR {
	rows, cols := mtx.Dims()
	dok := sparse.NewDOK(rows, cols)
	for i := 0; i < rows; i++ {
		if mask != nil {
			// The heaviest entry is the point's nearest contributing
			// vertex; masking it out invalidates the whole row.
			best, bestW := -1, math.Inf(-1)
			mtx.DoRowNonZero(i, func(_, j int, v float64) {
				if v > bestW {
					best, bestW = j, v
				}
			})
			if best >= 0 && !mask[best] {
				continue
			}
		}
		type ent struct {
			j int
			v float64
		}
		var ents []ent
		var sum float64
		mtx.DoRowNonZero(i, func(_, j int, v float64) {
			if mask != nil && !mask[j] {
				return
			}
			if weights != nil {
				w := weights[j]
				if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
					w = 0
				}
				v *= w
			}
			if v == 0 {
				return
			}
			ents = append(ents, ent{j, v})
			sum += v
		})
		if sum <= 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
			continue
		}
		for _, e := range ents {
			dok.Set(i, e.j, e.v/sum)
		}
	}
	return dok.ToCSR()
}

// rowMisses flags the empty rows of an interpolation matrix.
func rowMisses(mtx *sparse.CSR) []bool {
	rows, _ := mtx.Dims()
	miss := make([]bool, rows)
	for i := 0; i < rows; i++ {
		empty := true
		mtx.DoRowNonZero(i, func(_, _ int, _ float64) { empty = false })
		miss[i] = empty
	}
	return miss
}

// applyFloat carries a float vector through the matrix; empty rows get null.
func applyFloat(mtx *sparse.CSR, vals []float64, null float64) []float64 {
	rows, _ := mtx.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var acc float64
		empty := true
		mtx.DoRowNonZero(i, func(_, j int, w float64) {
			empty = false
			acc += w * vals[j]
		})
		if empty {
			out[i] = null
		} else {
			out[i] = acc
		}
	}
	return out
}

// heaviestColumn returns, per row, the column of the row's largest weight,
// or -1 for empty rows.
func heaviestColumn(mtx *sparse.CSR) []int {
	rows, _ := mtx.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		best, bestW := -1, math.Inf(-1)
		mtx.DoRowNonZero(i, func(_, j int, w float64) {
			if w > bestW {
				best, bestW = j, w
			}
		})
		out[i] = best
	}
	return out
}

// applyColumn interpolates one column through a prepared matrix. Float
// columns average; other kinds copy the heaviest-weight vertex's value. The
// returned flags mark the rows that received the null value, including rows
// emptied because their contributors held non-finite data.
func applyColumn(mtx *sparse.CSR, col proptable.Column, null float64) (proptable.Column, []bool, error) {
	if col.IsFloat() {
		vals, _ := col.Float64s()
		finite := make([]bool, len(vals))
		rescale := false
		for j, v := range vals {
			finite[j] = !math.IsNaN(v) && !math.IsInf(v, 0)
			if !finite[j] {
				rescale = true
			}
		}
		if rescale {
			// Vertices with non-finite data cannot contribute. Drop
			// their columns and renormalize as if they were masked, then
			// zero the dead entries so they never touch the products.
			mtx = scaleCSR(mtx, nil, finite)
			vv := make([]float64, len(vals))
			for j, v := range vals {
				if finite[j] {
					vv[j] = v
				}
			}
			vals = vv
		}
		return proptable.Floats(applyFloat(mtx, vals, null)), rowMisses(mtx), nil
	}
	picks := heaviestColumn(mtx)
	miss := make([]bool, len(picks))
	for i, j := range picks {
		miss[i] = j < 0
	}
	switch col.Kind() {
	case proptable.Int:
		vals, _ := col.Float64s()
		out := make([]float64, len(picks))
		for i, j := range picks {
			if j < 0 {
				out[i] = null
			} else {
				out[i] = vals[j]
			}
		}
		// Missed rows need a non-integer null, so the result is a float
		// column even for integer input.
		return proptable.Floats(out), miss, nil
	case proptable.Bool:
		vals, _ := col.Float64s()
		out := make([]bool, len(picks))
		for i, j := range picks {
			out[i] = j >= 0 && vals[j] != 0
		}
		return proptable.Bools(out), miss, nil
	case proptable.String:
		vals, _ := col.StringsValue()
		out := make([]string, len(picks))
		for i, j := range picks {
			if j >= 0 {
				out[i] = vals[j]
			}
		}
		return proptable.Strings(out), miss, nil
	default:
		return proptable.Column{}, nil, fmt.Errorf("%w: cannot interpolate column kind %v", ErrValue, col.Kind())
	}
}

// resolveData expands a Data into named columns of the source mesh.
func (m *Mesh) resolveData(data Data) ([]string, []proptable.Column, error) {
	switch data.kind {
	case dataNamed:
		col, err := m.Prop(data.name)
		if err != nil {
			return nil, nil, err
		}
		return []string{data.name}, []proptable.Column{col}, nil
	case dataColumn:
		if data.col.Len() != m.VertexCount() {
			return nil, nil, fmt.Errorf("%w: column has %d rows for %d vertices",
				ErrValue, data.col.Len(), m.VertexCount())
		}
		return []string{""}, []proptable.Column{data.col}, nil
	case dataTable:
		if data.table.Len() > 0 && data.table.RowCount() != m.VertexCount() {
			return nil, nil, fmt.Errorf("%w: table has %d rows for %d vertices",
				ErrValue, data.table.RowCount(), m.VertexCount())
		}
		keys := data.table.Keys()
		cols := make([]proptable.Column, len(keys))
		for i, k := range keys {
			cols[i], _ = data.table.Get(k)
		}
		return keys, cols, nil
	default:
		return nil, nil, fmt.Errorf("%w: empty interpolation data", ErrValue)
	}
}

// ApplyInterpolation carries data through a prepared interpolation matrix.
// Single-column data yields a Column; table data yields a Table with the
// same keys. The null value is used as given; zero is a legal fill.
func (m *Mesh) ApplyInterpolation(mtx *sparse.CSR, data Data, null float64) (*InterpResult, error) {
	keys, cols, err := m.resolveData(data)
	if err != nil {
		return nil, err
	}
	res := &InterpResult{}
	if data.kind != dataTable {
		res.Column, res.Misses, err = applyColumn(mtx, cols[0], null)
		return res, err
	}
	rows, _ := mtx.Dims()
	res.Misses = make([]bool, rows)
	tbl := proptable.New()
	for i, k := range keys {
		out, miss, err := applyColumn(mtx, cols[i], null)
		if err != nil {
			return nil, err
		}
		tbl, err = tbl.With(k, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValue, err)
		}
		for pi, mi := range miss {
			if mi {
				res.Misses[pi] = true
			}
		}
	}
	res.Table = tbl
	return res, nil
}

// Interpolate carries source-mesh data to arbitrary points. Method auto uses
// linear interpolation for float columns and nearest for everything else; at
// most one matrix is built per method regardless of the column count.
func (m *Mesh) Interpolate(points [][]float64, data Data, opts *InterpOptions) (*InterpResult, error) {
	var o InterpOptions
	if opts != nil {
		o = *opts
	}
	keys, cols, err := m.resolveData(data)
	if err != nil {
		return nil, err
	}

	var linear, nearest *sparse.CSR
	matrixFor := func(method Method) (*sparse.CSR, error) {
		switch method {
		case MethodLinear:
			if linear == nil {
				raw, err := m.LinearInterpolation(points, o.Workers)
				if err != nil {
					return nil, err
				}
				linear, err = m.ScaleInterpolation(raw, o.Weights, o.Mask)
				if err != nil {
					return nil, err
				}
			}
			return linear, nil
		default:
			if nearest == nil {
				raw, err := m.NearestInterpolation(points, o.Workers)
				if err != nil {
					return nil, err
				}
				nearest, err = m.ScaleInterpolation(raw, o.Weights, o.Mask)
				if err != nil {
					return nil, err
				}
			}
			return nearest, nil
		}
	}
	methodFor := func(col proptable.Column) Method {
		if o.Method != MethodAuto {
			return o.Method
		}
		if col.IsFloat() {
			return MethodLinear
		}
		return MethodNearest
	}

	null := o.null()
	res := &InterpResult{Misses: make([]bool, len(points))}
	if data.kind != dataTable {
		mtx, err := matrixFor(methodFor(cols[0]))
		if err != nil {
			return nil, err
		}
		res.Column, res.Misses, err = applyColumn(mtx, cols[0], null)
		return res, err
	}
	tbl := proptable.New()
	for i, k := range keys {
		mtx, err := matrixFor(methodFor(cols[i]))
		if err != nil {
			return nil, err
		}
		out, miss, err := applyColumn(mtx, cols[i], null)
		if err != nil {
			return nil, err
		}
		tbl, err = tbl.With(k, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValue, err)
		}
		for pi, mi := range miss {
			if mi {
				res.Misses[pi] = true
			}
		}
	}
	res.Table = tbl
	return res, nil
}

// InterpolateMesh carries data onto another mesh's vertices. Both meshes
// must share an embedding space but not a tesselation.
func (m *Mesh) InterpolateMesh(dst *Mesh, data Data, opts *InterpOptions) (*InterpResult, error) {
	if dst.Dim() != m.Dim() {
		return nil, fmt.Errorf("%w: cannot interpolate from %dD to %dD", ErrValue, m.Dim(), dst.Dim())
	}
	return m.Interpolate(dst.Coordinates(), data, opts)
}
