// Package surface implements triangle-mesh geometry for cortical surface
// analysis: combinatorial tesselations, 2D/3D mesh embeddings, multi-
// registration topologies, nearest-point and containing-triangle queries,
// barycentric addressing, sparse interpolation, and edge-graph property
// smoothing.
//
// All entities are immutable after construction. Derived quantities (edges,
// incidence indices, normals, spatial indices) are computed once on first
// access and cached; mutation-style methods (WithProp, SubTesselation,
// Register, ...) return new instances and share unaffected structure with
// the receiver.
package surface

import (
	"fmt"
	"math"

	"github.com/chazu/surfgeo/pkg/proptable"
)

// Meta is an auxiliary metadata map carried by every entity. It is treated
// as immutable; WithMeta and WithoutMeta return copies.
type Meta map[string]interface{}

func (m Meta) clone() Meta {
	nm := make(Meta, len(m)+1)
	for k, v := range m {
		nm[k] = v
	}
	return nm
}

// Field names a per-vertex value array: either a property key resolved
// against the owning object, or an explicit vector.
type Field struct {
	name   string
	values []float64
	named  bool
}

// FieldNamed references the property stored under name.
func FieldNamed(name string) Field { return Field{name: name, named: true} }

// FieldValues wraps an explicit per-vertex vector. The slice is not copied
// until it is resolved.
func FieldValues(v []float64) Field { return Field{values: v} }

// Range is a closed numeric interval.
type Range struct {
	Min, Max float64
}

// Contains reports whether x lies in the interval.
func (r Range) Contains(x float64) bool { return x >= r.Min && x <= r.Max }

// MaxRange is the [0, max] interval, matching the shorthand where a data
// range is given as a single upper bound.
func MaxRange(max float64) Range { return Range{Min: 0, Max: max} }

// PropertyOptions configures VertexSet.Property filtering. The zero value
// applies no filtering; DefaultPropertyOptions fills in the conventional
// defaults (clip to +Inf, null to NaN).
type PropertyOptions struct {
	// Outliers marks vertices to clip; length must equal the vertex count.
	Outliers []bool
	// DataRange clips values outside the interval as outliers.
	DataRange *Range
	// Clipped is the value written at outlier vertices.
	Clipped float64
	// Mask restricts the result; vertices outside the mask are nulled.
	// Nil means all vertices.
	Mask []bool
	// ValidRange nulls (rather than clips) values outside the interval.
	ValidRange *Range
	// Null is the value written at out-of-mask or unusable vertices.
	Null float64
	// Weights optionally names or supplies a per-vertex weight vector.
	Weights *Field
	// WeightMin treats vertices whose weight is at or below it as outliers.
	WeightMin float64
	// WeightTransform replaces the default weight cleanup (negative and
	// near-zero weights forced to zero).
	WeightTransform func([]float64) []float64
	// Transform, when set, is applied to the value array after null and
	// clipped values are marked.
	Transform func([]float64) []float64
}

// DefaultPropertyOptions returns the standard option set: outliers clip to
// +Inf and out-of-mask vertices null to NaN.
func DefaultPropertyOptions() PropertyOptions {
	return PropertyOptions{Clipped: math.Inf(1), Null: math.NaN()}
}

// PropertyResult carries a filtered property vector and, when weights were
// requested, the matching cleaned weight vector (zeroed at nulled and
// clipped vertices).
type PropertyResult struct {
	Values  []float64
	Weights []float64
}

// VertexSet tracks a set of labelled vertices together with their
// properties. It is the common base of Tesselation, Mesh, and Topology.
// The property table always contains the synthesized columns "index"
// (0..n-1) and "label".
type VertexSet struct {
	labels []int
	user   *proptable.Table // caller-provided columns only
	props  *proptable.Table // user columns plus index/label
	meta   Meta
}

func newVertexSet(labels []int, user *proptable.Table, meta Meta) (VertexSet, error) {
	n := len(labels)
	if user == nil {
		user = proptable.New()
	}
	if user.Len() > 0 && user.RowCount() != n {
		return VertexSet{}, fmt.Errorf("%w: property table has %d rows for %d vertices",
			ErrValue, user.RowCount(), n)
	}
	lbls := make([]int, n)
	copy(lbls, labels)

	idx := make([]int64, n)
	lab := make([]int64, n)
	for i, l := range lbls {
		idx[i] = int64(i)
		lab[i] = int64(l)
	}
	props, err := user.With("index", proptable.Ints(idx))
	if err != nil {
		return VertexSet{}, fmt.Errorf("%w: %v", ErrValue, err)
	}
	props, err = props.With("label", proptable.Ints(lab))
	if err != nil {
		return VertexSet{}, fmt.Errorf("%w: %v", ErrValue, err)
	}
	if meta == nil {
		meta = Meta{}
	}
	return VertexSet{labels: lbls, user: user, props: props, meta: meta}, nil
}

// VertexCount reports the number of vertices.
func (vs *VertexSet) VertexCount() int { return len(vs.labels) }

// Labels returns a copy of the vertex labels. Labels are stable across
// sub-tesselation: a surviving vertex keeps its label even though its index
// changes.
func (vs *VertexSet) Labels() []int {
	out := make([]int, len(vs.labels))
	copy(out, vs.labels)
	return out
}

// Properties returns the property table, including the synthesized "index"
// and "label" columns.
func (vs *VertexSet) Properties() *proptable.Table { return vs.props }

// Prop returns the property column stored under name.
func (vs *VertexSet) Prop(name string) (proptable.Column, error) {
	col, ok := vs.props.Get(name)
	if !ok {
		return proptable.Column{}, fmt.Errorf("%w: property %q", ErrLookup, name)
	}
	return col, nil
}

// MetaData returns the metadata map. Treat it as read-only.
func (vs *VertexSet) MetaData() Meta { return vs.meta }

// MetaValue returns one metadata entry.
func (vs *VertexSet) MetaValue(name string) (interface{}, bool) {
	v, ok := vs.meta[name]
	return v, ok
}

// Where returns the labels of vertices for which pred is true. pred sees one
// property-table row per vertex.
func (vs *VertexSet) Where(pred func(proptable.Row) bool) []int {
	var out []int
	for i := range vs.labels {
		if pred(vs.props.Row(i)) {
			out = append(out, vs.labels[i])
		}
	}
	return out
}

// whereMask evaluates pred per vertex into a boolean mask.
func (vs *VertexSet) whereMask(pred func(proptable.Row) bool) []bool {
	mask := make([]bool, len(vs.labels))
	for i := range vs.labels {
		mask[i] = pred(vs.props.Row(i))
	}
	return mask
}

// resolveField turns a Field into a float vector of length n.
func (vs *VertexSet) resolveField(f Field, n int) ([]float64, error) {
	if f.named {
		col, err := vs.Prop(f.name)
		if err != nil {
			return nil, err
		}
		vals, ok := col.Float64s()
		if !ok {
			return nil, fmt.Errorf("%w: property %q is not numeric", ErrValue, f.name)
		}
		if len(vals) != n {
			return nil, fmt.Errorf("%w: property %q has %d values for %d vertices",
				ErrValue, f.name, len(vals), n)
		}
		return vals, nil
	}
	if len(f.values) != n {
		return nil, fmt.Errorf("%w: field has %d values for %d vertices", ErrValue, len(f.values), n)
	}
	out := make([]float64, n)
	copy(out, f.values)
	return out, nil
}

const weightEps = 1e-12

// Property returns the field's values after applying the configured
// filters: out-of-mask and unusable (NaN, out of valid range) vertices are
// set to opts.Null, outliers (explicit, low-weight, out of data range, or
// infinite) to opts.Clipped. When weights are configured the returned
// weight vector is cleaned the same way.
func (vs *VertexSet) Property(field Field, opts *PropertyOptions) (*PropertyResult, error) {
	n := vs.VertexCount()
	var o PropertyOptions
	if opts == nil {
		o = DefaultPropertyOptions()
	} else {
		o = *opts
	}
	if o.Outliers != nil && len(o.Outliers) != n {
		return nil, fmt.Errorf("%w: outliers mask has %d entries for %d vertices", ErrValue, len(o.Outliers), n)
	}
	if o.Mask != nil && len(o.Mask) != n {
		return nil, fmt.Errorf("%w: mask has %d entries for %d vertices", ErrValue, len(o.Mask), n)
	}

	prop, err := vs.resolveField(field, n)
	if err != nil {
		return nil, err
	}

	// Weights, cleaned: negatives and near-zeros forced to zero unless a
	// custom transform is supplied.
	var weights []float64
	if o.Weights != nil {
		weights, err = vs.resolveField(*o.Weights, n)
		if err != nil {
			return nil, err
		}
		if o.WeightTransform != nil {
			weights = o.WeightTransform(weights)
			if len(weights) != n {
				return nil, fmt.Errorf("%w: weight transform changed length", ErrValue)
			}
		} else {
			for i, w := range weights {
				if w < weightEps {
					weights[i] = 0
				}
			}
		}
	}

	// usable: finite-or-clippable vertices; NaN and out-of-valid-range
	// values can never contribute.
	null := make([]bool, n)
	for i, v := range prop {
		if math.IsNaN(v) {
			null[i] = true
		} else if o.ValidRange != nil && !math.IsInf(v, 0) && !o.ValidRange.Contains(v) {
			null[i] = true
		}
	}
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = (o.Mask == nil || o.Mask[i]) && !null[i]
	}

	// Outliers are only meaningful inside the mask. Infinite values are
	// always outliers, regardless of the data range.
	outlier := make([]bool, n)
	for i := range outlier {
		if !mask[i] {
			continue
		}
		switch {
		case o.Outliers != nil && o.Outliers[i]:
			outlier[i] = true
		case weights != nil && weights[i] <= o.WeightMin:
			outlier[i] = true
		case o.DataRange != nil && !math.IsInf(prop[i], 0) && !o.DataRange.Contains(prop[i]):
			outlier[i] = true
		case math.IsInf(prop[i], 0):
			outlier[i] = true
		}
	}

	out := make([]float64, n)
	for i := range prop {
		switch {
		case !mask[i]:
			out[i] = o.Null
		case outlier[i]:
			out[i] = o.Clipped
		default:
			out[i] = prop[i]
		}
	}
	if weights != nil {
		for i := range weights {
			if !mask[i] || outlier[i] {
				weights[i] = 0
			}
		}
	}
	if o.Transform != nil {
		out = o.Transform(out)
		if len(out) != n {
			return nil, fmt.Errorf("%w: transform changed length", ErrValue)
		}
	}
	return &PropertyResult{Values: out, Weights: weights}, nil
}
