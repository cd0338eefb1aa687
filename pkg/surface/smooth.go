package surface

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Distribution names a target distribution for post-smoothing rank
// matching: the tethered input sample itself, an explicit reference sample,
// or a quantile function.
type Distribution struct {
	sample   []float64
	quantile func(float64) float64
	input    bool
}

// MatchInput rank-matches the smoothed values to the distribution of the
// tethered input values.
func MatchInput() *Distribution { return &Distribution{input: true} }

// MatchSample rank-matches the smoothed values to an explicit sample.
func MatchSample(sample []float64) *Distribution {
	s := make([]float64, len(sample))
	copy(s, sample)
	return &Distribution{sample: s}
}

// MatchQuantile rank-matches the smoothed values against a quantile
// function q: [0, 1] -> value.
func MatchQuantile(q func(float64) float64) *Distribution {
	return &Distribution{quantile: q}
}

// SmoothOptions configures Smooth. Use DefaultSmoothOptions as the starting
// point; a nil options pointer means the defaults.
type SmoothOptions struct {
	// Smoothness trades the edge term against the tether term: 0 reproduces
	// the input at tethered vertices, 1 ignores the input entirely.
	Smoothness float64
	// Weights optionally scales each vertex's tether.
	Weights *Field
	// WeightMin removes vertices with weight at or below it from the mask;
	// they hold Null in the result.
	WeightMin float64
	// Outliers join only the edge term; their values are re-estimated.
	Outliers []bool
	// Mask restricts smoothing; vertices outside hold Null in the result.
	Mask []bool
	// DataRange marks values outside the interval as outliers.
	DataRange *Range
	// ValidRange excludes values outside the interval from the mask.
	ValidRange *Range
	// Null fills result entries outside the mask.
	Null float64
	// MatchDistribution optionally rank-matches the smoothed values to a
	// target distribution.
	MatchDistribution *Distribution
}

// DefaultSmoothOptions returns the conventional defaults: smoothness 0.5 and
// NaN outside the mask.
func DefaultSmoothOptions() SmoothOptions {
	return SmoothOptions{Smoothness: 0.5, Null: math.NaN()}
}

// Smooth minimizes, over the masked vertices,
//
//	s * sum over edges (u, v) of (x_u - x_v)^2
//	  + (1 - s) * sum over tethered vertices of w_v * (x_v - x0_v)^2
//
// where s is the smoothness, x0 the filtered input values, and the tethered
// vertices are the masked non-outliers. Outliers contribute only to the edge
// term and start at the weighted tethered mean. Vertices whose weight is at
// or below WeightMin leave the mask entirely rather than being re-estimated.
// The returned vector holds opts.Null outside the mask.
func (m *Mesh) Smooth(field Field, opts *SmoothOptions) ([]float64, error) {
	var o SmoothOptions
	if opts == nil {
		o = DefaultSmoothOptions()
	} else {
		o = *opts
	}
	if o.Smoothness < 0 || o.Smoothness > 1 {
		return nil, fmt.Errorf("%w: smoothness %v outside [0, 1]", ErrValue, o.Smoothness)
	}

	// Zero-weight (and sub-WeightMin) vertices drop out of the mask before
	// filtering; they hold Null in the result instead of joining the edge
	// term as outliers.
	mask := o.Mask
	if o.Weights != nil {
		wv, err := m.resolveField(*o.Weights, m.VertexCount())
		if err != nil {
			return nil, err
		}
		mask = make([]bool, len(wv))
		for i, wi := range wv {
			if wi < weightEps || math.IsNaN(wi) {
				wi = 0
			}
			mask[i] = (o.Mask == nil || o.Mask[i]) && wi > o.WeightMin
		}
	}

	// Filter the field: out-of-mask and invalid vertices become NaN,
	// outliers become +Inf, and the weights come back cleaned.
	po := PropertyOptions{
		Outliers:   o.Outliers,
		DataRange:  o.DataRange,
		ValidRange: o.ValidRange,
		Mask:       mask,
		Weights:    o.Weights,
		Clipped:    math.Inf(1),
		Null:       math.NaN(),
	}
	pr, err := m.Property(field, &po)
	if err != nil {
		return nil, err
	}

	n := m.VertexCount()
	local := make([]int, n) // vertex index -> solve index, -1 outside mask
	var sub []int           // solve index -> vertex index
	for vi := range local {
		local[vi] = -1
	}
	for vi, v := range pr.Values {
		if !math.IsNaN(v) {
			local[vi] = len(sub)
			sub = append(sub, vi)
		}
	}
	if len(sub) == 0 {
		out := make([]float64, n)
		for i := range out {
			out[i] = o.Null
		}
		return out, nil
	}

	// Tether weights and initial values; outliers start at the weighted
	// tethered mean.
	w := make([]float64, len(sub))
	x0 := make([]float64, len(sub))
	var tv, tw []float64
	for li, vi := range sub {
		v := pr.Values[vi]
		if math.IsInf(v, 0) {
			continue
		}
		x0[li] = v
		if pr.Weights != nil {
			w[li] = pr.Weights[vi]
		} else {
			w[li] = 1
		}
		if w[li] > 0 {
			tv = append(tv, v)
			tw = append(tw, w[li])
		}
	}
	if len(tv) == 0 {
		return nil, fmt.Errorf("%w: no tethered vertices to smooth", ErrValue)
	}
	mean := floats.Dot(tv, tw) / floats.Sum(tw)
	for li, vi := range sub {
		if math.IsInf(pr.Values[vi], 0) {
			x0[li] = mean
			w[li] = 0
		}
	}

	// Edges with both ends inside the solve set.
	var eu, ev []int
	for _, e := range m.tess.IndexedEdges() {
		u, v := local[e[0]], local[e[1]]
		if u >= 0 && v >= 0 {
			eu = append(eu, u)
			ev = append(ev, v)
		}
	}

	solved := make([]float64, len(x0))
	copy(solved, x0)
	if o.Smoothness > 0 && len(eu) > 0 {
		s := o.Smoothness
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				var fe, ft float64
				for i := range eu {
					d := x[eu[i]] - x[ev[i]]
					fe += d * d
				}
				for i := range x {
					d := x[i] - x0[i]
					ft += w[i] * d * d
				}
				return s*fe + (1-s)*ft
			},
			Grad: func(grad, x []float64) {
				for i := range grad {
					grad[i] = 2 * (1 - s) * w[i] * (x[i] - x0[i])
				}
				for i := range eu {
					d := 2 * s * (x[eu[i]] - x[ev[i]])
					grad[eu[i]] += d
					grad[ev[i]] -= d
				}
			},
		}
		result, err := optimize.Minimize(problem, solved, nil, &optimize.LBFGS{})
		if err != nil {
			return nil, fmt.Errorf("%w: smoothing solve: %v", ErrRuntime, err)
		}
		copy(solved, result.X)
	}

	if o.MatchDistribution != nil {
		if err := matchDistribution(solved, o.MatchDistribution, tv); err != nil {
			return nil, err
		}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = o.Null
	}
	for li, vi := range sub {
		out[vi] = solved[li]
	}
	return out, nil
}

// matchDistribution replaces x, in place, by quantiles of the target
// distribution taken at each entry's rank.
func matchDistribution(x []float64, d *Distribution, input []float64) error {
	q := d.quantile
	if q == nil {
		sample := d.sample
		if d.input {
			sample = input
		}
		if len(sample) == 0 {
			return fmt.Errorf("%w: empty distribution sample", ErrValue)
		}
		sorted := make([]float64, len(sample))
		copy(sorted, sample)
		sort.Float64s(sorted)
		q = func(p float64) float64 {
			return stat.Quantile(p, stat.Empirical, sorted, nil)
		}
	}
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return x[order[i]] < x[order[j]] })
	n := len(x)
	for rank, idx := range order {
		var p float64
		if n == 1 {
			p = 0.5
		} else {
			p = float64(rank) / float64(n-1)
		}
		x[idx] = q(p)
	}
	return nil
}
