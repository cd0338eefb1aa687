package surface

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chazu/surfgeo/pkg/proptable"
)

// affineField evaluates 2 + 3x - y at every vertex, an exactly linearly
// interpolable function.
func affineField(m *Mesh) []float64 {
	out := make([]float64, m.VertexCount())
	for i, c := range m.Coordinates() {
		out[i] = 2 + 3*c[0] - c[1]
	}
	return out
}

func TestLinearInterpolationExact(t *testing.T) {
	m := diskMesh(t)
	vals := affineField(m)
	rng := rand.New(rand.NewSource(17))
	points := make([][]float64, 80)
	for i := range points {
		_, points[i] = randomSurfacePoint(rng, m)
	}
	res, err := m.Interpolate(points, DataColumn(proptable.Floats(vals)),
		&InterpOptions{Method: MethodLinear})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	got, _ := res.Column.Float64s()
	for i, p := range points {
		want := 2 + 3*p[0] - p[1]
		if !near(got[i], want, 1e-9) {
			t.Fatalf("point %v: got %g, want %g", p, got[i], want)
		}
	}
}

func TestNearestInterpolationCopies(t *testing.T) {
	m := pinwheelMesh(t)
	vals := []float64{10, 20, 30, 40}
	// Query just off each vertex.
	points := make([][]float64, m.VertexCount())
	for i, c := range m.Coordinates() {
		points[i] = []float64{c[0] * 0.99, c[1] * 0.99}
	}
	res, err := m.Interpolate(points, DataColumn(proptable.Floats(vals)),
		&InterpOptions{Method: MethodNearest})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	got, _ := res.Column.Float64s()
	for i := range points {
		if got[i] != vals[i] {
			t.Errorf("point %d: got %g, want %g", i, got[i], vals[i])
		}
	}
}

func TestScaleInterpolationRowSums(t *testing.T) {
	m := diskMesh(t)
	rng := rand.New(rand.NewSource(23))
	points := make([][]float64, 60)
	for i := range points {
		_, points[i] = randomSurfacePoint(rng, m)
	}
	raw, err := m.LinearInterpolation(points, 0)
	if err != nil {
		t.Fatalf("LinearInterpolation: %v", err)
	}
	weights := make([]float64, m.VertexCount())
	for i := range weights {
		weights[i] = 0.5 + rng.Float64()
	}
	scaled, err := m.ScaleInterpolation(raw, weights, nil)
	if err != nil {
		t.Fatalf("ScaleInterpolation: %v", err)
	}
	rows, _ := scaled.Dims()
	for i := 0; i < rows; i++ {
		var sum float64
		empty := true
		scaled.DoRowNonZero(i, func(_, _ int, v float64) {
			empty = false
			sum += v
		})
		if empty {
			continue
		}
		if !near(sum, 1, 1e-9) {
			t.Fatalf("row %d sums to %g, want 1", i, sum)
		}
	}
}

func TestScaleInterpolationMask(t *testing.T) {
	m := pinwheelMesh(t)
	// Only the centroid of face 0 is queried; masking out all of face 0's
	// corners must empty its row.
	raw, err := m.LinearInterpolation([][]float64{m.FaceCenter(0)}, 0)
	if err != nil {
		t.Fatalf("LinearInterpolation: %v", err)
	}
	mask := []bool{false, false, false, true}
	scaled, err := m.ScaleInterpolation(raw, nil, mask)
	if err != nil {
		t.Fatalf("ScaleInterpolation: %v", err)
	}
	if miss := rowMisses(scaled); !miss[0] {
		t.Error("fully masked row is not empty")
	}
}

func TestInterpolateMaskedNearestVertex(t *testing.T) {
	m := pinwheelMesh(t)
	vals := []float64{1, 2, 3, 4}
	// Almost all weight sits on vertex 1.
	p := []float64{0, 0.99}
	t.Run("heaviest vertex masked flags the point", func(t *testing.T) {
		res, err := m.Interpolate([][]float64{p}, DataColumn(proptable.Floats(vals)),
			&InterpOptions{Method: MethodLinear, Mask: []bool{true, false, true, true}})
		if err != nil {
			t.Fatalf("Interpolate: %v", err)
		}
		if !res.Misses[0] {
			t.Error("point whose nearest vertex is masked was not flagged")
		}
		got, _ := res.Column.Float64s()
		if !math.IsNaN(got[0]) {
			t.Errorf("value = %g, want NaN; the weight must not shift to the far corner", got[0])
		}
	})
	t.Run("light vertex masked renormalizes", func(t *testing.T) {
		res, err := m.Interpolate([][]float64{p}, DataColumn(proptable.Floats(vals)),
			&InterpOptions{Method: MethodLinear, Mask: []bool{false, true, true, true}})
		if err != nil {
			t.Fatalf("Interpolate: %v", err)
		}
		if res.Misses[0] {
			t.Error("point flagged although its nearest vertex survives the mask")
		}
		got, _ := res.Column.Float64s()
		if !near(got[0], vals[1], 1e-9) {
			t.Errorf("value = %g, want %g after renormalizing onto vertex 1", got[0], vals[1])
		}
	})
}

func TestInterpolateSkipsNonFiniteData(t *testing.T) {
	m := pinwheelMesh(t)
	vals := []float64{1, math.NaN(), 3, 5}
	// Inside face 0 with barycentric weights (0.5, 0.25, 0.25): vertex 0
	// dominates, vertex 1 carries NaN data.
	c1, c2 := m.VertexCoord(1), m.VertexCoord(2)
	p := []float64{0.25 * (c1[0] + c2[0]), 0.25 * (c1[1] + c2[1])}
	res, err := m.Interpolate([][]float64{p}, DataColumn(proptable.Floats(vals)),
		&InterpOptions{Method: MethodLinear})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if res.Misses[0] {
		t.Error("point flagged although its nearest vertex holds finite data")
	}
	got, _ := res.Column.Float64s()
	// Renormalized over the finite corners: (0.5*1 + 0.25*3) / 0.75.
	if want := 1.25 / 0.75; !near(got[0], want, 1e-9) {
		t.Errorf("value = %g, want %g over the finite corners", got[0], want)
	}
}

func TestScaleInterpolationNonFiniteWeights(t *testing.T) {
	m := pinwheelMesh(t)
	raw, err := m.LinearInterpolation([][]float64{m.FaceCenter(0)}, 0)
	if err != nil {
		t.Fatalf("LinearInterpolation: %v", err)
	}
	scaled, err := m.ScaleInterpolation(raw, []float64{1, math.NaN(), 1, 1}, nil)
	if err != nil {
		t.Fatalf("ScaleInterpolation: %v", err)
	}
	if got := scaled.At(0, 1); got != 0 {
		t.Errorf("NaN-weighted vertex kept weight %g, want 0", got)
	}
	var sum float64
	scaled.DoRowNonZero(0, func(_, _ int, v float64) { sum += v })
	if !near(sum, 1, 1e-9) {
		t.Errorf("row sums to %g, want 1 over the remaining vertices", sum)
	}
}

func TestInterpolateZeroNull(t *testing.T) {
	m := pinwheelMesh(t)
	vals := []float64{1, 2, 3, 4}
	zero := 0.0
	res, err := m.Interpolate([][]float64{{9, 9}}, DataColumn(proptable.Floats(vals)),
		&InterpOptions{Method: MethodLinear, Null: &zero})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if !res.Misses[0] {
		t.Error("uncontained point not flagged")
	}
	got, _ := res.Column.Float64s()
	if got[0] != 0 {
		t.Errorf("missed point value = %g, want the requested 0 fill", got[0])
	}
}

func TestInterpolateMisses(t *testing.T) {
	m := pinwheelMesh(t)
	vals := []float64{1, 2, 3, 4}
	points := [][]float64{m.FaceCenter(0), {9, 9}}
	res, err := m.Interpolate(points, DataColumn(proptable.Floats(vals)),
		&InterpOptions{Method: MethodLinear})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if res.Misses[0] || !res.Misses[1] {
		t.Errorf("Misses = %v, want [false true]", res.Misses)
	}
	got, _ := res.Column.Float64s()
	if !math.IsNaN(got[1]) {
		t.Errorf("missed point value = %g, want NaN", got[1])
	}
}

func TestInterpolateTableAuto(t *testing.T) {
	m := pinwheelMesh(t)
	tbl, err := proptable.New().With("height", proptable.Floats([]float64{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	tbl, err = tbl.With("region", proptable.Strings([]string{"hub", "a", "b", "c"}))
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	// A point near vertex 1, inside face 0.
	p := []float64{0.02, 0.9}
	res, err := m.Interpolate([][]float64{p}, DataTable(tbl), nil)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if got := res.Table.Keys(); len(got) != 2 {
		t.Fatalf("result keys = %v, want 2", got)
	}
	region, _ := res.Table.Get("region")
	names, _ := region.StringsValue()
	if names[0] != "a" {
		t.Errorf("region = %q, want %q (nearest vertex is 1)", names[0], "a")
	}
	height, _ := res.Table.Get("height")
	hs, _ := height.Float64s()
	if hs[0] < 1 || hs[0] > 4 {
		t.Errorf("height = %g, want a convex combination of the corner values", hs[0])
	}
}

func TestInterpolateNamedProperty(t *testing.T) {
	m := diskMesh(t)
	withProp, err := m.WithProp("curv", proptable.Floats(affineField(m)))
	if err != nil {
		t.Fatalf("WithProp: %v", err)
	}
	p := m.FaceCenter(3)
	res, err := withProp.Interpolate([][]float64{p}, DataNamed("curv"), nil)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	got, _ := res.Column.Float64s()
	if want := 2 + 3*p[0] - p[1]; !near(got[0], want, 1e-9) {
		t.Errorf("curv = %g, want %g", got[0], want)
	}
}

func TestInterpolateUnknownProperty(t *testing.T) {
	m := pinwheelMesh(t)
	_, err := m.Interpolate([][]float64{{0, 0}}, DataNamed("nope"), nil)
	if err == nil {
		t.Fatal("unknown property interpolated")
	}
}

func TestInterpolateIntHeaviest(t *testing.T) {
	m := pinwheelMesh(t)
	labels := proptable.Ints([]int64{7, 8, 9, 10})
	// Near vertex 2; the heaviest barycentric weight must pick its label.
	c := m.VertexCoord(2)
	p := []float64{c[0] * 0.9, c[1] * 0.9}
	res, err := m.Interpolate([][]float64{p}, DataColumn(labels), nil)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	got, _ := res.Column.Float64s()
	if got[0] != 9 {
		t.Errorf("label = %g, want 9", got[0])
	}
}
