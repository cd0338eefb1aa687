package surface

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/chazu/surfgeo/pkg/proptable"
)

func TestPinwheelCounts(t *testing.T) {
	tess := pinwheelTess(t)
	if got := tess.VertexCount(); got != 4 {
		t.Errorf("VertexCount() = %d, want 4", got)
	}
	if got := tess.FaceCount(); got != 3 {
		t.Errorf("FaceCount() = %d, want 3", got)
	}
	if got := tess.EdgeCount(); got != 6 {
		t.Errorf("EdgeCount() = %d, want 6", got)
	}
}

func TestTrianglesFromMatrix(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]int
		want    [][3]int
		wantErr bool
	}{
		{
			name: "m x 3",
			rows: [][]int{{0, 1, 2}, {0, 2, 3}},
			want: [][3]int{{0, 1, 2}, {0, 2, 3}},
		},
		{
			name: "3 x m",
			rows: [][]int{{0, 0}, {1, 2}, {2, 3}},
			want: [][3]int{{0, 1, 2}, {0, 2, 3}},
		},
		{
			name: "3 x 3 reads as columns",
			rows: [][]int{{0, 0, 0}, {1, 2, 3}, {2, 3, 1}},
			want: [][3]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 1}},
		},
		{name: "empty", rows: nil, wantErr: true},
		{name: "bad width", rows: [][]int{{0, 1, 2, 3}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TrianglesFromMatrix(tt.rows)
			if tt.wantErr {
				if !errors.Is(err, ErrValue) {
					t.Fatalf("err = %v, want ErrValue", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TrianglesFromMatrix: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("faces = %v, want %v", got, tt.want)
			}
		})
	}
}

// Every edge of every face must resolve through the edge index, and the
// edge-to-face adjacency must list that face.
func TestEdgeFaceIncidence(t *testing.T) {
	tess := diskMesh(t).Tess()
	ix := tess.Index()
	for fi, f := range tess.Faces() {
		for _, e := range [][2]int{{f[0], f[1]}, {f[1], f[2]}, {f[2], f[0]}} {
			ei, ok := ix.Edge(e[0], e[1])
			if !ok {
				t.Fatalf("face %d edge (%d,%d) not in edge index", fi, e[0], e[1])
			}
			found := false
			for _, adj := range tess.EdgeFaces(ei) {
				if adj == fi {
					found = true
				}
			}
			if !found {
				t.Errorf("EdgeFaces(%d) = %v, missing face %d", ei, tess.EdgeFaces(ei), fi)
			}
		}
	}
}

func TestEdgeFacesBoundaryVsInterior(t *testing.T) {
	tess := pinwheelTess(t)
	spokes, boundary := 0, 0
	for ei := range tess.Edges() {
		switch len(tess.EdgeFaces(ei)) {
		case 2:
			spokes++
		case 1:
			boundary++
		default:
			t.Fatalf("edge %d adjacent to %d faces", ei, len(tess.EdgeFaces(ei)))
		}
	}
	if spokes != 3 || boundary != 3 {
		t.Errorf("got %d interior and %d boundary edges, want 3 and 3", spokes, boundary)
	}
}

func TestFaceIndexAllOrderings(t *testing.T) {
	tess := pinwheelTess(t)
	ix := tess.Index()
	orders := [][3]int{
		{0, 1, 2}, {1, 2, 0}, {2, 0, 1},
		{2, 1, 0}, {1, 0, 2}, {0, 2, 1},
	}
	for _, o := range orders {
		fi, ok := ix.Face(o[0], o[1], o[2])
		if !ok || fi != 0 {
			t.Errorf("Face(%v) = %d, %v; want 0, true", o, fi, ok)
		}
	}
	if _, ok := ix.Face(1, 2, 3); ok {
		t.Error("Face(1,2,3) found, want miss")
	}
}

func TestEdgeIndexBothOrders(t *testing.T) {
	tess := pinwheelTess(t)
	ix := tess.Index()
	a, okA := ix.Edge(1, 2)
	b, okB := ix.Edge(2, 1)
	if !okA || !okB || a != b {
		t.Errorf("Edge(1,2) = %d,%v; Edge(2,1) = %d,%v; want same index", a, okA, b, okB)
	}
}

func TestNeighborhoods(t *testing.T) {
	tess := pinwheelTess(t)
	t.Run("interior vertex closed ring", func(t *testing.T) {
		ring := tess.Neighborhood(0)
		if len(ring) != 3 {
			t.Fatalf("Neighborhood(0) = %v, want 3 entries", ring)
		}
		got := append([]int(nil), ring...)
		sort.Ints(got)
		if !reflect.DeepEqual(got, []int{1, 2, 3}) {
			t.Errorf("Neighborhood(0) = %v, want ring over {1,2,3}", ring)
		}
	})
	t.Run("boundary vertex open chain", func(t *testing.T) {
		// Vertex 1 touches faces (0,1,2) and (0,3,1); its chain is 2-0-3
		// or the reverse.
		ring := tess.Neighborhood(1)
		want := []int{2, 0, 3}
		rev := []int{3, 0, 2}
		if !reflect.DeepEqual(ring, want) && !reflect.DeepEqual(ring, rev) {
			t.Errorf("Neighborhood(1) = %v, want %v or %v", ring, want, rev)
		}
	})
	t.Run("disk interior ring is full", func(t *testing.T) {
		d := diskMesh(t).Tess()
		ring := d.Neighborhood(0)
		if len(ring) != diskSectors {
			t.Errorf("center Neighborhood = %d entries, want %d", len(ring), diskSectors)
		}
	})
}

func TestSubTesselation(t *testing.T) {
	tess := pinwheelTess(t)
	t.Run("full mask returns receiver", func(t *testing.T) {
		sub, err := tess.SubTesselation([]bool{true, true, true, true})
		if err != nil {
			t.Fatalf("SubTesselation: %v", err)
		}
		if sub != tess {
			t.Error("full-mask SubTesselation returned a new object")
		}
	})
	t.Run("labels survive", func(t *testing.T) {
		sub, err := tess.SubTesselationLabels([]int{0, 2, 3})
		if err != nil {
			t.Fatalf("SubTesselationLabels: %v", err)
		}
		if !reflect.DeepEqual(sub.Labels(), []int{0, 2, 3}) {
			t.Errorf("Labels() = %v, want [0 2 3]", sub.Labels())
		}
		if got := sub.FaceCount(); got != 1 {
			t.Errorf("FaceCount() = %d, want 1 (only face (0,2,3) survives)", got)
		}
		if sub.Faces()[0] != [3]int{0, 2, 3} {
			t.Errorf("surviving face = %v, want (0,2,3)", sub.Faces()[0])
		}
	})
	t.Run("properties follow", func(t *testing.T) {
		withProp, err := tess.WithProp("val", proptable.Floats([]float64{10, 11, 12, 13}))
		if err != nil {
			t.Fatalf("WithProp: %v", err)
		}
		sub, err := withProp.SubTesselationLabels([]int{0, 2, 3})
		if err != nil {
			t.Fatalf("SubTesselationLabels: %v", err)
		}
		col, err := sub.Prop("val")
		if err != nil {
			t.Fatalf("Prop: %v", err)
		}
		vals, _ := col.Float64s()
		if !reflect.DeepEqual(vals, []float64{10, 12, 13}) {
			t.Errorf("sub val = %v, want [10 12 13]", vals)
		}
	})
	t.Run("unknown label", func(t *testing.T) {
		_, err := tess.SubTesselationLabels([]int{0, 99})
		if !errors.Is(err, ErrLookup) {
			t.Errorf("err = %v, want ErrLookup", err)
		}
	})
	t.Run("empty selection", func(t *testing.T) {
		_, err := tess.SubTesselation([]bool{false, false, false, false})
		if !errors.Is(err, ErrValue) {
			t.Errorf("err = %v, want ErrValue", err)
		}
	})
}

func TestSelectPredicate(t *testing.T) {
	tess, err := pinwheelTess(t).WithProp("keep", proptable.Bools([]bool{true, false, true, true}))
	if err != nil {
		t.Fatalf("WithProp: %v", err)
	}
	sub, err := tess.Select(func(r proptable.Row) bool {
		v, _ := r.Float("keep")
		return v != 0
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(sub.Labels(), []int{0, 2, 3}) {
		t.Errorf("Labels() = %v, want [0 2 3]", sub.Labels())
	}
}

func TestPropertyRowCountMismatch(t *testing.T) {
	props, err := proptable.New().With("v", proptable.Floats([]float64{1, 2}))
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	_, err = NewTesselation(pinwheelFaces(), props, nil)
	if !errors.Is(err, ErrValue) {
		t.Errorf("err = %v, want ErrValue", err)
	}
}

func TestSynthesizedColumns(t *testing.T) {
	tess := pinwheelTess(t)
	for _, key := range []string{"index", "label"} {
		col, err := tess.Prop(key)
		if err != nil {
			t.Fatalf("Prop(%q): %v", key, err)
		}
		vals, _ := col.Float64s()
		if !reflect.DeepEqual(vals, []float64{0, 1, 2, 3}) {
			t.Errorf("%q = %v, want [0 1 2 3]", key, vals)
		}
	}
}

func TestWithPropImmutability(t *testing.T) {
	tess := pinwheelTess(t)
	nt, err := tess.WithProp("v", proptable.Floats([]float64{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("WithProp: %v", err)
	}
	if tess.Properties().Has("v") {
		t.Error("WithProp mutated the receiver")
	}
	if !nt.Properties().Has("v") {
		t.Error("WithProp result lacks the column")
	}
	// Derived structure is shared, not recomputed.
	if nt.EdgeCount() != tess.EdgeCount() {
		t.Error("edge counts differ between property-only copies")
	}
}
