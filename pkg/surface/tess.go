package surface

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/surfgeo/pkg/proptable"
)

// Tesselation is a combinatorial triangle mesh: vertex labels plus face
// triples, with no coordinate embedding. Faces reference vertices by label;
// labels survive sub-tesselation unchanged even though indices are
// renumbered.
type Tesselation struct {
	VertexSet
	faces [][3]int    // by label, one triple per face
	vidx  map[int]int // label -> vertex index

	d *tessDerived
}

// tessDerived holds the lazily computed incidence structures. It is shared
// between a tesselation and its property-only copies (the structures depend
// only on the face array) and populated at most once per group.
type tessDerived struct {
	edgeOnce  sync.Once
	edges     [][2]int      // unique undirected edges, by label
	edgeIndex map[[2]int]int // both orders -> edge index
	edgeFaces [][]int       // edge index -> 1 or 2 adjacent face indices

	faceOnce  sync.Once
	faceIndex map[[3]int]int // all six permutations -> face index

	incOnce     sync.Once
	vertexEdges [][]int // vertex index -> incident edge indices
	vertexFaces [][]int // vertex index -> incident face indices

	idxOnce      sync.Once
	indexedFaces [][3]int
	indexedEdges [][2]int

	neighOnce     sync.Once
	neighborhoods [][]int // vertex index -> ordered ring of neighbour labels
	indexedNeighs [][]int

	tiOnce sync.Once
	ti     *TesselationIndex
}

// NewTesselation builds a tesselation from face triples of vertex labels.
// The vertex set is the sorted unique labels appearing in faces. Property
// tables must have one row per vertex.
func NewTesselation(faces [][3]int, props *proptable.Table, meta Meta) (*Tesselation, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: tesselation needs at least one face", ErrValue)
	}
	fcs := make([][3]int, len(faces))
	copy(fcs, faces)

	seen := map[int]struct{}{}
	for _, f := range fcs {
		seen[f[0]] = struct{}{}
		seen[f[1]] = struct{}{}
		seen[f[2]] = struct{}{}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	vidx := make(map[int]int, len(labels))
	for i, l := range labels {
		vidx[l] = i
	}

	vs, err := newVertexSet(labels, props, meta)
	if err != nil {
		return nil, err
	}
	return &Tesselation{VertexSet: vs, faces: fcs, vidx: vidx, d: &tessDerived{}}, nil
}

// TrianglesFromMatrix reshapes an integer matrix into face triples. A 3-row
// matrix is read as 3 x m (one face per column); otherwise every row must
// have exactly 3 entries (m x 3). Anything else fails with ErrValue.
func TrianglesFromMatrix(rows [][]int) ([][3]int, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty face matrix", ErrValue)
	}
	if len(rows) == 3 {
		m := len(rows[0])
		if len(rows[1]) == m && len(rows[2]) == m {
			faces := make([][3]int, m)
			for j := 0; j < m; j++ {
				faces[j] = [3]int{rows[0][j], rows[1][j], rows[2][j]}
			}
			return faces, nil
		}
	}
	faces := make([][3]int, len(rows))
	for i, r := range rows {
		if len(r) != 3 {
			return nil, fmt.Errorf("%w: face matrix must be 3 x m or m x 3", ErrValue)
		}
		faces[i] = [3]int{r[0], r[1], r[2]}
	}
	return faces, nil
}

// NewTesselationFromMatrix is NewTesselation over a 3 x m or m x 3 matrix.
func NewTesselationFromMatrix(rows [][]int, props *proptable.Table, meta Meta) (*Tesselation, error) {
	faces, err := TrianglesFromMatrix(rows)
	if err != nil {
		return nil, err
	}
	return NewTesselation(faces, props, meta)
}

// FaceCount reports the number of faces.
func (t *Tesselation) FaceCount() int { return len(t.faces) }

// Faces returns the face triples by vertex label. The returned slice is the
// tesselation's own storage; treat it as read-only.
func (t *Tesselation) Faces() [][3]int { return t.faces }

// VertexIndexOf maps a vertex label to its index.
func (t *Tesselation) VertexIndexOf(label int) (int, bool) {
	i, ok := t.vidx[label]
	return i, ok
}

func edgeKey(u, v int) [2]int {
	if u > v {
		u, v = v, u
	}
	return [2]int{u, v}
}

func (t *Tesselation) edgeData() *tessDerived {
	d := t.d
	d.edgeOnce.Do(func() {
		idx := make(map[[2]int]int, len(t.faces)*3)
		var edges [][2]int
		var edgeFaces [][]int
		for fi, f := range t.faces {
			for _, e := range [3][2]int{{f[0], f[1]}, {f[1], f[2]}, {f[2], f[0]}} {
				k := edgeKey(e[0], e[1])
				ei, ok := idx[k]
				if !ok {
					ei = len(edges)
					idx[k] = ei
					idx[[2]int{k[1], k[0]}] = ei
					edges = append(edges, k)
					edgeFaces = append(edgeFaces, nil)
				}
				edgeFaces[ei] = append(edgeFaces[ei], fi)
			}
		}
		d.edges = edges
		d.edgeIndex = idx
		d.edgeFaces = edgeFaces
	})
	return d
}

// EdgeCount reports the number of unique undirected edges.
func (t *Tesselation) EdgeCount() int { return len(t.edgeData().edges) }

// Edges returns the unique undirected edges by vertex label, each stored
// with the smaller label first. Treat the result as read-only.
func (t *Tesselation) Edges() [][2]int { return t.edgeData().edges }

// EdgeFaces returns the 1 (boundary) or 2 (interior) face indices adjacent
// to the edge with the given edge index.
func (t *Tesselation) EdgeFaces(edge int) []int { return t.edgeData().edgeFaces[edge] }

// FacesOfEdge returns the faces adjacent to the edge between labels u and v,
// in either order.
func (t *Tesselation) FacesOfEdge(u, v int) ([]int, bool) {
	d := t.edgeData()
	ei, ok := d.edgeIndex[[2]int{u, v}]
	if !ok {
		return nil, false
	}
	return d.edgeFaces[ei], true
}

func (t *Tesselation) faceIndexMap() map[[3]int]int {
	d := t.d
	d.faceOnce.Do(func() {
		idx := make(map[[3]int]int, len(t.faces)*6)
		for i, f := range t.faces {
			a, b, c := f[0], f[1], f[2]
			// All six orderings resolve to the same face, so lookup is
			// orientation-agnostic.
			idx[[3]int{a, b, c}] = i
			idx[[3]int{b, c, a}] = i
			idx[[3]int{c, a, b}] = i
			idx[[3]int{c, b, a}] = i
			idx[[3]int{b, a, c}] = i
			idx[[3]int{a, c, b}] = i
		}
		d.faceIndex = idx
	})
	return d.faceIndex
}

func (t *Tesselation) incidence() *tessDerived {
	d := t.edgeData()
	d.incOnce.Do(func() {
		n := t.VertexCount()
		ve := make([][]int, n)
		vf := make([][]int, n)
		for ei, e := range d.edges {
			ve[t.vidx[e[0]]] = append(ve[t.vidx[e[0]]], ei)
			ve[t.vidx[e[1]]] = append(ve[t.vidx[e[1]]], ei)
		}
		for fi, f := range t.faces {
			vf[t.vidx[f[0]]] = append(vf[t.vidx[f[0]]], fi)
			vf[t.vidx[f[1]]] = append(vf[t.vidx[f[1]]], fi)
			vf[t.vidx[f[2]]] = append(vf[t.vidx[f[2]]], fi)
		}
		d.vertexEdges = ve
		d.vertexFaces = vf
	})
	return d
}

// VertexEdges returns the edge indices incident to the vertex with the given
// vertex index.
func (t *Tesselation) VertexEdges(vertex int) []int { return t.incidence().vertexEdges[vertex] }

// VertexFaces returns the face indices incident to the vertex with the given
// vertex index.
func (t *Tesselation) VertexFaces(vertex int) []int { return t.incidence().vertexFaces[vertex] }

// IndexedFaces returns the faces as vertex-index triples rather than labels.
func (t *Tesselation) IndexedFaces() [][3]int {
	d := t.d
	d.idxOnce.Do(func() {
		t.edgeData()
		inf := make([][3]int, len(t.faces))
		for i, f := range t.faces {
			inf[i] = [3]int{t.vidx[f[0]], t.vidx[f[1]], t.vidx[f[2]]}
		}
		ine := make([][2]int, len(d.edges))
		for i, e := range d.edges {
			ine[i] = [2]int{t.vidx[e[0]], t.vidx[e[1]]}
		}
		d.indexedFaces = inf
		d.indexedEdges = ine
	})
	return d.indexedFaces
}

// IndexedEdges returns the edges as vertex-index pairs rather than labels.
func (t *Tesselation) IndexedEdges() [][2]int {
	t.IndexedFaces()
	return t.d.indexedEdges
}

// orderNeighborhood chains directed edges (start, end) into a vertex ring:
// forward from the first edge, then backward from its start, so boundary
// vertices yield their longest open chain through the starting edge.
// Inconsistent (non-manifold) adjacency truncates the chain; it is not
// repaired.
func orderNeighborhood(edges [][2]int) []int {
	if len(edges) == 0 {
		return nil
	}
	used := make([]bool, len(edges))
	ring := []int{edges[0][0], edges[0][1]}
	used[0] = true
	for {
		last := ring[len(ring)-1]
		if last == ring[0] {
			// Closed ring: drop the duplicated start.
			return ring[:len(ring)-1]
		}
		found := false
		for i, e := range edges {
			if !used[i] && e[0] == last {
				ring = append(ring, e[1])
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	// Open chain: extend backward from the start.
	for {
		first := ring[0]
		found := false
		for i, e := range edges {
			if !used[i] && e[1] == first {
				ring = append([]int{e[0]}, ring...)
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return ring
		}
	}
}

func (t *Tesselation) neighborhoodData() *tessDerived {
	d := t.incidence()
	d.neighOnce.Do(func() {
		n := t.VertexCount()
		neigh := make([][]int, n)
		ineigh := make([][]int, n)
		for vi := 0; vi < n; vi++ {
			u := t.labels[vi]
			fs := d.vertexFaces[vi]
			dir := make([][2]int, 0, len(fs))
			for _, fi := range fs {
				f := t.faces[fi]
				// The directed edge opposite u, oriented as the face is.
				switch u {
				case f[2]:
					dir = append(dir, [2]int{f[0], f[1]})
				case f[0]:
					dir = append(dir, [2]int{f[1], f[2]})
				default:
					dir = append(dir, [2]int{f[2], f[0]})
				}
			}
			ring := orderNeighborhood(dir)
			neigh[vi] = ring
			iring := make([]int, len(ring))
			for i, l := range ring {
				iring[i] = t.vidx[l]
			}
			ineigh[vi] = iring
		}
		d.neighborhoods = neigh
		d.indexedNeighs = ineigh
	})
	return d
}

// Neighborhood returns the ring of labels adjacent to the vertex with the
// given vertex index, ordered by walking shared-edge adjacency. Interior
// vertices yield a closed cycle (without a duplicated endpoint); boundary
// vertices yield an open chain.
func (t *Tesselation) Neighborhood(vertex int) []int {
	return t.neighborhoodData().neighborhoods[vertex]
}

// IndexedNeighborhood is Neighborhood with vertex indices instead of labels.
func (t *Tesselation) IndexedNeighborhood(vertex int) []int {
	return t.neighborhoodData().indexedNeighs[vertex]
}

// Index returns the label-based lookup helper for vertices, edges and faces.
func (t *Tesselation) Index() *TesselationIndex {
	d := t.edgeData()
	t.faceIndexMap()
	d.tiOnce.Do(func() {
		d.ti = &TesselationIndex{vertex: t.vidx, edge: d.edgeIndex, face: d.faceIndex}
	})
	return d.ti
}

// withVertexSet returns a property-only copy sharing faces and derived
// structures.
func (t *Tesselation) withVertexSet(vs VertexSet) *Tesselation {
	return &Tesselation{VertexSet: vs, faces: t.faces, vidx: t.vidx, d: t.d}
}

// WithProp returns a new tesselation with the column added or replaced.
func (t *Tesselation) WithProp(key string, col proptable.Column) (*Tesselation, error) {
	user, err := t.user.With(key, col)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	vs, err := newVertexSet(t.labels, user, t.meta)
	if err != nil {
		return nil, err
	}
	return t.withVertexSet(vs), nil
}

// WithoutProp returns a new tesselation with the column removed.
func (t *Tesselation) WithoutProp(key string) *Tesselation {
	user := t.user.Without(key)
	if user == t.user {
		return t
	}
	vs, err := newVertexSet(t.labels, user, t.meta)
	if err != nil {
		// Removing a column cannot break the row invariant.
		panic(err)
	}
	return t.withVertexSet(vs)
}

// WithMeta returns a new tesselation with the metadata entry set.
func (t *Tesselation) WithMeta(key string, value interface{}) *Tesselation {
	meta := t.meta.clone()
	meta[key] = value
	nt := *t
	nt.meta = meta
	return &nt
}

// WithoutMeta returns a new tesselation with the metadata entry removed.
func (t *Tesselation) WithoutMeta(key string) *Tesselation {
	if _, ok := t.meta[key]; !ok {
		return t
	}
	meta := t.meta.clone()
	delete(meta, key)
	nt := *t
	nt.meta = meta
	return &nt
}

// SubTesselation returns the tesselation restricted to the vertices where
// keep is true. A face survives iff all three corners survive; surviving
// vertices keep their labels. Selecting every vertex returns the receiver.
func (t *Tesselation) SubTesselation(keep []bool) (*Tesselation, error) {
	n := t.VertexCount()
	if len(keep) != n {
		return nil, fmt.Errorf("%w: mask has %d entries for %d vertices", ErrValue, len(keep), n)
	}
	all := true
	var rows []int
	for i, k := range keep {
		if k {
			rows = append(rows, i)
		} else {
			all = false
		}
	}
	if all {
		return t, nil
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sub-tesselation selects no vertices", ErrValue)
	}
	var faces [][3]int
	for _, f := range t.faces {
		if keep[t.vidx[f[0]]] && keep[t.vidx[f[1]]] && keep[t.vidx[f[2]]] {
			faces = append(faces, f)
		}
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: sub-tesselation retains no faces", ErrValue)
	}
	props := t.user
	if props.Len() > 0 {
		// Restrict rows to the surviving labels, in the order the new
		// tesselation will sort them. Labels were sorted already, so the
		// filtered index list is in label order too.
		sub, err := NewTesselation(faces, nil, t.meta)
		if err != nil {
			return nil, err
		}
		keepRows := make([]int, 0, sub.VertexCount())
		for _, l := range sub.labels {
			keepRows = append(keepRows, t.vidx[l])
		}
		selected, err := props.Select(keepRows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValue, err)
		}
		return NewTesselation(faces, selected, t.meta)
	}
	return NewTesselation(faces, nil, t.meta)
}

// SubTesselationLabels is SubTesselation with the kept vertices given as
// labels. Unknown labels fail with ErrLookup.
func (t *Tesselation) SubTesselationLabels(labels []int) (*Tesselation, error) {
	keep := make([]bool, t.VertexCount())
	for _, l := range labels {
		i, ok := t.vidx[l]
		if !ok {
			return nil, fmt.Errorf("%w: vertex label %d", ErrLookup, l)
		}
		keep[i] = true
	}
	return t.SubTesselation(keep)
}

// Select is SubTesselation over a per-vertex property predicate.
func (t *Tesselation) Select(pred func(proptable.Row) bool) (*Tesselation, error) {
	return t.SubTesselation(t.whereMask(pred))
}

// MakeMesh embeds the tesselation with the given coordinates.
func (t *Tesselation) MakeMesh(coords [][]float64) (*Mesh, error) {
	return NewMesh(t, coords, nil, nil)
}

func (t *Tesselation) String() string {
	return fmt.Sprintf("Tesselation(<%d faces>, <%d vertices>)", t.FaceCount(), t.VertexCount())
}
