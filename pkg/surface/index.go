package surface

import "fmt"

// TesselationIndex resolves vertex labels to indices for vertices, edges,
// and faces. Edge lookups accept either label order; face lookups accept any
// of the six orderings of the face's labels.
type TesselationIndex struct {
	vertex map[int]int
	edge   map[[2]int]int
	face   map[[3]int]int
}

// Vertex returns the vertex index of a label.
func (ix *TesselationIndex) Vertex(label int) (int, bool) {
	i, ok := ix.vertex[label]
	return i, ok
}

// Edge returns the edge index of the edge between labels u and v.
func (ix *TesselationIndex) Edge(u, v int) (int, bool) {
	i, ok := ix.edge[[2]int{u, v}]
	return i, ok
}

// Face returns the face index of the face with labels u, v, w in any order.
func (ix *TesselationIndex) Face(u, v, w int) (int, bool) {
	i, ok := ix.face[[3]int{u, v, w}]
	return i, ok
}

// Vertices resolves a vector of labels to vertex indices. Unknown labels
// fail with ErrLookup.
func (ix *TesselationIndex) Vertices(labels []int) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		vi, ok := ix.vertex[l]
		if !ok {
			return nil, fmt.Errorf("%w: vertex label %d", ErrLookup, l)
		}
		out[i] = vi
	}
	return out, nil
}

// EdgePair resolves an edge's two labels to their vertex indices without
// looking up the edge itself.
func (ix *TesselationIndex) EdgePair(u, v int) ([2]int, error) {
	ui, ok := ix.vertex[u]
	if !ok {
		return [2]int{}, fmt.Errorf("%w: vertex label %d", ErrLookup, u)
	}
	vi, ok := ix.vertex[v]
	if !ok {
		return [2]int{}, fmt.Errorf("%w: vertex label %d", ErrLookup, v)
	}
	return [2]int{ui, vi}, nil
}

// FaceTriple resolves a face's three labels to their vertex indices without
// looking up the face itself.
func (ix *TesselationIndex) FaceTriple(u, v, w int) ([3]int, error) {
	p, err := ix.EdgePair(u, v)
	if err != nil {
		return [3]int{}, err
	}
	wi, ok := ix.vertex[w]
	if !ok {
		return [3]int{}, fmt.Errorf("%w: vertex label %d", ErrLookup, w)
	}
	return [3]int{p[0], p[1], wi}, nil
}

// Edges resolves a matrix of label pairs to edge indices.
func (ix *TesselationIndex) Edges(pairs [][2]int) ([]int, error) {
	out := make([]int, len(pairs))
	for i, p := range pairs {
		ei, ok := ix.edge[p]
		if !ok {
			return nil, fmt.Errorf("%w: edge (%d, %d)", ErrLookup, p[0], p[1])
		}
		out[i] = ei
	}
	return out, nil
}

// Faces resolves a matrix of label triples to face indices.
func (ix *TesselationIndex) Faces(triples [][3]int) ([]int, error) {
	out := make([]int, len(triples))
	for i, f := range triples {
		fi, ok := ix.face[f]
		if !ok {
			return nil, fmt.Errorf("%w: face (%d, %d, %d)", ErrLookup, f[0], f[1], f[2])
		}
		out[i] = fi
	}
	return out, nil
}

// Matrix dispatches a label matrix on its width: 2-wide rows resolve as
// edges, 3-wide rows as faces, 1-wide rows as vertices. Mixed or other
// widths fail with ErrValue.
func (ix *TesselationIndex) Matrix(rows [][]int) ([]int, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	w := len(rows[0])
	out := make([]int, len(rows))
	for i, r := range rows {
		if len(r) != w {
			return nil, fmt.Errorf("%w: ragged index matrix", ErrValue)
		}
		var (
			v  int
			ok bool
		)
		switch w {
		case 1:
			v, ok = ix.vertex[r[0]]
		case 2:
			v, ok = ix.edge[[2]int{r[0], r[1]}]
		case 3:
			v, ok = ix.face[[3]int{r[0], r[1], r[2]}]
		default:
			return nil, fmt.Errorf("%w: index rows must have 1, 2, or 3 labels", ErrValue)
		}
		if !ok {
			return nil, fmt.Errorf("%w: row %d %v", ErrLookup, i, r)
		}
		out[i] = v
	}
	return out, nil
}
