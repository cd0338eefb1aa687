package surface

import (
	"fmt"
	"sync"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/surfgeo/pkg/proptable"
	"github.com/chazu/surfgeo/pkg/spatial"
)

// Mesh is a tesselation embedded in 2D or 3D space. The tesselation object
// is shared, not copied; coordinate data is owned by the mesh.
type Mesh struct {
	VertexSet
	tess   *Tesselation
	coords [][]float64 // one row per vertex, len = dim
	dim    int
	extra  *proptable.Table // mesh-level columns beyond the tesselation's

	g *meshDerived
}

// meshDerived holds lazily computed per-face/per-edge geometry and the two
// spatial indices. It is shared between property-only copies of a mesh.
type meshDerived struct {
	faceOnce     sync.Once
	faceCenters  [][]float64
	faceNormals  []v3.Vec
	faceAreas    []float64
	faceAngleCos [][3]float64

	vnOnce        sync.Once
	vertexNormals []v3.Vec

	edgeOnce    sync.Once
	edgeCenters [][]float64
	edgeLengths []float64

	boundsOnce           sync.Once
	boundsMin, boundsMax []float64

	vtreeOnce sync.Once
	vtree     *spatial.Index
	vtreeErr  error

	ftreeOnce sync.Once
	ftree     *spatial.Index
	ftreeErr  error
}

// CoordinateMatrix normalizes a coordinate matrix for n vertices into
// per-vertex rows. A matrix with 2 or 3 rows of length n is read as d x n;
// otherwise it must be n rows of d in {2, 3}. The d x n reading wins when
// both apply.
func CoordinateMatrix(data [][]float64, n int) ([][]float64, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty coordinate matrix", ErrValue)
	}
	if d := len(data); (d == 2 || d == 3) && len(data[0]) == n {
		uniform := true
		for _, row := range data {
			if len(row) != n {
				uniform = false
				break
			}
		}
		if uniform {
			out := make([][]float64, n)
			for i := 0; i < n; i++ {
				row := make([]float64, d)
				for j := 0; j < d; j++ {
					row[j] = data[j][i]
				}
				out[i] = row
			}
			return out, d, nil
		}
	}
	if len(data) != n {
		return nil, 0, fmt.Errorf("%w: coordinate matrix has %d columns for %d vertices",
			ErrValue, len(data), n)
	}
	d := len(data[0])
	if d != 2 && d != 3 {
		return nil, 0, fmt.Errorf("%w: coordinates must be 2D or 3D, got %dD", ErrValue, d)
	}
	out := make([][]float64, n)
	for i, row := range data {
		if len(row) != d {
			return nil, 0, fmt.Errorf("%w: ragged coordinate matrix", ErrValue)
		}
		r := make([]float64, d)
		copy(r, row)
		out[i] = r
	}
	return out, d, nil
}

// NewMesh embeds a tesselation with coordinates. The coordinate matrix may
// be given as d x n or n x d with d in {2, 3}; the column count must equal
// the tesselation's vertex count. Mesh properties overlay the tesselation's
// and gain lazy "x", "y" (and "z") coordinate columns.
func NewMesh(tess *Tesselation, coords [][]float64, props *proptable.Table, meta Meta) (*Mesh, error) {
	if tess == nil {
		return nil, fmt.Errorf("%w: nil tesselation", ErrValue)
	}
	n := tess.VertexCount()
	cc, dim, err := CoordinateMatrix(coords, n)
	if err != nil {
		return nil, err
	}

	if props == nil {
		props = proptable.New()
	}
	user, err := tess.user.Merge(props)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	for j, name := range []string{"x", "y", "z"}[:dim] {
		jj := j
		user, err = user.WithLazy(name, n, func() proptable.Column {
			col := make([]float64, n)
			for i := range col {
				col[i] = cc[i][jj]
			}
			return proptable.Floats(col)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValue, err)
		}
	}

	md := tess.meta.clone()
	for k, v := range meta {
		md[k] = v
	}
	vs, err := newVertexSet(tess.labels, user, md)
	if err != nil {
		return nil, err
	}
	return &Mesh{
		VertexSet: vs,
		tess:      tess,
		coords:    cc,
		dim:       dim,
		extra:     props,
		g:         &meshDerived{},
	}, nil
}

// NewMeshFromFaces builds the tesselation and the mesh in one step.
func NewMeshFromFaces(faces [][3]int, coords [][]float64, props *proptable.Table, meta Meta) (*Mesh, error) {
	tess, err := NewTesselation(faces, nil, nil)
	if err != nil {
		return nil, err
	}
	return NewMesh(tess, coords, props, meta)
}

// Tess returns the underlying tesselation (shared, never copied).
func (m *Mesh) Tess() *Tesselation { return m.tess }

// Dim reports the embedding dimensionality (2 or 3).
func (m *Mesh) Dim() int { return m.dim }

// Coordinates returns the per-vertex coordinate rows. Treat the result as
// read-only.
func (m *Mesh) Coordinates() [][]float64 { return m.coords }

// VertexCoord returns the coordinates of one vertex. Treat the result as
// read-only.
func (m *Mesh) VertexCoord(vertex int) []float64 { return m.coords[vertex] }

// vec3At promotes a vertex coordinate to 3D (z=0 for 2D meshes).
func (m *Mesh) vec3At(vertex int) v3.Vec {
	c := m.coords[vertex]
	if m.dim == 2 {
		return v3.Vec{X: c[0], Y: c[1]}
	}
	return v3.Vec{X: c[0], Y: c[1], Z: c[2]}
}

// vec3 promotes an arbitrary point to 3D.
func (m *Mesh) vec3(p []float64) v3.Vec {
	if m.dim == 2 {
		return v3.Vec{X: p[0], Y: p[1]}
	}
	return v3.Vec{X: p[0], Y: p[1], Z: p[2]}
}

func (m *Mesh) checkPoint(p []float64) error {
	if len(p) != m.dim {
		return fmt.Errorf("%w: point has %d dims, mesh is %dD", ErrValue, len(p), m.dim)
	}
	return nil
}

// FaceCorners returns the vertex indices of a face.
func (m *Mesh) FaceCorners(face int) [3]int { return m.tess.IndexedFaces()[face] }

// withVertexSet returns a property-only copy sharing coordinates, the
// tesselation, and derived geometry.
func (m *Mesh) withVertexSet(vs VertexSet, extra *proptable.Table) *Mesh {
	return &Mesh{VertexSet: vs, tess: m.tess, coords: m.coords, dim: m.dim, extra: extra, g: m.g}
}

// WithProp returns a new mesh with the column added or replaced.
func (m *Mesh) WithProp(key string, col proptable.Column) (*Mesh, error) {
	extra, err := m.extra.With(key, col)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	user, err := m.user.With(key, col)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	vs, err := newVertexSet(m.labels, user, m.meta)
	if err != nil {
		return nil, err
	}
	return m.withVertexSet(vs, extra), nil
}

// WithoutProp returns a new mesh with the column removed. Tesselation-level
// and synthesized columns cannot be removed this way.
func (m *Mesh) WithoutProp(key string) *Mesh {
	extra := m.extra.Without(key)
	if extra == m.extra {
		return m
	}
	user := m.user.Without(key)
	vs, err := newVertexSet(m.labels, user, m.meta)
	if err != nil {
		panic(err)
	}
	return m.withVertexSet(vs, extra)
}

// WithMeta returns a new mesh with the metadata entry set.
func (m *Mesh) WithMeta(key string, value interface{}) *Mesh {
	meta := m.meta.clone()
	meta[key] = value
	nm := *m
	nm.meta = meta
	return &nm
}

// WithoutMeta returns a new mesh with the metadata entry removed.
func (m *Mesh) WithoutMeta(key string) *Mesh {
	if _, ok := m.meta[key]; !ok {
		return m
	}
	meta := m.meta.clone()
	delete(meta, key)
	nm := *m
	nm.meta = meta
	return &nm
}

// SubMesh returns the mesh restricted to the vertices where keep is true,
// sharing a sub-tesselation. Selecting every vertex returns the receiver.
func (m *Mesh) SubMesh(keep []bool) (*Mesh, error) {
	subt, err := m.tess.SubTesselation(keep)
	if err != nil {
		return nil, err
	}
	if subt == m.tess {
		return m, nil
	}
	rows := make([]int, 0, subt.VertexCount())
	for _, l := range subt.labels {
		rows = append(rows, m.tess.vidx[l])
	}
	coords := make([][]float64, len(rows))
	for i, r := range rows {
		coords[i] = m.coords[r]
	}
	extra := m.extra
	if extra.Len() > 0 {
		extra, err = extra.Select(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValue, err)
		}
	}
	return NewMesh(subt, coords, extra, m.meta)
}

// SubMeshLabels is SubMesh with the kept vertices given as labels.
func (m *Mesh) SubMeshLabels(labels []int) (*Mesh, error) {
	keep := make([]bool, m.VertexCount())
	for _, l := range labels {
		i, ok := m.tess.vidx[l]
		if !ok {
			return nil, fmt.Errorf("%w: vertex label %d", ErrLookup, l)
		}
		keep[i] = true
	}
	return m.SubMesh(keep)
}

// Select is SubMesh over a per-vertex property predicate.
func (m *Mesh) Select(pred func(proptable.Row) bool) (*Mesh, error) {
	return m.SubMesh(m.whereMask(pred))
}

func (m *Mesh) String() string {
	return fmt.Sprintf("Mesh(<%dD>, <%d faces>, <%d vertices>)",
		m.dim, m.tess.FaceCount(), m.VertexCount())
}
