package surface

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/surfgeo/pkg/spatial"
)

// faceGeometry computes centers, normals, areas, and corner angle cosines
// for every face in one pass.
func (m *Mesh) faceGeometry() *meshDerived {
	g := m.g
	g.faceOnce.Do(func() {
		faces := m.tess.IndexedFaces()
		centers := make([][]float64, len(faces))
		normals := make([]v3.Vec, len(faces))
		areas := make([]float64, len(faces))
		angles := make([][3]float64, len(faces))
		for fi, f := range faces {
			ctr := make([]float64, m.dim)
			for _, vi := range f {
				for j, c := range m.coords[vi] {
					ctr[j] += c
				}
			}
			for j := range ctr {
				ctr[j] /= 3
			}
			centers[fi] = ctr

			a := m.vec3At(f[0])
			b := m.vec3At(f[1])
			c := m.vec3At(f[2])
			xp := b.Sub(a).Cross(c.Sub(a))
			norm := xp.Length()
			areas[fi] = 0.5 * norm
			if norm > 0 {
				normals[fi] = xp.DivScalar(norm)
			}

			angles[fi] = [3]float64{
				cornerCos(a, b, c),
				cornerCos(b, c, a),
				cornerCos(c, a, b),
			}
		}
		g.faceCenters = centers
		g.faceNormals = normals
		g.faceAreas = areas
		g.faceAngleCos = angles
	})
	return g
}

// cornerCos is the cosine of the angle at corner p between edges to q and r.
// Degenerate (zero-length) edges yield 0.
func cornerCos(p, q, r v3.Vec) float64 {
	u := q.Sub(p)
	v := r.Sub(p)
	lu := u.Length()
	lv := v.Length()
	if lu == 0 || lv == 0 {
		return 0
	}
	return u.Dot(v) / (lu * lv)
}

// FaceCenters returns the per-face centroids. Treat the result as read-only.
func (m *Mesh) FaceCenters() [][]float64 { return m.faceGeometry().faceCenters }

// FaceCenter returns the centroid of one face.
func (m *Mesh) FaceCenter(face int) []float64 { return m.faceGeometry().faceCenters[face] }

// FaceNormals returns the per-face unit normals. Degenerate faces carry the
// zero vector instead of a direction. For 2D meshes normals point along +z
// or -z depending on winding.
func (m *Mesh) FaceNormals() []v3.Vec { return m.faceGeometry().faceNormals }

// FaceNormal returns the unit normal of one face (zero if degenerate).
func (m *Mesh) FaceNormal(face int) v3.Vec { return m.faceGeometry().faceNormals[face] }

// FaceAreas returns the per-face triangle areas.
func (m *Mesh) FaceAreas() []float64 { return m.faceGeometry().faceAreas }

// FaceArea returns the area of one face.
func (m *Mesh) FaceArea(face int) float64 { return m.faceGeometry().faceAreas[face] }

// SurfaceArea sums the face areas.
func (m *Mesh) SurfaceArea() float64 {
	var s float64
	for _, a := range m.faceGeometry().faceAreas {
		s += a
	}
	return s
}

// FaceAngleCosines returns, per face, the cosine of the interior angle at
// each of its three corners. Corners with a degenerate edge yield 0.
func (m *Mesh) FaceAngleCosines() [][3]float64 { return m.faceGeometry().faceAngleCos }

// FaceAngles returns the interior angles (radians) at each corner of a face.
func (m *Mesh) FaceAngles(face int) [3]float64 {
	cs := m.faceGeometry().faceAngleCos[face]
	return [3]float64{math.Acos(cs[0]), math.Acos(cs[1]), math.Acos(cs[2])}
}

// VertexNormals returns per-vertex unit normals, the normalized sum of the
// incident face normals. Vertices whose incident normals cancel (or 2D
// meshes with mixed winding) carry the zero vector.
func (m *Mesh) VertexNormals() []v3.Vec {
	g := m.faceGeometry()
	g.vnOnce.Do(func() {
		n := m.VertexCount()
		out := make([]v3.Vec, n)
		for vi := 0; vi < n; vi++ {
			var s v3.Vec
			for _, fi := range m.tess.VertexFaces(vi) {
				s = s.Add(g.faceNormals[fi])
			}
			if l := s.Length(); l > 0 {
				out[vi] = s.DivScalar(l)
			}
		}
		g.vertexNormals = out
	})
	return g.vertexNormals
}

// VertexNormal returns the unit normal at one vertex.
func (m *Mesh) VertexNormal(vertex int) v3.Vec { return m.VertexNormals()[vertex] }

func (m *Mesh) edgeGeometry() *meshDerived {
	g := m.g
	g.edgeOnce.Do(func() {
		edges := m.tess.IndexedEdges()
		centers := make([][]float64, len(edges))
		lengths := make([]float64, len(edges))
		for ei, e := range edges {
			u := m.coords[e[0]]
			v := m.coords[e[1]]
			ctr := make([]float64, m.dim)
			var d2 float64
			for j := 0; j < m.dim; j++ {
				ctr[j] = 0.5 * (u[j] + v[j])
				d := u[j] - v[j]
				d2 += d * d
			}
			centers[ei] = ctr
			lengths[ei] = math.Sqrt(d2)
		}
		g.edgeCenters = centers
		g.edgeLengths = lengths
	})
	return g
}

// EdgeCenters returns the per-edge midpoints. Treat the result as read-only.
func (m *Mesh) EdgeCenters() [][]float64 { return m.edgeGeometry().edgeCenters }

// EdgeLengths returns the per-edge Euclidean lengths, indexed like
// Tesselation.Edges.
func (m *Mesh) EdgeLengths() []float64 { return m.edgeGeometry().edgeLengths }

// EdgeLength returns the length of one edge.
func (m *Mesh) EdgeLength(edge int) float64 { return m.edgeGeometry().edgeLengths[edge] }

// Bounds returns the axis-aligned bounding box of the vertex coordinates.
// Non-finite coordinates are ignored.
func (m *Mesh) Bounds() (min, max []float64) {
	g := m.g
	g.boundsOnce.Do(func() {
		lo := make([]float64, m.dim)
		hi := make([]float64, m.dim)
		for j := range lo {
			lo[j] = math.Inf(1)
			hi[j] = math.Inf(-1)
		}
		for _, row := range m.coords {
			for j, c := range row {
				if math.IsNaN(c) || math.IsInf(c, 0) {
					continue
				}
				if c < lo[j] {
					lo[j] = c
				}
				if c > hi[j] {
					hi[j] = c
				}
			}
		}
		g.boundsMin = lo
		g.boundsMax = hi
	})
	return g.boundsMin, g.boundsMax
}

// vertexIndex returns the k-d tree over vertex coordinates, built on first
// use.
func (m *Mesh) vertexIndex() (*spatial.Index, error) {
	g := m.g
	g.vtreeOnce.Do(func() {
		g.vtree, g.vtreeErr = spatial.NewIndex(m.coords)
	})
	return g.vtree, g.vtreeErr
}

// faceIndex returns the k-d tree over face centroids, built on first use.
func (m *Mesh) faceIndex() (*spatial.Index, error) {
	g := m.faceGeometry()
	g.ftreeOnce.Do(func() {
		g.ftree, g.ftreeErr = spatial.NewIndex(g.faceCenters)
	})
	return g.ftree, g.ftreeErr
}
