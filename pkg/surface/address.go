package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Address locates a point on a mesh surface independently of any particular
// embedding: a face index plus barycentric coordinates over that face's
// corners. Unaddressing against another mesh over the same tesselation maps
// the point between embeddings. A negative face marks a point that no face
// contains; its coordinates are NaN.
type Address struct {
	Face   int
	Coords [3]float64
}

// Valid reports whether the address names a face.
func (a Address) Valid() bool { return a.Face >= 0 }

// missAddress is the sentinel for uncontained points.
func missAddress() Address {
	nan := math.NaN()
	return Address{Face: -1, Coords: [3]float64{nan, nan, nan}}
}

// triangleBarycentric solves for the barycentric coordinates of p projected
// into the plane of the face, returning the coordinates and the distance
// from p to the plane. Degenerate faces yield NaN coordinates.
//
// The in-plane solve uses the Gram system of the two face edge vectors:
//
//	[u.u  u.v] [s]   [w.u]
//	[u.v  v.v] [t] = [w.v]
//
// with w the projected point relative to the first corner.
func (m *Mesh) triangleBarycentric(face int, p []float64) ([3]float64, float64) {
	f := m.tess.IndexedFaces()[face]
	a := m.vec3At(f[0])
	u := m.vec3At(f[1]).Sub(a)
	v := m.vec3At(f[2]).Sub(a)
	w := m.vec3(p).Sub(a)

	// Split w into its in-plane part and its distance along the face normal.
	var dist float64
	if n := m.FaceNormal(face); n.Length() > 0 {
		dist = w.Dot(n)
		w = w.Sub(n.MulScalar(dist))
	}

	gram := mat.NewDense(2, 2, []float64{
		u.Dot(u), u.Dot(v),
		u.Dot(v), v.Dot(v),
	})
	rhs := mat.NewVecDense(2, []float64{w.Dot(u), w.Dot(v)})
	var sol mat.VecDense
	if err := sol.SolveVec(gram, rhs); err != nil {
		nan := math.NaN()
		return [3]float64{nan, nan, nan}, dist
	}
	s, t := sol.AtVec(0), sol.AtVec(1)
	return [3]float64{1 - s - t, s, t}, dist
}

const baryEps = 1e-8

// IsPointInFace reports whether p, projected into the face's plane, falls
// inside the face (inclusive of edges, with a small tolerance).
func (m *Mesh) IsPointInFace(face int, p []float64) bool {
	bc, _ := m.triangleBarycentric(face, p)
	for _, c := range bc {
		if math.IsNaN(c) || c < -baryEps || c > 1+baryEps {
			return false
		}
	}
	return true
}

// PointInPlane returns the signed distance from p to the plane of the face
// (along the face normal) and p's projection into that plane.
func (m *Mesh) PointInPlane(face int, p []float64) (float64, []float64, error) {
	if err := m.checkPoint(p); err != nil {
		return 0, nil, err
	}
	n := m.FaceNormal(face)
	if n.Length() == 0 {
		// Degenerate face has no plane; the point projects to itself.
		out := make([]float64, m.dim)
		copy(out, p)
		return 0, out, nil
	}
	a := m.vec3At(m.tess.IndexedFaces()[face][0])
	dist := m.vec3(p).Sub(a).Dot(n)
	proj := m.vec3(p).Sub(n.MulScalar(dist))
	out := []float64{proj.X, proj.Y, proj.Z}[:m.dim]
	return dist, out, nil
}

// Address resolves a point to its containing face and barycentric
// coordinates. Points no face contains yield the miss address (face -1,
// NaN coordinates) without error.
func (m *Mesh) Address(p []float64) (Address, error) {
	face, err := m.Container(p)
	if err != nil {
		return Address{}, err
	}
	if face < 0 {
		return missAddress(), nil
	}
	bc, _ := m.triangleBarycentric(face, p)
	return Address{Face: face, Coords: bc}, nil
}

// Addresses resolves many points, optionally fanning out over workers.
func (m *Mesh) Addresses(points [][]float64, workers int) ([]Address, error) {
	faces, err := m.Containers(points, workers)
	if err != nil {
		return nil, err
	}
	out := make([]Address, len(points))
	for i, face := range faces {
		if face < 0 {
			out[i] = missAddress()
			continue
		}
		bc, _ := m.triangleBarycentric(face, points[i])
		out[i] = Address{Face: face, Coords: bc}
	}
	return out, nil
}

// Unaddress maps an address back to coordinates in this mesh's embedding.
// The mesh must share the tesselation the address was computed against. Miss
// addresses yield NaN coordinates.
func (m *Mesh) Unaddress(a Address) ([]float64, error) {
	out := make([]float64, m.dim)
	if !a.Valid() {
		for j := range out {
			out[j] = math.NaN()
		}
		return out, nil
	}
	if a.Face >= m.tess.FaceCount() {
		return nil, fmt.Errorf("%w: face index %d of %d", ErrValue, a.Face, m.tess.FaceCount())
	}
	f := m.tess.IndexedFaces()[a.Face]
	for k, vi := range f {
		c := m.coords[vi]
		for j := 0; j < m.dim; j++ {
			out[j] += a.Coords[k] * c[j]
		}
	}
	return out, nil
}

// Unaddresses maps many addresses back to coordinates.
func (m *Mesh) Unaddresses(addrs []Address) ([][]float64, error) {
	out := make([][]float64, len(addrs))
	for i, a := range addrs {
		p, err := m.Unaddress(a)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
