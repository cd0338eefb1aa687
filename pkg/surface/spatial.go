package surface

import (
	"math"
	"sync"
)

// Caps on the candidate-face doubling search. Scalar queries search harder
// than batch queries before declaring a miss.
const (
	containerScalarMaxK = 288
	containerBatchMaxK  = 256
)

// NearestVertex returns the vertex index nearest p and its distance.
func (m *Mesh) NearestVertex(p []float64) (int, float64, error) {
	if err := m.checkPoint(p); err != nil {
		return 0, 0, err
	}
	ix, err := m.vertexIndex()
	if err != nil {
		return 0, 0, err
	}
	id, d := ix.Nearest(p)
	return id, d, nil
}

// NearestVertices returns up to k vertex indices ordered by increasing
// distance to p.
func (m *Mesh) NearestVertices(p []float64, k int) ([]int, []float64, error) {
	if err := m.checkPoint(p); err != nil {
		return nil, nil, err
	}
	ix, err := m.vertexIndex()
	if err != nil {
		return nil, nil, err
	}
	ids, ds := ix.NearestN(p, k)
	return ids, ds, nil
}

// NearestVertexBatch runs NearestVertex for every point, optionally fanning
// out over workers.
func (m *Mesh) NearestVertexBatch(points [][]float64, workers int) ([]int, []float64, error) {
	for _, p := range points {
		if err := m.checkPoint(p); err != nil {
			return nil, nil, err
		}
	}
	ix, err := m.vertexIndex()
	if err != nil {
		return nil, nil, err
	}
	ids, ds := ix.NearestBatch(points, workers)
	return ids, ds, nil
}

// containerSearch scans candidate faces near p by face-center distance,
// doubling the candidate count until a containing face is found, every face
// has been tried, or maxK is exceeded. Returns -1 on a miss.
func (m *Mesh) containerSearch(p []float64, maxK int) (int, error) {
	ix, err := m.faceIndex()
	if err != nil {
		return -1, err
	}
	nf := m.tess.FaceCount()
	if maxK > nf {
		maxK = nf
	}
	visited := make(map[int]struct{}, maxK)
	for k := 2; ; k *= 2 {
		if k > maxK {
			k = maxK
		}
		ids, _ := ix.NearestN(p, k)
		for _, fi := range ids {
			if _, ok := visited[fi]; ok {
				continue
			}
			visited[fi] = struct{}{}
			if m.IsPointInFace(fi, p) {
				return fi, nil
			}
		}
		if k == maxK || len(visited) == nf {
			return -1, nil
		}
	}
}

// Container returns the index of a face containing p (its in-plane
// projection for 3D meshes), or -1 when no face contains it. A miss is not
// an error.
func (m *Mesh) Container(p []float64) (int, error) {
	if err := m.checkPoint(p); err != nil {
		return 0, err
	}
	return m.containerSearch(p, containerScalarMaxK)
}

// insideBounds reports whether p falls inside the mesh bounding box expanded
// by margin.
func (m *Mesh) insideBounds(p []float64, margin float64) bool {
	lo, hi := m.Bounds()
	for j, c := range p {
		if c < lo[j]-margin || c > hi[j]+margin {
			return false
		}
	}
	return true
}

// Containers runs the container query for every point, fanning out over
// workers. Points outside the mesh bounding box are rejected without a
// search; the per-point candidate cap is lower than Container's.
func (m *Mesh) Containers(points [][]float64, workers int) ([]int, error) {
	for _, p := range points {
		if err := m.checkPoint(p); err != nil {
			return nil, err
		}
	}
	// Force the face tree (and its geometry) before fanning out.
	if _, err := m.faceIndex(); err != nil {
		return nil, err
	}
	lo, hi := m.Bounds()
	var margin float64
	for j := range lo {
		if s := hi[j] - lo[j]; s > margin {
			margin = s
		}
	}
	margin *= 0.05

	out := make([]int, len(points))
	var firstErr error
	var mu sync.Mutex
	forEachPoint(len(points), workers, func(i int) {
		if !m.insideBounds(points[i], margin) {
			out[i] = -1
			return
		}
		fi, err := m.containerSearch(points[i], containerBatchMaxK)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			fi = -1
		}
		out[i] = fi
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// NearestData locates p on the surface: the containing face when one exists,
// otherwise the face whose center is nearest. It returns the face, the
// signed distance from p to that face's plane, and p's projection into the
// plane.
func (m *Mesh) NearestData(p []float64) (int, float64, []float64, error) {
	face, err := m.Container(p)
	if err != nil {
		return -1, 0, nil, err
	}
	if face < 0 {
		ix, ferr := m.faceIndex()
		if ferr != nil {
			return -1, 0, nil, ferr
		}
		face, _ = ix.Nearest(p)
	}
	dist, proj, err := m.PointInPlane(face, p)
	if err != nil {
		return -1, 0, nil, err
	}
	return face, dist, proj, nil
}

// Distance returns the unsigned plane distance from p to the surface, per
// NearestData.
func (m *Mesh) Distance(p []float64) (float64, error) {
	_, dist, _, err := m.NearestData(p)
	if err != nil {
		return 0, err
	}
	return math.Abs(dist), nil
}

// forEachPoint applies fn to every index in [0, n), optionally in parallel.
func forEachPoint(n, workers int, fn func(i int)) {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	if workers > n {
		workers = n
	}
	var wg sync.WaitGroup
	next := make(chan int)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range next {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		next <- i
	}
	close(next)
	wg.Wait()
}
