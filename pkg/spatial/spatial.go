// Package spatial provides a k-nearest-neighbour index over fixed-dimension
// points, backed by gonum's k-d tree. The index is immutable once built and
// safe for concurrent queries.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// ErrEmpty is returned when an index is built from zero points.
var ErrEmpty = errors.New("spatial: no points")

// ErrDims is returned for dimension mismatches between points and queries.
var ErrDims = errors.New("spatial: dimension mismatch")

// NearestNeighbors is the query surface consumed by mesh spatial queries.
type NearestNeighbors interface {
	// Nearest returns the index of the nearest stored point and its
	// Euclidean distance to q.
	Nearest(q []float64) (int, float64)
	// NearestN returns up to k stored-point indices ordered by increasing
	// distance to q, with their distances.
	NearestN(q []float64, k int) ([]int, []float64)
	Len() int
	Dims() int
}

// Compile-time interface check.
var _ NearestNeighbors = (*Index)(nil)

// point is one stored coordinate with its position in the input slice.
type point struct {
	pos []float64
	id  int
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	return p.pos[d] - q.pos[d]
}

func (p point) Dims() int { return len(p.pos) }

// Distance returns the squared Euclidean distance, per the kdtree contract;
// the index reports true distances to callers.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	var s float64
	for i := range p.pos {
		d := p.pos[i] - q.pos[i]
		s += d * d
	}
	return s
}

type pointSet []point

func (s pointSet) Index(i int) kdtree.Comparable { return s[i] }
func (s pointSet) Len() int                      { return len(s) }
func (s pointSet) Slice(start, end int) kdtree.Interface {
	return s[start:end]
}
func (s pointSet) Pivot(d kdtree.Dim) int {
	return plane{Dim: d, pointSet: s}.Pivot()
}

// plane sorts a pointSet along a single dimension for tree construction.
type plane struct {
	kdtree.Dim
	pointSet
}

func (p plane) Less(i, j int) bool {
	return p.pointSet[i].pos[p.Dim] < p.pointSet[j].pos[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.pointSet = p.pointSet[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.pointSet[i], p.pointSet[j] = p.pointSet[j], p.pointSet[i]
}

// Index is an immutable k-d tree over a fixed set of points.
type Index struct {
	tree *kdtree.Tree
	dim  int
	n    int
}

// NewIndex builds an index over the given points. All points must share the
// same dimensionality. The input is copied.
func NewIndex(points [][]float64) (*Index, error) {
	if len(points) == 0 {
		return nil, ErrEmpty
	}
	dim := len(points[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional points", ErrDims)
	}
	ps := make(pointSet, len(points))
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("%w: point %d has %d dims, want %d", ErrDims, i, len(p), dim)
		}
		pos := make([]float64, dim)
		copy(pos, p)
		ps[i] = point{pos: pos, id: i}
	}
	return &Index{tree: kdtree.New(ps, false), dim: dim, n: len(points)}, nil
}

// Len reports the number of stored points.
func (x *Index) Len() int { return x.n }

// Dims reports the dimensionality of the stored points.
func (x *Index) Dims() int { return x.dim }

// Nearest returns the index of the stored point nearest q and its distance.
func (x *Index) Nearest(q []float64) (int, float64) {
	got, d2 := x.tree.Nearest(point{pos: q})
	return got.(point).id, math.Sqrt(d2)
}

// NearestN returns up to k stored-point indices ordered by increasing
// distance to q. Fewer than k results are returned when the index holds
// fewer points.
func (x *Index) NearestN(q []float64, k int) ([]int, []float64) {
	if k <= 0 {
		return nil, nil
	}
	if k > x.n {
		k = x.n
	}
	keep := kdtree.NewNKeeper(k)
	x.tree.NearestSet(keep, point{pos: q})

	type hit struct {
		id int
		d  float64
	}
	hits := make([]hit, 0, k)
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		hits = append(hits, hit{id: cd.Comparable.(point).id, d: math.Sqrt(cd.Dist)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].d < hits[j].d })

	ids := make([]int, len(hits))
	dists := make([]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
		dists[i] = h.d
	}
	return ids, dists
}

// NearestBatch runs Nearest for every query point, fanning out over the
// given number of workers. Workers <= 1 runs serially; correctness never
// depends on the worker count.
func (x *Index) NearestBatch(qs [][]float64, workers int) ([]int, []float64) {
	ids := make([]int, len(qs))
	dists := make([]float64, len(qs))
	forEach(len(qs), workers, func(i int) {
		ids[i], dists[i] = x.Nearest(qs[i])
	})
	return ids, dists
}

// forEach applies fn to every index in [0, n), optionally in parallel.
func forEach(n, workers int, fn func(i int)) {
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
