package surface

import (
	"math"
	"math/rand"
	"testing"
)

// randomSurfacePoint draws a point uniformly from a random face of m.
func randomSurfacePoint(rng *rand.Rand, m *Mesh) (int, []float64) {
	fi := rng.Intn(m.Tess().FaceCount())
	a, b := rng.Float64(), rng.Float64()
	if a+b > 1 {
		a, b = 1-a, 1-b
	}
	f := m.Tess().IndexedFaces()[fi]
	p := make([]float64, m.Dim())
	w := [3]float64{1 - a - b, a, b}
	for k, vi := range f {
		for j, c := range m.VertexCoord(vi) {
			p[j] += w[k] * c
		}
	}
	return fi, p
}

func TestAddressRoundTrip(t *testing.T) {
	m := diskMesh(t)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		_, p := randomSurfacePoint(rng, m)
		addr, err := m.Address(p)
		if err != nil {
			t.Fatalf("Address: %v", err)
		}
		if !addr.Valid() {
			t.Fatalf("point %v on the surface got a miss address", p)
		}
		back, err := m.Unaddress(addr)
		if err != nil {
			t.Fatalf("Unaddress: %v", err)
		}
		for j := range p {
			if !near(back[j], p[j], 1e-9) {
				t.Fatalf("round trip %v -> %v", p, back)
			}
		}
	}
}

// An address computed against one embedding must resolve to the matching
// point in another embedding of the same tesselation.
func TestAddressAcrossEmbeddings(t *testing.T) {
	m := diskMesh(t)
	scaled := make([][]float64, m.VertexCount())
	for i, c := range m.Coordinates() {
		scaled[i] = []float64{3 * c[0], 3 * c[1]}
	}
	m2, err := NewMesh(m.Tess(), scaled, nil, nil)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		_, p := randomSurfacePoint(rng, m)
		addr, err := m.Address(p)
		if err != nil {
			t.Fatalf("Address: %v", err)
		}
		got, err := m2.Unaddress(addr)
		if err != nil {
			t.Fatalf("Unaddress: %v", err)
		}
		for j := range p {
			if !near(got[j], 3*p[j], 1e-9) {
				t.Fatalf("cross-embedding %v -> %v, want %v scaled by 3", p, got, p)
			}
		}
	}
}

func TestAddressMiss(t *testing.T) {
	m := pinwheelMesh(t)
	addr, err := m.Address([]float64{9, 9})
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if addr.Valid() {
		t.Fatalf("far point got face %d, want miss", addr.Face)
	}
	back, err := m.Unaddress(addr)
	if err != nil {
		t.Fatalf("Unaddress: %v", err)
	}
	for _, c := range back {
		if !math.IsNaN(c) {
			t.Fatalf("miss unaddress = %v, want NaN coordinates", back)
		}
	}
}

func TestAddressesBatch(t *testing.T) {
	m := diskMesh(t)
	rng := rand.New(rand.NewSource(3))
	points := make([][]float64, 50)
	for i := range points {
		_, points[i] = randomSurfacePoint(rng, m)
	}
	addrs, err := m.Addresses(points, 4)
	if err != nil {
		t.Fatalf("Addresses: %v", err)
	}
	for i, a := range addrs {
		single, err := m.Address(points[i])
		if err != nil {
			t.Fatalf("Address: %v", err)
		}
		if a.Face != single.Face {
			t.Errorf("point %d: batch face %d, scalar face %d", i, a.Face, single.Face)
		}
	}
}

func TestBarycentricCoordsSum(t *testing.T) {
	m := diskMesh(t)
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		_, p := randomSurfacePoint(rng, m)
		addr, err := m.Address(p)
		if err != nil || !addr.Valid() {
			t.Fatalf("Address(%v) = %v, %v", p, addr, err)
		}
		sum := addr.Coords[0] + addr.Coords[1] + addr.Coords[2]
		if !near(sum, 1, 1e-9) {
			t.Fatalf("coords %v sum to %g", addr.Coords, sum)
		}
		for _, c := range addr.Coords {
			if c < -1e-8 || c > 1+1e-8 {
				t.Fatalf("coords %v out of range", addr.Coords)
			}
		}
	}
}
