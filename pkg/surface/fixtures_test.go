package surface

import (
	"math"
	"testing"
)

// pinwheel is the small hand-checkable fixture: a central vertex surrounded
// by three triangles.
//
//	vertices: 0 at the origin; 1, 2, 3 on the unit circle at 90, 210, 330
//	degrees. faces: (0,1,2), (0,2,3), (0,3,1). 4 vertices, 6 edges, 3 faces.
func pinwheelFaces() [][3]int {
	return [][3]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 1}}
}

func pinwheelCoords() [][]float64 {
	deg := func(d float64) []float64 {
		r := d * math.Pi / 180
		return []float64{math.Cos(r), math.Sin(r)}
	}
	return [][]float64{{0, 0}, deg(90), deg(210), deg(330)}
}

func pinwheelTess(t *testing.T) *Tesselation {
	t.Helper()
	tess, err := NewTesselation(pinwheelFaces(), nil, nil)
	if err != nil {
		t.Fatalf("NewTesselation: %v", err)
	}
	return tess
}

func pinwheelMesh(t *testing.T) *Mesh {
	t.Helper()
	m, err := NewMesh(pinwheelTess(t), pinwheelCoords(), nil, nil)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}
	return m
}

const diskSectors = 72

// diskMesh is the larger fixture: a unit-radius fan disk with a central
// vertex and diskSectors ring vertices, one triangle per sector. Every face
// has area 0.5*sin(2*pi/72).
func diskMesh(t *testing.T) *Mesh {
	t.Helper()
	coords := make([][]float64, diskSectors+1)
	coords[0] = []float64{0, 0}
	for i := 1; i <= diskSectors; i++ {
		a := 2 * math.Pi * float64(i-1) / diskSectors
		coords[i] = []float64{math.Cos(a), math.Sin(a)}
	}
	faces := make([][3]int, diskSectors)
	for i := 0; i < diskSectors; i++ {
		next := i + 2
		if next > diskSectors {
			next = 1
		}
		faces[i] = [3]int{0, i + 1, next}
	}
	m, err := NewMeshFromFaces(faces, coords, nil, nil)
	if err != nil {
		t.Fatalf("NewMeshFromFaces: %v", err)
	}
	return m
}

// near reports whether a and b agree within tol.
func near(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b) <= tol
}

// relNear reports whether a and b agree within rel relative tolerance.
func relNear(a, b, rel float64) bool {
	if b == 0 {
		return math.Abs(a) <= rel
	}
	return math.Abs(a-b)/math.Abs(b) <= rel
}
