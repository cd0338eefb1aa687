package surface

import (
	"fmt"
	"sort"
	"sync"
)

// Topology is a tesselation together with named registrations: alternative
// embeddings of the same vertex set (for cortical surfaces: white, pial,
// inflated, sphere, fsaverage, ...). Registration meshes are materialized
// lazily and share the tesselation object, so properties and incidence
// structures exist once regardless of the registration count.
type Topology struct {
	tess *Tesselation
	regs map[string]*registration
}

// registration is one named embedding, materialized at most once.
type registration struct {
	once   sync.Once
	coords [][]float64
	mesh   *Mesh
	err    error
}

func (r *registration) materialize(tess *Tesselation) (*Mesh, error) {
	r.once.Do(func() {
		r.mesh, r.err = NewMesh(tess, r.coords, nil, nil)
	})
	return r.mesh, r.err
}

// NewTopology wraps a tesselation with an optional initial set of
// registrations (name to coordinate matrix).
func NewTopology(tess *Tesselation, registrations map[string][][]float64) (*Topology, error) {
	if tess == nil {
		return nil, fmt.Errorf("%w: nil tesselation", ErrValue)
	}
	regs := make(map[string]*registration, len(registrations))
	for name, coords := range registrations {
		// Validate eagerly so a bad matrix fails here, not on first use.
		cc, _, err := CoordinateMatrix(coords, tess.VertexCount())
		if err != nil {
			return nil, fmt.Errorf("registration %q: %w", name, err)
		}
		regs[name] = &registration{coords: cc}
	}
	return &Topology{tess: tess, regs: regs}, nil
}

// Tess returns the shared tesselation.
func (t *Topology) Tess() *Tesselation { return t.tess }

// VertexCount reports the number of vertices.
func (t *Topology) VertexCount() int { return t.tess.VertexCount() }

// RegistrationNames returns the registration names, sorted.
func (t *Topology) RegistrationNames() []string {
	names := make([]string, 0, len(t.regs))
	for name := range t.regs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasRegistration reports whether the named registration exists.
func (t *Topology) HasRegistration(name string) bool {
	_, ok := t.regs[name]
	return ok
}

// Registration returns the named registration's mesh, building it on first
// access.
func (t *Topology) Registration(name string) (*Mesh, error) {
	reg, ok := t.regs[name]
	if !ok {
		return nil, fmt.Errorf("%w: registration %q", ErrLookup, name)
	}
	return reg.materialize(t.tess)
}

// withRegs returns a copy with a new registration map; cells are shared.
func (t *Topology) withRegs(extra string, cell *registration) *Topology {
	regs := make(map[string]*registration, len(t.regs)+1)
	for k, v := range t.regs {
		regs[k] = v
	}
	regs[extra] = cell
	return &Topology{tess: t.tess, regs: regs}
}

// Register returns a new topology with the named registration added or
// replaced.
func (t *Topology) Register(name string, coords [][]float64) (*Topology, error) {
	cc, _, err := CoordinateMatrix(coords, t.tess.VertexCount())
	if err != nil {
		return nil, fmt.Errorf("registration %q: %w", name, err)
	}
	return t.withRegs(name, &registration{coords: cc}), nil
}

// RegisterMesh adds a mesh's embedding as a registration. A mesh over this
// topology's tesselation is used directly; otherwise its vertex labels must
// match and its coordinates are reordered into this topology's label order.
func (t *Topology) RegisterMesh(name string, mesh *Mesh) (*Topology, error) {
	if mesh.tess == t.tess {
		cell := &registration{coords: mesh.coords}
		cell.once.Do(func() { cell.mesh = mesh })
		return t.withRegs(name, cell), nil
	}
	if mesh.VertexCount() != t.VertexCount() {
		return nil, fmt.Errorf("%w: registration %q has %d vertices, topology has %d",
			ErrValue, name, mesh.VertexCount(), t.VertexCount())
	}
	coords := make([][]float64, t.VertexCount())
	for i, l := range t.tess.labels {
		mi, ok := mesh.tess.vidx[l]
		if !ok {
			return nil, fmt.Errorf("%w: registration %q lacks vertex label %d", ErrValue, name, l)
		}
		coords[i] = mesh.coords[mi]
	}
	return t.Register(name, coords)
}

// MakeMesh embeds the topology's tesselation with the given coordinates
// without registering them.
func (t *Topology) MakeMesh(coords [][]float64) (*Mesh, error) {
	return t.tess.MakeMesh(coords)
}

// Interpolate carries data from this topology onto dst's vertices through a
// registration both topologies share. Shared names are tried in sorted
// order; the first success wins. No shared names fails with ErrRuntime;
// shared names all failing fails with ErrValue.
func (t *Topology) Interpolate(dst *Topology, data Data, opts *InterpOptions) (*InterpResult, error) {
	var shared []string
	for _, name := range t.RegistrationNames() {
		if dst.HasRegistration(name) {
			shared = append(shared, name)
		}
	}
	if len(shared) == 0 {
		return nil, fmt.Errorf("%w: topologies share no registration", ErrRuntime)
	}
	var lastErr error
	for _, name := range shared {
		src, err := t.Registration(name)
		if err != nil {
			lastErr = err
			continue
		}
		dm, err := dst.Registration(name)
		if err != nil {
			lastErr = err
			continue
		}
		res, err := src.InterpolateMesh(dm, data, opts)
		if err != nil {
			lastErr = err
			continue
		}
		return res, nil
	}
	return nil, fmt.Errorf("%w: every shared registration failed: %v", ErrValue, lastErr)
}

func (t *Topology) String() string {
	return fmt.Sprintf("Topology(<%d faces>, <%d registrations>)", t.tess.FaceCount(), len(t.regs))
}
