package emit

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake/geom"
	"github.com/phil-mansfield/jetbake/implicit"
	"github.com/phil-mansfield/jetbake/solver"
)

// EmitterObject is an emitter as it is configured. Velocity is in the host's
// coordinates.
type EmitterObject struct {
	Name           string
	Disabled       bool
	OneShot        bool
	ParticlesCount float64
	Velocity       r3.Vec
	Jitter         float64
	Seed           int64
	MaxParticles   int
	AllowOverlap   bool
}

// ColliderObject is a collider as it is configured.
type ColliderObject struct {
	Name     string
	Disabled bool
}

// GeometrySource provides the closed triangle mesh of a named object in the
// solver's coordinates.
type GeometrySource interface {
	Mesh(name string) (implicit.TriangleMesh, error)
}

// Composer turns configured objects into solver emitters and colliders.
type Composer struct {
	Geometry GeometrySource
	// Resolution is the simulation resolution along the domain's longest
	// axis. Object meshes are baked into distance grids at the same
	// resolution.
	Resolution int
	Margin     int
}

func (c *Composer) surface(name string) (implicit.Surface, error) {
	tm, err := c.Geometry.Mesh(name)
	if err != nil {
		return nil, err
	}
	res := c.Resolution
	if res < 1 {
		res = 1
	}
	m, err := implicit.NewMesh(tm, res, c.Margin)
	if err != nil {
		return nil, fmt.Errorf("Object '%s': %w", name, err)
	}
	return m, nil
}

// Spacing returns the lattice spacing of an emitter with the given particle
// count.
func (c *Composer) Spacing(dom geom.Domain, particlesCount float64) float64 {
	return dom.MaxAxisSize / (float64(c.Resolution) * particlesCount)
}

// BuildEmitters creates a volume emitter for every enabled object and
// returns them as a set along with a map from name to emitter which is used
// to refresh them each frame. When resumeFrame is past the first frame,
// one-shot emitters have already fired and are left out.
func (c *Composer) BuildEmitters(
	dom geom.Domain, objects []EmitterObject, resumeFrame int,
) (*Set, map[string]*Volume, error) {
	set := &Set{Emitters: []*Volume{}}
	handles := map[string]*Volume{}

	for _, obj := range objects {
		if obj.Disabled || (resumeFrame > 0 && obj.OneShot) {
			continue
		}

		s, err := c.surface(obj.Name)
		if err != nil {
			return nil, nil, err
		}

		v := &Volume{
			Name:            obj.Name,
			Surface:         s,
			Spacing:         c.Spacing(dom, obj.ParticlesCount),
			InitialVelocity: geom.HostToSolver(obj.Velocity),
			OneShot:         obj.OneShot,
			Jitter:          obj.Jitter,
			Seed:            obj.Seed,
			MaxParticles:    obj.MaxParticles,
			AllowOverlap:    obj.AllowOverlap,
		}
		set.Emitters = append(set.Emitters, v)
		handles[obj.Name] = v
	}

	return set, handles, nil
}

// BuildColliders unions every enabled collider into a single rigid
// collider. It returns nil if there are none.
func (c *Composer) BuildColliders(
	dom geom.Domain, objects []ColliderObject,
) (solver.Collider, error) {
	surfaces := implicit.Set{}
	for _, obj := range objects {
		if obj.Disabled {
			continue
		}
		s, err := c.surface(obj.Name)
		if err != nil {
			return nil, err
		}
		surfaces = append(surfaces, s)
	}

	if len(surfaces) == 0 {
		return nil, nil
	}
	eps := 0.5 * dom.GridSpacing()
	if eps <= 0 {
		eps = 1e-4
	}
	return solver.NewRigidCollider(surfaces, eps), nil
}

// Refresh copies the per-frame fields of the configured objects into the
// emitters built from them. Objects without an emitter are ignored.
func Refresh(handles map[string]*Volume, objects []EmitterObject) {
	for _, obj := range objects {
		v, ok := handles[obj.Name]
		if !ok {
			continue
		}
		v.InitialVelocity = geom.HostToSolver(obj.Velocity)
		v.OneShot = obj.OneShot
	}
}
