/*package solver defines the capabilities the bake driver needs from a fluid
solver and ships a small particle solver which implements them. All vectors
are in the solver's coordinate convention (see geom.HostToSolver).
*/
package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/geom"
)

// ErrDivergence is returned by Update when the particle state stops being
// finite.
var ErrDivergence = errors.New("solver: particle state diverged")

// Emitter adds particles to a system. It is called once per frame before
// the solver advances.
type Emitter interface {
	Emit(frame jetbake.Frame, ps *ParticleSystemData)
}

// Collider moves particles which have entered a solid back to its surface.
type Collider interface {
	Resolve(pos, vel *geom.Vec)
}

// Solver advances a particle system through time.
type Solver interface {
	Update(frame jetbake.Frame) error
	Particles() *ParticleSystemData

	SetEmitter(e Emitter)
	SetCollider(c Collider)
	SetViscosity(mu float64)
	SetGravity(g r3.Vec)
	SetMaxCFL(cfl float64)
	// SetFixedSubSteps makes every frame take n sub-steps. n <= 0 switches
	// to sub-steps chosen by the CFL limit.
	SetFixedSubSteps(n int)
	GridSpacing() float64
}

// Factory creates a solver over a domain given in the solver's coordinate
// convention.
type Factory func(dom geom.Domain) Solver

// Solvers maps the solver names accepted by configuration files to their
// factories.
var Solvers = map[string]Factory{
	"Particle": func(dom geom.Domain) Solver { return NewParticle(dom) },
}

// New creates the named solver.
func New(name string, dom geom.Domain) (Solver, error) {
	f, ok := Solvers[name]
	if !ok {
		return nil, fmt.Errorf("Unrecognized solver '%s'.", name)
	}
	return f(dom), nil
}

// ParticleSystemData holds the per-particle state of a solver.
type ParticleSystemData struct {
	Positions  []geom.Vec
	Velocities []geom.Vec
	Forces     []geom.Vec
}

// Count returns the number of particles.
func (ps *ParticleSystemData) Count() int { return len(ps.Positions) }

// AddParticles appends particles to the system. forces may be nil, in
// which case the new particles start with zero force.
func (ps *ParticleSystemData) AddParticles(pos, vel, forces []geom.Vec) {
	if len(pos) != len(vel) {
		panic(fmt.Sprintf(
			"len(pos) = %d, but len(vel) = %d.", len(pos), len(vel),
		))
	} else if forces != nil && len(forces) != len(pos) {
		panic(fmt.Sprintf(
			"len(pos) = %d, but len(forces) = %d.", len(pos), len(forces),
		))
	}

	ps.Positions = append(ps.Positions, pos...)
	ps.Velocities = append(ps.Velocities, vel...)
	if forces == nil {
		ps.Forces = append(ps.Forces, make([]geom.Vec, len(pos))...)
	} else {
		ps.Forces = append(ps.Forces, forces...)
	}
}

// Snapshot copies the current state into a ParticleSnapshot without colors.
func (ps *ParticleSystemData) Snapshot() jetbake.ParticleSnapshot {
	return jetbake.ParticleSnapshot{
		Positions:  append([]geom.Vec{}, ps.Positions...),
		Velocities: append([]geom.Vec{}, ps.Velocities...),
		Forces:     append([]geom.Vec{}, ps.Forces...),
	}
}
