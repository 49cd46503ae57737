package solver

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/geom"
)

const (
	// DefaultMaxCFL is the largest number of grid cells a particle may
	// cross in one sub-step when sub-steps are chosen adaptively.
	DefaultMaxCFL = 5.0
	// MaxSubSteps bounds the adaptive sub-step count of a single frame.
	MaxSubSteps = 256
)

var _ Solver = &Particle{}

// Particle is a simple particle solver: particles fall under gravity, lose
// velocity to linear viscous damping, and are kept inside the domain and
// outside of colliders. It is not a physically accurate fluid.
type Particle struct {
	ps       ParticleSystemData
	bounds   r3.Box
	spacing  float64
	emitter  Emitter
	collider Collider

	viscosity float64
	gravity   r3.Vec
	maxCFL    float64
	subSteps  int
}

// NewParticle creates a solver over dom, which must be in the solver's
// coordinate convention.
func NewParticle(dom geom.Domain) *Particle {
	return &Particle{
		bounds:  dom.Bounds(),
		spacing: dom.GridSpacing(),
		gravity: r3.Vec{Y: -9.8},
		maxCFL:  DefaultMaxCFL,
	}
}

func (s *Particle) Particles() *ParticleSystemData { return &s.ps }
func (s *Particle) SetEmitter(e Emitter)           { s.emitter = e }
func (s *Particle) SetCollider(c Collider)         { s.collider = c }
func (s *Particle) SetViscosity(mu float64)        { s.viscosity = mu }
func (s *Particle) SetGravity(g r3.Vec)            { s.gravity = g }
func (s *Particle) SetMaxCFL(cfl float64)          { s.maxCFL = cfl }
func (s *Particle) SetFixedSubSteps(n int)         { s.subSteps = n }
func (s *Particle) GridSpacing() float64           { return s.spacing }

// Update emits new particles and advances the system by one frame.
func (s *Particle) Update(frame jetbake.Frame) error {
	if s.emitter != nil {
		s.emitter.Emit(frame, &s.ps)
	}

	n := s.numSubSteps(frame.TimeStep)
	dt := frame.TimeStep / float64(n)
	for i := 0; i < n; i++ {
		s.step(dt)
	}

	for i := range s.ps.Positions {
		if !s.ps.Positions[i].Finite() || !s.ps.Velocities[i].Finite() {
			return ErrDivergence
		}
	}
	return nil
}

// numSubSteps returns the number of sub-steps needed to keep the fastest
// particle under the CFL limit.
func (s *Particle) numSubSteps(dt float64) int {
	if s.subSteps > 0 {
		return s.subSteps
	} else if s.maxCFL <= 0 || s.spacing <= 0 {
		return 1
	}

	maxSpeed := r3.Norm(s.gravity) * dt
	for i := range s.ps.Velocities {
		v := float64(s.ps.Velocities[i].Norm())
		if v > maxSpeed {
			maxSpeed = v
		}
	}
	if math.IsNaN(maxSpeed) || math.IsInf(maxSpeed, 0) {
		return 1
	}

	n := int(math.Ceil(maxSpeed * dt / (s.maxCFL * s.spacing)))
	if n < 1 {
		return 1
	} else if n > MaxSubSteps {
		return MaxSubSteps
	}
	return n
}

func (s *Particle) step(dt float64) {
	damp := math.Max(0, 1-s.viscosity*dt)
	g := geom.VecOf(s.gravity)
	dv := geom.VecOf(r3.Scale(dt, s.gravity))

	for i := range s.ps.Positions {
		pos, vel := &s.ps.Positions[i], &s.ps.Velocities[i]
		s.ps.Forces[i] = g

		vel.AddSelf(&dv)
		vel.ScaleSelf(float32(damp))
		dx := *vel
		dx.ScaleSelf(float32(dt))
		pos.AddSelf(&dx)

		if s.collider != nil {
			s.collider.Resolve(pos, vel)
		}
		s.clamp(pos, vel)
	}
}

// clamp keeps a particle inside the closed domain box.
func (s *Particle) clamp(pos, vel *geom.Vec) {
	lo := geom.VecOf(s.bounds.Min)
	hi := geom.VecOf(s.bounds.Max)
	for dim := 0; dim < 3; dim++ {
		if pos[dim] < lo[dim] {
			pos[dim] = lo[dim]
			if vel[dim] < 0 {
				vel[dim] = 0
			}
		} else if pos[dim] > hi[dim] {
			pos[dim] = hi[dim]
			if vel[dim] > 0 {
				vel[dim] = 0
			}
		}
	}
}
