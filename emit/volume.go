/*package emit builds the emitters and colliders of a bake from the objects
named in its configuration.
*/
package emit

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/geom"
	"github.com/phil-mansfield/jetbake/implicit"
	"github.com/phil-mansfield/jetbake/solver"
)

var (
	_ solver.Emitter = &Volume{}
	_ solver.Emitter = &Set{}
)

// Volume fills an implicit surface with a cubic lattice of particles. All
// vectors are in the solver's coordinates.
type Volume struct {
	Name    string
	Surface implicit.Surface
	Spacing float64

	// Refreshed every frame.
	InitialVelocity r3.Vec
	OneShot         bool

	Jitter       float64 // fraction of Spacing
	Seed         int64
	MaxParticles int // 0 for no limit
	AllowOverlap bool

	emitted int
	fired   bool
}

// Emitted returns the number of particles this emitter has added.
func (v *Volume) Emitted() int { return v.emitted }

// State returns the emission history of the emitter.
func (v *Volume) State() jetbake.EmitterState {
	return jetbake.EmitterState{Emitted: v.emitted, Fired: v.fired}
}

// Restore continues the emission history of an emitter from an earlier run.
func (v *Volume) Restore(state jetbake.EmitterState) {
	v.emitted, v.fired = state.Emitted, state.Fired
}

// Emit adds a particle at every lattice point inside the surface. Points
// closer than half a spacing to an existing particle are skipped unless
// AllowOverlap is set. One-shot emitters do nothing after their first call,
// even if that call added no particles. The jitter of a frame depends only
// on Seed and the frame index.
func (v *Volume) Emit(frame jetbake.Frame, ps *solver.ParticleSystemData) {
	if v.OneShot && v.fired {
		return
	}
	v.fired = true
	if v.Spacing <= 0 {
		return
	} else if v.MaxParticles > 0 && v.emitted >= v.MaxParticles {
		return
	}

	var hash *geom.PointHash
	if !v.AllowOverlap {
		hash = geom.NewPointHash(ps.Positions, v.Spacing/2)
	}
	rng := rand.New(rand.NewSource(v.Seed + int64(frame.Index)))

	b := v.Surface.Bounds()
	n := [3]int{
		int(math.Floor((b.Max.X-b.Min.X)/v.Spacing)) + 1,
		int(math.Floor((b.Max.Y-b.Min.Y)/v.Spacing)) + 1,
		int(math.Floor((b.Max.Z-b.Min.Z)/v.Spacing)) + 1,
	}
	offset := 0.5 * v.Spacing * v.Jitter

	pos, vel := []geom.Vec{}, []geom.Vec{}
	vel0 := geom.VecOf(v.InitialVelocity)

lattice:
	for z := 0; z < n[2]; z++ {
		for y := 0; y < n[1]; y++ {
			for x := 0; x < n[0]; x++ {
				if v.MaxParticles > 0 && v.emitted+len(pos) >= v.MaxParticles {
					break lattice
				}

				p := r3.Vec{
					X: b.Min.X + float64(x)*v.Spacing,
					Y: b.Min.Y + float64(y)*v.Spacing,
					Z: b.Min.Z + float64(z)*v.Spacing,
				}
				if offset > 0 {
					p.X += offset * (2*rng.Float64() - 1)
					p.Y += offset * (2*rng.Float64() - 1)
					p.Z += offset * (2*rng.Float64() - 1)
				}

				if !implicit.Inside(v.Surface, p) {
					continue
				}
				if hash != nil {
					if hash.HasNearby(p) {
						continue
					}
					hash.Insert(p)
				}

				pos = append(pos, geom.VecOf(p))
				vel = append(vel, vel0)
			}
		}
	}

	ps.AddParticles(pos, vel, nil)
	v.emitted += len(pos)
}

// Set calls several emitters in order.
type Set struct {
	Emitters []*Volume
}

func (set *Set) Emit(frame jetbake.Frame, ps *solver.ParticleSystemData) {
	for _, v := range set.Emitters {
		v.Emit(frame, ps)
	}
}

// States returns the emission history of every emitter, keyed by name.
// Entries of history without an emitter, such as one-shot emitters skipped
// on resume, are carried over unchanged.
func States(
	handles map[string]*Volume, history map[string]jetbake.EmitterState,
) map[string]jetbake.EmitterState {
	states := make(map[string]jetbake.EmitterState, len(handles)+len(history))
	for name, state := range history {
		states[name] = state
	}
	for name, v := range handles {
		states[name] = v.State()
	}
	return states
}

// RestoreStates restores the history of every emitter named in states.
// Names without an emitter are ignored.
func RestoreStates(
	handles map[string]*Volume, states map[string]jetbake.EmitterState,
) {
	for name, state := range states {
		if v, ok := handles[name]; ok {
			v.Restore(state)
		}
	}
}

// Names returns the names of the emitters in the set.
func (set *Set) Names() []string {
	names := make([]string, len(set.Emitters))
	for i := range set.Emitters {
		names[i] = set.Emitters[i].Name
	}
	return names
}
