/*package jetbake contains the values passed between the stages of a fluid
bake: the simulation clock and the per-frame particle and surface snapshots
that are written to the cache.
*/
package jetbake

import (
	"fmt"

	"github.com/phil-mansfield/jetbake/geom"
)

// Frame is one tick of the simulation clock.
type Frame struct {
	Index    int
	TimeStep float64 // seconds
}

// NewFrame returns the frame at the given index of a clock running at fps
// frames per second.
func NewFrame(index int, fps float64) Frame {
	return Frame{Index: index, TimeStep: 1 / fps}
}

// Advance moves the frame forward by one tick.
func (f *Frame) Advance() { f.Index++ }

// Time returns the simulation time at the start of the frame.
func (f Frame) Time() float64 { return float64(f.Index) * f.TimeStep }

// RGB is a particle color with components in [0, 1].
type RGB [3]float32

// ParticleSnapshot is the state of every particle at the end of one frame.
// Forces and Colors are only written by the extended cache format and may
// be nil.
type ParticleSnapshot struct {
	Positions  []geom.Vec
	Velocities []geom.Vec
	Forces     []geom.Vec
	Colors     []RGB
}

// Count returns the number of particles in the snapshot.
func (snap *ParticleSnapshot) Count() int { return len(snap.Positions) }

// Check returns an error if any of the present sequences does not have one
// entry per particle.
func (snap *ParticleSnapshot) Check() error {
	n := len(snap.Positions)
	if len(snap.Velocities) != n {
		return fmt.Errorf(
			"Snapshot has %d positions but %d velocities.",
			n, len(snap.Velocities),
		)
	} else if snap.Forces != nil && len(snap.Forces) != n {
		return fmt.Errorf(
			"Snapshot has %d positions but %d forces.", n, len(snap.Forces),
		)
	} else if snap.Colors != nil && len(snap.Colors) != n {
		return fmt.Errorf(
			"Snapshot has %d positions but %d colors.", n, len(snap.Colors),
		)
	}
	return nil
}

// PadColors extends colors so that it has exactly n entries. Particles
// without a color so far are given def. The result may share memory with
// colors.
func PadColors(colors []RGB, n int, def RGB) []RGB {
	if len(colors) >= n {
		return colors[:n]
	}
	for len(colors) < n {
		colors = append(colors, def)
	}
	return colors
}

// EmitterState is the emission history of one emitter at the end of a
// frame. It is cached with the frame so that a resumed bake emits exactly
// what an uninterrupted one would have.
type EmitterState struct {
	Emitted int  `yaml:"emitted"`
	Fired   bool `yaml:"fired"`
}

// MeshSnapshot is a triangulated fluid surface for one frame.
type MeshSnapshot struct {
	Points    []geom.Vec
	Triangles [][3]uint32
}

// Check returns an error if a triangle refers to a point which doesn't
// exist.
func (m *MeshSnapshot) Check() error {
	n := uint32(len(m.Points))
	for i, tri := range m.Triangles {
		if tri[0] >= n || tri[1] >= n || tri[2] >= n {
			return fmt.Errorf(
				"Triangle %d, %v, indexes past the %d mesh points.", i, tri, n,
			)
		}
	}
	return nil
}

// Scale multiplies every point in the mesh by coef.
func (m *MeshSnapshot) Scale(coef float32) {
	for i := range m.Points {
		m.Points[i].ScaleSelf(coef)
	}
}

// MeshScale returns the factor that mesh points are multiplied by before
// being written to the cache.
func MeshScale(simResolution, meshResolution int) float32 {
	return float32(meshResolution) / float32(simResolution)
}
