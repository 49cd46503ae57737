package surface

import (
	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/density"
	"github.com/phil-mansfield/jetbake/geom"
)

const (
	// KernelScale is the SPH kernel radius in units of simulation grid
	// spacings.
	KernelScale = 2.0
	// CutOff is the normalized density at which the fluid surface lies.
	CutOff = 0.5
	// Iso is the field value extracted as the fluid surface.
	Iso = 0.0
)

// Builder turns particle positions into the fluid surface for one frame.
// Particle positions are in the solver's coordinate convention.
type Builder struct {
	Converter density.Converter
	Extractor Extractor

	grid    *geom.ScalarGrid
	spacing float64
	scale   float32
}

// NewBuilder creates a Builder which samples particles on the mesh grid and
// writes points which have been rescaled by meshRes / simRes. sim and mesh
// are in the host's coordinate convention.
func NewBuilder(
	sim, mesh geom.Domain, simRes, meshRes int, ext Extractor,
) *Builder {
	solverMesh := mesh.ToSolver()
	meshSpacing := mesh.GridSpacing()

	b := &Builder{
		Converter: density.NewSPH(KernelScale*sim.GridSpacing(), CutOff),
		Extractor: ext,
		grid: geom.NewScalarGrid(
			solverMesh.Resolution, solverMesh.Origin, meshSpacing,
		),
		scale: jetbake.MeshScale(simRes, meshRes),
	}
	// Points are multiplied by scale after extraction, so they are
	// extracted at a spacing which puts them back on the mesh grid.
	b.spacing = meshSpacing / float64(b.scale)

	return b
}

// Scale returns the factor that extracted points are multiplied by.
func (b *Builder) Scale() float32 { return b.scale }

// Build converts xs into an implicit field, extracts its zero level set with
// every grid face closed, and rescales the result.
func (b *Builder) Build(xs []geom.Vec) jetbake.MeshSnapshot {
	b.Converter.Convert(xs, b.grid)
	mesh := b.Extractor.Extract(b.grid, b.spacing, Iso, All)
	mesh.Scale(b.scale)
	return mesh
}
