/*package density converts sequences of particle positions into implicit
density fields sampled on a grid. Field values are negative inside the fluid
and positive outside of it, so the fluid surface is the zero level set.
*/
package density

import (
	"math"

	"github.com/phil-mansfield/jetbake/geom"
)

// Converter writes the implicit field of a set of particles into a grid.
type Converter interface {
	Convert(xs []geom.Vec, grid *geom.ScalarGrid)
}

var _ Converter = &SPH{}

// SPH is a smoothed particle hydrodynamics density estimator using the
// poly6 kernel. Each particle's contribution is normalized by the number
// density at that particle, so the summed field is close to one inside the
// fluid and falls to zero outside.
type SPH struct {
	KernelRadius float64
	CutOff       float64
}

// NewSPH returns an SPH estimator. The field written to grids is
// cutOff - (normalized density).
func NewSPH(kernelRadius, cutOff float64) *SPH {
	return &SPH{KernelRadius: kernelRadius, CutOff: cutOff}
}

// Kernel evaluates the poly6 kernel at squared distance r2.
func (sph *SPH) Kernel(r2 float64) float64 {
	h := sph.KernelRadius
	h2 := h * h
	if r2 >= h2 {
		return 0
	}
	coef := 315 / (64 * math.Pi * math.Pow(h, 9))
	d := h2 - r2
	return coef * d * d * d
}

// NumberDensities returns the kernel-weighted number density at each
// particle, including its own contribution.
func (sph *SPH) NumberDensities(hash *geom.PointHash) []float64 {
	rhos := make([]float64, hash.Len())
	for i := range rhos {
		hash.ForEachNearby(hash.Point(i), func(_ int, dist2 float64) {
			rhos[i] += sph.Kernel(dist2)
		})
	}
	return rhos
}

// Convert overwrites every value of grid with the implicit field of xs
// sampled at cell centers.
func (sph *SPH) Convert(xs []geom.Vec, grid *geom.ScalarGrid) {
	for i := range grid.Vals {
		grid.Vals[i] = sph.CutOff
	}
	if len(xs) == 0 || sph.KernelRadius <= 0 {
		return
	}

	hash := geom.NewPointHash(xs, sph.KernelRadius)
	rhos := sph.NumberDensities(hash)

	for i := range grid.Vals {
		x, y, z := grid.Coords(i)
		p := grid.Position(x, y, z)
		sum := 0.0
		hash.ForEachNearby(p, func(j int, dist2 float64) {
			sum += sph.Kernel(dist2) / rhos[j]
		})
		grid.Vals[i] -= sum
	}
}
