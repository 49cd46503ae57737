/*package implicit represents solid shapes as the zero level set of a signed
distance function. Distances are negative inside a shape and positive
outside of it. All shapes live in the solver's coordinate convention.
*/
package implicit

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Surface is a shape described by a signed distance function.
type Surface interface {
	SignedDistance(p r3.Vec) float64
	Bounds() r3.Box
}

var (
	_ Surface = &Sphere{}
	_ Surface = &Box{}
	_ Surface = Set{}
	_ Surface = &Mesh{}
)

// Inside returns true if p is inside of s or on its boundary.
func Inside(s Surface, p r3.Vec) bool {
	return s.SignedDistance(p) <= 0
}

// Gradient estimates the gradient of the distance function of s at p with
// central differences of width 2*eps.
func Gradient(s Surface, p r3.Vec, eps float64) r3.Vec {
	dx := r3.Vec{X: eps}
	dy := r3.Vec{Y: eps}
	dz := r3.Vec{Z: eps}
	return r3.Vec{
		X: s.SignedDistance(r3.Add(p, dx)) - s.SignedDistance(r3.Sub(p, dx)),
		Y: s.SignedDistance(r3.Add(p, dy)) - s.SignedDistance(r3.Sub(p, dy)),
		Z: s.SignedDistance(r3.Add(p, dz)) - s.SignedDistance(r3.Sub(p, dz)),
	}
}

// Sphere is a ball. (Duh!)
type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s *Sphere) SignedDistance(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.Center)) - s.Radius
}

func (s *Sphere) Bounds() r3.Box {
	r := r3.Vec{X: s.Radius, Y: s.Radius, Z: s.Radius}
	return r3.Box{Min: r3.Sub(s.Center, r), Max: r3.Add(s.Center, r)}
}

// Box is a solid axis-aligned box.
type Box struct {
	Box r3.Box
}

func (b *Box) SignedDistance(p r3.Vec) float64 {
	center := r3.Scale(0.5, r3.Add(b.Box.Min, b.Box.Max))
	half := r3.Scale(0.5, r3.Sub(b.Box.Max, b.Box.Min))
	q := r3.Sub(absVec(r3.Sub(p, center)), half)
	outside := r3.Norm(maxVec(q, r3.Vec{}))
	inside := math.Min(math.Max(q.X, math.Max(q.Y, q.Z)), 0)
	return outside + inside
}

func (b *Box) Bounds() r3.Box { return b.Box }

// Set is the union of several surfaces.
type Set []Surface

func (set Set) SignedDistance(p r3.Vec) float64 {
	d := math.Inf(+1)
	for _, s := range set {
		d = math.Min(d, s.SignedDistance(p))
	}
	return d
}

func (set Set) Bounds() r3.Box {
	if len(set) == 0 {
		return r3.Box{}
	}
	b := set[0].Bounds()
	for _, s := range set[1:] {
		sb := s.Bounds()
		b.Min = minVec(b.Min, sb.Min)
		b.Max = maxVec(b.Max, sb.Max)
	}
	return b
}

func absVec(v r3.Vec) r3.Vec {
	return r3.Vec{X: math.Abs(v.X), Y: math.Abs(v.Y), Z: math.Abs(v.Z)}
}

func minVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func maxVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
