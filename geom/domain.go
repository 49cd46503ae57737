package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Domain describes the simulation grid derived from the bounding box of the
// domain object. All fields are in the host's coordinate convention.
type Domain struct {
	Resolution  [3]int
	Origin      r3.Vec
	Extent      r3.Vec
	DomainSizeX float64
	MaxAxisSize float64
}

// ComputeDomain maps an object's local bounding box, scale, and location to
// a grid whose longest axis has the requested resolution. The other axes get
// resolutions proportional to their extents, rounded down. Degenerate axes
// get a resolution of 0.
func ComputeDomain(box r3.Box, scale, location r3.Vec, resolution int) Domain {
	dom := Domain{}
	dom.Extent = r3.Vec{
		X: (box.Max.X - box.Min.X) * scale.X,
		Y: (box.Max.Y - box.Min.Y) * scale.Y,
		Z: (box.Max.Z - box.Min.Z) * scale.Z,
	}
	dom.DomainSizeX = dom.Extent.X
	dom.MaxAxisSize = maxWidth(dom.Extent)

	if dom.MaxAxisSize > 0 {
		res := float64(resolution)
		dom.Resolution = [3]int{
			int(math.Floor(dom.Extent.X / dom.MaxAxisSize * res)),
			int(math.Floor(dom.Extent.Y / dom.MaxAxisSize * res)),
			int(math.Floor(dom.Extent.Z / dom.MaxAxisSize * res)),
		}
	}

	dom.Origin = r3.Vec{
		X: box.Min.X*scale.X + location.X,
		Y: box.Min.Y*scale.Y + location.Y,
		Z: box.Min.Z*scale.Z + location.Z,
	}

	return dom
}

// maxWidth returns the largest component of w.
func maxWidth(w r3.Vec) float64 {
	var max float64
	if w.X > w.Y {
		max = w.X
	} else {
		max = w.Y
	}

	if max > w.Z {
		return max
	} else {
		return w.Z
	}
}

// GridSpacing returns the width of a single grid cell.
func (dom Domain) GridSpacing() float64 {
	if dom.Resolution[0] == 0 {
		return 0
	}
	return dom.DomainSizeX / float64(dom.Resolution[0])
}

// ToSolver returns the same domain expressed in the solver's coordinate
// convention.
func (dom Domain) ToSolver() Domain {
	out := dom
	out.Resolution = HostToSolverIdx(dom.Resolution)
	out.Origin = HostToSolver(dom.Origin)
	out.Extent = HostToSolver(dom.Extent)
	return out
}

// Bounds returns the box covered by the domain.
func (dom Domain) Bounds() r3.Box {
	return r3.Box{Min: dom.Origin, Max: r3.Add(dom.Origin, dom.Extent)}
}
