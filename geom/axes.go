package geom

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// The host application is Z-up and the solver is Y-up. Every vector which
// crosses between the two goes through HostToSolver, and every triangle goes
// through FlipWinding so that outward normals stay outward after the swap.
//
// Swapping two axes is its own inverse, so HostToSolver also maps solver
// coordinates back to the host.

// HostToSolver swaps the Y and Z components of v.
func HostToSolver(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Z, Z: v.Y}
}

// HostToSolverIdx swaps the Y and Z components of a grid resolution.
func HostToSolverIdx(idx [3]int) [3]int {
	return [3]int{idx[0], idx[2], idx[1]}
}

// FlipWinding reverses the orientation of a triangle.
func FlipWinding(tri [3]int) [3]int {
	return [3]int{tri[0], tri[2], tri[1]}
}
