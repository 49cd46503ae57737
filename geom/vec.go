/*package geom contains the geometric types shared by the bake pipeline:
single precision vectors as they are stored in the cache, index grids, the
mapping from a domain bounding box to simulation grids, and the coordinate
convention of the solver.
*/
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec is a three dimensional vector in the single precision used by cache
// files.
type Vec [3]float32

// VecOf converts a double precision vector to a Vec.
func VecOf(v r3.Vec) Vec {
	return Vec{float32(v.X), float32(v.Y), float32(v.Z)}
}

// R3 converts v to a double precision vector.
func (v Vec) R3() r3.Vec {
	return r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// AddSelf adds u to v in place and returns v.
func (v *Vec) AddSelf(u *Vec) *Vec {
	for i := 0; i < 3; i++ {
		v[i] += u[i]
	}
	return v
}

// SubSelf subtracts u from v in place and returns v.
func (v *Vec) SubSelf(u *Vec) *Vec {
	for i := 0; i < 3; i++ {
		v[i] -= u[i]
	}
	return v
}

// ScaleSelf multiplies v by k in place and returns v.
func (v *Vec) ScaleSelf(k float32) *Vec {
	for i := 0; i < 3; i++ {
		v[i] *= k
	}
	return v
}

// AddAt writes v + u to out and returns out.
func (v *Vec) AddAt(u, out *Vec) *Vec {
	for i := 0; i < 3; i++ {
		out[i] = v[i] + u[i]
	}
	return out
}

// SubAt writes v - u to out and returns out.
func (v *Vec) SubAt(u, out *Vec) *Vec {
	for i := 0; i < 3; i++ {
		out[i] = v[i] - u[i]
	}
	return out
}

// Dot returns the inner product of v and u.
func (v *Vec) Dot(u *Vec) float32 {
	return v[0]*u[0] + v[1]*u[1] + v[2]*u[2]
}

// Norm returns the length of v.
func (v *Vec) Norm() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Finite returns false if any component of v is NaN or infinite.
func (v *Vec) Finite() bool {
	for i := 0; i < 3; i++ {
		f := float64(v[i])
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
