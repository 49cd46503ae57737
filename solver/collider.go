package solver

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake/geom"
	"github.com/phil-mansfield/jetbake/implicit"
)

// RigidCollider is a static solid described by an implicit surface.
type RigidCollider struct {
	Surface     implicit.Surface
	Restitution float64
	eps         float64
}

// NewRigidCollider creates a collider whose surface normals are estimated
// with finite differences of width eps.
func NewRigidCollider(s implicit.Surface, eps float64) *RigidCollider {
	return &RigidCollider{Surface: s, eps: eps}
}

// Resolve projects a particle inside the solid onto its surface and removes
// the part of its velocity which points into the solid.
func (c *RigidCollider) Resolve(pos, vel *geom.Vec) {
	p := pos.R3()
	d := c.Surface.SignedDistance(p)
	if d >= 0 {
		return
	}

	g := implicit.Gradient(c.Surface, p, c.eps)
	if r3.Norm(g) == 0 {
		return
	}
	n := r3.Unit(g)
	*pos = geom.VecOf(r3.Sub(p, r3.Scale(d, n)))

	v := vel.R3()
	vn := r3.Dot(v, n)
	if vn < 0 {
		*vel = geom.VecOf(r3.Sub(v, r3.Scale((1+c.Restitution)*vn, n)))
	}
}
