package implicit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// TriangleMesh is a closed, consistently wound triangle mesh.
type TriangleMesh struct {
	Points    []r3.Vec
	Triangles [][3]int
}

// Check returns an error if the mesh has no triangles or if a triangle
// refers to a point which doesn't exist.
func (tm *TriangleMesh) Check() error {
	if len(tm.Triangles) == 0 {
		return fmt.Errorf("Mesh has no triangles.")
	}
	for i, tri := range tm.Triangles {
		for _, j := range tri {
			if j < 0 || j >= len(tm.Points) {
				return fmt.Errorf(
					"Triangle %d, %v, indexes past the %d mesh points.",
					i, tri, len(tm.Points),
				)
			}
		}
	}
	return nil
}

// Bounds returns the bounding box of the mesh's points.
func (tm *TriangleMesh) Bounds() r3.Box {
	if len(tm.Points) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: tm.Points[0], Max: tm.Points[0]}
	for _, p := range tm.Points[1:] {
		b.Min = minVec(b.Min, p)
		b.Max = maxVec(b.Max, p)
	}
	return b
}

// Mesh is a triangle mesh baked into a grid of signed distances. Values
// between grid nodes are found by trilinear interpolation.
type Mesh struct {
	origin  r3.Vec
	spacing float64
	n       [3]int // nodes per axis
	vals    []float64
	bounds  r3.Box
}

// rayDir is the direction of the parity ray. It is chosen so that it is
// unlikely to graze edges of axis-aligned meshes.
var rayDir = r3.Unit(r3.Vec{X: 1, Y: 0.0137, Z: 0.0071})

// NewMesh bakes tm into a distance grid. The longest axis of the mesh's
// bounding box is split into resolution cells and the grid is extended by
// margin cells on every side.
func NewMesh(tm TriangleMesh, resolution, margin int) (*Mesh, error) {
	if err := tm.Check(); err != nil {
		return nil, err
	} else if resolution <= 0 {
		return nil, fmt.Errorf("Mesh resolution must be positive, not %d.", resolution)
	} else if margin < 0 {
		return nil, fmt.Errorf("Mesh margin must be non-negative, not %d.", margin)
	}

	bounds := tm.Bounds()
	size := r3.Sub(bounds.Max, bounds.Min)
	width := math.Max(size.X, math.Max(size.Y, size.Z))
	if width <= 0 {
		return nil, fmt.Errorf("Mesh has an empty bounding box.")
	}

	m := &Mesh{spacing: width / float64(resolution), bounds: bounds}
	pad := float64(margin) * m.spacing
	m.origin = r3.Sub(bounds.Min, r3.Vec{X: pad, Y: pad, Z: pad})
	m.n = [3]int{
		int(math.Ceil(size.X/m.spacing)) + 2*margin + 1,
		int(math.Ceil(size.Y/m.spacing)) + 2*margin + 1,
		int(math.Ceil(size.Z/m.spacing)) + 2*margin + 1,
	}
	m.vals = make([]float64, m.n[0]*m.n[1]*m.n[2])

	tris := make([][3]r3.Vec, len(tm.Triangles))
	for i, tri := range tm.Triangles {
		tris[i] = [3]r3.Vec{
			tm.Points[tri[0]], tm.Points[tri[1]], tm.Points[tri[2]],
		}
	}

	for z := 0; z < m.n[2]; z++ {
		for y := 0; y < m.n[1]; y++ {
			for x := 0; x < m.n[0]; x++ {
				p := m.node(x, y, z)
				d := math.Inf(+1)
				crossings := 0
				for j := range tris {
					d = math.Min(d, triangleDistance(p, &tris[j]))
					if rayHits(p, rayDir, &tris[j]) {
						crossings++
					}
				}
				if crossings%2 == 1 {
					d = -d
				}
				m.vals[m.idx(x, y, z)] = d
			}
		}
	}

	return m, nil
}

func (m *Mesh) idx(x, y, z int) int {
	return x + y*m.n[0] + z*m.n[0]*m.n[1]
}

func (m *Mesh) node(x, y, z int) r3.Vec {
	return r3.Vec{
		X: m.origin.X + float64(x)*m.spacing,
		Y: m.origin.Y + float64(y)*m.spacing,
		Z: m.origin.Z + float64(z)*m.spacing,
	}
}

// Bounds returns the bounding box of the original triangle mesh.
func (m *Mesh) Bounds() r3.Box { return m.bounds }

// SignedDistance interpolates the distance grid at p. Points outside the
// grid are given the value at the closest point of the grid plus their
// distance to it.
func (m *Mesh) SignedDistance(p r3.Vec) float64 {
	coord := [3]float64{
		(p.X - m.origin.X) / m.spacing,
		(p.Y - m.origin.Y) / m.spacing,
		(p.Z - m.origin.Z) / m.spacing,
	}

	extra := 0.0
	var i0 [3]int
	var t [3]float64
	for dim := 0; dim < 3; dim++ {
		hi := float64(m.n[dim] - 1)
		c := coord[dim]
		if c < 0 {
			extra += c * c
			c = 0
		} else if c > hi {
			extra += (c - hi) * (c - hi)
			c = hi
		}

		i := int(c)
		if i >= m.n[dim]-1 {
			i = m.n[dim] - 2
		}
		if i < 0 {
			i = 0
		}
		i0[dim] = i
		t[dim] = c - float64(i)
	}

	v := m.triLinear(i0, t)
	if extra > 0 {
		v += math.Sqrt(extra) * m.spacing
	}
	return v
}

// triLinear interpolates within the cell whose lower corner is i0.
func (m *Mesh) triLinear(i0 [3]int, t [3]float64) float64 {
	sum := 0.0
	for dz := 0; dz <= 1; dz++ {
		wz := 1 - t[2]
		if dz == 1 {
			wz = t[2]
		}
		for dy := 0; dy <= 1; dy++ {
			wy := 1 - t[1]
			if dy == 1 {
				wy = t[1]
			}
			for dx := 0; dx <= 1; dx++ {
				wx := 1 - t[0]
				if dx == 1 {
					wx = t[0]
				}
				x, y, z := i0[0]+dx, i0[1]+dy, i0[2]+dz
				if x >= m.n[0] || y >= m.n[1] || z >= m.n[2] {
					continue
				}
				sum += wx * wy * wz * m.vals[m.idx(x, y, z)]
			}
		}
	}
	return sum
}

// triangleDistance returns the distance from p to the closest point of the
// triangle.
func triangleDistance(p r3.Vec, tri *[3]r3.Vec) float64 {
	q := closestOnTriangle(p, tri[0], tri[1], tri[2])
	return r3.Norm(r3.Sub(p, q))
}

// closestOnTriangle finds the point on the triangle abc closest to p by
// classifying p against the triangle's Voronoi regions.
func closestOnTriangle(p, a, b, c r3.Vec) r3.Vec {
	ab, ac, ap := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
	d1, d2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}

	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b)))
	}

	denom := 1 / (va + vb + vc)
	v, w := vb*denom, vc*denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

// rayHits returns true if the ray starting at origin and travelling along dir
// crosses the triangle.
func rayHits(origin, dir r3.Vec, tri *[3]r3.Vec) bool {
	const eps = 1e-12
	e1, e2 := r3.Sub(tri[1], tri[0]), r3.Sub(tri[2], tri[0])
	h := r3.Cross(dir, e2)
	a := r3.Dot(e1, h)
	if math.Abs(a) < eps {
		return false
	}
	f := 1 / a
	s := r3.Sub(origin, tri[0])
	u := f * r3.Dot(s, h)
	if u < 0 || u > 1 {
		return false
	}
	q := r3.Cross(s, e1)
	v := f * r3.Dot(dir, q)
	if v < 0 || u+v > 1 {
		return false
	}
	return f*r3.Dot(e2, q) > eps
}
