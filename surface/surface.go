/*package surface extracts triangle meshes from implicit fields sampled on
grids, and builds the per-frame fluid surface from particle positions.
*/
package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/geom"
)

// Boundary is a set of grid faces across which the extracted surface is
// closed off.
type Boundary uint8

const (
	XNeg Boundary = 1 << iota
	XPos
	YNeg
	YPos
	ZNeg
	ZPos

	None Boundary = 0
	All  = XNeg | XPos | YNeg | YPos | ZNeg | ZPos
)

// Has returns true if every face in b2 is in b.
func (b Boundary) Has(b2 Boundary) bool { return b&b2 == b2 }

// Extractor turns an implicit field into a triangle mesh at the given iso
// value. Vertex positions are measured from the center of the grid's first
// cell in units where neighboring cell centers are spacing apart.
type Extractor interface {
	Extract(
		grid *geom.ScalarGrid, spacing, iso float64, boundary Boundary,
	) jetbake.MeshSnapshot
}

var _ Extractor = &MarchingTetrahedra{}

// MarchingTetrahedra splits every cube of neighboring samples into six
// tetrahedra and triangulates the iso surface within each of them. Vertices
// on shared cube edges are welded. Triangles are wound counter-clockwise
// when viewed from the side where the field is larger than iso.
type MarchingTetrahedra struct{}

// padded is a view of a grid with one extra layer of samples on each closed
// face. Samples in the extra layer are outside of the surface.
type padded struct {
	grid    *geom.ScalarGrid
	lo, hi  [3]int // range of sample indices, hi exclusive
	outside float64
	spacing float64
}

func newPadded(
	grid *geom.ScalarGrid, spacing, iso float64, boundary Boundary,
) *padded {
	p := &padded{grid: grid, spacing: spacing, outside: iso + 1}
	neg := [3]Boundary{XNeg, YNeg, ZNeg}
	pos := [3]Boundary{XPos, YPos, ZPos}
	for dim := 0; dim < 3; dim++ {
		p.hi[dim] = grid.Width[dim]
		if boundary.Has(neg[dim]) {
			p.lo[dim]--
		}
		if boundary.Has(pos[dim]) {
			p.hi[dim]++
		}
	}
	return p
}

func (p *padded) value(idx [3]int) float64 {
	x, y, z := idx[0], idx[1], idx[2]
	if !p.grid.BoundsCheck(x, y, z) {
		return p.outside
	}
	return p.grid.At(x, y, z)
}

func (p *padded) position(idx [3]int) r3.Vec {
	return r3.Vec{
		X: float64(idx[0]) * p.spacing,
		Y: float64(idx[1]) * p.spacing,
		Z: float64(idx[2]) * p.spacing,
	}
}

// key returns a unique id for a sample index in the padded range.
func (p *padded) key(idx [3]int) int {
	wx, wy := p.hi[0]-p.lo[0], p.hi[1]-p.lo[1]
	return (idx[0] - p.lo[0]) + (idx[1]-p.lo[1])*wx + (idx[2]-p.lo[2])*wx*wy
}

// welder builds a mesh, merging vertices which lie on the same sample edge.
type welder struct {
	mesh  jetbake.MeshSnapshot
	edges map[[2]int]uint32
}

func (w *welder) vertex(p *padded, a, b [3]int, iso float64) uint32 {
	ka, kb := p.key(a), p.key(b)
	if ka > kb {
		ka, kb = kb, ka
		a, b = b, a
	}
	if i, ok := w.edges[[2]int{ka, kb}]; ok {
		return i
	}

	va, vb := p.value(a), p.value(b)
	t := 0.5
	if va != vb {
		t = (iso - va) / (vb - va)
	}
	t = math.Max(0, math.Min(1, t))
	pa, pb := p.position(a), p.position(b)
	pt := r3.Add(pa, r3.Scale(t, r3.Sub(pb, pa)))

	i := uint32(len(w.mesh.Points))
	w.mesh.Points = append(w.mesh.Points, geom.VecOf(pt))
	w.edges[[2]int{ka, kb}] = i
	return i
}

// triangle appends a triangle, wound so that its normal points along out.
func (w *welder) triangle(i, j, k uint32, out r3.Vec) {
	a, b, c := w.mesh.Points[i].R3(), w.mesh.Points[j].R3(), w.mesh.Points[k].R3()
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Dot(n, out) < 0 {
		j, k = k, j
	}
	w.mesh.Triangles = append(w.mesh.Triangles, [3]uint32{i, j, k})
}

// Extract implements Extractor.
func (mt *MarchingTetrahedra) Extract(
	grid *geom.ScalarGrid, spacing, iso float64, boundary Boundary,
) jetbake.MeshSnapshot {
	p := newPadded(grid, spacing, iso, boundary)
	w := &welder{
		mesh: jetbake.MeshSnapshot{
			Points: []geom.Vec{}, Triangles: [][3]uint32{},
		},
		edges: make(map[[2]int]uint32),
	}

	idxs := &geom.TetraIdxs{}
	var corners [4][3]int
	for z := p.lo[2]; z < p.hi[2]-1; z++ {
		for y := p.lo[1]; y < p.hi[1]-1; y++ {
			for x := p.lo[0]; x < p.hi[0]-1; x++ {
				for dir := 0; dir < geom.TetraDirCount; dir++ {
					idxs.Init(dir)
					for c := 0; c < 4; c++ {
						off := idxs.Corners[c]
						corners[c] = [3]int{x + off[0], y + off[1], z + off[2]}
					}
					mt.tetra(p, w, &corners, iso)
				}
			}
		}
	}

	return w.mesh
}

// tetra triangulates the part of the iso surface inside one tetrahedron.
func (mt *MarchingTetrahedra) tetra(
	p *padded, w *welder, corners *[4][3]int, iso float64,
) {
	in, out := make([]int, 0, 4), make([]int, 0, 4)
	for c := 0; c < 4; c++ {
		if p.value(corners[c]) < iso {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}
	if len(in) == 0 || len(out) == 0 {
		return
	}

	dir := r3.Sub(centroid(p, corners, out), centroid(p, corners, in))

	switch len(in) {
	case 1, 3:
		var lone int
		var rest []int
		if len(in) == 1 {
			lone, rest = in[0], out
		} else {
			lone, rest = out[0], in
		}
		a := w.vertex(p, corners[lone], corners[rest[0]], iso)
		b := w.vertex(p, corners[lone], corners[rest[1]], iso)
		c := w.vertex(p, corners[lone], corners[rest[2]], iso)
		w.triangle(a, b, c, dir)
	case 2:
		// The cross section is a quad with its corners in cyclic order.
		a := w.vertex(p, corners[in[0]], corners[out[0]], iso)
		b := w.vertex(p, corners[in[0]], corners[out[1]], iso)
		c := w.vertex(p, corners[in[1]], corners[out[1]], iso)
		d := w.vertex(p, corners[in[1]], corners[out[0]], iso)
		w.triangle(a, b, c, dir)
		w.triangle(a, c, d, dir)
	}
}

func centroid(p *padded, corners *[4][3]int, which []int) r3.Vec {
	sum := r3.Vec{}
	for _, c := range which {
		sum = r3.Add(sum, p.position(corners[c]))
	}
	return r3.Scale(1/float64(len(which)), sum)
}
