package geom

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Grid provides an interface for reasoning over a 1D slice as if it were a
// 3D grid. x is the fastest varying index.
type Grid struct {
	Width [3]int
	Length, Area, Volume int
}

// NewGrid returns a new Grid instance.
func NewGrid(width [3]int) *Grid {
	g := &Grid{}
	g.Init(width)
	return g
}

// Init initializes a Grid instance.
func (g *Grid) Init(width [3]int) {
	g.Width = width

	g.Length = width[0]
	g.Area = width[0] * width[1]
	g.Volume = width[0] * width[1] * width[2]
}

// Idx returns the grid index corresponding to a set of coordinates.
func (g *Grid) Idx(x, y, z int) int {
	return x + y*g.Length + z*g.Area
}

// IdxCheck returns an index and true if the given coordinate are valid and
// false otherwise.
func (g *Grid) IdxCheck(x, y, z int) (idx int, ok bool) {
	if !g.BoundsCheck(x, y, z) {
		return -1, false
	}
	return g.Idx(x, y, z), true
}

// BoundsCheck returns true if the given coordinates are within the Grid and
// false otherwise.
func (g *Grid) BoundsCheck(x, y, z int) bool {
	return (0 <= x && 0 <= y && 0 <= z) &&
		(x < g.Width[0] && y < g.Width[1] && z < g.Width[2])
}

// Coords returns the x, y, z coordinates of a point from its grid index.
func (g *Grid) Coords(idx int) (x, y, z int) {
	x = idx % g.Length
	y = (idx % g.Area) / g.Length
	z = idx / g.Area
	return x, y, z
}

// ScalarGrid is a cell-centered grid of scalar values with cubic cells.
type ScalarGrid struct {
	Grid
	Origin  r3.Vec // lower corner of the first cell
	Spacing float64
	Vals    []float64
}

// NewScalarGrid allocates a zeroed grid with the given resolution.
func NewScalarGrid(res [3]int, origin r3.Vec, spacing float64) *ScalarGrid {
	sg := &ScalarGrid{Origin: origin, Spacing: spacing}
	sg.Init(res)
	sg.Vals = make([]float64, sg.Volume)
	return sg
}

// Position returns the center of the cell at the given coordinates.
func (sg *ScalarGrid) Position(x, y, z int) r3.Vec {
	h := sg.Spacing
	return r3.Vec{
		X: sg.Origin.X + (float64(x)+0.5)*h,
		Y: sg.Origin.Y + (float64(y)+0.5)*h,
		Z: sg.Origin.Z + (float64(z)+0.5)*h,
	}
}

// At returns the value stored at the given coordinates.
func (sg *ScalarGrid) At(x, y, z int) float64 {
	return sg.Vals[sg.Idx(x, y, z)]
}
