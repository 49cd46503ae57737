package implicit

import (
	"gonum.org/v1/gonum/spatial/r3"
)

var cubeFaces = [][3]int{
	{0, 2, 1}, {0, 3, 2}, // z = min
	{4, 5, 6}, {4, 6, 7}, // z = max
	{0, 1, 5}, {0, 5, 4}, // y = min
	{3, 7, 6}, {3, 6, 2}, // y = max
	{0, 4, 7}, {0, 7, 3}, // x = min
	{1, 2, 6}, {1, 6, 5}, // x = max
}

// BoxMesh returns a triangulation of the surface of b with outward facing,
// counter-clockwise triangles.
func BoxMesh(b r3.Box) TriangleMesh {
	lo, hi := b.Min, b.Max
	pts := []r3.Vec{
		{X: lo.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z}, {X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z}, {X: lo.X, Y: hi.Y, Z: hi.Z},
	}
	tris := make([][3]int, len(cubeFaces))
	copy(tris, cubeFaces)
	return TriangleMesh{Points: pts, Triangles: tris}
}
