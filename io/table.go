package io

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/table"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake/geom"
	"github.com/phil-mansfield/jetbake/implicit"
)

// TableFiles names the vertex and face tables of one object.
type TableFiles struct {
	Geometry, Faces string
}

// TableGeometry reads object meshes from whitespace separated text tables.
// Vertex tables have one "x y z" row per vertex in the host's coordinates,
// and face tables have one "i j k" row per counter-clockwise triangle.
type TableGeometry struct {
	Objects map[string]TableFiles
}

// NewTableGeometry collects the tables of every enabled emitter and collider
// in w.
func NewTableGeometry(w *BakeWrapper) *TableGeometry {
	g := &TableGeometry{Objects: map[string]TableFiles{}}
	for name, em := range w.Emitter {
		if !em.Disabled {
			g.Objects[name] = TableFiles{em.Geometry, em.Faces}
		}
	}
	for name, col := range w.Collider {
		if !col.Disabled {
			g.Objects[name] = TableFiles{col.Geometry, col.Faces}
		}
	}
	return g
}

// Mesh reads the named object and converts it to the solver's coordinates.
func (g *TableGeometry) Mesh(name string) (implicit.TriangleMesh, error) {
	files, ok := g.Objects[name]
	if !ok {
		return implicit.TriangleMesh{}, fmt.Errorf(
			"No geometry tables for object '%s'.", name,
		)
	}
	return ReadTableMesh(files.Geometry, files.Faces)
}

// ReadTableMesh reads a vertex table and a face table, swaps their axes into
// the solver's convention, and flips the triangle winding to match.
func ReadTableMesh(vertexFile, faceFile string) (implicit.TriangleMesh, error) {
	vcols, err := table.ReadTable(vertexFile, []int{0, 1, 2}, nil)
	if err != nil {
		return implicit.TriangleMesh{}, err
	}
	fcols, err := table.ReadTable(faceFile, []int{0, 1, 2}, nil)
	if err != nil {
		return implicit.TriangleMesh{}, err
	}

	xs, ys, zs := vcols[0], vcols[1], vcols[2]
	tm := implicit.TriangleMesh{
		Points:    make([]r3.Vec, len(xs)),
		Triangles: make([][3]int, len(fcols[0])),
	}
	for i := range xs {
		tm.Points[i] = geom.HostToSolver(r3.Vec{X: xs[i], Y: ys[i], Z: zs[i]})
	}
	for i := range tm.Triangles {
		var tri [3]int
		for j := 0; j < 3; j++ {
			f := fcols[j][i]
			if f != math.Trunc(f) {
				return implicit.TriangleMesh{}, fmt.Errorf(
					"%s: face %d has non-integer index %g.", faceFile, i, f,
				)
			}
			tri[j] = int(f)
		}
		tm.Triangles[i] = geom.FlipWinding(tri)
	}

	if err := tm.Check(); err != nil {
		return implicit.TriangleMesh{}, fmt.Errorf("%s: %w", faceFile, err)
	}
	return tm, nil
}
