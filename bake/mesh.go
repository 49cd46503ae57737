package bake

import (
	"context"
	"errors"
	"io/fs"

	"github.com/phil-mansfield/jetbake/surface"
)

// RebuildMeshes writes the mesh of every cached frame whose particle file is
// valid but whose mesh file is missing or invalid. Frames are visited in
// order and the search stops at the first frame without valid particles. It
// returns the frames which were rebuilt.
func (d *Driver) RebuildMeshes(ctx context.Context) ([]int, error) {
	if err := d.Cache.Check(); err != nil {
		return nil, &Error{Kind: MissingCacheLocation, Frame: -1, Err: err}
	}

	p := &d.Params
	sim, mesh := d.Domains()
	builder := surface.NewBuilder(
		sim, mesh, p.Resolution, p.MeshResolution, d.extractor(),
	)

	rebuilt := []int{}
	for i := 0; i <= p.FrameEnd; i++ {
		if err := ctx.Err(); err != nil {
			return rebuilt, &Error{Kind: Canceled, Frame: i, Err: err}
		}
		if d.Cache.CheckParticles(i) != nil {
			break
		}

		err := d.Cache.CheckMesh(i)
		if err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			d.logger().Warn("replacing corrupt mesh", "frame", i, "err", err)
		}

		snap, _, err := d.Cache.ReadParticles(i)
		if err != nil {
			return rebuilt, &Error{Kind: CorruptCacheEntry, Frame: i, Err: err}
		}
		m := builder.Build(snap.Positions)
		if err := d.Cache.WriteMesh(i, &m); err != nil {
			return rebuilt, &Error{Kind: CachePersistError, Frame: i, Err: err}
		}
		rebuilt = append(rebuilt, i)
		d.logger().Info("mesh rebuilt",
			"frame", i, "triangles", len(m.Triangles))
	}
	return rebuilt, nil
}
