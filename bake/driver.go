/*package bake runs a fluid simulation frame by frame and checkpoints every
frame to a cache directory. A bake which is interrupted can be run again: it
resumes from the first frame missing from the cache and never re-simulates a
frame which was already written.
*/
package bake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/emit"
	"github.com/phil-mansfield/jetbake/geom"
	"github.com/phil-mansfield/jetbake/io"
	"github.com/phil-mansfield/jetbake/solver"
	"github.com/phil-mansfield/jetbake/surface"
)

// ObjectMargin is the number of padding cells around object distance grids.
const ObjectMargin = 1

// Params are the fixed parameters of a bake. Vectors are in the host's
// coordinates.
type Params struct {
	Solver         string
	Resolution     int
	MeshResolution int
	FrameEnd       int
	FPS            float64

	Box             r3.Box
	Scale, Location r3.Vec

	Gravity       r3.Vec
	Viscosity     float64
	MaxCFL        float64
	FixedSubSteps int // 0 for CFL-limited sub-steps

	Color      jetbake.RGB
	CreateMesh bool
}

// Live provides the parameters which are re-read before every frame.
type Live interface {
	Refresh() (emitters []emit.EmitterObject, viscosity float64, err error)
}

// Driver runs a single bake. A Driver should not be reused.
type Driver struct {
	Params    Params
	Cache     *io.Cache
	Emitters  []emit.EmitterObject
	Colliders []emit.ColliderObject
	Geometry  emit.GeometrySource

	// Optional
	NewSolver solver.Factory    // defaults to the solver named in Params
	Extractor surface.Extractor // defaults to MarchingTetrahedra
	Live      Live
	Observer  Observer
	Logger    *slog.Logger

	state State
}

// State returns the driver's current state.
func (d *Driver) State() State { return d.state }

// Domains returns the simulation and mesh grids of the bake.
func (d *Driver) Domains() (sim, mesh geom.Domain) {
	p := &d.Params
	sim = geom.ComputeDomain(p.Box, p.Scale, p.Location, p.Resolution)
	mesh = geom.ComputeDomain(p.Box, p.Scale, p.Location, p.MeshResolution)
	return sim, mesh
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Driver) observer() Observer {
	if d.Observer == nil {
		return Observers{}
	}
	return d.Observer
}

func (d *Driver) fail(
	kind Kind, frame int, err error, start, simulated int,
) Result {
	d.state = StateFailed
	res := Result{
		Status:     Failed,
		Reason:     string(kind),
		Err:        &Error{Kind: kind, Frame: frame, Err: err},
		State:      d.state,
		StartFrame: start,
		Simulated:  simulated,
	}
	if kind == MissingCacheLocation {
		res.Status = Warning
		res.Reason = "Cache folder not specified or missing."
	}
	d.observer().RunFinished(res)
	return res
}

// Bake scans the cache, resumes or starts the simulation, and writes every
// remaining frame up to and including Params.FrameEnd. Cancellation of ctx is
// only observed between frames.
func (d *Driver) Bake(ctx context.Context) Result {
	log := d.logger()
	p := &d.Params

	d.state = StateScanning
	if err := d.Cache.Check(); err != nil {
		return d.fail(MissingCacheLocation, -1, err, -1, 0)
	}

	scan := d.Cache.Scan(p.FrameEnd + 1)
	for frame, err := range scan.Corrupt {
		log.Warn("treating corrupt cache entry as missing",
			"frame", frame, "err", err)
	}
	if scan.Complete() {
		d.state = StateComplete
		res := Result{
			Status: Finished, Reason: "Cache is already complete.",
			State: d.state, StartFrame: -1,
		}
		d.observer().RunFinished(res)
		return res
	}
	start := scan.FirstMissing

	sim, mesh := d.Domains()
	s, err := d.newSolver(sim.ToSolver())
	if err != nil {
		return d.fail(InvalidSetup, -1, err, start, 0)
	}
	s.SetGravity(geom.HostToSolver(p.Gravity))
	s.SetMaxCFL(p.MaxCFL)
	s.SetFixedSubSteps(p.FixedSubSteps)
	s.SetViscosity(p.Viscosity)

	var (
		colors  []jetbake.RGB
		history map[string]jetbake.EmitterState
	)
	if start == 0 {
		d.state = StateSimulatingFresh
	} else {
		d.state = StateSimulatingResumed
		snap, format, err := d.Cache.ReadParticles(start - 1)
		if err != nil {
			return d.fail(CorruptCacheEntry, start-1, err, start, 0)
		}
		s.Particles().AddParticles(
			snap.Positions, snap.Velocities, snap.Forces,
		)
		colors = snap.Colors
		log.Info("resuming bake",
			"frame", start, "particles", snap.Count(), "format", format)

		history, err = d.Cache.ReadEmitters(start - 1)
		if err != nil && len(d.Emitters) > 0 {
			log.Warn("emitter history unavailable, emitters restart "+
				"their particle counts", "frame", start-1, "err", err)
		}

		// Entries past the resume point come from an earlier run and
		// would break the order of this one.
		if err := d.Cache.Invalidate(start); err != nil {
			return d.fail(CachePersistError, start, err, start, 0)
		}
	}

	composer := &emit.Composer{
		Geometry: d.Geometry, Resolution: p.Resolution, Margin: ObjectMargin,
	}
	emitters, handles, err := composer.BuildEmitters(sim, d.Emitters, start)
	if err != nil {
		return d.fail(InvalidSetup, -1, err, start, 0)
	}
	emit.RestoreStates(handles, history)
	collider, err := composer.BuildColliders(sim, d.Colliders)
	if err != nil {
		return d.fail(InvalidSetup, -1, err, start, 0)
	}
	s.SetEmitter(emitters)
	if collider != nil {
		s.SetCollider(collider)
	}

	var builder *surface.Builder
	if p.CreateMesh {
		builder = surface.NewBuilder(
			sim, mesh, p.Resolution, p.MeshResolution, d.extractor(),
		)
	}

	d.observer().RunStarted(RunInfo{
		Cache: d.Cache.Dir, StartFrame: start, FrameEnd: p.FrameEnd,
		Resumed: start > 0,
	})

	simulated := 0
	frame := jetbake.NewFrame(start, p.FPS)
	for ; frame.Index <= p.FrameEnd; frame.Advance() {
		if err := ctx.Err(); err != nil {
			return d.fail(Canceled, frame.Index, err, start, simulated)
		}
		t0 := time.Now()

		d.refresh(s, handles)
		if err := s.Update(frame); err != nil {
			return d.fail(SolverDivergence, frame.Index, err, start, simulated)
		}

		snap := s.Particles().Snapshot()
		colors = jetbake.PadColors(colors, snap.Count(), p.Color)
		snap.Colors = colors

		triangles := 0
		if builder != nil {
			m := builder.Build(snap.Positions)
			triangles = len(m.Triangles)
			if err := d.Cache.WriteMesh(frame.Index, &m); err != nil {
				return d.fail(CachePersistError, frame.Index, err, start, simulated)
			}
		}
		if len(handles)+len(history) > 0 {
			states := emit.States(handles, history)
			err := d.Cache.WriteEmitters(frame.Index, states)
			if err != nil {
				return d.fail(CachePersistError, frame.Index, err, start, simulated)
			}
		}
		if err := d.Cache.WriteParticles(frame.Index, &snap); err != nil {
			return d.fail(CachePersistError, frame.Index, err, start, simulated)
		}
		simulated++

		d.observer().FrameWritten(FrameRecord{
			Frame: frame.Index, Particles: snap.Count(),
			Triangles: triangles, Elapsed: time.Since(t0),
		})
	}

	d.state = StateComplete
	res := Result{
		Status:     Finished,
		Reason:     fmt.Sprintf("Baked frames %d to %d.", start, p.FrameEnd),
		State:      d.state,
		StartFrame: start,
		Simulated:  simulated,
	}
	d.observer().RunFinished(res)
	return res
}

// refresh copies the live emitter fields and viscosity into the solver.
func (d *Driver) refresh(s solver.Solver, handles map[string]*emit.Volume) {
	if d.Live == nil {
		emit.Refresh(handles, d.Emitters)
		return
	}

	objs, viscosity, err := d.Live.Refresh()
	if err != nil {
		d.logger().Warn("could not reload configuration", "err", err)
		return
	}
	emit.Refresh(handles, objs)
	s.SetViscosity(viscosity)
}

func (d *Driver) newSolver(dom geom.Domain) (solver.Solver, error) {
	if d.NewSolver != nil {
		return d.NewSolver(dom), nil
	}
	return solver.New(d.Params.Solver, dom)
}

func (d *Driver) extractor() surface.Extractor {
	if d.Extractor == nil {
		return &surface.MarchingTetrahedra{}
	}
	return d.Extractor
}
