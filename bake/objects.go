package bake

import (
	"log/slog"
	"sort"

	"github.com/phil-mansfield/jetbake/emit"
	"github.com/phil-mansfield/jetbake/io"
)

// ParamsFromConfig returns the fixed bake parameters of a configuration.
func ParamsFromConfig(con *io.BakeConfig) Params {
	return Params{
		Solver:         con.Solver,
		Resolution:     con.Resolution,
		MeshResolution: con.MeshResolution,
		FrameEnd:       con.FrameEnd,
		FPS:            con.FPS,
		Box:            con.Box(),
		Scale:          con.Scale(),
		Location:       con.Location(),
		Gravity:        con.Gravity(),
		Viscosity:      con.Viscosity,
		MaxCFL:         con.MaxCFL,
		FixedSubSteps:  con.FixedSubStepCount(),
		Color:          con.ParticlesColor(),
		CreateMesh:     con.CreateMesh,
	}
}

// EmitterObjects returns the emitters of a configuration sorted by name.
func EmitterObjects(w *io.BakeWrapper) []emit.EmitterObject {
	names := make([]string, 0, len(w.Emitter))
	for name := range w.Emitter {
		names = append(names, name)
	}
	sort.Strings(names)

	objs := make([]emit.EmitterObject, len(names))
	for i, name := range names {
		em := w.Emitter[name]
		objs[i] = emit.EmitterObject{
			Name:           name,
			Disabled:       em.Disabled,
			OneShot:        em.OneShot,
			ParticlesCount: em.ParticlesCount,
			Velocity:       em.Velocity(),
			Jitter:         em.Jitter,
			Seed:           em.Seed,
			MaxParticles:   em.MaxParticles,
			AllowOverlap:   em.AllowOverlap,
		}
	}
	return objs
}

// ColliderObjects returns the colliders of a configuration sorted by name.
func ColliderObjects(w *io.BakeWrapper) []emit.ColliderObject {
	names := make([]string, 0, len(w.Collider))
	for name := range w.Collider {
		names = append(names, name)
	}
	sort.Strings(names)

	objs := make([]emit.ColliderObject, len(names))
	for i, name := range names {
		objs[i] = emit.ColliderObject{
			Name: name, Disabled: w.Collider[name].Disabled,
		}
	}
	return objs
}

// NewDriver creates a driver for a configuration read from a file. Geometry
// is read from the tables named in the configuration.
func NewDriver(w *io.BakeWrapper, logger *slog.Logger) *Driver {
	return &Driver{
		Params:    ParamsFromConfig(&w.Bake),
		Cache:     io.NewCache(w.Bake.Cache, w.Bake.Codec()),
		Emitters:  EmitterObjects(w),
		Colliders: ColliderObjects(w),
		Geometry:  io.NewTableGeometry(w),
		Logger:    logger,
	}
}

// LiveConfig reads per-frame parameters from a configuration file which may
// be edited during the bake.
type LiveConfig struct {
	Config *io.LiveConfig
}

func (lc *LiveConfig) Refresh() ([]emit.EmitterObject, float64, error) {
	w, err := lc.Config.Current()
	if err != nil {
		return nil, 0, err
	}
	return EmitterObjects(w), w.Bake.Viscosity, nil
}
