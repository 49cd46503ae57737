package io

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/jetbake"
)

const (
	ExampleBakeFile = `[Bake]

#######################
# Required Parameters #
#######################

# Directory which particle_<frame>.bin and mesh_<frame>.bin files are written
# to. It must exist before baking. If it doesn't, the bake finishes with a
# warning and nothing is written.
Cache = path/to/cache/dir

# Number of grid cells along the longest axis of the domain. The other axes
# get proportionally fewer cells.
Resolution = 50

# Last frame to bake. Frames 0 through FrameEnd are written.
FrameEnd = 250

# Bounding box of the domain object in its local coordinates. The host is Z-up.
DomainMinX = -1
DomainMinY = -1
DomainMinZ = -1
DomainMaxX = 1
DomainMaxY = 1
DomainMaxZ = 1

#######################
# Optional Parameters #
#######################

# The solver used to advance the particles. Particle is currently the only
# supported solver.
# Solver = Particle

# Frames per second. Default is 24.
# FPS = 24

# Transform of the domain object. Defaults are unit scale at the origin.
# ScaleX = 1
# ScaleY = 1
# ScaleZ = 1
# LocationX = 0
# LocationY = 0
# LocationZ = 0

# Linear damping applied to particle velocities. Viscosity is re-read every
# frame, so it can be changed while a bake is running.
# Viscosity = 0

# Acceleration due to gravity. Default is 9.8 downwards along Z.
# GravityX = 0
# GravityY = 0
# GravityZ = -9.8

# Sub-stepping. By default each frame is split into as many sub-steps as are
# needed to keep particles from crossing more than MaxCFL grid cells per
# sub-step. Setting FixedSubSteps uses exactly SubSteps sub-steps instead.
# MaxCFL = 5
# FixedSubSteps = false
# SubSteps = 1

# Particle file layout. Extended files store forces and colors in addition
# to positions and velocities. Tagged files record their layout in a header;
# set Tagged = false to write files readable by older tools.
# Format = Extended
# Tagged = true

# Color given to particles which haven't been colored.
# ParticlesColorR = 0
# ParticlesColorG = 0
# ParticlesColorB = 1

# Fluid surface meshes are written next to the particle files at
# MeshResolution cells along the longest axis. Default is twice Resolution.
# CreateMesh = true
# MeshResolution = 100

# Output files which are useful for profiling and debugging. Journal is an
# sqlite database recording every bake run.
# ProfileFile = prof.out
# LogFile = log.out
# Journal = bake.db

# Emitters and colliders are given in their own sections. Their geometry is
# read from whitespace separated tables: Geometry has one "x y z" vertex per
# line and Faces has one "i j k" triangle per line, indexing the vertices
# from zero.

# [Emitter "tap"]
# Geometry = path/to/tap_vertices.txt
# Faces = path/to/tap_faces.txt
#
# # Particles per simulation grid cell along one axis.
# ParticlesCount = 1
# # Initial velocity of emitted particles. Re-read every frame.
# VelocityX = 0
# VelocityY = 0
# VelocityZ = 0
# # One-shot emitters only emit on the first frame of a bake. Re-read every
# # frame.
# OneShot = false
# # Random displacement of emitted particles as a fraction of their spacing.
# Jitter = 0
# Seed = 0
# # Maximum number of particles emitted. 0 means no limit.
# MaxParticles = 0
# AllowOverlap = false
# Disabled = false

# [Collider "floor"]
# Geometry = path/to/floor_vertices.txt
# Faces = path/to/floor_faces.txt
# Disabled = false`
)

type BakeConfig struct {
	// Required
	Cache                              string
	Resolution, FrameEnd               int
	DomainMinX, DomainMinY, DomainMinZ float64
	DomainMaxX, DomainMaxY, DomainMaxZ float64

	// Optional
	Solver                          string
	FPS                             float64
	ScaleX, ScaleY, ScaleZ          float64
	LocationX, LocationY, LocationZ float64
	Viscosity                       float64
	GravityX, GravityY, GravityZ    float64
	MaxCFL                          float64
	FixedSubSteps                   bool
	SubSteps                        int
	Format                          string
	Tagged                          bool
	ParticlesColorR                 float64
	ParticlesColorG                 float64
	ParticlesColorB                 float64
	CreateMesh                      bool
	MeshResolution                  int
	LogFile, ProfileFile, Journal   string
}

type EmitterConfig struct {
	// Required
	Geometry, Faces string

	// Optional
	ParticlesCount                  float64
	VelocityX, VelocityY, VelocityZ float64
	OneShot, AllowOverlap           bool
	Jitter                          float64
	Seed                            int64
	MaxParticles                    int
	Disabled                        bool

	// Optional, "undocumented"
	Name string
}

type ColliderConfig struct {
	// Required
	Geometry, Faces string

	// Optional
	Disabled bool

	// Optional, "undocumented"
	Name string
}

type BakeWrapper struct {
	Bake     BakeConfig
	Emitter  map[string]*EmitterConfig
	Collider map[string]*ColliderConfig
}

func DefaultBakeWrapper() *BakeWrapper {
	con := BakeConfig{}
	con.Solver = "Particle"
	con.FPS = 24
	con.ScaleX, con.ScaleY, con.ScaleZ = 1, 1, 1
	con.GravityZ = -9.8
	con.MaxCFL = 5
	con.SubSteps = 1
	con.Format = "Extended"
	con.Tagged = true
	con.ParticlesColorB = 1
	con.CreateMesh = true
	con.MeshResolution = -1
	return &BakeWrapper{Bake: con}
}

func (con *BakeConfig) ValidCache() bool {
	return con.Cache != ""
}
func (con *BakeConfig) ValidResolution() bool {
	return con.Resolution > 0
}
func (con *BakeConfig) ValidMeshResolution() bool {
	return con.MeshResolution > 0
}
func (con *BakeConfig) ValidFrameEnd() bool {
	return con.FrameEnd >= 0
}
func (con *BakeConfig) ValidDomain() bool {
	return con.DomainMaxX >= con.DomainMinX &&
		con.DomainMaxY >= con.DomainMinY &&
		con.DomainMaxZ >= con.DomainMinZ
}
func (con *BakeConfig) ValidScale() bool {
	return con.ScaleX > 0 && con.ScaleY > 0 && con.ScaleZ > 0
}
func (con *BakeConfig) ValidFPS() bool {
	return con.FPS > 0
}
func (con *BakeConfig) ValidViscosity() bool {
	return con.Viscosity >= 0
}
func (con *BakeConfig) ValidMaxCFL() bool {
	return con.MaxCFL > 0
}
func (con *BakeConfig) ValidSubSteps() bool {
	return con.SubSteps > 0
}
func (con *BakeConfig) ValidFormat() bool {
	_, err := ParseFormat(con.Format)
	return err == nil
}
func (con *BakeConfig) ValidParticlesColor() bool {
	for _, c := range []float64{
		con.ParticlesColorR, con.ParticlesColorG, con.ParticlesColorB,
	} {
		if c < 0 || c > 1 || math.IsNaN(c) {
			return false
		}
	}
	return true
}
func (con *BakeConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *BakeConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}
func (con *BakeConfig) ValidJournal() bool {
	return con.Journal != ""
}

// Check returns an error describing the first invalid parameter. A missing
// cache directory is not an error here: it is reported by the bake.
func (con *BakeConfig) Check() error {
	if con.MeshResolution == -1 {
		con.MeshResolution = 2 * con.Resolution
	}

	switch {
	case !con.ValidResolution():
		return fmt.Errorf("Need to specify a positive Resolution.")
	case !con.ValidMeshResolution():
		return fmt.Errorf(
			"MeshResolution must be positive, not %d.", con.MeshResolution,
		)
	case !con.ValidFrameEnd():
		return fmt.Errorf(
			"FrameEnd must be non-negative, not %d.", con.FrameEnd,
		)
	case !con.ValidDomain():
		return fmt.Errorf("Every DomainMax value must be at least as large " +
			"as the matching DomainMin value.")
	case !con.ValidScale():
		return fmt.Errorf("ScaleX, ScaleY, and ScaleZ must be positive.")
	case !con.ValidFPS():
		return fmt.Errorf("FPS must be positive, not %g.", con.FPS)
	case !con.ValidViscosity():
		return fmt.Errorf(
			"Viscosity must be non-negative, not %g.", con.Viscosity,
		)
	case !con.ValidMaxCFL():
		return fmt.Errorf("MaxCFL must be positive, not %g.", con.MaxCFL)
	case !con.ValidSubSteps():
		return fmt.Errorf("SubSteps must be positive, not %d.", con.SubSteps)
	case !con.ValidFormat():
		return fmt.Errorf(
			"Format must be one of [Basic | Extended]. '%s' is not "+
				"recognized.", con.Format,
		)
	case !con.ValidParticlesColor():
		return fmt.Errorf("ParticlesColor components must be in [0, 1].")
	}
	return nil
}

// Box returns the local bounding box of the domain object.
func (con *BakeConfig) Box() r3.Box {
	return r3.Box{
		Min: r3.Vec{X: con.DomainMinX, Y: con.DomainMinY, Z: con.DomainMinZ},
		Max: r3.Vec{X: con.DomainMaxX, Y: con.DomainMaxY, Z: con.DomainMaxZ},
	}
}

func (con *BakeConfig) Scale() r3.Vec {
	return r3.Vec{X: con.ScaleX, Y: con.ScaleY, Z: con.ScaleZ}
}

func (con *BakeConfig) Location() r3.Vec {
	return r3.Vec{X: con.LocationX, Y: con.LocationY, Z: con.LocationZ}
}

// Gravity returns the gravitational acceleration in the host's coordinates.
func (con *BakeConfig) Gravity() r3.Vec {
	return r3.Vec{X: con.GravityX, Y: con.GravityY, Z: con.GravityZ}
}

func (con *BakeConfig) ParticlesColor() jetbake.RGB {
	return jetbake.RGB{
		float32(con.ParticlesColorR),
		float32(con.ParticlesColorG),
		float32(con.ParticlesColorB),
	}
}

// Codec returns the codec used for the cache's particle files.
func (con *BakeConfig) Codec() Codec {
	format, err := ParseFormat(con.Format)
	if err != nil {
		panic(err.Error())
	}
	return Codec{Format: format, Tagged: con.Tagged}
}

// FixedSubStepCount returns the sub-step count passed to the solver: 0 when
// sub-steps are chosen adaptively.
func (con *BakeConfig) FixedSubStepCount() int {
	if con.FixedSubSteps {
		return con.SubSteps
	}
	return 0
}

func (em *EmitterConfig) CheckInit(name string) error {
	if !em.Disabled && em.Geometry == "" {
		return fmt.Errorf(
			"Need to specify a Geometry file for Emitter '%s'.", name,
		)
	} else if !em.Disabled && em.Faces == "" {
		return fmt.Errorf(
			"Need to specify a Faces file for Emitter '%s'.", name,
		)
	}

	if em.ParticlesCount == 0 {
		em.ParticlesCount = 1
	} else if em.ParticlesCount < 0 {
		return fmt.Errorf(
			"Emitter '%s' given a negative ParticlesCount, %g.",
			name, em.ParticlesCount,
		)
	}

	if em.Jitter < 0 || em.Jitter > 1 {
		return fmt.Errorf(
			"Jitter of Emitter '%s' must be in range [0, 1], but is %g.",
			name, em.Jitter,
		)
	} else if em.MaxParticles < 0 {
		return fmt.Errorf(
			"Emitter '%s' given a negative MaxParticles, %d.",
			name, em.MaxParticles,
		)
	}

	em.Name = name
	return nil
}

// Velocity returns the initial velocity in the host's coordinates.
func (em *EmitterConfig) Velocity() r3.Vec {
	return r3.Vec{X: em.VelocityX, Y: em.VelocityY, Z: em.VelocityZ}
}

func (col *ColliderConfig) CheckInit(name string) error {
	if !col.Disabled && col.Geometry == "" {
		return fmt.Errorf(
			"Need to specify a Geometry file for Collider '%s'.", name,
		)
	} else if !col.Disabled && col.Faces == "" {
		return fmt.Errorf(
			"Need to specify a Faces file for Collider '%s'.", name,
		)
	}

	col.Name = name
	return nil
}

// Check validates every section of the configuration.
func (w *BakeWrapper) Check() error {
	if err := w.Bake.Check(); err != nil {
		return err
	}
	for name, em := range w.Emitter {
		if err := em.CheckInit(name); err != nil {
			return err
		}
	}
	for name, col := range w.Collider {
		if err := col.CheckInit(name); err != nil {
			return err
		}
	}
	return nil
}

// ReadBakeConfig reads and checks the configuration file at fname.
func ReadBakeConfig(fname string) (*BakeWrapper, error) {
	w := DefaultBakeWrapper()
	if err := gcfg.ReadFileInto(w, fname); err != nil {
		return nil, err
	}
	if err := w.Check(); err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return w, nil
}

// ParseBakeConfig reads and checks configuration text.
func ParseBakeConfig(text string) (*BakeWrapper, error) {
	w := DefaultBakeWrapper()
	if err := gcfg.ReadStringInto(w, text); err != nil {
		return nil, err
	}
	if err := w.Check(); err != nil {
		return nil, err
	}
	return w, nil
}
