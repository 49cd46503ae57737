package bake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdio "io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/emit"
	"github.com/phil-mansfield/jetbake/geom"
	"github.com/phil-mansfield/jetbake/implicit"
	"github.com/phil-mansfield/jetbake/io"
	"github.com/phil-mansfield/jetbake/solver"
)

// fakeSolver adds one particle per frame and records how it was driven.
type fakeSolver struct {
	ps        solver.ParticleSystemData
	emitter   solver.Emitter
	updates   []int
	initial   int // particle count before the first update
	failAt    int
	viscosity float64
}

func newFakeSolver() *fakeSolver { return &fakeSolver{failAt: -1, initial: -1} }

func (s *fakeSolver) Update(frame jetbake.Frame) error {
	if s.initial < 0 {
		s.initial = s.ps.Count()
	}
	s.updates = append(s.updates, frame.Index)
	if frame.Index == s.failAt {
		return solver.ErrDivergence
	}
	if s.emitter != nil {
		s.emitter.Emit(frame, &s.ps)
	}
	x := 0.25 + 0.01*float32(frame.Index)
	s.ps.AddParticles(
		[]geom.Vec{{x, 0.5, 0.5}}, []geom.Vec{{0, float32(frame.Index), 0}},
		[]geom.Vec{{0, -1, 0}},
	)
	return nil
}

func (s *fakeSolver) Particles() *solver.ParticleSystemData { return &s.ps }
func (s *fakeSolver) SetEmitter(e solver.Emitter)           { s.emitter = e }
func (s *fakeSolver) SetCollider(c solver.Collider)         {}
func (s *fakeSolver) SetViscosity(mu float64)               { s.viscosity = mu }
func (s *fakeSolver) SetGravity(g r3.Vec)                   {}
func (s *fakeSolver) SetMaxCFL(cfl float64)                 {}
func (s *fakeSolver) SetFixedSubSteps(n int)                {}
func (s *fakeSolver) GridSpacing() float64                  { return 0.125 }

type boxGeometry map[string]r3.Box

func (g boxGeometry) Mesh(name string) (implicit.TriangleMesh, error) {
	b, ok := g[name]
	if !ok {
		return implicit.TriangleMesh{}, errors.New("no such object")
	}
	return implicit.BoxMesh(b), nil
}

// countingObserver records notifications and can cancel a bake once a given
// frame has been written.
type countingObserver struct {
	started  []RunInfo
	frames   []int
	finished []Result

	cancelAfter int
	cancel      context.CancelFunc
}

func (o *countingObserver) RunStarted(info RunInfo) { o.started = append(o.started, info) }
func (o *countingObserver) RunFinished(res Result)  { o.finished = append(o.finished, res) }
func (o *countingObserver) FrameWritten(rec FrameRecord) {
	o.frames = append(o.frames, rec.Frame)
	if o.cancel != nil && rec.Frame == o.cancelAfter {
		o.cancel()
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(stdio.Discard, nil))
}

func testParams(frameEnd int) Params {
	return Params{
		Solver:         "Particle",
		Resolution:     8,
		MeshResolution: 8,
		FrameEnd:       frameEnd,
		FPS:            24,
		Box:            r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}},
		Scale:          r3.Vec{X: 1, Y: 1, Z: 1},
		Gravity:        r3.Vec{Z: -9.8},
		MaxCFL:         5,
		Color:          jetbake.RGB{0, 0, 1},
	}
}

// newFakeDriver returns a driver over dir whose solver is s.
func newFakeDriver(dir string, frameEnd int, s *fakeSolver) *Driver {
	return &Driver{
		Params:    testParams(frameEnd),
		Cache:     io.NewCache(dir, io.Codec{Format: io.Extended, Tagged: true}),
		Geometry:  boxGeometry{},
		NewSolver: func(geom.Domain) solver.Solver { return s },
		Logger:    quietLogger(),
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// requirePrefix requires exactly the particle files of frames [0, n) to
// exist among frames [0, frameEnd].
func requirePrefix(t *testing.T, c *io.Cache, n, frameEnd int) {
	for i := 0; i <= frameEnd; i++ {
		require.Equal(t, i < n, exists(c.ParticlesPath(i)), "frame %d", i)
	}
}

func TestBakeFresh(t *testing.T) {
	s := newFakeSolver()
	d := newFakeDriver(t.TempDir(), 3, s)
	obs := &countingObserver{}
	d.Observer = obs

	res := d.Bake(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, Finished, res.Status)
	assert.Equal(t, StateComplete, d.State())
	assert.Equal(t, 0, res.StartFrame)
	assert.Equal(t, 4, res.Simulated)
	assert.Equal(t, []int{0, 1, 2, 3}, s.updates)
	assert.Equal(t, 0, s.initial)
	assert.Equal(t, []int{0, 1, 2, 3}, obs.frames)
	require.Equal(t, 1, len(obs.started))
	assert.False(t, obs.started[0].Resumed)

	requirePrefix(t, d.Cache, 4, 5)
	snap, format, err := d.Cache.ReadParticles(3)
	require.NoError(t, err)
	assert.Equal(t, io.Extended, format)
	assert.Equal(t, 4, snap.Count())
	assert.Equal(t, jetbake.RGB{0, 0, 1}, snap.Colors[3])
	assert.False(t, exists(d.Cache.MeshPath(0)))
}

func TestBakeIdempotent(t *testing.T) {
	dir := t.TempDir()
	res := newFakeDriver(dir, 3, newFakeSolver()).Bake(context.Background())
	require.NoError(t, res.Err)

	info, err := os.Stat(filepath.Join(dir, "particles_3.bin"))
	require.NoError(t, err)

	s := newFakeSolver()
	d := newFakeDriver(dir, 3, s)
	obs := &countingObserver{}
	d.Observer = obs
	res = d.Bake(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, Finished, res.Status)
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, -1, res.StartFrame)
	assert.Equal(t, 0, res.Simulated)
	assert.Equal(t, 0, len(s.updates))
	assert.Equal(t, 0, len(obs.frames))
	assert.Equal(t, 0, len(obs.started))

	after, err := os.Stat(filepath.Join(dir, "particles_3.bin"))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestBakeResume(t *testing.T) {
	table := []struct {
		name   string
		damage func(c *io.Cache) error
	}{
		{"missing", func(c *io.Cache) error {
			return os.Remove(c.ParticlesPath(3))
		}},
		{"truncated", func(c *io.Cache) error {
			info, err := os.Stat(c.ParticlesPath(3))
			if err != nil {
				return err
			}
			return os.Truncate(c.ParticlesPath(3), info.Size()-5)
		}},
	}

	for _, test := range table {
		dir := t.TempDir()
		res := newFakeDriver(dir, 5, newFakeSolver()).Bake(context.Background())
		require.NoError(t, res.Err, test.name)

		s := newFakeSolver()
		d := newFakeDriver(dir, 5, s)
		require.NoError(t, test.damage(d.Cache), test.name)
		obs := &countingObserver{}
		d.Observer = obs

		res = d.Bake(context.Background())
		require.NoError(t, res.Err, test.name)
		assert.Equal(t, 3, res.StartFrame, test.name)
		assert.Equal(t, 3, res.Simulated, test.name)
		assert.Equal(t, []int{3, 4, 5}, s.updates, test.name)
		assert.Equal(t, 3, s.initial, test.name)
		require.Equal(t, 1, len(obs.started), test.name)
		assert.True(t, obs.started[0].Resumed, test.name)

		snap, _, err := d.Cache.ReadParticles(5)
		require.NoError(t, err, test.name)
		assert.Equal(t, 6, snap.Count(), test.name)
	}
}

func TestBakeResumeInvalidatesLaterEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, newFakeDriver(dir, 5, newFakeSolver()).
		Bake(context.Background()).Err)

	d := newFakeDriver(dir, 5, newFakeSolver())
	stale := &jetbake.MeshSnapshot{
		Points: make([]geom.Vec, 3), Triangles: [][3]uint32{{0, 1, 2}},
	}
	require.NoError(t, d.Cache.WriteMesh(4, stale))
	require.NoError(t, d.Cache.WriteMesh(1, stale))
	require.NoError(t, os.Remove(d.Cache.ParticlesPath(2)))

	// Left by an earlier bake with a later last frame.
	require.NoError(t, d.Cache.WriteMesh(9, stale))
	require.NoError(t, d.Cache.WriteParticles(9, &jetbake.ParticleSnapshot{}))

	require.NoError(t, d.Bake(context.Background()).Err)
	assert.False(t, exists(d.Cache.MeshPath(4)))
	assert.True(t, exists(d.Cache.MeshPath(1)))
	assert.False(t, exists(d.Cache.MeshPath(9)))
	assert.False(t, exists(d.Cache.ParticlesPath(9)))
	requirePrefix(t, d.Cache, 6, 10)
}

func TestBakeResumeKeepsColors(t *testing.T) {
	dir := t.TempDir()
	d := newFakeDriver(dir, 2, newFakeSolver())
	red := jetbake.RGB{1, 0, 0}
	require.NoError(t, d.Cache.WriteParticles(0, &jetbake.ParticleSnapshot{
		Positions:  []geom.Vec{{0.5, 0.5, 0.5}},
		Velocities: []geom.Vec{{}},
		Colors:     []jetbake.RGB{red},
	}))

	res := d.Bake(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.StartFrame)

	snap, _, err := d.Cache.ReadParticles(2)
	require.NoError(t, err)
	require.Equal(t, 3, snap.Count())
	assert.Equal(t, []jetbake.RGB{red, {0, 0, 1}, {0, 0, 1}}, snap.Colors)
}

func TestBakeResumeBasicFormat(t *testing.T) {
	dir := t.TempDir()
	codec := io.Codec{Format: io.Basic}

	d := newFakeDriver(dir, 3, newFakeSolver())
	d.Cache.Codec = codec
	require.NoError(t, d.Bake(context.Background()).Err)
	require.NoError(t, os.Remove(d.Cache.ParticlesPath(2)))

	s := newFakeSolver()
	d = newFakeDriver(dir, 3, s)
	d.Cache.Codec = codec
	res := d.Bake(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.StartFrame)
	assert.Equal(t, 2, s.initial)
	assert.Equal(t, []geom.Vec{{}, {}, {0, -1, 0}, {0, -1, 0}}, s.ps.Forces)

	snap, err := io.ReadParticlesAs(d.Cache.ParticlesPath(3), io.Basic)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Count())
}

func TestBakeMissingCache(t *testing.T) {
	for _, dir := range []string{"", filepath.Join(t.TempDir(), "missing")} {
		s := newFakeSolver()
		d := newFakeDriver(dir, 3, s)
		res := d.Bake(context.Background())

		assert.Equal(t, Warning, res.Status)
		assert.True(t, IsKind(res.Err, MissingCacheLocation))
		assert.Equal(t, StateFailed, d.State())
		assert.Equal(t, 0, len(s.updates))
	}
}

func TestBakePersistError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "particles_2.bin")
	require.NoError(t, os.Mkdir(blocker, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "x"), nil, 0644))

	d := newFakeDriver(dir, 4, newFakeSolver())
	res := d.Bake(context.Background())

	assert.Equal(t, Failed, res.Status)
	assert.True(t, IsKind(res.Err, CachePersistError))
	assert.True(t, errors.Is(res.Err, io.ErrPersist))
	assert.Equal(t, 2, res.Simulated)

	var be *Error
	require.True(t, errors.As(res.Err, &be))
	assert.Equal(t, 2, be.Frame)
}

func TestBakeDivergence(t *testing.T) {
	s := newFakeSolver()
	s.failAt = 2
	d := newFakeDriver(t.TempDir(), 4, s)
	res := d.Bake(context.Background())

	assert.Equal(t, Failed, res.Status)
	assert.True(t, IsKind(res.Err, SolverDivergence))
	assert.True(t, errors.Is(res.Err, solver.ErrDivergence))
	assert.Equal(t, StateFailed, d.State())
	requirePrefix(t, d.Cache, 2, 4)
}

func TestBakeCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newFakeSolver()
	d := newFakeDriver(t.TempDir(), 4, s)
	res := d.Bake(ctx)
	assert.True(t, IsKind(res.Err, Canceled))
	assert.Equal(t, 0, len(s.updates))

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	s = newFakeSolver()
	d = newFakeDriver(t.TempDir(), 4, s)
	d.Observer = &countingObserver{cancelAfter: 1, cancel: cancel}
	res = d.Bake(ctx)

	assert.True(t, IsKind(res.Err, Canceled))
	assert.Equal(t, 2, res.Simulated)
	assert.Equal(t, []int{0, 1}, s.updates)
	requirePrefix(t, d.Cache, 2, 4)
}

type fakeLive struct {
	viscosity float64
	velocity  r3.Vec
	err       error
}

func (l *fakeLive) Refresh() ([]emit.EmitterObject, float64, error) {
	if l.err != nil {
		return nil, 0, l.err
	}
	return []emit.EmitterObject{
		{Name: "tap", ParticlesCount: 1, Velocity: l.velocity},
	}, l.viscosity, nil
}

func TestBakeLiveRefresh(t *testing.T) {
	s := newFakeSolver()
	d := newFakeDriver(t.TempDir(), 1, s)
	d.Geometry = boxGeometry{
		"tap": {Min: r3.Vec{X: 0.4, Y: 0.4, Z: 0.4}, Max: r3.Vec{X: 0.6, Y: 0.6, Z: 0.6}},
	}
	d.Emitters = []emit.EmitterObject{{Name: "tap", ParticlesCount: 1}}
	d.Live = &fakeLive{viscosity: 0.7, velocity: r3.Vec{Z: 2}}

	res := d.Bake(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, 0.7, s.viscosity)

	set := s.emitter.(*emit.Set)
	require.Equal(t, 1, len(set.Emitters))
	assert.Equal(t, r3.Vec{Y: 2}, set.Emitters[0].InitialVelocity)

	s = newFakeSolver()
	d = newFakeDriver(t.TempDir(), 1, s)
	d.Params.Viscosity = 0.1
	d.Live = &fakeLive{err: errors.New("bad edit")}
	require.NoError(t, d.Bake(context.Background()).Err)
	assert.Equal(t, 0.1, s.viscosity)
}

func TestBakeInvalidSetup(t *testing.T) {
	d := newFakeDriver(t.TempDir(), 1, newFakeSolver())
	d.Emitters = []emit.EmitterObject{{Name: "ghost", ParticlesCount: 1}}
	res := d.Bake(context.Background())
	assert.Equal(t, Failed, res.Status)
	assert.True(t, IsKind(res.Err, InvalidSetup))

	d = newFakeDriver(t.TempDir(), 1, newFakeSolver())
	d.NewSolver = nil
	d.Params.Solver = "FLIP"
	assert.True(t, IsKind(d.Bake(context.Background()).Err, InvalidSetup))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: CachePersistError, Frame: 3, Err: io.ErrPersist}
	assert.Equal(t,
		"CACHE_PERSIST_ERROR: frame 3: cache entry could not be persisted",
		err.Error())

	err = &Error{Kind: MissingCacheLocation, Frame: -1, Err: errors.New("x")}
	assert.Equal(t, "MISSING_CACHE_LOCATION: x", err.Error())
	assert.False(t, IsKind(errors.New("x"), Canceled))
}

// newParticleDriver returns a driver using the particle solver with a
// one-shot emitter, a jittered continuous emitter capped at maxParticles,
// and a floor collider.
func newParticleDriver(dir string, frameEnd, maxParticles int) *Driver {
	p := testParams(frameEnd)
	p.CreateMesh = true
	p.Viscosity = 0.05
	return &Driver{
		Params: p,
		Cache:  io.NewCache(dir, io.Codec{Format: io.Extended, Tagged: true}),
		Emitters: []emit.EmitterObject{
			{Name: "drop", OneShot: true, ParticlesCount: 1},
			{Name: "tap", ParticlesCount: 1, Jitter: 0.5, Seed: 7,
				Velocity: r3.Vec{X: 0.5}, MaxParticles: maxParticles},
		},
		Colliders: []emit.ColliderObject{{Name: "floor"}},
		Geometry: boxGeometry{
			"drop":  {Min: r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, Max: r3.Vec{X: 0.35, Y: 0.35, Z: 0.35}},
			"tap":   {Min: r3.Vec{X: 0.4, Y: 0.6, Z: 0.4}, Max: r3.Vec{X: 0.65, Y: 0.85, Z: 0.65}},
			"floor": {Min: r3.Vec{X: -0.1, Y: -0.1, Z: -0.1}, Max: r3.Vec{X: 1.1, Y: 0.05, Z: 1.1}},
		},
		Logger: quietLogger(),
	}
}

func TestBakeResumeMatchesUninterrupted(t *testing.T) {
	frameEnd := 6
	table := []struct {
		maxParticles, cancelAfter int
	}{
		{0, 2},
		{10, 2},
		{10, 0},
	}

	for i, test := range table {
		whole, split := t.TempDir(), t.TempDir()

		res := newParticleDriver(whole, frameEnd, test.maxParticles).
			Bake(context.Background())
		require.NoError(t, res.Err, "%d)", i)
		require.Equal(t, frameEnd+1, res.Simulated, "%d)", i)

		ctx, cancel := context.WithCancel(context.Background())
		d := newParticleDriver(split, frameEnd, test.maxParticles)
		d.Observer = &countingObserver{
			cancelAfter: test.cancelAfter, cancel: cancel,
		}
		res = d.Bake(ctx)
		cancel()
		require.True(t, IsKind(res.Err, Canceled), "%d)", i)

		res = newParticleDriver(split, frameEnd, test.maxParticles).
			Bake(context.Background())
		require.NoError(t, res.Err, "%d)", i)
		require.Equal(t, test.cancelAfter+1, res.StartFrame, "%d)", i)

		for j := 0; j <= frameEnd; j++ {
			for _, name := range []string{
				fmt.Sprintf("particles_%d.bin", j),
				fmt.Sprintf("mesh_%d.bin", j),
				fmt.Sprintf("emitters_%d.yaml", j),
			} {
				a, err := os.ReadFile(filepath.Join(whole, name))
				require.NoError(t, err, "%d)", i)
				b, err := os.ReadFile(filepath.Join(split, name))
				require.NoError(t, err, "%d)", i)
				assert.True(t, bytes.Equal(a, b), "%d) %s differs", i, name)
			}
		}

		c := io.NewCache(split, io.Codec{Format: io.Extended, Tagged: true})
		states, err := c.ReadEmitters(frameEnd)
		require.NoError(t, err, "%d)", i)
		assert.True(t, states["drop"].Fired, "%d)", i)
		assert.True(t, states["tap"].Emitted > 0, "%d)", i)
		if test.maxParticles > 0 {
			assert.True(t, states["tap"].Emitted <= test.maxParticles, "%d)", i)
		}
	}
}

func TestBakeFinishesLastFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	d := newFakeDriver(dir, 3, newFakeSolver())
	d.Observer = &countingObserver{cancelAfter: 2, cancel: cancel}
	require.True(t, IsKind(d.Bake(ctx).Err, Canceled))

	s := newFakeSolver()
	res := newFakeDriver(dir, 3, s).Bake(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.StartFrame)
	assert.Equal(t, []int{3}, s.updates)

	s = newFakeSolver()
	d = newFakeDriver(t.TempDir(), 0, s)
	require.NoError(t, d.Bake(context.Background()).Err)
	assert.Equal(t, []int{0}, s.updates)
	assert.True(t, exists(d.Cache.ParticlesPath(0)))

	s = newFakeSolver()
	d = newFakeDriver(d.Cache.Dir, 0, s)
	assert.Equal(t, -1, d.Bake(context.Background()).StartFrame)
	assert.Equal(t, 0, len(s.updates))
}

func TestRebuildMeshes(t *testing.T) {
	d := newFakeDriver(t.TempDir(), 3, newFakeSolver())
	require.NoError(t, d.Bake(context.Background()).Err)

	rebuilt, err := d.RebuildMeshes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, rebuilt)
	for i := 0; i <= 3; i++ {
		assert.NoError(t, d.Cache.CheckMesh(i), "frame %d", i)
	}

	rebuilt, err = d.RebuildMeshes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{}, rebuilt)

	require.NoError(t, os.WriteFile(d.Cache.MeshPath(1), []byte{1, 2}, 0644))
	rebuilt, err = d.RebuildMeshes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, rebuilt)

	require.NoError(t, os.Remove(d.Cache.ParticlesPath(2)))
	require.NoError(t, os.Remove(d.Cache.MeshPath(3)))
	rebuilt, err = d.RebuildMeshes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{}, rebuilt)
	assert.False(t, exists(d.Cache.MeshPath(3)))

	d = newFakeDriver("", 3, newFakeSolver())
	_, err = d.RebuildMeshes(context.Background())
	assert.True(t, IsKind(err, MissingCacheLocation))
}
