package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phil-mansfield/jetbake/bake"
)

// Recorder writes a bake's progress to a journal. A Recorder follows a single
// bake. Journal failures never stop the bake: they are logged and the first
// one is kept for Err.
type Recorder struct {
	Journal *Journal
	// Cache is recorded for runs which finish without starting, such as a
	// bake of an already complete cache.
	Cache  string
	Logger *slog.Logger

	mu  sync.Mutex
	run *Run
	err error
}

var _ bake.Observer = (*Recorder)(nil)

// NewRecorder returns a Recorder writing to j.
func NewRecorder(j *Journal, cache string, logger *slog.Logger) *Recorder {
	return &Recorder{Journal: j, Cache: cache, Logger: logger}
}

// RunID returns the ID of the recorded run, or "" if no run has been
// recorded yet.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return ""
	}
	return r.run.ID
}

// Err returns the first error encountered while writing to the journal.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) check(err error) {
	if err == nil {
		return
	}
	if r.Logger != nil {
		r.Logger.Warn("could not update bake journal", "err", err)
	}
	if r.err == nil {
		r.err = err
	}
}

func (r *Recorder) start(info bake.RunInfo) {
	r.run = &Run{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Cache:      info.Cache,
		StartFrame: info.StartFrame,
		FrameEnd:   info.FrameEnd,
		Resumed:    info.Resumed,
		StartedAt:  time.Now().UTC(),
	}
	r.check(r.Journal.startRun(context.Background(), r.run))
}

func (r *Recorder) RunStarted(info bake.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start(info)
}

func (r *Recorder) FrameWritten(rec bake.FrameRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return
	}
	r.check(r.Journal.addFrame(context.Background(), r.run.ID, Frame{
		Frame: rec.Frame, Particles: rec.Particles,
		Triangles: rec.Triangles, Elapsed: rec.Elapsed,
	}))
}

func (r *Recorder) RunFinished(res bake.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		r.start(bake.RunInfo{
			Cache: r.Cache, StartFrame: res.StartFrame, FrameEnd: -1,
		})
	}

	r.run.FinishedAt = time.Now().UTC()
	r.run.Status = res.Status.String()
	r.run.Reason = res.Reason
	if res.Err != nil {
		r.run.Reason = res.Err.Error()
	}
	r.run.Simulated = res.Simulated
	r.check(r.Journal.finishRun(context.Background(), r.run))
}
