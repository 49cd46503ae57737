package bake

import (
	"log/slog"
	"time"
)

// Status is the outcome of a bake as reported to the user.
type Status int

const (
	Finished Status = iota
	Warning
	Failed
)

func (s Status) String() string {
	switch s {
	case Finished:
		return "Finished"
	case Warning:
		return "Warning"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// State is the position of a Driver in the bake's life cycle.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateSimulatingFresh
	StateSimulatingResumed
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateSimulatingFresh:
		return "SimulatingFresh"
	case StateSimulatingResumed:
		return "SimulatingResumed"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

// Result summarizes a bake.
type Result struct {
	Status Status
	Reason string
	Err    error // nil when Status is Finished
	State  State

	// StartFrame is the first frame simulated by this run, or -1 if no
	// frame needed simulating.
	StartFrame int
	// Simulated is the number of frames written by this run.
	Simulated int
}

// RunInfo describes a bake which is about to simulate.
type RunInfo struct {
	Cache      string
	StartFrame int
	FrameEnd   int
	Resumed    bool
}

// FrameRecord describes a frame which has been written to the cache.
type FrameRecord struct {
	Frame     int
	Particles int
	Triangles int
	Elapsed   time.Duration
}

// Observer is notified as a bake progresses.
type Observer interface {
	RunStarted(info RunInfo)
	FrameWritten(rec FrameRecord)
	RunFinished(res Result)
}

// Observers forwards every notification to each of its members.
type Observers []Observer

func (obs Observers) RunStarted(info RunInfo) {
	for _, o := range obs {
		o.RunStarted(info)
	}
}

func (obs Observers) FrameWritten(rec FrameRecord) {
	for _, o := range obs {
		o.FrameWritten(rec)
	}
}

func (obs Observers) RunFinished(res Result) {
	for _, o := range obs {
		o.RunFinished(res)
	}
}

// LogObserver writes one log record per notification.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) RunStarted(info RunInfo) {
	o.Logger.Info("bake started",
		"cache", info.Cache, "start", info.StartFrame,
		"end", info.FrameEnd, "resumed", info.Resumed)
}

func (o *LogObserver) FrameWritten(rec FrameRecord) {
	o.Logger.Info("frame written",
		"frame", rec.Frame, "particles", rec.Particles,
		"triangles", rec.Triangles, "elapsed", rec.Elapsed)
}

func (o *LogObserver) RunFinished(res Result) {
	if res.Err != nil {
		o.Logger.Warn("bake stopped",
			"status", res.Status, "state", res.State,
			"simulated", res.Simulated, "err", res.Err)
		return
	}
	o.Logger.Info("bake finished",
		"status", res.Status, "simulated", res.Simulated, "reason", res.Reason)
}
