/*package journal keeps a history of bakes in an sqlite database: one row for
every run and one row for every frame a run wrote. It is written to by a
Recorder attached to a bake and read by the status command.
*/
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	cache       TEXT NOT NULL,
	start_frame INTEGER NOT NULL,
	frame_end   INTEGER NOT NULL,
	resumed     INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	status      TEXT,
	reason      TEXT,
	simulated   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS frames (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	frame      INTEGER NOT NULL,
	particles  INTEGER NOT NULL,
	triangles  INTEGER NOT NULL,
	elapsed_us INTEGER NOT NULL,
	PRIMARY KEY (run_id, frame)
);
`

// Journal is an open bake history database.
type Journal struct {
	db *sql.DB
}

// Run is one bake recorded in the journal. FinishedAt is zero and Status is
// empty for runs which never reported an outcome.
type Run struct {
	ID         string    `yaml:"id"`
	Cache      string    `yaml:"cache"`
	StartFrame int       `yaml:"start_frame"`
	FrameEnd   int       `yaml:"frame_end"`
	Resumed    bool      `yaml:"resumed"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at,omitempty"`
	Status     string    `yaml:"status"`
	Reason     string    `yaml:"reason,omitempty"`
	Simulated  int       `yaml:"simulated"`
}

// Frame is one frame written by a run.
type Frame struct {
	Frame     int           `yaml:"frame"`
	Particles int           `yaml:"particles"`
	Triangles int           `yaml:"triangles"`
	Elapsed   time.Duration `yaml:"elapsed"`
}

// Open opens the journal at path, creating it if needed.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("No journal path was specified.")
	}
	dsn := path + "?_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) startRun(ctx context.Context, run *Run) error {
	_, err := j.db.ExecContext(ctx, `
INSERT INTO runs (id, cache, start_frame, frame_end, resumed, started_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Cache, run.StartFrame, run.FrameEnd,
		run.Resumed, run.StartedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

func (j *Journal) addFrame(ctx context.Context, runID string, f Frame) error {
	_, err := j.db.ExecContext(ctx, `
INSERT OR REPLACE INTO frames (run_id, frame, particles, triangles, elapsed_us)
VALUES (?, ?, ?, ?, ?)`,
		runID, f.Frame, f.Particles, f.Triangles, f.Elapsed.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("record frame %d of run %s: %w", f.Frame, runID, err)
	}
	return nil
}

func (j *Journal) finishRun(ctx context.Context, run *Run) error {
	_, err := j.db.ExecContext(ctx, `
UPDATE runs SET finished_at = ?, status = ?, reason = ?, simulated = ?
WHERE id = ?`,
		run.FinishedAt.UnixMicro(), run.Status, run.Reason, run.Simulated,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	return nil
}

// Runs returns up to limit runs, newest first. A non-positive limit returns
// every run.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, cache, start_frame, frame_end, resumed, started_at,
	finished_at, status, reason, simulated
FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run            Run
			started        int64
			finished       sql.NullInt64
			status, reason sql.NullString
		)
		if err := rows.Scan(
			&run.ID, &run.Cache, &run.StartFrame, &run.FrameEnd,
			&run.Resumed, &started, &finished, &status, &reason,
			&run.Simulated,
		); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		run.StartedAt = time.UnixMicro(started).UTC()
		if finished.Valid {
			run.FinishedAt = time.UnixMicro(finished.Int64).UTC()
		}
		run.Status, run.Reason = status.String, reason.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Frames returns the frames written by a run in frame order.
func (j *Journal) Frames(ctx context.Context, runID string) ([]Frame, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT frame, particles, triangles, elapsed_us
FROM frames WHERE run_id = ? ORDER BY frame`, runID)
	if err != nil {
		return nil, fmt.Errorf("list frames of run %s: %w", runID, err)
	}
	defer rows.Close()

	frames := []Frame{}
	for rows.Next() {
		var (
			f  Frame
			us int64
		)
		if err := rows.Scan(&f.Frame, &f.Particles, &f.Triangles, &us); err != nil {
			return nil, fmt.Errorf("list frames of run %s: %w", runID, err)
		}
		f.Elapsed = time.Duration(us) * time.Microsecond
		frames = append(frames, f)
	}
	return frames, rows.Err()
}
