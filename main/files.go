package main

import (
	stdio "io"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/phil-mansfield/jetbake/io"
)

// FileGroup owns the log and profile files of a command.
type FileGroup struct {
	log, prof *os.File
}

// openFileGroup creates the logger described by con, appending to LogFile if
// it is set and writing to stderr otherwise, and starts a CPU profile if
// ProfileFile is set.
func openFileGroup(
	con *io.BakeConfig, stderr stdio.Writer, verbose bool,
) (*FileGroup, *slog.Logger, error) {
	fg := &FileGroup{}
	w := stderr

	if con.ValidLogFile() {
		f, err := os.OpenFile(
			con.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644,
		)
		if err != nil {
			return nil, nil, err
		}
		fg.log, w = f, f
	}

	if con.ValidProfileFile() {
		f, err := os.Create(con.ProfileFile)
		if err != nil {
			fg.Close()
			return nil, nil, err
		}
		fg.prof = f
		if err := pprof.StartCPUProfile(f); err != nil {
			fg.Close()
			return nil, nil, err
		}
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	return fg, logger, nil
}

// Close stops the profile and closes every open file.
func (fg *FileGroup) Close() error {
	var err error
	if fg.prof != nil {
		pprof.StopCPUProfile()
		err = fg.prof.Close()
		fg.prof = nil
	}
	if fg.log != nil {
		if lerr := fg.log.Close(); err == nil {
			err = lerr
		}
		fg.log = nil
	}
	return err
}
