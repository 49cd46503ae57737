package main

import (
	"context"
	"fmt"
	stdio "io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phil-mansfield/jetbake/io"
	"github.com/phil-mansfield/jetbake/journal"
)

// StatusReport describes the contents of a cache and the bakes which wrote
// it.
type StatusReport struct {
	Cache        string         `yaml:"cache"`
	CacheError   string         `yaml:"cache_error,omitempty"`
	FrameEnd     int            `yaml:"frame_end"`
	Complete     bool           `yaml:"complete"`
	FirstMissing int            `yaml:"first_missing"` // -1 when complete
	Corrupt      map[int]string `yaml:"corrupt,omitempty"`
	Meshes       int            `yaml:"meshes"`
	Runs         []journal.Run  `yaml:"runs,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	runs := 0
	cmd := &cobra.Command{
		Use:   "status <config>",
		Short: "Report the state of a bake's cache",
		Long: `Report which frames of a bake are in its cache, which cache entries are
corrupt, and, if a journal is configured, the history of bakes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := readStatus(cmd.Context(), s.config, runs)
			if err != nil {
				return &ExitError{Code: ExitFailed, Message: "Failed", Err: err}
			}
			if err := writeStatus(cmd.OutOrStdout(), opts.Format, report); err != nil {
				return err
			}
			if report.CacheError != "" {
				return &ExitError{Code: ExitWarning, Message: report.CacheError}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 10, "number of journal runs to show, 0 for all")
	return cmd
}

func readStatus(
	ctx context.Context, w *io.BakeWrapper, runs int,
) (*StatusReport, error) {
	con := &w.Bake
	cache := io.NewCache(con.Cache, con.Codec())
	report := &StatusReport{
		Cache: con.Cache, FrameEnd: con.FrameEnd, FirstMissing: -1,
	}

	if err := cache.Check(); err != nil {
		report.CacheError = err.Error()
	} else {
		scan := cache.Scan(con.FrameEnd + 1)
		report.Complete = scan.Complete()
		report.FirstMissing = scan.FirstMissing
		if len(scan.Corrupt) > 0 {
			report.Corrupt = map[int]string{}
			for frame, err := range scan.Corrupt {
				report.Corrupt[frame] = err.Error()
			}
		}
		for i := 0; i <= con.FrameEnd; i++ {
			if cache.CheckMesh(i) == nil {
				report.Meshes++
			}
		}
	}

	if con.ValidJournal() {
		j, err := journal.Open(con.Journal)
		if err != nil {
			return nil, err
		}
		defer j.Close()
		if report.Runs, err = j.Runs(ctx, runs); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func writeStatus(out stdio.Writer, format string, r *StatusReport) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(out, "Cache: %s\n", r.Cache)
	if r.CacheError != "" {
		fmt.Fprintf(out, "Cache error: %s\n", r.CacheError)
	} else if r.Complete {
		fmt.Fprintf(out, "Frames 0 to %d are baked.\n", r.FrameEnd)
	} else if r.FirstMissing == 0 {
		fmt.Fprintf(out, "No frames are baked.\n")
	} else {
		fmt.Fprintf(out, "Frames 0 to %d are baked, resuming from %d.\n",
			r.FirstMissing-1, r.FirstMissing)
	}

	frames := make([]int, 0, len(r.Corrupt))
	for frame := range r.Corrupt {
		frames = append(frames, frame)
	}
	sort.Ints(frames)
	for _, frame := range frames {
		fmt.Fprintf(out, "Corrupt frame %d: %s\n", frame, r.Corrupt[frame])
	}
	if r.CacheError == "" {
		fmt.Fprintf(out, "Meshes: %d\n", r.Meshes)
	}

	for _, run := range r.Runs {
		fmt.Fprintf(out, "Run %s %s: frames %d to %d, %d simulated, %s\n",
			run.ID, run.StartedAt.Format("2006-01-02 15:04:05"),
			run.StartFrame, run.FrameEnd, run.Simulated, run.Status)
	}
	return nil
}

