package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phil-mansfield/jetbake/bake"
	"github.com/phil-mansfield/jetbake/io"
	"github.com/phil-mansfield/jetbake/journal"
)

// RootOptions are the flags shared by every command.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "yaml"
}

// ValidFormats are the accepted values of --format.
var ValidFormats = []string{"text", "yaml"}

// NewRootCommand creates the jetbake command and its subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "jetbake",
		Short: "Resumable fluid simulation bakes",
		Long: `jetbake simulates a fluid frame by frame and writes every frame to a
cache directory. An interrupted bake resumes from the first missing frame.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return &ExitError{
				Code: ExitFailed,
				Message: fmt.Sprintf(
					"Invalid format '%s', must be one of %v.",
					opts.Format, ValidFormats,
				),
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(
		&opts.Verbose, "verbose", "v", false, "log debugging output",
	)
	cmd.PersistentFlags().StringVar(
		&opts.Format, "format", "text", "output format (text|yaml)",
	)

	cmd.AddCommand(NewBakeCommand(opts))
	cmd.AddCommand(NewMeshCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewExampleConfigCommand())

	return cmd
}

// session is the state shared by commands which read a configuration file.
type session struct {
	config *io.BakeWrapper
	files  *FileGroup
	logger *slog.Logger
}

func openSession(
	cmd *cobra.Command, opts *RootOptions, path string,
) (*session, error) {
	w, err := io.ReadBakeConfig(path)
	if err != nil {
		return nil, &ExitError{
			Code: ExitFailed, Message: "Could not read configuration", Err: err,
		}
	}
	fg, logger, err := openFileGroup(&w.Bake, cmd.ErrOrStderr(), opts.Verbose)
	if err != nil {
		return nil, &ExitError{
			Code: ExitFailed, Message: "Could not open output files", Err: err,
		}
	}
	return &session{config: w, files: fg, logger: logger}, nil
}

func (s *session) Close() {
	if err := s.files.Close(); err != nil {
		s.logger.Error("could not close output files", "err", err)
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// NewBakeCommand creates the bake command.
func NewBakeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bake <config>",
		Short: "Run or resume a bake",
		Long: `Run the bake described by a configuration file. Frames already in the
cache are kept and the simulation resumes from the first missing frame.
Emitter velocities, one-shot flags, and viscosity are re-read from the
configuration file whenever it changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBake(cmd, opts, args[0])
		},
	}
}

func runBake(cmd *cobra.Command, opts *RootOptions, path string) error {
	s, err := openSession(cmd, opts, path)
	if err != nil {
		return err
	}
	defer s.Close()

	d := bake.NewDriver(s.config, s.logger)
	lc, err := io.NewLiveConfig(path, s.config)
	if err != nil {
		return &ExitError{Code: ExitFailed, Message: "Failed", Err: err}
	}
	d.Live = &bake.LiveConfig{Config: lc}

	obs := bake.Observers{&bake.LogObserver{Logger: s.logger}}
	if s.config.Bake.ValidJournal() {
		j, err := journal.Open(s.config.Bake.Journal)
		if err != nil {
			s.logger.Warn("bake journal disabled", "err", err)
		} else {
			defer j.Close()
			obs = append(obs, journal.NewRecorder(j, d.Cache.Dir, s.logger))
		}
	}
	d.Observer = obs

	ctx, stop := signalContext(cmd)
	defer stop()
	res := d.Bake(ctx)

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Status, res.Reason)
	return resultError(res)
}

// NewMeshCommand creates the mesh command.
func NewMeshCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mesh <config>",
		Short: "Rebuild missing surface meshes",
		Long: `Build the surface mesh of every cached frame whose particle file is
valid but whose mesh file is missing or corrupt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMesh(cmd, opts, args[0])
		},
	}
}

func runMesh(cmd *cobra.Command, opts *RootOptions, path string) error {
	s, err := openSession(cmd, opts, path)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	d := bake.NewDriver(s.config, s.logger)
	rebuilt, err := d.RebuildMeshes(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %d meshes.\n", len(rebuilt))
	if bake.IsKind(err, bake.MissingCacheLocation) {
		return &ExitError{Code: ExitWarning, Message: "Warning", Err: err}
	} else if err != nil {
		return &ExitError{Code: ExitFailed, Message: "Failed", Err: err}
	}
	return nil
}

// NewExampleConfigCommand creates the example-config command.
func NewExampleConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "example-config",
		Short: "Print an annotated configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), io.ExampleBakeFile)
			return err
		},
	}
}
