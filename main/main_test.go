package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/phil-mansfield/jetbake/io"
)

// run executes the root command with args and returns its output.
func run(args ...string) (string, error) {
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a small bake configuration for cache and returns its
// path.
func writeConfig(t *testing.T, cache, extra string) string {
	dir := t.TempDir()
	text := fmt.Sprintf(`[Bake]
Cache = %s
Resolution = 4
FrameEnd = 2
DomainMaxX = 1
DomainMaxY = 1
DomainMaxZ = 1
LogFile = %s
Journal = %s
%s`, cache, filepath.Join(dir, "log.out"), filepath.Join(dir, "bake.db"), extra)

	path := filepath.Join(dir, "bake.cfg")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"bake", "mesh", "status", "example-config"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestExampleConfig(t *testing.T) {
	out, err := run("example-config")
	require.NoError(t, err)
	assert.Equal(t, io.ExampleBakeFile+"\n", out)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run("example-config", "--format", "json")
	assert.Error(t, err)
	assert.Equal(t, ExitFailed, GetExitCode(err))
}

func TestBakeAndStatus(t *testing.T) {
	cache := t.TempDir()
	cfg := writeConfig(t, cache, "")

	out, err := run("bake", cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Finished"), out)
	for i := 0; i <= 2; i++ {
		assert.FileExists(t, filepath.Join(cache, fmt.Sprintf("particles_%d.bin", i)))
		assert.FileExists(t, filepath.Join(cache, fmt.Sprintf("mesh_%d.bin", i)))
	}

	out, err = run("bake", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "already complete")

	require.NoError(t, os.Remove(filepath.Join(cache, "particles_1.bin")))
	out, err = run("status", cfg, "--format", "yaml")
	require.NoError(t, err)

	report := &StatusReport{}
	require.NoError(t, yaml.Unmarshal([]byte(out), report))
	assert.Equal(t, cache, report.Cache)
	assert.False(t, report.Complete)
	assert.Equal(t, 1, report.FirstMissing)
	assert.Equal(t, 3, report.Meshes)
	require.Equal(t, 2, len(report.Runs))
	assert.Equal(t, "Finished", report.Runs[0].Status)
	assert.Equal(t, 0, report.Runs[0].Simulated)
	assert.Equal(t, 3, report.Runs[1].Simulated)

	out, err = run("status", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "resuming from 1")
}

func TestMissingCache(t *testing.T) {
	cfg := writeConfig(t, filepath.Join(t.TempDir(), "missing"), "")

	out, err := run("bake", cfg)
	assert.Equal(t, ExitWarning, GetExitCode(err))
	assert.True(t, strings.HasPrefix(out, "Warning"), out)

	_, err = run("status", cfg)
	assert.Equal(t, ExitWarning, GetExitCode(err))

	_, err = run("mesh", cfg)
	assert.Equal(t, ExitWarning, GetExitCode(err))
}

func TestMeshCommand(t *testing.T) {
	cache := t.TempDir()
	cfg := writeConfig(t, cache, "CreateMesh = false\n")

	_, err := run("bake", cfg)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(cache, "mesh_0.bin"))

	out, err := run("mesh", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Rebuilt 3 meshes.\n", out)
	assert.FileExists(t, filepath.Join(cache, "mesh_2.bin"))
}

func TestBadConfig(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "FPS = -1\n")
	_, err := run("bake", cfg)
	assert.Equal(t, ExitFailed, GetExitCode(err))
}
