package io

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/geom"
)

func testSnapshot() *jetbake.ParticleSnapshot {
	return &jetbake.ParticleSnapshot{
		Positions:  []geom.Vec{{1, 2, 3}, {-1, 0.5, 4}},
		Velocities: []geom.Vec{{0.25, 0, -2}, {3, 1, 0}},
		Forces:     []geom.Vec{{0, -9.8, 0}, {0, -9.8, 0}},
		Colors:     []jetbake.RGB{{1, 0, 0}, {0, 0, 1}},
	}
}

func testMesh() *jetbake.MeshSnapshot {
	return &jetbake.MeshSnapshot{
		Points:    []geom.Vec{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Triangles: [][3]uint32{{0, 1, 2}},
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestGoldenLayouts(t *testing.T) {
	g := newGoldie(t)
	snap := testSnapshot()

	g.Assert(t, "particles_basic_tagged",
		Codec{Format: Basic, Tagged: true}.EncodeParticles(snap))
	g.Assert(t, "particles_extended_untagged",
		Codec{Format: Extended}.EncodeParticles(snap))
	g.Assert(t, "particles_empty_tagged",
		Codec{Format: Extended, Tagged: true}.EncodeParticles(
			&jetbake.ParticleSnapshot{},
		))
	g.Assert(t, "mesh", EncodeMesh(testMesh()))
}

func TestParticleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := testSnapshot()

	table := []struct {
		codec Codec
	}{
		{Codec{Basic, false}},
		{Codec{Basic, true}},
		{Codec{Extended, false}},
		{Codec{Extended, true}},
	}

	for i, test := range table {
		path := filepath.Join(dir, "particles.bin")
		require.NoError(t, test.codec.WriteParticles(path, snap), "%d)", i)

		out, format, err := test.codec.ReadParticles(path)
		require.NoError(t, err, "%d)", i)
		assert.Equal(t, test.codec.Format, format, "%d)", i)
		assert.Equal(t, snap.Positions, out.Positions, "%d)", i)
		assert.Equal(t, snap.Velocities, out.Velocities, "%d)", i)

		if test.codec.Format == Extended {
			assert.Equal(t, snap.Forces, out.Forces, "%d)", i)
			assert.Equal(t, snap.Colors, out.Colors, "%d)", i)
		} else {
			assert.Nil(t, out.Forces, "%d)", i)
			assert.Nil(t, out.Colors, "%d)", i)
		}

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, test.codec.EncodeParticles(out), data, "%d)", i)
	}
}

func TestEmptyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "particles_0.bin")
	require.NoError(t, WriteParticles(path, &jetbake.ParticleSnapshot{}, Extended))

	snap, format, err := ReadParticles(path)
	require.NoError(t, err)
	assert.Equal(t, Extended, format)
	assert.Equal(t, 0, snap.Count())

	mpath := filepath.Join(t.TempDir(), "mesh_0.bin")
	require.NoError(t, WriteMesh(mpath, &jetbake.MeshSnapshot{}))
	m, err := ReadMesh(mpath)
	require.NoError(t, err)
	assert.Equal(t, 0, len(m.Points))
	assert.Equal(t, 0, len(m.Triangles))
}

func TestExtendedZeroFill(t *testing.T) {
	snap := testSnapshot()
	snap.Forces, snap.Colors = nil, nil

	c := Codec{Format: Extended, Tagged: true}
	out, _, err := c.DecodeParticles(c.EncodeParticles(snap))
	require.NoError(t, err)
	assert.Equal(t, []geom.Vec{{}, {}}, out.Forces)
	assert.Equal(t, []jetbake.RGB{{}, {}}, out.Colors)
}

func TestReadParticlesAs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "particles_3.bin")
	require.NoError(t, os.WriteFile(path,
		Codec{Format: Extended}.EncodeParticles(testSnapshot()), 0644))

	snap, err := ReadParticlesAs(path, Extended)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot().Colors, snap.Colors)

	_, err = ReadParticlesAs(path, Basic)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCorruptParticles(t *testing.T) {
	c := Codec{Format: Extended, Tagged: true}
	good := c.EncodeParticles(testSnapshot())

	table := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"tag only", good[:4]},
		{"truncated", good[:len(good)-1]},
		{"extended", append(append([]byte{}, good...), 0)},
		{"bad tag", append([]byte{7, 0, 0, 0}, good[4:]...)},
	}

	for _, test := range table {
		_, _, err := c.DecodeParticles(test.data)
		assert.ErrorIs(t, err, ErrCorrupt, test.name)
	}
}

func TestCorruptMesh(t *testing.T) {
	good := EncodeMesh(testMesh())

	bad := testMesh()
	bad.Triangles[0][2] = 3
	badIdx := EncodeMesh(bad)

	for i, data := range [][]byte{
		{}, good[:10], good[:len(good)-4], append(good, 1), badIdx,
	} {
		_, err := DecodeMesh(data)
		assert.ErrorIs(t, err, ErrCorrupt, "%d)", i)
	}

	m, err := DecodeMesh(good)
	require.NoError(t, err)
	assert.Equal(t, testMesh(), m)
}

func TestMissingFile(t *testing.T) {
	_, _, err := ReadParticles(filepath.Join(t.TempDir(), "nope.bin"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, ErrCorrupt))
}

func TestWriteAtomicFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "particles_0.bin")
	err := WriteParticles(path, testSnapshot(), Basic)
	assert.ErrorIs(t, err, ErrPersist)
}

func TestWriteAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh_0.bin")
	require.NoError(t, WriteMesh(path, testMesh()))
	require.NoError(t, WriteMesh(path, testMesh()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 1, len(entries))
	assert.Equal(t, "mesh_0.bin", entries[0].Name())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Basic")
	require.NoError(t, err)
	assert.Equal(t, Basic, f)
	assert.Equal(t, "Extended", Extended.String())
	assert.Equal(t, 48, Extended.RecordSize())

	_, err = ParseFormat("Compact")
	assert.Error(t, err)
}
