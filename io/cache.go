package io

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phil-mansfield/jetbake"
)

// entryKinds are the name prefixes and suffixes of the per-frame files of a
// cache.
var entryKinds = [][2]string{
	{"particles_", ".bin"}, {"mesh_", ".bin"}, {"emitters_", ".yaml"},
}

// Cache is a directory of per-frame particle and mesh files. A valid
// particle file for a frame is the only evidence that the frame was baked.
type Cache struct {
	Dir   string
	Codec Codec
}

// NewCache returns a Cache over dir.
func NewCache(dir string, codec Codec) *Cache {
	return &Cache{Dir: dir, Codec: codec}
}

// Check returns an error if the cache directory hasn't been set or doesn't
// exist.
func (c *Cache) Check() error {
	if c.Dir == "" {
		return fmt.Errorf("No cache directory was specified.")
	}
	info, err := os.Stat(c.Dir)
	if err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("Cache location %s is not a directory.", c.Dir)
	}
	return nil
}

// ParticlesPath returns the location of the particle file for a frame.
func (c *Cache) ParticlesPath(frame int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("particles_%d.bin", frame))
}

// MeshPath returns the location of the mesh file for a frame.
func (c *Cache) MeshPath(frame int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("mesh_%d.bin", frame))
}

// EmittersPath returns the location of the emitter history file for a frame.
func (c *Cache) EmittersPath(frame int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("emitters_%d.yaml", frame))
}

func (c *Cache) WriteParticles(frame int, snap *jetbake.ParticleSnapshot) error {
	return c.Codec.WriteParticles(c.ParticlesPath(frame), snap)
}

func (c *Cache) ReadParticles(
	frame int,
) (*jetbake.ParticleSnapshot, Format, error) {
	return c.Codec.ReadParticles(c.ParticlesPath(frame))
}

func (c *Cache) WriteMesh(frame int, m *jetbake.MeshSnapshot) error {
	return WriteMesh(c.MeshPath(frame), m)
}

func (c *Cache) ReadMesh(frame int) (*jetbake.MeshSnapshot, error) {
	return ReadMesh(c.MeshPath(frame))
}

// WriteEmitters atomically writes the emitter histories of a frame.
func (c *Cache) WriteEmitters(
	frame int, states map[string]jetbake.EmitterState,
) error {
	data, err := yaml.Marshal(states)
	if err != nil {
		return err
	}
	return writeAtomic(c.EmittersPath(frame), data)
}

// ReadEmitters reads the emitter histories of a frame. A missing file gives
// an error wrapping fs.ErrNotExist.
func (c *Cache) ReadEmitters(
	frame int,
) (map[string]jetbake.EmitterState, error) {
	path := c.EmittersPath(frame)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	states := map[string]jetbake.EmitterState{}
	if err := yaml.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}
	return states, nil
}

// CheckParticles compares the header of a frame's particle file against the
// file's size without reading the particles. A missing file gives an error
// wrapping fs.ErrNotExist.
func (c *Cache) CheckParticles(frame int) error {
	path := c.ParticlesPath(frame)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	hd := make([]byte, 8)
	hdSize := 4
	if c.Codec.Tagged {
		hdSize = 8
	}
	if size < int64(hdSize) {
		return fmt.Errorf("%s: %w: file has only %d bytes.", path, ErrCorrupt, size)
	}
	if _, err := f.ReadAt(hd[:hdSize], 0); err != nil {
		return err
	}

	format, count := c.Codec.Format, end.Uint32(hd)
	if c.Codec.Tagged {
		var ok bool
		if format, ok = formatOfRecordSize(end.Uint32(hd)); !ok {
			return fmt.Errorf(
				"%s: %w: unrecognized record size %d.",
				path, ErrCorrupt, end.Uint32(hd),
			)
		}
		count = end.Uint32(hd[4:])
	}

	expected := int64(hdSize) + int64(count)*int64(format.RecordSize())
	if expected != size {
		return fmt.Errorf(
			"%s: %w: %d %s particles need %d bytes, but %d were found.",
			path, ErrCorrupt, count, format, expected, size,
		)
	}
	return nil
}

// CheckMesh compares the counts in a frame's mesh file against the file's
// size without reading the mesh.
func (c *Cache) CheckMesh(frame int) error {
	path := c.MeshPath(frame)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	buf := make([]byte, 4)
	if size < 4 {
		return fmt.Errorf("%s: %w: file has only %d bytes.", path, ErrCorrupt, size)
	} else if _, err := f.ReadAt(buf, 0); err != nil {
		return err
	}
	triStart := 4 + 12*int64(end.Uint32(buf))
	if size < triStart+4 {
		return fmt.Errorf(
			"%s: %w: file ends before its triangle count.", path, ErrCorrupt,
		)
	} else if _, err := f.ReadAt(buf, triStart); err != nil {
		return err
	}

	expected := triStart + 4 + 12*int64(end.Uint32(buf))
	if expected != size {
		return fmt.Errorf(
			"%s: %w: mesh needs %d bytes, but %d were found.",
			path, ErrCorrupt, expected, size,
		)
	}
	return nil
}

// Scan describes which frames of a cache have been baked.
type Scan struct {
	// FirstMissing is the first frame without a valid particle file, or -1
	// if every scanned frame has one.
	FirstMissing int
	// Corrupt holds the errors of particle files which exist but are
	// invalid, keyed by frame.
	Corrupt map[int]error
}

// Complete returns true if no scanned frame is missing.
func (s *Scan) Complete() bool { return s.FirstMissing < 0 }

// Scan checks the particle files of frames [0, frames) in order and stops
// at the first one which is missing or invalid.
func (c *Cache) Scan(frames int) *Scan {
	s := &Scan{FirstMissing: -1, Corrupt: map[int]error{}}
	for i := 0; i < frames; i++ {
		err := c.CheckParticles(i)
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			s.Corrupt[i] = err
		}
		s.FirstMissing = i
		break
	}
	return s
}

// entryFrame returns the frame of a per-frame cache file name.
func entryFrame(name string) (int, bool) {
	for _, kind := range entryKinds {
		prefix, suffix := kind[0], kind[1]
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		num := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		frame, err := strconv.Atoi(num)
		if err != nil || frame < 0 {
			return 0, false
		}
		return frame, true
	}
	return 0, false
}

// Invalidate removes every per-frame file of frames from and later.
func (c *Cache) Invalidate(from int) error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	for _, e := range entries {
		frame, ok := entryFrame(e.Name())
		if !ok || frame < from || e.IsDir() {
			continue
		}
		err := os.Remove(filepath.Join(c.Dir, e.Name()))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}
	return nil
}
