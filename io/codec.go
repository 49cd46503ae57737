/*package io reads and writes the bake cache and the bake configuration.

Particle files come in two layouts. The tagged layout, which is written by
default, is as follows:

    |-- 1 --||-- 2 --||-- ... 3 ... --|

    1 - (uint32) Size in bytes of a single particle record: 24 or 48.
    2 - (uint32) Number of particles.
    3 - Contiguous block of particle records.

The untagged layout written by older bakes is the same without block 1, so
the record size must be supplied by the reader. A Basic record is a position
followed by a velocity. An Extended record is a position, velocity, force, and
color. Every component is a little endian float32.

Mesh files are a uint32 point count, that many [3]float32 points, a uint32
triangle count, and that many [3]uint32 triangles.
*/
package io

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/phil-mansfield/jetbake"
	"github.com/phil-mansfield/jetbake/geom"
)

var (
	// ErrCorrupt is wrapped by every error caused by a cache file whose
	// contents don't match its header.
	ErrCorrupt = errors.New("corrupt cache entry")
	// ErrPersist is wrapped by every error caused by a failed cache write.
	ErrPersist = errors.New("cache entry could not be persisted")
)

var end = binary.LittleEndian

// Format is the set of per-particle fields stored in a particle file.
type Format int

const (
	Basic Format = iota
	Extended
)

type basicRecord struct {
	X, V geom.Vec
}

type extendedRecord struct {
	X, V, F geom.Vec
	C       jetbake.RGB
}

// RecordSize returns the number of bytes used by one particle.
func (f Format) RecordSize() int {
	switch f {
	case Basic:
		return 24
	case Extended:
		return 48
	}
	panic(fmt.Sprintf("Unrecognized particle format %d.", int(f)))
}

func (f Format) String() string {
	switch f {
	case Basic:
		return "Basic"
	case Extended:
		return "Extended"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat returns the Format with the given name.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "Basic":
		return Basic, nil
	case "Extended":
		return Extended, nil
	}
	return Basic, fmt.Errorf("Unrecognized particle format '%s'.", name)
}

func formatOfRecordSize(size uint32) (Format, bool) {
	switch size {
	case 24:
		return Basic, true
	case 48:
		return Extended, true
	}
	return Basic, false
}

// Codec describes how particle files are laid out.
type Codec struct {
	Format Format
	Tagged bool
}

// EncodeParticles returns the contents of a particle file for snap.
func (c Codec) EncodeParticles(snap *jetbake.ParticleSnapshot) []byte {
	if err := snap.Check(); err != nil {
		panic(err.Error())
	}

	n := snap.Count()
	buf := &bytes.Buffer{}
	buf.Grow(8 + n*c.Format.RecordSize())
	if c.Tagged {
		binary.Write(buf, end, uint32(c.Format.RecordSize()))
	}
	binary.Write(buf, end, uint32(n))

	switch c.Format {
	case Basic:
		recs := make([]basicRecord, n)
		for i := range recs {
			recs[i] = basicRecord{snap.Positions[i], snap.Velocities[i]}
		}
		binary.Write(buf, end, recs)
	case Extended:
		recs := make([]extendedRecord, n)
		for i := range recs {
			recs[i].X, recs[i].V = snap.Positions[i], snap.Velocities[i]
			if snap.Forces != nil {
				recs[i].F = snap.Forces[i]
			}
			if snap.Colors != nil {
				recs[i].C = snap.Colors[i]
			}
		}
		binary.Write(buf, end, recs)
	}

	return buf.Bytes()
}

// DecodeParticles reads the contents of a particle file. Tagged codecs take
// the format from the file and ignore c.Format.
func (c Codec) DecodeParticles(
	data []byte,
) (*jetbake.ParticleSnapshot, Format, error) {
	format := c.Format
	if c.Tagged {
		if len(data) < 4 {
			return nil, format, fmt.Errorf(
				"%w: file has %d bytes, too few for a record size tag.",
				ErrCorrupt, len(data),
			)
		}
		var ok bool
		size := end.Uint32(data)
		if format, ok = formatOfRecordSize(size); !ok {
			return nil, format, fmt.Errorf(
				"%w: unrecognized record size %d.", ErrCorrupt, size,
			)
		}
		data = data[4:]
	}

	if len(data) < 4 {
		return nil, format, fmt.Errorf(
			"%w: file has %d bytes, too few for a particle count.",
			ErrCorrupt, len(data),
		)
	}
	n := int(end.Uint32(data))
	if expected := 4 + n*format.RecordSize(); expected != len(data) {
		return nil, format, fmt.Errorf(
			"%w: %d %s particles need %d bytes, but %d were found.",
			ErrCorrupt, n, format, expected, len(data),
		)
	}

	r := bytes.NewReader(data[4:])
	snap := &jetbake.ParticleSnapshot{
		Positions:  make([]geom.Vec, n),
		Velocities: make([]geom.Vec, n),
	}

	switch format {
	case Basic:
		recs := make([]basicRecord, n)
		if err := binary.Read(r, end, recs); err != nil {
			return nil, format, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		for i := range recs {
			snap.Positions[i], snap.Velocities[i] = recs[i].X, recs[i].V
		}
	case Extended:
		recs := make([]extendedRecord, n)
		if err := binary.Read(r, end, recs); err != nil {
			return nil, format, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		snap.Forces = make([]geom.Vec, n)
		snap.Colors = make([]jetbake.RGB, n)
		for i := range recs {
			snap.Positions[i], snap.Velocities[i] = recs[i].X, recs[i].V
			snap.Forces[i], snap.Colors[i] = recs[i].F, recs[i].C
		}
	}

	return snap, format, nil
}

// WriteParticles atomically writes snap to path.
func (c Codec) WriteParticles(path string, snap *jetbake.ParticleSnapshot) error {
	return writeAtomic(path, c.EncodeParticles(snap))
}

// ReadParticles reads the particle file at path.
func (c Codec) ReadParticles(
	path string,
) (*jetbake.ParticleSnapshot, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, c.Format, err
	}
	snap, format, err := c.DecodeParticles(data)
	if err != nil {
		return nil, format, fmt.Errorf("%s: %w", path, err)
	}
	return snap, format, nil
}

// ReadParticles reads a tagged particle file. The format is read from the
// file.
func ReadParticles(path string) (*jetbake.ParticleSnapshot, Format, error) {
	return Codec{Tagged: true}.ReadParticles(path)
}

// ReadParticlesAs reads an untagged particle file written with the given
// format.
func ReadParticlesAs(
	path string, format Format,
) (*jetbake.ParticleSnapshot, error) {
	snap, _, err := Codec{Format: format}.ReadParticles(path)
	return snap, err
}

// WriteParticles atomically writes a tagged particle file.
func WriteParticles(
	path string, snap *jetbake.ParticleSnapshot, format Format,
) error {
	return Codec{Format: format, Tagged: true}.WriteParticles(path, snap)
}

// EncodeMesh returns the contents of a mesh file for m.
func EncodeMesh(m *jetbake.MeshSnapshot) []byte {
	buf := &bytes.Buffer{}
	buf.Grow(8 + 12*len(m.Points) + 12*len(m.Triangles))
	binary.Write(buf, end, uint32(len(m.Points)))
	binary.Write(buf, end, m.Points)
	binary.Write(buf, end, uint32(len(m.Triangles)))
	binary.Write(buf, end, m.Triangles)
	return buf.Bytes()
}

// DecodeMesh reads the contents of a mesh file.
func DecodeMesh(data []byte) (*jetbake.MeshSnapshot, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf(
			"%w: file has %d bytes, too few for a point count.",
			ErrCorrupt, len(data),
		)
	}
	np := int(end.Uint32(data))
	triStart := 4 + 12*np
	if len(data) < triStart+4 {
		return nil, fmt.Errorf(
			"%w: %d points need more than %d bytes, but %d were found.",
			ErrCorrupt, np, triStart+4, len(data),
		)
	}
	nt := int(end.Uint32(data[triStart:]))
	if expected := triStart + 4 + 12*nt; expected != len(data) {
		return nil, fmt.Errorf(
			"%w: %d points and %d triangles need %d bytes, but %d were found.",
			ErrCorrupt, np, nt, expected, len(data),
		)
	}

	m := &jetbake.MeshSnapshot{
		Points:    make([]geom.Vec, np),
		Triangles: make([][3]uint32, nt),
	}
	if err := binary.Read(bytes.NewReader(data[4:triStart]), end, m.Points); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := binary.Read(bytes.NewReader(data[triStart+4:]), end, m.Triangles); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := m.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

// WriteMesh atomically writes m to path.
func WriteMesh(path string, m *jetbake.MeshSnapshot) error {
	if err := m.Check(); err != nil {
		panic(err.Error())
	}
	return writeAtomic(path, EncodeMesh(m))
}

// ReadMesh reads the mesh file at path.
func ReadMesh(path string) (*jetbake.MeshSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := DecodeMesh(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
