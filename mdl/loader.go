// SPDX-License-Identifier: GPL-2.0-or-later

// Package mdl decodes the header of studio models.
package mdl

import (
	"bytes"
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"govbsp/model"
)

var headerSize = binary.Size(header{})

func init() {
	model.Register(model.KindStudio, Magic, func(name string, data []byte) (model.Asset, error) {
		return Load(name, data)
	})
}

type Model struct {
	name          string
	mins, maxs    mgl32.Vec3
	flags         int
	Version       int
	Checksum      int32
	InternalName  string
	Mass          float32
	Contents      int32
	NumBones      int
	NumTextures   int
	NumBodyParts  int
	NumSequences  int
	IncludeModels int
	SurfaceProp   string
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) Mins() mgl32.Vec3 {
	return m.mins
}

func (m *Model) Maxs() mgl32.Vec3 {
	return m.maxs
}

func (m *Model) Flags() int {
	return m.flags
}

// Virtual reports whether the model pulls animation from include models.
func (m *Model) Virtual() bool {
	return m.IncludeModels > 0
}

func cstring(b []byte) string {
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return string(b)
}

// Load decodes the studio header. The model body is not decoded.
func Load(name string, data []byte) (*Model, error) {
	if len(data) < headerSize {
		return nil, errors.Errorf("%s: %d bytes is shorter than the studio header", name, len(data))
	}
	var h header
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, name)
	}
	if h.ID != Magic {
		return nil, errors.Errorf("%s: not a studio model", name)
	}
	if h.Version < MinVersion || h.Version > MaxVersion {
		return nil, errors.Errorf("%s has wrong version number (%d should be %d..%d)", name, h.Version, MinVersion, MaxVersion)
	}
	if int(h.Length) != len(data) {
		return nil, errors.Errorf("%s: header declares %d bytes, file has %d", name, h.Length, len(data))
	}
	if h.NumIncludeModels < 0 {
		return nil, errors.Errorf("%s: %d include models", name, h.NumIncludeModels)
	}
	m := &Model{
		name:          name,
		mins:          mgl32.Vec3(h.HullMin),
		maxs:          mgl32.Vec3(h.HullMax),
		flags:         int(h.Flags),
		Version:       int(h.Version),
		Checksum:      h.Checksum,
		InternalName:  cstring(h.Name[:]),
		Mass:          h.Mass,
		Contents:      h.Contents,
		NumBones:      int(h.NumBones),
		NumTextures:   int(h.NumTextures),
		NumBodyParts:  int(h.NumBodyParts),
		NumSequences:  int(h.NumLocalSeq),
		IncludeModels: int(h.NumIncludeModels),
	}
	if m.mins == m.maxs {
		m.mins, m.maxs = mgl32.Vec3(h.ViewBBMin), mgl32.Vec3(h.ViewBBMax)
	}
	if i := int(h.SurfacePropIndex); i > 0 && i < len(data) {
		m.SurfaceProp = cstring(data[i:])
	}
	return m, nil
}
