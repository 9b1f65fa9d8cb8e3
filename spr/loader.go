// SPDX-License-Identifier: GPL-2.0-or-later

// Package spr decodes sprite headers and sprite materials.
package spr

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"govbsp/model"
)

func init() {
	model.Register(model.KindSprite, Magic, func(name string, data []byte) (model.Asset, error) {
		return Load(name, data)
	})
	model.RegisterFallback(model.KindSprite, func(name string, data []byte) (model.Asset, error) {
		return LoadMaterial(name, data)
	})
}

type Model struct {
	name        string
	mins, maxs  mgl32.Vec3
	Type        int
	FrameCount  int
	SyncType    int
	Shader      string
	Orientation string
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
	return 0
}

// floor rounds towards negative infinity.
func floor(f float32) int {
	i := int(f)
	if f < 0 && float32(i) != f {
		i--
	}
	return i
}

// Load decodes an IDSP sprite header.
func Load(name string, data []byte) (*Model, error) {
	buf := bytes.NewReader(data)
	var id, version int32
	if err := binary.Read(buf, binary.LittleEndian, &id); err != nil {
		return nil, errors.Wrap(err, name)
	}
	if err := binary.Read(buf, binary.LittleEndian, &version); err != nil {
		return nil, errors.Wrap(err, name)
	}
	if id != Magic {
		return nil, errors.Errorf("%s: not a sprite", name)
	}
	if version != spriteVersion && version != spriteVersionHL {
		return nil, errors.Errorf("%s has wrong version number (%d should be %d or %d)", name, version, spriteVersion, spriteVersionHL)
	}
	var typ, texFormat int32
	fields := []any{&typ}
	if version == spriteVersionHL {
		fields = append(fields, &texFormat)
	}
	h := header{}
	for _, f := range append(fields, &h) {
		if err := binary.Read(buf, binary.LittleEndian, f); err != nil {
			return nil, errors.Wrap(err, name)
		}
	}
	if h.FrameCount < 1 {
		return nil, errors.Errorf("%s: invalid # of frames: %v", name, h.FrameCount)
	}
	w := float32(floor(float32(h.MaxWidth) / 2))
	ht := float32(floor(float32(h.MaxHeight) / 2))
	return &Model{
		name:       name,
		mins:       mgl32.Vec3{-w, -w, -ht},
		maxs:       mgl32.Vec3{w, w, ht},
		Type:       int(typ),
		FrameCount: int(h.FrameCount),
		SyncType:   int(h.SyncType),
	}, nil
}

// LoadMaterial reads a sprite material:
//
//	"Sprite"
//	{
//		"$spriteorientation" "vp_parallel"
//		"$basetexture" "sprites/glow01"
//	}
//
// Only the shader name and the orientation are kept.
func LoadMaterial(name string, data []byte) (*Model, error) {
	m := &Model{name: name, FrameCount: 1, Orientation: "vp_parallel"}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(strings.NewReplacer(`"`, " ", "{", " ", "}", " ").Replace(line))
		switch {
		case len(fields) == 0:
		case m.Shader == "":
			m.Shader = fields[0]
		case len(fields) >= 2 && strings.EqualFold(fields[0], "$spriteorientation"):
			m.Orientation = strings.ToLower(fields[1])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, name)
	}
	if m.Shader == "" {
		return nil, errors.Errorf("%s: empty material", name)
	}
	return m, nil
}
