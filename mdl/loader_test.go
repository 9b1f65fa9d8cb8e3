// SPDX-License-Identifier: GPL-2.0-or-later

package mdl

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func studio(t *testing.T, edit func(h *header)) []byte {
	t.Helper()
	h := header{
		ID:               Magic,
		Version:          48,
		HullMin:          [3]float32{-16, -16, 0},
		HullMax:          [3]float32{16, 16, 72},
		Flags:            FlagStaticProp,
		NumBones:         1,
		Mass:             20,
		SurfacePropIndex: int32(headerSize),
	}
	copy(h.Name[:], "props/barrel01.mdl")
	if edit != nil {
		edit(&h)
	}
	tail := []byte("metal\x00")
	if h.Length == 0 {
		h.Length = int32(headerSize + len(tail))
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		t.Fatal(err)
	}
	buf.Write(tail)
	return buf.Bytes()
}

func TestLoad(t *testing.T) {
	m, err := Load("models/props/barrel01.mdl", studio(t, nil))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got, want := m.Maxs(), (mgl32.Vec3{16, 16, 72}); got != want {
		t.Errorf("Maxs() = %v, want %v", got, want)
	}
	if m.Flags()&FlagStaticProp == 0 || m.InternalName != "props/barrel01.mdl" || m.SurfaceProp != "metal" {
		t.Errorf("Load() = %+v", m)
	}
	if m.Virtual() {
		t.Errorf("Virtual() = true without include models")
	}
}

func TestLoadVirtual(t *testing.T) {
	m, err := Load("a.mdl", studio(t, func(h *header) { h.NumIncludeModels = 2 }))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if !m.Virtual() {
		t.Errorf("Virtual() = false with 2 include models")
	}
}

func TestLoadViewBounds(t *testing.T) {
	m, err := Load("a.mdl", studio(t, func(h *header) {
		h.HullMin, h.HullMax = [3]float32{}, [3]float32{}
		h.ViewBBMin, h.ViewBBMax = [3]float32{-1, -2, -3}, [3]float32{1, 2, 3}
	}))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got, want := m.Mins(), (mgl32.Vec3{-1, -2, -3}); got != want {
		t.Errorf("Mins() = %v, want %v", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("IDST")},
		{"version below", studio(t, func(h *header) { h.Version = MinVersion - 1 })},
		{"version above", studio(t, func(h *header) { h.Version = MaxVersion + 1 })},
		{"length", studio(t, func(h *header) { h.Length = 12 })},
		{"magic", studio(t, func(h *header) { h.ID = 0x50534449 })},
	}
	for _, tc := range tests {
		if _, err := Load(tc.name, tc.data); err == nil {
			t.Errorf("Load(%s) = nil, want error", tc.name)
		}
	}
}
