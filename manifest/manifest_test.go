// SPDX-License-Identifier: GPL-2.0-or-later

package manifest

import (
	"bytes"
	"path/filepath"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestSaveLoad(t *testing.T) {
	m := &Manifest{
		Map: "maps/e1m1.bsp",
		Entries: []Entry{
			{Name: "models/props/barrel.mdl", Refs: 1 << 3},
			{Name: "sprites/glow.spr"},
		},
	}
	path := filepath.Join(t.TempDir(), "cache", "e1m1.manifest")
	if err := Save(path, m); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("Load() = %+v, want %+v", got, m)
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	m := &Manifest{Entries: []Entry{{Name: "a.mdl", Refs: 2}}}
	b := m.Marshal()
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 77)
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("Unmarshal() = %+v, want %+v", got, m)
	}
	if _, err := Unmarshal(b[:len(b)-1]); err == nil {
		t.Errorf("Unmarshal(truncated) = nil, want error")
	}
}

func TestReadNotZstd(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("plain text"))); err == nil {
		t.Errorf("Read(plain) = nil, want error")
	}
}
