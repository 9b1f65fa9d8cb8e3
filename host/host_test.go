// SPDX-License-Identifier: GPL-2.0-or-later

package host

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/mainthread/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"govbsp/bsp"
	"govbsp/chunk"
	"govbsp/cvar"
	"govbsp/manifest"
)

func writeMap(t *testing.T, dir, name string, models int) {
	t.Helper()
	leaf := make([]byte, 32)
	binary.LittleEndian.PutUint32(leaf, bsp.ContentsSolid)
	binary.LittleEndian.PutUint16(leaf[4:], 0xffff)
	binary.LittleEndian.PutUint16(leaf[28:], 0xffff)
	w := chunk.NewWriter(20)
	w.SetLump(bsp.LumpLeafs, 1, leaf)
	w.SetCompressedLump(bsp.LumpModels, 0, make([]byte, 48*models))
	img, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, img, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newHost(t *testing.T, dir string, vars *cvar.List, manifest string) (*Host, *bytes.Buffer, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	var out bytes.Buffer
	h, err := New(Config{BaseDir: dir, Vars: vars, Log: log, Out: &out, Manifest: manifest})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return h, &out, hook
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "maps/one.bsp", 2)
	h, out, _ := newHost(t, dir, nil, "")
	defer h.Close()
	h.Buffer.AddText("map_load maps/one.bsp; mod_list\nlump_info maps/one.bsp\n")
	h.Frame(time.Now())
	got := out.String()
	for _, want := range []string{
		"maps/one.bsp: version 20, 1 leafs, 0 clusters, 2 models, 0 static prop models\n",
		"*1 ",
		"2 models\n",
		"maps/one.bsp: version 20, revision 0\n",
		"14 models ",
		"lzma 96",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
}

func TestVarsAndErrors(t *testing.T) {
	vars := cvar.NewList()
	vars.Set("host_maxfps", "30")
	h, out, hook := newHost(t, t.TempDir(), vars, "")
	defer h.Close()
	if h.maxFPS.Int() != 30 {
		t.Errorf("host_maxfps = %v, want 30 from the preset value", h.maxFPS.String())
	}
	h.Buffer.AddText("mod_strict_refs 1\nmod_strict_refs\nnope\nworld_leaf 0 0 0\n")
	h.Frame(time.Now())
	if want := "\"mod_strict_refs\" is \"1\"\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "command failed" {
			warnings++
		}
	}
	if warnings != 2 {
		t.Errorf("%d failed commands logged, want 2", warnings)
	}
}

func TestManifestOnClose(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "maps/one.bsp", 1)
	path := filepath.Join(t.TempDir(), "precache.manifest")
	h, _, _ := newHost(t, dir, nil, path)
	h.Buffer.AddText("map_load maps/one.bsp\n")
	h.Frame(time.Now())
	if err := h.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	m, err := manifest.Load(path)
	if err != nil {
		t.Fatalf("manifest.Load() = %v", err)
	}
	if m.Map != "maps/one.bsp" {
		t.Errorf("manifest map = %q, want maps/one.bsp", m.Map)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "maps/one.bsp", 1)
	h, out, _ := newHost(t, dir, nil, "")
	defer h.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	mainthread.Run(func() {
		err = h.Run(ctx, strings.NewReader("map_load maps/one.bsp\nwait\npath\n"))
	})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !strings.Contains(out.String(), "Current search path:\n  dir:"+dir) {
		t.Errorf("output = %q", out.String())
	}
}
