// SPDX-License-Identifier: GPL-2.0-or-later

package pack

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func writePak(t *testing.T, files map[string][]byte) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "pak0.pak")
	f, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := Write(f, files); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	return name
}

func TestPak(t *testing.T) {
	pakFile := writePak(t, map[string][]byte{
		"doc1.txt":            []byte("this is the first doc\r\n"),
		"models/Barrel01.mdl": []byte("IDST"),
	})
	p, err := NewPackReader(pakFile)
	if err != nil {
		t.Fatalf("could not open %s: %v", pakFile, err)
	}
	defer p.Close()
	if p.String() != pakFile {
		t.Errorf("String() = %v, want %v", p.String(), pakFile)
	}
	if got, want := p.Names(), []string{"doc1.txt", "models/barrel01.mdl"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	f1, err := p.Open("doc1.txt")
	if err != nil {
		t.Fatalf("Open(doc1.txt) = %v", err)
	}
	b1, err := io.ReadAll(f1)
	if err != nil {
		t.Fatalf("Could not read f1: %v", err)
	}
	if string(b1) != "this is the first doc\r\n" {
		t.Errorf("f1 contents is %q", b1)
	}
	if _, err := p.Open("MODELS/barrel01.MDL"); err != nil {
		t.Errorf("Open() ignoring case = %v", err)
	}
	if _, err := p.Open("doc4.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open(doc4.txt) = %v, want not exist", err)
	}
}

func TestNotAPak(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.pak")
	if err := os.WriteFile(name, []byte("PK\x03\x04 something else"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPackReader(name); !errors.Is(err, ErrNotPack) {
		t.Errorf("NewPackReader() = %v, want %v", err, ErrNotPack)
	}
}
