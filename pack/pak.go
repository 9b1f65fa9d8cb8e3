// SPDX-License-Identifier: GPL-2.0-or-later

// Package pack reads and writes PACK archives.
package pack

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var ErrNotPack = errors.New("not a pack")

const (
	headerSize = 12
	entrySize  = 64
	nameSize   = 56
)

type header struct {
	ID     [4]byte
	Offset int32
	Size   int32
}

type entry struct {
	Name   [nameSize]byte
	Offset int32
	Size   int32
}

var magic = [4]byte{'P', 'A', 'C', 'K'}

type Pack struct {
	f     *os.File
	files map[string]qfile
	name  string
}

type qfile struct {
	offset int64
	size   int64
}

// Open returns a reader for the entry name. Names are matched without case.
func (p *Pack) Open(name string) (*io.SectionReader, error) {
	q, ok := p.files[strings.ToLower(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return io.NewSectionReader(p.f, q.offset, q.size), nil
}

// Names returns the sorted entry names.
func (p *Pack) Names() []string {
	n := make([]string, 0, len(p.files))
	for k := range p.files {
		n = append(n, k)
	}
	sort.Strings(n)
	return n
}

func (p *Pack) String() string {
	return p.name
}

func (p *Pack) Close() error {
	return p.f.Close()
}

func (p *Pack) init() error {
	fi, err := p.f.Stat()
	if err != nil {
		return err
	}
	var h header
	if err := binary.Read(p.f, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(ErrNotPack, err.Error())
	}
	if h.ID != magic {
		return ErrNotPack
	}
	if h.Offset < headerSize || h.Size < 0 || int64(h.Offset)+int64(h.Size) > fi.Size() {
		return errors.Errorf("directory [%d,+%d) outside %d bytes", h.Offset, h.Size, fi.Size())
	}
	entries := make([]entry, h.Size/entrySize)
	dir := io.NewSectionReader(p.f, int64(h.Offset), int64(h.Size))
	if err := binary.Read(dir, binary.LittleEndian, entries); err != nil {
		return err
	}
	p.files = make(map[string]qfile, len(entries))
	for _, e := range entries {
		n := bytes.IndexByte(e.Name[:], 0)
		if n < 0 {
			n = nameSize
		}
		name := strings.ToLower(string(e.Name[:n]))
		if _, ok := p.files[name]; ok {
			return errors.Errorf("%s is not unique", name)
		}
		if e.Offset < 0 || e.Size < 0 || int64(e.Offset)+int64(e.Size) > fi.Size() {
			return errors.Errorf("%s: data outside the file", name)
		}
		p.files[name] = qfile{offset: int64(e.Offset), size: int64(e.Size)}
	}
	return nil
}

func NewPackReader(name string) (*Pack, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	p := &Pack{f: f, name: name}
	if err := p.init(); err != nil {
		f.Close()
		return nil, errors.Wrap(err, name)
	}
	return p, nil
}

// Write stores files as a pack. Entries are written in name order.
func Write(w io.Writer, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for n := range files {
		if len(n) >= nameSize {
			return errors.Errorf("name %q is longer than %d bytes", n, nameSize-1)
		}
		names = append(names, n)
	}
	sort.Strings(names)
	var data bytes.Buffer
	entries := make([]entry, len(names))
	for i, n := range names {
		copy(entries[i].Name[:], n)
		entries[i].Offset = int32(headerSize + data.Len())
		entries[i].Size = int32(len(files[n]))
		data.Write(files[n])
	}
	h := header{
		ID:     magic,
		Offset: int32(headerSize + data.Len()),
		Size:   int32(len(entries) * entrySize),
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, entries)
}
