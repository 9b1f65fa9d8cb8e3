// SPDX-License-Identifier: GPL-2.0-or-later

// Package vfs defines the file system interface of the search path and its
// OS directory and zip archive implementations.
package vfs

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type File interface {
	io.ReadSeekCloser
	io.ReaderAt
}

// FileSystem is one entry of a search path. Names are slash separated and
// relative to the root of the file system.
type FileSystem interface {
	Open(name string) (File, error)
	Stat(name string) (fs.FileInfo, error)
	String() string
}

func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// OS is a directory of the host file system.
type OS string

func (root OS) resolve(name string) string {
	return filepath.Join(string(root), filepath.FromSlash(clean(name)))
}

func (root OS) Open(name string) (File, error) {
	f, err := os.Open(root.resolve(name))
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return f, nil
}

func (root OS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(root.resolve(name))
}

func (root OS) String() string {
	return string(root)
}

// Zip serves the files of a zip archive. Lookups ignore case.
type Zip struct {
	name  string
	files map[string]*zip.File
}

func NewZip(name string, r *zip.Reader) *Zip {
	z := &Zip{name: name, files: make(map[string]*zip.File, len(r.File))}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		z.files[strings.ToLower(clean(f.Name))] = f
	}
	return z
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error {
	return nil
}

func (z *Zip) lookup(op, name string) (*zip.File, error) {
	f, ok := z.files[strings.ToLower(clean(name))]
	if !ok {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return f, nil
}

// Open inflates the whole entry.
func (z *Zip) Open(name string) (File, error) {
	f, err := z.lookup("open", name)
	if err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return memFile{bytes.NewReader(b)}, nil
}

func (z *Zip) Stat(name string) (fs.FileInfo, error) {
	f, err := z.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return f.FileInfo(), nil
}

func (z *Zip) String() string {
	return z.name
}

// Len is the number of files in the archive.
func (z *Zip) Len() int {
	return len(z.files)
}
