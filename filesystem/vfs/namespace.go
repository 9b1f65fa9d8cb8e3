// SPDX-License-Identifier: GPL-2.0-or-later

package vfs

import (
	"io/fs"
	"os"
)

type BindMode int

const (
	// BindBefore searches the new file system first.
	BindBefore BindMode = iota
	// BindAfter searches it only after all others failed.
	BindAfter
)

type mount struct {
	tag string
	fs  FileSystem
}

// NameSpace is an ordered search path. Each file system is bound under a
// tag so it can be removed again.
type NameSpace struct {
	mounts []mount
}

// Bind adds newfs under tag. An existing binding with the same tag is
// replaced.
func (ns *NameSpace) Bind(tag string, newfs FileSystem, mode BindMode) {
	ns.Unbind(tag)
	m := mount{tag, newfs}
	switch mode {
	case BindBefore:
		ns.mounts = append([]mount{m}, ns.mounts...)
	case BindAfter:
		ns.mounts = append(ns.mounts, m)
	}
}

// Unbind removes the file system bound under tag.
func (ns *NameSpace) Unbind(tag string) (FileSystem, bool) {
	for i, m := range ns.mounts {
		if m.tag == tag {
			ns.mounts = append(ns.mounts[:i:i], ns.mounts[i+1:]...)
			return m.fs, true
		}
	}
	return nil, false
}

// Tags lists the bindings in search order.
func (ns *NameSpace) Tags() []string {
	t := make([]string, len(ns.mounts))
	for i, m := range ns.mounts {
		t[i] = m.tag
	}
	return t
}

// Open returns the file from the first file system that has it.
func (ns *NameSpace) Open(name string) (File, error) {
	var err error
	for _, m := range ns.mounts {
		f, err1 := m.fs.Open(name)
		if err1 == nil {
			return f, nil
		}
		// not-exist errors of overlays must not hide real errors below them
		if err == nil || os.IsNotExist(err) {
			err = err1
		}
	}
	if err == nil {
		err = &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return nil, err
}

func (ns *NameSpace) Stat(name string) (fs.FileInfo, error) {
	var err error
	for _, m := range ns.mounts {
		fi, err1 := m.fs.Stat(name)
		if err1 == nil {
			return fi, nil
		}
		if err == nil || os.IsNotExist(err) {
			err = err1
		}
	}
	if err == nil {
		err = &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return nil, err
}

func (ns *NameSpace) String() string {
	return "ns"
}
