// SPDX-License-Identifier: GPL-2.0-or-later

package model

import (
	"encoding/binary"
	"sync"
)

// LoadFunc decodes the file contents of one asset.
type LoadFunc func(name string, data []byte) (Asset, error)

type loader struct {
	kind Kind
	fn   LoadFunc
}

var (
	loadersMu sync.Mutex
	loaders   = make(map[uint32]loader)
	fallbacks = make(map[Kind]LoadFunc)
)

// Register adds a loader for files starting with magic. Registries created
// afterwards pick it up.
func Register(kind Kind, magic uint32, f LoadFunc) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[magic] = loader{kind, f}
}

// RegisterFallback adds a loader for files of kind without a known magic.
func RegisterFallback(kind Kind, f LoadFunc) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	fallbacks[kind] = f
}

type loaderTable struct {
	byMagic  map[uint32]loader
	fallback map[Kind]LoadFunc
}

func defaultLoaders() loaderTable {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	t := loaderTable{
		byMagic:  make(map[uint32]loader, len(loaders)),
		fallback: make(map[Kind]LoadFunc, len(fallbacks)),
	}
	for m, l := range loaders {
		t.byMagic[m] = l
	}
	for k, f := range fallbacks {
		t.fallback[k] = f
	}
	return t
}

func (t loaderTable) find(kind Kind, data []byte) (LoadFunc, bool) {
	if len(data) >= 4 {
		if l, ok := t.byMagic[binary.LittleEndian.Uint32(data)]; ok && l.kind == kind {
			return l.fn, true
		}
	}
	f, ok := t.fallback[kind]
	return f, ok
}
