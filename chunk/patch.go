// SPDX-License-Identifier: GPL-2.0-or-later

package chunk

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type patchHeader struct {
	Offset   int32
	ID       int32
	Version  int32
	Length   int32
	Revision int32
}

var patchHeaderSize = int64(binary.Size(patchHeader{}))

// Patch redirects one chunk to a side-car file.
type Patch struct {
	ID       int
	Path     string
	Offset   int64
	Length   int64
	Version  int32
	Revision int32

	f    File
	size int64
}

// PatchName returns the name of side-car n for the container base.
// maps/foo.bsp -> maps/foo_l_0.lmp
func PatchName(base string, n int) string {
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_l_%d.lmp", strings.TrimSuffix(base, ext), n)
}

func (c *Container) loadPatches(o options) {
	for i := 0; i < o.maxPatchFiles; i++ {
		name := PatchName(o.patchBase, i)
		f, size, err := o.opener(name)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				c.log.WithError(err).WithField("patch", name).Warn("could not open lump file")
			}
			return
		}
		p, err := readPatch(name, f, size)
		if err != nil {
			c.log.WithError(err).WithField("patch", name).Warn("skipping malformed lump file")
			f.Close()
			continue
		}
		if old := c.lumps[p.ID].patch; old != nil {
			c.log.WithField("lump", p.ID).Debugf("%s supersedes %s", name, old.Path)
		}
		c.patches = append(c.patches, p)
		c.lumps[p.ID] = Descriptor{
			ID:      p.ID,
			Offset:  p.Offset,
			Length:  p.Length,
			Version: p.Version,
			patch:   p,
		}
	}
}

func readPatch(name string, f File, size int64) (*Patch, error) {
	if size < patchHeaderSize {
		return nil, errors.Errorf("%s: %d bytes is shorter than the header", name, size)
	}
	var h patchHeader
	if err := binary.Read(io.NewSectionReader(f, 0, patchHeaderSize), binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrapf(err, "%s: read header", name)
	}
	if h.ID < 0 || h.ID >= NumLumps {
		return nil, errors.Errorf("%s: lump id %d out of range", name, h.ID)
	}
	if int64(h.Offset) < patchHeaderSize || h.Length < 0 || int64(h.Offset)+int64(h.Length) > size {
		return nil, errors.Errorf("%s: payload offset %d length %d outside %d bytes", name, h.Offset, h.Length, size)
	}
	return &Patch{
		ID:       int(h.ID),
		Path:     name,
		Offset:   int64(h.Offset),
		Length:   int64(h.Length),
		Version:  h.Version,
		Revision: h.Revision,
		f:        f,
		size:     size,
	}, nil
}
