// SPDX-License-Identifier: GPL-2.0-or-later

package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Reader is a bounded view of one chunk. Compressed chunks are inflated when
// the reader is created.
type Reader struct {
	c    *Container
	desc Descriptor
	data []byte
}

func (c *Container) newReader(d Descriptor) (*Reader, error) {
	r := &Reader{c: c, desc: d}
	if d.Absent() {
		return r, nil
	}
	raw, err := c.raw(d)
	if err != nil {
		return nil, err
	}
	if d.Compressed() {
		out, err := Decompress(raw, d.UncompressedSize)
		if err != nil {
			return nil, &FormatError{
				File:     c.name,
				Lump:     d.ID,
				Err:      ErrCorruptChunk,
				Expected: fmt.Sprintf("%d inflated bytes", d.UncompressedSize),
				Actual:   err.Error(),
			}
		}
		raw = out
	}
	r.data = raw
	return r, nil
}

// raw returns the stored bytes of d. Prefetched containers are sliced
// without copying.
func (c *Container) raw(d Descriptor) ([]byte, error) {
	if d.patch == nil && c.data != nil {
		return c.data[d.Offset : d.Offset+d.Length : d.Offset+d.Length], nil
	}
	src := c.src
	if d.patch != nil {
		src = d.patch.f
	}
	b := make([]byte, d.Length)
	if _, err := src.ReadAt(b, d.Offset); err != nil {
		return nil, errors.Wrapf(err, "%s: read lump %d", c.name, d.ID)
	}
	return b, nil
}

func (r *Reader) Descriptor() Descriptor {
	return r.desc
}

// Size is the length of the decoded chunk.
func (r *Reader) Size() int {
	return len(r.data)
}

// Bytes returns the whole decoded chunk. The slice is only valid until
// Release.
func (r *Reader) Bytes() []byte {
	return r.data
}

// ReadAt returns n bytes at off. Reading past the chunk panics.
func (r *Reader) ReadAt(off, n int) []byte {
	if off < 0 || n < 0 || off+n > len(r.data) {
		panic(fmt.Sprintf("chunk: read [%d,%d) outside lump %d of %d bytes", off, off+n, r.desc.ID, len(r.data)))
	}
	return r.data[off : off+n]
}

// Count returns how many elements of size fit the chunk.
func (r *Reader) Count(elementSize int) int {
	return len(r.data) / elementSize
}

// ReadElement decodes element index into out. Empty chunks leave out untouched.
func (r *Reader) ReadElement(index, elementSize int, out any) error {
	if len(r.data) == 0 {
		return nil
	}
	b := r.ReadAt(index*elementSize, elementSize)
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, out)
}

// Elements decodes the whole chunk into out, a slice sized to hold
// Count(elementSize) fixed size elements.
func (r *Reader) Elements(elementSize int, out any) error {
	if len(r.data) == 0 {
		return nil
	}
	if len(r.data)%elementSize != 0 {
		return &FormatError{
			File:     r.c.name,
			Lump:     r.desc.ID,
			Err:      ErrCorruptChunk,
			Expected: fmt.Sprintf("multiple of %d bytes", elementSize),
			Actual:   fmt.Sprintf("%d bytes", len(r.data)),
		}
	}
	return binary.Read(bytes.NewReader(r.data), binary.LittleEndian, out)
}

// Release returns the buffer to the container.
func (r *Reader) Release() {
	r.drop()
	r.c.release(r)
}

func (r *Reader) drop() {
	r.data = nil
}
