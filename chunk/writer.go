// SPDX-License-Identifier: GPL-2.0-or-later

package chunk

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

type pendingLump struct {
	data     []byte
	version  int32
	compress bool
}

// Writer assembles a container image. Lumps are laid out in id order after
// the header, each aligned to 4 bytes.
type Writer struct {
	Version  int32
	Revision int32
	lumps    [NumLumps]pendingLump
}

func NewWriter(version int32) *Writer {
	return &Writer{Version: version}
}

func (w *Writer) SetLump(id int, version int32, data []byte) {
	w.lumps[id] = pendingLump{data: data, version: version}
}

// SetCompressedLump stores data LZMA compressed.
func (w *Writer) SetCompressedLump(id int, version int32, data []byte) {
	w.lumps[id] = pendingLump{data: data, version: version, compress: true}
}

// SetStruct encodes v little endian as the lump payload.
func (w *Writer) SetStruct(id int, version int32, v any) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return errors.Wrapf(err, "encode lump %d", id)
	}
	w.SetLump(id, version, buf.Bytes())
	return nil
}

// Bytes returns the container image.
func (w *Writer) Bytes() ([]byte, error) {
	h := header{Ident: Ident, Version: w.Version, Revision: w.Revision}
	var body bytes.Buffer
	off := headerSize
	for i, l := range w.lumps {
		if len(l.data) == 0 {
			continue
		}
		payload := l.data
		var fourCC int32
		if l.compress {
			c, err := Compress(l.data)
			if err != nil {
				return nil, errors.Wrapf(err, "compress lump %d", i)
			}
			payload = c
			fourCC = int32(len(l.data))
		}
		h.Lumps[i] = lumpEntry{
			Offset:  int32(off),
			Length:  int32(len(payload)),
			Version: l.version,
			FourCC:  fourCC,
		}
		body.Write(payload)
		off += int64(len(payload))
		for off%4 != 0 {
			body.WriteByte(0)
			off++
		}
	}
	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// PatchBytes returns a side-car file image replacing lump id.
func PatchBytes(id int, version, revision int32, data []byte) []byte {
	h := patchHeader{
		Offset:   int32(patchHeaderSize),
		ID:       int32(id),
		Version:  version,
		Length:   int32(len(data)),
		Revision: revision,
	}
	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, &h)
	out.Write(data)
	return out.Bytes()
}
