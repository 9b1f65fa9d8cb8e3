// SPDX-License-Identifier: GPL-2.0-or-later

package chunk

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz/lzma"
)

const lzmaID = 'L' | 'M'<<8 | 'Z'<<16 | 'A'<<24

type lzmaHeader struct {
	ID         uint32
	ActualSize uint32
	LZMASize   uint32
	Properties [5]byte
}

var lzmaHeaderSize = binary.Size(lzmaHeader{})

// IsCompressed reports whether b starts with the LZMA chunk marker.
func IsCompressed(b []byte) bool {
	return len(b) >= 4 && binary.LittleEndian.Uint32(b) == lzmaID
}

// Decompress inflates an LZMA chunk payload. The result must be exactly want
// bytes long. want <= 0 accepts the size stored in the payload header.
func Decompress(b []byte, want int64) ([]byte, error) {
	if len(b) < lzmaHeaderSize {
		return nil, errors.Errorf("lzma payload of %d bytes is shorter than its header", len(b))
	}
	var h lzmaHeader
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "lzma header")
	}
	if h.ID != lzmaID {
		return nil, errors.Errorf("lzma marker %#08x", h.ID)
	}
	if want > 0 && int64(h.ActualSize) != want {
		return nil, errors.Errorf("lzma header declares %d bytes, want %d", h.ActualSize, want)
	}
	body := b[lzmaHeaderSize:]
	if int64(h.LZMASize) > int64(len(body)) {
		return nil, errors.Errorf("lzma body declares %d bytes, have %d", h.LZMASize, len(body))
	}
	body = body[:h.LZMASize]

	// The classic .lzma header is the properties followed by the
	// uncompressed size as uint64.
	var classic [13]byte
	copy(classic[:5], h.Properties[:])
	binary.LittleEndian.PutUint64(classic[5:], uint64(h.ActualSize))

	lr, err := lzma.NewReader(io.MultiReader(bytes.NewReader(classic[:]), bytes.NewReader(body)))
	if err != nil {
		return nil, errors.Wrap(err, "lzma stream")
	}
	out := make([]byte, h.ActualSize)
	if _, err := io.ReadFull(lr, out); err != nil {
		return nil, errors.Wrap(err, "lzma inflate")
	}
	var extra [1]byte
	if n, _ := lr.Read(extra[:]); n != 0 {
		return nil, errors.Errorf("lzma stream longer than %d bytes", h.ActualSize)
	}
	return out, nil
}

// Compress builds an LZMA chunk payload from raw bytes.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.WriterConfig{SizeInHeader: true, Size: int64(len(raw))}.NewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "lzma writer")
	}
	if _, err := w.Write(raw); err != nil {
		return nil, errors.Wrap(err, "lzma write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lzma close")
	}
	classic := buf.Bytes()
	if len(classic) < 13 {
		return nil, errors.New("lzma stream too short")
	}
	h := lzmaHeader{
		ID:         lzmaID,
		ActualSize: uint32(len(raw)),
		LZMASize:   uint32(len(classic) - 13),
	}
	copy(h.Properties[:], classic[:5])
	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	out.Write(classic[13:])
	return out.Bytes(), nil
}
