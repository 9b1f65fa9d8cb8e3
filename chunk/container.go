// SPDX-License-Identifier: GPL-2.0-or-later

package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	Ident      = 'V' | 'B'<<8 | 'S'<<16 | 'P'<<24
	MinVersion = 19
	MaxVersion = 21
	NumLumps   = 64

	DefaultMaxPatchFiles = 128
)

// called lump_t in the map compiler
type lumpEntry struct {
	Offset  int32
	Length  int32
	Version int32
	FourCC  int32 // uncompressed size, 0 if stored raw
}

type header struct {
	Ident    int32
	Version  int32
	Lumps    [NumLumps]lumpEntry
	Revision int32
}

var headerSize = int64(binary.Size(header{}))

// Descriptor locates one chunk. Length 0 means the chunk is absent.
type Descriptor struct {
	ID               int
	Offset           int64
	Length           int64
	Version          int32
	UncompressedSize int64

	patch *Patch
}

func (d Descriptor) Absent() bool {
	return d.Length == 0
}

func (d Descriptor) Compressed() bool {
	return d.UncompressedSize != 0
}

// Patched returns the overlay serving this chunk, or nil.
func (d Descriptor) Patched() *Patch {
	return d.patch
}

// File is what a container needs from its backing storage.
type File interface {
	io.ReaderAt
	io.Closer
}

// Opener opens side-car files. It returns os.ErrNotExist (possibly wrapped)
// when the file does not exist.
type Opener func(name string) (File, int64, error)

func osOpener(name string) (File, int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

type options struct {
	log           logrus.FieldLogger
	opener        Opener
	maxPatchFiles int
	patchBase     string
}

type Option func(*options)

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithOpener sets how side-car patch files are opened.
func WithOpener(f Opener) Option {
	return func(o *options) { o.opener = f }
}

func WithMaxPatchFiles(n int) Option {
	return func(o *options) { o.maxPatchFiles = n }
}

// WithPatchBase overrides the name side-car files are derived from.
func WithPatchBase(name string) Option {
	return func(o *options) { o.patchBase = name }
}

// Container is an opened map file.
type Container struct {
	name     string
	src      io.ReaderAt
	closer   io.Closer
	data     []byte // set when the whole container was prefetched
	size     int64
	version  int32
	revision int32
	lumps    [NumLumps]Descriptor
	patches  []*Patch
	log      logrus.FieldLogger

	mu      sync.Mutex
	readers map[*Reader]struct{}
	closed  bool
}

// Open opens the container at path and validates its header.
func Open(path string, opts ...Option) (*Container, error) {
	f, size, err := osOpener(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	c, err := OpenReaderAt(path, f, size, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	return c, nil
}

// OpenBytes initializes a container from a prefetched buffer.
func OpenBytes(name string, data []byte, opts ...Option) (*Container, error) {
	c, err := OpenReaderAt(name, bytes.NewReader(data), int64(len(data)), opts...)
	if err != nil {
		return nil, err
	}
	c.data = data
	return c, nil
}

// OpenReaderAt initializes a container from r. The container does not close r.
func OpenReaderAt(name string, r io.ReaderAt, size int64, opts ...Option) (*Container, error) {
	o := options{
		log:           logrus.StandardLogger(),
		opener:        osOpener,
		maxPatchFiles: DefaultMaxPatchFiles,
		patchBase:     name,
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Container{
		name:    name,
		src:     r,
		size:    size,
		log:     o.log.WithField("file", name),
		readers: make(map[*Reader]struct{}),
	}
	if err := c.readHeader(); err != nil {
		return nil, err
	}
	c.loadPatches(o)
	return c, nil
}

func (c *Container) readHeader() error {
	if c.size < headerSize {
		return &FormatError{
			File:     c.name,
			Lump:     -1,
			Err:      ErrBadMagic,
			Expected: fmt.Sprintf("at least %d bytes", headerSize),
			Actual:   fmt.Sprintf("%d bytes", c.size),
		}
	}
	var h header
	if err := binary.Read(io.NewSectionReader(c.src, 0, headerSize), binary.LittleEndian, &h); err != nil {
		return errors.Wrapf(err, "%s: read header", c.name)
	}
	if h.Ident != Ident {
		return &FormatError{
			File:     c.name,
			Lump:     -1,
			Err:      ErrBadMagic,
			Expected: fmt.Sprintf("%#08x", uint32(Ident)),
			Actual:   fmt.Sprintf("%#08x", uint32(h.Ident)),
		}
	}
	if h.Version < MinVersion || h.Version > MaxVersion {
		return &FormatError{
			File:     c.name,
			Lump:     -1,
			Err:      ErrVersionRange,
			Expected: fmt.Sprintf("version in [%d,%d]", MinVersion, MaxVersion),
			Actual:   fmt.Sprintf("version %d", h.Version),
		}
	}
	c.version = h.Version
	c.revision = h.Revision
	for i, l := range h.Lumps {
		if l.Offset < 0 || l.Length < 0 || int64(l.Offset)+int64(l.Length) > c.size {
			return &FormatError{
				File:     c.name,
				Lump:     i,
				Err:      ErrCorruptChunk,
				Expected: fmt.Sprintf("range inside %d bytes", c.size),
				Actual:   fmt.Sprintf("offset %d length %d", l.Offset, l.Length),
			}
		}
		c.lumps[i] = Descriptor{
			ID:               i,
			Offset:           int64(l.Offset),
			Length:           int64(l.Length),
			Version:          l.Version,
			UncompressedSize: int64(l.FourCC),
		}
	}
	return nil
}

func (c *Container) Name() string {
	return c.name
}

func (c *Container) Version() int32 {
	return c.version
}

func (c *Container) Revision() int32 {
	return c.revision
}

// Descriptor returns the effective descriptor of chunk id, patches applied.
func (c *Container) Descriptor(id int) Descriptor {
	if id < 0 || id >= NumLumps {
		panic(fmt.Sprintf("chunk: descriptor %d out of range", id))
	}
	return c.lumps[id]
}

// Patches returns the overlays that were applied, in probe order.
func (c *Container) Patches() []*Patch {
	return c.patches
}

// Reader returns a reader for chunk id. Absent chunks give an empty reader.
func (c *Container) Reader(id int) (*Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	d := c.Descriptor(id)
	r, err := c.newReader(d)
	if err != nil {
		return nil, err
	}
	c.readers[r] = struct{}{}
	return r, nil
}

// ReadSourceAt reads n bytes at an absolute offset of the file that backs
// chunk id. Game lumps address their payloads this way.
func (c *Container) ReadSourceAt(id int, off, n int64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	src, size := c.src, c.size
	if p := c.Descriptor(id).patch; p != nil {
		src, size = p.f, p.size
	}
	if off < 0 || n < 0 || off+n > size {
		return nil, &FormatError{
			File:     c.name,
			Lump:     id,
			Err:      ErrCorruptChunk,
			Expected: fmt.Sprintf("range inside %d bytes", size),
			Actual:   fmt.Sprintf("offset %d length %d", off, n),
		}
	}
	b := make([]byte, n)
	if _, err := src.ReadAt(b, off); err != nil {
		return nil, errors.Wrapf(err, "%s: read lump %d payload", c.name, id)
	}
	return b, nil
}

// OpenReaders reports how many chunk buffers are still outstanding.
func (c *Container) OpenReaders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.readers)
}

func (c *Container) release(r *Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.readers, r)
}

// Close drops all chunk buffers, closes the side-car files and the backing
// file if the container opened it.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for r := range c.readers {
		r.drop()
	}
	c.readers = make(map[*Reader]struct{})
	var first error
	for _, p := range c.patches {
		if err := p.f.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.patches = nil
	c.data = nil
	if c.closer != nil {
		if err := c.closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
