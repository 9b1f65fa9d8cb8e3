// SPDX-License-Identifier: GPL-2.0-or-later

// Package filesystem resolves asset names against the game search path.
package filesystem

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"govbsp/filesystem/vfs"
	"govbsp/pack"
)

const DefaultCacheBytes = 32 << 20

type File = vfs.File

type packFileSystem struct {
	p *pack.Pack
}

type closer struct {
	*io.SectionReader
}

func (*closer) Close() error {
	return nil
}

func (p packFileSystem) Open(path string) (vfs.File, error) {
	// inside a pack file there is no root, all names are relative
	f, err := p.p.Open(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	return &closer{f}, nil
}

func (p packFileSystem) Stat(path string) (fs.FileInfo, error) {
	path = strings.TrimPrefix(path, "/")
	f, err := p.p.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileInfo{name: filepath.Base(path), size: f.Size()}, nil
}

func (p packFileSystem) String() string {
	return p.p.String()
}

// FS is a search path of game directories, the pack files inside them and
// mounted archives. File contents are cached by ReadFile.
type FS struct {
	log        logrus.FieldLogger
	cacheBytes int64

	mu      sync.RWMutex
	baseDir string
	gameDir string
	ns      vfs.NameSpace
	packs   []*pack.Pack
	cache   *ristretto.Cache[string, []byte]
}

type Option func(*FS)

func WithLogger(l logrus.FieldLogger) Option {
	return func(f *FS) { f.log = l }
}

// WithCacheBytes bounds the content cache. Zero disables it.
func WithCacheBytes(n int64) Option {
	return func(f *FS) { f.cacheBytes = n }
}

// New searches baseDir and the pak<N>.pak files inside it.
func New(baseDir string, opts ...Option) (*FS, error) {
	f := &FS{
		log:        logrus.StandardLogger(),
		cacheBytes: DefaultCacheBytes,
		baseDir:    baseDir,
		gameDir:    baseDir,
	}
	for _, o := range opts {
		o(f)
	}
	if f.cacheBytes > 0 {
		c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: 10000,
			MaxCost:     f.cacheBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, errors.Wrap(err, "file cache")
		}
		f.cache = c
	}
	f.ns.Bind("dir:"+baseDir, vfs.OS(baseDir), vfs.BindBefore)
	f.useDir(baseDir)
	return f, nil
}

// UseGameDir puts dir, relative to the base directory, in front of the
// search path.
func (f *FS) UseGameDir(dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameDir = filepath.Join(f.baseDir, dir)
	f.ns.Bind("dir:"+f.gameDir, vfs.OS(f.gameDir), vfs.BindBefore)
	f.useDir(f.gameDir)
	f.clearCache()
}

// useDir binds pak0.pak, pak1.pak, ... so that higher numbers win.
func (f *FS) useDir(dir string) {
	for i := 0; ; i++ {
		pfp := filepath.Join(dir, fmt.Sprintf("pak%d.pak", i))
		p, err := pack.NewPackReader(pfp)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				f.log.WithError(err).WithField("file", pfp).Warn("skipping pack")
			}
			break
		}
		f.packs = append(f.packs, p)
		f.ns.Bind("pak:"+pfp, packFileSystem{p}, vfs.BindBefore)
	}
}

func (f *FS) GameDir() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.gameDir
}

func (f *FS) BaseDir() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.baseDir
}

// MountZip puts an archive in front of the search path under tag.
func (f *FS) MountZip(tag string, z *zip.Reader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	zf := vfs.NewZip(tag, z)
	f.ns.Bind("zip:"+tag, zf, vfs.BindBefore)
	f.clearCache()
	f.log.WithFields(logrus.Fields{"mount": tag, "files": zf.Len()}).Debug("mounted archive")
}

// Unmount removes an archive added by MountZip.
func (f *FS) Unmount(tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ns.Unbind("zip:" + tag)
	if ok {
		f.clearCache()
	}
	return ok
}

// SearchPath lists the bindings in search order.
func (f *FS) SearchPath() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ns.Tags()
}

func (f *FS) clearCache() {
	if f.cache != nil {
		f.cache.Clear()
	}
}

func (f *FS) Stat(name string) (fs.FileInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ns.Stat(name)
}

func (f *FS) Open(name string) (File, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ns.Open(name)
}

// ReadFile returns the contents of name. The returned slice is shared with
// the cache and must not be modified.
func (f *FS) ReadFile(name string) ([]byte, error) {
	key := strings.ToLower(name)
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.cache != nil {
		if b, ok := f.cache.Get(key); ok {
			return b, nil
		}
	}
	file, err := f.ns.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	b, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	if f.cache != nil {
		f.cache.Set(key, b, int64(len(b))+1)
		f.cache.Wait()
	}
	return b, nil
}

// Close releases the pack files and the cache.
func (f *FS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for _, p := range f.packs {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	f.packs = nil
	f.ns = vfs.NameSpace{}
	if f.cache != nil {
		f.cache.Close()
		f.cache = nil
	}
	return first
}

func isSep(c uint8) bool {
	return c == '/' || c == '\\'
}

func Ext(path string) string {
	for i := len(path) - 1; i >= 0 && !isSep(path[i]); i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

func StripExt(path string) string {
	for i := len(path) - 1; i >= 0 && !isSep(path[i]); i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
