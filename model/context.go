// SPDX-License-Identifier: GPL-2.0-or-later

package model

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"govbsp/bsp"
	"govbsp/chunk"
	"govbsp/cvar"
	"govbsp/dynload"
	"govbsp/filesystem"
	"govbsp/manifest"
)

const pakMount = "map"

// Vars are the tunables of a Context.
type Vars struct {
	DynamicUnloadTime *cvar.Cvar
	DynamicSweep      *cvar.Cvar
	DynamicSplit      *cvar.Cvar
	LumpfileMax       *cvar.Cvar
	HDR               *cvar.Cvar
	StrictRefs        *cvar.Cvar
}

func RegisterVars(l *cvar.List) (*Vars, error) {
	v := &Vars{}
	for _, e := range []struct {
		cv   **cvar.Cvar
		name string
		def  string
	}{
		{&v.DynamicUnloadTime, "mod_dynamicunloadtime", "150"},
		{&v.DynamicSweep, "mod_dynamicsweep", "1"},
		{&v.DynamicSplit, "mod_dynamic_split", "0"},
		{&v.LumpfileMax, "mod_lumpfile_max", "128"},
		{&v.HDR, "mat_hdr_enabled", "0"},
		{&v.StrictRefs, "mod_strict_refs", "0"},
	} {
		cv, err := l.Register(e.name, e.def, cvar.ARCHIVE)
		if err != nil {
			return nil, err
		}
		*e.cv = cv
	}
	return v, nil
}

// Context ties the registry to the search path, the map assembler and the
// dynamic queue. All methods except the background load run on the driver
// goroutine.
type Context struct {
	Registry  *Registry
	Queue     *dynload.Queue
	Assembler *bsp.Assembler

	fs   *filesystem.FS
	vars *Vars
	log  logrus.FieldLogger
}

type ContextConfig struct {
	FS        *filesystem.FS
	Vars      *Vars
	Assembler *bsp.Assembler
	Log       logrus.FieldLogger
	// Clock drives the idle sweep. Defaults to time.Now.
	Clock func() time.Time
	// Options are applied to the registry after the context's own.
	Options []Option
}

func NewContext(cfg ContextConfig) *Context {
	c := &Context{
		Assembler: cfg.Assembler,
		fs:        cfg.FS,
		vars:      cfg.Vars,
		log:       cfg.Log,
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.Assembler == nil {
		c.Assembler = bsp.NewAssembler()
		c.Assembler.Log = c.log
	}
	ropts := append([]Option{
		WithLogger(c.log.WithField("component", "registry")),
		WithWorldHook(c.worldChanged),
	}, cfg.Options...)
	c.Registry = NewRegistry(cfg.FS, c, ropts...)
	opts := []dynload.Option{dynload.WithLogger(c.log.WithField("component", "dynload"))}
	if cfg.Clock != nil {
		opts = append(opts, dynload.WithClock(cfg.Clock))
	}
	c.Queue = dynload.New(dynload.Hooks{
		Load: func(ctx context.Context, name string) (any, error) {
			return c.Registry.LoadPayload(ctx, name)
		},
		Install: c.Registry.InstallDynamic,
		Unload:  c.Registry.EvictDynamic,
	}, opts...)
	c.Registry.SetDynamicQueue(c.Queue)

	v := c.vars
	v.DynamicUnloadTime.SetCallback(func(cv *cvar.Cvar) { c.Queue.SetGrace(cv.Seconds()) })
	v.DynamicSweep.SetCallback(func(cv *cvar.Cvar) { c.Queue.SetSweepInterval(cv.Seconds()) })
	v.DynamicSplit.SetCallback(func(cv *cvar.Cvar) { c.Queue.SetSplit(cv.Bool()) })
	v.StrictRefs.SetCallback(func(cv *cvar.Cvar) { c.Registry.SetStrict(cv.Bool()) })
	return c
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error {
	return nil
}

// openPatch opens side-car lump files through the search path.
func (c *Context) openPatch(name string) (chunk.File, int64, error) {
	b, err := c.fs.ReadFile(name)
	if err != nil {
		return nil, 0, err
	}
	return memFile{bytes.NewReader(b)}, int64(len(b)), nil
}

func (c *Context) openBytes(name string, data []byte) (*chunk.Container, error) {
	return chunk.OpenBytes(name, data,
		chunk.WithLogger(c.log),
		chunk.WithOpener(c.openPatch),
		chunk.WithMaxPatchFiles(c.vars.LumpfileMax.Int()))
}

// OpenContainer opens name from the search path together with its side-car
// lump files.
func (c *Context) OpenContainer(name string) (*chunk.Container, error) {
	data, err := c.fs.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return c.openBytes(name, data)
}

// LoadWorld assembles a map from its file contents.
func (c *Context) LoadWorld(ctx context.Context, name string, data []byte) (*bsp.WorldData, error) {
	ct, err := c.openBytes(name, data)
	if err != nil {
		return nil, err
	}
	defer ct.Close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.Assembler.HDR = c.vars.HDR.Bool()
	return c.Assembler.Assemble(ct)
}

func (c *Context) worldChanged(old, cur *bsp.WorldData) {
	if old != nil && old.PakFile() != nil {
		c.fs.Unmount(pakMount)
	}
	if cur != nil && cur.PakFile() != nil {
		c.fs.MountZip(pakMount, cur.PakFile())
	}
}

// LoadMap starts a new session with the world name and the models its static
// props use, then drops what the previous level left behind.
func (c *Context) LoadMap(ctx context.Context, name string) (*bsp.WorldData, error) {
	c.Registry.BeginSession()
	for _, ref := range []RefType{RefServer, RefClient} {
		if _, err := c.Registry.Acquire(ctx, name, ref); err != nil {
			return nil, errors.Wrapf(err, "map %s", name)
		}
	}
	w := c.Registry.World()
	for _, m := range w.StaticProps.Models {
		if _, err := c.Registry.Acquire(ctx, m, RefStaticProp); err != nil {
			c.log.WithError(err).WithField("asset", m).Warn("static prop model")
		}
	}
	for _, m := range w.DetailProps.Models {
		if _, err := c.Registry.Acquire(ctx, m, RefDetailProp); err != nil {
			c.log.WithError(err).WithField("asset", m).Warn("detail prop model")
		}
	}
	n := c.Registry.Purge()
	c.log.WithFields(logrus.Fields{"map": name, "purged": n}).Info("map loaded")
	return w, nil
}

// Precache acquires every name with ref. It returns the first error after
// trying all of them.
func (c *Context) Precache(ctx context.Context, names []string, ref RefType) error {
	var first error
	for _, n := range names {
		if _, err := c.Registry.Acquire(ctx, n, ref); err != nil {
			c.log.WithError(err).WithField("asset", n).Warn("precache")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Update advances the dynamic queue.
func (c *Context) Update(now time.Time) {
	c.Queue.Update(now)
}

// Manifest lists the loaded studio models and sprites.
func (c *Context) Manifest() *manifest.Manifest {
	m := &manifest.Manifest{}
	for _, rec := range c.Registry.Records() {
		switch {
		case rec.Kind == KindWorld && rec.Loaded:
			m.Map = rec.Name
		case (rec.Kind == KindStudio || rec.Kind == KindSprite) && rec.Loaded:
			m.Entries = append(m.Entries, manifest.Entry{Name: rec.Name, Refs: uint32(rec.Refs)})
		}
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Name < m.Entries[j].Name })
	return m
}

func (c *Context) SaveManifest(path string) error {
	return manifest.Save(path, c.Manifest())
}

// LoadManifest precaches the entries of a saved manifest with the static
// references they were saved with. A missing manifest is not an error.
func (c *Context) LoadManifest(ctx context.Context, path string) error {
	m, err := manifest.Load(path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range m.Entries {
		refs := RefSet(e.Refs) &^ persistentRefs
		if refs.Empty() {
			refs = RefsOf(RefClient)
		}
		for _, r := range refs.Types() {
			if _, err := c.Registry.Acquire(ctx, e.Name, r); err != nil {
				c.log.WithError(err).WithField("asset", e.Name).Warn("manifest entry")
				break
			}
		}
	}
	return nil
}

func (c *Context) Close() {
	c.Queue.Close()
}
