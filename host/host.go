// SPDX-License-Identifier: GPL-2.0-or-later

// Package host drives the loader from console commands.
package host

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/gopxl/mainthread/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"govbsp/bsp"
	"govbsp/cbuf"
	"govbsp/cmd"
	"govbsp/cvar"
	"govbsp/dynload"
	"govbsp/filesystem"
	"govbsp/gametime"
	"govbsp/model"
)

type Config struct {
	BaseDir string
	Game    string
	// Manifest is loaded at start and written on Close when set.
	Manifest string
	// Vars may already hold values from a configuration file.
	Vars *cvar.List
	Log  logrus.FieldLogger
	Out  io.Writer
}

type Host struct {
	Vars     *cvar.List
	Commands *cmd.Commands
	Buffer   *cbuf.CommandBuffer
	Models   *model.Context
	FS       *filesystem.FS

	out      io.Writer
	log      logrus.FieldLogger
	manifest string
	maxFPS   *cvar.Cvar
	clock    *gametime.GameTime
	ctx      context.Context
	cancel   context.CancelFunc
}

// lightmapLog reports lightmap changes; there is no renderer to upload to.
type lightmapLog struct {
	log logrus.FieldLogger
}

func (l lightmapLog) LightmapsChanged(w *bsp.WorldData) {
	l.log.WithFields(logrus.Fields{
		"file":  w.Name,
		"bytes": len(w.Lighting),
		"hdr":   w.HDR,
	}).Debug("lightmaps changed")
}

func New(cfg Config) (*Host, error) {
	h := &Host{
		Vars:     cfg.Vars,
		Commands: cmd.New(),
		Buffer:   &cbuf.CommandBuffer{},
		out:      cfg.Out,
		log:      cfg.Log,
		manifest: cfg.Manifest,
		clock:    gametime.New(time.Now()),
	}
	if h.Vars == nil {
		h.Vars = cvar.NewList()
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if h.out == nil {
		h.out = os.Stdout
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	cacheBytes, err := h.Vars.Register("fs_cache_bytes", "33554432", cvar.ARCHIVE)
	if err != nil {
		return nil, err
	}
	if h.maxFPS, err = h.Vars.Register("host_maxfps", "72", cvar.ARCHIVE); err != nil {
		return nil, err
	}
	vars, err := model.RegisterVars(h.Vars)
	if err != nil {
		return nil, err
	}

	h.FS, err = filesystem.New(cfg.BaseDir,
		filesystem.WithLogger(h.log.WithField("component", "filesystem")),
		filesystem.WithCacheBytes(int64(cacheBytes.Int())))
	if err != nil {
		return nil, err
	}
	if cfg.Game != "" {
		h.FS.UseGameDir(cfg.Game)
	}

	a := bsp.NewAssembler()
	a.Log = h.log.WithField("component", "bsp")
	a.Lightmaps = lightmapLog{h.log.WithField("component", "lightmaps")}
	h.Models = model.NewContext(model.ContextConfig{
		FS:        h.FS,
		Vars:      vars,
		Assembler: a,
		Log:       h.log,
	})

	h.Buffer.SetLogger(h.log.WithField("component", "cbuf"))
	h.Buffer.SetCommandExecutors([]cbuf.Efunc{
		func(_ *cbuf.CommandBuffer, a cmd.Arguments) (bool, error) {
			return h.Commands.Execute(a)
		},
		func(_ *cbuf.CommandBuffer, a cmd.Arguments) (bool, error) {
			return h.Vars.Execute(a, h.out), nil
		},
	})
	if err := h.addCommands(); err != nil {
		return nil, err
	}

	if h.manifest != "" {
		if err := h.Models.LoadManifest(h.ctx, h.manifest); err != nil {
			h.log.WithError(err).WithField("file", h.manifest).Warn("precache manifest")
		}
	}
	return h, nil
}

// Frame executes queued commands and advances the dynamic queue.
func (h *Host) Frame(now time.Time) {
	h.Buffer.Execute()
	h.Models.Update(now)
}

func (h *Host) idle() bool {
	if !h.Buffer.Empty() {
		return false
	}
	for _, e := range h.Models.Queue.Entries() {
		if e.State == dynload.Queued || e.State == dynload.Loading {
			return false
		}
	}
	return true
}

// Run feeds lines from in to the command buffer and runs frames on the main
// thread until in is exhausted and all work is done, or ctx ends. It must be
// called from the function passed to mainthread.Run.
func (h *Host) Run(ctx context.Context, in io.Reader) error {
	eof := make(chan error, 1)
	go func() {
		s := bufio.NewScanner(in)
		for s.Scan() {
			h.Buffer.AddText(s.Text() + "\n")
		}
		eof <- s.Err()
	}()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	var inputDone bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.ctx.Done():
			return nil
		case err := <-eof:
			if err != nil {
				return errors.Wrap(err, "read commands")
			}
			inputDone = true
		case now := <-ticker.C:
			if !h.clock.UpdateTime(now, float64(h.maxFPS.Value())) {
				continue
			}
			mainthread.Call(func() { h.Frame(now) })
			if inputDone && h.idle() {
				return nil
			}
		}
	}
}

// Quit makes Run return after the current frame.
func (h *Host) Quit() {
	h.cancel()
}

func (h *Host) Close() error {
	h.cancel()
	if h.manifest != "" {
		if err := h.Models.SaveManifest(h.manifest); err != nil {
			h.log.WithError(err).WithField("file", h.manifest).Warn("precache manifest")
		}
	}
	h.Models.Close()
	return h.FS.Close()
}
