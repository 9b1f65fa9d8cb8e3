// SPDX-License-Identifier: GPL-2.0-or-later

package host

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"govbsp/bsp"
	"govbsp/chunk"
	"govbsp/cmd"
	"govbsp/dynload"
	"govbsp/model"
)

func (h *Host) addCommands() error {
	if err := h.Vars.AddCommands(h.Commands, h.out); err != nil {
		return err
	}
	for _, e := range []struct {
		name string
		f    cmd.QFunc
	}{
		{"cmdlist", h.Commands.ListCommand(h.out)},
		{"exec", h.execCmd},
		{"quit", h.quitCmd},
		{"path", h.pathCmd},
		{"map_load", h.mapLoadCmd},
		{"mod_precache", h.precacheCmd},
		{"mod_release", h.releaseCmd},
		{"mod_unload", h.unloadCmd},
		{"mod_purge", h.purgeCmd},
		{"mod_list", h.listCmd},
		{"mod_dynamic", h.dynamicCmd},
		{"mod_dynamic_confirm", h.confirmCmd},
		{"mod_dynamic_cancel", h.cancelCmd},
		{"lump_info", h.lumpInfoCmd},
		{"world_leaf", h.worldLeafCmd},
		{"areaportal", h.areaPortalCmd},
		{"manifest_save", h.manifestSaveCmd},
	} {
		if err := h.Commands.Add(e.name, e.f); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) usage(format string) error {
	fmt.Fprintln(h.out, format)
	return nil
}

func (h *Host) execCmd(a cmd.Arguments) error {
	if len(a.Args()) != 2 {
		return h.usage("exec <filename> : execute a script file")
	}
	b, err := os.ReadFile(a.Argv(1).String())
	if err != nil {
		return err
	}
	h.Buffer.InsertText(string(b))
	return nil
}

func (h *Host) quitCmd(cmd.Arguments) error {
	h.Quit()
	return nil
}

func (h *Host) pathCmd(cmd.Arguments) error {
	fmt.Fprintln(h.out, "Current search path:")
	for _, p := range h.FS.SearchPath() {
		fmt.Fprintf(h.out, "  %s\n", p)
	}
	return nil
}

func (h *Host) mapLoadCmd(a cmd.Arguments) error {
	if len(a.Args()) != 2 {
		return h.usage("map_load <name> : load a map and purge unused models")
	}
	w, err := h.Models.LoadMap(h.ctx, a.Argv(1).String())
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "%s: version %d, %d leafs, %d clusters, %d models, %d static prop models\n",
		w.Name, w.Version, w.NumLeafs(), w.NumClusters, len(w.Models), len(w.StaticProps.Models))
	return nil
}

func refArg(a cmd.Arguments, i int, def model.RefType) (model.RefType, error) {
	if len(a.Args()) <= i {
		return def, nil
	}
	return model.ParseRefType(a.Argv(i).String())
}

func (h *Host) precacheCmd(a cmd.Arguments) error {
	if n := len(a.Args()); n < 2 || n > 3 {
		return h.usage("mod_precache <name> [ref] : load a model and hold it")
	}
	ref, err := refArg(a, 2, model.RefClient)
	if err != nil {
		return err
	}
	return h.Models.Precache(h.ctx, []string{a.Argv(1).String()}, ref)
}

func (h *Host) releaseCmd(a cmd.Arguments) error {
	if len(a.Args()) != 3 {
		return h.usage("mod_release <name> <ref> : drop one reference")
	}
	ref, err := refArg(a, 2, model.RefClient)
	if err != nil {
		return err
	}
	return h.Models.Registry.ReleaseName(a.Argv(1).String(), ref)
}

func (h *Host) unloadCmd(a cmd.Arguments) error {
	if len(a.Args()) != 2 {
		return h.usage("mod_unload <name> : remove a model regardless of references")
	}
	return h.Models.Registry.Unload(a.Argv(1).String())
}

func (h *Host) purgeCmd(cmd.Arguments) error {
	n := h.Models.Registry.Purge()
	fmt.Fprintf(h.out, "%d models purged\n", n)
	return nil
}

func recordState(r model.Record) string {
	switch {
	case r.Bad:
		return "bad"
	case r.Loaded:
		return "loaded"
	}
	return "pending"
}

func (h *Host) listCmd(cmd.Arguments) error {
	tw := tabwriter.NewWriter(h.out, 0, 8, 1, ' ', 0)
	recs := h.Models.Registry.Records()
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%v\t%v\t%s\n", r.Name, r.Kind, r.Refs, recordState(r))
	}
	tw.Flush()
	fmt.Fprintf(h.out, "%d models\n", len(recs))
	return nil
}

func (h *Host) dynamicCmd(a cmd.Arguments) error {
	if n := len(a.Args()); n < 2 || n > 3 {
		return h.usage("mod_dynamic <name> [client] : load a model in the background")
	}
	client := a.Argv(2).Bool()
	ref := model.RefDynamicServer
	if client {
		ref = model.RefDynamicClient
	}
	rec, err := h.Models.Registry.Acquire(h.ctx, a.Argv(1).String(), ref)
	if err != nil {
		return err
	}
	_, err = h.Models.Queue.RegisterCallback(rec.Name, func(name string, err error) {
		if err != nil {
			fmt.Fprintf(h.out, "%s failed: %v\n", name, err)
			return
		}
		fmt.Fprintf(h.out, "%s ready\n", name)
	}, client, true)
	return err
}

func (h *Host) confirmCmd(a cmd.Arguments) error {
	if len(a.Args()) != 2 {
		return h.usage("mod_dynamic_confirm <name> : finish the server side of a split load")
	}
	return h.Models.Queue.ConfirmServer(model.NormalizeName(a.Argv(1).String()))
}

func (h *Host) cancelCmd(a cmd.Arguments) error {
	if len(a.Args()) != 2 {
		return h.usage("mod_dynamic_cancel <name> : stop a queued background load")
	}
	err := h.Models.Queue.Cancel(model.NormalizeName(a.Argv(1).String()))
	if errors.Is(err, dynload.ErrLoadInFlight) {
		fmt.Fprintln(h.out, "load already running")
		return nil
	}
	return err
}

func (h *Host) lumpInfoCmd(a cmd.Arguments) error {
	if len(a.Args()) != 2 {
		return h.usage("lump_info <file> : list the lumps of a map file")
	}
	c, err := h.Models.OpenContainer(a.Argv(1).String())
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Fprintf(h.out, "%s: version %d, revision %d\n", c.Name(), c.Version(), c.Revision())
	tw := tabwriter.NewWriter(h.out, 0, 8, 1, ' ', 0)
	for id := 0; id < chunk.NumLumps; id++ {
		d := c.Descriptor(id)
		if d.Absent() {
			continue
		}
		var note string
		switch {
		case d.Patched() != nil:
			note = d.Patched().Path
		case d.Compressed():
			note = fmt.Sprintf("lzma %d", d.UncompressedSize)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\tv%d\t%s\n", id, bsp.LumpName(id), d.Offset, d.Length, d.Version, note)
	}
	return tw.Flush()
}

func (h *Host) world() (*bsp.WorldData, error) {
	w := h.Models.Registry.World()
	if w == nil {
		return nil, errors.New("no map loaded")
	}
	return w, nil
}

func (h *Host) worldLeafCmd(a cmd.Arguments) error {
	if len(a.Args()) != 4 {
		return h.usage("world_leaf <x> <y> <z> : show the leaf containing a point")
	}
	w, err := h.world()
	if err != nil {
		return err
	}
	p := mgl32.Vec3{a.Argv(1).Float32(), a.Argv(2).Float32(), a.Argv(3).Float32()}
	n := w.PointLeaf(p)
	l := w.Leafs[n]
	fmt.Fprintf(h.out, "leaf %d: contents %#x, cluster %d, area %d\n", n, l.Contents, l.Cluster, l.Area)
	return nil
}

func (h *Host) areaPortalCmd(a cmd.Arguments) error {
	if len(a.Args()) != 3 {
		return h.usage("areaportal <key> <0|1> : close or open an area portal")
	}
	w, err := h.world()
	if err != nil {
		return err
	}
	w.SetAreaPortalState(a.Argv(1).Int(), a.Argv(2).Bool())
	return nil
}

func (h *Host) manifestSaveCmd(a cmd.Arguments) error {
	path := h.manifest
	if len(a.Args()) == 2 {
		path = a.Argv(1).String()
	}
	if path == "" {
		return h.usage("manifest_save <file> : write the precache manifest")
	}
	return h.Models.SaveManifest(path)
}
