// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

func (a *assembly) loadTexData() error {
	data, err := a.raw(LumpTexDataStringData, MaxMapTexDataStringData)
	if err != nil {
		return err
	}
	// one copy for all names
	pool := string(data)
	table, err := readLump[int32](a, LumpTexDataStringTable, MaxMapTexDataStringTable)
	if err != nil {
		return err
	}
	in, err := readLump[dtexdata](a, LumpTexData, MaxMapTexData)
	if err != nil {
		return err
	}
	a.w.TexData = make([]TexData, len(in))
	for i, t := range in {
		if t.NameStringID < 0 || int(t.NameStringID) >= len(table) {
			return a.indexError(LumpTexData, "string table index", int(t.NameStringID), len(table))
		}
		off := int(table[t.NameStringID])
		if off < 0 || off >= len(pool) {
			return a.indexError(LumpTexDataStringTable, "string offset", off, len(pool))
		}
		name := pool[off:]
		if end := strings.IndexByte(name, 0); end >= 0 {
			name = name[:end]
		}
		a.w.TexData[i] = TexData{
			Name:         name,
			Width:        t.Width,
			Height:       t.Height,
			Reflectivity: mgl32.Vec3(t.Reflectivity),
		}
	}
	return nil
}

type surfaceKey struct {
	name  string
	flags int32
}

func (a *assembly) loadTexInfo() error {
	in, err := readLump[dtexinfo](a, LumpTexInfo, MaxMapTexInfo)
	if err != nil {
		return err
	}
	a.w.TexInfo = make([]TexInfo, len(in))
	seen := make(map[surfaceKey]int)
	for i, t := range in {
		ti := TexInfo{
			TextureVecs:  t.TextureVecs,
			LightmapVecs: t.LightmapVecs,
			Flags:        t.Flags,
			TexData:      int(t.TexData),
			Surface:      -1,
		}
		if t.TexData >= 0 {
			if int(t.TexData) >= len(a.w.TexData) {
				return a.indexError(LumpTexInfo, "texdata index", int(t.TexData), len(a.w.TexData))
			}
			td := &a.w.TexData[t.TexData]
			k := surfaceKey{strings.ToLower(td.Name), t.Flags}
			s, ok := seen[k]
			if !ok {
				s = len(a.w.Surfaces)
				seen[k] = s
				a.w.Surfaces = append(a.w.Surfaces, Surface{
					Name:         td.Name,
					MaterialKey:  -1,
					Flags:        t.Flags,
					Width:        td.Width,
					Height:       td.Height,
					Reflectivity: td.Reflectivity,
				})
			}
			ti.Surface = s
		}
		a.w.TexInfo[i] = ti
	}
	if a.Materials == nil {
		return nil
	}
	for i := range a.w.Surfaces {
		s := &a.w.Surfaces[i]
		k, err := a.Materials.ResolveMaterial(s.Name)
		if err != nil {
			a.log.WithError(err).WithField("material", s.Name).Warn("unresolved material")
			continue
		}
		s.MaterialKey = k
	}
	return nil
}

// SurfaceName is a convenience for diagnostics.
func (w *WorldData) SurfaceName(texinfo int) string {
	if texinfo < 0 || texinfo >= len(w.TexInfo) || w.TexInfo[texinfo].Surface < 0 {
		return fmt.Sprintf("<texinfo %d>", texinfo)
	}
	return w.Surfaces[w.TexInfo[texinfo].Surface].Name
}
