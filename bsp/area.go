// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

func (a *assembly) loadAreas() error {
	areas, err := readLump[darea](a, LumpAreas, MaxMapAreas)
	if err != nil {
		return err
	}
	portals, err := readLump[dareaportal](a, LumpAreaPortals, MaxMapAreaPortals)
	if err != nil {
		return err
	}
	verts, err := readLump[mgl32.Vec3](a, LumpClipPortalVerts, MaxMapPortalVerts)
	if err != nil {
		return err
	}
	w := a.w
	w.Areas = make([]Area, len(areas))
	for i, ar := range areas {
		first, n := int(ar.FirstAreaPortal), int(ar.NumAreaPortals)
		if first < 0 || n < 0 || first+n > len(portals) {
			return a.formatError(LumpAreas,
				fmt.Sprintf("portals inside %d area portals", len(portals)),
				fmt.Sprintf("area %d portals [%d,%d)", i, first, first+n))
		}
		w.Areas[i] = Area{FirstPortal: first, NumPortals: n}
	}
	w.AreaPortals = make([]AreaPortal, len(portals))
	for i, p := range portals {
		if int(p.OtherArea) >= len(areas) {
			return a.indexError(LumpAreaPortals, "other area", int(p.OtherArea), len(areas))
		}
		if int(p.FirstClipPortalVert)+int(p.NumClipPortalVerts) > len(verts) {
			return a.formatError(LumpAreaPortals,
				fmt.Sprintf("clip verts inside %d entries", len(verts)),
				fmt.Sprintf("portal %d verts [%d,%d)", i, p.FirstClipPortalVert, int(p.FirstClipPortalVert)+int(p.NumClipPortalVerts)))
		}
		if p.PlaneNum < 0 || int(p.PlaneNum) >= len(w.Planes) {
			return a.indexError(LumpAreaPortals, "plane index", int(p.PlaneNum), len(w.Planes))
		}
		w.AreaPortals[i] = AreaPortal{
			PortalKey:     int(p.PortalKey),
			OtherArea:     int(p.OtherArea),
			FirstClipVert: int(p.FirstClipPortalVert),
			NumClipVerts:  int(p.NumClipPortalVerts),
			Plane:         int(p.PlaneNum),
		}
	}
	w.ClipPortalVerts = verts
	w.portalOpen = make(map[int]bool)
	w.FloodAreas()
	return nil
}

// FloodAreas recomputes which areas see each other through open portals.
func (w *WorldData) FloodAreas() {
	flood := 0
	for i := range w.Areas {
		w.Areas[i].FloodNum = 0
	}
	for i := range w.Areas {
		if w.Areas[i].FloodNum != 0 {
			continue
		}
		flood++
		w.floodArea(i, flood)
	}
}

func (w *WorldData) floodArea(start, flood int) {
	stack := []int{start}
	w.Areas[start].FloodNum = flood
	for len(stack) > 0 {
		ai := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ar := &w.Areas[ai]
		for _, p := range w.AreaPortals[ar.FirstPortal : ar.FirstPortal+ar.NumPortals] {
			if !w.portalOpen[p.PortalKey] {
				continue
			}
			other := &w.Areas[p.OtherArea]
			if other.FloodNum == flood {
				continue
			}
			other.FloodNum = flood
			stack = append(stack, p.OtherArea)
		}
	}
}

// SetAreaPortalState opens or closes every portal with key and refloods.
func (w *WorldData) SetAreaPortalState(key int, open bool) {
	if w.portalOpen == nil {
		w.portalOpen = make(map[int]bool)
	}
	if w.portalOpen[key] == open {
		return
	}
	if open {
		w.portalOpen[key] = true
	} else {
		delete(w.portalOpen, key)
	}
	w.FloodAreas()
}

func (w *WorldData) AreaPortalOpen(key int) bool {
	return w.portalOpen[key]
}

// AreasConnected reports whether a and b are joined through open portals.
func (w *WorldData) AreasConnected(a, b int) bool {
	if a < 0 || b < 0 || a >= len(w.Areas) || b >= len(w.Areas) {
		return false
	}
	return w.Areas[a].FloodNum == w.Areas[b].FloodNum
}

func (a *assembly) loadCubemaps() error {
	in, err := readLump[dcubemap](a, LumpCubemaps, MaxMapCubemapSamples)
	if err != nil {
		return err
	}
	a.w.Cubemaps = make([]Cubemap, len(in))
	for i, c := range in {
		a.w.Cubemaps[i] = Cubemap{Origin: c.Origin, Size: c.Size}
	}
	return nil
}
