// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

func (a *assembly) loadBrushes() error {
	brushes, err := readLump[dbrush](a, LumpBrushes, MaxMapBrushes)
	if err != nil {
		return err
	}
	sides, err := readLump[dbrushside](a, LumpBrushSides, MaxMapBrushSides)
	if err != nil {
		return err
	}
	for _, b := range a.w.LeafBrushes {
		if int(b) >= len(brushes) {
			return a.indexError(LumpLeafBrushes, "brush index", int(b), len(brushes))
		}
	}
	for i, s := range sides {
		if int(s.PlaneNum) >= len(a.w.Planes) {
			return a.indexError(LumpBrushSides, "plane index", int(s.PlaneNum), len(a.w.Planes))
		}
		if s.TexInfo >= 0 && int(s.TexInfo) >= len(a.w.TexInfo) {
			return a.formatError(LumpBrushSides,
				fmt.Sprintf("texinfo in [0,%d)", len(a.w.TexInfo)),
				fmt.Sprintf("side %d texinfo %d", i, s.TexInfo))
		}
	}

	a.w.Brushes = make([]Brush, len(brushes))
	a.w.BrushSides = make([]BrushSide, 0, len(sides))
	for i, b := range brushes {
		first, n := int(b.FirstSide), int(b.NumSides)
		if first < 0 || n < 0 || first+n > len(sides) {
			return a.formatError(LumpBrushes,
				fmt.Sprintf("sides inside %d brush sides", len(sides)),
				fmt.Sprintf("brush %d sides [%d,%d)", i, first, first+n))
		}
		bs := sides[first : first+n]
		if box, ok := a.boxBrush(bs); ok {
			a.w.Brushes[i] = Brush{
				Contents:  b.Contents,
				NumSides:  NumSidesBox,
				FirstSide: len(a.w.BoxBrushes),
			}
			a.w.BoxBrushes = append(a.w.BoxBrushes, box)
			continue
		}
		a.w.Brushes[i] = Brush{
			Contents:  b.Contents,
			NumSides:  n,
			FirstSide: len(a.w.BrushSides),
		}
		for _, s := range bs {
			a.w.BrushSides = append(a.w.BrushSides, BrushSide{
				Plane:    int(s.PlaneNum),
				Surface:  a.sideSurface(s.TexInfo),
				DispInfo: s.DispInfo,
				Bevel:    s.Bevel != 0,
				Thin:     s.Thin != 0,
			})
		}
	}
	return nil
}

func (a *assembly) sideSurface(texinfo int16) int16 {
	if texinfo < 0 {
		return -1
	}
	return int16(a.w.TexInfo[texinfo].Surface)
}

// boxBrush folds six axial sides, one per axis and direction, into a box.
func (a *assembly) boxBrush(sides []dbrushside) (BoxBrush, bool) {
	var box BoxBrush
	if len(sides) != 6 {
		return box, false
	}
	var seen [6]bool
	for _, s := range sides {
		p := &a.w.Planes[s.PlaneNum]
		if !p.Axial() {
			return box, false
		}
		axis := int(p.Type)
		var slot int
		switch p.Normal[axis] {
		case 1:
			slot = axis + 3
			box.Maxs[axis] = p.Dist
		case -1:
			slot = axis
			box.Mins[axis] = -p.Dist
		default:
			return box, false
		}
		if seen[slot] {
			return box, false
		}
		seen[slot] = true
		box.SurfaceIndex[slot] = a.sideSurface(s.TexInfo)
	}
	return box, true
}

func (a *assembly) loadModels() error {
	in, err := readLump[dmodel](a, LumpModels, MaxMapModels)
	if err != nil {
		return err
	}
	a.w.Models = make([]Submodel, len(in))
	for i, m := range in {
		if len(a.w.Nodes) > 0 && (m.HeadNode < 0 || int(m.HeadNode) >= len(a.w.Nodes)) {
			return a.indexError(LumpModels, "head node", int(m.HeadNode), len(a.w.Nodes))
		}
		if m.FirstFace < 0 || m.NumFaces < 0 || int(m.FirstFace+m.NumFaces) > len(a.w.Faces) {
			return a.formatError(LumpModels,
				fmt.Sprintf("faces inside %d faces", len(a.w.Faces)),
				fmt.Sprintf("model %d faces [%d,%d)", i, m.FirstFace, m.FirstFace+m.NumFaces))
		}
		// spread the mins / maxs by a unit
		a.w.Models[i] = Submodel{
			Mins:      mgl32.Vec3(m.Mins).Sub(mgl32.Vec3{1, 1, 1}),
			Maxs:      mgl32.Vec3(m.Maxs).Add(mgl32.Vec3{1, 1, 1}),
			Origin:    mgl32.Vec3(m.Origin),
			HeadNode:  int(m.HeadNode),
			FirstFace: int(m.FirstFace),
			NumFaces:  int(m.NumFaces),
		}
	}
	return nil
}
