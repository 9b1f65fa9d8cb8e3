// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

func shortVec(v [3]int16) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func leafFromV1(l dleafV1) Leaf {
	return Leaf{
		Contents:        l.Contents,
		Cluster:         l.Cluster,
		Area:            l.AreaFlags & 0x1ff,
		Flags:           uint16(l.AreaFlags) >> 9,
		Mins:            shortVec(l.Mins),
		Maxs:            shortVec(l.Maxs),
		FirstLeafFace:   int(l.FirstLeafFace),
		NumLeafFaces:    int(l.NumLeafFaces),
		FirstLeafBrush:  int(l.FirstLeafBrush),
		NumLeafBrushes:  int(l.NumLeafBrushes),
		LeafWaterDataID: l.LeafWaterDataID,
	}
}

func (a *assembly) loadLeafs() error {
	var leafs []Leaf
	switch v := a.c.Descriptor(LumpLeafs).Version; v {
	case 0:
		in, err := readLump[dleafV0](a, LumpLeafs, MaxMapLeafs)
		if err != nil {
			return err
		}
		leafs = make([]Leaf, len(in), len(in)+1)
		for i, l := range in {
			leafs[i] = leafFromV1(dleafV1{
				Contents:        l.Contents,
				Cluster:         l.Cluster,
				AreaFlags:       l.AreaFlags,
				Mins:            l.Mins,
				Maxs:            l.Maxs,
				FirstLeafFace:   l.FirstLeafFace,
				NumLeafFaces:    l.NumLeafFaces,
				FirstLeafBrush:  l.FirstLeafBrush,
				NumLeafBrushes:  l.NumLeafBrushes,
				LeafWaterDataID: l.LeafWaterDataID,
			})
			leafs[i].AmbientCube = l.AmbientCube
		}
	case 1:
		in, err := readLump[dleafV1](a, LumpLeafs, MaxMapLeafs)
		if err != nil {
			return err
		}
		leafs = make([]Leaf, len(in), len(in)+1)
		for i, l := range in {
			leafs[i] = leafFromV1(l)
		}
	default:
		return a.formatError(LumpLeafs, "leaf lump version 0 or 1", fmt.Sprintf("version %d", v))
	}
	if len(leafs) == 0 {
		return a.formatError(LumpLeafs, "at least one leaf", "none")
	}
	if leafs[0].Contents&ContentsSolid == 0 {
		return a.formatError(LumpLeafs, "leaf 0 to be solid", fmt.Sprintf("contents %#x", leafs[0].Contents))
	}
	clusters := 0
	for i := range leafs {
		if c := int(leafs[i].Cluster); c >= clusters {
			clusters = c + 1
		}
	}
	// queries that fall off the tree land in the empty sentinel
	leafs = append(leafs, Leaf{Contents: ContentsEmpty, Cluster: -1, LeafWaterDataID: -1})
	a.w.Leafs = leafs
	a.w.NumClusters = clusters
	return nil
}

func (a *assembly) loadLeafFaces() error {
	in, err := readLump[uint16](a, LumpLeafFaces, MaxMapLeafFaces)
	if err != nil {
		return err
	}
	for _, f := range in {
		if int(f) >= len(a.w.Faces) {
			return a.indexError(LumpLeafFaces, "face index", int(f), len(a.w.Faces))
		}
	}
	for i := 0; i < a.w.NumLeafs(); i++ {
		l := &a.w.Leafs[i]
		if l.FirstLeafFace+l.NumLeafFaces > len(in) {
			return a.formatError(LumpLeafFaces,
				fmt.Sprintf("leaf faces inside %d entries", len(in)),
				fmt.Sprintf("leaf %d faces [%d,%d)", i, l.FirstLeafFace, l.FirstLeafFace+l.NumLeafFaces))
		}
	}
	a.w.LeafFaces = in
	return nil
}

// Brush indices are checked once the brushes are known.
func (a *assembly) loadLeafBrushes() error {
	in, err := readLump[uint16](a, LumpLeafBrushes, MaxMapLeafBrushes)
	if err != nil {
		return err
	}
	for i := 0; i < a.w.NumLeafs(); i++ {
		l := &a.w.Leafs[i]
		if l.FirstLeafBrush+l.NumLeafBrushes > len(in) {
			return a.formatError(LumpLeafBrushes,
				fmt.Sprintf("leaf brushes inside %d entries", len(in)),
				fmt.Sprintf("leaf %d brushes [%d,%d)", i, l.FirstLeafBrush, l.FirstLeafBrush+l.NumLeafBrushes))
		}
	}
	a.w.LeafBrushes = in
	return nil
}

func (a *assembly) loadLeafWater() error {
	in, err := readLump[dleafwater](a, LumpLeafWaterData, MaxMapLeafWaterData)
	if err != nil {
		return err
	}
	a.w.LeafWater = make([]LeafWater, len(in))
	for i, w := range in {
		a.w.LeafWater[i] = LeafWater{
			SurfaceZ:         w.SurfaceZ,
			MinZ:             w.MinZ,
			SurfaceTexInfoID: w.SurfaceTexInfoID,
		}
	}
	for i := 0; i < a.w.NumLeafs(); i++ {
		if id := int(a.w.Leafs[i].LeafWaterDataID); id >= len(in) {
			return a.indexError(LumpLeafs, "leaf water index", id, len(in))
		}
	}
	return nil
}

func (a *assembly) loadNodes() error {
	in, err := readLump[dnode](a, LumpNodes, MaxMapNodes)
	if err != nil {
		return err
	}
	a.w.Nodes = make([]Node, len(in))
	for i, n := range in {
		if n.PlaneNum < 0 || int(n.PlaneNum) >= len(a.w.Planes) {
			return a.indexError(LumpNodes, "plane index", int(n.PlaneNum), len(a.w.Planes))
		}
		for _, c := range n.Children {
			if c >= 0 {
				if int(c) >= len(in) {
					return a.indexError(LumpNodes, "child node", int(c), len(in))
				}
				continue
			}
			if leaf := int(-c - 1); leaf >= a.w.NumLeafs() {
				return a.indexError(LumpNodes, "child leaf", leaf, a.w.NumLeafs())
			}
		}
		if int(n.FirstFace)+int(n.NumFaces) > len(a.w.Faces) {
			return a.indexError(LumpNodes, "face range end", int(n.FirstFace)+int(n.NumFaces), len(a.w.Faces)+1)
		}
		a.w.Nodes[i] = Node{
			Plane:     int(n.PlaneNum),
			Children:  n.Children,
			Mins:      shortVec(n.Mins),
			Maxs:      shortVec(n.Maxs),
			FirstFace: int(n.FirstFace),
			NumFaces:  int(n.NumFaces),
			Area:      n.Area,
		}
	}
	return nil
}
