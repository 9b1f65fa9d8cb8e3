// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"govbsp/collide"
)

// dispLeafEpsilon grows displacement bounds before they are pushed down
// the tree.
const dispLeafEpsilon = 1

func (a *assembly) loadDisplacements() error {
	infos, err := readLump[ddispinfo](a, LumpDispInfo, MaxMapDispInfo)
	if err != nil {
		return err
	}
	verts, err := readLump[ddispvert](a, LumpDispVerts, MaxMapDispVerts)
	if err != nil {
		return err
	}
	tris, err := readLump[ddisptri](a, LumpDispTris, MaxMapDispTris)
	if err != nil {
		return err
	}
	a.w.Displacements = make([]Displacement, 0, len(infos))
	for fi := range a.w.Faces {
		f := &a.w.Faces[fi]
		if f.DispInfo < 0 {
			continue
		}
		if f.DispInfo >= len(infos) {
			return a.indexError(LumpFaces, "dispinfo index", f.DispInfo, len(infos))
		}
		if f.NumVerts != 4 {
			return a.formatError(LumpDispInfo, "4 boundary points",
				fmt.Sprintf("face %d has %d", fi, f.NumVerts))
		}
		d, err := a.buildDisplacement(fi, &infos[f.DispInfo], verts, tris)
		if err != nil {
			return err
		}
		a.w.Displacements = append(a.w.Displacements, d)
	}
	a.mapLeafDisplacements()
	return nil
}

func (a *assembly) buildDisplacement(face int, info *ddispinfo, verts []ddispvert, tris []ddisptri) (Displacement, error) {
	power := int(info.Power)
	if power < collide.MinDispPower || power > collide.MaxDispPower {
		return Displacement{}, a.formatError(LumpDispInfo,
			fmt.Sprintf("power in [%d,%d]", collide.MinDispPower, collide.MaxDispPower),
			fmt.Sprintf("face %d power %d", face, power))
	}
	nv, nt := collide.DispVertCount(power), collide.DispTriCount(power)
	vs, ts := int(info.DispVertStart), int(info.DispTriStart)
	if vs < 0 || vs+nv > len(verts) {
		return Displacement{}, a.formatError(LumpDispVerts,
			fmt.Sprintf("verts inside %d entries", len(verts)),
			fmt.Sprintf("face %d verts [%d,%d)", face, vs, vs+nv))
	}
	dv := make([]collide.DispVert, nv)
	for i := range dv {
		v := &verts[vs+i]
		dv[i] = collide.DispVert{Vector: mgl32.Vec3(v.Vector), Dist: v.Dist, Alpha: v.Alpha}
	}
	var tags []uint16
	if ts >= 0 && ts+nt <= len(tris) {
		tags = make([]uint16, nt)
		for i := range tags {
			tags[i] = tris[ts+i].Tags
		}
	}
	var corners [4]mgl32.Vec3
	copy(corners[:], a.w.FaceVertexes(face))
	start := mgl32.Vec3(info.StartPosition)
	tree, err := collide.BuildDispTree(corners, start, power, dv, tags, info.Contents)
	if err != nil {
		return Displacement{}, a.formatError(LumpDispInfo, "buildable displacement", err.Error())
	}
	return Displacement{
		Face:          face,
		StartPosition: start,
		Power:         power,
		Contents:      info.Contents,
		FirstVert:     vs,
		FirstTri:      ts,
		Tree:          tree,
	}, nil
}

// mapLeafDisplacements builds the inverse leaf to displacement lists.
func (a *assembly) mapLeafDisplacements() {
	w := a.w
	perLeaf := make([][]uint16, len(w.Leafs))
	eps := mgl32.Vec3{dispLeafEpsilon, dispLeafEpsilon, dispLeafEpsilon}
	for i := range w.Displacements {
		mins, maxs := w.Displacements[i].Tree.Bounds()
		for _, l := range w.BoxLeafs(mins.Sub(eps), maxs.Add(eps)) {
			perLeaf[l] = append(perLeaf[l], uint16(i))
		}
	}
	w.LeafDisps = w.LeafDisps[:0]
	for l := range w.Leafs {
		w.Leafs[l].FirstDisp = len(w.LeafDisps)
		w.Leafs[l].NumDisps = len(perLeaf[l])
		w.LeafDisps = append(w.LeafDisps, perLeaf[l]...)
	}
}
