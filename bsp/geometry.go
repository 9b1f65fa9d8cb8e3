// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"govbsp/collide"
)

func (a *assembly) loadPlanes() error {
	in, err := readLump[dplane](a, LumpPlanes, MaxMapPlanes)
	if err != nil {
		return err
	}
	a.w.Planes = make([]collide.Plane, len(in))
	for i, p := range in {
		a.w.Planes[i] = collide.NewPlane(mgl32.Vec3(p.Normal), p.Dist)
	}
	return nil
}

func (a *assembly) loadVertexes() error {
	in, err := readLump[mgl32.Vec3](a, LumpVertexes, MaxMapVerts)
	if err != nil {
		return err
	}
	a.w.Vertexes = in
	return nil
}

func (a *assembly) loadEdges() error {
	in, err := readLump[dedge](a, LumpEdges, MaxMapEdges)
	if err != nil {
		return err
	}
	a.w.Edges = make([][2]uint16, len(in))
	for i, e := range in {
		for _, v := range e.V {
			if int(v) >= len(a.w.Vertexes) {
				return a.indexError(LumpEdges, "vertex index", int(v), len(a.w.Vertexes))
			}
		}
		a.w.Edges[i] = e.V
	}
	return nil
}

// loadSurfEdges resolves every surfedge to the vertex it starts at. A
// negative edge is walked backwards.
func (a *assembly) loadSurfEdges() error {
	in, err := readLump[int32](a, LumpSurfEdges, MaxMapSurfEdges)
	if err != nil {
		return err
	}
	a.w.SurfEdges = in
	a.w.FaceVerts = make([]uint16, len(in))
	for i, e := range in {
		idx, end := int(e), 0
		if e < 0 {
			idx, end = -int(e), 1
		}
		if idx >= len(a.w.Edges) {
			return a.indexError(LumpSurfEdges, "edge index", idx, len(a.w.Edges))
		}
		a.w.FaceVerts[i] = a.w.Edges[idx][end]
	}
	return nil
}

func (a *assembly) loadLighting() error {
	lump := LumpLighting
	if a.HDR {
		if a.c.Descriptor(LumpLightingHDR).Absent() {
			a.log.Debug("no HDR lighting, using LDR")
		} else {
			lump = LumpLightingHDR
			a.w.HDR = true
		}
	}
	data, err := a.raw(lump, MaxMapLighting)
	if err != nil {
		return err
	}
	a.w.Lighting = data
	return nil
}

func (a *assembly) loadFaces() error {
	lump := LumpFaces
	if a.w.HDR && !a.c.Descriptor(LumpFacesHDR).Absent() {
		lump = LumpFacesHDR
	}
	in, err := readLump[dface](a, lump, MaxMapFaces)
	if err != nil {
		return err
	}
	a.w.Faces = make([]Face, len(in))
	for i, f := range in {
		if int(f.PlaneNum) >= len(a.w.Planes) {
			return a.indexError(lump, "plane index", int(f.PlaneNum), len(a.w.Planes))
		}
		if f.TexInfo >= 0 && int(f.TexInfo) >= len(a.w.TexInfo) {
			return a.indexError(lump, "texinfo index", int(f.TexInfo), len(a.w.TexInfo))
		}
		first, n := int(f.FirstEdge), int(f.NumEdges)
		if first < 0 || n < 0 || first+n > len(a.w.FaceVerts) {
			return a.formatError(lump,
				fmt.Sprintf("edge range inside %d surfedges", len(a.w.FaceVerts)),
				fmt.Sprintf("face %d edges [%d,%d)", i, first, first+n))
		}
		if f.LightOfs >= 0 && int(f.LightOfs) > len(a.w.Lighting) {
			return a.indexError(lump, "light offset", int(f.LightOfs), len(a.w.Lighting))
		}
		a.w.Faces[i] = Face{
			Plane:        int(f.PlaneNum),
			Side:         f.Side != 0,
			FirstVert:    first,
			NumVerts:     n,
			TexInfo:      int(f.TexInfo),
			DispInfo:     int(f.DispInfo),
			Styles:       f.Styles,
			LightOfs:     f.LightOfs,
			LightmapMins: f.LightmapMins,
			LightmapSize: f.LightmapSize,
		}
	}
	return nil
}

// loadVertNormals assigns consecutive normal index runs to the faces in
// face order.
func (a *assembly) loadVertNormals() error {
	normals, err := readLump[mgl32.Vec3](a, LumpVertNormals, MaxMapVertNormals)
	if err != nil {
		return err
	}
	indices, err := readLump[uint16](a, LumpVertNormalIndices, MaxMapVertNormalIndices)
	if err != nil {
		return err
	}
	for _, idx := range indices {
		if int(idx) >= len(normals) {
			return a.indexError(LumpVertNormalIndices, "normal index", int(idx), len(normals))
		}
	}
	a.w.VertNormals = normals
	a.w.VertNormalIndices = indices
	next := 0
	for i := range a.w.Faces {
		a.w.Faces[i].FirstNormal = next
		next += a.w.Faces[i].NumVerts
	}
	if len(indices) > 0 && next > len(indices) {
		return a.formatError(LumpVertNormalIndices,
			fmt.Sprintf("at least %d indices", next),
			fmt.Sprintf("%d", len(indices)))
	}
	return nil
}
