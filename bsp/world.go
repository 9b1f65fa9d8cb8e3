// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"archive/zip"

	"github.com/go-gl/mathgl/mgl32"

	"govbsp/collide"
)

// Surface is one entry of the texture table: a material name with the
// flags it is used with.
type Surface struct {
	Name         string
	MaterialKey  int
	Flags        int32
	Width        int32
	Height       int32
	Reflectivity mgl32.Vec3
}

type TexData struct {
	Name          string
	Width, Height int32
	Reflectivity  mgl32.Vec3
}

type TexInfo struct {
	TextureVecs  [2][4]float32
	LightmapVecs [2][4]float32
	Flags        int32
	TexData      int
	Surface      int // -1 for none
}

type Face struct {
	Plane        int
	Side         bool
	FirstVert    int // into WorldData.FaceVerts
	NumVerts     int
	FirstNormal  int // into WorldData.VertNormalIndices
	TexInfo      int // -1 for none
	DispInfo     int // -1 for none
	Styles       [4]byte
	LightOfs     int32
	LightmapMins [2]int32
	LightmapSize [2]int32
}

type Leaf struct {
	Contents        int32
	Cluster         int16 // -1 outside the world
	Area            int16
	Flags           uint16
	Mins, Maxs      mgl32.Vec3
	FirstLeafFace   int
	NumLeafFaces    int
	FirstLeafBrush  int
	NumLeafBrushes  int
	LeafWaterDataID int16
	AmbientCube     [6][4]byte
	FirstDisp       int
	NumDisps        int
}

type Node struct {
	Plane      int
	Children   [2]int32 // negative numbers are -(leaf+1)
	Mins, Maxs mgl32.Vec3
	FirstFace  int
	NumFaces   int
	Area       int16
}

// NumSidesBox marks a brush whose sides were folded into a BoxBrush.
const NumSidesBox = 0xFFFF

type Brush struct {
	Contents  int32
	NumSides  int // NumSidesBox for box brushes
	FirstSide int // into BrushSides, or BoxBrushes for boxes
}

func (b *Brush) IsBox() bool {
	return b.NumSides == NumSidesBox
}

type BrushSide struct {
	Plane    int
	Surface  int16 // -1 for none
	DispInfo int16
	Bevel    bool
	Thin     bool
}

// BoxBrush is an axis aligned brush. SurfaceIndex holds the surfaces of the
// -x, -y, -z, +x, +y, +z sides.
type BoxBrush struct {
	Mins, Maxs   mgl32.Vec3
	SurfaceIndex [6]int16
}

// Submodel is a brush model of the world, *0 is the world itself.
type Submodel struct {
	Mins, Maxs mgl32.Vec3
	Origin     mgl32.Vec3
	HeadNode   int
	FirstFace  int
	NumFaces   int
}

type LeafWater struct {
	SurfaceZ         float32
	MinZ             float32
	SurfaceTexInfoID int16
}

type Cubemap struct {
	Origin [3]int32
	Size   int32
}

type Area struct {
	FirstPortal int
	NumPortals  int
	FloodNum    int
}

type AreaPortal struct {
	PortalKey     int
	OtherArea     int
	FirstClipVert int
	NumClipVerts  int
	Plane         int
}

type Displacement struct {
	Face          int
	StartPosition mgl32.Vec3
	Power         int
	Contents      int32
	FirstVert     int
	FirstTri      int
	Tree          *collide.DispTree
}

type GameLump struct {
	ID      int32
	Flags   uint16
	Version uint16
	Data    []byte
}

// StaticProps is the decoded head of the 'sprp' game lump.
type StaticProps struct {
	Models   []string
	NumLeafs int
	NumProps int
}

// DetailProps is the decoded head of the 'dprp' game lump.
type DetailProps struct {
	Models     []string
	NumSprites int
	NumProps   int
}

type Visibility struct {
	NumClusters int
	Offsets     [][2]int32 // PVS and PAS offsets per cluster
	data        []byte
}

// WorldData is everything decoded from one map file. All cross references
// are indices into its slices.
type WorldData struct {
	Name     string
	Version  int32
	Revision int32

	Entities []*Entity

	TexData  []TexData
	TexInfo  []TexInfo
	Surfaces []Surface

	Planes    []collide.Plane
	Vertexes  []mgl32.Vec3
	Edges     [][2]uint16
	SurfEdges []int32
	FaceVerts []uint16 // surfedges resolved to vertex indices

	Lighting []byte
	HDR      bool

	Faces             []Face
	VertNormals       []mgl32.Vec3
	VertNormalIndices []uint16

	Leafs       []Leaf // last entry is an empty sentinel
	NumClusters int
	LeafFaces   []uint16
	LeafBrushes []uint16
	LeafWater   []LeafWater

	Nodes []Node

	Brushes    []Brush
	BrushSides []BrushSide
	BoxBrushes []BoxBrush

	Models []Submodel

	Displacements []Displacement
	LeafDisps     []uint16

	Vis Visibility

	Areas           []Area
	AreaPortals     []AreaPortal
	ClipPortalVerts []mgl32.Vec3
	portalOpen      map[int]bool

	Cubemaps []Cubemap

	GameLumps   []GameLump
	StaticProps StaticProps
	DetailProps DetailProps

	pak *zip.Reader
}

// NumLeafs excludes the sentinel.
func (w *WorldData) NumLeafs() int {
	if len(w.Leafs) == 0 {
		return 0
	}
	return len(w.Leafs) - 1
}

// PakFile returns the embedded archive or nil.
func (w *WorldData) PakFile() *zip.Reader {
	return w.pak
}

func (w *WorldData) NodePlane(n int) *collide.Plane {
	return &w.Planes[w.Nodes[n].Plane]
}

func (w *WorldData) NodeChild(n, side int) int32 {
	return w.Nodes[n].Children[side]
}

func (w *WorldData) headNode() (int, bool) {
	if len(w.Nodes) == 0 {
		return 0, false
	}
	if len(w.Models) > 0 {
		return w.Models[0].HeadNode, true
	}
	return 0, true
}

// PointLeaf returns the leaf containing p.
func (w *WorldData) PointLeaf(p mgl32.Vec3) int {
	head, ok := w.headNode()
	if !ok {
		return 0
	}
	return collide.PointLeaf(w, head, p)
}

// BoxLeafs returns the leafs touched by the box.
func (w *WorldData) BoxLeafs(mins, maxs mgl32.Vec3) []int {
	head, ok := w.headNode()
	if !ok {
		return nil
	}
	var leafs []int
	collide.BoxLeafs(w, head, mins, maxs, func(l int) {
		leafs = append(leafs, l)
	})
	return leafs
}

// LeafDisplacements returns the displacement indices that touch leaf.
func (w *WorldData) LeafDisplacements(leaf int) []uint16 {
	if leaf < 0 || leaf >= len(w.Leafs) {
		return nil
	}
	l := &w.Leafs[leaf]
	return w.LeafDisps[l.FirstDisp : l.FirstDisp+l.NumDisps]
}

// Face vertex positions in winding order.
func (w *WorldData) FaceVertexes(face int) []mgl32.Vec3 {
	f := &w.Faces[face]
	out := make([]mgl32.Vec3, f.NumVerts)
	for i := range out {
		out[i] = w.Vertexes[w.FaceVerts[f.FirstVert+i]]
	}
	return out
}
