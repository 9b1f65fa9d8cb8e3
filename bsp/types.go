// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

// On-disk records, little endian.

type dplane struct {
	Normal [3]float32
	Dist   float32
	Type   int32
}

type dedge struct {
	V [2]uint16
}

type dtexinfo struct {
	TextureVecs  [2][4]float32 // texels per world unit
	LightmapVecs [2][4]float32 // luxels per world unit
	Flags        int32
	TexData      int32
}

type dtexdata struct {
	Reflectivity  [3]float32
	NameStringID  int32
	Width, Height int32
	ViewWidth     int32
	ViewHeight    int32
}

type dface struct {
	PlaneNum           uint16
	Side               byte
	OnNode             byte
	FirstEdge          int32
	NumEdges           int16
	TexInfo            int16
	DispInfo           int16
	SurfaceFogVolumeID int16
	Styles             [4]byte
	LightOfs           int32
	Area               float32
	LightmapMins       [2]int32
	LightmapSize       [2]int32
	OrigFace           int32
	NumPrims           uint16
	FirstPrimID        uint16
	SmoothingGroups    uint32
}

type dnode struct {
	PlaneNum  int32
	Children  [2]int32 // negative numbers are -(leafs+1)
	Mins      [3]int16
	Maxs      [3]int16
	FirstFace uint16
	NumFaces  uint16
	Area      int16
	_         int16
}

// leaf layout of lump version 1
type dleafV1 struct {
	Contents        int32
	Cluster         int16
	AreaFlags       int16 // area:9 flags:7
	Mins            [3]int16
	Maxs            [3]int16
	FirstLeafFace   uint16
	NumLeafFaces    uint16
	FirstLeafBrush  uint16
	NumLeafBrushes  uint16
	LeafWaterDataID int16
	_               int16
}

// lump version 0 carries the ambient light cube inline
type dleafV0 struct {
	Contents        int32
	Cluster         int16
	AreaFlags       int16
	Mins            [3]int16
	Maxs            [3]int16
	FirstLeafFace   uint16
	NumLeafFaces    uint16
	FirstLeafBrush  uint16
	NumLeafBrushes  uint16
	LeafWaterDataID int16
	AmbientCube     [6][4]byte
	_               int16
}

type dbrush struct {
	FirstSide int32
	NumSides  int32
	Contents  int32
}

type dbrushside struct {
	PlaneNum uint16
	TexInfo  int16
	DispInfo int16
	Bevel    byte
	Thin     byte
}

type dmodel struct {
	Mins, Maxs [3]float32
	Origin     [3]float32
	HeadNode   int32
	FirstFace  int32
	NumFaces   int32
}

type darea struct {
	NumAreaPortals  int32
	FirstAreaPortal int32
}

type dareaportal struct {
	PortalKey           uint16
	OtherArea           uint16
	FirstClipPortalVert uint16
	NumClipPortalVerts  uint16
	PlaneNum            int32
}

type dcubemap struct {
	Origin [3]int32
	Size   int32
}

type dleafwater struct {
	SurfaceZ         float32
	MinZ             float32
	SurfaceTexInfoID int16
	_                int16
}

type ddispneighbor struct {
	Index        uint16
	Orientation  byte
	Span         byte
	NeighborSpan byte
	_            byte
}

type ddispedge struct {
	Sub [2]ddispneighbor
}

type ddispcorner struct {
	Neighbors    [4]uint16
	NumNeighbors byte
	_            byte
}

type ddispinfo struct {
	StartPosition               [3]float32
	DispVertStart               int32
	DispTriStart                int32
	Power                       int32
	MinTess                     int32
	SmoothingAngle              float32
	Contents                    int32
	MapFace                     uint16
	_                           uint16
	LightmapAlphaStart          int32
	LightmapSamplePositionStart int32
	EdgeNeighbors               [4]ddispedge
	CornerNeighbors             [4]ddispcorner
	AllowedVerts                [10]uint32
}

type ddispvert struct {
	Vector [3]float32
	Dist   float32
	Alpha  float32
}

type ddisptri struct {
	Tags uint16
}

type dgamelump struct {
	ID      int32
	Flags   uint16
	Version uint16
	FileOfs int32
	FileLen int32
}

type dphysmodel struct {
	ModelIndex  int32
	DataSize    int32
	KeyDataSize int32
	SolidCount  int32
}
