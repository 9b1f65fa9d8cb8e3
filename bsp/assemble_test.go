// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"

	"govbsp/chunk"
	"govbsp/collide"
)

type testMap struct {
	t *testing.T
	w *chunk.Writer
}

func newTestMap(t *testing.T) *testMap {
	m := &testMap{t: t, w: chunk.NewWriter(20)}
	m.leafs(dleafV1{Contents: ContentsSolid, Cluster: -1, LeafWaterDataID: -1})
	return m
}

func (m *testMap) lump(id int, version int32, v any) {
	m.t.Helper()
	if err := m.w.SetStruct(id, version, v); err != nil {
		m.t.Fatal(err)
	}
}

func (m *testMap) leafs(ls ...dleafV1) {
	m.lump(LumpLeafs, 1, ls)
}

func noPatches(string) (chunk.File, int64, error) {
	return nil, 0, os.ErrNotExist
}

func (m *testMap) open() *chunk.Container {
	m.t.Helper()
	img, err := m.w.Bytes()
	if err != nil {
		m.t.Fatal(err)
	}
	c, err := chunk.OpenBytes("test.bsp", img, chunk.WithOpener(noPatches))
	if err != nil {
		m.t.Fatalf("OpenBytes() = %v", err)
	}
	m.t.Cleanup(func() { c.Close() })
	return c
}

func (m *testMap) assembleWith(a *Assembler) (*WorldData, error) {
	m.t.Helper()
	log, _ := test.NewNullLogger()
	a.Log = log
	return a.Assemble(m.open())
}

func (m *testMap) assemble() (*WorldData, error) {
	m.t.Helper()
	return m.assembleWith(NewAssembler())
}

func (m *testMap) mustAssemble() *WorldData {
	m.t.Helper()
	w, err := m.assemble()
	if err != nil {
		m.t.Fatalf("Assemble() = %v", err)
	}
	return w
}

func formatLump(t *testing.T, err error) int {
	t.Helper()
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a FormatError", err)
	}
	return fe.Lump
}

func TestAssembleMinimal(t *testing.T) {
	w := newTestMap(t).mustAssemble()
	if got := len(w.Leafs); got != 2 {
		t.Errorf("len(Leafs) = %v, want 2 with sentinel", got)
	}
	if got := w.NumLeafs(); got != 1 {
		t.Errorf("NumLeafs() = %v, want 1", got)
	}
	if w.NumClusters != 0 {
		t.Errorf("NumClusters = %v, want 0", w.NumClusters)
	}
	if w.PakFile() != nil {
		t.Errorf("PakFile() = %v, want nil", w.PakFile())
	}
}

func TestLeafZeroMustBeSolid(t *testing.T) {
	m := newTestMap(t)
	m.leafs(dleafV1{Contents: ContentsEmpty, LeafWaterDataID: -1}, dleafV1{Contents: ContentsSolid, LeafWaterDataID: -1})
	_, err := m.assemble()
	if err == nil {
		t.Fatalf("Assemble() with empty leaf 0 = nil error")
	}
	if got := formatLump(t, err); got != LumpLeafs {
		t.Errorf("FormatError.Lump = %v, want %v", got, LumpLeafs)
	}
}

func TestLeafVersions(t *testing.T) {
	m := newTestMap(t)
	cube := [6][4]byte{{1, 2, 3, 4}}
	m.lump(LumpLeafs, 0, []dleafV0{
		{Contents: ContentsSolid, Cluster: -1, LeafWaterDataID: -1},
		{Contents: ContentsWater, Cluster: 3, AreaFlags: 2 | 5<<9, LeafWaterDataID: -1, AmbientCube: cube},
	})
	w := m.mustAssemble()
	l := w.Leafs[1]
	if l.Cluster != 3 || l.Area != 2 || l.Flags != 5 || l.AmbientCube != cube {
		t.Errorf("Leafs[1] = %+v, want cluster 3 area 2 flags 5 with ambient cube", l)
	}
	if w.NumClusters != 4 {
		t.Errorf("NumClusters = %v, want 4", w.NumClusters)
	}

	m = newTestMap(t)
	m.lump(LumpLeafs, 2, []dleafV1{{Contents: ContentsSolid, LeafWaterDataID: -1}})
	if _, err := m.assemble(); err == nil {
		t.Errorf("Assemble() with leaf lump version 2 = nil error")
	}
}

func TestLeafWaterIndex(t *testing.T) {
	m := newTestMap(t)
	m.leafs(dleafV1{Contents: ContentsSolid, Cluster: -1})
	_, err := m.assemble()
	if got := formatLump(t, err); got != LumpLeafs {
		t.Errorf("FormatError.Lump = %v, want %v", got, LumpLeafs)
	}
	if !strings.Contains(err.Error(), "leafs (10)") {
		t.Errorf("error %q does not name the lump", err)
	}

	m.lump(LumpLeafWaterData, 0, []dleafwater{{SurfaceZ: 8, MinZ: -8, SurfaceTexInfoID: -1}})
	w := m.mustAssemble()
	if len(w.LeafWater) != 1 || w.LeafWater[0].SurfaceZ != 8 {
		t.Errorf("LeafWater = %+v, want one entry at z 8", w.LeafWater)
	}
}

func TestLumpSizeMultiple(t *testing.T) {
	m := newTestMap(t)
	m.w.SetLump(LumpPlanes, 0, make([]byte, 21))
	_, err := m.assemble()
	if got := formatLump(t, err); got != LumpPlanes {
		t.Errorf("FormatError.Lump = %v, want %v", got, LumpPlanes)
	}
}

func TestLumpCountLimit(t *testing.T) {
	m := newTestMap(t)
	m.lump(LumpModels, 0, make([]dmodel, MaxMapModels+1))
	_, err := m.assemble()
	if got := formatLump(t, err); got != LumpModels {
		t.Errorf("FormatError.Lump = %v, want %v", got, LumpModels)
	}
}

var boxPlanes = []dplane{
	{Normal: [3]float32{1, 0, 0}, Dist: 10},
	{Normal: [3]float32{-1, 0, 0}, Dist: 10},
	{Normal: [3]float32{0, 1, 0}, Dist: 20},
	{Normal: [3]float32{0, -1, 0}, Dist: 20},
	{Normal: [3]float32{0, 0, 1}, Dist: 30},
	{Normal: [3]float32{0, 0, -1}, Dist: 30},
	{Normal: [3]float32{0.6, 0.8, 0}, Dist: 0},
	{Normal: [3]float32{1, 0, 0}, Dist: 5},
}

func TestBoxBrushDetection(t *testing.T) {
	tests := []struct {
		name   string
		planes []uint16
		box    bool
	}{
		{"six axial", []uint16{0, 1, 2, 3, 4, 5}, true},
		{"six axial reordered", []uint16{5, 2, 0, 3, 1, 4}, true},
		{"five sides", []uint16{0, 1, 2, 3, 4}, false},
		{"seven sides", []uint16{0, 1, 2, 3, 4, 5, 7}, false},
		{"six with non-axial", []uint16{0, 1, 2, 3, 4, 6}, false},
		{"six with repeated direction", []uint16{0, 1, 2, 3, 4, 7}, false},
	}
	for _, tt := range tests {
		m := newTestMap(t)
		m.lump(LumpPlanes, 0, boxPlanes)
		sides := make([]dbrushside, len(tt.planes))
		for i, p := range tt.planes {
			sides[i] = dbrushside{PlaneNum: p, TexInfo: -1}
		}
		m.lump(LumpBrushSides, 0, sides)
		m.lump(LumpBrushes, 0, []dbrush{{FirstSide: 0, NumSides: int32(len(sides)), Contents: ContentsSolid}})
		w := m.mustAssemble()
		b := w.Brushes[0]
		if b.IsBox() != tt.box {
			t.Errorf("%s: IsBox() = %v, want %v", tt.name, b.IsBox(), tt.box)
			continue
		}
		if !tt.box {
			if b.NumSides != len(sides) || len(w.BrushSides) != len(sides) {
				t.Errorf("%s: NumSides = %v with %d sides kept, want %d", tt.name, b.NumSides, len(w.BrushSides), len(sides))
			}
			continue
		}
		if len(w.BrushSides) != 0 {
			t.Errorf("%s: %d general sides kept, want 0", tt.name, len(w.BrushSides))
		}
		box := w.BoxBrushes[b.FirstSide]
		wantMins, wantMaxs := mgl32.Vec3{-10, -20, -30}, mgl32.Vec3{10, 20, 30}
		if box.Mins != wantMins || box.Maxs != wantMaxs {
			t.Errorf("%s: box = %v %v, want %v %v", tt.name, box.Mins, box.Maxs, wantMins, wantMaxs)
		}
		if box.SurfaceIndex != [6]int16{-1, -1, -1, -1, -1, -1} {
			t.Errorf("%s: SurfaceIndex = %v, want all -1", tt.name, box.SurfaceIndex)
		}
	}
}

func TestSurfEdgeFlatten(t *testing.T) {
	m := newTestMap(t)
	m.lump(LumpVertexes, 0, []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}})
	m.lump(LumpEdges, 0, []dedge{{}, {V: [2]uint16{0, 1}}, {V: [2]uint16{1, 2}}, {V: [2]uint16{2, 0}}})
	m.lump(LumpSurfEdges, 0, []int32{1, 2, 3, -3, -2, -1})
	w := m.mustAssemble()
	want := []uint16{0, 1, 2, 0, 2, 1}
	if !reflect.DeepEqual(w.FaceVerts, want) {
		t.Errorf("FaceVerts = %v, want %v", w.FaceVerts, want)
	}

	m.lump(LumpSurfEdges, 0, []int32{4})
	_, err := m.assemble()
	if got := formatLump(t, err); got != LumpSurfEdges {
		t.Errorf("FormatError.Lump = %v, want %v", got, LumpSurfEdges)
	}
}

func TestSurfaces(t *testing.T) {
	m := newTestMap(t)
	m.w.SetLump(LumpTexDataStringData, 0, []byte("tools/nodraw\x00brick/wall01\x00"))
	m.lump(LumpTexDataStringTable, 0, []int32{0, 13})
	m.lump(LumpTexData, 0, []dtexdata{{NameStringID: 0, Width: 64, Height: 64}, {NameStringID: 1, Width: 128, Height: 256}})
	m.lump(LumpTexInfo, 0, []dtexinfo{
		{TexData: 0, Flags: SurfNoDraw},
		{TexData: 1},
		{TexData: 1},
		{TexData: 1, Flags: SurfNoDecals},
		{TexData: -1},
	})
	mat := NewMaterialTable()
	a := NewAssembler()
	a.Materials = mat
	w, err := m.assembleWith(a)
	if err != nil {
		t.Fatalf("Assemble() = %v", err)
	}
	if got := len(w.Surfaces); got != 3 {
		t.Fatalf("len(Surfaces) = %v, want 3", got)
	}
	gotSurf := []int{}
	for _, ti := range w.TexInfo {
		gotSurf = append(gotSurf, ti.Surface)
	}
	if want := []int{0, 1, 1, 2, -1}; !reflect.DeepEqual(gotSurf, want) {
		t.Errorf("texinfo surfaces = %v, want %v", gotSurf, want)
	}
	if w.Surfaces[1].Name != "brick/wall01" || w.Surfaces[1].Height != 256 {
		t.Errorf("Surfaces[1] = %+v, want brick/wall01 128x256", w.Surfaces[1])
	}
	if w.Surfaces[2].MaterialKey != w.Surfaces[1].MaterialKey {
		t.Errorf("same name resolved to keys %d and %d", w.Surfaces[1].MaterialKey, w.Surfaces[2].MaterialKey)
	}
	if got := mat.Names(); !reflect.DeepEqual(got, []string{"tools/nodraw", "brick/wall01"}) {
		t.Errorf("resolved materials = %v", got)
	}
}

type lightmapRecorder struct {
	calls int
	faces int
}

func (l *lightmapRecorder) LightmapsChanged(w *WorldData) {
	l.calls++
	l.faces = len(w.Faces)
}

func TestLightingFallback(t *testing.T) {
	m := newTestMap(t)
	m.w.SetLump(LumpLighting, 0, []byte{1, 2, 3, 4})
	rec := &lightmapRecorder{}
	a := NewAssembler()
	a.HDR = true
	a.Lightmaps = rec
	w, err := m.assembleWith(a)
	if err != nil {
		t.Fatalf("Assemble() = %v", err)
	}
	if w.HDR || !bytes.Equal(w.Lighting, []byte{1, 2, 3, 4}) {
		t.Errorf("HDR = %v lighting = %v, want LDR fallback", w.HDR, w.Lighting)
	}
	if rec.calls != 1 {
		t.Errorf("LightmapsChanged called %d times, want 1", rec.calls)
	}

	m.w.SetLump(LumpLightingHDR, 0, []byte{9, 9, 9, 9})
	w, err = m.assembleWith(a)
	if err != nil {
		t.Fatalf("Assemble() = %v", err)
	}
	if !w.HDR || w.Lighting[0] != 9 {
		t.Errorf("HDR = %v lighting = %v, want HDR samples", w.HDR, w.Lighting)
	}
}

// dispMap is a 64x64 floor split by the plane x=0 into leafs 1 and 2.
func dispMap(t *testing.T, edges int16) *testMap {
	m := newTestMap(t)
	m.lump(LumpPlanes, 0, []dplane{
		{Normal: [3]float32{1, 0, 0}},
		{Normal: [3]float32{0, 0, 1}},
	})
	m.lump(LumpVertexes, 0, []mgl32.Vec3{{-32, -32, 0}, {32, -32, 0}, {32, 32, 0}, {-32, 32, 0}})
	m.lump(LumpEdges, 0, []dedge{{}, {V: [2]uint16{0, 1}}, {V: [2]uint16{1, 2}}, {V: [2]uint16{2, 3}}, {V: [2]uint16{3, 0}}})
	m.lump(LumpSurfEdges, 0, []int32{1, 2, 3, 4})
	m.lump(LumpFaces, 0, []dface{{PlaneNum: 1, NumEdges: edges, TexInfo: -1, DispInfo: 0, LightOfs: -1}})
	m.leafs(
		dleafV1{Contents: ContentsSolid, Cluster: -1, LeafWaterDataID: -1},
		dleafV1{Cluster: 0, LeafWaterDataID: -1},
		dleafV1{Cluster: 1, LeafWaterDataID: -1},
	)
	m.lump(LumpNodes, 0, []dnode{{
		PlaneNum: 0,
		Children: [2]int32{collide.LeafChild(1), collide.LeafChild(2)},
		Mins:     [3]int16{-64, -64, -64},
		Maxs:     [3]int16{64, 64, 64},
	}})
	m.lump(LumpModels, 0, []dmodel{{HeadNode: 0, NumFaces: 1}})
	m.lump(LumpDispInfo, 0, []ddispinfo{{
		StartPosition: [3]float32{-32, -32, 0},
		Power:         2,
		Contents:      ContentsSolid,
	}})
	verts := make([]ddispvert, collide.DispVertCount(2))
	for i := range verts {
		verts[i] = ddispvert{Vector: [3]float32{0, 0, 1}, Dist: 4}
	}
	m.lump(LumpDispVerts, 0, verts)
	m.lump(LumpDispTris, 0, make([]ddisptri, collide.DispTriCount(2)))
	return m
}

func TestDisplacements(t *testing.T) {
	w := dispMap(t, 4).mustAssemble()
	if got := len(w.Displacements); got != 1 {
		t.Fatalf("len(Displacements) = %v, want 1", got)
	}
	d := w.Displacements[0]
	mins, maxs := d.Tree.Bounds()
	if mins != (mgl32.Vec3{-32, -32, 4}) || maxs != (mgl32.Vec3{32, 32, 4}) {
		t.Errorf("Bounds() = %v %v, want raised floor", mins, maxs)
	}
	for leaf, want := range [][]uint16{{}, {0}, {0}} {
		if got := w.LeafDisplacements(leaf); len(got) != len(want) {
			t.Errorf("LeafDisplacements(%d) = %v, want %v", leaf, got, want)
		}
	}
	if got := w.PointLeaf(mgl32.Vec3{10, 0, 0}); got != 1 {
		t.Errorf("PointLeaf(+x) = %v, want 1", got)
	}
	if got := w.BoxLeafs(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}); len(got) != 2 {
		t.Errorf("BoxLeafs(origin) = %v, want 2 leafs", got)
	}
}

func TestDisplacementNotQuad(t *testing.T) {
	_, err := dispMap(t, 3).assemble()
	if got := formatLump(t, err); got != LumpDispInfo {
		t.Errorf("FormatError.Lump = %v, want %v", got, LumpDispInfo)
	}
}

func TestVisDecompress(t *testing.T) {
	in := []byte{0x7, 0x0, 0x5, 0x5, 0x0, 0x3, 0x1, 0x1}
	got := make([]byte, 12)
	DecompressVis(in, got)
	want := []byte{0x7, 0x0, 0x0, 0x0, 0x0, 0x0, 0x5, 0x0, 0x0, 0x0, 0x1, 0x1}
	if !bytes.Equal(got, want) {
		t.Errorf("DecompressVis(%v) = %v, want %v", in, got, want)
	}
}

func TestClusterPVS(t *testing.T) {
	m := newTestMap(t)
	var vis bytes.Buffer
	binary.Write(&vis, binary.LittleEndian, []int32{2, 20, 20, 21, 21})
	vis.Write([]byte{0x03, 0x00, 0x01})
	m.w.SetLump(LumpVisibility, 0, vis.Bytes())
	w := m.mustAssemble()
	tests := []struct {
		cluster int
		want    byte
	}{
		{0, 0x03},
		{1, 0x00},
		{-1, 0xff},
		{2, 0xff},
	}
	for _, tt := range tests {
		if got := w.ClusterPVS(tt.cluster); len(got) != 1 || got[0] != tt.want {
			t.Errorf("ClusterPVS(%d) = %v, want [%d]", tt.cluster, got, tt.want)
		}
	}
}

func TestAreaPortals(t *testing.T) {
	m := newTestMap(t)
	m.lump(LumpPlanes, 0, []dplane{{Normal: [3]float32{1, 0, 0}}})
	m.lump(LumpAreas, 0, []darea{{}, {NumAreaPortals: 1, FirstAreaPortal: 0}, {NumAreaPortals: 1, FirstAreaPortal: 1}})
	m.lump(LumpAreaPortals, 0, []dareaportal{{PortalKey: 5, OtherArea: 2}, {PortalKey: 5, OtherArea: 1}})
	w := m.mustAssemble()
	if w.AreasConnected(1, 2) {
		t.Errorf("AreasConnected(1, 2) with closed portal = true")
	}
	w.SetAreaPortalState(5, true)
	if !w.AreasConnected(1, 2) || w.AreasConnected(0, 1) {
		t.Errorf("AreasConnected after open = %v %v, want true false", w.AreasConnected(1, 2), w.AreasConnected(0, 1))
	}
	w.SetAreaPortalState(5, false)
	if w.AreasConnected(1, 2) {
		t.Errorf("AreasConnected(1, 2) after close = true")
	}
}

func staticPropPayload(names ...string) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, int32(len(names)))
	for _, n := range names {
		var raw [propNameLength]byte
		copy(raw[:], n)
		b.Write(raw[:])
	}
	binary.Write(&b, binary.LittleEndian, []int32{1})
	binary.Write(&b, binary.LittleEndian, uint16(0))
	binary.Write(&b, binary.LittleEndian, int32(3))
	return b.Bytes()
}

func gameLumpImage(payload []byte, flags uint16, fileOfs int32) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, int32(1))
	binary.Write(&b, binary.LittleEndian, dgamelump{
		ID:      GameLumpStaticProps,
		Flags:   flags,
		Version: 10,
		FileOfs: fileOfs,
		FileLen: int32(len(payload)),
	})
	b.Write(payload)
	return b.Bytes()
}

func TestStaticPropDictionary(t *testing.T) {
	raw := staticPropPayload("models/props/chair.mdl", "models/props/table.mdl")
	packed, err := chunk.Compress(raw)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		payload []byte
		flags   uint16
	}{{raw, 0}, {packed, gameLumpCompressed}} {
		m := newTestMap(t)
		m.w.SetLump(LumpGameLump, 0, gameLumpImage(tt.payload, tt.flags, 0))
		base := m.open().Descriptor(LumpGameLump).Offset
		dirSize := int64(4 + gameLumpEntrySize)
		m.w.SetLump(LumpGameLump, 0, gameLumpImage(tt.payload, tt.flags, int32(base+dirSize)))
		w := m.mustAssemble()
		want := []string{"models/props/chair.mdl", "models/props/table.mdl"}
		if !reflect.DeepEqual(w.StaticProps.Models, want) {
			t.Errorf("StaticProps.Models = %v, want %v", w.StaticProps.Models, want)
		}
		if w.StaticProps.NumProps != 3 || w.StaticProps.NumLeafs != 1 {
			t.Errorf("StaticProps = %+v, want 1 leaf 3 props", w.StaticProps)
		}
		if gl := w.GameLump(GameLumpStaticProps); gl == nil || !bytes.Equal(gl.Data, raw) {
			t.Errorf("GameLump(sprp) payload not decoded")
		}
	}
}

type bakeRecorder struct {
	models []int
	keys   []string
}

func (b *bakeRecorder) BakeCollision(model, solids int, data []byte, key string) error {
	b.models = append(b.models, model)
	b.keys = append(b.keys, key)
	return nil
}

func TestPhysCollide(t *testing.T) {
	m := newTestMap(t)
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, dphysmodel{ModelIndex: 0, DataSize: 4, KeyDataSize: 4, SolidCount: 1})
	b.WriteString("abcdk=v\x00")
	binary.Write(&b, binary.LittleEndian, dphysmodel{ModelIndex: -1, DataSize: -1})
	m.w.SetLump(LumpPhysCollide, 0, b.Bytes())
	rec := &bakeRecorder{}
	a := NewAssembler()
	a.Physics = rec
	if _, err := m.assembleWith(a); err != nil {
		t.Fatalf("Assemble() = %v", err)
	}
	if !reflect.DeepEqual(rec.models, []int{0}) || rec.keys[0] != "k=v" {
		t.Errorf("baked models %v keys %q, want [0] [k=v]", rec.models, rec.keys)
	}
}

func TestPakFile(t *testing.T) {
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	f, err := zw.Create("materials/brick/wall01.vmt")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(f, "LightmappedGeneric")
	zw.Close()

	m := newTestMap(t)
	m.w.SetLump(LumpPakFile, 0, b.Bytes())
	w := m.mustAssemble()
	if w.PakFile() == nil {
		t.Fatalf("PakFile() = nil")
	}
	r, err := w.PakFile().Open("materials/brick/wall01.vmt")
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "LightmappedGeneric" {
		t.Errorf("pak file content = %q", got)
	}
}

func TestReleasesChunkBuffers(t *testing.T) {
	m := dispMap(t, 4)
	c := m.open()
	log, _ := test.NewNullLogger()
	a := NewAssembler()
	a.Log = log
	if _, err := a.Assemble(c); err != nil {
		t.Fatalf("Assemble() = %v", err)
	}
	if got := c.OpenReaders(); got != 0 {
		t.Errorf("OpenReaders() = %v, want 0", got)
	}
}
