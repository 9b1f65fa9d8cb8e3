// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import "fmt"

// Lump ids of a version 19-21 map.
const (
	LumpEntities                    = 0
	LumpPlanes                      = 1
	LumpTexData                     = 2
	LumpVertexes                    = 3
	LumpVisibility                  = 4
	LumpNodes                       = 5
	LumpTexInfo                     = 6
	LumpFaces                       = 7
	LumpLighting                    = 8
	LumpOcclusion                   = 9
	LumpLeafs                       = 10
	LumpFaceIDs                     = 11
	LumpEdges                       = 12
	LumpSurfEdges                   = 13
	LumpModels                      = 14
	LumpWorldLights                 = 15
	LumpLeafFaces                   = 16
	LumpLeafBrushes                 = 17
	LumpBrushes                     = 18
	LumpBrushSides                  = 19
	LumpAreas                       = 20
	LumpAreaPortals                 = 21
	LumpPropCollision               = 22
	LumpPropHulls                   = 23
	LumpPropHullVerts               = 24
	LumpPropTris                    = 25
	LumpDispInfo                    = 26
	LumpOriginalFaces               = 27
	LumpPhysDisp                    = 28
	LumpPhysCollide                 = 29
	LumpVertNormals                 = 30
	LumpVertNormalIndices           = 31
	LumpDispLightmapAlphas          = 32
	LumpDispVerts                   = 33
	LumpDispLightmapSamplePositions = 34
	LumpGameLump                    = 35
	LumpLeafWaterData               = 36
	LumpPrimitives                  = 37
	LumpPrimVerts                   = 38
	LumpPrimIndices                 = 39
	LumpPakFile                     = 40
	LumpClipPortalVerts             = 41
	LumpCubemaps                    = 42
	LumpTexDataStringData           = 43
	LumpTexDataStringTable          = 44
	LumpOverlays                    = 45
	LumpLeafMinDistToWater          = 46
	LumpFaceMacroTextureInfo        = 47
	LumpDispTris                    = 48
	LumpPhysCollideSurface          = 49
	LumpWaterOverlays               = 50
	LumpLeafAmbientIndexHDR         = 51
	LumpLeafAmbientIndex            = 52
	LumpLightingHDR                 = 53
	LumpWorldLightsHDR              = 54
	LumpLeafAmbientLightingHDR      = 55
	LumpLeafAmbientLighting         = 56
	LumpXZipPakFile                 = 57
	LumpFacesHDR                    = 58
	LumpMapFlags                    = 59
	LumpOverlayFades                = 60
)

var lumpNames = [...]string{
	LumpEntities:                    "entities",
	LumpPlanes:                      "planes",
	LumpTexData:                     "tex_data",
	LumpVertexes:                    "vertexes",
	LumpVisibility:                  "visibility",
	LumpNodes:                       "nodes",
	LumpTexInfo:                     "tex_info",
	LumpFaces:                       "faces",
	LumpLighting:                    "lighting",
	LumpOcclusion:                   "occlusion",
	LumpLeafs:                       "leafs",
	LumpFaceIDs:                     "face_ids",
	LumpEdges:                       "edges",
	LumpSurfEdges:                   "surf_edges",
	LumpModels:                      "models",
	LumpWorldLights:                 "world_lights",
	LumpLeafFaces:                   "leaf_faces",
	LumpLeafBrushes:                 "leaf_brushes",
	LumpBrushes:                     "brushes",
	LumpBrushSides:                  "brush_sides",
	LumpAreas:                       "areas",
	LumpAreaPortals:                 "area_portals",
	LumpPropCollision:               "prop_collision",
	LumpPropHulls:                   "prop_hulls",
	LumpPropHullVerts:               "prop_hull_verts",
	LumpPropTris:                    "prop_tris",
	LumpDispInfo:                    "disp_info",
	LumpOriginalFaces:               "original_faces",
	LumpPhysDisp:                    "phys_disp",
	LumpPhysCollide:                 "phys_collide",
	LumpVertNormals:                 "vert_normals",
	LumpVertNormalIndices:           "vert_normal_indices",
	LumpDispLightmapAlphas:          "disp_lightmap_alphas",
	LumpDispVerts:                   "disp_verts",
	LumpDispLightmapSamplePositions: "disp_lightmap_sample_positions",
	LumpGameLump:                    "game_lump",
	LumpLeafWaterData:               "leaf_water_data",
	LumpPrimitives:                  "primitives",
	LumpPrimVerts:                   "prim_verts",
	LumpPrimIndices:                 "prim_indices",
	LumpPakFile:                     "pak_file",
	LumpClipPortalVerts:             "clip_portal_verts",
	LumpCubemaps:                    "cubemaps",
	LumpTexDataStringData:           "tex_data_string_data",
	LumpTexDataStringTable:          "tex_data_string_table",
	LumpOverlays:                    "overlays",
	LumpLeafMinDistToWater:          "leaf_min_dist_to_water",
	LumpFaceMacroTextureInfo:        "face_macro_texture_info",
	LumpDispTris:                    "disp_tris",
	LumpPhysCollideSurface:          "phys_collide_surface",
	LumpWaterOverlays:               "water_overlays",
	LumpLeafAmbientIndexHDR:         "leaf_ambient_index_hdr",
	LumpLeafAmbientIndex:            "leaf_ambient_index",
	LumpLightingHDR:                 "lighting_hdr",
	LumpWorldLightsHDR:              "world_lights_hdr",
	LumpLeafAmbientLightingHDR:      "leaf_ambient_lighting_hdr",
	LumpLeafAmbientLighting:         "leaf_ambient_lighting",
	LumpXZipPakFile:                 "xzip_pak_file",
	LumpFacesHDR:                    "faces_hdr",
	LumpMapFlags:                    "map_flags",
	LumpOverlayFades:                "overlay_fades",
}

// LumpName returns the lower case name of a lump id.
func LumpName(id int) string {
	if id < 0 || id >= len(lumpNames) || lumpNames[id] == "" {
		return fmt.Sprintf("lump%d", id)
	}
	return lumpNames[id]
}

// Format limits. A lump holding more elements is rejected.
const (
	MaxMapModels             = 1024
	MaxMapBrushes            = 8192
	MaxMapEntities           = 8192
	MaxMapTexInfo            = 12288
	MaxMapTexData            = 2048
	MaxMapDispInfo           = 2048
	MaxMapDispVerts          = MaxMapDispInfo * 289
	MaxMapDispTris           = MaxMapDispInfo * 512
	MaxMapAreas              = 256
	MaxMapAreaPortals        = 1024
	MaxMapPlanes             = 65536
	MaxMapNodes              = 65536
	MaxMapBrushSides         = 65536
	MaxMapLeafs              = 65536
	MaxMapVerts              = 65536
	MaxMapVertNormals        = 256000
	MaxMapVertNormalIndices  = 256000
	MaxMapFaces              = 65536
	MaxMapLeafFaces          = 65536
	MaxMapLeafBrushes        = 65536
	MaxMapPortalVerts        = 128000
	MaxMapEdges              = 256000
	MaxMapSurfEdges          = 512000
	MaxMapLighting           = 0x1000000
	MaxMapVisibility         = 0x1000000
	MaxMapEntString          = 0x80000
	MaxMapCubemapSamples     = 1024
	MaxMapLeafWaterData      = 32768
	MaxMapTexDataStringData  = 256000
	MaxMapTexDataStringTable = 65536
)

// Leaf and brush contents bits.
const (
	ContentsEmpty       = 0
	ContentsSolid       = 0x1
	ContentsWindow      = 0x2
	ContentsAux         = 0x4
	ContentsGrate       = 0x8
	ContentsSlime       = 0x10
	ContentsWater       = 0x20
	ContentsBlockLOS    = 0x40
	ContentsOpaque      = 0x80
	ContentsPlayerClip  = 0x10000
	ContentsMonsterClip = 0x20000
	ContentsDetail      = 0x8000000
	ContentsTranslucent = 0x10000000
)

// Surface flags of texinfo entries.
const (
	SurfLight     = 0x0001
	SurfSky2D     = 0x0002
	SurfSky       = 0x0004
	SurfWarp      = 0x0008
	SurfTrans     = 0x0010
	SurfNoPortal  = 0x0020
	SurfTrigger   = 0x0040
	SurfNoDraw    = 0x0080
	SurfHint      = 0x0100
	SurfSkip      = 0x0200
	SurfNoLight   = 0x0400
	SurfBumpLight = 0x0800
	SurfNoShadows = 0x1000
	SurfNoDecals  = 0x2000
	SurfNoChop    = 0x4000
	SurfHitbox    = 0x8000
)

// Game lump ids are four character codes stored big endian.
const (
	GameLumpStaticProps = 's'<<24 | 'p'<<16 | 'r'<<8 | 'p'
	GameLumpDetailProps = 'd'<<24 | 'p'<<16 | 'r'<<8 | 'p'

	gameLumpCompressed = 0x1
)
