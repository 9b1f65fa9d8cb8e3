// SPDX-License-Identifier: GPL-2.0-or-later

package mdl

const (
	MinVersion = 44
	MaxVersion = 49
	Magic      = 'T'<<24 | 'S'<<16 | 'D'<<8 | 'I'
)

// studio header flags
const (
	FlagAutogeneratedHitbox = 1 << iota
	FlagUsesEnvCubemap
	FlagForceOpaque
	FlagTranslucentTwoPass
	FlagStaticProp
)

type header struct { // studiohdr_t
	ID            int32
	Version       int32
	Checksum      int32
	Name          [64]byte
	Length        int32
	EyePosition   [3]float32
	IllumPosition [3]float32
	HullMin       [3]float32
	HullMax       [3]float32
	ViewBBMin     [3]float32
	ViewBBMax     [3]float32
	Flags         int32

	NumBones            int32
	BoneIndex           int32
	NumBoneControllers  int32
	BoneControllerIndex int32
	NumHitboxSets       int32
	HitboxSetIndex      int32
	NumLocalAnim        int32
	LocalAnimIndex      int32
	NumLocalSeq         int32
	LocalSeqIndex       int32

	ActivityListVersion int32
	EventsIndexed       int32

	NumTextures     int32
	TextureIndex    int32
	NumCDTextures   int32
	CDTextureIndex  int32
	NumSkinRef      int32
	NumSkinFamilies int32
	SkinIndex       int32
	NumBodyParts    int32
	BodyPartIndex   int32

	NumLocalAttachments  int32
	LocalAttachmentIndex int32
	NumLocalNodes        int32
	LocalNodeIndex       int32
	LocalNodeNameIndex   int32

	NumFlexDesc         int32
	FlexDescIndex       int32
	NumFlexControllers  int32
	FlexControllerIndex int32
	NumFlexRules        int32
	FlexRuleIndex       int32
	NumIKChains         int32
	IKChainIndex        int32
	NumMouths           int32
	MouthIndex          int32

	NumLocalPoseParameters int32
	LocalPoseParamIndex    int32
	SurfacePropIndex       int32
	KeyValueIndex          int32
	KeyValueSize           int32

	NumLocalIKAutoplayLocks  int32
	LocalIKAutoplayLockIndex int32

	Mass              float32
	Contents          int32
	NumIncludeModels  int32
	IncludeModelIndex int32
}
