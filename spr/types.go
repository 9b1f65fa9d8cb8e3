// SPDX-License-Identifier: GPL-2.0-or-later

package spr

const (
	ST_SYNC = iota
	ST_RAND
)

const (
	SPR_VP_PARALLEL_UPRIGHT = iota
	SPR_FACING_UPRIGHT
	SPR_VP_PARALLEL
	SPR_ORIENTED
	SPR_VP_PARALLEL_ORIENTED
)

const (
	spriteVersion   = 1
	spriteVersionHL = 2
	Magic           = 'P'<<24 | 'S'<<16 | 'D'<<8 | 'I'
)

// dsprite_t after the type and, for version 2, the texture format
type header struct {
	BoundingRadius float32
	MaxWidth       int32
	MaxHeight      int32
	FrameCount     int32
	BeamLength     float32
	SyncType       int32 // ST_SYNC or ST_RAND
}
