// SPDX-License-Identifier: GPL-2.0-or-later

package collide

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane types. 0-2 are axial along x, y, z, 3-5 are non-axial with the
// major component along x, y, z.
const (
	PlaneX = iota
	PlaneY
	PlaneZ
	PlaneAnyX
	PlaneAnyY
	PlaneAnyZ
)

type Plane struct {
	Normal   mgl32.Vec3
	Dist     float32
	Type     uint8
	SignBits uint8 // bit i set when Normal[i] < 0
}

// NewPlane classifies the plane with normal n and distance d.
func NewPlane(n mgl32.Vec3, d float32) Plane {
	return Plane{
		Normal:   n,
		Dist:     d,
		Type:     PlaneType(n),
		SignBits: SignBits(n),
	}
}

func PlaneType(n mgl32.Vec3) uint8 {
	for i := 0; i < 3; i++ {
		if math32.Abs(n[i]) == 1 {
			return uint8(i)
		}
	}
	ax, ay, az := math32.Abs(n[0]), math32.Abs(n[1]), math32.Abs(n[2])
	switch {
	case ax >= ay && ax >= az:
		return PlaneAnyX
	case ay >= ax && ay >= az:
		return PlaneAnyY
	}
	return PlaneAnyZ
}

func SignBits(n mgl32.Vec3) uint8 {
	var bits uint8
	for i := 0; i < 3; i++ {
		if n[i] < 0 {
			bits |= 1 << i
		}
	}
	return bits
}

func (p *Plane) Axial() bool {
	return p.Type < PlaneAnyX
}

// Distance returns the signed distance of v to the plane.
func (p *Plane) Distance(v mgl32.Vec3) float32 {
	if p.Axial() {
		return v[p.Type] - p.Dist
	}
	return p.Normal.Dot(v) - p.Dist
}

// BoxOnPlaneSide returns 1 if the box is in front of the plane, 2 if it is
// behind and 3 if the plane cuts it.
func (p *Plane) BoxOnPlaneSide(mins, maxs mgl32.Vec3) int {
	if p.Axial() {
		switch {
		case p.Dist <= mins[p.Type]:
			return 1
		case p.Dist >= maxs[p.Type]:
			return 2
		}
		return 3
	}
	// near and far corners picked by the sign of each normal component
	var near, far mgl32.Vec3
	for i := 0; i < 3; i++ {
		if p.SignBits&(1<<i) != 0 {
			far[i], near[i] = mins[i], maxs[i]
		} else {
			far[i], near[i] = maxs[i], mins[i]
		}
	}
	sides := 0
	if p.Normal.Dot(far) >= p.Dist {
		sides = 1
	}
	if p.Normal.Dot(near) < p.Dist {
		sides |= 2
	}
	return sides
}
