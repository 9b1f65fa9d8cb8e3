// SPDX-License-Identifier: GPL-2.0-or-later

package collide

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Tree is a BSP node tree. A negative child c refers to leaf -(c+1).
type Tree interface {
	NodePlane(node int) *Plane
	NodeChild(node, side int) int32
}

func LeafChild(leaf int) int32 {
	return int32(-(leaf + 1))
}

func ChildLeaf(child int32) int {
	return int(-child - 1)
}

// PointLeaf walks from head to the leaf containing p.
func PointLeaf(t Tree, head int, p mgl32.Vec3) int {
	n := int32(head)
	for n >= 0 {
		if t.NodePlane(int(n)).Distance(p) >= 0 {
			n = t.NodeChild(int(n), 0)
		} else {
			n = t.NodeChild(int(n), 1)
		}
	}
	return ChildLeaf(n)
}

// BoxLeafs calls fn for every leaf below head touched by the box.
func BoxLeafs(t Tree, head int, mins, maxs mgl32.Vec3, fn func(leaf int)) {
	boxLeafs(t, int32(head), mins, maxs, fn)
}

func boxLeafs(t Tree, n int32, mins, maxs mgl32.Vec3, fn func(int)) {
	for n >= 0 {
		switch t.NodePlane(int(n)).BoxOnPlaneSide(mins, maxs) {
		case 1:
			n = t.NodeChild(int(n), 0)
		case 2:
			n = t.NodeChild(int(n), 1)
		default:
			boxLeafs(t, t.NodeChild(int(n), 0), mins, maxs, fn)
			n = t.NodeChild(int(n), 1)
		}
	}
	fn(ChildLeaf(n))
}
