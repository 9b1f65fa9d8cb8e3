// SPDX-License-Identifier: GPL-2.0-or-later

package collide

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const (
	MinDispPower = 2
	MaxDispPower = 4
)

var ErrDispPower = errors.New("displacement power out of range")

// DispVert is the offset of one grid vertex from the flat base surface.
type DispVert struct {
	Vector mgl32.Vec3
	Dist   float32
	Alpha  float32
}

type DispTri struct {
	Verts [3]uint16
	Tags  uint16
}

// DispNode is a node of the implicit quadtree. Children of node i are
// 4i+1..4i+4.
type DispNode struct {
	Mins, Maxs mgl32.Vec3
}

// DispTree is the collision form of one displacement surface.
type DispTree struct {
	Power    int
	Contents int32
	Corners  [4]mgl32.Vec3 // rotated so Corners[0] is the start position
	Verts    []mgl32.Vec3
	Tris     []DispTri
	Nodes    []DispNode
}

// DispSide returns the number of vertices along one edge.
func DispSide(power int) int {
	return 1<<power + 1
}

func DispVertCount(power int) int {
	s := DispSide(power)
	return s * s
}

func DispTriCount(power int) int {
	return 2 << (2 * power)
}

func DispNodeCount(power int) int {
	return ((1 << (2 * (power + 1))) - 1) / 3
}

// RotateCorners rotates the face corners so the one closest to start comes
// first, keeping the winding.
func RotateCorners(corners [4]mgl32.Vec3, start mgl32.Vec3) [4]mgl32.Vec3 {
	best, bestDist := 0, float32(math32.MaxFloat32)
	for i, c := range corners {
		if d := c.Sub(start).LenSqr(); d < bestDist {
			best, bestDist = i, d
		}
	}
	var out [4]mgl32.Vec3
	for i := range out {
		out[i] = corners[(best+i)%4]
	}
	return out
}

// BuildDispTree builds the displacement grid, its triangles and the
// quadtree bounds. tags may be shorter than the triangle count.
func BuildDispTree(corners [4]mgl32.Vec3, start mgl32.Vec3, power int, verts []DispVert, tags []uint16, contents int32) (*DispTree, error) {
	if power < MinDispPower || power > MaxDispPower {
		return nil, errors.Wrapf(ErrDispPower, "power %d", power)
	}
	if len(verts) != DispVertCount(power) {
		return nil, errors.Errorf("displacement of power %d needs %d verts, got %d", power, DispVertCount(power), len(verts))
	}
	t := &DispTree{
		Power:    power,
		Contents: contents,
		Corners:  RotateCorners(corners, start),
	}
	t.buildVerts(verts)
	t.buildTris(tags)
	t.Nodes = make([]DispNode, DispNodeCount(power))
	side := DispSide(power) - 1
	t.buildNode(0, 0, 0, side)
	return t, nil
}

func (t *DispTree) buildVerts(verts []DispVert) {
	n := DispSide(t.Power)
	c := t.Corners
	t.Verts = make([]mgl32.Vec3, len(verts))
	step := 1 / float32(n-1)
	for y := 0; y < n; y++ {
		ty := float32(y) * step
		left := lerp(c[0], c[1], ty)
		right := lerp(c[3], c[2], ty)
		for x := 0; x < n; x++ {
			i := y*n + x
			base := lerp(left, right, float32(x)*step)
			t.Verts[i] = base.Add(verts[i].Vector.Mul(verts[i].Dist))
		}
	}
}

func (t *DispTree) buildTris(tags []uint16) {
	n := DispSide(t.Power)
	t.Tris = make([]DispTri, 0, DispTriCount(t.Power))
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			i0 := uint16(y*n + x)
			i1 := i0 + 1
			i2 := i0 + uint16(n)
			i3 := i2 + 1
			if (x+y)%2 == 0 {
				t.Tris = append(t.Tris,
					DispTri{Verts: [3]uint16{i0, i2, i3}},
					DispTri{Verts: [3]uint16{i0, i3, i1}})
			} else {
				t.Tris = append(t.Tris,
					DispTri{Verts: [3]uint16{i0, i2, i1}},
					DispTri{Verts: [3]uint16{i1, i2, i3}})
			}
		}
	}
	for i := range t.Tris {
		if i < len(tags) {
			t.Tris[i].Tags = tags[i]
		}
	}
}

// buildNode fills node and its children. The node covers the quads
// [x0,x0+size) x [y0,y0+size).
func (t *DispTree) buildNode(node, x0, y0, size int) {
	if size == 1 {
		n := DispSide(t.Power)
		mins := t.Verts[y0*n+x0]
		maxs := mins
		for _, i := range []int{y0*n + x0 + 1, (y0+1)*n + x0, (y0+1)*n + x0 + 1} {
			mins, maxs = grow(mins, maxs, t.Verts[i])
		}
		t.Nodes[node] = DispNode{Mins: mins, Maxs: maxs}
		return
	}
	half := size / 2
	first := 4*node + 1
	t.buildNode(first, x0, y0, half)
	t.buildNode(first+1, x0+half, y0, half)
	t.buildNode(first+2, x0, y0+half, half)
	t.buildNode(first+3, x0+half, y0+half, half)
	b := t.Nodes[first]
	for c := first + 1; c < first+4; c++ {
		b.Mins, b.Maxs = grow(b.Mins, b.Maxs, t.Nodes[c].Mins)
		b.Mins, b.Maxs = grow(b.Mins, b.Maxs, t.Nodes[c].Maxs)
	}
	t.Nodes[node] = b
}

func (t *DispTree) Bounds() (mins, maxs mgl32.Vec3) {
	return t.Nodes[0].Mins, t.Nodes[0].Maxs
}

// TrianglesInBox calls fn with the index of every triangle whose quad
// bounds touch the box.
func (t *DispTree) TrianglesInBox(mins, maxs mgl32.Vec3, fn func(tri int)) {
	t.trianglesInBox(0, 0, 0, DispSide(t.Power)-1, mins, maxs, fn)
}

func (t *DispTree) trianglesInBox(node, x0, y0, size int, mins, maxs mgl32.Vec3, fn func(int)) {
	b := t.Nodes[node]
	if !overlaps(b.Mins, b.Maxs, mins, maxs) {
		return
	}
	if size == 1 {
		quad := y0*(DispSide(t.Power)-1) + x0
		fn(2 * quad)
		fn(2*quad + 1)
		return
	}
	half := size / 2
	first := 4*node + 1
	t.trianglesInBox(first, x0, y0, half, mins, maxs, fn)
	t.trianglesInBox(first+1, x0+half, y0, half, mins, maxs, fn)
	t.trianglesInBox(first+2, x0, y0+half, half, mins, maxs, fn)
	t.trianglesInBox(first+3, x0+half, y0+half, half, mins, maxs, fn)
}

func lerp(a, b mgl32.Vec3, f float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(f))
}

func grow(mins, maxs, p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		mins[i] = math32.Min(mins[i], p[i])
		maxs[i] = math32.Max(maxs[i], p[i])
	}
	return mins, maxs
}

func overlaps(amin, amax, bmin, bmax mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if amin[i] > bmax[i] || amax[i] < bmin[i] {
			return false
		}
	}
	return true
}
