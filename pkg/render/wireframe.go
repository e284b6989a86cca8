package render

import (
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/scene"
)

// boxEdges are the corner index pairs of a box's 12 edges. Corner i has
// bit 0 for X, bit 1 for Y and bit 2 for Z set to Max.
var boxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, // along X
	{0, 2}, {1, 3}, {4, 6}, {5, 7}, // along Y
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // along Z
}

func boxCorner(b math3d.AABB, i int) math3d.Vec3 {
	return math3d.V3(
		pick(i&1 != 0, b.Max.X, b.Min.X),
		pick(i&2 != 0, b.Max.Y, b.Min.Y),
		pick(i&4 != 0, b.Max.Z, b.Min.Z),
	)
}

// DrawBox outlines a world-space box.
func (r *Rasterizer) DrawBox(b math3d.AABB, color Color) {
	if b.IsEmpty() {
		return
	}
	for _, e := range boxEdges {
		r.DrawLine3D(boxCorner(b, e[0]), boxCorner(b, e[1]), color)
	}
}

// DrawSelection outlines the visible geometry under n.
func (r *Rasterizer) DrawSelection(n *scene.Node, color Color) {
	if box, ok := scene.BoundingBox(n); ok {
		r.DrawBox(box, color)
	}
}

// DrawAxes draws the X, Y and Z axes of a frame in red, green and blue.
func (r *Rasterizer) DrawAxes(frame math3d.Mat4, length float64) {
	origin := frame.MulVec3(math3d.Zero3())
	r.DrawLine3D(origin, frame.MulVec3(math3d.V3(length, 0, 0)), ColorRed)
	r.DrawLine3D(origin, frame.MulVec3(math3d.V3(0, length, 0)), ColorGreen)
	r.DrawLine3D(origin, frame.MulVec3(math3d.V3(0, 0, length)), ColorBlue)
}

// DrawGrid draws a square grid on the ground (XY) plane centred on the
// origin.
func (r *Rasterizer) DrawGrid(size, step float64, color Color) {
	if step <= 0 {
		return
	}
	half := size / 2
	for v := -half; v <= half+1e-9; v += step {
		r.DrawLine3D(math3d.V3(v, -half, 0), math3d.V3(v, half, 0), color)
		r.DrawLine3D(math3d.V3(-half, v, 0), math3d.V3(half, v, 0), color)
	}
}
