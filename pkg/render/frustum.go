package render

import (
	"github.com/taigrr/urdfview/pkg/math3d"
)

// Plane is Ax + By + Cz + D = 0 with (A, B, C) as the normal.
type Plane struct {
	Normal math3d.Vec3
	D      float64
}

// Normalize scales the plane equation so the normal has unit length.
func (p *Plane) Normalize() {
	l := p.Normal.Len()
	if l == 0 {
		return
	}
	p.Normal = p.Normal.Scale(1.0 / l)
	p.D /= l
}

// DistanceToPoint returns the signed distance from the plane to a point.
// Positive = in front (same side as normal), negative = behind.
func (p Plane) DistanceToPoint(point math3d.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Frustum holds the six inward-facing planes of a view volume, ordered
// Left, Right, Bottom, Top, Near, Far.
type Frustum struct {
	Planes [6]Plane
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// NewFrustumFromMatrix extracts frustum planes from a view-projection matrix
// (Gribb/Hartmann).
func NewFrustumFromMatrix(m math3d.Mat4) Frustum {
	// For column-major m, row i element j is m[i+j*4].
	row := func(i int) (float64, float64, float64, float64) {
		return m[i], m[i+4], m[i+8], m[i+12]
	}
	r0x, r0y, r0z, r0w := row(0)
	r1x, r1y, r1z, r1w := row(1)
	r2x, r2y, r2z, r2w := row(2)
	r3x, r3y, r3z, r3w := row(3)

	var f Frustum
	f.Planes[FrustumLeft] = Plane{math3d.V3(r3x+r0x, r3y+r0y, r3z+r0z), r3w + r0w}
	f.Planes[FrustumRight] = Plane{math3d.V3(r3x-r0x, r3y-r0y, r3z-r0z), r3w - r0w}
	f.Planes[FrustumBottom] = Plane{math3d.V3(r3x+r1x, r3y+r1y, r3z+r1z), r3w + r1w}
	f.Planes[FrustumTop] = Plane{math3d.V3(r3x-r1x, r3y-r1y, r3z-r1z), r3w - r1w}
	f.Planes[FrustumNear] = Plane{math3d.V3(r3x+r2x, r3y+r2y, r3z+r2z), r3w + r2w}
	f.Planes[FrustumFar] = Plane{math3d.V3(r3x-r2x, r3y-r2y, r3z-r2z), r3w - r2w}
	for i := range f.Planes {
		f.Planes[i].Normalize()
	}
	return f
}

// IntersectAABB reports whether any part of box may be inside the frustum.
// It tests the corner furthest along each plane normal.
func (f Frustum) IntersectAABB(box math3d.AABB) bool {
	if box.IsEmpty() {
		return false
	}
	for _, plane := range f.Planes {
		p := math3d.V3(
			pick(plane.Normal.X >= 0, box.Max.X, box.Min.X),
			pick(plane.Normal.Y >= 0, box.Max.Y, box.Min.Y),
			pick(plane.Normal.Z >= 0, box.Max.Z, box.Min.Z),
		)
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint tests if a point is inside the frustum.
func (f Frustum) ContainsPoint(p math3d.Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

// Frustum returns the camera's current view frustum.
func (c *Camera) Frustum() Frustum {
	return NewFrustumFromMatrix(c.ViewProjectionMatrix())
}
