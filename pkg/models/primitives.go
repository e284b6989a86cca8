package models

import (
	"math"

	"github.com/taigrr/urdfview/pkg/math3d"
)

// Primitive meshes for robot descriptions that use box, cylinder and sphere
// geometry instead of mesh files. All are centered on the origin; the
// cylinder's axis is Z.

const primitiveSegments = 24

// NewBox creates an axis-aligned box with the given edge lengths.
func NewBox(size math3d.Vec3) *Mesh {
	m := NewMesh("box")
	h := size.Scale(0.5)
	c := func(x, y, z float64) math3d.Vec3 { return math3d.V3(x*h.X, y*h.Y, z*h.Z) }
	quads := [6][4]math3d.Vec3{
		{c(1, -1, -1), c(1, 1, -1), c(1, 1, 1), c(1, -1, 1)},     // +X
		{c(-1, 1, -1), c(-1, -1, -1), c(-1, -1, 1), c(-1, 1, 1)}, // -X
		{c(1, 1, -1), c(-1, 1, -1), c(-1, 1, 1), c(1, 1, 1)},     // +Y
		{c(-1, -1, -1), c(1, -1, -1), c(1, -1, 1), c(-1, -1, 1)}, // -Y
		{c(-1, -1, 1), c(1, -1, 1), c(1, 1, 1), c(-1, 1, 1)},     // +Z
		{c(-1, 1, -1), c(1, 1, -1), c(1, -1, -1), c(-1, -1, -1)}, // -Z
	}
	for _, q := range quads {
		addQuad(m, q)
	}
	m.CalculateBounds()
	return m
}

// NewCylinder creates a capped cylinder along Z.
func NewCylinder(radius, length float64) *Mesh {
	m := NewMesh("cylinder")
	hz := length / 2
	top, bottom := math3d.V3(0, 0, hz), math3d.V3(0, 0, -hz)
	for i := range primitiveSegments {
		a0 := 2 * math.Pi * float64(i) / primitiveSegments
		a1 := 2 * math.Pi * float64(i+1) / primitiveSegments
		p0 := math3d.V3(radius*math.Cos(a0), radius*math.Sin(a0), 0)
		p1 := math3d.V3(radius*math.Cos(a1), radius*math.Sin(a1), 0)

		b0, b1 := p0.Add(bottom), p1.Add(bottom)
		t0, t1 := p0.Add(top), p1.Add(top)
		addQuad(m, [4]math3d.Vec3{b0, b1, t1, t0})
		_ = addTriangle(m, [3]math3d.Vec3{top, t0, t1})
		_ = addTriangle(m, [3]math3d.Vec3{bottom, b1, b0})
	}
	m.CalculateBounds()
	return m
}

// NewSphere creates a UV sphere.
func NewSphere(radius float64) *Mesh {
	m := NewMesh("sphere")
	rings := primitiveSegments / 2
	point := func(ring, seg int) math3d.Vec3 {
		theta := math.Pi * float64(ring) / float64(rings)
		phi := 2 * math.Pi * float64(seg) / primitiveSegments
		return math3d.V3(
			radius*math.Sin(theta)*math.Cos(phi),
			radius*math.Sin(theta)*math.Sin(phi),
			radius*math.Cos(theta),
		)
	}
	for r := range rings {
		for s := range primitiveSegments {
			a, b := point(r, s), point(r, s+1)
			c, d := point(r+1, s+1), point(r+1, s)
			switch r {
			case 0:
				_ = addTriangle(m, [3]math3d.Vec3{a, d, c})
			case rings - 1:
				_ = addTriangle(m, [3]math3d.Vec3{a, d, b})
			default:
				addQuad(m, [4]math3d.Vec3{a, d, c, b})
			}
		}
	}
	m.CalculateBounds()
	return m
}

// addQuad splits a CCW quad into two triangles.
func addQuad(m *Mesh, q [4]math3d.Vec3) {
	_ = addTriangle(m, [3]math3d.Vec3{q[0], q[1], q[2]})
	_ = addTriangle(m, [3]math3d.Vec3{q[0], q[2], q[3]})
}
