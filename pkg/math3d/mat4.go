package math3d

import "github.com/go-gl/mathgl/mgl64"

// Mat4 is a 4x4 matrix in column-major order, the same layout as mathgl's
// Mat4, so conversions between the two are free.
//
//	| 0  4  8  12 |
//	| 1  5  9  13 |
//	| 2  6  10 14 |
//	| 3  7  11 15 |
//
// Columns 0-2 hold the basis vectors and column 3 the translation.
type Mat4 [16]float64

// Vec4 is a homogeneous point or direction.
type Vec4 struct {
	X, Y, Z, W float64
}

// V4 creates a new Vec4.
func V4(x, y, z, w float64) Vec4 {
	return Vec4{x, y, z, w}
}

// V4FromV3 extends v with w.
func V4FromV3(v Vec3, w float64) Vec4 {
	return Vec4{v.X, v.Y, v.Z, w}
}

// PerspectiveDivide divides by W. A zero W leaves the vector unscaled.
func (v Vec4) PerspectiveDivide() Vec3 {
	if v.W == 0 {
		return Vec3{v.X, v.Y, v.Z}
	}
	return Vec3{v.X / v.W, v.Y / v.W, v.Z / v.W}
}

func (v Vec3) mgl() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func (m Mat4) mgl() mgl64.Mat4 { return mgl64.Mat4(m) }

// Identity returns the identity matrix.
func Identity() Mat4 { return Mat4(mgl64.Ident4()) }

// Translate creates a translation matrix.
func Translate(v Vec3) Mat4 { return Mat4(mgl64.Translate3D(v.X, v.Y, v.Z)) }

// Scale creates a scaling matrix.
func Scale(v Vec3) Mat4 { return Mat4(mgl64.Scale3D(v.X, v.Y, v.Z)) }

// ScaleUniform creates a uniform scaling matrix.
func ScaleUniform(s float64) Mat4 { return Scale(V3(s, s, s)) }

// RotateX rotates angle radians about +X.
func RotateX(angle float64) Mat4 { return Mat4(mgl64.HomogRotate3DX(angle)) }

// RotateY rotates angle radians about +Y.
func RotateY(angle float64) Mat4 { return Mat4(mgl64.HomogRotate3DY(angle)) }

// RotateZ rotates angle radians about +Z.
func RotateZ(angle float64) Mat4 { return Mat4(mgl64.HomogRotate3DZ(angle)) }

// LookAt creates a view matrix looking from eye towards center.
func LookAt(eye, center, up Vec3) Mat4 {
	return Mat4(mgl64.LookAtV(eye.mgl(), center.mgl(), up.mgl()))
}

// Perspective creates a GL perspective projection mapping view depth to
// NDC z in [-1, 1]. fovy is the vertical field of view in radians.
func Perspective(fovy, aspect, near, far float64) Mat4 {
	return Mat4(mgl64.Perspective(fovy, aspect, near, far))
}

// Orthographic creates a GL orthographic projection.
func Orthographic(left, right, bottom, top, near, far float64) Mat4 {
	return Mat4(mgl64.Ortho(left, right, bottom, top, near, far))
}

// Mul multiplies two matrices: a * b.
//
//nolint:st1016 // a*b naming convention is clearer for matrix multiplication
func (a Mat4) Mul(b Mat4) Mat4 {
	return Mat4(a.mgl().Mul4(b.mgl()))
}

// MulVec3 transforms v as a point (w=1) and divides by the resulting w.
func (m Mat4) MulVec3(v Vec3) Vec3 {
	return m.MulVec4(V4FromV3(v, 1)).PerspectiveDivide()
}

// MulVec3Dir transforms v as a direction (w=0, no translation).
func (m Mat4) MulVec3Dir(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[4]*v.Y + m[8]*v.Z,
		m[1]*v.X + m[5]*v.Y + m[9]*v.Z,
		m[2]*v.X + m[6]*v.Y + m[10]*v.Z,
	}
}

// MulVec4 transforms a Vec4.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	r := m.mgl().Mul4x1(mgl64.Vec4{v.X, v.Y, v.Z, v.W})
	return Vec4{r[0], r[1], r[2], r[3]}
}

// Transpose returns the transposed matrix.
func (m Mat4) Transpose() Mat4 { return Mat4(m.mgl().Transpose()) }

// Determinant returns the determinant of the matrix.
func (m Mat4) Determinant() float64 { return m.mgl().Det() }

// Inverse returns the inverse of the matrix, or the identity when the
// matrix is singular.
func (m Mat4) Inverse() Mat4 {
	if m.Determinant() == 0 {
		return Identity()
	}
	return Mat4(m.mgl().Inv())
}

// NormalMatrix returns the inverse transpose used to carry surface normals
// through m.
func (m Mat4) NormalMatrix() Mat4 { return m.Inverse().Transpose() }

// Mirrors reports whether m flips handedness, which reverses triangle
// winding.
func (m Mat4) Mirrors() bool { return m.Determinant() < 0 }

// Translation extracts the translation component.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}
