package math3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Quat is a rotation quaternion. It is mathgl's type so callers can use
// slerp, axis-angle and Euler helpers directly.
type Quat = mgl64.Quat

// QuatIdent returns the identity rotation.
func QuatIdent() Quat {
	return mgl64.QuatIdent()
}

// QuatFromRPY builds a rotation from URDF roll/pitch/yaw (fixed axes X, Y, Z,
// applied in that order, so R = Rz(yaw) * Ry(pitch) * Rx(roll)).
func QuatFromRPY(roll, pitch, yaw float64) Quat {
	return mgl64.AnglesToQuat(yaw, pitch, roll, mgl64.ZYX)
}

// QuatAxisAngle builds a rotation of angle radians around axis.
func QuatAxisAngle(axis Vec3, angle float64) Quat {
	axis = axis.Normalize()
	if axis.LenSq() == 0 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatRotate(angle, mgl64.Vec3{axis.X, axis.Y, axis.Z})
}

// QuatMat returns the rotation matrix of q.
func QuatMat(q Quat) Mat4 {
	return Mat4(q.Normalize().Mat4())
}

// RotateVec rotates v by q.
func RotateVec(q Quat, v Vec3) Vec3 {
	r := q.Rotate(mgl64.Vec3{v.X, v.Y, v.Z})
	return Vec3{r[0], r[1], r[2]}
}

// QuatApproxEqual compares two rotations, treating q and -q as equal.
func QuatApproxEqual(a, b Quat, eps float64) bool {
	d := math.Abs(a.Dot(b))
	return math.Abs(d-1) <= eps
}

// Compose builds the local transform T * R * S.
func Compose(pos Vec3, rot Quat, scale Vec3) Mat4 {
	return Translate(pos).Mul(QuatMat(rot)).Mul(Scale(scale))
}

// FromMGL converts a mathgl matrix. Both types are column-major.
func FromMGL(m mgl64.Mat4) Mat4 {
	return Mat4(m)
}
