package scene

import (
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/urdf"
)

// Joint moves its child node relative to the parent link. The child's
// local transform is always origin * motion(value).
type Joint struct {
	Name  string
	Type  urdf.JointType
	Axis  math3d.Vec3
	Lower float64
	Upper float64

	Child *Node

	OriginPosition    math3d.Vec3
	OriginOrientation math3d.Quat

	value     float64
	followers []follower
	setting   bool
	graph     *Graph
}

type follower struct {
	joint      *Joint
	multiplier float64
	offset     float64
}

// NewJoint creates a joint driving child and places child at the origin.
func NewJoint(name string, typ urdf.JointType, child *Node, originPos math3d.Vec3, originRot math3d.Quat) *Joint {
	j := &Joint{
		Name:              name,
		Type:              typ,
		Axis:              math3d.V3(1, 0, 0),
		Child:             child,
		OriginPosition:    originPos,
		OriginOrientation: originRot,
	}
	j.apply()
	return j
}

// Value returns the current actuation value (radians or meters).
func (j *Joint) Value() float64 { return j.value }

// Movable reports whether SetValue has any effect.
func (j *Joint) Movable() bool {
	switch j.Type {
	case urdf.Revolute, urdf.Continuous, urdf.Prismatic:
		return true
	}
	return false
}

// Follow makes j mimic leader: j = multiplier*leader + offset.
func (j *Joint) Follow(leader *Joint, multiplier, offset float64) {
	leader.followers = append(leader.followers, follower{joint: j, multiplier: multiplier, offset: offset})
}

// SetValue sets the actuation value, clamped to the limits for revolute
// and prismatic joints that declare a range, then updates the child's
// subtree and any mimicking joints. It returns the value applied.
func (j *Joint) SetValue(v float64) float64 {
	if !j.Movable() || j.setting {
		return j.value
	}
	if j.Type != urdf.Continuous && j.Upper > j.Lower {
		v = max(j.Lower, min(j.Upper, v))
	}
	j.value = v
	j.apply()
	if j.graph != nil {
		j.graph.UpdateSubtree(j.Child)
	}

	j.setting = true
	for _, f := range j.followers {
		f.joint.SetValue(f.multiplier*v + f.offset)
	}
	j.setting = false
	return v
}

func (j *Joint) apply() {
	pos, rot := j.OriginPosition, j.OriginOrientation
	switch j.Type {
	case urdf.Revolute, urdf.Continuous:
		rot = rot.Mul(math3d.QuatAxisAngle(j.Axis, j.value))
	case urdf.Prismatic:
		pos = pos.Add(math3d.RotateVec(rot, j.Axis.Normalize().Scale(j.value)))
	}
	j.Child.Position = pos
	j.Child.Orientation = rot
}
