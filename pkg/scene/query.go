package scene

import (
	"math"

	"github.com/taigrr/urdfview/pkg/math3d"
)

// BoundingBox returns the world-space bounds of the visible mesh nodes in
// n's subtree. ok is false when the subtree has no visible geometry.
func BoundingBox(n *Node) (box math3d.AABB, ok bool) {
	box = math3d.EmptyAABB()
	if n == nil || !n.VisibleInWorld() {
		return box, false
	}
	n.Walk(func(c *Node) bool {
		if !c.Visible {
			return false
		}
		if c.Kind == KindMesh && c.Mesh != nil && c.Mesh.TriangleCount() > 0 {
			box = box.Union(c.Mesh.Bounds().Transform(c.world))
		}
		return true
	})
	return box, !box.IsEmpty()
}

// Hit is a ray intersection with a mesh node.
type Hit struct {
	Node     *Node
	Distance float64 // world units from the ray origin
	Point    math3d.Vec3
}

// Raycast returns the nearest visible mesh triangle hit by ray under n.
func Raycast(n *Node, ray math3d.Ray) (Hit, bool) {
	best := Hit{Distance: math.Inf(1)}
	if n == nil || !n.VisibleInWorld() {
		return best, false
	}
	n.Walk(func(c *Node) bool {
		if !c.Visible {
			return false
		}
		if c.Kind != KindMesh || c.Mesh == nil {
			return true
		}
		if h, ok := raycastMesh(c, ray); ok && h.Distance < best.Distance {
			best = h
		}
		return true
	})
	return best, best.Node != nil
}

// raycastMesh tests in the node's local space so scaled meshes need no
// per-vertex transform.
func raycastMesh(n *Node, ray math3d.Ray) (Hit, bool) {
	inv := n.world.Inverse()
	local := math3d.Ray{
		Origin:    inv.MulVec3(ray.Origin),
		Direction: inv.MulVec3Dir(ray.Direction),
	}
	if _, hit := local.IntersectAABB(n.Mesh.Bounds()); !hit {
		return Hit{}, false
	}

	m := n.Mesh
	bestT := math.Inf(1)
	for _, f := range m.Faces {
		t, hit := local.IntersectTriangle(
			m.Vertices[f.V[0]].Position,
			m.Vertices[f.V[1]].Position,
			m.Vertices[f.V[2]].Position,
		)
		if hit && t < bestT {
			bestT = t
		}
	}
	if math.IsInf(bestT, 1) {
		return Hit{}, false
	}
	p := n.world.MulVec3(local.At(bestT))
	return Hit{Node: n, Distance: p.Distance(ray.Origin), Point: p}, true
}

// SnapshotPose records the local transform and visibility of every node in
// root's subtree. A later call overwrites earlier snapshots.
func (g *Graph) SnapshotPose(root *Node) {
	root.Walk(func(n *Node) bool {
		g.Meta(n).Pose = &PoseSnapshot{
			Position:    n.Position,
			Orientation: n.Orientation,
			Scale:       n.Scale,
			Visible:     n.Visible,
		}
		return true
	})
}

// RestorePose puts back every snapshotted node in root's subtree and
// recomputes world transforms. Nodes without a snapshot are left alone.
func (g *Graph) RestorePose(root *Node) {
	root.Walk(func(n *Node) bool {
		if m, ok := g.LookupMeta(n); ok && m.Pose != nil {
			n.Position = m.Pose.Position
			n.Orientation = m.Pose.Orientation
			n.Scale = m.Pose.Scale
			n.Visible = m.Pose.Visible
		}
		return true
	})
	g.UpdateSubtree(root)
}
