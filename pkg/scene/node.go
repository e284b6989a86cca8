// Package scene is the robot scene graph: a tree of transformable nodes,
// the joints that move them, and per-node metadata kept in a side table.
//
// A Graph is not safe for concurrent use. It belongs to the goroutine that
// renders it.
package scene

import (
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/models"
)

// NodeID identifies a node within its graph. Zero means unregistered.
type NodeID uint64

// Kind says what a node stands for.
type Kind int

const (
	KindGroup  Kind = iota // structural node
	KindLink               // a URDF link frame
	KindVisual             // a visual's origin frame
	KindMesh               // drawable geometry
)

func (k Kind) String() string {
	switch k {
	case KindLink:
		return "link"
	case KindVisual:
		return "visual"
	case KindMesh:
		return "mesh"
	default:
		return "group"
	}
}

// Node is a transformable element of the graph.
type Node struct {
	ID   NodeID
	Name string
	Kind Kind

	Position    math3d.Vec3
	Orientation math3d.Quat
	Scale       math3d.Vec3
	Visible     bool

	// Mesh nodes only. Material is this node's own copy; highlighting
	// edits it in place.
	Mesh     *models.Mesh
	Material models.Material

	parent   *Node
	children []*Node
	world    math3d.Mat4
}

// NewNode returns a visible node at the identity transform.
func NewNode(name string, kind Kind) *Node {
	return &Node{
		Name:        name,
		Kind:        kind,
		Orientation: math3d.QuatIdent(),
		Scale:       math3d.V3(1, 1, 1),
		Visible:     true,
		world:       math3d.Identity(),
	}
}

// NewMeshNode wraps mesh in a drawable node. The node's material is the
// mesh's first material, or the default when it has none.
func NewMeshNode(name string, mesh *models.Mesh) *Node {
	n := NewNode(name, KindMesh)
	n.Mesh = mesh
	n.Material = models.DefaultMaterial()
	if m := mesh.Material(0); m != nil {
		n.Material = *m
	}
	return n
}

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Local returns the transform relative to the parent.
func (n *Node) Local() math3d.Mat4 {
	return math3d.Compose(n.Position, n.Orientation, n.Scale)
}

// World returns the cached world transform as of the last update.
func (n *Node) World() math3d.Mat4 { return n.world }

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// VisibleInWorld reports whether n and all of its ancestors are visible.
func (n *Node) VisibleInWorld() bool {
	for p := n; p != nil; p = p.parent {
		if !p.Visible {
			return false
		}
	}
	return true
}

func (n *Node) updateWorld(parent math3d.Mat4) {
	n.world = parent.Mul(n.Local())
	for _, c := range n.children {
		c.updateWorld(n.world)
	}
}
