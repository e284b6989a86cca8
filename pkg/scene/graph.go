package scene

import (
	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/models"
)

// Graph owns a tree of nodes, the joints between them, and the node
// metadata side table.
type Graph struct {
	Root *Node

	// MeshIndex lists, per asset key, the mesh nodes decoded from it.
	MeshIndex map[assetdb.Key][]*Node

	nodes  map[NodeID]*Node
	meta   map[NodeID]*Meta
	joints map[string]*Joint
	order  []*Joint
	nextID NodeID
}

// PoseSnapshot is a node's local transform and visibility at one moment.
type PoseSnapshot struct {
	Position    math3d.Vec3
	Orientation math3d.Quat
	Scale       math3d.Vec3
	Visible     bool
}

// Meta is the typed metadata a node may carry.
type Meta struct {
	AssetKey       assetdb.Key
	Pose           *PoseSnapshot
	MaterialBackup *models.Material
	Highlighted    bool
}

// New creates a graph with a group root named name.
func New(name string) *Graph {
	g := &Graph{
		MeshIndex: make(map[assetdb.Key][]*Node),
		nodes:     make(map[NodeID]*Node),
		meta:      make(map[NodeID]*Meta),
		joints:    make(map[string]*Joint),
	}
	g.Root = NewNode(name, KindGroup)
	g.register(g.Root)
	return g
}

func (g *Graph) register(n *Node) {
	n.Walk(func(c *Node) bool {
		if c.ID == 0 {
			g.nextID++
			c.ID = g.nextID
		}
		g.nodes[c.ID] = c
		return true
	})
}

// Add attaches n, with any children it already has, under parent and
// computes the world transforms of the new subtree.
func (g *Graph) Add(parent, n *Node) {
	if n.parent != nil {
		n.parent.removeChild(n)
	}
	n.parent = parent
	parent.children = append(parent.children, n)
	g.register(n)
	n.updateWorld(parent.world)
}

func (n *Node) removeChild(c *Node) {
	for i, x := range n.children {
		if x == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Len returns the number of nodes including the root.
func (g *Graph) Len() int { return len(g.nodes) }

// Walk visits every node in pre-order from the root.
func (g *Graph) Walk(fn func(*Node) bool) { g.Root.Walk(fn) }

// Find returns the first node named name in pre-order.
func (g *Graph) Find(name string) *Node {
	var found *Node
	g.Walk(func(n *Node) bool {
		if found == nil && n.Name == name {
			found = n
		}
		return found == nil
	})
	return found
}

// UpdateWorld recomputes every world transform, parents before children.
func (g *Graph) UpdateWorld() {
	g.Root.updateWorld(math3d.Identity())
}

// UpdateSubtree recomputes world transforms below and including n from its
// parent's cached transform.
func (g *Graph) UpdateSubtree(n *Node) {
	parent := math3d.Identity()
	if n.parent != nil {
		parent = n.parent.world
	}
	n.updateWorld(parent)
}

// Meta returns n's metadata record, creating it on first use.
func (g *Graph) Meta(n *Node) *Meta {
	m, ok := g.meta[n.ID]
	if !ok {
		m = &Meta{}
		g.meta[n.ID] = m
	}
	return m
}

// LookupMeta returns n's metadata record if it has one.
func (g *Graph) LookupMeta(n *Node) (*Meta, bool) {
	m, ok := g.meta[n.ID]
	return m, ok
}

// IndexMesh records n as produced by key and tags it with the key.
func (g *Graph) IndexMesh(key assetdb.Key, n *Node) {
	g.MeshIndex[key] = append(g.MeshIndex[key], n)
	g.Meta(n).AssetKey = key
}

// MeshNodes returns every mesh node in pre-order.
func (g *Graph) MeshNodes() []*Node {
	var out []*Node
	g.Walk(func(n *Node) bool {
		if n.Kind == KindMesh && n.Mesh != nil {
			out = append(out, n)
		}
		return true
	})
	return out
}

// AddJoint registers j. Joints are kept in registration order.
func (g *Graph) AddJoint(j *Joint) {
	j.graph = g
	g.joints[j.Name] = j
	g.order = append(g.order, j)
}

// Joint returns the joint named name.
func (g *Graph) Joint(name string) *Joint { return g.joints[name] }

// Joints returns all joints in registration order.
func (g *Graph) Joints() []*Joint { return append([]*Joint(nil), g.order...) }

// ResetJoints sets every joint's value to exactly zero.
func (g *Graph) ResetJoints() {
	for _, j := range g.order {
		j.value = 0
		j.apply()
	}
	g.UpdateWorld()
}
