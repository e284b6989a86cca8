// Package models decodes mesh files (STL, OBJ, COLLADA, glTF) from in-memory
// payloads into triangle meshes.
package models

import (
	"github.com/taigrr/urdfview/pkg/math3d"
)

// Mesh represents a 3D mesh with vertices, faces, and materials.
type Mesh struct {
	Name      string
	Vertices  []MeshVertex
	Faces     []Face
	Materials []Material

	// Bounding box (calculated on load)
	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// MeshVertex holds all vertex attributes.
type MeshVertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
}

// Face represents a triangle face with vertex indices and material reference.
type Face struct {
	V        [3]int // Indices into Mesh.Vertices
	Material int    // Index into Mesh.Materials (-1 for no material)
}

// Material is the flat-shaded surface description a mesh part is drawn with.
type Material struct {
	Name        string
	BaseColor   [4]float64 // RGBA in 0-1 range
	Opacity     float64    // 0 = invisible, 1 = opaque
	Transparent bool       // Whether Opacity is honored (alpha blending)
	Emissive    [3]float64 // Added on top of lit color, used for highlighting
}

// DefaultMaterial returns the light gray material used when a file has none.
func DefaultMaterial() Material {
	return Material{
		Name:      "default",
		BaseColor: [4]float64{0.75, 0.75, 0.75, 1},
		Opacity:   1,
	}
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:      name,
		Vertices:  make([]MeshVertex, 0),
		Faces:     make([]Face, 0),
		BoundsMin: math3d.V3(0, 0, 0),
		BoundsMax: math3d.V3(0, 0, 0),
	}
}

// CalculateBounds computes the axis-aligned bounding box.
func (m *Mesh) CalculateBounds() {
	if len(m.Vertices) == 0 {
		return
	}

	m.BoundsMin = m.Vertices[0].Position
	m.BoundsMax = m.Vertices[0].Position

	for _, v := range m.Vertices[1:] {
		m.BoundsMin = m.BoundsMin.Min(v.Position)
		m.BoundsMax = m.BoundsMax.Max(v.Position)
	}
}

// Bounds returns the bounding box as an AABB.
// An empty mesh returns an empty box.
func (m *Mesh) Bounds() math3d.AABB {
	if len(m.Vertices) == 0 {
		return math3d.EmptyAABB()
	}
	return math3d.NewAABB(m.BoundsMin, m.BoundsMax)
}

// Center returns the center of the bounding box.
func (m *Mesh) Center() math3d.Vec3 {
	return m.BoundsMin.Add(m.BoundsMax).Scale(0.5)
}

// Size returns the dimensions of the bounding box.
func (m *Mesh) Size() math3d.Vec3 {
	return m.BoundsMax.Sub(m.BoundsMin)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// faceNormal returns the area-weighted outward normal of face f. Faces
// are stored clockwise, so that is edge2 x edge1.
func (m *Mesh) faceNormal(f Face) math3d.Vec3 {
	v0 := m.Vertices[f.V[0]].Position
	edge1 := m.Vertices[f.V[1]].Position.Sub(v0)
	edge2 := m.Vertices[f.V[2]].Position.Sub(v0)
	return edge2.Cross(edge1)
}

// CalculateNormals gives every vertex the normal of the last face using
// it. STL and primitive meshes do not share vertices, so that is flat
// shading.
func (m *Mesh) CalculateNormals() {
	for _, f := range m.Faces {
		n := m.faceNormal(f).Normalize()
		for _, idx := range f.V {
			m.Vertices[idx].Normal = n
		}
	}
}

// CalculateSmoothNormals averages the area-weighted normals of the faces
// around each vertex.
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Zero3()
	}
	for _, f := range m.Faces {
		n := m.faceNormal(f)
		for _, idx := range f.V {
			m.Vertices[idx].Normal = m.Vertices[idx].Normal.Add(n)
		}
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// Transform applies a transformation matrix to all vertices. Normals use
// the inverse transpose; a mirroring matrix also flips the winding.
func (m *Mesh) Transform(mat math3d.Mat4) {
	normalMat := mat.NormalMatrix()
	for i := range m.Vertices {
		m.Vertices[i].Position = mat.MulVec3(m.Vertices[i].Position)
		m.Vertices[i].Normal = normalMat.MulVec3Dir(m.Vertices[i].Normal).Normalize()
	}
	if mat.Mirrors() {
		for i := range m.Faces {
			f := &m.Faces[i]
			f.V[1], f.V[2] = f.V[2], f.V[1]
		}
	}
	m.CalculateBounds()
}

// Clone creates a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	clone := &Mesh{
		Name:      m.Name,
		Vertices:  make([]MeshVertex, len(m.Vertices)),
		Faces:     make([]Face, len(m.Faces)),
		Materials: make([]Material, len(m.Materials)),
		BoundsMin: m.BoundsMin,
		BoundsMax: m.BoundsMax,
	}
	copy(clone.Vertices, m.Vertices)
	copy(clone.Faces, m.Faces)
	copy(clone.Materials, m.Materials)
	return clone
}

// Append adds all faces of o to m, offsetting indices and materials.
func (m *Mesh) Append(o *Mesh) {
	base := len(m.Vertices)
	matBase := len(m.Materials)
	m.Vertices = append(m.Vertices, o.Vertices...)
	m.Materials = append(m.Materials, o.Materials...)
	for _, f := range o.Faces {
		mat := f.Material
		if mat >= 0 {
			mat += matBase
		}
		m.Faces = append(m.Faces, Face{
			V:        [3]int{f.V[0] + base, f.V[1] + base, f.V[2] + base},
			Material: mat,
		})
	}
	m.CalculateBounds()
}

// Validate checks that every face index refers to an existing vertex.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, idx := range f.V {
			if idx < 0 || idx >= n {
				return decodeErrorf("face %d references vertex %d of %d", i, idx, n)
			}
		}
	}
	return nil
}

// Material returns material i, or nil when i is -1 or out of range.
func (m *Mesh) Material(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return &m.Materials[i]
}

// MaterialCount returns the number of materials.
func (m *Mesh) MaterialCount() int {
	return len(m.Materials)
}
