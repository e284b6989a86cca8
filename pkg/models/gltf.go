package models

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/taigrr/urdfview/pkg/math3d"
)

// GLTFLoader decodes glTF/GLB payloads into placed parts.
type GLTFLoader struct {
	// Options
	CalculateNormals bool
	SmoothNormals    bool
}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    true,
	}
}

// DecodeScene decodes a .gltf or .glb payload. External buffers are read
// from fsys; a nil fsys only supports self-contained documents.
func (l *GLTFLoader) DecodeScene(ctx context.Context, data []byte, fsys fs.FS) (*SubScene, error) {
	if fsys == nil {
		fsys = emptyFS{}
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoderFS(bytes.NewReader(data), fsys).Decode(doc); err != nil {
		return nil, decodeErrorf("gltf: %v", err)
	}

	materials := gltfMaterials(doc)
	meshes := make(map[int][]*Mesh)
	scene := &SubScene{}

	var visit func(idx int, parent math3d.Mat4, depth int) error
	visit = func(idx int, parent math3d.Mat4, depth int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if idx < 0 || idx >= len(doc.Nodes) || depth > len(doc.Nodes) {
			return decodeErrorf("gltf: bad node reference %d", idx)
		}
		n := doc.Nodes[idx]
		world := parent.Mul(gltfNodeTransform(n))

		if n.Mesh != nil {
			parts, ok := meshes[*n.Mesh]
			if !ok {
				var err error
				if parts, err = l.decodeMesh(doc, *n.Mesh, materials); err != nil {
					return err
				}
				meshes[*n.Mesh] = parts
			}
			for _, m := range parts {
				scene.Parts = append(scene.Parts, Part{Name: n.Name, Transform: world, Mesh: m.Clone()})
			}
		}
		for _, c := range n.Children {
			if err := visit(c, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	roots := gltfRoots(doc)
	if len(roots) > 0 {
		for _, r := range roots {
			if err := visit(r, math3d.Identity(), 0); err != nil {
				return nil, err
			}
		}
	} else {
		// Mesh-only document
		for i := range doc.Meshes {
			parts, err := l.decodeMesh(doc, i, materials)
			if err != nil {
				return nil, err
			}
			for _, m := range parts {
				scene.Parts = append(scene.Parts, Part{Name: m.Name, Transform: math3d.Identity(), Mesh: m})
			}
		}
	}

	if len(scene.Parts) == 0 {
		return nil, decodeErrorf("gltf: no triangle geometry")
	}
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		scene.Name = doc.Scenes[*doc.Scene].Name
	}
	return scene, nil
}

type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

func gltfRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) == 0 {
		return nil
	}
	s := 0
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		s = *doc.Scene
	}
	return doc.Scenes[s].Nodes
}

func gltfNodeTransform(n *gltf.Node) math3d.Mat4 {
	if n.Matrix != gltf.DefaultMatrix && n.Matrix != [16]float64{} {
		return math3d.Mat4(n.Matrix)
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	q := mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}
	return math3d.Compose(math3d.V3(t[0], t[1], t[2]), q, math3d.V3(s[0], s[1], s[2]))
}

func gltfMaterials(doc *gltf.Document) []Material {
	out := make([]Material, len(doc.Materials))
	for i, m := range doc.Materials {
		mat := DefaultMaterial()
		mat.Name = m.Name
		if pbr := m.PBRMetallicRoughness; pbr != nil && pbr.BaseColorFactor != nil {
			mat.BaseColor = *pbr.BaseColorFactor
		}
		if m.AlphaMode == gltf.AlphaBlend {
			mat.Transparent = true
			mat.Opacity = mat.BaseColor[3]
		}
		mat.Emissive = m.EmissiveFactor
		out[i] = mat
	}
	return out
}

// decodeMesh returns one Mesh per triangle primitive.
func (l *GLTFLoader) decodeMesh(doc *gltf.Document, idx int, materials []Material) ([]*Mesh, error) {
	if idx < 0 || idx >= len(doc.Meshes) {
		return nil, decodeErrorf("gltf: bad mesh reference %d", idx)
	}
	m := doc.Meshes[idx]

	var out []*Mesh
	for pi, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			// Skip non-triangle primitives (lines, points, etc)
			continue
		}
		mesh, err := l.decodePrimitive(doc, prim, materials)
		if err != nil {
			return nil, decodeErrorf("gltf: mesh %q primitive %d: %v", m.Name, pi, err)
		}
		if mesh == nil {
			continue
		}
		mesh.Name = m.Name
		out = append(out, mesh)
	}
	return out, nil
}

func (l *GLTFLoader) decodePrimitive(doc *gltf.Document, prim *gltf.Primitive, materials []Material) (*Mesh, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}
	positions, err := readVec3Accessor(doc, posIdx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	var normals []math3d.Vec3
	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = readVec3Accessor(doc, normIdx); err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}

	mesh := NewMesh("")
	matIdx := -1
	if prim.Material != nil && *prim.Material < len(materials) {
		mesh.Materials = []Material{materials[*prim.Material]}
		matIdx = 0
	}

	for i := range positions {
		v := MeshVertex{Position: positions[i]}
		if i < len(normals) {
			v.Normal = normals[i]
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}

	var indices []int
	if prim.Indices != nil {
		if indices, err = readIndices(doc, *prim.Indices); err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		indices = make([]int, len(positions))
		for i := range indices {
			indices[i] = i
		}
	}

	// glTF front faces are CCW; the rasterizer expects CW after its Y-flip
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if a >= len(positions) || b >= len(positions) || c >= len(positions) {
			return nil, fmt.Errorf("index out of range")
		}
		mesh.Faces = append(mesh.Faces, Face{V: [3]int{a, c, b}, Material: matIdx})
	}

	if len(normals) == 0 && l.CalculateNormals {
		if l.SmoothNormals {
			mesh.CalculateSmoothNormals()
		} else {
			mesh.CalculateNormals()
		}
	}
	mesh.CalculateBounds()
	return mesh, nil
}

// readVec3Accessor reads Vec3 data from a GLTF accessor.
func readVec3Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec3, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("bad accessor %d", accessorIdx)
	}
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorVec3 || accessor.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("expected float VEC3, got %v/%v", accessor.Type, accessor.ComponentType)
	}

	buf, start, stride, err := accessorBytes(doc, accessor, 12)
	if err != nil {
		return nil, err
	}

	result := make([]math3d.Vec3, accessor.Count)
	for i := range result {
		off := start + i*stride
		result[i] = math3d.V3(
			float64(readFloat32(buf[off:])),
			float64(readFloat32(buf[off+4:])),
			float64(readFloat32(buf[off+8:])),
		)
	}
	return result, nil
}

// readIndices reads index data from a GLTF accessor.
func readIndices(doc *gltf.Document, accessorIdx int) ([]int, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("bad accessor %d", accessorIdx)
	}
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("expected SCALAR indices, got %v", accessor.Type)
	}

	var size int
	switch accessor.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("unexpected index type: %v", accessor.ComponentType)
	}

	buf, start, stride, err := accessorBytes(doc, accessor, size)
	if err != nil {
		return nil, err
	}

	result := make([]int, accessor.Count)
	for i := range result {
		off := start + i*stride
		switch size {
		case 1:
			result[i] = int(buf[off])
		case 2:
			result[i] = int(uint16(buf[off]) | uint16(buf[off+1])<<8)
		case 4:
			result[i] = int(uint32(buf[off]) | uint32(buf[off+1])<<8 |
				uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24)
		}
	}
	return result, nil
}

// accessorBytes resolves an accessor to its backing buffer and verifies
// that Count elements of elemSize bytes fit inside the buffer view.
func accessorBytes(doc *gltf.Document, accessor *gltf.Accessor, elemSize int) ([]byte, int, int, error) {
	if accessor.BufferView == nil || *accessor.BufferView >= len(doc.BufferViews) {
		return nil, 0, 0, fmt.Errorf("accessor has no buffer view")
	}
	view := doc.BufferViews[*accessor.BufferView]
	if view.Buffer >= len(doc.Buffers) {
		return nil, 0, 0, fmt.Errorf("buffer view references missing buffer")
	}
	data := doc.Buffers[view.Buffer].Data
	if data == nil {
		return nil, 0, 0, fmt.Errorf("buffer has no data")
	}

	stride := view.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	start := view.ByteOffset + accessor.ByteOffset
	if accessor.Count == 0 {
		return data, start, stride, nil
	}
	end := start + (accessor.Count-1)*stride + elemSize
	if end > view.ByteOffset+view.ByteLength || end > len(data) {
		return nil, 0, 0, fmt.Errorf("accessor overruns buffer")
	}
	return data, start, stride, nil
}
