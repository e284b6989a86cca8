package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/taigrr/urdfview/pkg/math3d"
)

// ErrDecode marks a payload that could not be decoded as its inferred format.
var ErrDecode = errors.New("decode failure")

func decodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// Part is one mesh of a decoded sub-scene, placed by Transform relative to
// the sub-scene root.
type Part struct {
	Name      string
	Transform math3d.Mat4
	Mesh      *Mesh
}

// SubScene is the result of decoding a scene-description file: a flat list
// of placed meshes that is spliced under a single node of the robot graph.
type SubScene struct {
	Name  string
	Parts []Part
}

// TriangleCount returns the number of triangles across all parts.
func (s *SubScene) TriangleCount() int {
	n := 0
	for _, p := range s.Parts {
		n += p.Mesh.TriangleCount()
	}
	return n
}

// MeshDecoder decodes a mesh-polygon payload.
type MeshDecoder func(data []byte) (*Mesh, error)

// SceneDecoder decodes a scene-description payload. fsys resolves any file
// the document references (external buffers, images) and may be nil.
type SceneDecoder func(ctx context.Context, data []byte, fsys fs.FS) (*SubScene, error)

// Registry maps lower-case file extensions (with dot) to decoders.
type Registry struct {
	mesh  map[string]MeshDecoder
	scene map[string]SceneDecoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		mesh:  make(map[string]MeshDecoder),
		scene: make(map[string]SceneDecoder),
	}
}

// DefaultRegistry returns a registry with every decoder in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterMesh(".stl", DecodeSTL)
	r.RegisterMesh(".obj", DecodeOBJ)
	r.RegisterScene(".dae", DecodeColladaScene)
	gl := NewGLTFLoader()
	r.RegisterScene(".glb", gl.DecodeScene)
	r.RegisterScene(".gltf", gl.DecodeScene)
	return r
}

// RegisterMesh sets the mesh-polygon decoder for ext.
func (r *Registry) RegisterMesh(ext string, dec MeshDecoder) {
	r.mesh[strings.ToLower(ext)] = dec
}

// RegisterScene sets the scene-description decoder for ext.
func (r *Registry) RegisterScene(ext string, dec SceneDecoder) {
	r.scene[strings.ToLower(ext)] = dec
}

// MeshDecoderFor returns the mesh decoder for the extension of name.
func (r *Registry) MeshDecoderFor(name string) (MeshDecoder, bool) {
	dec, ok := r.mesh[strings.ToLower(path.Ext(name))]
	return dec, ok
}

// SceneDecoderFor returns the scene decoder for the extension of name.
func (r *Registry) SceneDecoderFor(name string) (SceneDecoder, bool) {
	dec, ok := r.scene[strings.ToLower(path.Ext(name))]
	return dec, ok
}
