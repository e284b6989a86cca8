package models

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/taigrr/urdfview/pkg/math3d"
)

func binarySTL(tris ...[3]math3d.Vec3) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, stlHeaderSize))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(tris)))
	for _, tri := range tris {
		vals := []float32{0, 0, 0}
		for _, v := range tri {
			vals = append(vals, float32(v.X), float32(v.Y), float32(v.Z))
		}
		_ = binary.Write(&buf, binary.LittleEndian, vals)
		buf.Write([]byte{0, 0})
	}
	return buf.Bytes()
}

func TestDecodeSTLBinary(t *testing.T) {
	data := binarySTL(
		[3]math3d.Vec3{math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0)},
		[3]math3d.Vec3{math3d.V3(0, 0, 1), math3d.V3(1, 0, 1), math3d.V3(0, 1, 1)},
	)
	mesh, err := DecodeSTL(data)
	if err != nil {
		t.Fatalf("DecodeSTL: %v", err)
	}
	if mesh.TriangleCount() != 2 {
		t.Errorf("TriangleCount = %d, want 2", mesh.TriangleCount())
	}
	if mesh.BoundsMax.Z != 1 || mesh.BoundsMin.Z != 0 {
		t.Errorf("bounds = %v..%v", mesh.BoundsMin, mesh.BoundsMax)
	}
	// CCW triangle in the XY plane faces +Z
	n := mesh.Vertices[0].Normal
	if math.Abs(n.Z-1) > 1e-9 {
		t.Errorf("normal = %v, want +Z", n)
	}
}

func TestDecodeSTLASCII(t *testing.T) {
	data := []byte(`solid cube
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 2 0 0
      vertex 0 2 0
    endloop
  endfacet
endsolid cube
`)
	mesh, err := DecodeSTL(data)
	if err != nil {
		t.Fatalf("DecodeSTL: %v", err)
	}
	if mesh.TriangleCount() != 1 {
		t.Fatalf("TriangleCount = %d, want 1", mesh.TriangleCount())
	}
	if got := mesh.Bounds().MaxDim(); got != 2 {
		t.Errorf("MaxDim = %f, want 2", got)
	}
}

func TestDecodeSTLRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a mesh at all")},
		{"solid without facets", []byte("solid x\nendsolid x\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSTL(tt.data)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("err = %v, want ErrDecode", err)
			}
		})
	}
}

func TestDecodeOBJ(t *testing.T) {
	data := []byte(`# quad
o plate
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
f -4 -2 -1
`)
	mesh, err := DecodeOBJ(data)
	if err != nil {
		t.Fatalf("DecodeOBJ: %v", err)
	}
	if mesh.Name != "plate" {
		t.Errorf("Name = %q, want plate", mesh.Name)
	}
	if mesh.TriangleCount() != 3 {
		t.Errorf("TriangleCount = %d, want 3", mesh.TriangleCount())
	}
	if err := mesh.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDecodeOBJBadIndex(t *testing.T) {
	_, err := DecodeOBJ([]byte("v 0 0 0\nv 1 0 0\nf 1 2 9\n"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

const testCollada = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
  <asset><unit meter="0.5"/><up_axis>Z_UP</up_axis></asset>
  <library_effects>
    <effect id="red-fx"><profile_COMMON><technique sid="common"><phong>
      <diffuse><color>1 0 0 1</color></diffuse>
      <transparency><float>0.5</float></transparency>
    </phong></technique></profile_COMMON></effect>
  </library_effects>
  <library_materials>
    <material id="red" name="red"><instance_effect url="#red-fx"/></material>
  </library_materials>
  <library_geometries>
    <geometry id="tri" name="tri"><mesh>
      <source id="tri-pos">
        <float_array id="tri-pos-array" count="9">0 0 0 2 0 0 0 2 0</float_array>
        <technique_common><accessor source="#tri-pos-array" count="3" stride="3"/></technique_common>
      </source>
      <vertices id="tri-verts"><input semantic="POSITION" source="#tri-pos"/></vertices>
      <triangles material="mat0" count="1">
        <input semantic="VERTEX" source="#tri-verts" offset="0"/>
        <p>0 1 2</p>
      </triangles>
    </mesh></geometry>
  </library_geometries>
  <library_visual_scenes>
    <visual_scene id="scene">
      <node id="n" name="n">
        <translate>0 0 4</translate>
        <instance_geometry url="#tri">
          <bind_material><technique_common>
            <instance_material symbol="mat0" target="#red"/>
          </technique_common></bind_material>
        </instance_geometry>
      </node>
    </visual_scene>
  </library_visual_scenes>
  <scene><instance_visual_scene url="#scene"/></scene>
</COLLADA>`

func TestDecodeCollada(t *testing.T) {
	scene, err := DecodeCollada(context.Background(), testCollada)
	if err != nil {
		t.Fatalf("DecodeCollada: %v", err)
	}
	if len(scene.Parts) != 1 {
		t.Fatalf("parts = %d, want 1", len(scene.Parts))
	}
	part := scene.Parts[0]
	if part.Name != "n" {
		t.Errorf("part name = %q", part.Name)
	}
	// unit scale applies to the node translation too
	if got := part.Transform.Translation(); !got.ApproxEqual(math3d.V3(0, 0, 2), 1e-9) {
		t.Errorf("translation = %v, want (0,0,2)", got)
	}
	mat := part.Mesh.Material(0)
	if mat == nil || mat.BaseColor[0] != 1 || !mat.Transparent || mat.Opacity != 0.5 {
		t.Errorf("material = %+v", mat)
	}
	box := part.Mesh.Bounds().Transform(part.Transform)
	if math.Abs(box.MaxDim()-1) > 1e-9 {
		t.Errorf("MaxDim = %f, want 1", box.MaxDim())
	}
}

func TestDecodeColladaYUp(t *testing.T) {
	doc := bytes.Replace([]byte(testCollada), []byte("Z_UP"), []byte("Y_UP"), 1)
	doc = bytes.Replace(doc, []byte(`meter="0.5"`), []byte(`meter="1"`), 1)
	scene, err := DecodeCollada(context.Background(), string(doc))
	if err != nil {
		t.Fatalf("DecodeCollada: %v", err)
	}
	// +Y in the file becomes +Z
	p := scene.Parts[0].Transform.MulVec3(math3d.V3(0, 2, 0))
	if !p.ApproxEqual(math3d.V3(0, -4, 2), 1e-9) {
		t.Errorf("point = %v, want (0,-4,2)", p)
	}
}

func TestDecodeColladaRotate(t *testing.T) {
	doc := strings.Replace(testCollada, "<translate>0 0 4</translate>", "<rotate>0 0 1 90</rotate>", 1)
	scene, err := DecodeCollada(context.Background(), doc)
	if err != nil {
		t.Fatalf("DecodeCollada: %v", err)
	}
	// degrees about +Z, then the 0.5 unit scale
	p := scene.Parts[0].Transform.MulVec3(math3d.V3(2, 0, 0))
	if !p.ApproxEqual(math3d.V3(0, 1, 0), 1e-9) {
		t.Errorf("point = %v, want (0,1,0)", p)
	}
	if n := scene.Parts[0].Mesh.TriangleCount(); n != 1 {
		t.Errorf("triangles = %d, want 1", n)
	}
}

func TestDecodeColladaMalformed(t *testing.T) {
	_, err := DecodeCollada(context.Background(), "<COLLADA><library_geometries>")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

const testGLTF = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"name": "s", "nodes": [0]}],
  "nodes": [{"name": "root", "translation": [1, 0, 0], "children": [1]}, {"name": "tri", "mesh": 0, "scale": [2, 2, 2]}],
  "meshes": [{"name": "tri", "primitives": [{"attributes": {"POSITION": 0}, "material": 0}]}],
  "materials": [{"name": "glass", "alphaMode": "BLEND", "pbrMetallicRoughness": {"baseColorFactor": [0, 0, 1, 0.25]}}],
  "accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]}],
  "bufferViews": [{"buffer": 0, "byteLength": 36}],
  "buffers": [{"byteLength": 36, "uri": "data:application/octet-stream;base64,AAAAAAAAAAAAAAAAAACAPwAAAAAAAAAAAAAAAAAAgD8AAAAA"}]
}`

func TestGLTFDecodeScene(t *testing.T) {
	scene, err := NewGLTFLoader().DecodeScene(context.Background(), []byte(testGLTF), nil)
	if err != nil {
		t.Fatalf("DecodeScene: %v", err)
	}
	if scene.Name != "s" || len(scene.Parts) != 1 {
		t.Fatalf("scene = %q with %d parts", scene.Name, len(scene.Parts))
	}
	part := scene.Parts[0]
	if got := part.Transform.MulVec3(math3d.V3(1, 0, 0)); !got.ApproxEqual(math3d.V3(3, 0, 0), 1e-9) {
		t.Errorf("transformed point = %v, want (3,0,0)", got)
	}
	mat := part.Mesh.Material(0)
	if mat == nil || !mat.Transparent || mat.Opacity != 0.25 {
		t.Errorf("material = %+v", mat)
	}
	if scene.TriangleCount() != 1 {
		t.Errorf("TriangleCount = %d", scene.TriangleCount())
	}
}

func TestGLTFLoaderCreation(t *testing.T) {
	loader := NewGLTFLoader()
	if !loader.CalculateNormals {
		t.Error("CalculateNormals should default to true")
	}
	if !loader.SmoothNormals {
		t.Error("SmoothNormals should default to true")
	}
}

func TestGLTFRejectsGarbage(t *testing.T) {
	_, err := NewGLTFLoader().DecodeScene(context.Background(), []byte("{nope"), nil)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name string
		mesh *Mesh
		size math3d.Vec3
	}{
		{"box", NewBox(math3d.V3(1, 2, 3)), math3d.V3(1, 2, 3)},
		{"cylinder", NewCylinder(0.5, 2), math3d.V3(1, 1, 2)},
		{"sphere", NewSphere(1), math3d.V3(2, 2, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.mesh.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got := tt.mesh.Size(); !got.ApproxEqual(tt.size, 1e-9) {
				t.Errorf("Size = %v, want %v", got, tt.size)
			}
			// every flat normal points away from the center
			for i := range tt.mesh.Faces {
				f := tt.mesh.Faces[i].V
				v := tt.mesh.Vertices[f[0]]
				c := v.Position.Add(tt.mesh.Vertices[f[1]].Position).Add(tt.mesh.Vertices[f[2]].Position).Scale(1.0 / 3)
				if v.Normal.Dot(c) < -1e-9 {
					t.Fatalf("face %d normal %v points inward", i, v.Normal)
				}
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{"a.stl", "B.STL", "dir/c.obj"} {
		if _, ok := r.MeshDecoderFor(name); !ok {
			t.Errorf("no mesh decoder for %s", name)
		}
	}
	for _, name := range []string{"a.dae", "a.glb", "a.GLTF"} {
		if _, ok := r.SceneDecoderFor(name); !ok {
			t.Errorf("no scene decoder for %s", name)
		}
	}
	if _, ok := r.MeshDecoderFor("a.dae"); ok {
		t.Error("dae should not be a mesh-polygon format")
	}
	if _, ok := r.SceneDecoderFor("a.png"); ok {
		t.Error("png has no decoder")
	}
}
