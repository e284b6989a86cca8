package models

import (
	"context"
	"encoding/xml"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/taigrr/urdfview/pkg/math3d"
)

// COLLADA document subset: geometry, materials through effects, and the
// visual scene node hierarchy.
type daeDocument struct {
	XMLName    xml.Name        `xml:"COLLADA"`
	Asset      daeAsset        `xml:"asset"`
	Effects    []daeEffect     `xml:"library_effects>effect"`
	Materials  []daeMaterial   `xml:"library_materials>material"`
	Geometries []daeGeometry   `xml:"library_geometries>geometry"`
	Scenes     []daeVisualRoot `xml:"library_visual_scenes>visual_scene"`
	Scene      struct {
		Instance struct {
			URL string `xml:"url,attr"`
		} `xml:"instance_visual_scene"`
	} `xml:"scene"`
}

type daeAsset struct {
	Unit struct {
		Meter string `xml:"meter,attr"`
	} `xml:"unit"`
	UpAxis string `xml:"up_axis"`
}

type daeEffect struct {
	ID     string       `xml:"id,attr"`
	Shader daeShaderSet `xml:"profile_COMMON>technique"`
}

type daeShaderSet struct {
	Phong   *daeShader `xml:"phong"`
	Lambert *daeShader `xml:"lambert"`
	Blinn   *daeShader `xml:"blinn"`
	Const   *daeShader `xml:"constant"`
}

type daeShader struct {
	Diffuse      string `xml:"diffuse>color"`
	Emission     string `xml:"emission>color"`
	Transparency string `xml:"transparency>float"`
}

type daeMaterial struct {
	ID     string `xml:"id,attr"`
	Name   string `xml:"name,attr"`
	Effect struct {
		URL string `xml:"url,attr"`
	} `xml:"instance_effect"`
}

type daeGeometry struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
	Mesh struct {
		Sources  []daeSource `xml:"source"`
		Vertices struct {
			ID     string     `xml:"id,attr"`
			Inputs []daeInput `xml:"input"`
		} `xml:"vertices"`
		Triangles []daePrimitive `xml:"triangles"`
		Polylists []daePrimitive `xml:"polylist"`
	} `xml:"mesh"`
}

type daeSource struct {
	ID     string `xml:"id,attr"`
	Floats string `xml:"float_array"`
	Common struct {
		Accessor struct {
			Stride int `xml:"stride,attr"`
		} `xml:"accessor"`
	} `xml:"technique_common"`
}

type daeInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

type daePrimitive struct {
	Material string     `xml:"material,attr"`
	Count    int        `xml:"count,attr"`
	Inputs   []daeInput `xml:"input"`
	VCount   string     `xml:"vcount"`
	P        string     `xml:"p"`
}

type daeVisualRoot struct {
	ID    string    `xml:"id,attr"`
	Nodes []daeNode `xml:"node"`
}

type daeNode struct {
	Name       string         `xml:"name,attr"`
	ID         string         `xml:"id,attr"`
	Transforms []daeTransform `xml:",any"`
	Instances  []daeInstance  `xml:"instance_geometry"`
	Children   []daeNode      `xml:"node"`
}

// daeTransform captures matrix/translate/rotate/scale children in document
// order; other elements are collected too and ignored by name.
type daeTransform struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type daeInstance struct {
	URL      string `xml:"url,attr"`
	Bindings []struct {
		Symbol string `xml:"symbol,attr"`
		Target string `xml:"target,attr"`
	} `xml:"bind_material>technique_common>instance_material"`
}

// DecodeColladaScene adapts DecodeCollada to the SceneDecoder signature.
// COLLADA payloads are text; image references are not resolved.
func DecodeColladaScene(ctx context.Context, data []byte, _ fs.FS) (*SubScene, error) {
	return DecodeCollada(ctx, string(data))
}

// DecodeCollada parses a COLLADA document and flattens its visual scene into
// placed parts. The result is expressed Z-up in meters, the robot frame.
func DecodeCollada(ctx context.Context, text string) (*SubScene, error) {
	var doc daeDocument
	if err := xml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, decodeErrorf("collada: %v", err)
	}

	d := &daeDecoder{
		ctx:       ctx,
		doc:       &doc,
		geometry:  make(map[string]*daeGeometry),
		materials: make(map[string]Material),
		decoded:   make(map[string][]*Mesh),
	}
	for i := range doc.Geometries {
		d.geometry[doc.Geometries[i].ID] = &doc.Geometries[i]
	}
	d.indexMaterials()

	root := daeRootTransform(doc.Asset)
	scene := &SubScene{}

	if vs := d.visualScene(); vs != nil {
		scene.Name = vs.ID
		for i := range vs.Nodes {
			if err := d.walk(&vs.Nodes[i], root, scene); err != nil {
				return nil, err
			}
		}
	} else {
		// No scene graph: place every geometry at the origin
		for i := range doc.Geometries {
			g := &doc.Geometries[i]
			if err := d.place(g.ID, nil, g.Name, root, scene); err != nil {
				return nil, err
			}
		}
	}

	if len(scene.Parts) == 0 {
		return nil, decodeErrorf("collada: no geometry")
	}
	return scene, nil
}

type daeDecoder struct {
	ctx       context.Context
	doc       *daeDocument
	geometry  map[string]*daeGeometry
	materials map[string]Material // by material id
	decoded   map[string][]*Mesh  // by geometry id
}

func (d *daeDecoder) visualScene() *daeVisualRoot {
	if len(d.doc.Scenes) == 0 {
		return nil
	}
	want := strings.TrimPrefix(d.doc.Scene.Instance.URL, "#")
	for i := range d.doc.Scenes {
		if d.doc.Scenes[i].ID == want {
			return &d.doc.Scenes[i]
		}
	}
	return &d.doc.Scenes[0]
}

func (d *daeDecoder) indexMaterials() {
	effects := make(map[string]*daeShader)
	for i := range d.doc.Effects {
		e := &d.doc.Effects[i]
		for _, sh := range []*daeShader{e.Shader.Phong, e.Shader.Lambert, e.Shader.Blinn, e.Shader.Const} {
			if sh != nil {
				effects[e.ID] = sh
				break
			}
		}
	}

	for _, m := range d.doc.Materials {
		mat := DefaultMaterial()
		mat.Name = m.Name
		if sh, ok := effects[strings.TrimPrefix(m.Effect.URL, "#")]; ok {
			if c, err := parseFloats(sh.Diffuse); err == nil && len(c) >= 3 {
				copy(mat.BaseColor[:], c)
				if len(c) < 4 {
					mat.BaseColor[3] = 1
				}
			}
			if t, err := strconv.ParseFloat(strings.TrimSpace(sh.Transparency), 64); err == nil && t < 1 {
				mat.Opacity = math.Max(0, t)
				mat.Transparent = true
			}
		}
		d.materials[m.ID] = mat
	}
}

func (d *daeDecoder) walk(n *daeNode, parent math3d.Mat4, scene *SubScene) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	local, err := daeNodeTransform(n.Transforms)
	if err != nil {
		return err
	}
	world := parent.Mul(local)

	name := n.Name
	if name == "" {
		name = n.ID
	}
	for _, inst := range n.Instances {
		bind := make(map[string]string, len(inst.Bindings))
		for _, b := range inst.Bindings {
			bind[b.Symbol] = strings.TrimPrefix(b.Target, "#")
		}
		if err := d.place(strings.TrimPrefix(inst.URL, "#"), bind, name, world, scene); err != nil {
			return err
		}
	}
	for i := range n.Children {
		if err := d.walk(&n.Children[i], world, scene); err != nil {
			return err
		}
	}
	return nil
}

// place appends one part per material group of geometry id.
func (d *daeDecoder) place(id string, bind map[string]string, name string, world math3d.Mat4, scene *SubScene) error {
	meshes, ok := d.decoded[id]
	if !ok {
		g, found := d.geometry[id]
		if !found {
			return decodeErrorf("collada: missing geometry %q", id)
		}
		var err error
		meshes, err = d.decodeGeometry(g)
		if err != nil {
			return err
		}
		d.decoded[id] = meshes
	}

	for _, m := range meshes {
		part := m.Clone()
		if len(part.Materials) > 0 {
			if matID, ok := bind[part.Materials[0].Name]; ok {
				if mat, ok := d.materials[matID]; ok {
					part.Materials[0] = mat
				}
			} else if mat, ok := d.materials[part.Materials[0].Name]; ok {
				part.Materials[0] = mat
			}
		}
		scene.Parts = append(scene.Parts, Part{Name: name, Transform: world, Mesh: part})
	}
	return nil
}

func (d *daeDecoder) decodeGeometry(g *daeGeometry) ([]*Mesh, error) {
	sources := make(map[string]*daeSource)
	floats := make(map[string][]float64)
	for i := range g.Mesh.Sources {
		s := &g.Mesh.Sources[i]
		sources[s.ID] = s
	}
	read := func(id string) ([]float64, int, error) {
		id = strings.TrimPrefix(id, "#")
		s, ok := sources[id]
		if !ok {
			return nil, 0, decodeErrorf("collada: geometry %q: missing source %q", g.ID, id)
		}
		if f, ok := floats[id]; ok {
			return f, max(s.Common.Accessor.Stride, 1), nil
		}
		f, err := parseFloats(s.Floats)
		if err != nil {
			return nil, 0, decodeErrorf("collada: source %q: %v", id, err)
		}
		floats[id] = f
		return f, max(s.Common.Accessor.Stride, 1), nil
	}

	// <vertices> redirects VERTEX inputs to the POSITION source
	var posSource string
	for _, in := range g.Mesh.Vertices.Inputs {
		if in.Semantic == "POSITION" {
			posSource = in.Source
		}
	}

	var meshes []*Mesh
	prims := append(append([]daePrimitive{}, g.Mesh.Triangles...), g.Mesh.Polylists...)
	for pi, prim := range prims {
		mesh := NewMesh(g.Name)
		if prim.Material != "" {
			mat := DefaultMaterial()
			mat.Name = prim.Material
			mesh.Materials = []Material{mat}
		}

		stride := 0
		var pos, norm []float64
		var posStride, normStride int
		posOff, normOff := -1, -1
		for _, in := range prim.Inputs {
			stride = max(stride, in.Offset+1)
			var err error
			switch in.Semantic {
			case "VERTEX":
				src := in.Source
				if strings.TrimPrefix(src, "#") == g.Mesh.Vertices.ID && posSource != "" {
					src = posSource
				}
				pos, posStride, err = read(src)
				posOff = in.Offset
			case "NORMAL":
				norm, normStride, err = read(in.Source)
				normOff = in.Offset
			}
			if err != nil {
				return nil, err
			}
		}
		if posOff < 0 || posStride < 3 {
			return nil, decodeErrorf("collada: geometry %q: primitive %d has no positions", g.ID, pi)
		}

		idx, err := parseInts(prim.P)
		if err != nil {
			return nil, decodeErrorf("collada: geometry %q: %v", g.ID, err)
		}
		counts := []int(nil)
		if prim.VCount != "" {
			if counts, err = parseInts(prim.VCount); err != nil {
				return nil, decodeErrorf("collada: geometry %q: %v", g.ID, err)
			}
		}

		corner := func(c int) (MeshVertex, error) {
			base := c * stride
			if base+stride > len(idx) {
				return MeshVertex{}, decodeErrorf("collada: geometry %q: index list truncated", g.ID)
			}
			p := idx[base+posOff] * posStride
			if p < 0 || p+3 > len(pos) {
				return MeshVertex{}, decodeErrorf("collada: geometry %q: position index out of range", g.ID)
			}
			v := MeshVertex{Position: math3d.V3(pos[p], pos[p+1], pos[p+2])}
			if normOff >= 0 && normStride >= 3 {
				n := idx[base+normOff] * normStride
				if n >= 0 && n+3 <= len(norm) {
					v.Normal = math3d.V3(norm[n], norm[n+1], norm[n+2]).Normalize()
				}
			}
			return v, nil
		}

		// Triangles have an implicit vcount of 3
		if counts == nil {
			counts = make([]int, len(idx)/(stride*3))
			for i := range counts {
				counts[i] = 3
			}
		}

		c := 0
		hasNormals := normOff >= 0
		for _, n := range counts {
			first := len(mesh.Vertices)
			for range n {
				v, err := corner(c)
				if err != nil {
					return nil, err
				}
				mesh.Vertices = append(mesh.Vertices, v)
				c++
			}
			for i := 1; i+1 < n; i++ {
				mesh.Faces = append(mesh.Faces, Face{
					V:        [3]int{first, first + i + 1, first + i},
					Material: materialIndex(mesh),
				})
			}
		}

		if mesh.TriangleCount() == 0 {
			continue
		}
		if !hasNormals {
			mesh.CalculateNormals()
		}
		mesh.CalculateBounds()
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

func materialIndex(m *Mesh) int {
	if len(m.Materials) == 0 {
		return -1
	}
	return 0
}

// daeRootTransform converts the document's unit and up axis to meters, Z-up.
func daeRootTransform(a daeAsset) math3d.Mat4 {
	m := math3d.Identity()
	switch strings.ToUpper(strings.TrimSpace(a.UpAxis)) {
	case "Y_UP":
		m = math3d.RotateX(math.Pi / 2)
	case "X_UP":
		m = math3d.RotateY(-math.Pi / 2)
	}
	if meter, err := strconv.ParseFloat(a.Unit.Meter, 64); err == nil && meter > 0 {
		m = m.Mul(math3d.ScaleUniform(meter))
	}
	return m
}

// daeNodeTransform composes the node's transform elements in order.
func daeNodeTransform(elems []daeTransform) (math3d.Mat4, error) {
	m := math3d.Identity()
	for _, e := range elems {
		switch e.XMLName.Local {
		case "matrix":
			f, err := parseFloats(e.Value)
			if err != nil || len(f) != 16 {
				return m, decodeErrorf("collada: bad matrix %q", e.Value)
			}
			// COLLADA stores matrices row-major
			var rm math3d.Mat4
			copy(rm[:], f)
			m = m.Mul(rm.Transpose())
		case "translate":
			f, err := parseFloats(e.Value)
			if err != nil || len(f) != 3 {
				return m, decodeErrorf("collada: bad translate %q", e.Value)
			}
			m = m.Mul(math3d.Translate(math3d.V3(f[0], f[1], f[2])))
		case "rotate":
			f, err := parseFloats(e.Value)
			if err != nil || len(f) != 4 {
				return m, decodeErrorf("collada: bad rotate %q", e.Value)
			}
			m = m.Mul(math3d.QuatMat(math3d.QuatAxisAngle(math3d.V3(f[0], f[1], f[2]), f[3]*math.Pi/180)))
		case "scale":
			f, err := parseFloats(e.Value)
			if err != nil || len(f) != 3 {
				return m, decodeErrorf("collada: bad scale %q", e.Value)
			}
			m = m.Mul(math3d.Scale(math3d.V3(f[0], f[1], f[2])))
		}
	}
	return m, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
