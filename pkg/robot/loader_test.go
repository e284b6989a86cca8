package robot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/models"
	"github.com/taigrr/urdfview/pkg/render"
	"github.com/taigrr/urdfview/pkg/urdf"
)

const triSTL = `solid t
facet normal 0 0 1
outer loop
vertex 0 0 0
vertex 1 0 0
vertex 0 1 0
endloop
endfacet
endsolid t
`

const triDAE = `<COLLADA>
  <library_geometries><geometry id="g"><mesh>
    <source id="p"><float_array count="9">0 0 0 1 0 0 0 1 0</float_array>
      <technique_common><accessor stride="3"/></technique_common></source>
    <vertices id="v"><input semantic="POSITION" source="#p"/></vertices>
    <triangles count="1"><input semantic="VERTEX" source="#v" offset="0"/><p>0 1 2</p></triangles>
  </mesh></geometry></library_geometries>
  <library_visual_scenes><visual_scene id="s">
    <node name="a"><instance_geometry url="#g"/></node>
    <node name="b"><translate>0 0 1</translate><instance_geometry url="#g"/></node>
  </visual_scene></library_visual_scenes>
  <scene><instance_visual_scene url="#s"/></scene>
</COLLADA>`

const doc = `<robot name="bot">
  <link name="base">
    <visual><geometry><mesh filename="package://bot/meshes/base.stl"/></geometry></visual>
  </link>
  <link name="arm">
    <visual><geometry><mesh filename="package://bot/meshes/missing.stl"/></geometry></visual>
  </link>
  <joint name="j" type="revolute">
    <parent link="base"/><child link="arm"/>
    <limit lower="-1" upper="1"/>
  </joint>
</robot>`

func newLoader(t *testing.T, db *assetdb.DB, opts ...Option) *Loader {
	t.Helper()
	ld, err := New(db, opts...)
	require.NoError(t, err)
	return ld
}

func TestLoadMissingAssetIsGraceful(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	db := assetdb.New([]assetdb.Entry{{Ref: "meshes/base.stl", Data: []byte(triSTL)}})
	ld := newLoader(t, db, WithLogger(zap.New(core)))

	m, err := ld.Load(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	defer m.Close()

	assert.Len(t, m.Graph.MeshNodes(), 1)
	assert.Len(t, m.Graph.MeshIndex[assetdb.Key("bot/meshes/base.stl")], 1)
	assert.Zero(t, m.Pending())

	diags := m.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, AssetNotFound, diags[0].Kind)
	assert.Equal(t, "arm", diags[0].Link)
	assert.True(t, errors.Is(diags[0].Err, assetdb.ErrNotFound))
	assert.Equal(t, 1, logs.FilterField(zap.String("link", "arm")).Len())

	j := m.Graph.Joint("j")
	require.NotNil(t, j)
	assert.Equal(t, 1.0, j.SetValue(3))
}

func TestLoadMalformedIsFatal(t *testing.T) {
	ld := newLoader(t, assetdb.New(nil))
	_, err := ld.Load(context.Background(), strings.NewReader(`<robot><link name="a"/><link name="b"/></robot>`))
	assert.True(t, errors.Is(err, urdf.ErrMalformed))
}

func TestLoadDecodeFailure(t *testing.T) {
	db := assetdb.New([]assetdb.Entry{
		{Ref: "meshes/base.stl", Data: []byte("garbage")},
		{Ref: "meshes/missing.stl", Data: []byte(triSTL)},
	})
	m, err := newLoader(t, db).Load(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)

	diags := m.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, DecodeFailure, diags[0].Kind)
	assert.True(t, errors.Is(diags[0].Err, models.ErrDecode))
	assert.Len(t, m.Graph.MeshNodes(), 1)
}

func TestLoadRecoversDecoderPanic(t *testing.T) {
	reg := models.NewRegistry()
	reg.RegisterMesh(".stl", func([]byte) (*models.Mesh, error) { panic("boom") })
	db := assetdb.New([]assetdb.Entry{{Ref: "base.stl", Data: []byte(triSTL)}})

	m, err := newLoader(t, db, WithDecoders(reg)).Load(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	for _, d := range m.Diagnostics() {
		if d.Link == "base" {
			assert.Equal(t, DecodeFailure, d.Kind)
			assert.True(t, errors.Is(d.Err, models.ErrDecode))
		}
	}
	assert.Empty(t, m.Graph.MeshNodes())
}

func TestLoadSceneAsync(t *testing.T) {
	sceneDoc := strings.Replace(doc, "package://bot/meshes/base.stl", "meshes/base.dae", 1)
	db := assetdb.New([]assetdb.Entry{{Ref: "meshes/base.dae", Data: []byte(triDAE)}})

	m, err := newLoader(t, db, WithWorkers(2)).Load(context.Background(), strings.NewReader(sceneDoc))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Pending())
	assert.Empty(t, m.Graph.MeshNodes(), "scene decodes attach later")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	assert.Zero(t, m.Pending())
	nodes := m.Graph.MeshIndex["meshes/base.dae"]
	require.Len(t, nodes, 2)
	assert.Equal(t, "base", nodes[0].Parent().Parent().Parent().Name)
	assert.InDelta(t, 1.0, nodes[1].Mesh.BoundsMax.Z, 1e-9, "part transform is baked into the mesh")
}

func TestClosedModelDiscardsLateResults(t *testing.T) {
	sceneDoc := strings.Replace(doc, "package://bot/meshes/base.stl", "base.dae", 1)
	db := assetdb.New([]assetdb.Entry{{Ref: "base.dae", Data: []byte(triDAE)}})

	m, err := newLoader(t, db).Load(context.Background(), strings.NewReader(sceneDoc))
	require.NoError(t, err)
	m.Close()
	assert.False(t, m.Alive())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	assert.Empty(t, m.Graph.MeshNodes())
	assert.Empty(t, m.Graph.MeshIndex)
}

func TestPrimitivesAndColors(t *testing.T) {
	src := `<robot name="p">
	  <material name="red"><color rgba="1 0 0 0.7"/></material>
	  <link name="a">
	    <visual><geometry><box size="1 1 1"/></geometry><material name="red"/></visual>
	    <visual><geometry><cylinder radius="0.1" length="1"/></geometry></visual>
	    <visual><geometry><sphere radius="0.2"/></geometry></visual>
	  </link>
	</robot>`
	m, err := newLoader(t, assetdb.New(nil)).Load(context.Background(), strings.NewReader(src))
	require.NoError(t, err)

	nodes := m.Graph.MeshNodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, [4]float64{1, 0, 0, 0.7}, nodes[0].Material.BaseColor)
	assert.Equal(t, 0.7, nodes[0].Material.Opacity)
	assert.True(t, nodes[0].Material.Transparent)
	assert.False(t, nodes[1].Material.Transparent)
	assert.Empty(t, m.Diagnostics())
}

func TestIsolate(t *testing.T) {
	db := assetdb.New([]assetdb.Entry{
		{Ref: "meshes/base.stl", Data: []byte(triSTL)},
		{Ref: "meshes/missing.stl", Data: []byte(triSTL)},
	})
	m, err := newLoader(t, db).Load(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, m.Graph.MeshNodes(), 2)

	assert.False(t, m.Isolate("nothing.stl"))
	require.True(t, m.Isolate("package://bot/meshes/base.stl"))
	for _, n := range m.Graph.MeshNodes() {
		assert.Equal(t, n.Name == "base.stl", n.Visible, n.Name)
	}
	m.ShowAll()
	for _, n := range m.Graph.MeshNodes() {
		assert.True(t, n.Visible)
	}
}

func TestSceneIndexedByDocumentReference(t *testing.T) {
	const ref = "package://bot/meshes/base.dae"
	sceneDoc := strings.Replace(doc, "package://bot/meshes/base.stl", ref, 1)
	// only the basename matches the reference
	db := assetdb.New([]assetdb.Entry{
		{Ref: "meshes/base.dae", Data: []byte(triDAE)},
		{Ref: "meshes/missing.stl", Data: []byte(triSTL)},
	})

	m, err := newLoader(t, db).Load(context.Background(), strings.NewReader(sceneDoc))
	require.NoError(t, err)
	defer m.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	require.Empty(t, m.Diagnostics())

	key := assetdb.Normalize(ref)
	parts := m.Graph.MeshIndex[key]
	require.Len(t, parts, 2)
	assert.Empty(t, m.Graph.MeshIndex["meshes/base.dae"])
	for _, n := range parts {
		meta, ok := m.Graph.LookupMeta(n)
		require.True(t, ok)
		assert.Equal(t, key, meta.AssetKey)
	}

	require.True(t, m.Isolate(ref))
	visible := 0
	for _, n := range m.Graph.MeshNodes() {
		if n.Visible {
			visible++
		}
	}
	assert.Equal(t, 2, visible)

	fb, err := render.Thumbnail(m.Graph, key, 32, 32)
	require.NoError(t, err)
	drawn := 0
	for _, c := range fb.Pixels {
		if c != render.ColorBackdrop {
			drawn++
		}
	}
	assert.NotZero(t, drawn)
}

func TestMissingDependency(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, ErrMissingDependency))

	_, err = New(assetdb.New(nil), WithDecoders(nil))
	assert.True(t, errors.Is(err, ErrMissingDependency))

	db := assetdb.New([]assetdb.Entry{{Ref: "meshes/base.stl", Data: []byte(triSTL)}})
	restore := assetdb.Install(db)
	defer restore()

	ld, err := New(nil)
	require.NoError(t, err)
	m, err := ld.Load(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Len(t, m.Graph.MeshNodes(), 1)
}
