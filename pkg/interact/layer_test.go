package interact

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/models"
	"github.com/taigrr/urdfview/pkg/render"
	"github.com/taigrr/urdfview/pkg/robot"
	"github.com/taigrr/urdfview/pkg/scene"
	"github.com/taigrr/urdfview/pkg/viewer"
)

const arm = `<robot name="arm">
  <material name="glass"><color rgba="0.2 0.4 1 0.7"/></material>
  <link name="base">
    <visual><geometry><box size="1 1 1"/></geometry></visual>
  </link>
  <link name="tool">
    <visual><geometry><sphere radius="0.25"/></geometry><material name="glass"/></visual>
  </link>
  <joint name="slide" type="prismatic">
    <parent link="base"/><child link="tool"/>
    <origin xyz="2 0 0"/><axis xyz="0 0 1"/><limit lower="-1" upper="1"/>
  </joint>
</robot>`

type fixture struct {
	layer  *Layer
	viewer *viewer.Viewer
	model  *robot.Model
	now    time.Time
	clicks int
}

func (f *fixture) Play() { f.clicks++ }

// settle runs the active tween to completion.
func (f *fixture) settle() {
	f.now = f.now.Add(time.Hour)
	f.viewer.Tick(f.now)
}

func newFixture(t *testing.T, withModel bool) *fixture {
	t.Helper()
	f := &fixture{now: time.Unix(1000, 0)}
	cam := render.NewCamera()
	cam.SetAspectRatio(1)
	v, err := viewer.New(cam, viewer.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.viewer = v

	if withModel {
		ld, err := robot.New(assetdb.New(nil))
		require.NoError(t, err)
		f.model, err = ld.Load(context.Background(), strings.NewReader(arm))
		require.NoError(t, err)
		v.SetModel(f.model)
	}

	f.layer, err = New(v, WithPlayer(f))
	require.NoError(t, err)
	return f
}

// meshOf returns the first mesh node under the named link.
func (f *fixture) meshOf(t *testing.T, link string) *scene.Node {
	t.Helper()
	var found *scene.Node
	f.model.Graph.Find(link).Walk(func(n *scene.Node) bool {
		if found == nil && n.Mesh != nil {
			found = n
		}
		return found == nil
	})
	require.NotNil(t, found, "mesh under %s", link)
	return found
}

// aimAt points the camera at n from +Z so the screen centre hits it.
func (f *fixture) aimAt(t *testing.T, n *scene.Node) {
	t.Helper()
	box, ok := f.viewer.BoundingBox(n)
	require.True(t, ok)
	f.viewer.Camera.SetTarget(box.Center())
	f.viewer.Camera.SetPosition(box.Center().Add(math3d.V3(0.01, 0, 10)))
}

func TestNewRequiresViewer(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, robot.ErrMissingDependency)
}

func TestHighlightIdempotent(t *testing.T) {
	f := newFixture(t, true)
	tool := f.meshOf(t, "tool")
	require.InDelta(t, 0.7, tool.Material.Opacity, 1e-12)
	require.True(t, tool.Material.Transparent)
	original := tool.Material

	f.layer.Highlight(tool, true)
	once := tool.Material
	f.layer.Highlight(tool, true)
	assert.Equal(t, once, tool.Material, "second highlight must not stack")
	assert.NotEqual(t, original, tool.Material)
	assert.True(t, f.layer.Highlighted(tool))

	f.layer.Highlight(tool, false)
	assert.Equal(t, original, tool.Material)
	assert.InDelta(t, 0.7, tool.Material.Opacity, 1e-12)
	assert.True(t, tool.Material.Transparent)
	assert.False(t, f.layer.Highlighted(tool))

	meta, _ := f.model.Graph.LookupMeta(tool)
	assert.Nil(t, meta.MaterialBackup)
}

func TestHighlightSubtree(t *testing.T) {
	f := newFixture(t, true)
	base, tool := f.meshOf(t, "base"), f.meshOf(t, "tool")

	f.layer.Highlight(f.model.Graph.Find("base"), true)
	assert.True(t, f.layer.Highlighted(base))
	assert.True(t, f.layer.Highlighted(tool), "tool link hangs under base")
}

func TestHoverAndSelectShareHighlight(t *testing.T) {
	f := newFixture(t, true)
	tool := f.meshOf(t, "tool")
	original := tool.Material
	f.aimAt(t, tool)

	assert.Equal(t, tool, f.layer.PointerMove(0, 0))
	assert.Equal(t, tool, f.layer.Click(0, 0))
	assert.Equal(t, 1, f.clicks)
	assert.True(t, f.layer.Highlighted(tool))

	// Moving away keeps the selection lit
	f.layer.PointerMove(0.99, 0.99)
	assert.Nil(t, f.layer.Selection.Hovered)
	assert.True(t, f.layer.Highlighted(tool))

	// Clicking empty space clears the selection and the highlight
	assert.Nil(t, f.layer.Click(0.99, 0.99))
	assert.Nil(t, f.layer.Selection.Selected)
	assert.False(t, f.layer.Highlighted(tool))
	assert.Equal(t, original, tool.Material)
}

func TestLateMeshesJoinHighlight(t *testing.T) {
	f := newFixture(t, true)
	tool := f.model.Graph.Find("tool")
	f.layer.Select(tool)

	late := scene.NewMeshNode("late", models.NewBox(math3d.V3(0.1, 0.1, 0.1)))
	f.model.Graph.Add(tool, late)
	assert.False(t, f.layer.Highlighted(late))

	f.layer.RefreshHighlight()
	assert.True(t, f.layer.Highlighted(late))
	assert.True(t, f.layer.Highlighted(f.meshOf(t, "tool")))
	assert.False(t, f.layer.Highlighted(f.meshOf(t, "base")))

	assert.Zero(t, f.layer.Attach(), "nothing pending")
	f.layer.Select(nil)
	assert.False(t, f.layer.Highlighted(late))
}

func TestPickNearest(t *testing.T) {
	f := newFixture(t, true)
	base := f.meshOf(t, "base")
	f.aimAt(t, base)
	assert.Equal(t, base, f.layer.Pick(0, 0))

	base.Visible = false
	assert.Nil(t, f.layer.Pick(0, 0), "hidden meshes are not pickable")
}

func TestZoomRetargetsToSelection(t *testing.T) {
	f := newFixture(t, true)
	tool := f.meshOf(t, "tool")
	f.layer.Select(tool)

	f.layer.Zoom(0.1)
	box, _ := f.viewer.BoundingBox(tool)
	assert.True(t, f.viewer.Controls.Target.ApproxEqual(box.Center(), 1e-9))
	assert.True(t, f.viewer.Controls.Moving())

	f.layer.Select(nil)
	f.layer.Zoom(0.1)
	whole, _ := f.viewer.BoundingBox(f.viewer.Root())
	assert.True(t, f.viewer.Controls.Target.ApproxEqual(whole.Center(), 1e-9))
}

func TestViewPresets(t *testing.T) {
	f := newFixture(t, true)
	whole, _ := f.viewer.BoundingBox(f.viewer.Root())

	for name, p := range Presets {
		t.Run(name, func(t *testing.T) {
			_, err := f.layer.ViewPreset(name)
			require.NoError(t, err)
			f.settle()
			cam := f.viewer.Camera
			assert.True(t, cam.Target.ApproxEqual(whole.Center(), 1e-9))
			want := render.Direction(p.Azimuth, p.Elevation)
			assert.True(t, cam.Position.Sub(cam.Target).Normalize().ApproxEqual(want, 1e-9))
		})
	}

	_, err := f.layer.ViewPreset("bottom")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestPresetsShareFramingDistance(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.layer.ViewPreset("front")
	require.NoError(t, err)
	f.settle()
	first := f.viewer.Camera.Distance()

	// Moving a joint changes the model box but not the cached distance
	f.model.Graph.Joint("slide").SetValue(1)
	_, err = f.layer.ViewPreset("top")
	require.NoError(t, err)
	f.settle()

	assert.InDelta(t, first, f.viewer.Camera.Distance(), 1e-9)
	assert.InDelta(t, f.viewer.FramingDistance(), first, 1e-9)
}

func TestToggleFocusAlternates(t *testing.T) {
	f := newFixture(t, true)
	tool := f.meshOf(t, "tool")
	f.layer.Select(tool)
	toolBox, _ := f.viewer.BoundingBox(tool)

	az, el := f.viewer.Camera.Angles()
	_, err := f.layer.ToggleFocus()
	require.NoError(t, err)
	f.settle()
	assert.True(t, f.viewer.Camera.Target.ApproxEqual(toolBox.Center(), 1e-9))
	gotAz, gotEl := f.viewer.Camera.Angles()
	assert.InDelta(t, az, gotAz, 1e-9)
	assert.InDelta(t, el, gotEl, 1e-9)

	// Second press goes to iso around the selection
	_, err = f.layer.ToggleFocus()
	require.NoError(t, err)
	f.settle()
	cam := f.viewer.Camera
	assert.True(t, cam.Position.Sub(cam.Target).Normalize().ApproxEqual(render.IsoDirection(), 1e-9))
	assert.InDelta(t, f.viewer.FramingDistance(), cam.Distance(), 1e-9)
}

func TestResetClearsJoints(t *testing.T) {
	f := newFixture(t, true)
	g := f.model.Graph
	slide := g.Joint("slide")

	_, err := f.layer.ViewPreset("front")
	require.NoError(t, err)
	f.settle()
	slide.SetValue(0.6)
	g.Root.Position = math3d.V3(5, 5, 5)
	g.Root.Visible = false
	g.UpdateWorld()

	_, err = f.layer.Reset()
	require.NoError(t, err)
	assert.Zero(t, slide.Value())
	assert.Equal(t, math3d.Zero3(), g.Root.Position)
	assert.True(t, g.Root.Visible)
	tool := g.Find("tool")
	assert.True(t, tool.World().Translation().ApproxEqual(math3d.V3(2, 0, 0), 1e-9))

	f.settle()
	cam := f.viewer.Camera
	assert.True(t, cam.Position.Sub(cam.Target).Normalize().ApproxEqual(render.IsoDirection(), 1e-9))
}

func TestHandleKey(t *testing.T) {
	f := newFixture(t, true)

	assert.True(t, f.layer.HandleKey("c"))
	assert.True(t, f.layer.Panels.Components)
	assert.True(t, f.layer.HandleKey("t"))
	assert.True(t, f.layer.Panels.Tools)
	assert.True(t, f.layer.HandleKey("c"))
	assert.False(t, f.layer.Panels.Components)

	f.model.Graph.Joint("slide").SetValue(0.5)
	assert.True(t, f.layer.HandleKey("r"))
	assert.Zero(t, f.model.Graph.Joint("slide").Value())

	assert.True(t, f.layer.HandleKey("i"))
	assert.True(t, f.viewer.Tweening())

	assert.False(t, f.layer.HandleKey("x"))
	assert.Equal(t, 5, f.clicks)
}

func TestKeysWithoutModel(t *testing.T) {
	f := newFixture(t, false)
	pos := f.viewer.Camera.Position

	for _, k := range []string{"i", "c", "t", "r"} {
		assert.False(t, f.layer.HandleKey(k), "key %q", k)
	}
	assert.Equal(t, Panels{}, f.layer.Panels)
	assert.Equal(t, pos, f.viewer.Camera.Position)
	assert.Zero(t, f.clicks)
	assert.Nil(t, f.layer.Pick(0, 0))

	_, err := f.layer.Reset()
	assert.ErrorIs(t, err, ErrNoModel)
	_, err = f.layer.ViewPreset("iso")
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestNilPlayer(t *testing.T) {
	f := newFixture(t, true)
	f.layer.Sound = nil
	assert.NotPanics(t, func() { f.layer.Click(0, 0) })
}
