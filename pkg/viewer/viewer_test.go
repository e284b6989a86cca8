package viewer

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/render"
	"github.com/taigrr/urdfview/pkg/robot"
)

const cart = `<robot name="cart">
  <link name="base">
    <visual><geometry><box size="2 1 0.5"/></geometry></visual>
  </link>
  <link name="mast">
    <visual><origin xyz="0 0 0.5"/><geometry><cylinder radius="0.1" length="1"/></geometry></visual>
  </link>
  <link name="ghost"/>
  <joint name="lift" type="prismatic">
    <parent link="base"/><child link="mast"/>
    <origin xyz="0.5 0 0.25"/><axis xyz="0 0 1"/><limit lower="0" upper="1"/>
  </joint>
  <joint name="fixed" type="fixed">
    <parent link="base"/><child link="ghost"/>
  </joint>
</robot>`

func loadCart(t *testing.T) *robot.Model {
	t.Helper()
	ld, err := robot.New(assetdb.New(nil))
	require.NoError(t, err)
	m, err := ld.Load(context.Background(), strings.NewReader(cart))
	require.NoError(t, err)
	return m
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newViewer(t *testing.T) (*Viewer, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cam := render.NewCamera()
	cam.SetAspectRatio(1)
	v, err := New(cam, WithClock(clk.Now))
	require.NoError(t, err)
	return v, clk
}

func TestNewRequiresCamera(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, robot.ErrMissingDependency)
}

func TestSetModelSnapshotsPose(t *testing.T) {
	v, _ := newViewer(t)
	m := loadCart(t)
	v.SetModel(m)

	meta, ok := m.Graph.LookupMeta(m.Graph.Find("mast"))
	require.True(t, ok)
	require.NotNil(t, meta.Pose)
	assert.InDelta(t, 0.25, meta.Pose.Position.Z, 1e-9)

	// Controls orbit the model
	box, ok := v.BoundingBox(v.Root())
	require.True(t, ok)
	assert.True(t, v.Controls.Target.ApproxEqual(box.Center(), 1e-9))
}

func TestSetModelClosesPrevious(t *testing.T) {
	v, _ := newViewer(t)
	first, second := loadCart(t), loadCart(t)
	v.SetModel(first)
	v.SetModel(second)
	assert.False(t, first.Alive())
	assert.True(t, second.Alive())

	v.Destroy()
	assert.False(t, second.Alive())
	assert.False(t, v.Alive())
	assert.False(t, v.Tick(time.Now()))
}

func TestBoundingBoxEmpty(t *testing.T) {
	v, _ := newViewer(t)
	m := loadCart(t)
	v.SetModel(m)

	_, ok := v.BoundingBox(m.Graph.Find("ghost"))
	assert.False(t, ok)
	_, ok = v.BoundingBox(nil)
	assert.False(t, ok)
}

func TestFitAndCenter(t *testing.T) {
	v, _ := newViewer(t)
	m := loadCart(t)
	v.SetModel(m)

	dir := v.Camera.Position.Sub(v.Camera.Target).Normalize()
	require.True(t, v.FitAndCenter(m.Graph.Root, 1.5))

	box, _ := v.BoundingBox(m.Graph.Root)
	assert.True(t, v.Camera.Target.ApproxEqual(box.Center(), 1e-9))
	assert.True(t, v.Camera.Position.Sub(v.Camera.Target).Normalize().ApproxEqual(dir, 1e-9))
	want := (box.MaxDim() * 1.5 / 2) / math.Tan(v.Camera.FOV/2)
	assert.InDelta(t, want, v.Camera.Distance(), 1e-9)
	assert.InDelta(t, 0.002, v.Camera.Near, 1e-12)
	assert.InDelta(t, 3000, v.Camera.Far, 1e-9)
	assert.Equal(t, v.Camera.Target, v.Controls.Target)
}

func TestFitAndCenterEmptyIsNoop(t *testing.T) {
	v, _ := newViewer(t)
	m := loadCart(t)
	v.SetModel(m)

	pos, target, near := v.Camera.Position, v.Camera.Target, v.Camera.Near
	assert.False(t, v.FitAndCenter(m.Graph.Find("ghost"), 1.2))
	assert.Equal(t, pos, v.Camera.Position)
	assert.Equal(t, target, v.Camera.Target)
	assert.Equal(t, near, v.Camera.Near)
}

func TestFramePoseDoesNotMove(t *testing.T) {
	v, _ := newViewer(t)
	m := loadCart(t)
	v.SetModel(m)

	before := v.Camera.Position
	pos, target, ok := v.FramePose(m.Graph.Find("mast"), 1.2)
	require.True(t, ok)
	assert.Equal(t, before, v.Camera.Position)

	mast, _ := v.BoundingBox(m.Graph.Find("mast"))
	assert.True(t, target.ApproxEqual(mast.Center(), 1e-9))
	assert.Greater(t, pos.Distance(target), 0.0)
}

func TestFramingDistanceCached(t *testing.T) {
	v, _ := newViewer(t)
	m := loadCart(t)
	v.SetModel(m)

	d := v.FramingDistance()
	assert.Greater(t, d, 0.0)

	// Geometry changes are ignored until invalidated
	m.Graph.Joint("lift").SetValue(1)
	assert.Equal(t, d, v.FramingDistance())

	v.InvalidateFraming()
	assert.NotEqual(t, d, v.FramingDistance())
}

func TestTweenCamera(t *testing.T) {
	v, clk := newViewer(t)
	from := v.Camera.Position
	to := math3d.V3(10, 0, 0)
	target := math3d.V3(1, 1, 1)

	tw := v.TweenCamera(to, &target, time.Second)
	assert.False(t, v.Controls.Enabled, "controls are disabled while tweening")
	assert.True(t, v.Tweening())

	clk.now = clk.now.Add(500 * time.Millisecond)
	require.True(t, v.Tick(clk.now))
	// Cubic ease-in-out passes the midpoint at half time
	assert.True(t, v.Camera.Position.ApproxEqual(from.Lerp(to, 0.5), 1e-9))

	clk.now = clk.now.Add(time.Second)
	v.Tick(clk.now)
	assert.True(t, v.Camera.Position.ApproxEqual(to, 1e-9))
	assert.True(t, v.Camera.Target.ApproxEqual(target, 1e-9))
	select {
	case <-tw.Done():
	default:
		t.Fatal("tween should be done")
	}
	assert.False(t, tw.Canceled())
	assert.True(t, v.Controls.Enabled)
	assert.False(t, v.Tweening())
	assert.Equal(t, target, v.Controls.Target)
}

func TestTweenSupersedes(t *testing.T) {
	v, clk := newViewer(t)
	first := v.TweenCamera(math3d.V3(10, 0, 0), nil, time.Second)

	clk.now = clk.now.Add(500 * time.Millisecond)
	v.Tick(clk.now)
	mid := v.Camera.Position

	second := v.TweenCamera(math3d.V3(0, 10, 0), nil, time.Second)
	assert.True(t, first.Canceled())
	assert.False(t, v.Controls.Enabled, "the newer tween keeps controls disabled")

	// The newer tween starts from where the camera is now
	clk.now = clk.now.Add(time.Millisecond)
	v.Tick(clk.now)
	assert.Less(t, v.Camera.Position.Distance(mid), 0.01)

	second.Cancel()
	second.Cancel()
	assert.True(t, v.Controls.Enabled)
}

func TestTweenZeroDuration(t *testing.T) {
	v, _ := newViewer(t)
	tw := v.TweenCamera(math3d.V3(0, 0, 7), nil, 0)
	<-tw.Done()
	assert.Equal(t, math3d.V3(0, 0, 7), v.Camera.Position)
	assert.True(t, v.Controls.Enabled)
}

func TestEaseInOutCubic(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {0.25, 0.0625}, {0.5, 0.5}, {0.75, 0.9375}, {1, 1},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, easeInOutCubic(tc.in), 1e-12, "ease(%v)", tc.in)
	}
}

func TestControlsOrbitAndZoom(t *testing.T) {
	v, _ := newViewer(t)
	c := v.Controls
	startDist := v.Camera.Distance()
	startAz, _ := v.Camera.Angles()

	c.Rotate(0.2, 0)
	c.Zoom(0.5)
	for range 600 {
		v.Tick(time.Now())
	}
	assert.False(t, c.Moving(), "momentum decays")

	az, _ := v.Camera.Angles()
	assert.InDelta(t, startAz+0.2, az, 0.02)
	assert.InDelta(t, startDist*math.Exp(-0.5), v.Camera.Distance(), startDist*0.02)
	assert.True(t, v.Camera.Target.ApproxEqual(c.Target, 1e-9))
}

func TestControlsElevationClamped(t *testing.T) {
	v, _ := newViewer(t)
	v.Controls.Rotate(0, 100)
	for range 120 {
		v.Controls.Update()
	}
	_, el := v.Camera.Angles()
	assert.LessOrEqual(t, el, maxElevation+1e-9)
}

func TestControlsDisabled(t *testing.T) {
	v, _ := newViewer(t)
	pos := v.Camera.Position
	v.Controls.Enabled = false
	v.Controls.Rotate(1, 1)
	v.Controls.Zoom(1)
	assert.False(t, v.Controls.Update())
	assert.Equal(t, pos, v.Camera.Position)
}

func TestControlsPan(t *testing.T) {
	v, _ := newViewer(t)
	target := v.Controls.Target
	v.Controls.Pan(0.1, 0)
	v.Controls.Update()
	moved := v.Controls.Target.Sub(target)
	assert.Greater(t, moved.Len(), 0.0)
	// Panning slides across the view plane
	assert.InDelta(t, 0, moved.Dot(v.Camera.Forward()), 1e-9)
}
