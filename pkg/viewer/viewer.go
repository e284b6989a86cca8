// Package viewer owns the camera of a loaded robot: framing, orbit
// controls and eased camera moves. A Viewer is driven by a single render
// loop goroutine and is not safe for concurrent use.
package viewer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/render"
	"github.com/taigrr/urdfview/pkg/robot"
	"github.com/taigrr/urdfview/pkg/scene"
)

// DefaultPadding leaves a margin around framed geometry.
const DefaultPadding = 1.2

// Clock returns the current time. Tests swap it for a fake.
type Clock func() time.Time

// Option configures a Viewer.
type Option func(*Viewer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(v *Viewer) { v.log = l }
}

// WithClock sets the time source tweens start from.
func WithClock(c Clock) Option {
	return func(v *Viewer) { v.clock = c }
}

// WithFPS sets the frame rate the orbit damping is tuned for.
func WithFPS(fps int) Option {
	return func(v *Viewer) { v.fps = fps }
}

// WithPadding sets the framing margin used for presets.
func WithPadding(p float64) Option {
	return func(v *Viewer) { v.Padding = p }
}

// Viewer frames and animates a camera around a robot model.
type Viewer struct {
	Camera   *render.Camera
	Controls *Controls
	Padding  float64

	model *robot.Model
	tween *Tween

	framing      float64
	framingValid bool

	alive bool
	fps   int
	clock Clock
	log   *zap.Logger
}

// New creates a viewer around cam. A nil camera fails with
// robot.ErrMissingDependency.
func New(cam *render.Camera, opts ...Option) (*Viewer, error) {
	if cam == nil {
		return nil, fmt.Errorf("viewer: camera: %w", robot.ErrMissingDependency)
	}
	v := &Viewer{
		Camera:  cam,
		Padding: DefaultPadding,
		alive:   true,
		fps:     60,
		clock:   time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.Controls = NewControls(cam, v.fps)
	return v, nil
}

// SetModel shows m, closing any previous model. The model's current pose
// becomes the one Reset returns to.
func (v *Viewer) SetModel(m *robot.Model) {
	if v.model != nil && v.model != m {
		v.model.Close()
	}
	v.model = m
	v.InvalidateFraming()
	if m == nil {
		return
	}
	m.Graph.SnapshotPose(m.Graph.Root)
	if box, ok := v.BoundingBox(m.Graph.Root); ok {
		v.Controls.SetTarget(box.Center())
	}
	v.log.Debug("model set", zap.String("robot", m.Robot.Name), zap.Int("nodes", m.Graph.Len()))
}

// Model returns the shown model, nil when none is loaded.
func (v *Viewer) Model() *robot.Model { return v.model }

// Root returns the model's root node, nil when no model is loaded.
func (v *Viewer) Root() *scene.Node {
	if v.model == nil {
		return nil
	}
	return v.model.Graph.Root
}

// Destroy stops the viewer: the active tween is canceled and the model is
// closed so late decode results are dropped.
func (v *Viewer) Destroy() {
	v.alive = false
	if v.tween != nil {
		v.tween.Cancel()
		v.tween = nil
	}
	if v.model != nil {
		v.model.Close()
	}
}

// Alive reports whether Destroy has not been called.
func (v *Viewer) Alive() bool { return v.alive }

// BoundingBox returns the world bounds of the visible geometry under n.
func (v *Viewer) BoundingBox(n *scene.Node) (math3d.AABB, bool) {
	if n == nil {
		return math3d.AABB{}, false
	}
	return scene.BoundingBox(n)
}

// FitAndCenter frames n's geometry with the given padding, keeping the
// current view direction. It does nothing and returns false when n has no
// visible geometry.
func (v *Viewer) FitAndCenter(n *scene.Node, padding float64) bool {
	box, ok := v.BoundingBox(n)
	if !ok {
		v.log.Debug("nothing to frame")
		return false
	}
	v.cancelTween()
	v.Camera.Fit(box, padding)
	v.Controls.Stop()
	v.Controls.SetTarget(v.Camera.Target)
	return true
}

// FramePose returns where FitAndCenter would put the camera and its target,
// updating only the clip planes and orthographic zoom. ok is false when n
// has no visible geometry.
func (v *Viewer) FramePose(n *scene.Node, padding float64) (pos, target math3d.Vec3, ok bool) {
	box, ok := v.BoundingBox(n)
	if !ok {
		return pos, target, false
	}
	probe := *v.Camera
	probe.Fit(box, padding)
	v.Camera.SetClipPlanes(probe.Near, probe.Far)
	if v.Camera.Projection == render.Orthographic {
		v.Camera.SetZoom(probe.Zoom)
	}
	return probe.Position, probe.Target, true
}

// FramingDistance returns the camera distance that frames the whole model.
// It is computed once and reused until InvalidateFraming.
func (v *Viewer) FramingDistance() float64 {
	if v.framingValid {
		return v.framing
	}
	box, ok := v.BoundingBox(v.Root())
	if !ok {
		return v.Camera.Distance()
	}
	v.framing = v.Camera.FitDistance(max(box.MaxDim(), 1e-3), v.Padding)
	v.framingValid = true
	v.Camera.SetClipPlanes(max(box.MaxDim()/1000, 0.001), max(box.MaxDim()*1500, 1500))
	return v.framing
}

// InvalidateFraming drops the cached framing distance.
func (v *Viewer) InvalidateFraming() {
	v.framingValid = false
}

// TweenCamera eases the camera from its current position to to over d.
// A nil targetTo keeps the current look-at point. Any tween in flight is
// canceled first, and the orbit controls stay disabled until this one
// ends.
func (v *Viewer) TweenCamera(to math3d.Vec3, targetTo *math3d.Vec3, d time.Duration) *Tween {
	v.cancelTween()
	t := &Tween{
		fromPos:    v.Camera.Position,
		toPos:      to,
		fromTarget: v.Camera.Target,
		toTarget:   v.Camera.Target,
		start:      v.clock(),
		duration:   d,
		done:       make(chan struct{}),
	}
	if targetTo != nil {
		t.toTarget = *targetTo
	}
	v.Controls.Stop()
	v.Controls.Enabled = false
	t.onEnd = func() {
		v.Controls.Enabled = true
		v.Controls.Target = v.Camera.Target
		if v.tween == t {
			v.tween = nil
		}
	}
	v.tween = t
	if d <= 0 {
		t.step(v.Camera, t.start)
		t.end()
	}
	return t
}

// Tweening reports whether a tween is in flight.
func (v *Viewer) Tweening() bool { return v.tween != nil }

func (v *Viewer) cancelTween() {
	if v.tween != nil {
		v.tween.Cancel()
	}
}

// Tick advances the camera one frame: the active tween if there is one,
// otherwise the orbit controls. It reports whether the camera moved.
func (v *Viewer) Tick(now time.Time) bool {
	if !v.alive {
		return false
	}
	if t := v.tween; t != nil {
		if t.step(v.Camera, now) {
			t.end()
		}
		return true
	}
	return v.Controls.Update()
}
