// Package interact turns pointer and keyboard input into selection,
// highlighting and camera navigation on a viewer.
package interact

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/render"
	"github.com/taigrr/urdfview/pkg/robot"
	"github.com/taigrr/urdfview/pkg/scene"
	"github.com/taigrr/urdfview/pkg/viewer"
)

var (
	ErrNoModel       = errors.New("no model loaded")
	ErrUnknownPreset = errors.New("unknown view preset")
)

// DefaultTweenDuration is how long preset and focus moves take.
const DefaultTweenDuration = 600 * time.Millisecond

// HighlightEmissive is the glow added to highlighted materials.
var HighlightEmissive = [3]float64{0.25, 0.18, 0}

// Player plays the UI click sound. Play must not block.
type Player interface {
	Play()
}

// Selection holds the hovered and selected nodes. Either may be nil, and
// both may be the same node.
type Selection struct {
	Hovered  *scene.Node
	Selected *scene.Node
}

// Panels are the UI toggles the keyboard flips.
type Panels struct {
	Components bool
	Tools      bool
}

// Option configures a Layer.
type Option func(*Layer)

// WithPlayer sets the click sound player.
func WithPlayer(p Player) Option {
	return func(l *Layer) { l.Sound = p }
}

// WithTweenDuration sets how long navigation moves take.
func WithTweenDuration(d time.Duration) Option {
	return func(l *Layer) { l.TweenDuration = d }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Layer) { l.log = lg }
}

// Layer is the selection and navigation state machine. Like the viewer it
// drives, it belongs to the render loop goroutine.
type Layer struct {
	Selection     Selection
	Panels        Panels
	Sound         Player
	TweenDuration time.Duration

	viewer      *viewer.Viewer
	focusToggle bool
	log         *zap.Logger
}

// New creates a layer driving v. A nil viewer fails with
// robot.ErrMissingDependency.
func New(v *viewer.Viewer, opts ...Option) (*Layer, error) {
	if v == nil {
		return nil, fmt.Errorf("interact: viewer: %w", robot.ErrMissingDependency)
	}
	l := &Layer{
		TweenDuration: DefaultTweenDuration,
		viewer:        v,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Viewer returns the viewer the layer drives.
func (l *Layer) Viewer() *viewer.Viewer { return l.viewer }

func (l *Layer) graph() *scene.Graph {
	if m := l.viewer.Model(); m != nil {
		return m.Graph
	}
	return nil
}

func (l *Layer) play() {
	if l.Sound != nil {
		l.Sound.Play()
	}
}

// Pick returns the nearest visible mesh node under the pointer, given in
// normalized device coordinates.
func (l *Layer) Pick(ndcX, ndcY float64) *scene.Node {
	root := l.viewer.Root()
	if root == nil {
		return nil
	}
	hit, ok := scene.Raycast(root, l.viewer.Camera.Ray(ndcX, ndcY))
	if !ok {
		return nil
	}
	return hit.Node
}

// PointerMove updates the hovered node and returns it.
func (l *Layer) PointerMove(ndcX, ndcY float64) *scene.Node {
	n := l.Pick(ndcX, ndcY)
	if n == l.Selection.Hovered {
		return n
	}
	prev := l.Selection.Hovered
	l.Selection.Hovered = n
	l.refresh(prev)
	l.refresh(n)
	return n
}

// Click selects the node under the pointer. Clicking empty space clears
// the selection.
func (l *Layer) Click(ndcX, ndcY float64) *scene.Node {
	n := l.Pick(ndcX, ndcY)
	l.Select(n)
	l.play()
	return n
}

// Select makes n the selection; nil clears it.
func (l *Layer) Select(n *scene.Node) {
	if n == l.Selection.Selected {
		return
	}
	prev := l.Selection.Selected
	l.Selection.Selected = n
	l.refresh(prev)
	l.refresh(n)
	if n != nil {
		l.log.Debug("selected", zap.String("node", n.Name), zap.Stringer("kind", n.Kind))
	}
}

// refresh brings the highlight of every mesh under n in line with the
// current hover and selection.
func (l *Layer) refresh(n *scene.Node) {
	g := l.graph()
	if n == nil || g == nil {
		return
	}
	n.Walk(func(c *scene.Node) bool {
		if c.Mesh != nil {
			l.highlight(g, c, l.covered(c))
		}
		return true
	})
}

// covered reports whether n lies under the hovered or selected node.
func (l *Layer) covered(n *scene.Node) bool {
	for p := n; p != nil; p = p.Parent() {
		if p == l.Selection.Hovered || p == l.Selection.Selected {
			return true
		}
	}
	return false
}

// Highlight turns the highlight of every mesh under n on or off. Turning
// it on twice applies it once; turning it off restores the material the
// mesh had before, transparency included.
func (l *Layer) Highlight(n *scene.Node, on bool) {
	g := l.graph()
	if n == nil || g == nil {
		return
	}
	n.Walk(func(c *scene.Node) bool {
		if c.Mesh != nil {
			l.highlight(g, c, on)
		}
		return true
	})
}

func (l *Layer) highlight(g *scene.Graph, n *scene.Node, on bool) {
	meta := g.Meta(n)
	if meta.Highlighted == on {
		return
	}
	if on {
		backup := n.Material
		meta.MaterialBackup = &backup
		for i := range n.Material.Emissive {
			n.Material.Emissive[i] = math.Min(1, n.Material.Emissive[i]+HighlightEmissive[i])
		}
		meta.Highlighted = true
		return
	}
	if meta.MaterialBackup != nil {
		n.Material = *meta.MaterialBackup
	}
	meta.MaterialBackup = nil
	meta.Highlighted = false
}

// Highlighted reports whether n currently carries the highlight.
func (l *Layer) Highlighted(n *scene.Node) bool {
	g := l.graph()
	if g == nil || n == nil {
		return false
	}
	meta, ok := g.LookupMeta(n)
	return ok && meta.Highlighted
}

// RefreshHighlight re-applies the hover and selection highlight, reaching
// meshes attached under them since they were set.
func (l *Layer) RefreshHighlight() {
	l.refresh(l.Selection.Hovered)
	l.refresh(l.Selection.Selected)
}

// Attach moves finished decodes into the viewer's model and highlights the
// ones that land under the hover or selection. It returns the number of
// results taken.
func (l *Layer) Attach() int {
	m := l.viewer.Model()
	if m == nil {
		return 0
	}
	n := m.Attach()
	if n > 0 {
		l.RefreshHighlight()
	}
	return n
}

// focus returns the centre to navigate around: the selection's if it has
// visible geometry, otherwise the whole model's.
func (l *Layer) focus() (math3d.Vec3, bool) {
	if box, ok := l.viewer.BoundingBox(l.Selection.Selected); ok {
		return box.Center(), true
	}
	box, ok := l.viewer.BoundingBox(l.viewer.Root())
	if !ok {
		return math3d.Vec3{}, false
	}
	return box.Center(), true
}

// retarget points the orbit controls at the focus.
func (l *Layer) retarget() {
	if c, ok := l.focus(); ok && !l.viewer.Tweening() {
		l.viewer.Controls.SetTarget(c)
	}
}

// Zoom dollies towards the focus.
func (l *Layer) Zoom(delta float64) {
	if l.viewer.Root() == nil {
		return
	}
	l.retarget()
	l.viewer.Controls.Zoom(delta)
}

// Orbit rotates around the focus.
func (l *Layer) Orbit(dAzimuth, dElevation float64) {
	if l.viewer.Root() == nil {
		return
	}
	l.retarget()
	l.viewer.Controls.Rotate(dAzimuth, dElevation)
}

// Preset is a named camera direction.
type Preset struct {
	Azimuth, Elevation float64
}

// Presets are the named views. Robots face +X with Z up, so the right
// side looks along +Y from -Y.
var Presets = map[string]Preset{
	"iso":   {Azimuth: math.Pi / 4, Elevation: render.IsoElevation},
	"top":   {Azimuth: 0, Elevation: math.Pi / 2},
	"front": {Azimuth: 0, Elevation: 0},
	"right": {Azimuth: -math.Pi / 2, Elevation: 0},
}

// ViewPreset tweens to the named view of the focus at the cached framing
// distance.
func (l *Layer) ViewPreset(name string) (*viewer.Tween, error) {
	p, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	center, ok := l.focus()
	if !ok {
		return nil, ErrNoModel
	}
	dist := l.viewer.FramingDistance()
	pos := center.Add(render.Direction(p.Azimuth, p.Elevation).Scale(dist))
	return l.viewer.TweenCamera(pos, &center, l.TweenDuration), nil
}

// ToggleFocus alternates between framing the selection from the current
// direction and the iso preset. The first call frames.
func (l *Layer) ToggleFocus() (*viewer.Tween, error) {
	root := l.viewer.Root()
	if root == nil {
		return nil, ErrNoModel
	}
	l.focusToggle = !l.focusToggle
	if !l.focusToggle {
		return l.ViewPreset("iso")
	}
	n := l.Selection.Selected
	if n == nil {
		n = root
	}
	pos, target, ok := l.viewer.FramePose(n, l.viewer.Padding)
	if !ok {
		pos, target, ok = l.viewer.FramePose(root, l.viewer.Padding)
		if !ok {
			return nil, ErrNoModel
		}
	}
	return l.viewer.TweenCamera(pos, &target, l.TweenDuration), nil
}

// Reset zeroes every joint, restores the pose captured at load, drops the
// cached framing distance and returns to the iso preset.
func (l *Layer) Reset() (*viewer.Tween, error) {
	g := l.graph()
	if g == nil {
		return nil, ErrNoModel
	}
	g.ResetJoints()
	g.RestorePose(g.Root)
	l.viewer.InvalidateFraming()
	return l.ViewPreset("iso")
}

// HandleKey runs the shortcut bound to key and reports whether it did
// anything. Without a model every key is ignored.
func (l *Layer) HandleKey(key string) bool {
	if l.viewer.Root() == nil {
		return false
	}
	var err error
	switch key {
	case "i":
		_, err = l.ToggleFocus()
	case "c":
		l.Panels.Components = !l.Panels.Components
	case "t":
		l.Panels.Tools = !l.Panels.Tools
	case "r":
		_, err = l.Reset()
	default:
		return false
	}
	if err != nil {
		l.log.Warn("shortcut failed", zap.String("key", key), zap.Error(err))
		return false
	}
	l.play()
	return true
}
