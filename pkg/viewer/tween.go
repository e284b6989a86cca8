package viewer

import (
	"time"

	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/render"
)

// Tween eases the camera from where it was when the tween started to a
// destination. It is advanced by Viewer.Tick and finishes on its own, or
// early through Cancel or a newer tween.
type Tween struct {
	fromPos, toPos       math3d.Vec3
	fromTarget, toTarget math3d.Vec3
	start                time.Time
	duration             time.Duration

	done     chan struct{}
	canceled bool
	onEnd    func()
}

// Done is closed once the tween completes or is canceled.
func (t *Tween) Done() <-chan struct{} { return t.done }

// Canceled reports whether the tween ended before reaching its destination.
func (t *Tween) Canceled() bool { return t.canceled }

// Cancel stops the tween where it is. Canceling an ended tween is a no-op.
func (t *Tween) Cancel() {
	if t.ended() {
		return
	}
	t.canceled = true
	t.end()
}

func (t *Tween) ended() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Tween) end() {
	close(t.done)
	if t.onEnd != nil {
		t.onEnd()
	}
}

// step moves cam to the eased position for now and reports whether the
// tween has reached its destination.
func (t *Tween) step(cam *render.Camera, now time.Time) bool {
	p := 1.0
	if t.duration > 0 {
		p = float64(now.Sub(t.start)) / float64(t.duration)
	}
	if p >= 1 {
		cam.SetPosition(t.toPos)
		cam.SetTarget(t.toTarget)
		return true
	}
	e := easeInOutCubic(max(0, p))
	cam.SetPosition(t.fromPos.Lerp(t.toPos, e))
	cam.SetTarget(t.fromTarget.Lerp(t.toTarget, e))
	return false
}

// easeInOutCubic accelerates through the first half and decelerates
// through the second.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := -2*t + 2
	return 1 - f*f*f/2
}
