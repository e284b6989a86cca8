package viewer

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/render"
)

// maxElevation keeps orbiting short of the poles, where azimuth is undefined.
const maxElevation = math.Pi/2 - 1e-3

// springFrequency 4.0 = moderate speed; damping 1.0 = critically damped
// (no overshoot).
const springFrequency = 4.0

// axis is one orbit degree of freedom. Impulses add velocity that a
// critically damped spring bleeds back to zero.
type axis struct {
	Velocity float64
	spring   harmonica.Spring
	accel    float64
	gain     float64
}

func newAxis(fps int) axis {
	return axis{
		spring: harmonica.NewSpring(harmonica.FPS(fps), springFrequency, 1.0),
		// A critically damped decay from v covers about 2v/ω per second,
		// so this gain makes an impulse of d travel roughly d in total.
		gain: springFrequency / (2 * float64(fps)),
	}
}

func (a *axis) impulse(d float64) { a.Velocity += d * a.gain }

// step returns the motion for this frame and decays the velocity.
func (a *axis) step() float64 {
	d := a.Velocity
	a.Velocity, a.accel = a.spring.Update(a.Velocity, a.accel, 0)
	if math.Abs(a.Velocity) < 1e-6 {
		a.Velocity, a.accel = 0, 0
	}
	return d
}

func (a *axis) stop() { a.Velocity, a.accel = 0, 0 }

// Controls orbits the camera around Target. Input adds momentum that is
// applied and damped by Update once per frame.
type Controls struct {
	Enabled bool
	Target  math3d.Vec3

	MinDistance float64
	MaxDistance float64

	camera             *render.Camera
	azimuth, elevation axis
	zoom, panX, panY   axis
}

// NewControls creates enabled controls for cam, targeting cam's look-at
// point and damped for the given frame rate.
func NewControls(cam *render.Camera, fps int) *Controls {
	if fps <= 0 {
		fps = 60
	}
	return &Controls{
		Enabled:     true,
		Target:      cam.Target,
		MinDistance: 1e-3,
		MaxDistance: 1e5,
		camera:      cam,
		azimuth:     newAxis(fps),
		elevation:   newAxis(fps),
		zoom:        newAxis(fps),
		panX:        newAxis(fps),
		panY:        newAxis(fps),
	}
}

// Rotate adds orbit momentum that turns the camera by about dAzimuth and
// dElevation radians once it has decayed.
func (c *Controls) Rotate(dAzimuth, dElevation float64) {
	if !c.Enabled {
		return
	}
	c.azimuth.impulse(dAzimuth)
	c.elevation.impulse(dElevation)
}

// Zoom adds dolly momentum. Positive deltas move closer; each unit
// eventually scales the distance by about 1/e.
func (c *Controls) Zoom(delta float64) {
	if !c.Enabled {
		return
	}
	c.zoom.impulse(delta)
}

// Pan adds momentum that slides the target across the view plane. Deltas
// are fractions of the current distance.
func (c *Controls) Pan(dx, dy float64) {
	if !c.Enabled {
		return
	}
	c.panX.impulse(dx)
	c.panY.impulse(dy)
}

// SetTarget moves the orbit centre without moving the camera.
func (c *Controls) SetTarget(t math3d.Vec3) {
	c.Target = t
	c.camera.SetTarget(t)
}

// Stop drops all momentum.
func (c *Controls) Stop() {
	for _, a := range []*axis{&c.azimuth, &c.elevation, &c.zoom, &c.panX, &c.panY} {
		a.stop()
	}
}

// Moving reports whether any momentum is left.
func (c *Controls) Moving() bool {
	for _, a := range []*axis{&c.azimuth, &c.elevation, &c.zoom, &c.panX, &c.panY} {
		if a.Velocity != 0 {
			return true
		}
	}
	return false
}

// Update applies one frame of momentum to the camera and reports whether
// the camera moved. Disabled controls drop their momentum.
func (c *Controls) Update() bool {
	if !c.Enabled {
		c.Stop()
		return false
	}
	if !c.Moving() {
		return false
	}
	dAz, dEl := c.azimuth.step(), c.elevation.step()
	dZoom := c.zoom.step()
	dx, dy := c.panX.step(), c.panY.step()

	cam := c.camera
	offset := cam.Position.Sub(c.Target)
	dist := offset.Len()
	az, el := math.Atan2(offset.Y, offset.X), 0.0
	if dist > 0 {
		el = math.Asin(max(-1, min(1, offset.Z/dist)))
	}

	az += dAz
	el = max(-maxElevation, min(maxElevation, el+dEl))
	if cam.Projection == render.Orthographic {
		cam.SetZoom(cam.Zoom * math.Exp(dZoom))
	} else {
		dist = max(c.MinDistance, min(c.MaxDistance, dist*math.Exp(-dZoom)))
	}

	if dx != 0 || dy != 0 {
		fwd := render.Direction(az, el).Negate()
		right := fwd.Cross(cam.Up).Normalize()
		up := right.Cross(fwd)
		c.Target = c.Target.Add(right.Scale(dx * dist)).Add(up.Scale(dy * dist))
	}

	cam.SetTarget(c.Target)
	cam.SetPosition(c.Target.Add(render.Direction(az, el).Scale(dist)))
	return true
}
