package render

import (
	"math"

	"github.com/taigrr/urdfview/pkg/math3d"
)

// Projection selects how the camera maps view space to clip space.
type Projection int

const (
	Perspective Projection = iota
	Orthographic
)

// Camera is a look-at camera: it sits at Position and looks at Target with
// Up as the world up direction. Robots are Z-up.
type Camera struct {
	Position math3d.Vec3
	Target   math3d.Vec3
	Up       math3d.Vec3

	Projection Projection

	// Projection parameters
	FOV         float64 // Vertical field of view in radians
	AspectRatio float64 // Width / Height
	Near        float64 // Near clipping plane
	Far         float64 // Far clipping plane

	// OrthoSize is the half-height of the orthographic view volume at
	// Zoom 1. Zoom divides it, so larger zoom magnifies.
	OrthoSize float64
	Zoom      float64

	// Cached matrices (computed on demand)
	viewMatrix     math3d.Mat4
	projMatrix     math3d.Mat4
	viewProjMatrix math3d.Mat4
	viewDirty      bool
	projDirty      bool
}

// NewCamera creates a perspective camera looking at the origin from the
// iso direction.
func NewCamera() *Camera {
	return &Camera{
		Position:    math3d.V3(2, 2, 2),
		Target:      math3d.V3(0, 0, 0),
		Up:          math3d.UnitZ(),
		FOV:         math.Pi / 4, // 45 degrees
		AspectRatio: 16.0 / 9.0,
		Near:        0.01,
		Far:         1500,
		OrthoSize:   1,
		Zoom:        1,
		viewDirty:   true,
		projDirty:   true,
	}
}

// SetPosition sets the camera position.
func (c *Camera) SetPosition(pos math3d.Vec3) {
	c.Position = pos
	c.viewDirty = true
}

// SetTarget sets the look-at point.
func (c *Camera) SetTarget(t math3d.Vec3) {
	c.Target = t
	c.viewDirty = true
}

// SetFOV sets the field of view (in radians).
func (c *Camera) SetFOV(fov float64) {
	c.FOV = fov
	c.projDirty = true
}

// SetAspectRatio sets the aspect ratio.
func (c *Camera) SetAspectRatio(aspect float64) {
	c.AspectRatio = aspect
	c.projDirty = true
}

// SetClipPlanes sets the near and far clipping planes.
func (c *Camera) SetClipPlanes(near, far float64) {
	c.Near = near
	c.Far = far
	c.projDirty = true
}

// SetProjection switches between perspective and orthographic.
func (c *Camera) SetProjection(p Projection) {
	c.Projection = p
	c.projDirty = true
}

// SetZoom sets the orthographic zoom factor.
func (c *Camera) SetZoom(z float64) {
	c.Zoom = z
	c.projDirty = true
}

// Invalidate marks cached matrices stale after direct field writes.
func (c *Camera) Invalidate() {
	c.viewDirty = true
	c.projDirty = true
}

// Forward returns the unit view direction.
func (c *Camera) Forward() math3d.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

// Distance returns the distance from the camera to its target.
func (c *Camera) Distance() float64 {
	return c.Position.Distance(c.Target)
}

// Angles returns the azimuth (from +X towards +Y) and elevation (above the
// XY plane) of the camera as seen from its target.
func (c *Camera) Angles() (azimuth, elevation float64) {
	d := c.Position.Sub(c.Target).Normalize()
	return math.Atan2(d.Y, d.X), math.Asin(max(-1, min(1, d.Z)))
}

// Direction returns the unit vector from a target towards a camera at the
// given azimuth and elevation.
func Direction(azimuth, elevation float64) math3d.Vec3 {
	ce := math.Cos(elevation)
	return math3d.V3(ce*math.Cos(azimuth), ce*math.Sin(azimuth), math.Sin(elevation))
}

// IsoElevation is the elevation of the isometric view: the camera looks
// down the (1, 1, 1) diagonal.
var IsoElevation = math.Atan(1 / math.Sqrt2)

// IsoDirection returns the unit vector towards the isometric camera.
func IsoDirection() math3d.Vec3 { return Direction(math.Pi/4, IsoElevation) }

// ViewMatrix returns the view matrix.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		c.computeViewMatrix()
		c.viewDirty = false
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the projection matrix.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.computeProjectionMatrix()
		c.projDirty = false
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns the combined view-projection matrix.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	if c.viewDirty || c.projDirty {
		c.viewProjMatrix = c.ProjectionMatrix().Mul(c.ViewMatrix())
	}
	return c.viewProjMatrix
}

func (c *Camera) computeViewMatrix() {
	up := c.Up
	// Looking straight along the up axis: borrow another up
	if c.Forward().Cross(up).LenSq() < 1e-12 {
		up = math3d.V3(0, 1, 0)
		if c.Forward().Cross(up).LenSq() < 1e-12 {
			up = math3d.V3(1, 0, 0)
		}
	}
	c.viewMatrix = math3d.LookAt(c.Position, c.Target, up)
}

func (c *Camera) computeProjectionMatrix() {
	if c.Projection == Orthographic {
		h := c.OrthoSize / max(c.Zoom, 1e-9)
		w := h * c.AspectRatio
		c.projMatrix = math3d.Orthographic(-w, w, -h, h, c.Near, c.Far)
		return
	}
	c.projMatrix = math3d.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
}

// FitDistance returns how far from its centre the camera must sit for a
// sphere-ish extent of maxDim*padding to fill the narrower axis of the view.
func (c *Camera) FitDistance(maxDim, padding float64) float64 {
	tanHalf := math.Tan(c.FOV/2) * min(1, c.AspectRatio)
	if tanHalf <= 0 {
		return maxDim * padding
	}
	return (maxDim * padding / 2) / tanHalf
}

// Fit places the camera so box fills the view, keeping the current view
// direction, and rescales the clip planes to the box. Orthographic cameras
// also get a zoom that fits the box.
func (c *Camera) Fit(box math3d.AABB, padding float64) {
	if box.IsEmpty() {
		return
	}
	// A single point still needs some distance
	maxDim := max(box.MaxDim(), 1e-3)
	center := box.Center()
	dir := c.Position.Sub(c.Target).Normalize()
	if dir.LenSq() == 0 {
		dir = IsoDirection()
	}
	dist := c.FitDistance(maxDim, padding)
	c.SetTarget(center)
	c.SetPosition(center.Add(dir.Scale(dist)))
	c.SetClipPlanes(max(maxDim/1000, 0.001), max(maxDim*1500, 1500))
	if c.Projection == Orthographic {
		half := maxDim * padding / 2 / min(1, c.AspectRatio)
		c.SetZoom(c.OrthoSize / half)
	}
}

// Ray returns the world-space ray through normalized device coordinates
// (-1..1, Y up) by unprojecting the near and far planes.
func (c *Camera) Ray(ndcX, ndcY float64) math3d.Ray {
	inv := c.ViewProjectionMatrix().Inverse()
	near := inv.MulVec4(math3d.V4(ndcX, ndcY, -1, 1)).PerspectiveDivide()
	far := inv.MulVec4(math3d.V4(ndcX, ndcY, 1, 1)).PerspectiveDivide()
	return math3d.NewRay(near, far.Sub(near))
}

// ScreenToNDC converts pixel coordinates to normalized device coordinates.
func ScreenToNDC(x, y float64, width, height int) (ndcX, ndcY float64) {
	return 2*x/float64(width) - 1, 1 - 2*y/float64(height)
}

// WorldToScreen transforms a world point to screen coordinates.
// Returns (screenX, screenY, depth, visible).
func (c *Camera) WorldToScreen(worldPos math3d.Vec3, screenWidth, screenHeight int) (x, y, depth float64, visible bool) {
	// Transform to clip space
	clipPos := c.ViewProjectionMatrix().MulVec4(math3d.V4FromV3(worldPos, 1))

	// Check if behind camera
	if clipPos.W <= 0 {
		return 0, 0, 0, false
	}

	// Perspective divide to NDC (-1 to 1)
	ndc := clipPos.PerspectiveDivide()

	// Check if in view frustum
	if ndc.X < -1 || ndc.X > 1 || ndc.Y < -1 || ndc.Y > 1 || ndc.Z < -1 || ndc.Z > 1 {
		return 0, 0, 0, false
	}

	// Convert to screen coordinates
	x = (ndc.X + 1) * 0.5 * float64(screenWidth)
	y = (1 - ndc.Y) * 0.5 * float64(screenHeight) // Y is flipped
	depth = ndc.Z

	return x, y, depth, true
}
