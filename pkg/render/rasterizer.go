package render

import (
	"cmp"
	"math"
	"slices"

	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/models"
	"github.com/taigrr/urdfview/pkg/scene"
)

// Ambient is the share of the base color a surface keeps facing away from
// the light.
const Ambient = 0.3

// Vertex represents a vertex with all attributes needed for rasterization.
type Vertex struct {
	Position math3d.Vec3 // World position
	Normal   math3d.Vec3 // World normal (for lighting)
	Color    Color       // Unlit vertex color
}

// Triangle represents a triangle to be rasterized.
type Triangle struct {
	V [3]Vertex
}

// Rasterizer handles software triangle rasterization.
type Rasterizer struct {
	camera  *Camera
	fb      *Framebuffer
	zbuffer []float64 // Depth buffer (1D array, row-major)

	Stats                  Stats
	DisableBackfaceCulling bool // If true, render both sides of triangles
	Wireframe              bool // Draw triangle edges instead of filling
}

// Stats counts the work done since the last ResetStats.
type Stats struct {
	MeshesTested int // Mesh nodes tested against the frustum
	MeshesCulled int // Mesh nodes skipped as outside the frustum
	MeshesDrawn  int
	Triangles    int
}

// NewRasterizer creates a new rasterizer.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{
		camera: camera,
		fb:     fb,
	}
	r.Resize()
	return r
}

// Resize resizes the rasterizer's buffer to match the framebuffer.
func (r *Rasterizer) Resize() {
	if r.fb == nil {
		r.zbuffer = nil
		return
	}
	r.zbuffer = make([]float64, r.fb.Width*r.fb.Height)
	r.ClearDepth()
}

// Camera returns the camera the rasterizer projects with.
func (r *Rasterizer) Camera() *Camera { return r.camera }

// Framebuffer returns the render target.
func (r *Rasterizer) Framebuffer() *Framebuffer { return r.fb }

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// ClearDepth clears the Z-buffer (call before each frame).
func (r *Rasterizer) ClearDepth() {
	// copy-doubling
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// Clear fills the framebuffer with bg and resets depth and stats.
func (r *Rasterizer) Clear(bg Color) {
	if r.fb != nil {
		r.fb.Clear(bg)
	}
	r.ClearDepth()
	r.Stats = Stats{}
}

func (r *Rasterizer) getDepth(x, y int) float64 {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return math.MaxFloat64
	}
	return r.zbuffer[y*r.Width()+x]
}

func (r *Rasterizer) setDepth(x, y int, z float64) {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return
	}
	r.zbuffer[y*r.Width()+x] = z
}

// screenVertex is a vertex after projection.
type screenVertex struct {
	X, Y, Z float64
	W       float64
	Color   Color
}

// project maps a world position to screen space. ok is false behind the eye.
func (r *Rasterizer) project(viewProj math3d.Mat4, p math3d.Vec3) (sv screenVertex, ok bool) {
	clip := viewProj.MulVec4(math3d.V4FromV3(p, 1))
	sv.W = clip.W
	if clip.W != 0 {
		sv.X = clip.X / clip.W
		sv.Y = clip.Y / clip.W
		sv.Z = clip.Z / clip.W
	}
	sv.X = (sv.X + 1) * 0.5 * float64(r.Width())
	sv.Y = (1 - sv.Y) * 0.5 * float64(r.Height()) // Y flipped
	return sv, clip.W > 0
}

// DrawTriangle rasterizes a triangle with Gouraud shading: lighting is
// evaluated per vertex and interpolated. Emissive is added after lighting.
// With alpha below 1 the triangle is blended over what is already drawn
// and leaves the depth buffer untouched.
func (r *Rasterizer) DrawTriangle(tri Triangle, lightDir math3d.Vec3, emissive [3]float64, alpha float64) {
	if r.fb == nil || alpha <= 0 {
		return
	}
	var sv [3]screenVertex
	allBehind := true

	viewProj := r.camera.ViewProjectionMatrix()
	normLight := lightDir.Normalize()

	for i := range 3 {
		v, ok := r.project(viewProj, tri.V[i].Position)
		if ok {
			allBehind = false
		}
		intensity := math.Abs(tri.V[i].Normal.Dot(normLight))
		if !r.DisableBackfaceCulling {
			intensity = math.Max(0, tri.V[i].Normal.Dot(normLight))
		}
		v.Color = shade(tri.V[i].Color, Ambient+(1-Ambient)*intensity, emissive)
		sv[i] = v
	}
	if allBehind {
		return
	}

	// Clockwise on screen (after the Y flip) is front-facing
	cross := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[1].Y-sv[0].Y)*(sv[2].X-sv[0].X)
	if cross < 0 && !r.DisableBackfaceCulling {
		return
	}
	if cross == 0 {
		return
	}
	r.Stats.Triangles++

	if r.Wireframe {
		r.fb.DrawLine(int(sv[0].X), int(sv[0].Y), int(sv[1].X), int(sv[1].Y), sv[0].Color)
		r.fb.DrawLine(int(sv[1].X), int(sv[1].Y), int(sv[2].X), int(sv[2].Y), sv[1].Color)
		r.fb.DrawLine(int(sv[2].X), int(sv[2].Y), int(sv[0].X), int(sv[0].Y), sv[2].Color)
		return
	}

	minX := int(math.Max(0, math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := int(math.Min(float64(r.Width()-1), math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := int(math.Max(0, math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := int(math.Min(float64(r.Height()-1), math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))

	opaque := alpha >= 1
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			bc := barycentric(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y, sv[2].X, sv[2].Y, px, py)
			if bc.X < 0 || bc.Y < 0 || bc.Z < 0 {
				continue
			}
			z := bc.X*sv[0].Z + bc.Y*sv[1].Z + bc.Z*sv[2].Z
			if z < -1 || z >= r.getDepth(x, y) {
				continue
			}
			c := interpolateColor3(sv[0].Color, sv[1].Color, sv[2].Color, bc)
			if opaque {
				r.setDepth(x, y, z)
				r.fb.SetPixel(x, y, c)
				continue
			}
			r.fb.BlendPixel(x, y, c, alpha)
		}
	}
}

// DrawGraph draws every visible mesh node of g. Opaque nodes are drawn
// first, then transparent ones from far to near.
func (r *Rasterizer) DrawGraph(g *scene.Graph, lightDir math3d.Vec3) {
	if g == nil {
		return
	}
	var opaque, transparent []*scene.Node
	g.Walk(func(n *scene.Node) bool {
		if !n.Visible {
			return false
		}
		if n.Mesh == nil {
			return true
		}
		if isTransparent(n.Material) {
			transparent = append(transparent, n)
		} else {
			opaque = append(opaque, n)
		}
		return true
	})
	for _, n := range opaque {
		r.DrawNode(n, lightDir)
	}
	eye := r.camera.Position
	slices.SortStableFunc(transparent, func(a, b *scene.Node) int {
		da := a.World().Translation().Distance(eye)
		db := b.World().Translation().Distance(eye)
		return cmp.Compare(db, da)
	})
	for _, n := range transparent {
		r.DrawNode(n, lightDir)
	}
}

// DrawNode draws a single mesh node with its world transform and material.
// Visibility of ancestors is not checked.
func (r *Rasterizer) DrawNode(n *scene.Node, lightDir math3d.Vec3) {
	if n == nil || n.Mesh == nil || n.Mesh.TriangleCount() == 0 {
		return
	}
	world := n.World()
	r.Stats.MeshesTested++
	if !r.camera.Frustum().IntersectAABB(n.Mesh.Bounds().Transform(world)) {
		r.Stats.MeshesCulled++
		return
	}
	r.Stats.MeshesDrawn++

	normalMat := world.NormalMatrix()
	mirrored := world.Mirrors()
	alpha := 1.0
	if isTransparent(n.Material) {
		alpha = n.Material.Opacity
	}

	mesh := n.Mesh
	for i := range mesh.Faces {
		f := mesh.Faces[i]
		base := faceColor(mesh, f.Material, n.Material)
		var tri Triangle
		for k := range 3 {
			v := mesh.Vertices[f.V[k]]
			tri.V[k] = Vertex{
				Position: world.MulVec3(v.Position),
				Normal:   normalMat.MulVec3Dir(v.Normal).Normalize(),
				Color:    base,
			}
		}
		if mirrored {
			tri.V[1], tri.V[2] = tri.V[2], tri.V[1]
		}
		r.DrawTriangle(tri, lightDir, n.Material.Emissive, alpha)
	}
}

// DrawLine3D draws a world-space line segment without depth testing.
func (r *Rasterizer) DrawLine3D(a, b math3d.Vec3, color Color) {
	if r.fb == nil {
		return
	}
	viewProj := r.camera.ViewProjectionMatrix()
	sa, okA := r.project(viewProj, a)
	sb, okB := r.project(viewProj, b)
	if !okA || !okB {
		return
	}
	r.fb.DrawLine(int(sa.X), int(sa.Y), int(sb.X), int(sb.Y), color)
}

// faceColor picks the per-face material color when a mesh carries several
// materials, falling back to the node's material.
func faceColor(mesh *models.Mesh, idx int, node models.Material) Color {
	if mesh.MaterialCount() > 1 {
		if m := mesh.Material(idx); m != nil {
			return MaterialColor(*m)
		}
	}
	return MaterialColor(node)
}

func isTransparent(m models.Material) bool {
	return m.Transparent && m.Opacity < 1
}

// MaterialColor converts a material's base color to an opaque pixel color.
func MaterialColor(m models.Material) Color {
	return RGB(unit8(m.BaseColor[0]), unit8(m.BaseColor[1]), unit8(m.BaseColor[2]))
}

func shade(c Color, intensity float64, emissive [3]float64) Color {
	ch := func(v uint8, e float64) uint8 {
		return unit8(float64(v)/255*intensity + e)
	}
	return RGB(ch(c.R, emissive[0]), ch(c.G, emissive[1]), ch(c.B, emissive[2]))
}

func unit8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// barycentric calculates barycentric coordinates for point (px, py) in triangle.
func barycentric(x0, y0, x1, y1, x2, y2, px, py float64) math3d.Vec3 {
	v0x, v0y := x2-x0, y2-y0
	v1x, v1y := x1-x0, y1-y0
	v2x, v2y := px-x0, py-y0

	dot00 := v0x*v0x + v0y*v0y
	dot01 := v0x*v1x + v0y*v1y
	dot02 := v0x*v2x + v0y*v2y
	dot11 := v1x*v1x + v1y*v1y
	dot12 := v1x*v2x + v1y*v2y

	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	return math3d.V3(1-u-v, v, u)
}

// interpolateColor3 interpolates between 3 colors using barycentric coords.
func interpolateColor3(c0, c1, c2 Color, bc math3d.Vec3) Color {
	ch := func(a, b, c uint8) uint8 {
		v := float64(a)*bc.X + float64(b)*bc.Y + float64(c)*bc.Z
		return uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return RGB(ch(c0.R, c1.R, c2.R), ch(c0.G, c1.G, c2.G), ch(c0.B, c1.B, c2.B))
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
