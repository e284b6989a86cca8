package render

import (
	"fmt"

	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/scene"
)

// ThumbnailPadding is the margin factor around a thumbnail's geometry.
const ThumbnailPadding = 1.2

// Thumbnail renders the mesh nodes that g.MeshIndex records for key, seen
// from the iso direction, into a new w x h framebuffer. Other nodes are not
// drawn and the nodes' own visibility flags are ignored.
func Thumbnail(g *scene.Graph, key assetdb.Key, w, h int) (*Framebuffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("thumbnail size %dx%d", w, h)
	}
	nodes := g.MeshIndex[assetdb.Normalize(string(key))]
	box := math3d.EmptyAABB()
	for _, n := range nodes {
		if n.Mesh != nil && n.Mesh.TriangleCount() > 0 {
			box = box.Union(n.Mesh.Bounds().Transform(n.World()))
		}
	}
	if box.IsEmpty() {
		return nil, fmt.Errorf("thumbnail %q: %w", key, assetdb.ErrNotFound)
	}

	cam := NewCamera()
	cam.SetAspectRatio(float64(w) / float64(h))
	cam.SetTarget(box.Center())
	cam.SetPosition(box.Center().Add(IsoDirection()))
	cam.Fit(box, ThumbnailPadding)

	fb := NewFramebuffer(w, h)
	r := NewRasterizer(cam, fb)
	r.Clear(ColorBackdrop)
	light := cam.Position.Sub(cam.Target)
	for _, n := range nodes {
		r.DrawNode(n, light)
	}
	return fb, nil
}
