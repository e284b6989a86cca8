// Package robot turns a URDF document and an asset table into a scene
// graph. Missing or undecodable meshes never fail a load; they leave their
// link bare and are reported as diagnostics.
package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/models"
	"github.com/taigrr/urdfview/pkg/scene"
	"github.com/taigrr/urdfview/pkg/urdf"
)

// ErrMissingDependency is returned when a loader is built without an asset
// resolver or without decoders.
var ErrMissingDependency = errors.New("missing runtime dependency")

// Loader builds Models. It is safe to reuse across loads.
type Loader struct {
	resolver assetdb.Resolver
	fsys     fs.FS
	decoders *models.Registry
	log      *zap.Logger
	workers  int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.log = l }
}

// WithDecoders replaces the decoder registry.
func WithDecoders(r *models.Registry) Option {
	return func(ld *Loader) { ld.decoders = r }
}

// WithWorkers bounds the number of concurrent scene decodes.
func WithWorkers(n int) Option {
	return func(ld *Loader) { ld.workers = n }
}

// WithFS sets the file system scene decoders use for files their documents
// reference. It defaults to the resolver's own FS when it has one.
func WithFS(fsys fs.FS) Option {
	return func(ld *Loader) { ld.fsys = fsys }
}

// New returns a Loader reading assets from r. When r is nil the
// process-wide fetcher installed with assetdb.Install is used.
func New(r assetdb.Resolver, opts ...Option) (*Loader, error) {
	if r == nil {
		if f := assetdb.Installed(); f != nil {
			r = fetchResolver{f}
		}
	}
	if r == nil {
		return nil, fmt.Errorf("%w: no asset resolver", ErrMissingDependency)
	}

	ld := &Loader{
		resolver: r,
		decoders: models.DefaultRegistry(),
		log:      zap.NewNop(),
		workers:  runtime.GOMAXPROCS(0),
	}
	if withFS, ok := r.(interface{ FS() fs.FS }); ok {
		ld.fsys = withFS.FS()
	}
	for _, opt := range opts {
		opt(ld)
	}
	if ld.decoders == nil {
		return nil, fmt.Errorf("%w: no decoder registry", ErrMissingDependency)
	}
	if ld.log == nil {
		ld.log = zap.NewNop()
	}
	if ld.workers < 1 {
		ld.workers = 1
	}
	return ld, nil
}

// fetchResolver adapts an installed Fetcher to the Resolver interface.
type fetchResolver struct{ f assetdb.Fetcher }

func (r fetchResolver) Resolve(ref string) (assetdb.Payload, error) {
	data, err := r.f.Fetch(context.Background(), ref)
	if err != nil {
		return assetdb.Payload{}, err
	}
	k := assetdb.Normalize(ref)
	return assetdb.Payload{Key: k, Data: data, Format: assetdb.FormatOf(k), MIME: assetdb.MIMEOf(k, data)}, nil
}

// Load parses doc and builds its scene graph. Only a malformed document is
// an error. Mesh-polygon files are attached before Load returns;
// scene-description files decode in the background and attach through
// Model.Attach or Model.Wait.
func (ld *Loader) Load(ctx context.Context, doc io.Reader) (*Model, error) {
	rb, err := urdf.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("load robot: %w", err)
	}

	dctx, cancel := context.WithCancel(ctx)
	m := &Model{
		Graph:  scene.New(rb.Name),
		Robot:  rb,
		alive:  true,
		cancel: cancel,
		log:    ld.log,
	}
	b := &builder{ld: ld, m: m}

	root := rb.RootLink()
	b.link(m.Graph.Root, root)
	b.mimics()
	m.Graph.UpdateWorld()

	m.pending = len(b.jobs)
	m.results = make(chan decodeResult, len(b.jobs))
	ld.startDecodes(dctx, b.jobs, m.results)

	ld.log.Info("robot loaded",
		zap.String("robot", rb.Name),
		zap.Int("links", len(rb.Links)),
		zap.Int("joints", len(rb.Joints)),
		zap.Int("meshes", len(m.Graph.MeshNodes())),
		zap.Int("pending", m.pending),
		zap.Int("diagnostics", len(m.diags)),
	)
	return m, nil
}

type decodeJob struct {
	link   string
	ref    string
	key    assetdb.Key // the reference's own key, not the payload's
	data   []byte
	decode models.SceneDecoder
	parent *scene.Node
}

type decodeResult struct {
	job   decodeJob
	scene *models.SubScene
	err   error
}

func (ld *Loader) startDecodes(ctx context.Context, jobs []decodeJob, out chan<- decodeResult) {
	if len(jobs) == 0 {
		return
	}
	go func() {
		var g errgroup.Group
		g.SetLimit(ld.workers)
		for _, job := range jobs {
			g.Go(func() error {
				sub, err := decodeScene(ctx, job, ld.fsys)
				out <- decodeResult{job: job, scene: sub, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func decodeScene(ctx context.Context, job decodeJob, fsys fs.FS) (sub *models.SubScene, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", models.ErrDecode, r)
		}
	}()
	return job.decode(ctx, job.data, fsys)
}

func decodeMesh(dec models.MeshDecoder, data []byte) (mesh *models.Mesh, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", models.ErrDecode, r)
		}
	}()
	return dec(data)
}

// builder walks the URDF tree once.
type builder struct {
	ld   *Loader
	m    *Model
	jobs []decodeJob
}

func (b *builder) link(parent *scene.Node, l *urdf.Link) *scene.Node {
	g := b.m.Graph
	node := scene.NewNode(l.Name, scene.KindLink)
	g.Add(parent, node)

	for i := range l.Visuals {
		b.visual(node, l, &l.Visuals[i], i)
	}

	for _, j := range b.m.Robot.ChildJoints(l.Name) {
		child := b.m.Robot.Link(j.Child.Link)
		childNode := b.link(node, child)

		joint := scene.NewJoint(j.Name, j.Type, childNode, vec(j.Origin.XYZ), rpy(j.Origin.RPY))
		joint.Axis = vec(j.AxisXYZ())
		joint.Lower, joint.Upper = j.Limits()
		g.AddJoint(joint)
	}
	return node
}

func (b *builder) mimics() {
	g := b.m.Graph
	for _, j := range b.m.Robot.Joints {
		if j.Mimic == nil {
			continue
		}
		g.Joint(j.Name).Follow(g.Joint(j.Mimic.Joint), j.Mimic.Multiplier(), j.Mimic.Offset)
	}
}

func (b *builder) visual(link *scene.Node, l *urdf.Link, v *urdf.Visual, idx int) {
	g := b.m.Graph
	name := v.Name
	if name == "" {
		name = fmt.Sprintf("%s/visual%d", l.Name, idx)
	}
	node := scene.NewNode(name, scene.KindVisual)
	node.Position = vec(v.Origin.XYZ)
	node.Orientation = rpy(v.Origin.RPY)
	g.Add(link, node)

	color, hasColor := b.m.Robot.VisualColor(v)
	paint := func(n *scene.Node) {
		if !hasColor {
			return
		}
		n.Material.BaseColor = color
		n.Material.Opacity = color[3]
		n.Material.Transparent = color[3] < 1
	}

	geom := v.Geometry
	switch {
	case geom.Mesh != nil:
		node.Scale = vec(geom.Mesh.Scale())
		b.mesh(node, l.Name, geom.Mesh.Filename, paint)
	case geom.Box != nil:
		b.primitive(node, "box", models.NewBox(vec(geom.Box.Size)), paint)
	case geom.Cylinder != nil:
		b.primitive(node, "cylinder", models.NewCylinder(geom.Cylinder.Radius, geom.Cylinder.Length), paint)
	case geom.Sphere != nil:
		b.primitive(node, "sphere", models.NewSphere(geom.Sphere.Radius), paint)
	}
}

func (b *builder) primitive(parent *scene.Node, name string, mesh *models.Mesh, paint func(*scene.Node)) {
	n := scene.NewMeshNode(name, mesh)
	paint(n)
	b.m.Graph.Add(parent, n)
}

func (b *builder) mesh(parent *scene.Node, link, ref string, paint func(*scene.Node)) {
	ld, m := b.ld, b.m
	key := assetdb.Normalize(ref)

	p, err := ld.resolver.Resolve(ref)
	if err != nil {
		m.diagnose(Diagnostic{Link: link, Ref: ref, Key: key, Kind: AssetNotFound, Err: err})
		return
	}

	if dec, ok := ld.decoders.MeshDecoderFor(string(p.Key)); ok {
		mesh, err := decodeMesh(dec, p.Data)
		if err != nil {
			m.diagnose(Diagnostic{Link: link, Ref: ref, Key: p.Key, Kind: DecodeFailure, Err: err})
			return
		}
		n := scene.NewMeshNode(p.Key.Base(), mesh)
		paint(n)
		m.Graph.Add(parent, n)
		m.Graph.IndexMesh(key, n)
		return
	}

	if dec, ok := ld.decoders.SceneDecoderFor(string(p.Key)); ok {
		b.jobs = append(b.jobs, decodeJob{link: link, ref: ref, key: key, data: p.Data, decode: dec, parent: parent})
		return
	}

	m.diagnose(Diagnostic{
		Link: link, Ref: ref, Key: p.Key, Kind: DecodeFailure,
		Err: fmt.Errorf("%w: no decoder for %s payload %q", models.ErrDecode, p.Format, p.Key.Ext()),
	})
}

func vec(v [3]float64) math3d.Vec3 {
	return math3d.V3(v[0], v[1], v[2])
}

func rpy(v urdf.Vec3) math3d.Quat {
	return math3d.QuatFromRPY(v[0], v[1], v[2])
}
