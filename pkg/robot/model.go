package robot

import (
	"context"

	"go.uber.org/zap"

	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/scene"
	"github.com/taigrr/urdfview/pkg/urdf"
)

// Model is a loaded robot. Its graph, like every method here, belongs to
// the goroutine that called Load.
type Model struct {
	Graph *scene.Graph
	Robot *urdf.Robot

	diags   []Diagnostic
	pending int
	results chan decodeResult
	alive   bool
	cancel  context.CancelFunc
	log     *zap.Logger
}

func (m *Model) diagnose(d Diagnostic) {
	m.diags = append(m.diags, d)
	m.log.Warn("mesh left unattached",
		zap.String("link", d.Link),
		zap.String("ref", d.Ref),
		zap.String("key", string(d.Key)),
		zap.Stringer("kind", d.Kind),
		zap.Error(d.Err),
	)
}

// Diagnostics returns the per-asset problems seen so far.
func (m *Model) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), m.diags...)
}

// Pending returns the number of scene decodes not yet attached.
func (m *Model) Pending() int { return m.pending }

// Attach splices every finished scene decode into the graph without
// blocking and returns how many results it consumed.
func (m *Model) Attach() int {
	n := 0
	for m.pending > 0 {
		select {
		case r := <-m.results:
			m.attach(r)
			n++
		default:
			return n
		}
	}
	return n
}

// Wait attaches results until none are pending or ctx ends.
func (m *Model) Wait(ctx context.Context) error {
	for m.pending > 0 {
		select {
		case r := <-m.results:
			m.attach(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Model) attach(r decodeResult) {
	m.pending--
	if !m.alive {
		return
	}
	job := r.job
	if r.err != nil {
		m.diagnose(Diagnostic{Link: job.link, Ref: job.ref, Key: job.key, Kind: DecodeFailure, Err: r.err})
		return
	}

	g := m.Graph
	name := r.scene.Name
	if name == "" {
		name = job.key.Base()
	}
	group := scene.NewNode(name, scene.KindGroup)
	for _, part := range r.scene.Parts {
		part.Mesh.Transform(part.Transform)
		n := scene.NewMeshNode(part.Name, part.Mesh)
		g.Add(group, n)
		g.IndexMesh(job.key, n)
	}
	g.Add(job.parent, group)

	// Keep late geometry inside the load-time pose if one was taken
	if meta, ok := g.LookupMeta(job.parent); ok && meta.Pose != nil {
		g.SnapshotPose(group)
	}
	m.log.Debug("scene attached",
		zap.String("link", job.link),
		zap.String("key", string(job.key)),
		zap.Int("parts", len(r.scene.Parts)),
	)
}

// Close marks the model dead. Decodes still running are cancelled and any
// result that arrives later is discarded.
func (m *Model) Close() {
	m.alive = false
	if m.cancel != nil {
		m.cancel()
	}
}

// Alive reports whether Close has not been called.
func (m *Model) Alive() bool { return m.alive }

// Isolate shows only the mesh nodes decoded from ref. It returns false,
// changing nothing, when ref produced no meshes.
func (m *Model) Isolate(ref string) bool {
	key := assetdb.Normalize(ref)
	keep, ok := m.Graph.MeshIndex[key]
	if !ok || len(keep) == 0 {
		return false
	}
	show := make(map[*scene.Node]bool, len(keep))
	for _, n := range keep {
		show[n] = true
	}
	for _, n := range m.Graph.MeshNodes() {
		n.Visible = show[n]
	}
	return true
}

// ShowAll makes every mesh node visible again.
func (m *Model) ShowAll() {
	for _, n := range m.Graph.MeshNodes() {
		n.Visible = true
	}
}
