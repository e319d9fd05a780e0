package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/chazu/configurator/pkg/engine"
	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/kernel"
)

// Graph documents understood by fakeHandle: a plain node list. Nodes of
// kind "shape" produce one geometry identifier per evaluation.
var docs = map[string]string{
	"nozzle": `{"nodes":[
		{"id":"n1","label":"length","kind":"number"},
		{"id":"n2","label":"outerSize","kind":"number"},
		{"id":"n3","label":"tipInnerSize","kind":"number"},
		{"id":"n4","label":"tipOuterSize","kind":"number"},
		{"id":"n5","label":"needleLength","kind":"number"},
		{"id":"in","label":"input","kind":"text"},
		{"id":"s1","label":"body","kind":"shape"},
		{"id":"s2","label":"needle","kind":"shape"}]}`,
	"partial": `{"nodes":[
		{"id":"n1","label":"length","kind":"number"},
		{"id":"n2","label":"outerSize","kind":"number"},
		{"id":"p1","label":"part","kind":"shape"}]}`,
	"dupes": `{"nodes":[
		{"id":"d1","label":"length","kind":"number","outputs":[{"name":"value","type":"Number","value":1}]},
		{"id":"d2","label":"length","kind":"number","outputs":[{"name":"value","type":"Number","value":2}]},
		{"id":"ds","label":"solid","kind":"shape"}]}`,
	"broken": `{"nodes":`,
}

// fakeSource resolves docs, falling back to "nozzle" like the real loader.
type fakeSource struct {
	mu    sync.Mutex
	slugs []string
}

func (f *fakeSource) Load(_ context.Context, slug string) *graph.Document {
	f.mu.Lock()
	f.slugs = append(f.slugs, slug)
	f.mu.Unlock()
	src, ok := docs[slug]
	if !ok {
		src = docs["nozzle"]
	}
	return &graph.Document{Graph: json.RawMessage(src)}
}

type fakeSolid string

func (fakeSolid) BoundingBox() (min, max [3]float64) { return }

type change struct {
	id   graph.NodeID
	prop graph.Property
}

// gate blocks one evaluation call until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

// fakeHandle is an in-memory engine.Handle.
type fakeHandle struct {
	mu        sync.Mutex
	nodes     []graph.Node
	stamp     string
	loads     int
	evals     int
	changes   []change
	interops  map[string]kernel.Solid
	gates     map[int]*gate
	reads     int
	readGates map[int]*gate
	loadErr   error
	changeErr error
	evalErr   error
	evalPanic bool
	noResult  bool
	nullNodes map[graph.NodeID]bool
	extra     []graph.GeometryIdentifier
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		interops:  make(map[string]kernel.Solid),
		gates:     make(map[int]*gate),
		readGates: make(map[int]*gate),
		nullNodes: make(map[graph.NodeID]bool),
	}
}

// blockEval makes the n-th evaluation call wait until release is closed.
func (h *fakeHandle) blockEval(n int) *gate {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	h.gates[n] = g
	return g
}

// blockNodes makes the n-th Nodes call wait until release is closed.
func (h *fakeHandle) blockNodes(n int) *gate {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	h.readGates[n] = g
	return g
}

func (h *fakeHandle) LoadGraph(serialized string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loads++
	if h.loadErr != nil {
		return h.loadErr
	}
	var def struct {
		Nodes []graph.Node `json:"nodes"`
	}
	if err := json.Unmarshal([]byte(serialized), &def); err != nil {
		return err
	}
	h.nodes = def.Nodes
	h.stamp = "init"
	return nil
}

func (h *fakeHandle) Nodes() []graph.Node {
	h.mu.Lock()
	h.reads++
	g := h.readGates[h.reads]
	h.mu.Unlock()

	if g != nil {
		close(g.entered)
		<-g.release
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return graph.Nodes(h.nodes).Clone()
}

func (h *fakeHandle) Evaluate(ctx context.Context) (*engine.Result, error) {
	h.mu.Lock()
	h.evals++
	g := h.gates[h.evals]
	stamp := h.stamp
	nodes := graph.Nodes(h.nodes).Clone()
	h.mu.Unlock()

	if g != nil {
		close(g.entered)
		<-g.release
	}

	h.mu.Lock()
	err, crash, noResult := h.evalErr, h.evalPanic, h.noResult
	h.mu.Unlock()
	if crash {
		panic("engine crashed")
	}
	if err != nil {
		return nil, err
	}
	if noResult {
		return &engine.Result{}, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	res := &engine.Result{}
	for _, n := range nodes {
		if n.Kind != "shape" {
			continue
		}
		gid := graph.GeometryIdentifier{
			ID:           string(n.ID) + "#" + stamp,
			GraphNodeSet: &graph.GraphNodeSet{NodeID: n.ID},
		}
		if !h.nullNodes[n.ID] {
			h.interops[gid.ID] = fakeSolid(gid.ID)
		}
		res.GeometryIdentifiers = append(res.GeometryIdentifiers, gid)
	}
	res.GeometryIdentifiers = append(res.GeometryIdentifiers, h.extra...)
	return res, nil
}

func (h *fakeHandle) FindGeometryInteropByID(id graph.GeometryIdentifier) kernel.Solid {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interops[id.ID]
}

func (h *fakeHandle) ChangeNodeProperty(id graph.NodeID, p graph.Property) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.changeErr != nil {
		return h.changeErr
	}
	h.changes = append(h.changes, change{id: id, prop: p})
	h.stamp = p.String()
	return nil
}

func (h *fakeHandle) counts() (loads, evals, changes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loads, h.evals, len(h.changes)
}

func (h *fakeHandle) set(fn func(h *fakeHandle)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h)
}

// fakeRuntime hands out one fakeHandle.
type fakeRuntime struct {
	handle    *fakeHandle
	initErr   error
	handleErr error
	inits     int
}

func (r *fakeRuntime) Init(context.Context) error {
	r.inits++
	return r.initErr
}

func (r *fakeRuntime) NewHandle() (engine.Handle, error) {
	if r.handleErr != nil {
		return nil, r.handleErr
	}
	if r.handle == nil {
		return nil, nil
	}
	return r.handle, nil
}

// fakeAdapter turns a fakeSolid into a one-vertex mesh at the transform's
// translation.
type fakeAdapter struct {
	mu    sync.Mutex
	err   error
	empty map[string]bool
	calls int
}

func (a *fakeAdapter) Convert(s kernel.Solid, t graph.Transform) (*kernel.Mesh, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	name, ok := s.(fakeSolid)
	if !ok {
		return nil, errors.New("not a fake solid")
	}
	if a.empty[string(name)] {
		return nil, nil
	}
	v := t.Translation
	return &kernel.Mesh{
		Vertices: []float32{float32(v.X), float32(v.Y), float32(v.Z)},
		Normals:  []float32{0, 0, 1},
	}, nil
}
