// Package state holds the parametric graph session: the engine handle, the
// loaded node list, the semantic parameter index and the geometry set
// produced by the most recent evaluation.
//
// Every evaluation takes a monotonically increasing ticket. Engine and
// conversion work runs without holding the state lock, and a pass publishes
// only if no newer pass or load started in the meantime. The node list and
// geometry set a reader sees therefore always come from the same graph.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chazu/configurator/pkg/engine"
	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/kernel"
	"github.com/chazu/configurator/pkg/logging"
)

// DocumentSource resolves graph documents by slug. It never fails.
type DocumentSource interface {
	Load(ctx context.Context, slug string) *graph.Document
}

// Adapter turns kernel-native geometry into a renderable mesh. A nil mesh
// with a nil error means there is nothing to draw.
type Adapter interface {
	Convert(s kernel.Solid, t graph.Transform) (*kernel.Mesh, error)
}

// AdapterFunc adapts a plain function to Adapter.
type AdapterFunc func(s kernel.Solid, t graph.Transform) (*kernel.Mesh, error)

// Convert calls f(s, t).
func (f AdapterFunc) Convert(s kernel.Solid, t graph.Transform) (*kernel.Mesh, error) {
	return f(s, t)
}

// GeometryWithID is one published piece of geometry.
type GeometryWithID struct {
	ID       graph.GeometryIdentifier `json:"id"`
	Geometry *kernel.Mesh             `json:"geometry"`
	Label    string                   `json:"label"`
}

// NodeProperty is the result of a label query.
type NodeProperty struct {
	ID      graph.NodeID   `json:"id"`
	Outputs []graph.Output `json:"outputs"`
}

// Snapshot is a consistent view of the published state. Status and Error
// describe the pass that published it; a failed pass publishes an empty
// geometry set.
type Snapshot struct {
	Generation  uint64           `json:"generation"`
	Slug        string           `json:"slug"`
	Nodes       graph.Nodes      `json:"nodes"`
	Geometries  []GeometryWithID `json:"geometries"`
	Parameters  ParameterIndex   `json:"parameters"`
	InputNodeID graph.NodeID     `json:"inputNodeId"`
	Status      Status           `json:"status"`
	Error       string           `json:"error,omitempty"`
}

// Outcome returns the result of the pass that published s.
func (s Snapshot) Outcome() Result {
	res := Result{Status: s.Status, Generation: s.Generation}
	if s.Error != "" {
		res.Err = errors.New(s.Error)
	}
	return res
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger. Without it, the logger carried by each
// operation's context is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *State) {
		s.logger = logger
	}
}

// WithPublishHook registers fn to receive every published snapshot. Calls
// are serialized and never go backwards in generation.
func WithPublishHook(fn func(Snapshot)) Option {
	return func(s *State) {
		s.hook = fn
	}
}

// State is one parametric graph session. It is safe for concurrent use.
type State struct {
	runtime engine.Runtime
	source  DocumentSource
	adapter Adapter
	logger  *slog.Logger
	hook    func(Snapshot)

	// opMu serializes Initialize, the load step of LoadGraph, the submit
	// step of UpdateNodeProperty and the publish step of an evaluation, so
	// that node-ID checks, engine calls and node read-backs see the same
	// graph.
	opMu sync.Mutex

	mu        sync.Mutex
	handle    engine.Handle
	loaded    bool
	slug      string
	nodes     graph.Nodes
	params    ParameterIndex
	inputID   graph.NodeID
	geoms     []GeometryWithID
	status    Status
	lastErr   string
	ticket    uint64 // last ticket handed out
	published uint64 // ticket of the published geometry set

	hookMu  sync.Mutex
	hookGen uint64
}

// New creates a State. Initialize must succeed before anything else does.
func New(runtime engine.Runtime, source DocumentSource, adapter Adapter, opts ...Option) *State {
	s := &State{
		runtime: runtime,
		source:  source,
		adapter: adapter,
		params:  ParameterIndex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *State) log(ctx context.Context) *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.FromContext(ctx)
}

// Initialize bootstraps the engine runtime and creates the engine handle.
// Once it has succeeded, further calls do nothing.
func (s *State) Initialize(ctx context.Context) Result {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	ready := s.handle != nil
	s.mu.Unlock()
	if ready {
		return Result{Status: StatusOK}
	}

	h, err := guard(func() (engine.Handle, error) {
		if err := s.runtime.Init(ctx); err != nil {
			return nil, err
		}
		return s.runtime.NewHandle()
	})
	if err == nil && h == nil {
		err = errNoHandle
	}
	if err != nil {
		err = fmt.Errorf("state: initialize: %w", err)
		s.log(ctx).Error("engine initialization failed", "err", err)
		return failed(err)
	}

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
	s.log(ctx).Debug("engine initialized")
	return Result{Status: StatusOK}
}

// Close drops the engine handle. Later operations are skipped.
func (s *State) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = nil
}

func (s *State) currentHandle(ctx context.Context, op string, attrs ...any) (engine.Handle, bool) {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		s.log(ctx).Warn(op+" skipped: engine not initialized", attrs...)
		return nil, false
	}
	return h, true
}

// LoadGraph loads the document for slug into the engine, replaces the node
// list and parameter index, and evaluates. If the engine rejects the
// graph, the previous nodes and geometry stay published.
func (s *State) LoadGraph(ctx context.Context, slug string) Result {
	h, ok := s.currentHandle(ctx, "load", "slug", slug)
	if !ok {
		return skipped(ErrNotInitialized)
	}
	logger := s.log(ctx).With("slug", slug)

	s.opMu.Lock()
	doc := s.source.Load(ctx, slug)
	nodes, err := guard(func() (graph.Nodes, error) {
		if err := h.LoadGraph(doc.Serialized()); err != nil {
			return nil, err
		}
		return graph.Nodes(h.Nodes()).Clone(), nil
	})
	if err != nil {
		s.opMu.Unlock()
		err = fmt.Errorf("state: loading graph %q: %w", slug, err)
		logger.Error("graph load failed", "err", err)
		return failed(err)
	}
	params, input := resolveParameters(nodes, logger)

	s.mu.Lock()
	s.ticket++
	s.loaded = true
	s.slug = slug
	s.nodes = nodes
	s.params = params
	s.inputID = input
	s.geoms = nil
	s.status, s.lastErr = StatusOK, ""
	s.published = s.ticket
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.opMu.Unlock()

	logger.Info("graph loaded", "nodes", len(nodes), "parameters", len(params), "generation", snap.Generation)
	s.notify(snap)
	return s.evaluate(ctx, h)
}

// Evaluate runs the engine over the loaded graph and replaces the geometry
// set with the result. A failed pass clears the geometry set.
func (s *State) Evaluate(ctx context.Context) Result {
	h, ok := s.currentHandle(ctx, "evaluate")
	if !ok {
		return skipped(ErrNotInitialized)
	}
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		s.log(ctx).Warn("evaluate skipped: no graph loaded")
		return skipped(ErrNoGraph)
	}
	return s.evaluate(ctx, h)
}

func (s *State) evaluate(ctx context.Context, h engine.Handle) Result {
	s.mu.Lock()
	s.ticket++
	ticket := s.ticket
	nodes := s.nodes
	s.mu.Unlock()

	logger := s.log(ctx).With("generation", ticket)
	geoms, err := s.pass(ctx, h, nodes)

	// A load holds opMu from the engine switch until its commit bumps the
	// ticket, so under opMu the engine's node list belongs to the graph
	// this ticket was taken against.
	s.opMu.Lock()
	var refreshed graph.Nodes
	if err == nil {
		refreshed, err = guard(func() (graph.Nodes, error) {
			return graph.Nodes(h.Nodes()).Clone(), nil
		})
	}
	s.mu.Lock()
	if ticket != s.ticket {
		latest := s.ticket
		s.mu.Unlock()
		s.opMu.Unlock()
		logger.Debug("evaluation superseded, result discarded", "latest", latest, "err", err)
		return Result{Status: StatusSuperseded, Err: ErrSuperseded, Generation: ticket}
	}
	if err != nil {
		s.geoms = nil
		s.status, s.lastErr = StatusFailed, err.Error()
	} else {
		s.geoms = geoms
		s.nodes = refreshed
		s.status, s.lastErr = StatusOK, ""
	}
	s.published = ticket
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.opMu.Unlock()

	s.notify(snap)
	if err != nil {
		logger.Error("evaluation failed, geometry cleared", "err", err)
		return Result{Status: StatusFailed, Err: err, Generation: ticket}
	}
	logger.Debug("evaluation published", "geometries", len(geoms))
	return Result{Status: StatusOK, Generation: ticket}
}

// pass runs one evaluation and converts its geometry. nodes is the node
// list captured when the pass started; labels come from it.
func (s *State) pass(ctx context.Context, h engine.Handle, nodes graph.Nodes) (geoms []GeometryWithID, err error) {
	defer func() {
		if r := recover(); r != nil {
			geoms, err = nil, fmt.Errorf("state: panic during evaluation: %v", r)
		}
	}()

	res, err := h.Evaluate(ctx)
	if err != nil {
		return nil, fmt.Errorf("state: evaluate: %w", err)
	}
	var ids []graph.GeometryIdentifier
	if res != nil {
		ids = res.GeometryIdentifiers
	}

	geoms = make([]GeometryWithID, 0, len(ids))
	for _, gid := range ids {
		interop := h.FindGeometryInteropByID(gid)
		if interop == nil {
			continue
		}
		mesh, err := s.adapter.Convert(interop, gid.Transform)
		if err != nil {
			return nil, fmt.Errorf("state: converting geometry %s: %w", gid.ID, err)
		}
		if mesh == nil {
			continue
		}
		var label string
		if id, ok := gid.NodeID(); ok {
			if n, ok := nodes.ByID(id); ok {
				label = n.Label
			}
		}
		geoms = append(geoms, GeometryWithID{ID: gid, Geometry: mesh, Label: label})
	}
	return geoms, nil
}

// UpdateNodeProperty submits v to node id and re-evaluates. Text is sent as
// the String property "content", numbers as the Number property "value".
// Unknown nodes and rejected changes do not touch the geometry set.
func (s *State) UpdateNodeProperty(ctx context.Context, id graph.NodeID, v graph.PropertyValue) Result {
	h, ok := s.currentHandle(ctx, "update", "node", id)
	if !ok {
		return skipped(ErrNotInitialized)
	}
	logger := s.log(ctx).With("node", id)
	if v == nil {
		err := fmt.Errorf("state: node %s: no value", id)
		logger.Warn("property update rejected", "err", err)
		return failed(err)
	}
	prop := graph.NewProperty(v)

	s.opMu.Lock()
	s.mu.Lock()
	known := s.nodes.Contains(id)
	s.mu.Unlock()
	if !known {
		s.opMu.Unlock()
		logger.Warn("property update for unknown node ignored")
		return failed(fmt.Errorf("%w: %s", ErrUnknownNode, id))
	}
	_, err := guard(func() (struct{}, error) {
		return struct{}{}, h.ChangeNodeProperty(id, prop)
	})
	s.opMu.Unlock()
	if err != nil {
		err = fmt.Errorf("state: changing %s on node %s: %w", prop, id, err)
		logger.Error("property update failed", "err", err)
		return failed(err)
	}

	logger.Debug("property updated", "property", prop.String())
	return s.evaluate(ctx, h)
}

// SetNumber is UpdateNodeProperty with a Number value.
func (s *State) SetNumber(ctx context.Context, id graph.NodeID, f float64) Result {
	return s.UpdateNodeProperty(ctx, id, graph.Number(f))
}

// SetText is UpdateNodeProperty with a Text value.
func (s *State) SetText(ctx context.Context, id graph.NodeID, text string) Result {
	return s.UpdateNodeProperty(ctx, id, graph.Text(text))
}

// SetParameter updates the node carrying role r, including RoleInput.
func (s *State) SetParameter(ctx context.Context, r Role, v graph.PropertyValue) Result {
	s.mu.Lock()
	id, ok := s.params.Get(r)
	if r == RoleInput {
		id, ok = s.inputID, !s.inputID.IsZero()
	}
	s.mu.Unlock()
	if !ok {
		err := fmt.Errorf("%w: role %q is not resolved", ErrUnknownNode, r)
		s.log(ctx).Warn("parameter update ignored", "role", string(r), "err", err)
		return failed(err)
	}
	return s.UpdateNodeProperty(ctx, id, v)
}

// GetNodeProperty returns the ID and outputs of the first node labeled
// label, in engine order.
func (s *State) GetNodeProperty(label string) (NodeProperty, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes.ByLabel(label)
	if !ok {
		return NodeProperty{}, false
	}
	return NodeProperty{ID: n.ID, Outputs: append([]graph.Output(nil), n.Outputs...)}, true
}

// Snapshot returns the published state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Generation:  s.published,
		Slug:        s.slug,
		Nodes:       s.nodes.Clone(),
		Geometries:  append([]GeometryWithID(nil), s.geoms...),
		Parameters:  s.params.Clone(),
		InputNodeID: s.inputID,
		Status:      s.status,
		Error:       s.lastErr,
	}
}

// Nodes returns the current node list.
func (s *State) Nodes() graph.Nodes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes.Clone()
}

// Geometries returns the published geometry set.
func (s *State) Geometries() []GeometryWithID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GeometryWithID(nil), s.geoms...)
}

// Parameters returns the semantic parameter index of the loaded graph.
func (s *State) Parameters() ParameterIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.Clone()
}

// InputNodeID returns the node labeled "input", if any.
func (s *State) InputNodeID() graph.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputID
}

// Slug returns the slug of the loaded graph.
func (s *State) Slug() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slug
}

func (s *State) notify(snap Snapshot) {
	if s.hook == nil {
		return
	}
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if snap.Generation < s.hookGen {
		return
	}
	s.hookGen = snap.Generation
	s.hook(snap)
}

// guard runs fn and turns a panic into an error.
func guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
