// Package native is the in-process evaluation engine. It loads node graphs
// in the JSON document format, evaluates them against a geometry kernel and
// keeps the kernel solids of recent passes addressable by identifier.
package native

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chazu/configurator/pkg/engine"
	"github.com/chazu/configurator/pkg/expr"
	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/kernel"
	"github.com/chazu/configurator/pkg/tessellate"
)

// retainedPasses is how many evaluation passes keep their interops
// resolvable. Callers convert geometry right after evaluating, so only the
// most recent few passes matter.
const retainedPasses = 4

// node is a loaded graph node.
type node struct {
	def     nodeDef
	spec    *kindSpec
	props   map[string]graph.PropertyValue
	outputs []graph.Output
}

// Engine is an engine.Handle backed by a kernel.Kernel.
// It is safe for concurrent use; evaluation passes run one at a time.
type Engine struct {
	kern  kernel.Kernel
	exprs *expr.Evaluator

	mu       sync.Mutex
	order    []graph.NodeID
	nodes    map[graph.NodeID]*node
	loaded   bool
	pass     uint64
	interops map[string]kernel.Solid
	history  [][]string
}

var _ engine.Handle = (*Engine)(nil)

// New creates an empty Engine. A nil evaluator selects one with the default
// expression timeout.
func New(k kernel.Kernel, exprs *expr.Evaluator) *Engine {
	if exprs == nil {
		exprs = expr.New(0)
	}
	return &Engine{
		kern:     k,
		exprs:    exprs,
		interops: make(map[string]kernel.Solid),
	}
}

// LoadGraph parses, validates and installs a serialized graph. On error the
// previously loaded graph stays in place.
func (e *Engine) LoadGraph(serialized string) error {
	def, err := parseDefinition(serialized)
	if err != nil {
		return err
	}
	if verrs := validate(def); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return fmt.Errorf("native: invalid graph: %w", errors.Join(errs...))
	}

	order := make([]graph.NodeID, 0, len(def.Nodes))
	nodes := make(map[graph.NodeID]*node, len(def.Nodes))
	for _, nd := range def.Nodes {
		props, err := decodeProperties(nd)
		if err != nil {
			// validate already decoded every property
			return fmt.Errorf("native: node %s: %w", nd.ID, err)
		}
		order = append(order, nd.ID)
		nodes[nd.ID] = &node{def: nd, spec: kinds[nd.Kind], props: props}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = order
	e.nodes = nodes
	e.loaded = true
	e.interops = make(map[string]kernel.Solid)
	e.history = nil
	return nil
}

// Nodes returns the loaded nodes in document order with the outputs of the
// most recent pass.
func (e *Engine) Nodes() []graph.Node {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]graph.Node, 0, len(e.order))
	for _, id := range e.order {
		n := e.nodes[id]
		gn := graph.Node{ID: id, Label: n.def.Label, Kind: n.def.Kind}
		if n.outputs != nil {
			gn.Outputs = append([]graph.Output(nil), n.outputs...)
		}
		out = append(out, gn)
	}
	return out
}

// Evaluate runs one pass over the whole graph. Every visible node that
// produces a shape contributes one geometry identifier, in document order.
func (e *Engine) Evaluate(ctx context.Context) (res *engine.Result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return nil, engine.ErrNoGraph
	}
	if e.kern == nil {
		return nil, errors.New("native: no kernel configured")
	}

	// Kernels may panic on degenerate input; keep that inside the pass.
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("native: panic during evaluation: %v", r)
		}
	}()

	p := &pass{
		ctx:    ctx,
		k:      e.kern,
		exprs:  e.exprs,
		nodes:  e.nodes,
		values: make(map[graph.NodeID]value, len(e.nodes)),
	}
	for _, id := range e.order {
		if _, err := p.eval(id); err != nil {
			return nil, err
		}
	}

	e.pass++
	res = &engine.Result{}
	var ids []string
	for _, id := range e.order {
		n := e.nodes[id]
		v := p.values[id]
		n.outputs = []graph.Output{v.output()}
		if v.kind != valShape || !n.def.Visible {
			continue
		}
		gid := graph.GeometryIdentifier{
			ID:           fmt.Sprintf("%s@%d", id, e.pass),
			GraphNodeSet: &graph.GraphNodeSet{NodeID: id},
			Transform:    v.shape.transform,
		}
		e.interops[gid.ID] = v.shape.solid
		ids = append(ids, gid.ID)
		res.GeometryIdentifiers = append(res.GeometryIdentifiers, gid)
	}
	e.retain(ids)
	return res, nil
}

// retain records the identifiers of a pass and forgets passes that fell out
// of the retention window.
func (e *Engine) retain(ids []string) {
	e.history = append(e.history, ids)
	for len(e.history) > retainedPasses {
		for _, id := range e.history[0] {
			delete(e.interops, id)
		}
		e.history = e.history[1:]
	}
}

// FindGeometryInteropByID returns the kernel solid behind id, or nil if the
// identifier is unknown or has expired.
func (e *Engine) FindGeometryInteropByID(id graph.GeometryIdentifier) kernel.Solid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interops[id.ID]
}

// ChangeNodeProperty replaces one property of a node. The property must be
// one the node's kind accepts, with the matching value type.
func (e *Engine) ChangeNodeProperty(id graph.NodeID, p graph.Property) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return engine.ErrNoGraph
	}
	n, ok := e.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrUnknownNode, id)
	}
	if p.Value == nil {
		return fmt.Errorf("native: node %s: property %q has no value", id, p.Name)
	}
	want, ok := n.spec.props()[p.Name]
	if !ok {
		return fmt.Errorf("native: node %s: kind %s has no property %q", id, n.def.Kind, p.Name)
	}
	if got := p.Value.Type(); got != want {
		return fmt.Errorf("native: node %s: property %q is %s, got %s", id, p.Name, want, got)
	}
	if num, ok := p.Value.(graph.Number); ok {
		if f := float64(num); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("native: node %s: property %q must be finite", id, p.Name)
		}
	}
	n.props[p.Name] = p.Value
	return nil
}

// ---------------------------------------------------------------------------
// Evaluation pass
// ---------------------------------------------------------------------------

// nodeError attributes an evaluation failure to the node that raised it.
type nodeError struct {
	id   graph.NodeID
	kind string
	err  error
}

func (e *nodeError) Error() string {
	return fmt.Sprintf("native: node %s (%s): %v", e.id, e.kind, e.err)
}

func (e *nodeError) Unwrap() error { return e.err }

// pass memoizes node values for one evaluation.
type pass struct {
	ctx    context.Context
	k      kernel.Kernel
	exprs  *expr.Evaluator
	nodes  map[graph.NodeID]*node
	values map[graph.NodeID]value
}

func (p *pass) eval(id graph.NodeID) (value, error) {
	if v, ok := p.values[id]; ok {
		return v, nil
	}
	if err := p.ctx.Err(); err != nil {
		return value{}, err
	}
	n := p.nodes[id]
	v, err := n.spec.eval(p, n)
	if err != nil {
		var ne *nodeError
		if errors.As(err, &ne) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return value{}, err
		}
		return value{}, &nodeError{id: id, kind: n.def.Kind, err: err}
	}
	p.values[id] = v
	return v, nil
}

// input evaluates the node linked to a port.
func (p *pass) input(n *node, name string) (value, bool, error) {
	src, ok := n.def.Inputs[name]
	if !ok {
		return value{}, false, nil
	}
	v, err := p.eval(src)
	return v, true, err
}

// number resolves a numeric port: a linked input, then a same-named Number
// property, then the port default.
func (p *pass) number(n *node, name string) (float64, error) {
	v, linked, err := p.input(n, name)
	if err != nil {
		return 0, err
	}
	if linked {
		if v.kind != valNumber {
			return 0, fmt.Errorf("input %q: expected number, got %s", name, v.kind)
		}
		return v.num, nil
	}
	if num, ok := n.props[name].(graph.Number); ok {
		return float64(num), nil
	}
	if port := n.spec.port(name); port != nil && port.optional {
		return port.def, nil
	}
	return 0, fmt.Errorf("input %q is not set", name)
}

// positives resolves numeric ports that must be strictly positive.
func (p *pass) positives(n *node, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		f, err := p.number(n, name)
		if err != nil {
			return nil, err
		}
		if !(f > 0) {
			return nil, fmt.Errorf("%s must be positive, got %g", name, f)
		}
		out[i] = f
	}
	return out, nil
}

// shape resolves a shape port, which must be linked.
func (p *pass) shape(n *node, name string) (shape, error) {
	v, linked, err := p.input(n, name)
	if err != nil {
		return shape{}, err
	}
	if !linked {
		return shape{}, fmt.Errorf("input %q is not linked", name)
	}
	if v.kind != valShape {
		return shape{}, fmt.Errorf("input %q: expected shape, got %s", name, v.kind)
	}
	return v.shape, nil
}

// shapeAndVector resolves the ports shared by translate and rotate.
func (p *pass) shapeAndVector(n *node) (shape, graph.Vec3, error) {
	s, err := p.shape(n, "shape")
	if err != nil {
		return shape{}, graph.Vec3{}, err
	}
	var vec graph.Vec3
	for _, c := range []struct {
		name string
		dst  *float64
	}{{"x", &vec.X}, {"y", &vec.Y}, {"z", &vec.Z}} {
		if *c.dst, err = p.number(n, c.name); err != nil {
			return shape{}, graph.Vec3{}, err
		}
	}
	return s, vec, nil
}

// operands resolves both boolean inputs with their placement applied.
func (p *pass) operands(n *node) (kernel.Solid, kernel.Solid, error) {
	a, err := p.shape(n, "a")
	if err != nil {
		return nil, nil, err
	}
	b, err := p.shape(n, "b")
	if err != nil {
		return nil, nil, err
	}
	return p.bake(a), p.bake(b), nil
}

// bake applies a shape's transform to its solid.
func (p *pass) bake(s shape) kernel.Solid {
	return tessellate.Place(p.k, s.solid, s.transform)
}
