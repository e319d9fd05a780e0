// Package engine defines the contract between the state layer and a
// geometry evaluation engine. The engine owns the loaded graph: it stores
// nodes, applies property changes, evaluates, and hands out kernel-native
// geometry for each evaluation pass.
package engine

import (
	"context"
	"errors"

	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/kernel"
)

// ErrNoGraph is returned by engines asked to evaluate before a graph has
// been loaded.
var ErrNoGraph = errors.New("engine: no graph loaded")

// ErrUnknownNode is returned when a property change addresses a node the
// loaded graph does not contain.
var ErrUnknownNode = errors.New("engine: unknown node")

// Result is the output of one evaluation pass. A nil GeometryIdentifiers
// slice is equivalent to an empty one.
type Result struct {
	GeometryIdentifiers []graph.GeometryIdentifier
}

// Handle is one live engine instance.
//
// Implementations must be safe for concurrent use, and LoadGraph must leave
// the previously loaded graph intact when it returns an error.
type Handle interface {
	// LoadGraph replaces the engine's graph with the serialized form.
	LoadGraph(serialized string) error

	// Nodes returns the full node list in engine order.
	Nodes() []graph.Node

	// Evaluate runs one evaluation pass over the current graph.
	Evaluate(ctx context.Context) (*Result, error)

	// FindGeometryInteropByID returns the kernel-native geometry for an
	// identifier from a recent pass, or nil if it is unknown.
	FindGeometryInteropByID(id graph.GeometryIdentifier) kernel.Solid

	// ChangeNodeProperty submits a property change to the node with the
	// given ID.
	ChangeNodeProperty(id graph.NodeID, p graph.Property) error
}

// Runtime bootstraps an engine and creates handles.
type Runtime interface {
	// Init performs one-time bootstrap. It is called once before NewHandle.
	Init(ctx context.Context) error

	// NewHandle constructs a fresh, empty engine instance.
	NewHandle() (Handle, error)
}
