package native

import (
	"fmt"
	"sort"

	"github.com/chazu/configurator/pkg/graph"
)

// ValidationError describes a single reason the engine rejected a graph.
type ValidationError struct {
	NodeID  graph.NodeID // which node has the problem (zero if graph-level)
	Message string
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return e.Message
	}
	return fmt.Sprintf("node %s: %s", e.NodeID, e.Message)
}

// validate runs the structural checks on a parsed definition and returns
// every finding. An empty slice means the graph can be loaded. It is
// read-only.
func validate(def *definition) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateIDs(def)...)
	if len(errs) > 0 {
		// Reference and cycle checks are meaningless with ambiguous IDs.
		return errs
	}
	errs = append(errs, validateKinds(def)...)
	errs = append(errs, validateReferences(def)...)
	if len(errs) > 0 {
		return errs
	}
	errs = append(errs, validateDAG(def)...)
	return errs
}

// validateIDs checks that every node has a non-empty, unique ID.
func validateIDs(def *definition) []ValidationError {
	var errs []ValidationError
	seen := make(map[graph.NodeID]bool, len(def.Nodes))
	for i, nd := range def.Nodes {
		if nd.ID.IsZero() {
			errs = append(errs, ValidationError{
				Message: fmt.Sprintf("node at index %d has no id", i),
			})
			continue
		}
		if seen[nd.ID] {
			errs = append(errs, ValidationError{
				NodeID:  nd.ID,
				Message: "duplicate node id",
			})
		}
		seen[nd.ID] = true
	}
	return errs
}

// validateKinds checks node kinds, port names and property types.
func validateKinds(def *definition) []ValidationError {
	var errs []ValidationError
	for _, nd := range def.Nodes {
		spec, ok := kinds[nd.Kind]
		if !ok {
			errs = append(errs, ValidationError{
				NodeID:  nd.ID,
				Message: fmt.Sprintf("unknown kind %q", nd.Kind),
			})
			continue
		}
		for _, port := range sortedKeys(nd.Inputs) {
			if !spec.variadic && spec.port(port) == nil {
				errs = append(errs, ValidationError{
					NodeID:  nd.ID,
					Message: fmt.Sprintf("kind %s has no input %q", nd.Kind, port),
				})
			}
		}
		props, err := decodeProperties(nd)
		if err != nil {
			errs = append(errs, ValidationError{NodeID: nd.ID, Message: err.Error()})
			continue
		}
		for _, name := range sortedKeys(props) {
			want, ok := spec.props()[name]
			if !ok {
				errs = append(errs, ValidationError{
					NodeID:  nd.ID,
					Message: fmt.Sprintf("kind %s has no property %q", nd.Kind, name),
				})
				continue
			}
			if got := props[name].Type(); got != want {
				errs = append(errs, ValidationError{
					NodeID:  nd.ID,
					Message: fmt.Sprintf("property %q is %s, want %s", name, got, want),
				})
			}
		}
	}
	return errs
}

// validateReferences checks that every input points at a node that exists.
func validateReferences(def *definition) []ValidationError {
	ids := make(map[graph.NodeID]bool, len(def.Nodes))
	for _, nd := range def.Nodes {
		ids[nd.ID] = true
	}

	var errs []ValidationError
	for _, nd := range def.Nodes {
		for _, port := range sortedKeys(nd.Inputs) {
			src := nd.Inputs[port]
			if !ids[src] {
				errs = append(errs, ValidationError{
					NodeID:  nd.ID,
					Message: fmt.Sprintf("input %q references missing node %q", port, src),
				})
			}
		}
	}
	return errs
}

// validateDAG checks that input links form a directed acyclic graph.
// It uses a DFS with three-color marking (white/gray/black).
// If we encounter a gray node during traversal, we have found a cycle.
func validateDAG(def *definition) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	byID := make(map[graph.NodeID]nodeDef, len(def.Nodes))
	for _, nd := range def.Nodes {
		byID[nd.ID] = nd
	}

	color := make(map[graph.NodeID]int) // default zero = white
	var errs []ValidationError

	var visit func(id graph.NodeID) bool // returns true if cycle found
	visit = func(id graph.NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:  id,
				Message: fmt.Sprintf("cycle detected: node %s is part of a cycle", id),
			})
			return true
		}

		color[id] = gray
		nd := byID[id]
		for _, port := range sortedKeys(nd.Inputs) {
			if visit(nd.Inputs[port]) {
				return true
			}
		}
		color[id] = black
		return false
	}

	// Start from every node in document order to catch disconnected components.
	for _, nd := range def.Nodes {
		if color[nd.ID] == white {
			if visit(nd.ID) {
				// One cycle error is sufficient; stop early.
				break
			}
		}
	}

	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
