package state

import (
	"log/slog"

	"github.com/chazu/configurator/pkg/graph"
)

// Role is a recognized semantic label. A node whose label equals a role
// name carries that parameter.
type Role string

const (
	RoleLength       Role = "length"
	RoleOuterSize    Role = "outerSize"
	RoleTipInnerSize Role = "tipInnerSize"
	RoleTipOuterSize Role = "tipOuterSize"
	RoleNeedleLength Role = "needleLength"

	// RoleInput is resolved like the parameters but published separately.
	RoleInput Role = "input"
)

// ParameterRoles lists the parameter roles in display order.
var ParameterRoles = []Role{
	RoleLength,
	RoleOuterSize,
	RoleTipInnerSize,
	RoleTipOuterSize,
	RoleNeedleLength,
}

// ParameterIndex maps resolved roles to node IDs. Unresolved roles have no
// entry.
type ParameterIndex map[Role]graph.NodeID

// Get returns the node carrying role r.
func (p ParameterIndex) Get(r Role) (graph.NodeID, bool) {
	id, ok := p[r]
	return id, ok && !id.IsZero()
}

// Clone returns an independent copy.
func (p ParameterIndex) Clone() ParameterIndex {
	out := make(ParameterIndex, len(p))
	for r, id := range p {
		out[r] = id
	}
	return out
}

// resolveParameters scans nodes for every recognized role. The first node
// in engine order wins; duplicates are logged.
func resolveParameters(nodes graph.Nodes, logger *slog.Logger) (ParameterIndex, graph.NodeID) {
	params := make(ParameterIndex, len(ParameterRoles))
	for _, r := range ParameterRoles {
		if id, ok := resolveRole(nodes, r, logger); ok {
			params[r] = id
		}
	}
	input, _ := resolveRole(nodes, RoleInput, logger)
	return params, input
}

func resolveRole(nodes graph.Nodes, r Role, logger *slog.Logger) (graph.NodeID, bool) {
	n, ok := nodes.ByLabel(string(r))
	if !ok {
		return graph.ZeroID, false
	}
	if count := nodes.CountLabel(string(r)); count > 1 {
		logger.Warn("duplicate semantic label, using first node", "role", string(r), "node", n.ID, "count", count)
	}
	return n.ID, true
}
