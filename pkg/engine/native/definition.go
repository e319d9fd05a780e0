package native

import (
	"encoding/json"
	"fmt"

	"github.com/chazu/configurator/pkg/graph"
)

// definition is the serialized graph format the native engine loads.
type definition struct {
	Nodes []nodeDef `json:"nodes"`
}

// nodeDef is one node as written in a graph document.
type nodeDef struct {
	ID         graph.NodeID               `json:"id"`
	Label      string                     `json:"label"`
	Kind       string                     `json:"kind"`
	Visible    bool                       `json:"visible,omitempty"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
	Inputs     map[string]graph.NodeID    `json:"inputs,omitempty"`
}

// parseDefinition decodes a serialized graph.
func parseDefinition(serialized string) (*definition, error) {
	var def definition
	if err := json.Unmarshal([]byte(serialized), &def); err != nil {
		return nil, fmt.Errorf("native: parsing graph: %w", err)
	}
	return &def, nil
}

// decodeProperties converts a node's raw properties into typed values.
func decodeProperties(nd nodeDef) (map[string]graph.PropertyValue, error) {
	props := make(map[string]graph.PropertyValue, len(nd.Properties))
	for name, raw := range nd.Properties {
		v, err := graph.UnmarshalValue(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		props[name] = v
	}
	return props, nil
}
