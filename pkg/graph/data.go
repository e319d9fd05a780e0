package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Document is a serialized graph description. Graph holds the engine's own
// representation and is opaque to everything but the engine.
type Document struct {
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Graph       json.RawMessage `json:"graph"`
}

// ErrNoGraphField is returned when a document lacks a usable "graph" field.
var ErrNoGraphField = errors.New("graph: document has no graph field")

// ParseDocument decodes a graph document and checks that it carries a graph.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("graph: parsing document: %w", err)
	}
	trimmed := bytes.TrimSpace(doc.Graph)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrNoGraphField
	}
	return &doc, nil
}

// Serialized returns the graph in the string form the engine loads. Some
// exporters store the graph as a JSON string instead of an object; both are
// accepted.
func (d *Document) Serialized() string {
	trimmed := bytes.TrimSpace(d.Graph)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
