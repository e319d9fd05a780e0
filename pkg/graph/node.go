package graph

// NodeID identifies a node within one loaded graph. IDs are assigned by the
// graph document and are only unique per load.
type NodeID string

// ZeroID is the empty NodeID, used as "unresolved".
const ZeroID NodeID = ""

// IsZero reports whether the ID is empty.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

// Short returns at most the first 8 characters of the ID for display.
func (id NodeID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Output is one value a node exposes after evaluation. The payload is
// engine-defined; the state layer passes it through untouched.
type Output struct {
	Name  string    `json:"name"`
	Type  ValueType `json:"type"`
	Value any       `json:"value,omitempty"`
}

// Node is a graph element as reported by the engine.
type Node struct {
	ID      NodeID   `json:"id"`
	Label   string   `json:"label"`
	Kind    string   `json:"kind"`
	Outputs []Output `json:"outputs"`
}

// Nodes is a node list in engine order.
type Nodes []Node

// ByID returns the node with the given ID.
func (ns Nodes) ByID(id NodeID) (Node, bool) {
	for _, n := range ns {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// ByLabel returns the first node whose label equals label. Labels are not
// unique; ties resolve to engine order.
func (ns Nodes) ByLabel(label string) (Node, bool) {
	for _, n := range ns {
		if n.Label == label {
			return n, true
		}
	}
	return Node{}, false
}

// Contains reports whether a node with the given ID is present.
func (ns Nodes) Contains(id NodeID) bool {
	_, ok := ns.ByID(id)
	return ok
}

// CountLabel returns how many nodes carry the given label.
func (ns Nodes) CountLabel(label string) int {
	count := 0
	for _, n := range ns {
		if n.Label == label {
			count++
		}
	}
	return count
}

// Clone returns a copy of the list whose Outputs slices are not shared
// with the receiver.
func (ns Nodes) Clone() Nodes {
	if ns == nil {
		return nil
	}
	out := make(Nodes, len(ns))
	for i, n := range ns {
		out[i] = n
		if n.Outputs != nil {
			out[i].Outputs = append([]Output(nil), n.Outputs...)
		}
	}
	return out
}
