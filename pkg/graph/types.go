package graph

// Vec3 is a 3D vector in millimetres (or degrees, for rotations).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Transform places a geometry in world space. Rotation (Euler angles in
// degrees, applied X then Y then Z) is applied before Translation.
type Transform struct {
	Translation Vec3 `json:"translation"`
	Rotation    Vec3 `json:"rotation"`
}

// Identity is the transform that leaves geometry where it is.
var Identity = Transform{}

// IsIdentity reports whether t is the identity transform.
func (t Transform) IsIdentity() bool {
	return t.Translation.IsZero() && t.Rotation.IsZero()
}

// Then returns the transform that applies t and then o. Components are
// accumulated the same way nested placements accumulate: rotations and
// translations are summed.
func (t Transform) Then(o Transform) Transform {
	return Transform{
		Translation: t.Translation.Add(o.Translation),
		Rotation:    t.Rotation.Add(o.Rotation),
	}
}

// GraphNodeSet links a geometry back to the node that produced it.
type GraphNodeSet struct {
	NodeID NodeID `json:"nodeId"`
}

// GeometryIdentifier is an evaluation-scoped handle to a piece of output
// geometry. It is not stable across evaluations.
type GeometryIdentifier struct {
	ID           string        `json:"id"`
	GraphNodeSet *GraphNodeSet `json:"graphNodeSet,omitempty"`
	Transform    Transform     `json:"transform"`
}

// NodeID returns the originating node, if the identifier carries one.
func (g GeometryIdentifier) NodeID() (NodeID, bool) {
	if g.GraphNodeSet == nil || g.GraphNodeSet.NodeID.IsZero() {
		return ZeroID, false
	}
	return g.GraphNodeSet.NodeID, true
}
