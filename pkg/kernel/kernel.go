// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx, manifold) provide solid modeling and meshing
// behind this interface so the engine can swap backends freely.
package kernel

// Solid is an opaque handle to a geometry kernel solid. It is the
// kernel-native "interop" geometry the engine hands out before conversion
// into a renderable mesh.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives. Cylinders and cones are centered on the origin along Z.
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid
	Cone(height, bottomRadius, topRadius float64, segments int) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
