// Package tessellate converts kernel solids into renderable triangle meshes.
// It is the bridge between the engine's kernel-native geometry and the mesh
// format the UI draws.
package tessellate

import (
	"errors"
	"fmt"

	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/kernel"
)

// ErrNoKernel is returned when a Tessellator has no kernel to mesh with.
var ErrNoKernel = errors.New("tessellate: no kernel")

// Tessellator places solids and meshes them with one kernel.
// It is safe for concurrent use if the kernel is.
type Tessellator struct {
	k kernel.Kernel
}

// New creates a Tessellator backed by k.
func New(k kernel.Kernel) *Tessellator {
	return &Tessellator{k: k}
}

// Convert applies t to s and meshes the result. A nil solid or a mesh with
// no triangles yields a nil mesh and no error.
func (ts *Tessellator) Convert(s kernel.Solid, t graph.Transform) (*kernel.Mesh, error) {
	if s == nil {
		return nil, nil
	}
	if ts.k == nil {
		return nil, ErrNoKernel
	}

	mesh, err := ts.k.ToMesh(Place(ts.k, s, t))
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed: %w", err)
	}
	if mesh.IsEmpty() {
		return nil, nil
	}
	return mesh, nil
}

// Place applies t to s: accumulated rotation first, then translation.
// Identity components are skipped so untransformed solids reach the kernel
// unchanged.
func Place(k kernel.Kernel, s kernel.Solid, t graph.Transform) kernel.Solid {
	if rot := t.Rotation; !rot.IsZero() {
		s = k.Rotate(s, rot.X, rot.Y, rot.Z)
	}
	if trans := t.Translation; !trans.IsZero() {
		s = k.Translate(s, trans.X, trans.Y, trans.Z)
	}
	return s
}
