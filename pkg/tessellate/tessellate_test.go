package tessellate_test

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/kernel"
	"github.com/chazu/configurator/pkg/kernel/sdfx"
	"github.com/chazu/configurator/pkg/tessellate"
)

// newKernel returns a coarse sdfx kernel so tests stay fast.
func newKernel() kernel.Kernel {
	return sdfx.New(sdfx.WithMeshCells(32))
}

// recordingKernel records transform calls and returns canned meshes.
type recordingKernel struct {
	calls []string
	mesh  *kernel.Mesh
	err   error
}

type nopSolid struct{}

func (nopSolid) BoundingBox() (min, max [3]float64) { return }

func (k *recordingKernel) Box(x, y, z float64) kernel.Solid { return nopSolid{} }
func (k *recordingKernel) Cylinder(h, r float64, _ int) kernel.Solid { return nopSolid{} }
func (k *recordingKernel) Cone(h, r0, r1 float64, _ int) kernel.Solid { return nopSolid{} }
func (k *recordingKernel) Union(a, _ kernel.Solid) kernel.Solid { return a }
func (k *recordingKernel) Difference(a, _ kernel.Solid) kernel.Solid { return a }
func (k *recordingKernel) Intersection(a, _ kernel.Solid) kernel.Solid { return a }
func (k *recordingKernel) ToMesh(kernel.Solid) (*kernel.Mesh, error) { return k.mesh, k.err }

func (k *recordingKernel) Translate(s kernel.Solid, _, _, _ float64) kernel.Solid {
	k.calls = append(k.calls, "translate")
	return s
}

func (k *recordingKernel) Rotate(s kernel.Solid, _, _, _ float64) kernel.Solid {
	k.calls = append(k.calls, "rotate")
	return s
}

func TestConvertBox(t *testing.T) {
	k := newKernel()
	ts := tessellate.New(k)

	mesh, err := ts.Convert(k.Box(10, 10, 10), graph.Identity)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if mesh == nil || mesh.TriangleCount() == 0 {
		t.Fatal("expected a non-empty mesh")
	}
	min, max := mesh.Bounds()
	const tol = 0.5
	for axis := 0; axis < 3; axis++ {
		if math.Abs(float64(min[axis])+5) > tol || math.Abs(float64(max[axis])-5) > tol {
			t.Errorf("axis %d bounds = [%f, %f], want about [-5, 5]", axis, min[axis], max[axis])
		}
	}
}

func TestConvertAppliesTranslation(t *testing.T) {
	k := newKernel()
	ts := tessellate.New(k)

	tr := graph.Transform{Translation: graph.Vec3{X: 100}}
	mesh, err := ts.Convert(k.Box(10, 10, 10), tr)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	min, max := mesh.Bounds()
	if min[0] < 94 || max[0] > 106 {
		t.Errorf("X bounds = [%f, %f], want about [95, 105]", min[0], max[0])
	}
}

func TestConvertAppliesRotation(t *testing.T) {
	k := newKernel()
	ts := tessellate.New(k)

	// A tall box rotated 90 degrees about X lies along Y.
	tr := graph.Transform{Rotation: graph.Vec3{X: 90}}
	mesh, err := ts.Convert(k.Box(4, 4, 40), tr)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	min, max := mesh.Bounds()
	if dy := max[1] - min[1]; dy < 35 {
		t.Errorf("Y extent = %f, want about 40", dy)
	}
	if dz := max[2] - min[2]; dz > 10 {
		t.Errorf("Z extent = %f, want about 4", dz)
	}
}

func TestPlaceOrder(t *testing.T) {
	tests := []struct {
		name string
		tr   graph.Transform
		want []string
	}{
		{"identity", graph.Identity, nil},
		{"translate only", graph.Transform{Translation: graph.Vec3{Z: 1}}, []string{"translate"}},
		{"rotate only", graph.Transform{Rotation: graph.Vec3{Y: 45}}, []string{"rotate"}},
		{
			"rotate before translate",
			graph.Transform{Translation: graph.Vec3{X: 1}, Rotation: graph.Vec3{Z: 90}},
			[]string{"rotate", "translate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := &recordingKernel{}
			tessellate.Place(k, nopSolid{}, tt.tr)
			if len(k.calls) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", k.calls, tt.want)
			}
			for i := range tt.want {
				if k.calls[i] != tt.want[i] {
					t.Errorf("call %d = %s, want %s", i, k.calls[i], tt.want[i])
				}
			}
		})
	}
}

func TestConvertNilSolid(t *testing.T) {
	mesh, err := tessellate.New(newKernel()).Convert(nil, graph.Identity)
	if err != nil || mesh != nil {
		t.Errorf("Convert(nil) = %v, %v; want nil, nil", mesh, err)
	}
}

func TestConvertEmptyMesh(t *testing.T) {
	k := &recordingKernel{mesh: &kernel.Mesh{}}
	mesh, err := tessellate.New(k).Convert(nopSolid{}, graph.Identity)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if mesh != nil {
		t.Errorf("expected nil mesh for empty output, got %+v", mesh)
	}
}

func TestConvertKernelError(t *testing.T) {
	boom := errors.New("boom")
	k := &recordingKernel{err: boom}
	_, err := tessellate.New(k).Convert(nopSolid{}, graph.Identity)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestConvertWithoutKernel(t *testing.T) {
	_, err := tessellate.New(nil).Convert(nopSolid{}, graph.Identity)
	if !errors.Is(err, tessellate.ErrNoKernel) {
		t.Errorf("err = %v, want ErrNoKernel", err)
	}
}
