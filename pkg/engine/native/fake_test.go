package native

import (
	"fmt"

	"github.com/chazu/configurator/pkg/kernel"
)

// traceSolid records the kernel calls that built it.
type traceSolid struct {
	trace string
}

func (s traceSolid) BoundingBox() (min, max [3]float64) { return }

func traceOf(s kernel.Solid) string {
	if s == nil {
		return "<nil>"
	}
	return s.(traceSolid).trace
}

// traceKernel is a kernel.Kernel that builds traceSolids.
type traceKernel struct{}

func solidf(format string, args ...any) kernel.Solid {
	return traceSolid{trace: fmt.Sprintf(format, args...)}
}

func (traceKernel) Box(x, y, z float64) kernel.Solid { return solidf("box(%g,%g,%g)", x, y, z) }

func (traceKernel) Cylinder(h, r float64, _ int) kernel.Solid { return solidf("cyl(%g,%g)", h, r) }

func (traceKernel) Cone(h, r0, r1 float64, _ int) kernel.Solid {
	return solidf("cone(%g,%g,%g)", h, r0, r1)
}

func (traceKernel) Union(a, b kernel.Solid) kernel.Solid {
	return solidf("union(%s,%s)", traceOf(a), traceOf(b))
}

func (traceKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return solidf("diff(%s,%s)", traceOf(a), traceOf(b))
}

func (traceKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return solidf("inter(%s,%s)", traceOf(a), traceOf(b))
}

func (traceKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return solidf("move(%s,%g,%g,%g)", traceOf(s), x, y, z)
}

func (traceKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return solidf("rot(%s,%g,%g,%g)", traceOf(s), x, y, z)
}

func (traceKernel) ToMesh(kernel.Solid) (*kernel.Mesh, error) { return &kernel.Mesh{}, nil }

// panicKernel fails on every primitive the way sdfx does on bad input.
type panicKernel struct{ traceKernel }

func (panicKernel) Box(x, y, z float64) kernel.Solid { panic("bad box") }
