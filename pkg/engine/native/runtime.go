package native

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/configurator/pkg/engine"
	"github.com/chazu/configurator/pkg/expr"
	"github.com/chazu/configurator/pkg/kernel"
	"github.com/chazu/configurator/pkg/kernel/manifold"
	"github.com/chazu/configurator/pkg/kernel/sdfx"
)

// Kernel backends.
const (
	BackendSdfx     = "sdfx"
	BackendManifold = "manifold"
)

// ErrNotInitialized is returned by NewHandle before Init has succeeded.
var ErrNotInitialized = errors.New("native: runtime not initialized")

// Options configures a Runtime.
type Options struct {
	// Backend selects the geometry kernel. Empty means sdfx.
	Backend string

	// MeshCells is the sdfx marching-cubes resolution. Zero keeps the
	// kernel default.
	MeshCells int

	// ExpressionTimeout bounds each expression node. Zero keeps the
	// evaluator default.
	ExpressionTimeout time.Duration
}

// Runtime builds native engine handles that share one kernel.
type Runtime struct {
	opts  Options
	exprs *expr.Evaluator

	mu    sync.Mutex
	kern  kernel.Kernel
	ready bool
}

var _ engine.Runtime = (*Runtime)(nil)

// NewRuntime creates a Runtime. The kernel is constructed by Init.
func NewRuntime(opts Options) *Runtime {
	return &Runtime{
		opts:  opts,
		exprs: expr.New(opts.ExpressionTimeout),
	}
}

// Init constructs the kernel backend. Calling it again after success is a
// no-op.
func (r *Runtime) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}

	k, err := newKernel(r.opts)
	if err != nil {
		return fmt.Errorf("native: init: %w", err)
	}
	r.kern = k
	r.ready = true
	return nil
}

func newKernel(opts Options) (kernel.Kernel, error) {
	switch opts.Backend {
	case "", BackendSdfx:
		var kopts []sdfx.Option
		if opts.MeshCells > 0 {
			kopts = append(kopts, sdfx.WithMeshCells(opts.MeshCells))
		}
		return sdfx.New(kopts...), nil
	case BackendManifold:
		return manifold.New()
	default:
		return nil, fmt.Errorf("unknown kernel backend %q", opts.Backend)
	}
}

// NewHandle returns a fresh, empty engine.
func (r *Runtime) NewHandle() (engine.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return nil, ErrNotInitialized
	}
	return New(r.kern, r.exprs), nil
}

// Kernel returns the kernel handles evaluate against, or nil before Init.
func (r *Runtime) Kernel() kernel.Kernel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kern
}
