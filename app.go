package main

import (
	"context"
	"log/slog"

	"github.com/chazu/configurator/pkg/config"
	"github.com/chazu/configurator/pkg/engine/native"
	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/kernel"
	"github.com/chazu/configurator/pkg/logging"
	"github.com/chazu/configurator/pkg/source"
	"github.com/chazu/configurator/pkg/state"
	"github.com/chazu/configurator/pkg/tessellate"
)

// GeometryEvent is emitted to the frontend whenever a new view is published.
const GeometryEvent = "geometry:updated"

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	runtime *native.Runtime
	loader  *source.Loader
	state   *state.State

	// emit pushes events to the frontend. It is nil outside Wails.
	emit func(ctx context.Context, event string, data ...interface{})
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	ID       string    `json:"id"`
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// NodeData is a node as shown in the parameter panel.
type NodeData struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Kind    string         `json:"kind"`
	Outputs []graph.Output `json:"outputs"`
}

// ViewData is the full view returned to the frontend after every call.
type ViewData struct {
	Slug        string            `json:"slug"`
	Generation  uint64            `json:"generation"`
	Meshes      []MeshData        `json:"meshes"`
	Nodes       []NodeData        `json:"nodes"`
	Parameters  map[string]string `json:"parameters"`
	InputNodeID string            `json:"inputNodeId"`
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
}

// NewApp wires the engine runtime, document loader and graph state from cfg.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	rt := native.NewRuntime(native.Options{
		Backend:           cfg.Kernel.Backend,
		MeshCells:         cfg.Kernel.MeshCells,
		ExpressionTimeout: cfg.Engine.ExpressionTimeout,
	})
	loader := source.New(source.WithDir(cfg.Graph.Dir), source.WithLogger(logger))

	a := &App{
		ctx:     context.Background(),
		cfg:     cfg,
		logger:  logger,
		runtime: rt,
		loader:  loader,
	}
	// The kernel exists only after Init, so the adapter resolves it per call.
	adapter := state.AdapterFunc(func(s kernel.Solid, t graph.Transform) (*kernel.Mesh, error) {
		return tessellate.New(rt.Kernel()).Convert(s, t)
	})
	a.state = state.New(rt, loader, adapter,
		state.WithLogger(logger),
		state.WithPublishHook(a.publish))
	return a
}

// startup is called by Wails on app startup. It initializes the engine,
// loads the configured graph and starts watching the document directory.
func (a *App) startup(ctx context.Context) {
	a.ctx = logging.WithLogger(ctx, a.logger)
	a.boot()
}

// boot initializes the state and loads the configured graph.
func (a *App) boot() state.Result {
	if res := a.state.Initialize(a.ctx); !res.OK() {
		return res
	}
	if a.cfg.Graph.Watch && a.loader.Dir() != "" {
		if err := a.loader.Watch(a.ctx, a.reload); err != nil {
			a.logger.Warn("graph directory watch disabled", "dir", a.loader.Dir(), "err", err)
		}
	}
	return a.state.LoadGraph(a.ctx, a.cfg.Graph.Slug)
}

// reload re-reads the current graph when its document changed on disk.
func (a *App) reload(slug string) {
	if slug != a.state.Slug() {
		return
	}
	a.logger.Info("graph document changed, reloading", "slug", slug)
	a.state.LoadGraph(a.ctx, slug)
}

// shutdown is called by Wails when the window closes.
func (a *App) shutdown(context.Context) {
	a.state.Close()
}

func (a *App) publish(snap state.Snapshot) {
	if a.emit == nil {
		return
	}
	a.emit(a.ctx, GeometryEvent, a.view(snap, snap.Outcome()))
}

// LoadGraph loads the graph document named slug.
func (a *App) LoadGraph(slug string) ViewData {
	return a.respond(a.state.LoadGraph(a.ctx, slug))
}

// SetParameter sets the numeric parameter for a semantic role such as
// "length" or "outerSize".
func (a *App) SetParameter(role string, value float64) ViewData {
	return a.respond(a.state.SetParameter(a.ctx, state.Role(role), graph.Number(value)))
}

// SetInput sets the text of the node labeled "input".
func (a *App) SetInput(text string) ViewData {
	return a.respond(a.state.SetParameter(a.ctx, state.RoleInput, graph.Text(text)))
}

// UpdateNumber sets the numeric value of a node by ID.
func (a *App) UpdateNumber(id string, value float64) ViewData {
	return a.respond(a.state.SetNumber(a.ctx, graph.NodeID(id), value))
}

// UpdateText sets the text content of a node by ID.
func (a *App) UpdateText(id string, text string) ViewData {
	return a.respond(a.state.SetText(a.ctx, graph.NodeID(id), text))
}

// View returns the current view without changing anything.
func (a *App) View() ViewData {
	snap := a.state.Snapshot()
	return a.view(snap, snap.Outcome())
}

// Slugs lists the graph documents the frontend can load.
func (a *App) Slugs() []string {
	return a.loader.Slugs()
}

// NodeProperty returns the ID and outputs of the first node with label, or
// nil if there is none.
func (a *App) NodeProperty(label string) *state.NodeProperty {
	p, ok := a.state.GetNodeProperty(label)
	if !ok {
		return nil
	}
	return &p
}

func (a *App) respond(res state.Result) ViewData {
	return a.view(a.state.Snapshot(), res)
}

// view converts a snapshot into the frontend format.
func (a *App) view(snap state.Snapshot, res state.Result) ViewData {
	v := ViewData{
		Slug:        snap.Slug,
		Generation:  snap.Generation,
		Meshes:      []MeshData{},
		Nodes:       []NodeData{},
		Parameters:  make(map[string]string, len(snap.Parameters)),
		InputNodeID: string(snap.InputNodeID),
		Status:      res.Status.String(),
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}

	for i, g := range snap.Geometries {
		name := g.Label
		if name == "" {
			name = g.ID.ID
		}
		v.Meshes = append(v.Meshes, MeshData{
			ID:       g.ID.ID,
			Vertices: g.Geometry.Vertices,
			Normals:  g.Geometry.Normals,
			Indices:  g.Geometry.Indices,
			PartName: name,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	for _, n := range snap.Nodes {
		v.Nodes = append(v.Nodes, NodeData{
			ID:      string(n.ID),
			Label:   n.Label,
			Kind:    n.Kind,
			Outputs: n.Outputs,
		})
	}
	for r, id := range snap.Parameters {
		v.Parameters[string(r)] = string(id)
	}
	return v
}
