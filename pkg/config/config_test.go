package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "nozzle", cfg.Graph.Slug)
	assert.Equal(t, 2*time.Second, cfg.Engine.ExpressionTimeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configurator.yaml")
	content := `version: 1
graph:
  slug: pipe
  dir: ./graphs
  watch: true
kernel:
  mesh_cells: 64
engine:
  expression_timeout: 500ms
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Graph.Slug = "pipe"
	want.Graph.Dir = "./graphs"
	want.Graph.Watch = true
	want.Kernel.MeshCells = 64
	want.Engine.ExpressionTimeout = 500 * time.Millisecond
	want.Log.Level = "debug"
	want.Log.Format = "json"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no version", "graph:\n  slug: x\n", "unsupported configurator.yaml version: 0"},
		{"future version", "version: 2\n", "version: 2"},
		{"bad backend", "version: 1\nkernel:\n  backend: cgal\n", `unknown kernel backend "cgal"`},
		{"negative cells", "version: 1\nkernel:\n  mesh_cells: -1\n", "mesh_cells must be positive"},
		{"bad yaml", "version: [1\n", "config:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv(EnvPath, "")
	assert.Equal(t, DefaultPath, Path())

	t.Setenv(EnvPath, "/etc/configurator.yaml")
	assert.Equal(t, "/etc/configurator.yaml", Path())
}
