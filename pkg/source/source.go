// Package source resolves graph documents by slug. Documents come from an
// optional override directory first, then from the set bundled into the
// binary, and finally from the bundled default.
package source

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/logging"
)

// DefaultSlug names the bundled document used when nothing else resolves.
const DefaultSlug = "nozzle"

//go:embed graphs/*.json
var bundled embed.FS

// defaultDoc is parsed once; the bundled default must always be valid.
var defaultDoc = mustParseBundled(DefaultSlug)

func mustParseBundled(slug string) *graph.Document {
	doc, err := readBundled(slug)
	if err != nil {
		panic(fmt.Sprintf("source: bundled default %q: %v", slug, err))
	}
	return doc
}

// errInvalidSlug rejects slugs that could escape the document directory.
var errInvalidSlug = errors.New("invalid slug")

// Loader resolves graph documents. Its methods are safe for concurrent use.
type Loader struct {
	dir    string
	logger *slog.Logger
	group  singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithDir sets the override directory searched before the bundled set.
func WithDir(dir string) Option {
	return func(l *Loader) {
		l.dir = dir
	}
}

// WithLogger sets the logger for resolution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the override directory, or "" if there is none.
func (l *Loader) Dir() string {
	return l.dir
}

func (l *Loader) log(ctx context.Context) *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return logging.FromContext(ctx)
}

// Load returns the document for slug. It never fails: any problem is
// logged and the bundled default is returned instead. An empty slug means
// DefaultSlug. Concurrent loads of one slug share a single read.
func (l *Loader) Load(ctx context.Context, slug string) *graph.Document {
	if slug == "" {
		slug = DefaultSlug
	}
	ch := l.group.DoChan(slug, func() (any, error) {
		return l.resolve(slug)
	})

	select {
	case <-ctx.Done():
		l.log(ctx).Warn("graph load abandoned, using default", "slug", slug, "err", ctx.Err())
		return Default()
	case res := <-ch:
		if res.Err != nil {
			l.log(ctx).Warn("graph load failed, using default", "slug", slug, "err", res.Err)
			return Default()
		}
		doc := *res.Val.(*graph.Document)
		return &doc
	}
}

// resolve looks slug up in the override directory, then the bundled set.
func (l *Loader) resolve(slug string) (*graph.Document, error) {
	if !validSlug(slug) {
		return nil, fmt.Errorf("%w %q", errInvalidSlug, slug)
	}

	if l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, slug+".json"))
		switch {
		case err == nil:
			doc, err := graph.ParseDocument(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", filepath.Join(l.dir, slug+".json"), err)
			}
			return doc, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	return readBundled(slug)
}

func readBundled(slug string) (*graph.Document, error) {
	data, err := bundled.ReadFile(path.Join("graphs", slug+".json"))
	if err != nil {
		return nil, err
	}
	return graph.ParseDocument(data)
}

func validSlug(slug string) bool {
	return slug != "" &&
		!strings.ContainsAny(slug, `/\`) &&
		!strings.HasPrefix(slug, ".")
}

// Default returns a copy of the bundled default document.
func Default() *graph.Document {
	doc := *defaultDoc
	return &doc
}

// Slugs lists every loadable slug, bundled and overridden, sorted.
func (l *Loader) Slugs() []string {
	seen := make(map[string]bool)
	if names, err := fs.Glob(bundled, "graphs/*.json"); err == nil {
		for _, name := range names {
			seen[strings.TrimSuffix(path.Base(name), ".json")] = true
		}
	}
	if l.dir != "" {
		if names, err := filepath.Glob(filepath.Join(l.dir, "*.json")); err == nil {
			for _, name := range names {
				if slug := slugOf(name); validSlug(slug) {
					seen[slug] = true
				}
			}
		}
	}

	slugs := make([]string, 0, len(seen))
	for slug := range seen {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

func slugOf(name string) string {
	return strings.TrimSuffix(filepath.Base(name), ".json")
}
