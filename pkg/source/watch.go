package source

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrNoDir is returned by Watch when the Loader has no override directory.
var ErrNoDir = errors.New("source: no override directory to watch")

// Watch calls fn with the slug of every document written or created in the
// override directory until ctx is done. It returns once the watch is set
// up; fn runs on the watcher goroutine.
func (l *Loader) Watch(ctx context.Context, fn func(slug string)) error {
	if l.dir == "" {
		return ErrNoDir
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if filepath.Ext(event.Name) != ".json" {
					continue
				}
				slug := slugOf(event.Name)
				if !validSlug(slug) {
					continue
				}
				l.group.Forget(slug)
				l.log(ctx).Debug("graph document changed", "slug", slug, "path", event.Name)
				fn(slug)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.log(ctx).Warn("graph watcher error", "dir", l.dir, "err", err)
			}
		}
	}()
	return nil
}
