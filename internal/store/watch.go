package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Change reports that a stored conversation was written or removed.
type Change struct {
	ID      string
	Removed bool
}

// Watch reports changes to stored conversations until ctx is done, when
// the returned channel is closed.
func (s *Store) Watch(ctx context.Context) (<-chan Change, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch conversations: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", s.dir, err)
	}
	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name := filepath.Base(ev.Name)
				if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
					continue
				}
				c := Change{
					ID:      strings.TrimSuffix(name, fileExt),
					Removed: ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename),
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("conversation watcher")
			}
		}
	}()
	return out, nil
}
