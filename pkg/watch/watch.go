// Package watch reports spreadsheets dropped into a directory.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultSettle = 500 * time.Millisecond

// Event names a file that appeared in the watched directory and has not
// been written to for the settle period.
type Event struct {
	Path string
	At   time.Time
}

// Watcher reports spreadsheets that appear in a folder.
type Watcher struct {
	dir     string
	settle  time.Duration
	filter  *Filter
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New watches dir. Files are reported once they have been quiet for settle,
// so a spreadsheet still being copied is not picked up half-written.
// Patterns in dir/.datalensignore are honoured.
func New(dir string, settle time.Duration, opts ...FilterOption) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", dir)
	}
	filter := NewFilter(opts...)
	if err := filter.LoadIgnoreFile(abs); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := w.Add(abs); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "watch %s", abs)
	}
	return &Watcher{
		dir:     abs,
		settle:  settle,
		filter:  filter,
		watcher: w,
		pending: map[string]*time.Timer{},
	}, nil
}

// Dir is the absolute path of the watched folder.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run emits events until ctx is done or the watcher is closed. The returned
// channel is closed when Run stops.
func (w *Watcher) Run(ctx context.Context) <-chan Event {
	out := make(chan Event, 16)
	ready := make(chan string, 16)

	go func() {
		defer close(out)
		defer w.stopTimers()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if !w.filter.MatchName(ev.Name) {
					continue
				}
				w.schedule(ev.Name, ready)
			case path := <-ready:
				if !w.filter.Allow(path) {
					log.Debug().Str("path", path).Msg("watch: file filtered out")
					continue
				}
				select {
				case out <- Event{Path: path, At: time.Now()}:
					log.Debug().Str("path", path).Msg("watch: file ready")
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("dir", w.dir).Msg("watch: watcher error")
			}
		}
	}()
	return out
}

func (w *Watcher) schedule(path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case ready <- path:
		default:
			log.Warn().Str("path", path).Msg("watch: dropping event, consumer is behind")
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
}

// Close stops the underlying fsnotify watcher, which also ends Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
