package dvr

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dvrd/internal/log"
)

// Watcher observes completed recording files so an external delete shows up
// in entry status without waiting for the next read.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logc     zerolog.Logger
	vanished func(path string)

	mu    sync.Mutex
	paths map[string]struct{}
}

// NewWatcher builds a file watcher; vanished is invoked (from the watcher
// goroutine) when a tracked file is removed or renamed away.
func NewWatcher(vanished func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		logc:     log.WithComponent("dvr-watch"),
		vanished: vanished,
		paths:    make(map[string]struct{}),
	}, nil
}

// Add starts tracking a recording file. Errors are logged, not fatal; the
// status fallback still stats the file on read.
func (w *Watcher) Add(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.paths[path]; ok {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logc.Warn().Err(err).Str("path", path).Msg("watch recording file")
		return
	}
	w.paths[path] = struct{}{}
}

// Forget stops tracking a file, typically right before the engine unlinks it.
func (w *Watcher) Forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.paths[path]; !ok {
		return
	}
	delete(w.paths, path)
	_ = w.fsw.Remove(path)
}

// Run consumes watcher events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			_, tracked := w.paths[ev.Name]
			delete(w.paths, ev.Name)
			w.mu.Unlock()
			if tracked {
				w.vanished(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logc.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// AttachWatcher wires a file watcher into the engine. Completed entries get
// their files tracked as they finish.
func (eng *Engine) AttachWatcher(w *Watcher) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	eng.watcher = w
}

// FileVanished reports an externally deleted recording file. The stored state
// does not change; status derives "File missing" on read, so only an update
// event goes out.
func (eng *Engine) FileVanished(path string) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	for _, e := range eng.entries {
		if e.Filename == path && e.schedState == SchedCompleted {
			eng.logc.Warn().Str("uuid", e.UUID).Str("filename", path).
				Msg("recording file vanished")
			eng.notifier.EntryUpdated(e.UUID, e.schedState.String())
		}
	}
}
