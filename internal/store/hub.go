package store

import (
	"strings"
	"sync"

	"github.com/codeblock-sh/codeblock/internal/vfs"
)

// Watcher receives filesystem change events for one watch call. Close it
// to unsubscribe and free resources.
type Watcher struct {
	ch     chan vfs.WatchEvent
	prefix string
	hub    *watchHub
	closed chan struct{}
	once   sync.Once
}

// Events returns the channel events are delivered on.
func (w *Watcher) Events() <-chan vfs.WatchEvent { return w.ch }

// Close unsubscribes the watcher.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.closed)
		w.hub.remove(w)
	})
}

// watchHub fans filesystem events out to path-scoped watchers.
type watchHub struct {
	mu       sync.RWMutex
	watchers []*Watcher
}

func newWatchHub() *watchHub { return &watchHub{} }

// watch subscribes to events at or below prefix.
func (h *watchHub) watch(prefix string) *Watcher {
	w := &Watcher{
		ch:     make(chan vfs.WatchEvent, 64),
		prefix: vfs.CleanPath(prefix),
		hub:    h,
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.watchers = append(h.watchers, w)
	h.mu.Unlock()
	return w
}

func (h *watchHub) remove(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, x := range h.watchers {
		if x == w {
			h.watchers = append(h.watchers[:i], h.watchers[i+1:]...)
			break
		}
	}
}

// emit delivers an event to every watcher whose prefix covers path.
// Delivery is non-blocking; a full watcher drops the event.
func (h *watchHub) emit(evType vfs.EventType, path string) {
	ev := vfs.WatchEvent{EventType: evType, Filename: path}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, w := range h.watchers {
		if !covers(w.prefix, path) {
			continue
		}
		select {
		case w.ch <- ev:
		case <-w.closed:
		default:
			// channel full, drop
		}
	}
}

// covers reports whether path is at or below prefix.
func covers(prefix, path string) bool {
	if prefix == "/" || prefix == path {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
