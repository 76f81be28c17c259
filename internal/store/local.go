package store

import (
	"context"

	"github.com/codeblock-sh/codeblock/internal/vfs"
)

// Local adapts a MemFS directly to the filesystem capability interface,
// with no boundary in between. Callers cannot tell it apart from a
// Remote, which is the point.
type Local struct {
	fs *MemFS
}

// NewLocal wraps a store for in-process use.
func NewLocal(fs *MemFS) *Local { return &Local{fs: fs} }

var _ vfs.FS = (*Local)(nil)

func (l *Local) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return l.fs.ReadFile(path)
}

func (l *Local) WriteFile(ctx context.Context, path string, data []byte) error {
	return l.fs.WriteFile(path, data)
}

func (l *Local) Mkdir(ctx context.Context, path string, opts vfs.MkdirOptions) error {
	return l.fs.Mkdir(path, opts.Recursive)
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	return l.fs.Exists(path), nil
}

// Stat collapses every failure to nil, same as the remote proxy.
func (l *Local) Stat(ctx context.Context, path string) *vfs.StatRecord {
	rec, err := l.fs.Stat(path)
	if err != nil {
		return nil
	}
	return rec
}

func (l *Local) ReadDir(ctx context.Context, path string) ([]vfs.DirEntry, error) {
	return l.fs.ReadDir(path)
}

func (l *Local) Watch(ctx context.Context, path string) (vfs.EventStream, error) {
	w := l.fs.Watch(path)
	go func() {
		<-ctx.Done()
		w.Close()
	}()
	return &localStream{watcher: w, ctx: ctx}, nil
}

type localStream struct {
	watcher *Watcher
	ctx     context.Context
}

func (s *localStream) Next(ctx context.Context) (vfs.WatchEvent, bool, error) {
	select {
	case ev := <-s.watcher.Events():
		return ev, true, nil
	case <-s.ctx.Done():
		return vfs.WatchEvent{}, false, nil
	case <-ctx.Done():
		return vfs.WatchEvent{}, false, ctx.Err()
	}
}
