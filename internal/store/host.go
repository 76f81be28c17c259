package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeblock-sh/codeblock/internal/boundary"
	"github.com/codeblock-sh/codeblock/internal/monitoring"
	"github.com/codeblock-sh/codeblock/internal/snapshot"
	"github.com/codeblock-sh/codeblock/internal/vfs"
)

// ErrHostClosed is returned for operations dispatched after Close.
var ErrHostClosed = errors.New("store: host closed")

type request struct {
	method string
	args   []any
	reply  chan response
}

type response struct {
	value any
	err   error
}

// Host owns one backing store and serves it to any number of attached
// endpoints. A single dispatch goroutine processes every operation in
// arrival order; it is the system's only total-order guarantee and the
// sole serialization point for mutations. Sequence pulls and abort
// relays run outside the loop; they only touch per-watch channels.
type Host struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	reqCh chan request

	// Owned by the dispatch loop.
	fs      *MemFS
	handles map[string]bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewHost creates a host with no mounted store. Call Start before
// attaching endpoints.
func NewHost(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		logger:  logger,
		reqCh:   make(chan request),
		handles: make(map[string]bool),
		done:    make(chan struct{}),
	}
}

// WithMetrics attaches a metrics collector.
func (h *Host) WithMetrics(m *monitoring.Metrics) *Host {
	h.metrics = m
	return h
}

// Start launches the dispatch loop.
func (h *Host) Start() {
	go h.loop()
}

// Close stops the dispatch loop. In-flight operations fail.
func (h *Host) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Attach registers the mount and filesystem methods on an endpoint. Every
// handler forwards into the dispatch loop.
func (h *Host) Attach(ep *boundary.Endpoint) {
	for _, method := range []string{
		vfs.MethodMount,
		vfs.MethodReadFile,
		vfs.MethodWriteFile,
		vfs.MethodMkdir,
		vfs.MethodExists,
		vfs.MethodStat,
		vfs.MethodReadDir,
		vfs.MethodWatch,
	} {
		m := method
		ep.Handle(m, func(ctx context.Context, args []any) (any, error) {
			return h.Do(ctx, m, args)
		})
	}
}

// Do submits one operation to the dispatch loop and waits for its result.
func (h *Host) Do(ctx context.Context, method string, args []any) (any, error) {
	req := request{method: method, args: args, reply: make(chan response, 1)}
	select {
	case h.reqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrHostClosed
	}
	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-h.done:
		return nil, ErrHostClosed
	}
}

func (h *Host) loop() {
	for {
		select {
		case req := <-h.reqCh:
			start := time.Now()
			value, err := h.handle(req)
			if h.metrics != nil {
				h.metrics.RecordOp(req.method, time.Since(start), err)
			}
			req.reply <- response{value: value, err: err}
		case <-h.done:
			return
		}
	}
}

func (h *Host) handle(req request) (any, error) {
	if len(req.args) != 1 {
		return nil, fmt.Errorf("store: %s: want one argument, got %d", req.method, len(req.args))
	}
	m := boundary.AsMap(req.args[0])
	if m == nil {
		return nil, fmt.Errorf("store: %s: malformed arguments", req.method)
	}

	if req.method == vfs.MethodMount {
		return h.mount(m)
	}

	if h.fs == nil || !h.handles[boundary.AsString(m["h"])] {
		return nil, vfs.ErrNotMounted
	}
	path := boundary.AsString(m["path"])

	switch req.method {
	case vfs.MethodReadFile:
		return h.fs.ReadFile(path)
	case vfs.MethodWriteFile:
		return nil, h.fs.WriteFile(path, boundary.AsBytes(m["data"]))
	case vfs.MethodMkdir:
		return nil, h.fs.Mkdir(path, boundary.AsBool(m["recursive"]))
	case vfs.MethodExists:
		return h.fs.Exists(path), nil
	case vfs.MethodStat:
		rec, mode, err := h.fs.StatRaw(path)
		if err != nil {
			// Lossy on purpose: every stat failure crosses as nil.
			return nil, nil
		}
		return statToWire(rec, mode), nil
	case vfs.MethodReadDir:
		entries, err := h.fs.ReadDir(path)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(entries))
		for i, e := range entries {
			out[i] = map[string]any{"name": e.Name, "type": string(e.Type)}
		}
		return out, nil
	case vfs.MethodWatch:
		return h.watch(path, m["options"])
	default:
		return nil, fmt.Errorf("store: unknown method %q", req.method)
	}
}

// mount validates the snapshot and mints an independent handle. The
// first mount populates the store; later mounts still verify their blob
// but attach to the already-populated store.
func (h *Host) mount(m map[string]any) (any, error) {
	blob := boundary.AsBytes(m["fsBuffer"])
	snap, err := snapshot.Unpack(blob)
	if err != nil {
		return nil, fmt.Errorf("store: mount: %w", err)
	}

	if h.fs == nil {
		fs := NewMemFS()
		for _, f := range snap.Files {
			if err := fs.putRaw(f.Path, f.Data, f.Mode, time.Unix(0, f.Mtime)); err != nil {
				return nil, fmt.Errorf("store: mount: %w", err)
			}
		}
		h.fs = fs
		h.logger.Info("store mounted", zap.Int("files", len(snap.Files)))
	}

	handle := uuid.NewString()
	h.handles[handle] = true
	return map[string]any{"fs": handle}, nil
}

// watch subscribes inside the dispatch loop, so registration is ordered
// against mutations, then hands back a sequence whose pulls run outside
// it. The watch ends only when its signal aborts.
func (h *Host) watch(path string, rawOpts any) (any, error) {
	sigCtx := context.Background()
	if opts, ok := rawOpts.(*boundary.WatchOptions); ok && opts.Signal != nil {
		sigCtx = opts.Signal.Context()
	}

	watcher := h.fs.Watch(path)
	if h.metrics != nil {
		h.metrics.WatchOpened()
	}

	var closeOnce sync.Once
	closeWatch := func() {
		closeOnce.Do(func() {
			watcher.Close()
			if h.metrics != nil {
				h.metrics.WatchClosed()
			}
		})
	}
	go func() {
		select {
		case <-sigCtx.Done():
		case <-h.done:
		}
		closeWatch()
	}()

	return boundary.NewSequence(func(ctx context.Context) (any, bool, error) {
		select {
		case ev := <-watcher.Events():
			return map[string]any{
				"eventType": string(ev.EventType),
				"filename":  ev.Filename,
			}, true, nil
		case <-sigCtx.Done():
			closeWatch()
			return nil, false, nil
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-h.done:
			closeWatch()
			return nil, false, nil
		}
	}), nil
}

func statToWire(rec *vfs.StatRecord, mode uint32) map[string]any {
	return map[string]any{
		"name":  rec.Name,
		"atime": rec.Atime.UnixNano(),
		"mtime": rec.Mtime.UnixNano(),
		"ctime": rec.Ctime.UnixNano(),
		"size":  rec.Size,
		"mode":  mode,
	}
}
