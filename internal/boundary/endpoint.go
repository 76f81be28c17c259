package boundary

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Built-in methods used by transfer handlers for out-of-band calls.
const (
	methodInvoke  = "transfer.invoke"
	methodRelease = "transfer.release"
	methodAbort   = "transfer.abort"
)

// ErrClosed is returned for calls issued on or interrupted by a closed
// endpoint.
var ErrClosed = errors.New("boundary: endpoint closed")

// RemoteError is an error reported by the far side of the channel.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return e.Msg }

// Transport moves wire envelopes between two endpoints. Send must be safe
// for concurrent use; Receive is called from a single loop.
type Transport interface {
	Send(m Message) error
	Receive() (Message, error)
	Close() error
}

// HandlerFunc serves one named method on an endpoint.
type HandlerFunc func(ctx context.Context, args []any) (any, error)

// ExportFunc is a capability installed by a transfer handler and invoked
// remotely through the transfer.invoke built-in.
type ExportFunc func(ctx context.Context, args []any) (any, error)

// Endpoint is one side of a message channel. It correlates requests with
// responses by id, dispatches named method handlers, and holds the export
// and abort tables that transfer handlers install.
type Endpoint struct {
	transport Transport
	registry  *Registry
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]chan Message
	exports map[string]ExportFunc
	aborts  map[string]context.CancelFunc
	// aborted holds ids whose abort notification outran the request
	// carrying the signal; registration consumes the entry.
	aborted  map[string]struct{}
	handlers map[string]HandlerFunc

	closeOnce sync.Once
	done      chan struct{}
}

// NewEndpoint wires an endpoint to a transport and a transfer registry.
// Register method handlers with Handle, then call Start.
func NewEndpoint(t Transport, r *Registry, logger *zap.Logger) *Endpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Endpoint{
		transport: t,
		registry:  r,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]chan Message),
		exports:   make(map[string]ExportFunc),
		aborts:    make(map[string]context.CancelFunc),
		aborted:   make(map[string]struct{}),
		handlers:  make(map[string]HandlerFunc),
		done:      make(chan struct{}),
	}
}

// Registry returns the transfer registry this endpoint encodes with.
func (e *Endpoint) Registry() *Registry { return e.registry }

// Handle registers a method handler. Must be called before Start.
func (e *Endpoint) Handle(method string, fn HandlerFunc) {
	e.handlers[method] = fn
}

// Start launches the inbound-message loop. It returns once the listener
// is attached; there is no handshake with the far side.
func (e *Endpoint) Start() {
	go e.receiveLoop()
}

// Close tears the endpoint down: the transport is closed, in-flight calls
// fail with ErrClosed, and held exports and abort relays are released.
func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.cancel()
		err = e.transport.Close()
		e.failPending(ErrClosed)
		close(e.done)
	})
	return err
}

// Done is closed when the endpoint shuts down.
func (e *Endpoint) Done() <-chan struct{} { return e.done }

// Call sends a request and blocks until the correlated response arrives,
// ctx is canceled, or the endpoint closes. Arguments and the result pass
// through the transfer registry.
func (e *Endpoint) Call(ctx context.Context, method string, args ...any) (any, error) {
	encoded, err := e.encodeArgs(args)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ch := make(chan Message, 1)
	e.mu.Lock()
	e.pending[id] = ch
	e.mu.Unlock()

	if err := e.transport.Send(Message{ID: id, Method: method, Args: encoded}); err != nil {
		e.dropPending(id)
		return nil, fmt.Errorf("boundary: send %s: %w", method, err)
	}

	select {
	case reply := <-ch:
		if reply.Err != "" {
			return nil, &RemoteError{Msg: reply.Err}
		}
		return e.registry.Decode(reply.Result, e)
	case <-ctx.Done():
		e.dropPending(id)
		return nil, ctx.Err()
	case <-e.ctx.Done():
		return nil, ErrClosed
	}
}

// Notify sends a fire-and-forget message. No response is expected.
func (e *Endpoint) Notify(method string, args ...any) error {
	encoded, err := e.encodeArgs(args)
	if err != nil {
		return err
	}
	return e.transport.Send(Message{Method: method, Args: encoded})
}

// Export installs a capability and returns its id for transmission.
func (e *Endpoint) Export(fn ExportFunc) string {
	id := uuid.NewString()
	e.mu.Lock()
	e.exports[id] = fn
	e.mu.Unlock()
	return id
}

// Release removes a previously exported capability.
func (e *Endpoint) Release(id string) {
	e.mu.Lock()
	delete(e.exports, id)
	e.mu.Unlock()
}

// registerAbort installs the cancel for a received signal id. If the
// abort already arrived the signal comes up canceled immediately.
func (e *Endpoint) registerAbort(id string, cancel context.CancelFunc) {
	e.mu.Lock()
	_, fired := e.aborted[id]
	if fired {
		delete(e.aborted, id)
	} else {
		e.aborts[id] = cancel
	}
	e.mu.Unlock()
	if fired {
		cancel()
	}
}

func (e *Endpoint) encodeArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		enc, err := e.registry.Encode(a, e)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func (e *Endpoint) receiveLoop() {
	for {
		m, err := e.transport.Receive()
		if err != nil {
			select {
			case <-e.ctx.Done():
			default:
				e.logger.Debug("endpoint receive ended", zap.Error(err))
			}
			e.Close()
			return
		}

		switch {
		case m.IsResponse():
			e.deliver(m)
		case m.Method == methodInvoke:
			go e.serveInvoke(m)
		case m.Method == methodRelease:
			if len(m.Args) == 1 {
				e.Release(AsString(m.Args[0]))
			}
		case m.Method == methodAbort:
			e.fireAbort(m)
		default:
			go e.serveMethod(m)
		}
	}
}

func (e *Endpoint) deliver(m Message) {
	e.mu.Lock()
	ch, ok := e.pending[m.ID]
	if ok {
		delete(e.pending, m.ID)
	}
	e.mu.Unlock()
	if !ok {
		// Response with no matching request: nothing is waiting, so it
		// can only be logged.
		e.logger.Warn("unmatched response", zap.String("id", m.ID))
		return
	}
	ch <- m
}

func (e *Endpoint) serveInvoke(m Message) {
	if len(m.Args) == 0 {
		e.respondErr(m, errors.New("transfer.invoke: missing capability id"))
		return
	}
	id := AsString(m.Args[0])
	e.mu.Lock()
	fn, ok := e.exports[id]
	e.mu.Unlock()
	if !ok {
		e.respondErr(m, fmt.Errorf("transfer.invoke: unknown capability %s", id))
		return
	}

	args, err := e.decodeArgs(m.Args[1:])
	if err != nil {
		e.respondErr(m, err)
		return
	}
	result, err := fn(e.ctx, args)
	if err != nil {
		e.respondErr(m, err)
		return
	}
	e.respond(m, result)
}

func (e *Endpoint) serveMethod(m Message) {
	fn, ok := e.handlers[m.Method]
	if !ok {
		if m.IsNotification() {
			e.logger.Warn("unhandled notification", zap.String("method", m.Method))
			return
		}
		e.respondErr(m, fmt.Errorf("boundary: unknown method %q", m.Method))
		return
	}

	args, err := e.decodeArgs(m.Args)
	if err != nil {
		e.respondErr(m, err)
		return
	}
	result, err := fn(e.ctx, args)
	if m.IsNotification() {
		if err != nil {
			e.logger.Warn("notification handler failed",
				zap.String("method", m.Method), zap.Error(err))
		}
		return
	}
	if err != nil {
		e.respondErr(m, err)
		return
	}
	e.respond(m, result)
}

func (e *Endpoint) fireAbort(m Message) {
	if len(m.Args) != 1 {
		return
	}
	id := AsString(m.Args[0])
	e.mu.Lock()
	cancel, ok := e.aborts[id]
	if ok {
		delete(e.aborts, id)
	} else {
		// Request handlers run on their own goroutines, so the abort
		// can beat the registration. Remember it.
		e.aborted[id] = struct{}{}
	}
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Endpoint) decodeArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		dec, err := e.registry.Decode(a, e)
		if err != nil {
			return nil, err
		}
		out[i] = dec
	}
	return out, nil
}

func (e *Endpoint) respond(m Message, result any) {
	if m.ID == "" {
		return
	}
	encoded, err := e.registry.Encode(result, e)
	if err != nil {
		e.respondErr(m, err)
		return
	}
	if err := e.transport.Send(Message{ID: m.ID, Reply: true, Result: encoded}); err != nil {
		e.logger.Debug("response send failed", zap.String("id", m.ID), zap.Error(err))
	}
}

func (e *Endpoint) respondErr(m Message, err error) {
	if m.ID == "" {
		return
	}
	if sendErr := e.transport.Send(Message{ID: m.ID, Reply: true, Err: err.Error()}); sendErr != nil {
		e.logger.Debug("error response send failed", zap.String("id", m.ID), zap.Error(sendErr))
	}
}

func (e *Endpoint) dropPending(id string) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

func (e *Endpoint) failPending(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.pending {
		ch <- Message{ID: id, Reply: true, Err: err.Error()}
		delete(e.pending, id)
	}
}
