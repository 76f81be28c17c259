package boundary

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Signal carries a cancellation across the boundary. The holder's side
// keeps the live context; the far side receives a derived context that is
// canceled by an out-of-band abort notification. The signal itself never
// moves.
type Signal struct {
	ctx context.Context
}

// NewSignal wraps a context for transfer.
func NewSignal(ctx context.Context) *Signal { return &Signal{ctx: ctx} }

// Context returns the underlying context.
func (s *Signal) Context() context.Context { return s.ctx }

// Done mirrors context.Context.Done.
func (s *Signal) Done() <-chan struct{} { return s.ctx.Done() }

// WatchOptions is the option bag a watch call sends across the boundary.
// Its wire form is composed of registry-carried values only, which is the
// handler-composition contract in action: the nested Signal is carried by
// its own handler.
type WatchOptions struct {
	Signal *Signal
}

// signalHandler relays cancellation. Serialize installs a watcher on the
// local context that fires a transfer.abort notification when it is
// canceled; Deserialize materializes a fresh context that the abort
// cancels.
type signalHandler struct{}

func (signalHandler) Tag() string { return "signal" }

func (signalHandler) CanHandle(v any) bool {
	_, ok := v.(*Signal)
	return ok
}

func (signalHandler) Serialize(v any, ep *Endpoint) (any, error) {
	sig := v.(*Signal)
	id := uuid.NewString()
	go func() {
		select {
		case <-sig.Done():
			if err := ep.Notify(methodAbort, id); err != nil {
				ep.logger.Debug("abort relay send failed")
			}
		case <-ep.ctx.Done():
		}
	}()
	return id, nil
}

func (signalHandler) Deserialize(wire any, ep *Endpoint) (any, error) {
	id := AsString(wire)
	if id == "" {
		return nil, errors.New("signal: malformed wire form")
	}
	ctx, cancel := context.WithCancel(ep.ctx)
	ep.registerAbort(id, cancel)
	return NewSignal(ctx), nil
}

// sequenceHandler carries a live Sequence as a remote pull capability.
// The source exports next(); the destination reconstructs a Sequence
// whose every pull is one remote call. Backpressure survives: the source
// produces nothing until the destination asks.
type sequenceHandler struct{}

func (sequenceHandler) Tag() string { return "sequence" }

func (sequenceHandler) CanHandle(v any) bool {
	_, ok := v.(*Sequence)
	return ok
}

func (sequenceHandler) Serialize(v any, ep *Endpoint) (any, error) {
	seq := v.(*Sequence)
	var id string
	id = ep.Export(func(ctx context.Context, _ []any) (any, error) {
		value, ok, err := seq.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			ep.Release(id)
			return map[string]any{"done": true}, nil
		}
		return map[string]any{"value": value, "done": false}, nil
	})
	return id, nil
}

func (sequenceHandler) Deserialize(wire any, ep *Endpoint) (any, error) {
	id := AsString(wire)
	if id == "" {
		return nil, errors.New("sequence: malformed wire form")
	}
	return NewSequence(func(ctx context.Context) (any, bool, error) {
		res, err := ep.Call(ctx, methodInvoke, id)
		if err != nil {
			return nil, false, err
		}
		m := AsMap(res)
		if m == nil {
			return nil, false, errors.New("sequence: malformed pull result")
		}
		if AsBool(m["done"]) {
			return nil, false, nil
		}
		return m["value"], true, nil
	}), nil
}

// watchOptionsHandler carries WatchOptions. Its wire form is a plain map
// whose signal field is (recursively) handled by signalHandler.
type watchOptionsHandler struct{}

func (watchOptionsHandler) Tag() string { return "watch-options" }

func (watchOptionsHandler) CanHandle(v any) bool {
	_, ok := v.(*WatchOptions)
	return ok
}

func (watchOptionsHandler) Serialize(v any, ep *Endpoint) (any, error) {
	opts := v.(*WatchOptions)
	wire := map[string]any{}
	if opts.Signal != nil {
		wire["signal"] = opts.Signal
	}
	return wire, nil
}

func (watchOptionsHandler) Deserialize(wire any, ep *Endpoint) (any, error) {
	m := AsMap(wire)
	if m == nil {
		return nil, errors.New("watch-options: malformed wire form")
	}
	opts := &WatchOptions{}
	if sig, ok := m["signal"].(*Signal); ok {
		opts.Signal = sig
	}
	return opts, nil
}
