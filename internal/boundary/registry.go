package boundary

import (
	"fmt"
	"time"
)

// transferKey marks a wire map as the serialized form of a handled value.
const transferKey = "$transfer"

// Handler lets one category of non-clonable value cross the boundary.
// Serialize runs on the sending endpoint and must produce a wire form
// composed only of values the registry itself can carry; Deserialize
// reverses it on the receiving endpoint. Both may install out-of-band
// capabilities (exports, abort relays) on the endpoint they are given.
type Handler interface {
	Tag() string
	CanHandle(v any) bool
	Serialize(v any, ep *Endpoint) (any, error)
	Deserialize(wire any, ep *Endpoint) (any, error)
}

// Registry maps transfer tags to handlers and applies them recursively to
// every value crossing an endpoint, including values nested inside other
// serialized values.
//
// A Registry is an explicit value constructed once at process start and
// passed to every endpoint that needs it. There is no ambient global
// registration.
type Registry struct {
	handlers []Handler
	byTag    map[string]Handler
}

// NewRegistry builds a registry from the given handlers. Handler order is
// match order for Serialize.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{byTag: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers = append(r.handlers, h)
		r.byTag[h.Tag()] = h
	}
	return r
}

// DefaultRegistry returns a registry carrying the two handlers every
// boundary in the system needs: live sequences and cancellation signals,
// plus the watch-options composite built from them.
func DefaultRegistry() *Registry {
	return NewRegistry(
		watchOptionsHandler{},
		sequenceHandler{},
		signalHandler{},
	)
}

// Encode prepares v for transmission through ep. Handled values are
// replaced by tagged wire maps; maps and slices are encoded element-wise;
// scalars, byte slices and times pass through.
func (r *Registry) Encode(v any, ep *Endpoint) (any, error) {
	for _, h := range r.handlers {
		if h.CanHandle(v) {
			wire, err := h.Serialize(v, ep)
			if err != nil {
				return nil, fmt.Errorf("transfer %s: %w", h.Tag(), err)
			}
			inner, err := r.Encode(wire, ep)
			if err != nil {
				return nil, err
			}
			return map[string]any{transferKey: h.Tag(), "v": inner}, nil
		}
	}

	switch val := v.(type) {
	case nil, bool, string, []byte,
		int, int32, int64, uint, uint32, uint64,
		float32, float64, time.Time:
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			enc, err := r.Encode(e, ep)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			enc, err := r.Encode(e, ep)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	default:
		return nil, fmt.Errorf("boundary: value of type %T cannot cross", v)
	}
}

// Decode reverses Encode on the receiving endpoint. Inner wire forms are
// decoded before the matching handler reconstructs the live value.
func (r *Registry) Decode(v any, ep *Endpoint) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if tag, ok := val[transferKey].(string); ok {
			h, ok := r.byTag[tag]
			if !ok {
				return nil, fmt.Errorf("boundary: no handler for transfer tag %q", tag)
			}
			inner, err := r.Decode(val["v"], ep)
			if err != nil {
				return nil, err
			}
			out, err := h.Deserialize(inner, ep)
			if err != nil {
				return nil, fmt.Errorf("transfer %s: %w", tag, err)
			}
			return out, nil
		}
		out := make(map[string]any, len(val))
		for k, e := range val {
			dec, err := r.Decode(e, ep)
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			dec, err := r.Decode(e, ep)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	default:
		return v, nil
	}
}
