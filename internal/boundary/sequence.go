package boundary

import (
	"context"
	"sync"
)

// Sequence is a pull-based lazy sequence. Nothing is produced on the
// source side until a consumer pulls, and at most one pull is in flight
// at a time: the backpressure guarantee the sequence transfer handler
// preserves across the boundary.
type Sequence struct {
	pull func(ctx context.Context) (any, bool, error)

	mu   sync.Mutex
	done bool
}

// NewSequence builds a sequence from a pull function. The function
// returns (value, true, nil) for each produced item and (_, false, nil)
// once exhausted.
func NewSequence(pull func(ctx context.Context) (any, bool, error)) *Sequence {
	return &Sequence{pull: pull}
}

// SequenceOf builds an exhaustible sequence over fixed values.
func SequenceOf(values ...any) *Sequence {
	i := 0
	return NewSequence(func(ctx context.Context) (any, bool, error) {
		if i >= len(values) {
			return nil, false, nil
		}
		v := values[i]
		i++
		return v, true, nil
	})
}

// Next pulls the next value. After the sequence reports exhaustion every
// further call returns ok=false without invoking the source again.
func (s *Sequence) Next(ctx context.Context) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, false, nil
	}
	v, ok, err := s.pull(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		s.done = true
		return nil, false, nil
	}
	return v, true, nil
}

// Collect drains the sequence into a slice. Intended for tests and small
// finite sequences.
func (s *Sequence) Collect(ctx context.Context) ([]any, error) {
	var out []any
	for {
		v, ok, err := s.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
