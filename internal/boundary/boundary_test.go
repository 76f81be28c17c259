package boundary

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair returns two connected, started endpoints sharing default handlers.
func pair(t *testing.T) (*Endpoint, *Endpoint) {
	t.Helper()
	ta, tb := Pipe()
	a := NewEndpoint(ta, DefaultRegistry(), nil)
	b := NewEndpoint(tb, DefaultRegistry(), nil)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestCallRoundTrip(t *testing.T) {
	a, b := pair(t)
	b.Handle("echo", func(ctx context.Context, args []any) (any, error) {
		return args[0], nil
	})
	a.Start()
	b.Start()

	result, err := a.Call(context.Background(), "echo", map[string]any{
		"path": "/a/b.txt",
		"data": []byte("hello"),
		"n":    int64(3),
	})
	require.NoError(t, err)

	m := AsMap(result)
	require.NotNil(t, m)
	assert.Equal(t, "/a/b.txt", AsString(m["path"]))
	assert.Equal(t, []byte("hello"), AsBytes(m["data"]))
	assert.Equal(t, int64(3), AsInt64(m["n"]))
}

func TestCallUnknownMethod(t *testing.T) {
	a, b := pair(t)
	a.Start()
	b.Start()

	_, err := a.Call(context.Background(), "no.such.method")
	require.Error(t, err)
	var remote *RemoteError
	assert.ErrorAs(t, err, &remote)
}

func TestCloseFailsPending(t *testing.T) {
	a, b := pair(t)
	b.Handle("hang", func(ctx context.Context, args []any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	a.Start()
	b.Start()

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Call(context.Background(), "hang")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	a.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("pending call not failed by Close")
	}
}

func TestSequenceTransfer(t *testing.T) {
	a, b := pair(t)

	var produced atomic.Int64
	b.Handle("numbers", func(ctx context.Context, args []any) (any, error) {
		i := 0
		values := []any{int64(1), int64(2), int64(3)}
		return NewSequence(func(ctx context.Context) (any, bool, error) {
			if i >= len(values) {
				return nil, false, nil
			}
			v := values[i]
			i++
			produced.Add(1)
			return v, true, nil
		}), nil
	})
	a.Start()
	b.Start()

	ctx := context.Background()
	result, err := a.Call(ctx, "numbers")
	require.NoError(t, err)

	seq, ok := result.(*Sequence)
	require.True(t, ok, "result should reconstruct as a Sequence, got %T", result)

	// Backpressure: obtaining the sequence produces nothing.
	assert.Equal(t, int64(0), produced.Load())

	v, ok, err := seq.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), AsInt64(v))
	assert.Equal(t, int64(1), produced.Load(), "exactly one item per pull")

	rest, err := seq.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, int64(2), AsInt64(rest[0]))
	assert.Equal(t, int64(3), AsInt64(rest[1]))

	// Exhausted: further pulls stay done without another remote call.
	_, ok, err = seq.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), produced.Load())
}

func TestSequenceNested(t *testing.T) {
	a, b := pair(t)
	b.Handle("wrapped", func(ctx context.Context, args []any) (any, error) {
		return map[string]any{"events": SequenceOf("x", "y")}, nil
	})
	a.Start()
	b.Start()

	result, err := a.Call(context.Background(), "wrapped")
	require.NoError(t, err)

	seq, ok := AsMap(result)["events"].(*Sequence)
	require.True(t, ok, "nested sequence should reconstruct")

	values, err := seq.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, values)
}

func TestSignalRelay(t *testing.T) {
	a, b := pair(t)

	received := make(chan *Signal, 1)
	b.Handle("watchish", func(ctx context.Context, args []any) (any, error) {
		opts, ok := args[0].(*WatchOptions)
		if !ok {
			t.Errorf("expected *WatchOptions, got %T", args[0])
			return nil, nil
		}
		received <- opts.Signal
		return nil, nil
	})
	a.Start()
	b.Start()

	callCtx, abort := context.WithCancel(context.Background())
	_, err := a.Call(context.Background(), "watchish", &WatchOptions{Signal: NewSignal(callCtx)})
	require.NoError(t, err)

	var remote *Signal
	select {
	case remote = <-received:
	case <-time.After(time.Second):
		t.Fatal("options never arrived")
	}
	require.NotNil(t, remote)

	select {
	case <-remote.Done():
		t.Fatal("remote signal fired before abort")
	default:
	}

	abort()

	select {
	case <-remote.Done():
	case <-time.After(time.Second):
		t.Fatal("abort never relayed")
	}
}

func TestSignalAbortBeforeRegistration(t *testing.T) {
	ta, _ := Pipe()
	ep := NewEndpoint(ta, DefaultRegistry(), nil)
	defer ep.Close()

	// The abort notification can outrun the request that carries the
	// signal: the handler goroutine deserializing the signal has not
	// registered it yet when the abort is processed.
	ep.fireAbort(Message{Method: methodAbort, Args: []any{"early"}})

	v, err := signalHandler{}.Deserialize("early", ep)
	require.NoError(t, err)
	sig, ok := v.(*Signal)
	require.True(t, ok)

	select {
	case <-sig.Done():
	case <-time.After(time.Second):
		t.Fatal("early abort was lost; signal never canceled")
	}
}

func TestEncodeRejectsUnknownType(t *testing.T) {
	ta, _ := Pipe()
	ep := NewEndpoint(ta, DefaultRegistry(), nil)
	defer ep.Close()

	type opaque struct{ x int }
	_, err := ep.registry.Encode(opaque{x: 1}, ep)
	require.Error(t, err)
}
