package snapshot_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeblock-sh/codeblock/internal/boundary"
	"github.com/codeblock-sh/codeblock/internal/snapshot"
	"github.com/codeblock-sh/codeblock/internal/store"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	mtime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixNano()
	in := &snapshot.Snapshot{Files: []snapshot.File{
		{Path: "/a/b.txt", Data: []byte("hello"), Mode: 0o100644, Mtime: mtime},
		{Path: "/empty"},
	}}

	blob, err := snapshot.Pack(in)
	require.NoError(t, err)

	out, err := snapshot.Unpack(blob)
	require.NoError(t, err)
	require.Len(t, out.Files, 2)
	assert.Equal(t, "/a/b.txt", out.Files[0].Path)
	assert.Equal(t, []byte("hello"), out.Files[0].Data)
	assert.Equal(t, uint32(0o100644), out.Files[0].Mode)
	assert.Equal(t, mtime, out.Files[0].Mtime)
	assert.Equal(t, "/empty", out.Files[1].Path)
}

func TestPackDeterministic(t *testing.T) {
	in := &snapshot.Snapshot{Files: []snapshot.File{
		{Path: "/x", Data: []byte("1")},
		{Path: "/y", Data: []byte("2")},
	}}
	a, err := snapshot.Pack(in)
	require.NoError(t, err)
	b, err := snapshot.Pack(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnpackMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":       nil,
		"short":       {'C', 'B'},
		"bad magic":   []byte("not a snapshot at all"),
		"bad payload": {'C', 'B', 'S', 1, 0xde, 0xad, 0xbe, 0xef},
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := snapshot.Unpack(blob)
			assert.ErrorIs(t, err, snapshot.ErrMalformed)
		})
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("blob"))
	}))
	defer srv.Close()

	blob, err := snapshot.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), blob)
	assert.Equal(t, int64(2), calls.Load())
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := snapshot.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestBoot(t *testing.T) {
	blob, err := snapshot.Pack(&snapshot.Snapshot{Files: []snapshot.File{
		{Path: "/hello.txt", Data: []byte("hi")},
	}})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(blob)
	}))
	defer srv.Close()

	ta, tb := boundary.Pipe()
	client := boundary.NewEndpoint(ta, boundary.DefaultRegistry(), nil)
	server := boundary.NewEndpoint(tb, boundary.DefaultRegistry(), nil)
	host := store.NewHost(nil)
	host.Attach(server)
	host.Start()
	client.Start()
	server.Start()
	defer func() {
		client.Close()
		server.Close()
		host.Close()
	}()

	fs, err := snapshot.Boot(context.Background(), client, srv.URL)
	require.NoError(t, err)

	data, err := fs.ReadFile(context.Background(), "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestBootFetchFailureIsFatal(t *testing.T) {
	ta, _ := boundary.Pipe()
	client := boundary.NewEndpoint(ta, boundary.DefaultRegistry(), nil)
	defer client.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := snapshot.Boot(context.Background(), client, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boot:")
}
