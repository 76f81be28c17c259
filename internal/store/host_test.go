package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeblock-sh/codeblock/internal/boundary"
	"github.com/codeblock-sh/codeblock/internal/snapshot"
	"github.com/codeblock-sh/codeblock/internal/vfs"
)

func testBlob(t *testing.T) []byte {
	t.Helper()
	blob, err := snapshot.Pack(&snapshot.Snapshot{Files: []snapshot.File{
		{Path: "/a/b.txt", Data: []byte("hello")},
		{Path: "/README.md", Data: []byte("# workspace")},
	}})
	require.NoError(t, err)
	return blob
}

// hostPair starts a host and returns a client endpoint attached to it.
func hostPair(t *testing.T) (*Host, *boundary.Endpoint) {
	t.Helper()
	ta, tb := boundary.Pipe()
	client := boundary.NewEndpoint(ta, boundary.DefaultRegistry(), nil)
	server := boundary.NewEndpoint(tb, boundary.DefaultRegistry(), nil)

	host := NewHost(nil)
	host.Attach(server)
	host.Start()
	client.Start()
	server.Start()

	t.Cleanup(func() {
		client.Close()
		server.Close()
		host.Close()
	})
	return host, client
}

func TestHostMountRoundTrip(t *testing.T) {
	_, client := hostPair(t)
	ctx := context.Background()

	fs, err := snapshot.Mount(ctx, client, testBlob(t))
	require.NoError(t, err)

	data, err := fs.ReadFile(ctx, "/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	ok, err := fs.Exists(ctx, "/README.md")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Exists(ctx, "/nope")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.Mkdir(ctx, "/src/pkg", vfs.MkdirOptions{Recursive: true}))
	require.NoError(t, fs.WriteFile(ctx, "/src/pkg/main.go", []byte("package main")))

	entries, err := fs.ReadDir(ctx, "/src/pkg")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "main.go", entries[0].Name)
	assert.Equal(t, vfs.TypeFile, entries[0].Type)
}

func TestHostStat(t *testing.T) {
	_, client := hostPair(t)
	ctx := context.Background()

	fs, err := snapshot.Mount(ctx, client, testBlob(t))
	require.NoError(t, err)

	rec := fs.Stat(ctx, "/a/b.txt")
	require.NotNil(t, rec)
	assert.Equal(t, "b.txt", rec.Name)
	assert.Equal(t, int64(5), rec.Size)
	assert.Equal(t, vfs.TypeFile, rec.Type)

	rec = fs.Stat(ctx, "/a")
	require.NotNil(t, rec)
	assert.Equal(t, vfs.TypeDirectory, rec.Type)

	// Failures collapse to nil rather than an error.
	assert.Nil(t, fs.Stat(ctx, "/no/such/entry"))
}

func TestHostRejectsUnknownHandle(t *testing.T) {
	_, client := hostPair(t)
	ctx := context.Background()

	_, err := snapshot.Mount(ctx, client, testBlob(t))
	require.NoError(t, err)

	forged := vfs.NewRemote(client, "not-a-handle")
	_, err = forged.ReadFile(ctx, "/a/b.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not mounted")
}

func TestHostRejectsMalformedSnapshot(t *testing.T) {
	_, client := hostPair(t)

	_, err := snapshot.Mount(context.Background(), client, []byte("garbage"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestHostSecondMountValidatesSnapshot(t *testing.T) {
	_, client := hostPair(t)
	ctx := context.Background()

	fs, err := snapshot.Mount(ctx, client, testBlob(t))
	require.NoError(t, err)

	// A populated host must still reject a malformed blob instead of
	// handing out a working handle.
	_, err = snapshot.Mount(ctx, client, []byte("garbage, not a snapshot"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")

	// The store itself is unaffected.
	data, err := fs.ReadFile(ctx, "/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestHostSecondMountSharesStore(t *testing.T) {
	_, client := hostPair(t)
	ctx := context.Background()

	first, err := snapshot.Mount(ctx, client, testBlob(t))
	require.NoError(t, err)
	require.NoError(t, first.WriteFile(ctx, "/shared.txt", []byte("seen")))

	second, err := snapshot.Mount(ctx, client, testBlob(t))
	require.NoError(t, err)

	data, err := second.ReadFile(ctx, "/shared.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("seen"), data)
}

func TestHostWatchOverBoundary(t *testing.T) {
	_, client := hostPair(t)
	ctx := context.Background()

	fs, err := snapshot.Mount(ctx, client, testBlob(t))
	require.NoError(t, err)

	watchCtx, stop := context.WithCancel(ctx)
	stream, err := fs.Watch(watchCtx, "/a")
	require.NoError(t, err)

	require.NoError(t, fs.WriteFile(ctx, "/a/created.txt", []byte("x")))

	ev, ok, err := stream.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vfs.EventRename, ev.EventType)
	assert.Equal(t, "/a/created.txt", ev.Filename)

	require.NoError(t, fs.WriteFile(ctx, "/a/created.txt", []byte("xy")))
	ev, ok, err = stream.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vfs.EventChange, ev.EventType)

	// Writes outside the watched prefix are invisible to this stream.
	require.NoError(t, fs.WriteFile(ctx, "/elsewhere.txt", []byte("x")))
	require.NoError(t, fs.WriteFile(ctx, "/a/second.txt", []byte("x")))
	ev, ok, err = stream.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/a/second.txt", ev.Filename)

	// Aborting the watch context ends the stream on the far side.
	stop()
	deadline, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		_, ok, err := stream.Next(deadline)
		require.NoError(t, err)
		if !ok {
			break
		}
	}
}

func TestHostClosedFailsOperations(t *testing.T) {
	host, client := hostPair(t)
	ctx := context.Background()

	fs, err := snapshot.Mount(ctx, client, testBlob(t))
	require.NoError(t, err)

	host.Close()

	_, err = fs.ReadFile(ctx, "/a/b.txt")
	require.Error(t, err)
}

func TestLocalMatchesRemoteShape(t *testing.T) {
	ctx := context.Background()
	mem := NewMemFS()
	var fs vfs.FS = NewLocal(mem)

	require.NoError(t, fs.Mkdir(ctx, "/a", vfs.MkdirOptions{}))
	require.NoError(t, fs.WriteFile(ctx, "/a/b.txt", []byte("hello")))

	data, err := fs.ReadFile(ctx, "/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	assert.NotNil(t, fs.Stat(ctx, "/a/b.txt"))
	assert.Nil(t, fs.Stat(ctx, "/missing"))

	watchCtx, stop := context.WithCancel(ctx)
	stream, err := fs.Watch(watchCtx, "/a")
	require.NoError(t, err)

	require.NoError(t, fs.WriteFile(ctx, "/a/c.txt", nil))
	ev, ok, err := stream.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/a/c.txt", ev.Filename)

	stop()
	_, ok, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
