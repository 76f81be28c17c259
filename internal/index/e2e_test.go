package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeblock-sh/codeblock/internal/boundary"
	"github.com/codeblock-sh/codeblock/internal/snapshot"
	"github.com/codeblock-sh/codeblock/internal/store"
	"github.com/codeblock-sh/codeblock/internal/walk"
)

// TestSnapshotToQuery covers the whole boot path: pack a snapshot, mount
// it across an endpoint, walk the remote tree, build the index, query it.
func TestSnapshotToQuery(t *testing.T) {
	ctx := context.Background()

	blob, err := snapshot.Pack(&snapshot.Snapshot{Files: []snapshot.File{
		{Path: "/a/b.txt", Data: []byte("hello")},
		{Path: "/c.md", Data: []byte("other content")},
	}})
	require.NoError(t, err)

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

	fs, err := snapshot.Mount(ctx, client, blob)
	require.NoError(t, err)

	var files []string
	for path, err := range walk.Files(ctx, fs, "/") {
		require.NoError(t, err)
		files = append(files, path)
	}
	assert.Equal(t, []string{"/a/b.txt", "/c.md"}, files)

	ix, err := Get(ctx, fs, "/.codeblock/index.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b.txt"}, ix.Query("hello"))
}
