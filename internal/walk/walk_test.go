package walk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeblock-sh/codeblock/internal/store"
	"github.com/codeblock-sh/codeblock/internal/vfs"
)

func seed(t *testing.T, paths ...string) vfs.FS {
	t.Helper()
	ctx := context.Background()
	fs := store.NewLocal(store.NewMemFS())
	for _, p := range paths {
		require.NoError(t, fs.Mkdir(ctx, vfs.ParentPath(p), vfs.MkdirOptions{Recursive: true}))
		require.NoError(t, fs.WriteFile(ctx, p, []byte("x")))
	}
	return fs
}

func collect(t *testing.T, fs vfs.FS, root string) []string {
	t.Helper()
	var out []string
	for path, err := range Files(context.Background(), fs, root) {
		require.NoError(t, err)
		out = append(out, path)
	}
	return out
}

func TestFilesDepthFirst(t *testing.T) {
	fs := seed(t,
		"/a/b.txt",
		"/a/sub/deep.txt",
		"/a/z.txt",
		"/top.txt",
	)

	// Insertion order: "a" before "top.txt" at the root; within /a, "b.txt"
	// then "sub" then "z.txt", and sub is recursed before z.txt is yielded.
	got := collect(t, fs, "/")
	assert.Equal(t, []string{
		"/a/b.txt",
		"/a/sub/deep.txt",
		"/a/z.txt",
		"/top.txt",
	}, got)
}

func TestFilesSubtree(t *testing.T) {
	fs := seed(t, "/a/b.txt", "/c/d.txt")
	assert.Equal(t, []string{"/a/b.txt"}, collect(t, fs, "/a"))
}

func TestFilesSkipsDirectories(t *testing.T) {
	ctx := context.Background()
	fs := store.NewLocal(store.NewMemFS())
	require.NoError(t, fs.Mkdir(ctx, "/only/dirs/here", vfs.MkdirOptions{Recursive: true}))

	assert.Empty(t, collect(t, fs, "/"))
}

func TestFilesLazy(t *testing.T) {
	fs := seed(t, "/a/1.txt", "/a/2.txt", "/a/3.txt")

	var seen []string
	for path, err := range Files(context.Background(), fs, "/") {
		require.NoError(t, err)
		seen = append(seen, path)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"/a/1.txt", "/a/2.txt"}, seen)
}

func TestFilesMissingRoot(t *testing.T) {
	fs := store.NewLocal(store.NewMemFS())

	var gotErr error
	for _, err := range Files(context.Background(), fs, "/nope") {
		gotErr = err
	}
	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, vfs.ErrNotFound)
}
