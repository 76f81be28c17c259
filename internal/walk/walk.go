// Package walk provides lazy recursive traversal over a filesystem
// capability.
package walk

import (
	"context"
	"iter"

	"github.com/codeblock-sh/codeblock/internal/vfs"
)

// Files returns a lazy depth-first sequence of absolute file paths under
// root. Directories are traversed, never yielded; each directory is
// recursed into before its next sibling is considered. The input tree is
// assumed acyclic. Every call performs an independent traversal of the
// current state.
func Files(ctx context.Context, fs vfs.FS, root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		walk(ctx, fs, vfs.CleanPath(root), yield)
	}
}

func walk(ctx context.Context, fs vfs.FS, dir string, yield func(string, error) bool) bool {
	entries, err := fs.ReadDir(ctx, dir)
	if err != nil {
		return yield("", err)
	}
	for _, e := range entries {
		child := dir + "/" + e.Name
		if dir == "/" {
			child = "/" + e.Name
		}
		if e.Type == vfs.TypeDirectory {
			if !walk(ctx, fs, child, yield) {
				return false
			}
			continue
		}
		if !yield(child, nil) {
			return false
		}
	}
	return true
}
