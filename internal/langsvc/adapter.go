// Package langsvc adapts the workspace filesystem capability to the
// surface a language-intelligence service expects: uri-keyed stat, read
// and directory listing.
package langsvc

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/codeblock-sh/codeblock/internal/vfs"
)

// FileStat is the metadata shape the language service consumes. Times
// are unix milliseconds.
type FileStat struct {
	Type  vfs.FileType `json:"type"`
	Ctime int64        `json:"ctime"`
	Mtime int64        `json:"mtime"`
	Size  int64        `json:"size"`
}

// Adapter serves uri-keyed filesystem requests from a workspace
// capability.
type Adapter struct {
	fs vfs.FS
}

// NewAdapter wraps a filesystem capability.
func NewAdapter(fs vfs.FS) *Adapter { return &Adapter{fs: fs} }

// PathFromURI extracts the workspace path from a file uri.
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("langsvc: parse uri %q: %w", uri, err)
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("langsvc: unsupported uri scheme %q", u.Scheme)
	}
	path := u.Path
	if path == "" && !strings.HasPrefix(uri, "file://") {
		path = uri
	}
	return vfs.CleanPath(path), nil
}

// Stat returns metadata for the entry at uri.
func (a *Adapter) Stat(ctx context.Context, uri string) (*FileStat, error) {
	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	rec := a.fs.Stat(ctx, path)
	if rec == nil {
		return nil, fmt.Errorf("langsvc: stat %s: %w", path, vfs.ErrNotFound)
	}
	return &FileStat{
		Type:  rec.Type,
		Ctime: rec.Ctime.UnixMilli(),
		Mtime: rec.Mtime.UnixMilli(),
		Size:  rec.Size,
	}, nil
}

// ReadDirectory lists the directory at uri.
func (a *Adapter) ReadDirectory(ctx context.Context, uri string) ([]vfs.DirEntry, error) {
	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	return a.fs.ReadDir(ctx, path)
}

// ReadFile returns the content at uri.
func (a *Adapter) ReadFile(ctx context.Context, uri string) ([]byte, error) {
	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	return a.fs.ReadFile(ctx, path)
}
