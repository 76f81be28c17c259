// Package vfs defines the filesystem capability surface consumed by the
// editor, the walker, and the search index. An FS may be backed by a local
// in-memory store or by a remote store reached over a message boundary;
// callers cannot tell the difference and must not try.
package vfs

import (
	"context"
	"errors"
	"time"
)

// FileType classifies a filesystem entry.
type FileType string

const (
	TypeFile         FileType = "file"
	TypeDirectory    FileType = "directory"
	TypeSymbolicLink FileType = "symlink"
)

// Mode bits used to derive FileType. Only the format bits of the
// traditional mode word are meaningful here.
const (
	ModeFormatMask uint32 = 0o170000
	ModeDirectory  uint32 = 0o040000
	ModeSymlink    uint32 = 0o120000
	ModeRegular    uint32 = 0o100000
)

// TypeFromMode derives the entry type from a raw mode bitmask.
// Anything that is neither a directory nor a symlink is a file.
func TypeFromMode(mode uint32) FileType {
	switch mode & ModeFormatMask {
	case ModeDirectory:
		return TypeDirectory
	case ModeSymlink:
		return TypeSymbolicLink
	default:
		return TypeFile
	}
}

// StatRecord is the metadata view of a single entry.
type StatRecord struct {
	Name  string    `json:"name"`
	Atime time.Time `json:"atime"`
	Mtime time.Time `json:"mtime"`
	Ctime time.Time `json:"ctime"`
	Size  int64     `json:"size"`
	Type  FileType  `json:"type"`
}

// DirEntry is a single directory listing entry.
type DirEntry struct {
	Name string   `json:"name"`
	Type FileType `json:"type"`
}

// EventType distinguishes the two kinds of watch notifications.
type EventType string

const (
	EventRename EventType = "rename"
	EventChange EventType = "change"
)

// WatchEvent describes one observed filesystem change. Filename is the
// absolute path of the affected entry.
type WatchEvent struct {
	EventType EventType `json:"eventType"`
	Filename  string    `json:"filename"`
}

// EventStream is a pull-based sequence of watch events. Next blocks until
// an event is available, the stream ends, or ctx is canceled. A stream
// ends only when the watch that produced it is aborted.
type EventStream interface {
	Next(ctx context.Context) (WatchEvent, bool, error)
}

// MkdirOptions controls directory creation.
type MkdirOptions struct {
	Recursive bool
}

// Sentinel errors shared by FS implementations.
var (
	ErrNotFound     = errors.New("vfs: not found")
	ErrNotDirectory = errors.New("vfs: not a directory")
	ErrIsDirectory  = errors.New("vfs: is a directory")
	ErrExists       = errors.New("vfs: already exists")
	ErrNotMounted   = errors.New("vfs: not mounted")
)

// FS is the filesystem capability interface. All paths are absolute and
// are normalized before use. Every method is independently dispatchable:
// no shared mutable state is required between calls.
//
// Stat collapses every failure, not-found and I/O alike, to a nil
// record. Callers needing the distinction must use ReadFile or Exists.
type FS interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Mkdir(ctx context.Context, path string, opts MkdirOptions) error
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) *StatRecord
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)

	// Watch reports changes at or below path, in backing-store emission
	// order, until ctx is canceled. Each call creates an independent
	// watch; there is no restart.
	Watch(ctx context.Context, path string) (EventStream, error)
}
