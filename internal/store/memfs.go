// Package store implements the backing store that lives on the far side
// of the capability boundary: an in-memory filesystem, a watch hub, and
// the host whose single dispatch loop is the sole serialization point
// for every mutation.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/codeblock-sh/codeblock/internal/vfs"
)

// Default mode bits for entries created through the store.
const (
	defaultFileMode = vfs.ModeRegular | 0o644
	defaultDirMode  = vfs.ModeDirectory | 0o755
)

type node struct {
	name  string
	mode  uint32
	data  []byte
	atime time.Time
	mtime time.Time
	ctime time.Time

	// children holds directory entries in insertion order, which is the
	// enumeration order ReadDir reports. Nil for files.
	children []*node
}

func (n *node) isDir() bool {
	return n.mode&vfs.ModeFormatMask == vfs.ModeDirectory
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *node) record() *vfs.StatRecord {
	return &vfs.StatRecord{
		Name:  n.name,
		Atime: n.atime,
		Mtime: n.mtime,
		Ctime: n.ctime,
		Size:  int64(len(n.data)),
		Type:  vfs.TypeFromMode(n.mode),
	}
}

// MemFS is an in-memory filesystem tree. It is safe for concurrent use;
// the host additionally serializes all mutations through its dispatch
// loop so cross-session ordering is total.
type MemFS struct {
	mu   sync.RWMutex
	root *node
	hub  *watchHub
}

// NewMemFS returns an empty filesystem containing only the root
// directory.
func NewMemFS() *MemFS {
	now := time.Now()
	return &MemFS{
		root: &node{name: "/", mode: defaultDirMode, atime: now, mtime: now, ctime: now},
		hub:  newWatchHub(),
	}
}

// resolve walks the tree to the node at path. Callers hold m.mu.
func (m *MemFS) resolve(path string) *node {
	n := m.root
	for _, seg := range vfs.SplitPath(path) {
		if !n.isDir() {
			return nil
		}
		if n = n.child(seg); n == nil {
			return nil
		}
	}
	return n
}

// ReadFile returns the content at path, updating its access time.
func (m *MemFS) ReadFile(path string) ([]byte, error) {
	path = vfs.CleanPath(path)
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.resolve(path)
	if n == nil {
		return nil, fmt.Errorf("read %s: %w", path, vfs.ErrNotFound)
	}
	if n.isDir() {
		return nil, fmt.Errorf("read %s: %w", path, vfs.ErrIsDirectory)
	}
	n.atime = time.Now()
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

// WriteFile creates or overwrites the file at path. The parent directory
// must already exist.
func (m *MemFS) WriteFile(path string, data []byte) error {
	path = vfs.CleanPath(path)
	if path == "/" {
		return fmt.Errorf("write %s: %w", path, vfs.ErrIsDirectory)
	}

	m.mu.Lock()
	parent := m.resolve(vfs.ParentPath(path))
	if parent == nil || !parent.isDir() {
		m.mu.Unlock()
		return fmt.Errorf("write %s: parent: %w", path, vfs.ErrNotFound)
	}

	name := vfs.BaseName(path)
	now := time.Now()
	created := false
	n := parent.child(name)
	switch {
	case n == nil:
		n = &node{name: name, mode: defaultFileMode, atime: now, ctime: now}
		parent.children = append(parent.children, n)
		created = true
	case n.isDir():
		m.mu.Unlock()
		return fmt.Errorf("write %s: %w", path, vfs.ErrIsDirectory)
	}
	n.data = append([]byte(nil), data...)
	n.mtime = now
	parent.mtime = now
	m.mu.Unlock()

	if created {
		m.hub.emit(vfs.EventRename, path)
	} else {
		m.hub.emit(vfs.EventChange, path)
	}
	return nil
}

// Mkdir creates the directory at path. With recursive set, missing
// parents are created and an existing directory is not an error.
func (m *MemFS) Mkdir(path string, recursive bool) error {
	path = vfs.CleanPath(path)
	if path == "/" {
		if recursive {
			return nil
		}
		return fmt.Errorf("mkdir %s: %w", path, vfs.ErrExists)
	}

	m.mu.Lock()
	var createdPaths []string
	n := m.root
	segs := vfs.SplitPath(path)
	walked := ""
	for i, seg := range segs {
		walked += "/" + seg
		c := n.child(seg)
		if c == nil {
			if !recursive && i < len(segs)-1 {
				m.mu.Unlock()
				return fmt.Errorf("mkdir %s: parent: %w", path, vfs.ErrNotFound)
			}
			now := time.Now()
			c = &node{name: seg, mode: defaultDirMode, atime: now, mtime: now, ctime: now}
			n.children = append(n.children, c)
			createdPaths = append(createdPaths, walked)
		} else if !c.isDir() {
			m.mu.Unlock()
			return fmt.Errorf("mkdir %s: %w", walked, vfs.ErrNotDirectory)
		}
		n = c
	}
	if len(createdPaths) == 0 && !recursive {
		m.mu.Unlock()
		return fmt.Errorf("mkdir %s: %w", path, vfs.ErrExists)
	}
	m.mu.Unlock()

	for _, p := range createdPaths {
		m.hub.emit(vfs.EventRename, p)
	}
	return nil
}

// Exists reports whether an entry is present at path.
func (m *MemFS) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolve(vfs.CleanPath(path)) != nil
}

// Stat returns metadata for the entry at path.
func (m *MemFS) Stat(path string) (*vfs.StatRecord, error) {
	rec, _, err := m.StatRaw(path)
	return rec, err
}

// StatRaw returns metadata plus the raw mode bits, which is what crosses
// the wire; the receiving side re-derives the type from the format bits.
func (m *MemFS) StatRaw(path string) (*vfs.StatRecord, uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.resolve(vfs.CleanPath(path))
	if n == nil {
		return nil, 0, fmt.Errorf("stat %s: %w", path, vfs.ErrNotFound)
	}
	return n.record(), n.mode, nil
}

// ReadDir lists the directory at path in insertion order. No sorting is
// applied; enumeration order is whatever the store produced.
func (m *MemFS) ReadDir(path string) ([]vfs.DirEntry, error) {
	path = vfs.CleanPath(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.resolve(path)
	if n == nil {
		return nil, fmt.Errorf("readdir %s: %w", path, vfs.ErrNotFound)
	}
	if !n.isDir() {
		return nil, fmt.Errorf("readdir %s: %w", path, vfs.ErrNotDirectory)
	}
	entries := make([]vfs.DirEntry, 0, len(n.children))
	for _, c := range n.children {
		entries = append(entries, vfs.DirEntry{Name: c.name, Type: vfs.TypeFromMode(c.mode)})
	}
	return entries, nil
}

// Watch subscribes to changes at or below prefix. Close the watcher to
// unsubscribe.
func (m *MemFS) Watch(prefix string) *Watcher {
	return m.hub.watch(prefix)
}

// putRaw inserts an entry with explicit mode and times, creating parent
// directories as needed. Used when materializing a snapshot; emits no
// events.
func (m *MemFS) putRaw(path string, data []byte, mode uint32, mtime time.Time) error {
	path = vfs.CleanPath(path)
	if path == "/" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.root
	segs := vfs.SplitPath(path)
	for _, seg := range segs[:len(segs)-1] {
		c := n.child(seg)
		if c == nil {
			now := time.Now()
			c = &node{name: seg, mode: defaultDirMode, atime: now, mtime: now, ctime: now}
			n.children = append(n.children, c)
		} else if !c.isDir() {
			return fmt.Errorf("snapshot entry %s: %w", path, vfs.ErrNotDirectory)
		}
		n = c
	}

	name := segs[len(segs)-1]
	if n.child(name) != nil {
		return fmt.Errorf("snapshot entry %s: %w", path, vfs.ErrExists)
	}
	if mode == 0 {
		mode = defaultFileMode
	}
	if mtime.IsZero() {
		mtime = time.Now()
	}
	child := &node{name: name, mode: mode, atime: mtime, mtime: mtime, ctime: mtime}
	if vfs.TypeFromMode(mode) != vfs.TypeDirectory {
		child.data = append([]byte(nil), data...)
	}
	n.children = append(n.children, child)
	return nil
}
