package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/codeblock-sh/codeblock/internal/boundary"
)

// Method names served by a store host.
const (
	MethodMount     = "mount"
	MethodReadFile  = "fs.readFile"
	MethodWriteFile = "fs.writeFile"
	MethodMkdir     = "fs.mkdir"
	MethodExists    = "fs.exists"
	MethodStat      = "fs.stat"
	MethodReadDir   = "fs.readDir"
	MethodWatch     = "fs.watch"
)

// Remote is an FS proxy over a boundary endpoint. Every operation is one
// round trip to the store host identified by the mount handle.
type Remote struct {
	ep     *boundary.Endpoint
	handle string
}

// NewRemote wraps a mount handle obtained from a successful mount call.
func NewRemote(ep *boundary.Endpoint, handle string) *Remote {
	return &Remote{ep: ep, handle: handle}
}

var _ FS = (*Remote)(nil)

func (r *Remote) args(path string, extra map[string]any) map[string]any {
	m := map[string]any{"h": r.handle, "path": CleanPath(path)}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func (r *Remote) ReadFile(ctx context.Context, path string) ([]byte, error) {
	res, err := r.ep.Call(ctx, MethodReadFile, r.args(path, nil))
	if err != nil {
		return nil, err
	}
	return boundary.AsBytes(res), nil
}

func (r *Remote) WriteFile(ctx context.Context, path string, data []byte) error {
	_, err := r.ep.Call(ctx, MethodWriteFile, r.args(path, map[string]any{"data": data}))
	return err
}

func (r *Remote) Mkdir(ctx context.Context, path string, opts MkdirOptions) error {
	_, err := r.ep.Call(ctx, MethodMkdir, r.args(path, map[string]any{"recursive": opts.Recursive}))
	return err
}

func (r *Remote) Exists(ctx context.Context, path string) (bool, error) {
	res, err := r.ep.Call(ctx, MethodExists, r.args(path, nil))
	if err != nil {
		return false, err
	}
	return boundary.AsBool(res), nil
}

// Stat collapses every failure, remote errors included, to nil.
func (r *Remote) Stat(ctx context.Context, path string) *StatRecord {
	res, err := r.ep.Call(ctx, MethodStat, r.args(path, nil))
	if err != nil {
		return nil
	}
	return statFromWire(boundary.AsMap(res))
}

func (r *Remote) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	res, err := r.ep.Call(ctx, MethodReadDir, r.args(path, nil))
	if err != nil {
		return nil, err
	}
	items := boundary.AsSlice(res)
	entries := make([]DirEntry, 0, len(items))
	for _, item := range items {
		m := boundary.AsMap(item)
		if m == nil {
			return nil, fmt.Errorf("vfs: malformed directory entry %v", item)
		}
		entries = append(entries, DirEntry{
			Name: boundary.AsString(m["name"]),
			Type: FileType(boundary.AsString(m["type"])),
		})
	}
	return entries, nil
}

func (r *Remote) Watch(ctx context.Context, path string) (EventStream, error) {
	opts := &boundary.WatchOptions{Signal: boundary.NewSignal(ctx)}
	res, err := r.ep.Call(ctx, MethodWatch, r.args(path, map[string]any{"options": opts}))
	if err != nil {
		return nil, err
	}
	seq, ok := res.(*boundary.Sequence)
	if !ok {
		return nil, fmt.Errorf("vfs: watch returned %T, want sequence", res)
	}
	return &sequenceStream{seq: seq}, nil
}

// sequenceStream adapts a transferred sequence of wire maps into typed
// watch events.
type sequenceStream struct {
	seq *boundary.Sequence
}

func (s *sequenceStream) Next(ctx context.Context) (WatchEvent, bool, error) {
	v, ok, err := s.seq.Next(ctx)
	if err != nil || !ok {
		return WatchEvent{}, false, err
	}
	m := boundary.AsMap(v)
	if m == nil {
		return WatchEvent{}, false, fmt.Errorf("vfs: malformed watch event %v", v)
	}
	return WatchEvent{
		EventType: EventType(boundary.AsString(m["eventType"])),
		Filename:  boundary.AsString(m["filename"]),
	}, true, nil
}

// statFromWire rebuilds a StatRecord from its wire map. The entry type is
// derived locally from the raw mode bits.
func statFromWire(m map[string]any) *StatRecord {
	if m == nil {
		return nil
	}
	return &StatRecord{
		Name:  boundary.AsString(m["name"]),
		Atime: time.Unix(0, boundary.AsInt64(m["atime"])),
		Mtime: time.Unix(0, boundary.AsInt64(m["mtime"])),
		Ctime: time.Unix(0, boundary.AsInt64(m["ctime"])),
		Size:  boundary.AsInt64(m["size"]),
		Type:  TypeFromMode(uint32(boundary.AsInt64(m["mode"]))),
	}
}
