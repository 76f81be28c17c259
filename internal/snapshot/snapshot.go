// Package snapshot implements the immutable blob a workspace session
// boots from: packing, unpacking, fetching, and the mount protocol that
// turns a blob plus a boundary endpoint into a usable filesystem.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/codeblock-sh/codeblock/internal/codec"
)

// magic prefixes every snapshot blob: three identifying bytes and a
// format version.
var magic = []byte{'C', 'B', 'S', 1}

// ErrMalformed is returned when a blob is not a valid snapshot.
var ErrMalformed = errors.New("snapshot: malformed blob")

// File is one entry in a snapshot. Directories carry no data; missing
// parents are implied and materialized on mount.
type File struct {
	Path  string `cbor:"path"`
	Data  []byte `cbor:"data,omitempty"`
	Mode  uint32 `cbor:"mode,omitempty"`
	Mtime int64  `cbor:"mtime,omitempty"` // unix nanoseconds
}

// Snapshot is the serialized initial state of a workspace.
type Snapshot struct {
	Files []File `cbor:"files"`
}

// Pack serializes a snapshot: deterministic CBOR wrapped in gzip behind
// the magic header.
func Pack(s *Snapshot) ([]byte, error) {
	raw, err := codec.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(magic)
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack deserializes a snapshot blob. Every failure mode reports
// ErrMalformed: a snapshot either loads completely or not at all.
func Unpack(blob []byte) (*Snapshot, error) {
	if len(blob) < len(magic) || !bytes.Equal(blob[:len(magic)], magic) {
		return nil, fmt.Errorf("%w: bad header", ErrMalformed)
	}

	zr, err := gzip.NewReader(bytes.NewReader(blob[len(magic):]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var s Snapshot
	if err := codec.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &s, nil
}
