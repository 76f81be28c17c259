// Package index builds and queries the derived search index of a
// workspace tree.
package index

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/bytedance/sonic"

	"github.com/codeblock-sh/codeblock/internal/vfs"
	"github.com/codeblock-sh/codeblock/internal/walk"
)

// manifestVersion guards the persisted format. A manifest with another
// version is rebuilt.
const manifestVersion = 1

// nameWeight makes a hit in a path segment outrank the same number of
// content hits.
const nameWeight = 3

// Manifest is the persisted form of an index, stored inside the
// workspace itself so later sessions can reuse it.
type Manifest struct {
	Version int       `json:"version"`
	Built   time.Time `json:"built"`
	// Postings maps a term to the weighted hit count per file path.
	Postings map[string]map[string]int `json:"postings"`
}

// Index answers ranked term queries over a workspace tree.
type Index struct {
	manifest Manifest
}

// Get returns the index persisted at manifestPath, or builds one by
// walking the tree from the root, persists it there, and returns it.
// The result is a pure function of (fs, manifestPath) at call time;
// nothing is cached across calls, and staleness after later mutations is
// the caller's responsibility.
func Get(ctx context.Context, fs vfs.FS, manifestPath string) (*Index, error) {
	manifestPath = vfs.CleanPath(manifestPath)

	exists, err := fs.Exists(ctx, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	if exists {
		data, err := fs.ReadFile(ctx, manifestPath)
		if err != nil {
			return nil, fmt.Errorf("index: load manifest: %w", err)
		}
		var m Manifest
		if err := sonic.Unmarshal(data, &m); err == nil && m.Version == manifestVersion {
			return &Index{manifest: m}, nil
		}
		// Unreadable or outdated manifest: fall through and rebuild.
	}

	m, err := build(ctx, fs, manifestPath)
	if err != nil {
		return nil, err
	}
	if err := persist(ctx, fs, manifestPath, m); err != nil {
		return nil, err
	}
	return &Index{manifest: m}, nil
}

// Query returns the paths matching term, best first. Ranking is by
// weighted hit count, ties broken by path.
func (ix *Index) Query(term string) []string {
	hits := ix.manifest.Postings[normalize(term)]
	if len(hits) == 0 {
		return nil
	}
	paths := make([]string, 0, len(hits))
	for p := range hits {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if hits[paths[i]] != hits[paths[j]] {
			return hits[paths[i]] > hits[paths[j]]
		}
		return paths[i] < paths[j]
	})
	return paths
}

func build(ctx context.Context, fs vfs.FS, manifestPath string) (Manifest, error) {
	m := Manifest{
		Version:  manifestVersion,
		Built:    time.Now().UTC(),
		Postings: make(map[string]map[string]int),
	}

	for path, err := range walk.Files(ctx, fs, "/") {
		if err != nil {
			return Manifest{}, fmt.Errorf("index: walk: %w", err)
		}
		if path == manifestPath {
			continue
		}

		for _, seg := range vfs.SplitPath(path) {
			for _, tok := range tokenize(seg) {
				m.add(tok, path, nameWeight)
			}
		}

		content, err := fs.ReadFile(ctx, path)
		if err != nil {
			return Manifest{}, fmt.Errorf("index: read %s: %w", path, err)
		}
		if bytes.IndexByte(content, 0) >= 0 {
			continue // binary, index the name only
		}
		for _, tok := range tokenize(string(content)) {
			m.add(tok, path, 1)
		}
	}
	return m, nil
}

func persist(ctx context.Context, fs vfs.FS, manifestPath string, m Manifest) error {
	data, err := sonic.Marshal(m)
	if err != nil {
		return fmt.Errorf("index: encode manifest: %w", err)
	}
	dir := vfs.ParentPath(manifestPath)
	if dir != "/" {
		if err := fs.Mkdir(ctx, dir, vfs.MkdirOptions{Recursive: true}); err != nil {
			return fmt.Errorf("index: persist manifest: %w", err)
		}
	}
	if err := fs.WriteFile(ctx, manifestPath, data); err != nil {
		return fmt.Errorf("index: persist manifest: %w", err)
	}
	return nil
}

func (m *Manifest) add(term, path string, weight int) {
	hits := m.Postings[term]
	if hits == nil {
		hits = make(map[string]int)
		m.Postings[term] = hits
	}
	hits[path] += weight
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// tokenize splits text into lowercase alphanumeric terms.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
