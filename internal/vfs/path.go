package vfs

import (
	"path"
	"strings"
)

// CleanPath normalizes a workspace path: forward slashes only, no trailing
// slash, always absolute.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	if p == "." || p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// BaseName returns the last path element of p after normalization.
func BaseName(p string) string {
	p = CleanPath(p)
	if p == "/" {
		return "/"
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

// ParentPath returns the directory containing p. The parent of "/" is "/".
func ParentPath(p string) string {
	p = CleanPath(p)
	if p == "/" {
		return "/"
	}
	idx := strings.LastIndexByte(p, '/')
	if idx == 0 {
		return "/"
	}
	return p[:idx]
}

// SplitPath returns the normalized path's segments. The root has none.
func SplitPath(p string) []string {
	p = CleanPath(p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}
