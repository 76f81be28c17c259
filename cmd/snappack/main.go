// Command snappack builds workspace snapshots from local directories and
// inspects existing ones.
//
// Usage:
//
//	snappack pack -dir ./workspace -out workspace.snap
//	snappack list workspace.snap
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/codeblock-sh/codeblock/internal/snapshot"
	"github.com/codeblock-sh/codeblock/internal/vfs"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "pack":
		runPack(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: snappack pack -dir <dir> -out <file> | snappack list <file>")
	os.Exit(2)
}

// collectFiles walks root and returns snapshot entries sorted by path.
// Directories are emitted as data-less entries so empty ones survive the
// round trip. Mode bits use the Unix layout the store expects, not
// os.FileMode's.
func collectFiles(root string) ([]snapshot.File, error) {
	var mu sync.Mutex
	var files []snapshot.File

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		f := snapshot.File{
			Path:  "/" + filepath.ToSlash(rel),
			Mtime: info.ModTime().UnixNano(),
		}
		if d.IsDir() {
			f.Mode = vfs.ModeDirectory | uint32(info.Mode().Perm())
		} else {
			f.Mode = vfs.ModeRegular | uint32(info.Mode().Perm())
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			f.Data = data
		}

		mu.Lock()
		files = append(files, f)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// fastwalk visits concurrently; order the entries so packs of the
	// same tree are byte-identical and parents precede children.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func runPack(args []string) {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	dir := fs.String("dir", ".", "directory to pack")
	out := fs.String("out", "workspace.snap", "output snapshot path")
	fs.Parse(args)

	root, err := filepath.Abs(*dir)
	if err != nil {
		log.Fatalf("pack: %v", err)
	}

	files, err := collectFiles(root)
	if err != nil {
		log.Fatalf("pack: walk %s: %v", root, err)
	}

	blob, err := snapshot.Pack(&snapshot.Snapshot{Files: files})
	if err != nil {
		log.Fatalf("pack: %v", err)
	}
	if err := os.WriteFile(*out, blob, 0o644); err != nil {
		log.Fatalf("pack: write %s: %v", *out, err)
	}
	log.Printf("packed %d entries (%d bytes) into %s", len(files), len(blob), *out)
}

func runList(args []string) {
	if len(args) != 1 {
		usage()
	}
	blob, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	s, err := snapshot.Unpack(blob)
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	for _, f := range s.Files {
		kind := "file"
		if vfs.TypeFromMode(f.Mode) == vfs.TypeDirectory {
			kind = "dir"
		}
		fmt.Printf("%-4s %8d %s\n", kind, len(f.Data), f.Path)
	}
}
