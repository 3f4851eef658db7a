package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultGlob matches every Go file below the root.
const DefaultGlob = "**/*.go"

// FileEntry is a source file selected for extraction.
type FileEntry struct {
	Path string // filesystem path (root joined with Rel)
	Rel  string // slash path relative to root
}

// FileOptions controls file discovery.
type FileOptions struct {
	Glob             string
	RespectGitignore bool
	Exclude          []string // slash paths relative to root that are never returned
}

// Files walks root and returns the files whose root-relative path matches
// the glob, sorted by path so declaration order does not depend on the
// platform's directory iteration order.
func Files(root string, opts FileOptions) ([]FileEntry, error) {
	glob := strings.TrimPrefix(filepath.ToSlash(opts.Glob), "./")
	if glob == "" {
		glob = DefaultGlob
	}
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid glob pattern %q", opts.Glob)
	}

	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gi = loadGitignore(root)
	}
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, e := range opts.Exclude {
		excluded[filepath.ToSlash(e)] = struct{}{}
	}

	var results []FileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.HasSuffix(name, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if _, ok := excluded[rel]; ok {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		ok, err := doublestar.Match(glob, rel)
		if err != nil {
			return fmt.Errorf("match %s: %w", rel, err)
		}
		if ok {
			results = append(results, FileEntry{Path: path, Rel: rel})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Rel < results[j].Rel
	})
	return results, nil
}

// skipDir reports directories the go tool ignores.
func skipDir(name string) bool {
	switch name {
	case "vendor", "testdata", "node_modules":
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
