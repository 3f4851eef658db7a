package golang

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/machinery-rpc/machinery/internal/codegen/meta"
)

// Module is the Go module enclosing a directory.
type Module struct {
	Dir  string // directory holding go.mod
	Path string // module path
}

// FindModule walks up from dir to the nearest go.mod.
func FindModule(dir string) (*Module, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	for cur := abs; ; {
		data, err := os.ReadFile(filepath.Join(cur, "go.mod"))
		switch {
		case err == nil:
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return nil, fmt.Errorf("%s: no module directive: %w", filepath.Join(cur, "go.mod"), meta.ErrNoModule)
			}
			return &Module{Dir: cur, Path: modPath}, nil
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read go.mod: %w", err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("%s: %w", abs, meta.ErrNoModule)
		}
		cur = parent
	}
}

// ImportPath returns the import path of dir inside the module.
func (m *Module) ImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(m.Dir, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside module %s", dir, m.Path)
	}
	if rel == "." {
		return m.Path, nil
	}
	return path.Join(m.Path, rel), nil
}
