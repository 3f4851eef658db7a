package golang

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinery-rpc/machinery/internal/codegen/meta"
)

// runtimeDir holds the sources of the package the dispatch file imports as RuntimePath.
var runtimeDir = filepath.Join("..", "..", "..", "..", "pkg", "machinery")

const demoAPI = `package api

import (
	"context"
	"time"
)

type Thing string

type Greeting struct {
	Text string ` + "`json:\"text\"`" + `
}

func Hello(ctx context.Context, message string) (Greeting, error) { return Greeting{Text: message}, nil }

func Hi(ctx context.Context) error { return nil }

func When(at time.Time, things []*Thing) map[string]Thing { return nil }
`

const demoMain = `package main

func sum(label string, values ...float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func reset() {}

func main() {}
`

// sourceImporter type-checks in-module packages from source and defers the
// standard library to the source importer.
type sourceImporter struct {
	fset *token.FileSet
	std  types.Importer
	srcs map[string][]*ast.File
	pkgs map[string]*types.Package
}

func newSourceImporter(fset *token.FileSet) *sourceImporter {
	return &sourceImporter{
		fset: fset,
		std:  importer.ForCompiler(fset, "source", nil),
		srcs: make(map[string][]*ast.File),
		pkgs: make(map[string]*types.Package),
	}
}

func (i *sourceImporter) Import(path string) (*types.Package, error) {
	if p, ok := i.pkgs[path]; ok {
		return p, nil
	}
	files, ok := i.srcs[path]
	if !ok {
		return i.std.Import(path)
	}
	conf := types.Config{Importer: i}
	pkg, err := conf.Check(path, i.fset, files, nil)
	if err != nil {
		return nil, err
	}
	i.pkgs[path] = pkg
	return pkg, nil
}

func parseSource(t *testing.T, fset *token.FileSet, name string, src []byte) *ast.File {
	t.Helper()
	f, err := parser.ParseFile(fset, name, src, 0)
	require.NoError(t, err, string(src))
	return f
}

func parseRuntime(t *testing.T, fset *token.FileSet) []*ast.File {
	t.Helper()
	entries, err := os.ReadDir(runtimeDir)
	require.NoError(t, err)
	var files []*ast.File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") || strings.HasSuffix(e.Name(), "_test.go") {
			continue
		}
		src, err := os.ReadFile(filepath.Join(runtimeDir, e.Name()))
		require.NoError(t, err)
		files = append(files, parseSource(t, fset, e.Name(), src))
	}
	require.NotEmpty(t, files)
	return files
}

func TestDispatchTypeChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("type-checks the standard library from source")
	}
	root := t.TempDir()
	writeGoMod(t, root, "example.com/demo")
	services := append(apiServices(), meta.IntrospectionServiceDecl())
	res := &meta.AnalyzeResult{Services: services}

	src, err := Render(Options{Root: root, Dir: root, Package: "main", ClientPath: filepath.Join(root, "bindings", "index.ts")}, res, "fp")
	require.NoError(t, err)

	fset := token.NewFileSet()
	imp := newSourceImporter(fset)
	imp.srcs[RuntimePath] = parseRuntime(t, fset)
	imp.srcs["example.com/demo/api"] = []*ast.File{parseSource(t, fset, "api.go", []byte(demoAPI))}

	files := []*ast.File{
		parseSource(t, fset, DefaultFileName, src),
		parseSource(t, fset, "main.go", []byte(demoMain)),
	}
	info := &types.Info{Uses: make(map[*ast.Ident]types.Object)}
	conf := types.Config{Importer: imp}
	pkg, err := conf.Check("example.com/demo", fset, files, info)
	require.NoError(t, err, string(src))

	handle, ok := pkg.Scope().Lookup("Handle").(*types.Func)
	require.True(t, ok)
	runtime, err := imp.Import(RuntimePath)
	require.NoError(t, err)
	handlerFunc := runtime.Scope().Lookup("HandlerFunc").Type()
	assert.True(t, types.AssignableTo(handle.Type(), handlerFunc.Underlying()))

	// every service function is referenced by the dispatch file
	used := make(map[string]bool)
	for id, obj := range info.Uses {
		if fset.Position(id.Pos()).Filename == DefaultFileName {
			if _, ok := obj.(*types.Func); ok && obj.Pkg() != nil {
				used[obj.Pkg().Path()+"."+obj.Name()] = true
			}
		}
	}
	for _, name := range []string{
		"example.com/demo/api.Hello",
		"example.com/demo/api.Hi",
		"example.com/demo/api.When",
		"example.com/demo.sum",
		"example.com/demo.reset",
		"example.com/demo.machineryIntrospectionClientSource",
		RuntimePath + ".DecodeArgs",
		RuntimePath + ".ReadClientSource",
	} {
		assert.True(t, used[name], name)
	}
}

func TestDispatchTypeCheckRejectsMismatch(t *testing.T) {
	if testing.Short() {
		t.Skip("type-checks the standard library from source")
	}
	root := t.TempDir()
	writeGoMod(t, root, "example.com/demo")
	svc := apiServices()[0]
	svc.Params = []meta.Param{{Name: "message", Type: "int"}}
	res := &meta.AnalyzeResult{Services: []meta.Service{svc}}

	src, err := Render(Options{Root: root, Dir: root, Package: "main"}, res, "fp")
	require.NoError(t, err)

	fset := token.NewFileSet()
	imp := newSourceImporter(fset)
	imp.srcs[RuntimePath] = parseRuntime(t, fset)
	imp.srcs["example.com/demo/api"] = []*ast.File{parseSource(t, fset, "api.go", []byte(demoAPI))}

	conf := types.Config{Importer: imp}
	_, err = conf.Check("example.com/demo", fset, []*ast.File{
		parseSource(t, fset, DefaultFileName, src),
		parseSource(t, fset, "main.go", []byte("package main\n\nfunc main() {}\n")),
	}, nil)
	assert.Error(t, err)
}
