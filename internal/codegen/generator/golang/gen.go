// Package golang emits the Go dispatch file routing call keys to services.
package golang

import (
	"bytes"
	"fmt"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/machinery-rpc/machinery/internal/codegen/common"
	"github.com/machinery-rpc/machinery/internal/codegen/meta"
)

const (
	// DefaultFileName is the dispatch file written into the dispatch directory.
	DefaultFileName = "machinery_gen.go"
	// RuntimePath is the import path of the runtime helpers the dispatch file calls.
	RuntimePath = "github.com/machinery-rpc/machinery/pkg/machinery"
)

// Options controls dispatch emission.
type Options struct {
	Root       string // scan root; service package dirs are relative to it
	Dir        string // dispatch directory
	FileName   string
	Package    string // package clause of the dispatch file
	ClientPath string // client artifact served by the introspection service
}

type generator struct {
	opts   Options
	res    *meta.AnalyzeResult
	module *Module
	self   string // import path of the dispatch package, "" when unknown

	wrappers map[string]int
}

// Render builds the dispatch file source.
func Render(opts Options, res *meta.AnalyzeResult, fingerprint string) ([]byte, error) {
	g := &generator{opts: opts, res: res, wrappers: make(map[string]int)}
	if g.opts.Package == "" {
		g.opts.Package = "main"
	}
	if g.opts.Dir == "" {
		g.opts.Dir = g.opts.Root
	}

	if g.needsModule() {
		mod, err := FindModule(g.opts.Dir)
		if err != nil {
			return nil, err
		}
		g.module = mod
		if self, err := mod.ImportPath(g.opts.Dir); err == nil {
			g.self = self
		}
	}

	var f *jen.File
	if g.self != "" {
		f = jen.NewFilePathName(g.self, g.opts.Package)
	} else {
		f = jen.NewFile(g.opts.Package)
	}
	for _, line := range strings.Split(strings.TrimSuffix(common.FileHeader("//", fingerprint), "\n"), "\n") {
		f.HeaderComment(line)
	}
	f.ImportName(RuntimePath, "machinery")

	cases := make([]jen.Code, 0, len(res.Services)+1)
	for _, s := range res.Services {
		name, err := g.wrapper(f, s)
		if err != nil {
			return nil, err
		}
		cases = append(cases, jen.Case(jen.Lit(meta.CallKey(s))).Block(
			jen.Return(jen.Id(name).Call(jen.Id("ctx"), jen.Id("payload"))),
		))
	}
	cases = append(cases, jen.Default().Block(
		jen.Return(jen.Qual(RuntimePath, "UnknownFunction").Call()),
	))

	f.Comment("Handle routes a call key and its JSON argument array to the matching service.")
	f.Func().Id("Handle").Params(
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("name").String(),
		jen.Id("payload").String(),
	).Params(jen.Id("out").String()).Block(
		jen.Defer().Qual(RuntimePath, "Recover").Call(jen.Op("&").Id("out")),
		jen.Switch(jen.Id("name")).Block(cases...),
	)
	f.Line()
	f.Var().Id("_").Qual(RuntimePath, "HandlerFunc").Op("=").Id("Handle")

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("render dispatch file: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate renders the dispatch file and writes it, returning the written path.
func Generate(logger *slog.Logger, opts Options, res *meta.AnalyzeResult, fingerprint string) (string, error) {
	dir := opts.Dir
	if dir == "" {
		dir = opts.Root
	}
	name := opts.FileName
	if name == "" {
		name = DefaultFileName
	}
	outputFile := filepath.Join(dir, name)

	logger.Debug("Rendering Go dispatch file", "services", len(res.Services), "package", opts.Package)
	src, err := Render(opts, res, fingerprint)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outputFile, src, 0o644); err != nil {
		return "", &meta.WriteError{Artifact: outputFile, Err: err}
	}

	logger.Info("Generated Go dispatch file", "file", outputFile)
	return outputFile, nil
}

func (g *generator) needsModule() bool {
	for _, s := range g.res.Services {
		if !s.Synthetic && !g.local(s) {
			return true
		}
	}
	return false
}

// local reports whether s lives in the dispatch package itself.
func (g *generator) local(s meta.Service) bool {
	if s.Synthetic {
		return true
	}
	return filepath.Clean(filepath.Join(g.opts.Root, filepath.FromSlash(s.Package.Dir))) == filepath.Clean(g.opts.Dir)
}

// scope returns how the service's package and type names are referenced.
func (g *generator) scope(s meta.Service) (typeScope, error) {
	key := meta.CallKey(s)
	if g.local(s) {
		return typeScope{imports: s.Imports}, nil
	}
	if s.Package.Name == "main" {
		return typeScope{}, &meta.UnreachableServiceError{Key: key, Reason: "package main cannot be imported by the dispatch package"}
	}
	if !token.IsExported(s.Func) {
		return typeScope{}, &meta.UnreachableServiceError{Key: key, Reason: fmt.Sprintf("%s is not exported", s.Func)}
	}
	pkgPath, err := g.module.ImportPath(filepath.Join(g.opts.Root, filepath.FromSlash(s.Package.Dir)))
	if err != nil {
		return typeScope{}, &meta.UnreachableServiceError{Key: key, Reason: err.Error()}
	}
	return typeScope{pkgPath: pkgPath, imports: s.Imports}, nil
}

func (g *generator) wrapper(f *jen.File, s meta.Service) (string, error) {
	key := meta.CallKey(s)
	scope, err := g.scope(s)
	if err != nil {
		return "", err
	}

	var fn jen.Code = jen.Id(s.Func)
	if scope.pkgPath != "" {
		fn = jen.Qual(scope.pkgPath, s.Func)
	}
	if s.Synthetic {
		g.introspection(f, s)
	}

	body := make([]jen.Code, 0, 2*len(s.Params)+6)
	callArgs := make([]jen.Code, 0, len(s.Params)+1)
	if s.Context {
		callArgs = append(callArgs, jen.Id("ctx"))
	}

	if n := len(s.Params); n > 0 {
		body = append(body,
			jen.List(jen.Id("args"), jen.Err()).Op(":=").Qual(RuntimePath, "DecodeArgs").Call(jen.Id("payload"), jen.Lit(n)),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Qual(RuntimePath, "DeserializeFailed").Call())),
		)
		for i, p := range s.Params {
			typ, bad := scope.typeCode(p.Type)
			if bad != "" {
				return "", &meta.UnreachableServiceError{Key: key, Reason: fmt.Sprintf("parameter %s references %s, which the dispatch package cannot resolve", p.Name, bad)}
			}
			arg := "arg" + strconv.Itoa(i)
			body = append(body,
				jen.Var().Id(arg).Add(typ),
				jen.If(
					jen.Err().Op(":=").Qual(RuntimePath, "DecodeArg").Call(jen.Id("args"), jen.Lit(i), jen.Op("&").Id(arg)),
					jen.Err().Op("!=").Nil(),
				).Block(jen.Return(jen.Qual(RuntimePath, "DeserializeFailed").Call())),
			)
			if s.Variadic && i == n-1 {
				callArgs = append(callArgs, jen.Id(arg).Op("..."))
			} else {
				callArgs = append(callArgs, jen.Id(arg))
			}
		}
	}

	void := s.Return == meta.VoidType
	if !void {
		if _, bad := scope.typeCode(s.Return); bad != "" {
			return "", &meta.UnreachableServiceError{Key: key, Reason: fmt.Sprintf("result references %s, which the dispatch package cannot resolve", bad)}
		}
	}
	call := jen.Add(fn).Call(callArgs...)
	fail := jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Qual(RuntimePath, "Fail").Call(jen.Err())))
	switch {
	case void && s.Fallible:
		body = append(body,
			jen.If(jen.Err().Op(":=").Add(call), jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Qual(RuntimePath, "Fail").Call(jen.Err())),
			),
			jen.Return(jen.Qual(RuntimePath, "Reply").Call(jen.Nil())),
		)
	case void:
		body = append(body,
			call,
			jen.Return(jen.Qual(RuntimePath, "Reply").Call(jen.Nil())),
		)
	case s.Fallible:
		body = append(body,
			jen.List(jen.Id("out"), jen.Err()).Op(":=").Add(call),
			fail,
			jen.Return(jen.Qual(RuntimePath, "Reply").Call(jen.Id("out"))),
		)
	default:
		body = append(body,
			jen.Id("out").Op(":=").Add(call),
			jen.Return(jen.Qual(RuntimePath, "Reply").Call(jen.Id("out"))),
		)
	}

	name := g.wrapperName(key)
	f.Func().Id(name).Params(
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("payload").String(),
	).String().Block(body...)
	f.Line()
	return name, nil
}

// introspection emits the function backing the synthetic client source service.
func (g *generator) introspection(f *jen.File, s meta.Service) {
	path := g.opts.ClientPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	f.Func().Id(s.Func).Params(jen.Id("ctx").Qual("context", "Context")).Params(jen.String(), jen.Error()).Block(
		jen.Return(jen.Qual(RuntimePath, "ReadClientSource").Call(jen.Lit(filepath.ToSlash(path)))),
	)
	f.Line()
}

// wrapperName derives a unique Go identifier from a call key:
// "api::greeting::hello" => "handleApiGreetingHello".
func (g *generator) wrapperName(key string) string {
	var b strings.Builder
	b.WriteString("handle")
	for _, seg := range strings.Split(key, meta.Separator) {
		upper := true
		for _, r := range seg {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				upper = true
				continue
			}
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		}
	}
	name := b.String()
	g.wrappers[name]++
	if n := g.wrappers[name]; n > 1 {
		name += strconv.Itoa(n)
	}
	return name
}
