package scanner

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"path"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/machinery-rpc/machinery/internal/codegen/meta"
)

// ExtractFile reads and parses a single file and collects its marked declarations.
func ExtractFile(f FileEntry) (*meta.AnalyzeResult, error) {
	src, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return Extract(f.Rel, src)
}

// Extract parses src as the file at the root-relative slash path rel and
// collects services and messages from its top-level declarations.
func Extract(rel string, src []byte) (*meta.AnalyzeResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, rel, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, &meta.ParseError{Path: rel, Err: err}
	}

	x := newExtractor(fset, file, rel)
	return x.run()
}

type extractor struct {
	fset     *token.FileSet
	file     *ast.File
	location string
	pkg      meta.Package
	imports  map[string]string
	consts   []typedConst
}

func newExtractor(fset *token.FileSet, file *ast.File, rel string) *extractor {
	dir := path.Dir(rel)
	if dir == "." {
		dir = ""
	}
	return &extractor{
		fset:     fset,
		file:     file,
		location: meta.Location(rel),
		pkg:      meta.Package{Dir: dir, Name: file.Name.Name},
		imports:  fileImports(file),
		consts:   collectConsts(file),
	}
}

func (x *extractor) run() (*meta.AnalyzeResult, error) {
	result := &meta.AnalyzeResult{Services: []meta.Service{}, Messages: []meta.Message{}}

	for _, d := range markedDecls(x.file) {
		switch {
		case d.Marker == MarkerService && d.Func != nil:
			svc, err := x.service(d.Func)
			if err != nil {
				return nil, err
			}
			result.Services = append(result.Services, svc)
		case d.Marker == MarkerService:
			return nil, &meta.UnsupportedServiceError{Name: d.Type.Name.Name, Reason: "only functions can be services"}
		case d.Marker == MarkerMessage && d.Type != nil:
			msg, err := x.message(d.Type)
			if err != nil {
				return nil, err
			}
			result.Messages = append(result.Messages, msg)
		case d.Marker == MarkerMessage:
			return nil, &meta.UnsupportedMessageError{Name: d.Func.Name.Name, Kind: "func"}
		}
	}

	return result, nil
}

func (x *extractor) service(fn *ast.FuncDecl) (meta.Service, error) {
	name := fn.Name.Name
	if fn.Recv != nil {
		return meta.Service{}, &meta.UnsupportedServiceError{Name: name, Reason: "methods cannot be services"}
	}
	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		return meta.Service{}, &meta.UnsupportedServiceError{Name: name, Reason: "generic functions cannot be services"}
	}

	svc := meta.Service{
		Name:     lowerCamel(name),
		Func:     name,
		Location: x.location,
		Params:   []meta.Param{},
		Package:  x.pkg,
		Imports:  x.imports,
	}

	idx := 0
	for i, field := range fn.Type.Params.List {
		typ := field.Type
		if ell, ok := typ.(*ast.Ellipsis); ok {
			svc.Variadic = true
			typ = &ast.ArrayType{Elt: ell.Elt}
		}
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for j, n := range names {
			if i == 0 && j == 0 && x.isContext(typ) {
				svc.Context = true
				continue
			}
			pname := ""
			if n != nil && n.Name != "_" {
				pname = n.Name
			} else {
				pname = fmt.Sprintf("arg%d", idx)
			}
			svc.Params = append(svc.Params, meta.Param{Name: pname, Type: x.expr(typ)})
			idx++
		}
	}

	var results []ast.Expr
	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for range n {
				results = append(results, field.Type)
			}
		}
	}

	switch {
	case len(results) == 0:
		svc.Return = meta.VoidType
	case len(results) == 1 && isError(results[0]):
		svc.Return = meta.VoidType
		svc.Fallible = true
	case len(results) == 1:
		svc.Return = x.expr(results[0])
	case len(results) == 2 && isError(results[1]):
		svc.Return = x.expr(results[0])
		svc.Fallible = true
	default:
		return meta.Service{}, &meta.UnsupportedServiceError{Name: name, Reason: "results must be (), (error), (T) or (T, error)"}
	}

	return svc, nil
}

func (x *extractor) message(ts *ast.TypeSpec) (meta.Message, error) {
	name := ts.Name.Name
	if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
		return meta.Message{}, &meta.UnsupportedMessageError{Name: name, Kind: "generic type"}
	}

	switch t := ts.Type.(type) {
	case *ast.StructType:
		return meta.Message{
			Kind:     meta.KindRecord,
			Name:     name,
			Location: x.location,
			Fields:   x.fields(t),
		}, nil
	case *ast.Ident:
		if !enumBase(t.Name) {
			return meta.Message{}, &meta.UnsupportedMessageError{Name: name, Kind: t.Name}
		}
		variants, err := x.variants(name, t.Name == "string")
		if err != nil {
			return meta.Message{}, err
		}
		return meta.Message{
			Kind:     meta.KindEnumeration,
			Name:     name,
			Location: x.location,
			Numeric:  t.Name != "string",
			Variants: variants,
		}, nil
	default:
		return meta.Message{}, &meta.UnsupportedMessageError{Name: name, Kind: describe(ts.Type)}
	}
}

// fields lists the struct fields encoding/json would marshal, skipping
// embedded, unexported and `json:"-"` fields.
func (x *extractor) fields(st *ast.StructType) []meta.Field {
	fields := []meta.Field{}
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			continue
		}

		jsonName := ""
		optional := false
		if field.Tag != nil {
			tag := strings.Trim(field.Tag.Value, "`")
			jsonTag := reflect.StructTag(tag).Get("json")
			if jsonTag == "-" {
				continue
			}
			if jsonTag != "" {
				parts := strings.Split(jsonTag, ",")
				jsonName = parts[0]
				for _, part := range parts[1:] {
					if part == "omitempty" || part == "omitzero" {
						optional = true
						break
					}
				}
			}
		}
		if _, isPtr := field.Type.(*ast.StarExpr); isPtr {
			optional = true
		}

		typ := x.expr(field.Type)
		for _, n := range field.Names {
			if !ast.IsExported(n.Name) {
				continue
			}
			wire := jsonName
			if wire == "" || len(field.Names) > 1 {
				wire = n.Name
			}
			fields = append(fields, meta.Field{
				Name:     n.Name,
				JSONName: wire,
				Type:     typ,
				Optional: optional,
			})
		}
	}
	return fields
}

// variants lists the distinct wire values of the constants of typeName in
// declaration order: string values for string enumerations, decimal
// integers otherwise, matching what encoding/json emits.
func (x *extractor) variants(typeName string, str bool) ([]string, error) {
	variants := []string{}
	seen := map[string]bool{}
	for _, c := range x.consts {
		if c.Type != typeName {
			continue
		}
		val, want := c.Value, constant.String
		if !str {
			want = constant.Int
			if val != nil {
				val = constant.ToInt(val)
			}
		}
		if val == nil || val.Kind() != want {
			return nil, &meta.UnsupportedMessageError{Name: typeName, Kind: "constant " + c.Name + " has no value computable from its file"}
		}
		var v string
		if str {
			v = constant.StringVal(val)
		} else {
			v = val.ExactString()
		}
		if !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}
	return variants, nil
}

// isContext reports whether expr spells context.Context with the file's
// local name for the context package.
func (x *extractor) isContext(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Context" {
		return false
	}
	id, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	return x.imports[id.Name] == "context"
}

func (x *extractor) expr(e ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, x.fset, e); err != nil {
		return "any"
	}
	return buf.String()
}

func isError(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "error"
}

func enumBase(name string) bool {
	switch name {
	case "string",
		"int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64",
		"byte", "rune":
		return true
	}
	return false
}

func describe(e ast.Expr) string {
	switch e.(type) {
	case *ast.InterfaceType:
		return "interface"
	case *ast.FuncType:
		return "func"
	case *ast.MapType:
		return "map"
	case *ast.ChanType:
		return "chan"
	case *ast.ArrayType:
		return "array"
	case *ast.StarExpr:
		return "pointer"
	case *ast.SelectorExpr:
		return "qualified type"
	default:
		return "type"
	}
}

// fileImports maps each import's local name to its path.
func fileImports(file *ast.File) map[string]string {
	imports := make(map[string]string, len(file.Imports))
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := ImportName(p)
		if spec.Name != nil {
			if spec.Name.Name == "_" || spec.Name.Name == "." {
				continue
			}
			name = spec.Name.Name
		}
		imports[name] = p
	}
	return imports
}

// ImportName guesses the package name of an import path the way most Go
// code is laid out: the last element, skipping a major-version suffix and
// gopkg.in style ".vN" suffixes.
func ImportName(importPath string) string {
	segs := strings.Split(importPath, "/")
	last := segs[len(segs)-1]
	if len(segs) > 1 && isMajorVersion(last) {
		last = segs[len(segs)-2]
	}
	if i := strings.Index(last, ".v"); i > 0 {
		last = last[:i]
	}
	last = strings.TrimPrefix(last, "go-")
	last = strings.TrimSuffix(last, "-go")
	last = strings.ReplaceAll(last, "-", "_")
	last = strings.ReplaceAll(last, ".", "_")
	return last
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

// lowerCamel lowercases the leading run of upper-case letters:
// Hello => hello, SayHi => sayHi, HTTPGet => httpGet, ID => id.
func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	if n == 0 {
		return s
	}
	if n > 1 && n < len(r) {
		n-- // the last upper-case rune starts the next word
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
