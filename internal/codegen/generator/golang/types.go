package golang

import (
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"

	"github.com/dave/jennifer/jen"
)

var predeclared = map[string]struct{}{
	"any": {}, "bool": {}, "byte": {}, "comparable": {}, "complex64": {},
	"complex128": {}, "error": {}, "float32": {}, "float64": {}, "int": {},
	"int8": {}, "int16": {}, "int32": {}, "int64": {}, "rune": {},
	"string": {}, "uint": {}, "uint8": {}, "uint16": {}, "uint32": {},
	"uint64": {}, "uintptr": {},
}

// typeScope resolves identifiers of a type expression written in a service's
// source file as seen from the dispatch file.
type typeScope struct {
	pkgPath string            // import path of the service package; "" when it is the dispatch package
	imports map[string]string // local name -> import path of the service file
}

// typeCode converts a Go type expression into jennifer code. The second
// result names the first identifier that cannot be referenced from the
// dispatch package: an unexported name of a foreign package, or a
// qualifier missing from the service file's imports.
func (s typeScope) typeCode(src string) (jen.Code, string) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return jen.Op(src), ""
	}
	return s.code(expr)
}

func (s typeScope) code(e ast.Expr) (jen.Code, string) {
	switch t := e.(type) {
	case *ast.Ident:
		if _, ok := predeclared[t.Name]; ok || s.pkgPath == "" {
			return jen.Id(t.Name), ""
		}
		if !token.IsExported(t.Name) {
			return jen.Id(t.Name), t.Name
		}
		return jen.Qual(s.pkgPath, t.Name), ""
	case *ast.SelectorExpr:
		x, ok := t.X.(*ast.Ident)
		if !ok {
			return jen.Op(render(t)), ""
		}
		if p, ok := s.imports[x.Name]; ok {
			return jen.Qual(p, t.Sel.Name), ""
		}
		return jen.Id(x.Name).Dot(t.Sel.Name), x.Name
	case *ast.StarExpr:
		inner, bad := s.code(t.X)
		return jen.Op("*").Add(inner), bad
	case *ast.ArrayType:
		elt, bad := s.code(t.Elt)
		if t.Len == nil {
			return jen.Index().Add(elt), bad
		}
		n, nbad := s.code(t.Len)
		if bad == "" {
			bad = nbad
		}
		return jen.Index(n).Add(elt), bad
	case *ast.MapType:
		k, kbad := s.code(t.Key)
		v, vbad := s.code(t.Value)
		if kbad == "" {
			kbad = vbad
		}
		return jen.Map(k).Add(v), kbad
	case *ast.ParenExpr:
		inner, bad := s.code(t.X)
		return jen.Parens(inner), bad
	case *ast.IndexExpr:
		return s.generic(t.X, []ast.Expr{t.Index})
	case *ast.IndexListExpr:
		return s.generic(t.X, t.Indices)
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return jen.Interface(), ""
		}
		return jen.Op(render(t)), ""
	case *ast.BasicLit:
		return jen.Op(t.Value), ""
	default:
		return jen.Op(render(e)), ""
	}
}

func (s typeScope) generic(base ast.Expr, args []ast.Expr) (jen.Code, string) {
	b, bad := s.code(base)
	codes := make([]jen.Code, len(args))
	for i, a := range args {
		c, abad := s.code(a)
		if bad == "" {
			bad = abad
		}
		codes[i] = c
	}
	return jen.Add(b).Types(codes...), bad
}

func render(e ast.Expr) string {
	var b strings.Builder
	if err := printer.Fprint(&b, token.NewFileSet(), e); err != nil {
		return ""
	}
	return b.String()
}
