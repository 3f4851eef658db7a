// Package typemap holds the correspondence between Go type expressions and
// the TypeScript vocabulary used by the generated client.
//
// Known names are emitted once as a prelude of type aliases; generated
// declarations then spell Go types through those aliases (int64 stays
// int64, *T becomes Option<T>). Names the table does not know are copied
// through unchanged: the author is responsible for a structurally
// compatible TypeScript declaration, usually via an extra correspondence.
package typemap

import (
	"go/ast"
	"go/parser"
	"strings"
)

// Correspondence is one entry of the fixed table.
type Correspondence struct {
	Go     string // Go spelling
	Client string // TypeScript alias declaration body, or "" when Go already spells a TS type
}

// Generic wrappers used by Render.
const (
	OptionType = "Option"
	ResultType = "Result"
	ListType   = "Vec"
	DictType   = "Dict"
)

var genericPrelude = []string{
	"export type Option<T> = T | null;",
	"export type Result<T> = T;",
	"export type Vec<T> = T[];",
	"export type Dict<K extends string | number, V> = { [key in K]: V };",
}

var fixed = []Correspondence{
	{Go: "string"},
	{Go: "Void", Client: "void"},
	{Go: "bool", Client: "boolean"},

	{Go: "int", Client: "number"},
	{Go: "int8", Client: "number"},
	{Go: "int16", Client: "number"},
	{Go: "int32", Client: "number"},
	{Go: "int64", Client: "number"},

	{Go: "uint", Client: "number"},
	{Go: "uint8", Client: "number"},
	{Go: "uint16", Client: "number"},
	{Go: "uint32", Client: "number"},
	{Go: "uint64", Client: "number"},
	{Go: "uintptr", Client: "number"},

	{Go: "byte", Client: "number"},
	{Go: "rune", Client: "number"},

	{Go: "float32", Client: "number"},
	{Go: "float64", Client: "number"},
}

// qualified maps well-known qualified Go types to how encoding/json puts them on the wire.
var qualified = map[string]string{
	"time.Time":       "string",
	"time.Duration":   "number",
	"json.RawMessage": "unknown",
	"json.Number":     "number",
}

// Mapper renders Go type expressions for the client and owns the prelude.
type Mapper struct {
	extra []string
}

// New returns a Mapper with the fixed table and the given extra
// correspondences, each a literal alias declaration body such as "Custom = string".
func New(extra ...string) *Mapper {
	return &Mapper{extra: append([]string(nil), extra...)}
}

// Table returns the fixed correspondences in prelude order.
func Table() []Correspondence {
	return append([]Correspondence(nil), fixed...)
}

// Prelude returns the alias declarations emitted before any message declaration.
func (m *Mapper) Prelude() []string {
	out := append([]string(nil), genericPrelude...)
	for _, c := range fixed {
		if c.Client == "" {
			continue
		}
		out = append(out, "export type "+c.Go+" = "+c.Client+";")
	}
	for _, e := range m.extra {
		out = append(out, "export type "+strings.TrimSuffix(strings.TrimSpace(e), ";")+";")
	}
	return out
}

// Render spells a Go type expression in the client vocabulary. Expressions
// that do not parse are returned verbatim.
func (m *Mapper) Render(goType string) string {
	if goType == "" {
		return "Void"
	}
	expr, err := parser.ParseExpr(goType)
	if err != nil {
		return goType
	}
	return m.render(expr, goType)
}

// Return spells a service result, wrapping fallible results in Result<T>.
func (m *Mapper) Return(goType string, fallible bool) string {
	t := m.Render(goType)
	if fallible {
		return ResultType + "<" + t + ">"
	}
	return t
}

func (m *Mapper) render(e ast.Expr, src string) string {
	switch t := e.(type) {
	case *ast.Ident:
		if t.Name == "any" {
			return "any"
		}
		return t.Name
	case *ast.SelectorExpr:
		name := exprName(t)
		if ts, ok := qualified[name]; ok {
			return ts
		}
		return t.Sel.Name
	case *ast.StarExpr:
		return OptionType + "<" + m.render(t.X, src) + ">"
	case *ast.ArrayType:
		if id, ok := t.Elt.(*ast.Ident); ok && (id.Name == "byte" || id.Name == "uint8") {
			// encoding/json writes byte slices as base64 strings
			return "string"
		}
		return ListType + "<" + m.render(t.Elt, src) + ">"
	case *ast.MapType:
		return DictType + "<" + m.render(t.Key, src) + ", " + m.render(t.Value, src) + ">"
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return "any"
		}
		return "unknown"
	case *ast.ParenExpr:
		return m.render(t.X, src)
	case *ast.IndexExpr:
		return m.render(t.X, src) + "<" + m.render(t.Index, src) + ">"
	case *ast.IndexListExpr:
		args := make([]string, len(t.Indices))
		for i, idx := range t.Indices {
			args[i] = m.render(idx, src)
		}
		return m.render(t.X, src) + "<" + strings.Join(args, ", ") + ">"
	default:
		return src
	}
}

func exprName(sel *ast.SelectorExpr) string {
	if id, ok := sel.X.(*ast.Ident); ok {
		return id.Name + "." + sel.Sel.Name
	}
	return sel.Sel.Name
}
