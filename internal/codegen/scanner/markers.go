package scanner

import (
	"go/ast"
	"go/token"
	"regexp"
	"strings"
)

// Marker tags a declaration for extraction.
type Marker string

const (
	MarkerNone    Marker = ""
	MarkerService Marker = "service"
	MarkerMessage Marker = "message"
)

// markerPattern matches directive comments: //machinery:service, // machinery:message
var markerPattern = regexp.MustCompile(`^//\s*machinery:(\w+)\b`)

// markedDecl is a top-level declaration together with the marker found in its doc comment.
type markedDecl struct {
	Marker Marker
	Func   *ast.FuncDecl
	Type   *ast.TypeSpec
	Pos    token.Pos
}

// markerOf returns the first recognized marker in a doc comment group.
func markerOf(doc *ast.CommentGroup) Marker {
	if doc == nil {
		return MarkerNone
	}
	for _, c := range doc.List {
		m := markerPattern.FindStringSubmatch(strings.TrimSpace(c.Text))
		if m == nil {
			continue
		}
		switch Marker(m[1]) {
		case MarkerService:
			return MarkerService
		case MarkerMessage:
			return MarkerMessage
		}
	}
	return MarkerNone
}

// markedDecls walks the top-level declarations of a file and tags each one
// with its marker. Unmarked declarations are dropped.
func markedDecls(file *ast.File) []markedDecl {
	var out []markedDecl
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if m := markerOf(d.Doc); m != MarkerNone {
				out = append(out, markedDecl{Marker: m, Func: d, Pos: d.Pos()})
			}
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				m := markerOf(ts.Doc)
				if m == MarkerNone && len(d.Specs) == 1 {
					m = markerOf(d.Doc)
				}
				if m != MarkerNone {
					out = append(out, markedDecl{Marker: m, Type: ts, Pos: ts.Pos()})
				}
			}
		}
	}
	return out
}
