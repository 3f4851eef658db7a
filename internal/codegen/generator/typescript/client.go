package typescript

import (
	"strings"

	"github.com/machinery-rpc/machinery/internal/codegen/common"
	"github.com/machinery-rpc/machinery/internal/codegen/meta"
	"github.com/machinery-rpc/machinery/internal/codegen/namespace"
	"github.com/machinery-rpc/machinery/internal/codegen/typemap"
)

// renderTree renders the object literal returned by createClient. depth is
// the indentation of the opening brace's line.
func renderTree(m *typemap.Mapper, n *namespace.Node, depth int) string {
	if len(n.Children) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{\n")
	for _, c := range n.Children {
		b.WriteString(indent(depth + 1))
		if c.IsLeaf() {
			b.WriteString(renderLeaf(m, c.Service))
		} else {
			b.WriteString(propertyKey(c.Name))
			b.WriteString(": ")
			b.WriteString(renderTree(m, c, depth+1))
		}
		b.WriteString(",\n")
	}
	b.WriteString(indent(depth))
	b.WriteString("}")
	return b.String()
}

// renderLeaf renders a single async method sending the call key and the
// JSON-encoded positional arguments.
func renderLeaf(m *typemap.Mapper, s *meta.Service) string {
	params := make([]string, len(s.Params))
	args := make([]string, len(s.Params))
	for i, p := range s.Params {
		name := common.SanitizeIdentTS(p.Name)
		if s.Variadic && i == len(s.Params)-1 {
			params[i] = "..." + name + ": " + m.Render(p.Type)
			args[i] = name
			continue
		}
		params[i] = name + ": " + m.Render(p.Type)
		args[i] = name + " ?? null"
	}

	var b strings.Builder
	b.WriteString("async ")
	b.WriteString(propertyKey(s.Name))
	b.WriteString("(")
	b.WriteString(strings.Join(params, ", "))
	b.WriteString("): Promise<")
	b.WriteString(m.Return(s.Return, s.Fallible))
	b.WriteString("> { return handleResult(await transport.send(")
	b.WriteString(common.QuoteTS(meta.CallKey(*s)))
	b.WriteString(", JSON.stringify([")
	b.WriteString(strings.Join(args, ", "))
	b.WriteString("]))); }")
	return b.String()
}
