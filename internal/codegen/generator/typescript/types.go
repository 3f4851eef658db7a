package typescript

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/machinery-rpc/machinery/internal/codegen/common"
	"github.com/machinery-rpc/machinery/internal/codegen/meta"
	"github.com/machinery-rpc/machinery/internal/codegen/typemap"
)

const recordTemplateTS = `export interface {{.Name}} {
{{- range .Fields}}
	{{jsonKey .JSONName}}{{if .Optional}}?{{end}}: {{fieldType .Type}};
{{- end}}
}
`

// renderMessage renders one message declaration.
func renderMessage(m *typemap.Mapper, msg meta.Message) (string, error) {
	switch msg.Kind {
	case meta.KindEnumeration:
		return renderEnum(msg), nil
	case meta.KindRecord:
		tmpl, err := template.New("record").Funcs(template.FuncMap{
			"jsonKey":   propertyKey,
			"fieldType": m.Render,
		}).Parse(recordTemplateTS)
		if err != nil {
			return "", fmt.Errorf("parse template: %w", err)
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, msg); err != nil {
			return "", fmt.Errorf("execute record template for %s: %w", msg.Name, err)
		}
		return b.String(), nil
	default:
		return "", &meta.UnsupportedMessageError{Name: msg.Name, Kind: string(msg.Kind)}
	}
}

// renderEnum renders a union of the variants' wire literals, one per line:
// strings for string enumerations, numbers for integer ones.
// An enumeration without variants has no inhabitants.
func renderEnum(msg meta.Message) string {
	if len(msg.Variants) == 0 {
		return "export type " + msg.Name + " = never;\n"
	}
	quoted := make([]string, len(msg.Variants))
	for i, v := range msg.Variants {
		if msg.Numeric {
			quoted[i] = "\t" + v
		} else {
			quoted[i] = "\t" + common.QuoteTS(v)
		}
	}
	return "export type " + msg.Name + " =\n" + strings.Join(quoted, " |\n") + ";\n"
}
