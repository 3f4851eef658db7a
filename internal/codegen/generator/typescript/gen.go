// Package typescript emits the TypeScript client module.
package typescript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"github.com/machinery-rpc/machinery/internal/codegen/meta"
	"github.com/machinery-rpc/machinery/internal/codegen/namespace"
	"github.com/machinery-rpc/machinery/internal/codegen/typemap"
)

// DefaultFileName is the client file written into the export directory.
const DefaultFileName = "index.ts"

// Options controls client emission.
type Options struct {
	ExportDir     string
	FileName      string
	BasePath      string
	Header        string
	Footer        string
	Debug         bool
	Introspection bool
	Mapper        *typemap.Mapper
}

const clientTemplate = `{{if .Debug}}/*
{{.Debug}}
*/
{{end}}{{if .Header}}{{.Header}}
{{end}}{{writeFileHeaderTS .Fingerprint}}
export interface Transport {
	send(fn: string, args: string): Promise<string>;
}

function handleResult(result: string) {
	const json = JSON.parse(result);
	if (json.error !== undefined && json.error !== null) {
		throw new Error(json.error);
	}
	return json.result;
}

{{range .Prelude}}{{.}}
{{end}}{{range .Messages}}
{{.}}{{end}}
export function createClient(transport: Transport) {
	return {{.Tree}};
}
{{if .Footer}}{{.Footer}}
{{end}}`

var clientTmpl = template.Must(template.New("client").Funcs(template.FuncMap{
	"writeFileHeaderTS": writeFileHeaderTS,
}).Parse(clientTemplate))

// Render builds the client module source.
func Render(opts Options, res *meta.AnalyzeResult, fingerprint string) ([]byte, error) {
	m := opts.Mapper
	if m == nil {
		m = typemap.New()
	}
	basePath := opts.BasePath
	if basePath == "" {
		basePath = meta.RootToken
	}

	tree, err := namespace.Build(res.Services, basePath, opts.Introspection)
	if err != nil {
		return nil, err
	}

	messages := make([]string, 0, len(res.Messages))
	for _, msg := range res.Messages {
		decl, err := renderMessage(m, msg)
		if err != nil {
			return nil, err
		}
		messages = append(messages, decl)
	}

	var debug string
	if opts.Debug {
		dump, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal debug dump: %w", err)
		}
		// a literal "*/" in a type expression would close the comment early
		debug = string(bytes.ReplaceAll(dump, []byte("*/"), []byte(`*\/`)))
	}

	data := struct {
		Debug       string
		Header      string
		Footer      string
		Fingerprint string
		Prelude     []string
		Messages    []string
		Tree        string
	}{
		Debug:       debug,
		Header:      opts.Header,
		Footer:      opts.Footer,
		Fingerprint: fingerprint,
		Prelude:     m.Prelude(),
		Messages:    messages,
		Tree:        renderTree(m, tree, 1),
	}

	var buf bytes.Buffer
	if err := clientTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute client template: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate renders the client and writes it to the export directory,
// returning the written path.
func Generate(logger *slog.Logger, opts Options, res *meta.AnalyzeResult, fingerprint string) (string, error) {
	if opts.ExportDir == "" {
		return "", meta.ErrMissingExportDir
	}
	name := opts.FileName
	if name == "" {
		name = DefaultFileName
	}
	outputFile := filepath.Join(opts.ExportDir, name)

	logger.Debug("Rendering TypeScript client", "services", len(res.Services), "messages", len(res.Messages))
	src, err := Render(opts, res, fingerprint)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.ExportDir, 0o755); err != nil {
		return "", &meta.WriteError{Artifact: outputFile, Err: err}
	}
	if err := os.WriteFile(outputFile, src, 0o644); err != nil {
		return "", &meta.WriteError{Artifact: outputFile, Err: err}
	}

	logger.Info("Generated TypeScript client", "file", outputFile)
	return outputFile, nil
}
