// Package pipeline wires scanning, extraction and both emitters into a
// single run-once build.
package pipeline

import (
	"fmt"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/machinery-rpc/machinery/internal/codegen/generator/golang"
	"github.com/machinery-rpc/machinery/internal/codegen/generator/typescript"
	"github.com/machinery-rpc/machinery/internal/codegen/meta"
	"github.com/machinery-rpc/machinery/internal/codegen/namespace"
	"github.com/machinery-rpc/machinery/internal/codegen/scanner"
	"github.com/machinery-rpc/machinery/internal/codegen/typemap"
	"github.com/machinery-rpc/machinery/internal/log"
)

// Config is the complete build configuration.
type Config struct {
	Root             string
	Glob             string
	ExportDir        string
	BasePath         string
	CustomTypes      []string
	Header           string
	Footer           string
	Debug            bool
	Introspection    bool
	DispatchDir      string
	DispatchPackage  string
	ClientFile       string
	DispatchFile     string
	RespectGitignore bool
	Logger           *slog.Logger
}

// Pipeline accumulates configuration through chained setters and runs it with Build.
type Pipeline struct {
	cfg Config
}

// Result describes a finished build.
type Result struct {
	ClientPath   string
	DispatchPath string
	Fingerprint  string
	Services     int
	Messages     int
}

// Default returns a pipeline scanning root with the default settings.
func Default(root string) *Pipeline {
	return &Pipeline{cfg: Config{
		Root:             root,
		Glob:             scanner.DefaultGlob,
		BasePath:         meta.RootToken,
		ClientFile:       typescript.DefaultFileName,
		DispatchFile:     golang.DefaultFileName,
		RespectGitignore: true,
	}}
}

// FromConfig returns a pipeline using cfg, with unset fields defaulted.
func FromConfig(cfg Config) *Pipeline {
	p := Default(cfg.Root)
	def := p.cfg
	p.cfg = cfg
	if p.cfg.Glob == "" {
		p.cfg.Glob = def.Glob
	}
	if p.cfg.BasePath == "" {
		p.cfg.BasePath = def.BasePath
	}
	if p.cfg.ClientFile == "" {
		p.cfg.ClientFile = def.ClientFile
	}
	if p.cfg.DispatchFile == "" {
		p.cfg.DispatchFile = def.DispatchFile
	}
	return p
}

// AddFiles sets the glob, relative to the root, selecting the files to scan.
func (p *Pipeline) AddFiles(glob string) *Pipeline {
	p.cfg.Glob = glob
	return p
}

// ExportToDir sets the directory the client module is written to.
func (p *Pipeline) ExportToDir(dir string) *Pipeline {
	p.cfg.ExportDir = dir
	return p
}

// WithBasePath sets the location prefix stripped from client namespaces.
func (p *Pipeline) WithBasePath(path string) *Pipeline {
	p.cfg.BasePath = path
	return p
}

// WithCustomTypes sets extra type correspondences such as "Custom = string".
func (p *Pipeline) WithCustomTypes(types ...string) *Pipeline {
	p.cfg.CustomTypes = append([]string(nil), types...)
	return p
}

// WithCustomHeader sets text emitted at the top of the client.
func (p *Pipeline) WithCustomHeader(header string) *Pipeline {
	p.cfg.Header = header
	return p
}

// WithCustomFooter sets text emitted at the end of the client.
func (p *Pipeline) WithCustomFooter(footer string) *Pipeline {
	p.cfg.Footer = footer
	return p
}

// EnableDebugComments dumps the analysis result into the client.
func (p *Pipeline) EnableDebugComments() *Pipeline {
	p.cfg.Debug = true
	return p
}

// EnableIntrospection adds a service returning the client source.
func (p *Pipeline) EnableIntrospection() *Pipeline {
	p.cfg.Introspection = true
	return p
}

// WithDispatchDir sets the directory the dispatch file is written to.
func (p *Pipeline) WithDispatchDir(dir string) *Pipeline {
	p.cfg.DispatchDir = dir
	return p
}

// WithDispatchPackage sets the package clause of the dispatch file.
func (p *Pipeline) WithDispatchPackage(name string) *Pipeline {
	p.cfg.DispatchPackage = name
	return p
}

// WithClientFile sets the client file name.
func (p *Pipeline) WithClientFile(name string) *Pipeline {
	p.cfg.ClientFile = name
	return p
}

// WithDispatchFile sets the dispatch file name.
func (p *Pipeline) WithDispatchFile(name string) *Pipeline {
	p.cfg.DispatchFile = name
	return p
}

// RespectGitignore toggles skipping paths matched by the root .gitignore.
func (p *Pipeline) RespectGitignore(enabled bool) *Pipeline {
	p.cfg.RespectGitignore = enabled
	return p
}

// WithLogger sets the progress logger.
func (p *Pipeline) WithLogger(l *slog.Logger) *Pipeline {
	p.cfg.Logger = l
	return p
}

// Config returns a copy of the accumulated configuration.
func (p *Pipeline) Config() Config {
	cfg := p.cfg
	cfg.CustomTypes = append([]string(nil), p.cfg.CustomTypes...)
	return cfg
}

func (p *Pipeline) logger() *slog.Logger {
	if p.cfg.Logger != nil {
		return p.cfg.Logger
	}
	return log.Discard()
}

func (p *Pipeline) dispatchDir() string {
	if p.cfg.DispatchDir != "" {
		return p.cfg.DispatchDir
	}
	return p.cfg.Root
}

// Analyze scans the root, extracts every file and validates the aggregate.
func (p *Pipeline) Analyze() (*meta.AnalyzeResult, error) {
	logger := p.logger()

	opts := scanner.FileOptions{Glob: p.cfg.Glob, RespectGitignore: p.cfg.RespectGitignore}
	if rel, ok := relInside(p.cfg.Root, filepath.Join(p.dispatchDir(), p.cfg.DispatchFile)); ok {
		opts.Exclude = []string{rel}
	}

	logger.Debug("Scanning source files", "root", p.cfg.Root, "glob", p.cfg.Glob)
	files, err := scanner.Files(p.cfg.Root, opts)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.cfg.Root, err)
	}
	logger.Info("Found source files", "count", len(files))

	results := make([]*meta.AnalyzeResult, 0, len(files))
	for _, f := range files {
		r, err := scanner.ExtractFile(f)
		if err != nil {
			return nil, err
		}
		if len(r.Services) > 0 || len(r.Messages) > 0 {
			logger.Debug("Extracted declarations", "file", f.Rel, "services", len(r.Services), "messages", len(r.Messages))
		}
		results = append(results, r)
	}

	res := meta.Aggregate(results...)
	if err := res.Validate(); err != nil {
		return nil, err
	}
	if _, err := namespace.Build(res.Services, p.cfg.BasePath, false); err != nil {
		return nil, err
	}
	logger.Info("Found declarations", "services", len(res.Services), "messages", len(res.Messages))
	return res, nil
}

// Build runs the pipeline and writes the client and dispatch artifacts.
func (p *Pipeline) Build() (*Result, error) {
	if p.cfg.ExportDir == "" {
		return nil, meta.ErrMissingExportDir
	}
	logger := p.logger()

	res, err := p.Analyze()
	if err != nil {
		return nil, err
	}
	if p.cfg.Introspection {
		res.Services = append(res.Services, meta.IntrospectionServiceDecl())
		if err := res.Validate(); err != nil {
			return nil, err
		}
	}

	fingerprint, err := res.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint aggregate: %w", err)
	}
	logger.Debug("Aggregate frozen", "fingerprint", fingerprint)

	clientPath, err := typescript.Generate(logger, typescript.Options{
		ExportDir:     p.cfg.ExportDir,
		FileName:      p.cfg.ClientFile,
		BasePath:      p.cfg.BasePath,
		Header:        p.cfg.Header,
		Footer:        p.cfg.Footer,
		Debug:         p.cfg.Debug,
		Introspection: p.cfg.Introspection,
		Mapper:        typemap.New(p.cfg.CustomTypes...),
	}, res, fingerprint)
	if err != nil {
		return nil, err
	}

	again, err := res.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint aggregate: %w", err)
	}
	if again != fingerprint {
		return nil, meta.ErrAggregateMutated
	}

	pkg := p.cfg.DispatchPackage
	if pkg == "" {
		pkg = detectPackage(p.dispatchDir(), p.cfg.DispatchFile)
	}
	dispatchPath, err := golang.Generate(logger, golang.Options{
		Root:       p.cfg.Root,
		Dir:        p.dispatchDir(),
		FileName:   p.cfg.DispatchFile,
		Package:    pkg,
		ClientPath: clientPath,
	}, res, fingerprint)
	if err != nil {
		return nil, err
	}

	logger.Info("Build complete", "client", clientPath, "dispatch", dispatchPath)
	return &Result{
		ClientPath:   clientPath,
		DispatchPath: dispatchPath,
		Fingerprint:  fingerprint,
		Services:     len(res.Services),
		Messages:     len(res.Messages),
	}, nil
}

// detectPackage reads the package clause of the Go files already in dir,
// skipping tests and the dispatch file. Directories without Go files get main.
func detectPackage(dir, dispatchFile string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "main"
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".go") || strings.HasSuffix(n, "_test.go") || n == dispatchFile {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	fset := token.NewFileSet()
	for _, n := range names {
		f, err := parser.ParseFile(fset, filepath.Join(dir, n), nil, parser.PackageClauseOnly)
		if err != nil {
			continue
		}
		return f.Name.Name
	}
	return "main"
}

// relInside returns target relative to root as a slash path when it lies inside root.
func relInside(root, target string) (string, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
