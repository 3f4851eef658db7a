package cmd

import (
	"fmt"
	"log/slog"

	"github.com/machinery-rpc/machinery/internal/codegen/pipeline"
)

// Source selects the declarations to scan.
type Source struct {
	Root      string `help:"Source root to scan" default:"." type:"path" env:"MACHINERY_ROOT"`
	Glob      string `help:"Glob, relative to the root, selecting the files to scan" default:"**/*.go" env:"MACHINERY_GLOB"`
	BasePath  string `help:"Location prefix stripped from client namespaces" default:"root" env:"MACHINERY_BASE_PATH"`
	Gitignore bool   `help:"Skip paths matched by the root .gitignore" default:"true" negatable:"" env:"MACHINERY_GITIGNORE"`
}

func (s Source) pipeline(logger *slog.Logger) *pipeline.Pipeline {
	return pipeline.Default(s.Root).
		AddFiles(s.Glob).
		WithBasePath(s.BasePath).
		RespectGitignore(s.Gitignore).
		WithLogger(logger)
}

// Build runs the full pipeline.
type Build struct {
	Source `embed:""`

	ExportDir       string   `help:"Directory the TypeScript client is written to" type:"path" env:"MACHINERY_EXPORT_DIR"`
	ClientFile      string   `help:"Client file name" default:"index.ts" env:"MACHINERY_CLIENT_FILE"`
	CustomTypes     []string `name:"custom-type" help:"Extra client type, e.g. 'UserId = string' (repeatable)" sep:"none" env:"MACHINERY_CUSTOM_TYPES"`
	Header          string   `help:"Text emitted at the top of the client" env:"MACHINERY_HEADER"`
	Footer          string   `help:"Text emitted at the end of the client" env:"MACHINERY_FOOTER"`
	Debug           bool     `help:"Dump the analysis result as a comment into the client" env:"MACHINERY_DEBUG"`
	Introspection   bool     `help:"Add a service returning the client source" env:"MACHINERY_INTROSPECTION"`
	DispatchDir     string   `help:"Directory of the Go dispatch file (defaults to the root)" type:"path" env:"MACHINERY_DISPATCH_DIR"`
	DispatchPackage string   `help:"Package clause of the dispatch file (detected when empty)" env:"MACHINERY_DISPATCH_PACKAGE"`
	DispatchFile    string   `help:"Dispatch file name" default:"machinery_gen.go" env:"MACHINERY_DISPATCH_FILE"`
}

// Pipeline returns the configured pipeline for this invocation.
func (b *Build) Pipeline(logger *slog.Logger) *pipeline.Pipeline {
	p := b.Source.pipeline(logger).
		ExportToDir(b.ExportDir).
		WithClientFile(b.ClientFile).
		WithCustomTypes(b.CustomTypes...).
		WithCustomHeader(b.Header).
		WithCustomFooter(b.Footer).
		WithDispatchDir(b.DispatchDir).
		WithDispatchPackage(b.DispatchPackage).
		WithDispatchFile(b.DispatchFile)
	if b.Debug {
		p = p.EnableDebugComments()
	}
	if b.Introspection {
		p = p.EnableIntrospection()
	}
	return p
}

// Run is called by Kong when the build command is executed.
func (b *Build) Run(logger *slog.Logger) error {
	logger.Info("Starting machinery build", "root", b.Root, "export", b.ExportDir)
	res, err := b.Pipeline(logger).Build()
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	logger.Info("Wrote bindings",
		"services", res.Services,
		"messages", res.Messages,
		"client", res.ClientPath,
		"dispatch", res.DispatchPath,
		"fingerprint", res.Fingerprint,
	)
	return nil
}

// Check validates declarations without emitting.
type Check struct {
	Source `embed:""`
}

// Run is called by Kong when the check command is executed.
func (c *Check) Run(logger *slog.Logger) error {
	res, err := c.pipeline(logger).Analyze()
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	fp, err := res.Fingerprint()
	if err != nil {
		return err
	}
	logger.Info("Declarations valid", "services", len(res.Services), "messages", len(res.Messages), "fingerprint", fp)
	return nil
}
