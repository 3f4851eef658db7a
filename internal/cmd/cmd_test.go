package cmd

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinery-rpc/machinery/internal/codegen/meta"
	"github.com/machinery-rpc/machinery/internal/log"
)

const greetingGo = `package api

import "context"

//machinery:message
type Greeting struct {
	Message string ` + "`json:\"message\"`" + `
}

//machinery:service
func Hello(ctx context.Context, name string) (Greeting, error) {
	return Greeting{Message: "Hello, " + name}, nil
}
`

func newParser(t *testing.T, cli *CLI, opts ...kong.Option) *kong.Kong {
	t.Helper()
	opts = append([]kong.Option{
		kong.Name("machinery"),
		kong.Exit(func(code int) { t.Fatalf("unexpected exit %d", code) }),
	}, opts...)
	parser, err := kong.New(cli, opts...)
	require.NoError(t, err)
	return parser
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/demo\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "api"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "api", "greeting.go"), []byte(greetingGo), 0o644))
	return root
}

func TestBuildFlags(t *testing.T) {
	var cli CLI
	out := t.TempDir()
	kctx, err := newParser(t, &cli).Parse([]string{
		"--log-level", "debug",
		"build",
		"--export-dir", out,
		"--custom-type", "UserId = string",
		"--custom-type", "Money = number",
		"--no-gitignore",
		"--introspection",
		"--base-path", "root::api",
	})
	require.NoError(t, err)
	assert.Equal(t, "build", kctx.Command())
	assert.Equal(t, "debug", cli.Log.Level)

	cfg := cli.Build.Pipeline(log.Discard()).Config()
	assert.Equal(t, out, cfg.ExportDir)
	assert.Equal(t, []string{"UserId = string", "Money = number"}, cfg.CustomTypes)
	assert.False(t, cfg.RespectGitignore)
	assert.True(t, cfg.Introspection)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "root::api", cfg.BasePath)
	assert.Equal(t, "**/*.go", cfg.Glob)
	assert.Equal(t, "index.ts", cfg.ClientFile)
	assert.Equal(t, "machinery_gen.go", cfg.DispatchFile)
}

func TestBuildDefaults(t *testing.T) {
	var cli CLI
	_, err := newParser(t, &cli).Parse([]string{"build"})
	require.NoError(t, err)
	assert.True(t, cli.Build.Gitignore)
	assert.Equal(t, "root", cli.Build.BasePath)
	assert.Equal(t, "info", cli.Log.Level)
	assert.Equal(t, "text", cli.Log.Format)
}

func TestBuildRun(t *testing.T) {
	root := writeProject(t)
	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{
		"build", "--root", root, "--export-dir", filepath.Join(root, "bindings"),
	})
	require.NoError(t, err)
	require.NoError(t, kctx.Run(log.Discard()))

	assert.FileExists(t, filepath.Join(root, "bindings", "index.ts"))
	assert.FileExists(t, filepath.Join(root, "machinery_gen.go"))
}

func TestBuildRunWithoutExportDir(t *testing.T) {
	root := writeProject(t)
	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{"build", "--root", root})
	require.NoError(t, err)
	assert.Error(t, kctx.Run(log.Discard()))
	assert.NoFileExists(t, filepath.Join(root, "machinery_gen.go"))
}

func TestCheckRun(t *testing.T) {
	root := writeProject(t)
	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{"check", "--root", root})
	require.NoError(t, err)
	assert.Equal(t, "check", kctx.Command())
	require.NoError(t, kctx.Run(log.Discard()))
	assert.NoFileExists(t, filepath.Join(root, "machinery_gen.go"))

	require.NoError(t, os.WriteFile(filepath.Join(root, "api", "broken.go"), []byte("package api\n\nfunc {"), 0o644))
	kctx, err = newParser(t, &cli).Parse([]string{"check", "--root", root})
	require.NoError(t, err)
	assert.Error(t, kctx.Run(log.Discard()))
}

func TestJSONConfigIsResolved(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "generated")
	path := filepath.Join(dir, "machinery.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "log_level": "warn",
  "export_dir": "`+filepath.ToSlash(out)+`",
  "dispatch_package": "server",
  "debug": true
}`), 0o644))

	var cli CLI
	_, err := newParser(t, &cli, kong.Configuration(kong.JSON, path)).Parse([]string{"build", "--debug=false"})
	require.NoError(t, err)
	assert.Equal(t, "warn", cli.Log.Level)
	assert.Equal(t, out, cli.Build.ExportDir)
	assert.Equal(t, "server", cli.Build.DispatchPackage)
	// flags override config values
	assert.False(t, cli.Build.Debug)
}

// openDescriptors lists the descriptors of this process that refer to path.
func openDescriptors(t *testing.T, path string) []string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("reads the descriptor table from /proc")
	}
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name())); err == nil && target == path {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestExecuteClosesLogFile(t *testing.T) {
	tests := []struct {
		name   string
		broken bool
	}{
		{name: "success"},
		{name: "command error", broken: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t)
			if tt.broken {
				require.NoError(t, os.WriteFile(filepath.Join(root, "api", "broken.go"), []byte("package api\n\nfunc {"), 0o644))
			}
			dir, err := filepath.EvalSymlinks(t.TempDir())
			require.NoError(t, err)
			logFile := filepath.Join(dir, "machinery.log")

			var cli CLI
			kctx, err := newParser(t, &cli).Parse([]string{"--log-file", logFile, "--log-level", "debug", "check", "--root", root})
			require.NoError(t, err)

			err = cli.Execute(kctx)
			if tt.broken {
				var perr *meta.ParseError
				require.ErrorAs(t, err, &perr)
			} else {
				require.NoError(t, err)
			}
			assert.Empty(t, openDescriptors(t, logFile))

			b, err := os.ReadFile(logFile)
			require.NoError(t, err)
			assert.Contains(t, string(b), "Scanning source files")
		})
	}
}

func TestExecuteRejectsUnknownLogFormat(t *testing.T) {
	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{"check", "--root", writeProject(t)})
	require.NoError(t, err)
	cli.Log.Format = "xml"
	assert.ErrorContains(t, cli.Execute(kctx), "setup logger")
}
