package cmd

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/machinery-rpc/machinery/internal/log"
)

// CLI is the root command line of the machinery binary.
type CLI struct {
	Version    kong.VersionFlag `help:"Print the version and exit"`
	ConfigFile string           `name:"config" help:"Configuration file (json, yaml or toml)" type:"path" env:"MACHINERY_CONFIG"`
	Log        Log              `embed:"" prefix:"log-"`

	Build  Build         `cmd:"" help:"Generate the TypeScript client and the Go dispatch file"`
	Check  Check         `cmd:"" help:"Scan and validate declarations without writing anything"`
	Config ConfigCommand `cmd:"" help:"Manage configuration files"`
}

// Log holds the logging flags shared by every command.
type Log struct {
	Level  string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"MACHINERY_LOG_LEVEL"`
	Format string `help:"Log output format" enum:"text,json" default:"text" env:"MACHINERY_LOG_FORMAT"`
	File   string `help:"Also write logs to this file" type:"path" env:"MACHINERY_LOG_FILE"`
}

// Execute runs the parsed command with the logger described by the Log flags.
// Log files are closed before it returns, so callers may exit on the error.
func (c *CLI) Execute(kctx *kong.Context) (err error) {
	logger, closers, err := log.SetupLogger(log.Options{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		File:   c.Log.File,
	})
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() {
		for _, cl := range closers {
			if cerr := cl.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close log file: %w", cerr)
			}
		}
	}()

	kctx.Bind(logger)
	return kctx.Run()
}
