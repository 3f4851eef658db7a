package main

import (
	"os"

	"github.com/machinery-rpc/machinery/internal/cmd"
	"github.com/machinery-rpc/machinery/internal/codegen/common"
	"github.com/machinery-rpc/machinery/internal/configpaths"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

func main() {
	userCfg := configpaths.UserConfig(os.Args[1:], os.Getenv)
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	version, err := common.GetVersion()
	if err != nil {
		version = common.Version
	}

	var cli cmd.CLI
	ctx := kong.Parse(&cli,
		kong.Name("machinery"),
		kong.Description("Typed TypeScript bindings and Go dispatch for annotated Go functions"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		// Load configuration from JSON/YAML/TOML in priority order; flags/env override config values.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	ctx.FatalIfErrorf(cli.Execute(ctx))
}
