package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/machinery-rpc/machinery/internal/configpaths"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file for a specific command.
type ConfigInit struct {
	Command string `arg:"" optional:"" name:"command" help:"Command to generate config for" enum:"build,check" default:"build"`
	Format  string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to machinery.<format> in the current directory)" type:"path"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run generates a configuration template dynamically via reflection of the command structs and tags.
func (c *ConfigInit) Run() error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}

	root, err := configTemplate(c.Command, format)
	if err != nil {
		return err
	}

	dest := c.Output
	if dest == "" {
		dest = configpaths.BaseName + "." + configpaths.Extension(format)
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	var data []byte
	switch format {
	case "json":
		data, err = json.MarshalIndent(root, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(root)
	case "toml":
		data, err = toml.Marshal(root)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// configTemplate lays out defaults the way each loader resolves them. The
// JSON loader reads flat snake_case keys. The YAML and TOML loaders read
// kebab-case keys with command flags nested under the command name.
func configTemplate(command, format string) (map[string]any, error) {
	var t reflect.Type
	switch command {
	case "build", "":
		command = "build"
		t = reflect.TypeOf(Build{})
	case "check":
		t = reflect.TypeOf(Check{})
	default:
		return nil, errors.New("unknown command; expected 'build' or 'check'")
	}

	key := kebab
	if format == "json" {
		key = snake
	}
	flags := buildMapFromStruct(t, "", key)
	logField, _ := reflect.TypeOf(CLI{}).FieldByName("Log")
	root := buildMapFromStruct(logField.Type, logField.Tag.Get("prefix"), key)
	if format == "json" {
		for k, v := range flags {
			root[k] = v
		}
	} else {
		root[command] = flags
	}
	return root, nil
}

func normalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// kebab converts a Go field name to its flag name: "ExportDir" => "export-dir".
func kebab(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i, c := range r {
		if unicode.IsUpper(c) {
			if i > 0 && (unicode.IsLower(r[i-1]) || unicode.IsDigit(r[i-1]) ||
				(i+1 < len(r) && unicode.IsLower(r[i+1]) && unicode.IsUpper(r[i-1]))) {
				b.WriteByte('-')
			}
			c = unicode.ToLower(c)
		}
		b.WriteRune(c)
	}
	return b.String()
}

func snake(s string) string {
	return strings.ReplaceAll(kebab(s), "-", "_")
}

func buildMapFromStruct(t reflect.Type, prefix string, key func(string) string) map[string]any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]any{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Tag.Get("kong") == "-" {
			continue
		}
		if _, ok := f.Tag.Lookup("cmd"); ok {
			continue
		}

		if _, ok := f.Tag.Lookup("embed"); ok {
			for k, v := range buildMapFromStruct(f.Type, prefix+f.Tag.Get("prefix"), key) {
				out[k] = v
			}
			continue
		}

		def := f.Tag.Get("default")
		// kong expands an empty path to the working directory
		if f.Tag.Get("type") == "path" && def == "" {
			continue
		}
		name := f.Tag.Get("name")
		if name == "" {
			name = f.Name
		}
		val := defaultValueForField(f.Type, def, key)
		if val != nil {
			out[key(prefix+name)] = val
		}
	}
	return out
}

func defaultValueForField(t reflect.Type, def string, key func(string) string) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "time" && t.Name() == "Duration" {
		if def != "" {
			return def
		}
		return "0s"
	}
	switch t.Kind() {
	case reflect.String:
		return def
	case reflect.Bool:
		b, err := strconv.ParseBool(def)
		if err != nil {
			return false
		}
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(def, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(def, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(def, 64)
		if err != nil {
			return 0
		}
		return f
	case reflect.Slice:
		if def == "" {
			return nil
		}
		return strings.Split(def, ",")
	case reflect.Struct:
		return buildMapFromStruct(t, "", key)
	default:
		return nil
	}
}
