// Package configpaths locates machinery configuration files.
package configpaths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// BaseName is the file name, without extension, of a configuration file.
const BaseName = "machinery"

// EnvConfig names the environment variable holding an explicit config path.
const EnvConfig = "MACHINERY_CONFIG"

// DefaultConfigDir returns the platform-specific configuration directory for machinery.
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, BaseName), nil
		}
		return "", errors.New("AppData not set")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, BaseName), nil
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", BaseName), nil
		}
		return "", errors.New("HOME not set")
	}
}

// Extension returns the file extension used for a config format.
// Unknown formats fall back to json.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return "json"
	}
}

// EnsureDir ensures the directory for a given file path exists.
func EnsureDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0o755)
}

// UserConfig returns the config path given with --config in args, falling
// back to the MACHINERY_CONFIG variable read through getenv.
func UserConfig(args []string, getenv func(string) string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if getenv != nil {
		return getenv(EnvConfig)
	}
	return ""
}

// ConfigCandidatePaths builds candidate paths for config files per format,
// highest priority first: userPath, the working directory, the user config
// directory and, on unix, /etc/machinery.
// A userPath is routed to the matching loader by extension.
func ConfigCandidatePaths(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	if userPath != "" {
		switch filepath.Ext(userPath) {
		case ".yaml", ".yml":
			yamlPaths = append(yamlPaths, userPath)
		case ".toml":
			tomlPaths = append(tomlPaths, userPath)
		default:
			jsonPaths = append(jsonPaths, userPath)
		}
	}

	addDir := func(dir string) {
		jsonPaths = append(jsonPaths, filepath.Join(dir, BaseName+".json"))
		yamlPaths = append(yamlPaths, filepath.Join(dir, BaseName+".yaml"), filepath.Join(dir, BaseName+".yml"))
		tomlPaths = append(tomlPaths, filepath.Join(dir, BaseName+".toml"))
	}

	if wd, err := os.Getwd(); err == nil {
		addDir(wd)
	}
	if dir, err := DefaultConfigDir(); err == nil {
		addDir(dir)
	}
	if runtime.GOOS != "windows" {
		addDir("/etc/machinery")
	}
	return
}
