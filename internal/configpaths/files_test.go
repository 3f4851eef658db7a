package configpaths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserConfig(t *testing.T) {
	env := func(v string) func(string) string {
		return func(k string) string {
			if k == EnvConfig {
				return v
			}
			return ""
		}
	}
	tests := []struct {
		name   string
		args   []string
		getenv func(string) string
		want   string
	}{
		{name: "equals form", args: []string{"build", "--config=a.yaml"}, getenv: env("b.json"), want: "a.yaml"},
		{name: "separate value", args: []string{"--config", "a.toml", "build"}, getenv: env(""), want: "a.toml"},
		{name: "env fallback", args: []string{"build"}, getenv: env("b.json"), want: "b.json"},
		{name: "dangling flag", args: []string{"--config"}, getenv: env(""), want: ""},
		{name: "after terminator", args: []string{"--", "--config=x.json"}, getenv: env(""), want: ""},
		{name: "nil getenv", args: nil, getenv: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserConfig(tt.args, tt.getenv))
		})
	}
}

func TestConfigCandidatePaths(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	jsonPaths, yamlPaths, tomlPaths := ConfigCandidatePaths("custom.yml")
	require.NotEmpty(t, yamlPaths)
	assert.Equal(t, "custom.yml", yamlPaths[0])
	assert.Equal(t, filepath.Join(wd, "machinery.yaml"), yamlPaths[1])
	assert.Equal(t, filepath.Join(wd, "machinery.json"), jsonPaths[0])
	assert.Equal(t, filepath.Join(wd, "machinery.toml"), tomlPaths[0])

	if runtime.GOOS != "windows" {
		assert.Contains(t, jsonPaths, "/etc/machinery/machinery.json")
	}
}

func TestConfigCandidatePathsUnknownExtension(t *testing.T) {
	jsonPaths, _, _ := ConfigCandidatePaths("settings.conf")
	assert.Equal(t, "settings.conf", jsonPaths[0])
}

func TestDefaultConfigDirXDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG_CONFIG_HOME is not consulted on windows")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "machinery"), dir)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "yaml", Extension("yml"))
	assert.Equal(t, "yaml", Extension("YAML"))
	assert.Equal(t, "toml", Extension("toml"))
	assert.Equal(t, "json", Extension("json"))
	assert.Equal(t, "json", Extension("ini"))
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "machinery.json")
	require.NoError(t, EnsureDir(path))
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
