package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("VSCODE_BRIDGE_URL", "")
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Bridge: BridgeConfig{Addr: "127.0.0.1:48100"},
		Log:    LogConfig{File: DefaultLogFile(), Level: "info"},
		Client: ClientConfig{URL: "http://127.0.0.1:48100", Timeout: 3 * time.Second},
	}, cfg)
}

func TestConfigFile(t *testing.T) {
	t.Setenv("VSCODE_BRIDGE_URL", "")
	path := filepath.Join(t.TempDir(), "editorbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bridge:
  addr: 127.0.0.1:48200
log:
  level: debug
client:
  timeout: 10s
`), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:48200", cfg.Bridge.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
}

func TestConfigFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "editorbridge.yaml"), []byte("bridge:\n  addr: 127.0.0.1:1234\n"), 0o600))
	t.Chdir(dir)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1234", cfg.Bridge.Addr)
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "error reading config file")
}

func TestEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VSCODE_BRIDGE_URL", "http://localhost:9999")
	t.Setenv("EDITORBRIDGE_BRIDGE_ADDR", "127.0.0.1:5555")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.Client.URL)
	assert.Equal(t, "127.0.0.1:5555", cfg.Bridge.Addr)
}

func TestInvalidLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EDITORBRIDGE_LOG_LEVEL", "loud")
	_, err := Load(viper.New(), "")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
}
