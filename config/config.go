// Package config loads editorbridge settings.
// Priority: CLI flags > environment > config file > defaults
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corymhall/editorbridge/bridge"
	"github.com/corymhall/editorbridge/client"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFileName is the config file looked up in the working
	// directory, without extension.
	DefaultConfigFileName = "editorbridge"

	envPrefix = "EDITORBRIDGE"
)

type Config struct {
	Bridge BridgeConfig `mapstructure:"bridge"`
	Log    LogConfig    `mapstructure:"log"`
	Client ClientConfig `mapstructure:"client"`
}

type BridgeConfig struct {
	// Addr is the loopback address the bridge binds on initialized.
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"` // debug, info, warn, error
}

type ClientConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultLogFile is where serve writes its log unless configured otherwise.
func DefaultLogFile() string {
	return filepath.Join(os.TempDir(), "editorbridge.log")
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bridge.addr", bridge.DefaultAddr)
	v.SetDefault("log.file", DefaultLogFile())
	v.SetDefault("log.level", "info")
	v.SetDefault("client.url", "http://"+bridge.DefaultAddr)
	v.SetDefault("client.timeout", client.DefaultTimeout)
}

// Load reads cfgFile, or editorbridge.yaml from the working directory when
// cfgFile is empty, into v and decodes the result. A missing default config
// file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the automation worker's variable
	_ = v.BindEnv("client.url", envPrefix+"_CLIENT_URL", client.URLEnv)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}
