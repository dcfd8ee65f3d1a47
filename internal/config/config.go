// Package config loads multipass configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	// LocalID is the local participant id. When empty it is read from, or
	// created in, LocalIDFile.
	LocalID     string `mapstructure:"local_id"`
	LocalIDFile string `mapstructure:"local_id_file"`

	Log          LogConfig          `mapstructure:"log"`
	Messages     MessagesConfig     `mapstructure:"messages"`
	LocalPlayers LocalPlayersConfig `mapstructure:"local_players"`
	Mesh         MeshConfig         `mapstructure:"mesh"`
	Group        GroupConfig        `mapstructure:"group"`
	Relay        RelayConfig        `mapstructure:"relay"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MessagesConfig selects the payload codec: json or cbor.
type MessagesConfig struct {
	Codec string `mapstructure:"codec"`
}

// LocalPlayersConfig caps the players on this device. A zero limit disables
// that input.
type LocalPlayersConfig struct {
	Touchscreen int `mapstructure:"touchscreen"`
	Controllers int `mapstructure:"controllers"`
}

// MeshConfig enables the LAN mesh when ServiceName is set.
type MeshConfig struct {
	ServiceName      string `mapstructure:"service_name"`
	Addr             string `mapstructure:"addr"`
	Listening        string `mapstructure:"listening"` // always or manual
	DisableDiscovery bool   `mapstructure:"disable_discovery"`
}

// GroupConfig enables a relay-backed group session when Session is set.
type GroupConfig struct {
	RelayAddr string `mapstructure:"relay_addr"`
	Session   string `mapstructure:"session"`
	Secret    string `mapstructure:"secret"`
}

// RelayConfig is read by the relay binary.
type RelayConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig serves /metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns a Config populated with defaults: one touchscreen player,
// no controllers, no mesh, no group session.
func Default() *Config {
	return &Config{
		LocalIDFile: "./data/local_id",
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/multipass.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Messages:     MessagesConfig{Codec: "json"},
		LocalPlayers: LocalPlayersConfig{Touchscreen: 1},
		Mesh:         MeshConfig{Addr: ":0", Listening: "always"},
		Relay:        RelayConfig{Addr: ":6121"},
	}
}

// Load reads configuration from path (if non-empty), otherwise it searches
// common locations. Environment variables use the prefix MULTIPASS with `.`
// and `-` replaced by `_`, e.g. MULTIPASS_MESH_SERVICE_NAME=_party._udp.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MULTIPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("local_id", cfg.LocalID)
	v.SetDefault("local_id_file", cfg.LocalIDFile)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("messages.codec", cfg.Messages.Codec)
	v.SetDefault("local_players.touchscreen", cfg.LocalPlayers.Touchscreen)
	v.SetDefault("local_players.controllers", cfg.LocalPlayers.Controllers)
	v.SetDefault("mesh.service_name", cfg.Mesh.ServiceName)
	v.SetDefault("mesh.addr", cfg.Mesh.Addr)
	v.SetDefault("mesh.listening", cfg.Mesh.Listening)
	v.SetDefault("mesh.disable_discovery", cfg.Mesh.DisableDiscovery)
	v.SetDefault("group.relay_addr", cfg.Group.RelayAddr)
	v.SetDefault("group.session", cfg.Group.Session)
	v.SetDefault("group.secret", cfg.Group.Secret)
	v.SetDefault("relay.addr", cfg.Relay.Addr)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	if path == "" {
		if envPath := os.Getenv("MULTIPASS_CONFIG"); envPath != "" {
			path = envPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("multipass")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".multipass"))
		}
	}

	// a missing config file is fine; defaults and env still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	c.Messages.Codec = strings.ToLower(strings.TrimSpace(c.Messages.Codec))
	switch c.Messages.Codec {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("invalid messages.codec: %q", c.Messages.Codec)
	}

	if c.LocalPlayers.Touchscreen < 0 || c.LocalPlayers.Controllers < 0 {
		return errors.New("local_players limits must not be negative")
	}

	c.Mesh.Listening = strings.ToLower(strings.TrimSpace(c.Mesh.Listening))
	switch c.Mesh.Listening {
	case "":
		c.Mesh.Listening = "always"
	case "always", "manual":
	default:
		return fmt.Errorf("invalid mesh.listening: %q", c.Mesh.Listening)
	}

	if c.Group.Session != "" && c.Group.RelayAddr == "" {
		return errors.New("group.session requires group.relay_addr")
	}
	return nil
}
