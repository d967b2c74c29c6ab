// Package config loads server configuration from a YAML file, falling back
// to safe defaults when the file is absent.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all server-wide settings.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Game      GameConfig      `yaml:"game"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// DataDir holds the account store and JWT signing key.
	DataDir string `yaml:"data_dir"`
}

type WebSocketConfig struct {
	// Path is the upgrade route. Requests to other paths are left for
	// other handlers.
	Path string `yaml:"path"`

	// AllowedOrigins lists origins allowed to connect. Empty enforces
	// same-origin; "*" allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize caps inbound message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

type GameConfig struct {
	// TickHz is the enemy AI simulation rate.
	TickHz int `yaml:"tick_hz"`
}

type LogConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"` // "text" or "json"
	File           string `yaml:"file"`   // empty disables file logging
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			DataDir: "data",
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			AllowedOrigins: []string{},
			MaxMessageSize: 4096,
		},
		Game: GameConfig{
			TickHz: 5,
		},
		Log: LogConfig{
			Level:          "INFO",
			Format:         "text",
			FileMaxSizeMB:  10,
			FileMaxBackups: 3,
			FileMaxAgeDays: 28,
		},
	}
}

// Load reads configuration from path. A missing file yields defaults; a
// malformed file yields defaults plus the parse error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// IsOriginAllowed reports whether origin may open a websocket, given the
// request's Host header.
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")
	return originHost == requestHost
}
