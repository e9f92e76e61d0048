// Package config loads and stores basexq settings in the XDG config dir.
// Only non-secret settings are kept here; passwords go to the OS keychain.
// Environment variables override what the file says.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/cmarchand/xpath-basex-ext/internal/xdg"
)

// Environment variables read by Load.
const (
	EnvServer   = "BASEXQ_SERVER"
	EnvPort     = "BASEXQ_PORT"
	EnvUser     = "BASEXQ_USER"
	EnvPassword = "BASEXQ_PASSWORD"
	EnvLogLevel = "BASEXQ_LOG_LEVEL"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel   string     `json:"log_level"`
	Connection Connection `json:"connection"`
}

// Connection is the default server used when a command names none.
type Connection struct {
	Server string `json:"server"`
	Port   string `json:"port"`
	User   string `json:"user"`
}

// Defaults returns the settings used when no file exists.
func Defaults() Config {
	return Config{
		LogLevel:   "info",
		Connection: Connection{Server: "localhost", Port: "1984", User: "admin"},
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config file, fills unset fields with defaults and applies
// environment overrides. A missing file is not an error.
func Load() (Config, error) {
	c, err := read()
	if err != nil {
		return c, err
	}
	return c.WithEnv(os.LookupEnv), nil
}

func read() (Config, error) {
	c := Defaults()
	p, err := Path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	var fromFile Config
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return c, err
	}
	return c.merge(fromFile), nil
}

func (c Config) merge(o Config) Config {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.LogLevel, o.LogLevel)
	set(&c.Connection.Server, o.Connection.Server)
	set(&c.Connection.Port, o.Connection.Port)
	set(&c.Connection.User, o.Connection.User)
	return c
}

// WithEnv returns c with non-empty environment values applied.
func (c Config) WithEnv(lookup func(string) (string, bool)) Config {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	return c.merge(Config{
		LogLevel: get(EnvLogLevel),
		Connection: Connection{
			Server: get(EnvServer),
			Port:   get(EnvPort),
			User:   get(EnvUser),
		},
	})
}

// PasswordFromEnv returns the password set in the environment, if any.
func PasswordFromEnv() (string, bool) {
	v, ok := os.LookupEnv(EnvPassword)
	return v, ok && v != ""
}

// Save writes configuration with 0600 permissions. Environment overrides in
// effect are not written back unless they are part of c.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
