package app

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds runtime wiring options. Values from config.toml in the
// home directory are defaults; CLI flags override them.
type Config struct {
	Home     string `toml:"-"`
	RelayURL string `toml:"relay_url"`
	History  bool   `toml:"history"`
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the built-in defaults for home.
func DefaultConfig(home string) Config {
	return Config{
		Home:     home,
		RelayURL: "http://127.0.0.1:8080",
		History:  false,
		LogLevel: "warn",
	}
}

// LoadConfig reads config.toml under home over the defaults. A missing
// file is not an error.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig(home)
	path := filepath.Join(home, "config.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
