package app

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig defines how the broker backend should run. Values come from
// the environment; flags layered on top by the entrypoints win.
type ServerConfig struct {
	Addr            string        `env:"COLLABBOARD_ADDR" envDefault:":8080"`
	DBPath          string        `env:"COLLABBOARD_DB_PATH"`
	EvictionGrace   time.Duration `env:"COLLABBOARD_EVICTION_GRACE" envDefault:"30m"`
	JanitorInterval time.Duration `env:"COLLABBOARD_JANITOR_INTERVAL" envDefault:"1m"`
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL string `env:"COLLABBOARD_SERVER" envDefault:"http://localhost:8080"`
	Username  string `env:"COLLABBOARD_USER"`
	RoomCode  string
}

// LoadServerConfig parses the environment into a ServerConfig.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadClientConfig parses the environment into a ClientConfig.
func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file,
// used by local mode; the standalone server stays memory-only unless told
// otherwise.
func DefaultDBPath() string {
	if v := os.Getenv("COLLABBOARD_DB_PATH"); v != "" {
		return v
	}
	if v := os.Getenv("COLLABBOARD_DATA_DIR"); v != "" {
		return filepath.Join(v, "collabboard.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "collabboard", "collabboard.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "CollabBoard", "collabboard.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "CollabBoard", "collabboard.db")
		}
		return filepath.Join(home, ".local", "share", "collabboard", "collabboard.db")
	}
	return filepath.Join(".", ".collabboard", "collabboard.db")
}
