// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.tada/config.toml)
// 3. Project config file (./todo.toml, then ./.todo.toml)
// 4. An explicit file passed with --config
// 5. Environment variables (TADA_*)
// 6. CLI flags, applied by the caller
//
// Each level overrides the previous one.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/program"
)

const (
	BackendMemory   = "memory"
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	DefaultBackend   = BackendJSON
	DefaultStorePath = "ledger.json"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultTheme     = "classic"

	userDirName    = ".tada"
	userConfigName = "config.toml"
)

var projectConfigNames = []string{"todo.toml", ".todo.toml"}

type Config struct {
	// Program is the base58 program address; empty selects program.DefaultID.
	Program     string      `toml:"program"`
	KeypairPath string      `toml:"keypair_path"`
	Store       StoreConfig `toml:"store"`
	Log         LogConfig   `toml:"log"`
	UI          UIConfig    `toml:"ui"`
}

type StoreConfig struct {
	Backend string `toml:"backend"`
	// Path is the ledger file for json and the database file for sqlite.
	Path string `toml:"path"`
	// DSN is the postgres connection string.
	DSN string `toml:"dsn"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type UIConfig struct {
	Theme string `toml:"theme"`
	Group bool   `toml:"group"`
}

func Defaults() *Config {
	return &Config{
		Store: StoreConfig{Backend: DefaultBackend, Path: DefaultStorePath},
		Log:   LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		UI:    UIConfig{Theme: DefaultTheme},
	}
}

// Load resolves the configuration. explicit, when set, must exist.
func Load(explicit string) (*Config, error) {
	cfg := Defaults()

	if p := findUserConfigFile(); p != "" {
		if err := loadConfigFile(cfg, p); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", p, err)
		}
	}
	if p := findProjectConfigFile(); p != "" {
		if err := loadConfigFile(cfg, p); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", p, err)
		}
	}
	if explicit != "" {
		if err := loadConfigFile(cfg, expandPath(explicit)); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", explicit, err)
		}
	}

	loadFromEnv(cfg)
	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	set := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	set("TADA_PROGRAM", &cfg.Program)
	set("TADA_KEYPAIR_PATH", &cfg.KeypairPath)
	set("TADA_STORE", &cfg.Store.Backend)
	set("TADA_STORE_PATH", &cfg.Store.Path)
	set("TADA_DSN", &cfg.Store.DSN)
	set("TADA_LOG_LEVEL", &cfg.Log.Level)
	set("TADA_LOG_FORMAT", &cfg.Log.Format)
	set("TADA_THEME", &cfg.UI.Theme)
}

// Finalize validates the merged values and makes paths absolute. Call it
// after flags are applied.
func (c *Config) Finalize() error {
	switch c.Store.Backend {
	case BackendMemory, BackendJSON, BackendSQLite:
	case BackendPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want memory, json, sqlite or postgres)", c.Store.Backend)
	}
	if _, err := c.ProgramID(); err != nil {
		return err
	}

	c.KeypairPath = expandPath(c.KeypairPath)
	c.Store.Path = expandPath(c.Store.Path)
	if c.Store.Path != "" && !filepath.IsAbs(c.Store.Path) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		c.Store.Path = filepath.Join(wd, c.Store.Path)
	}
	return nil
}

func (c *Config) ProgramID() (address.Address, error) {
	if c.Program == "" {
		return program.DefaultID, nil
	}
	id, err := address.Parse(c.Program)
	if err != nil {
		return address.Zero, fmt.Errorf("program %q: %w", c.Program, err)
	}
	return id, nil
}

// Write renders c as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func findUserConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, userDirName, userConfigName)
	if fileExists(p) {
		return p
	}
	return ""
}

func findProjectConfigFile() string {
	for _, name := range projectConfigNames {
		if fileExists(name) {
			return name
		}
	}
	return ""
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// expandPath expands ~ and environment variables.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	expanded := os.ExpandEnv(p)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") ||
		(runtime.GOOS == "windows" && strings.HasPrefix(expanded, "~\\")) {
		home, err := os.UserHomeDir()
		if err != nil {
			return expanded
		}
		if expanded == "~" {
			return home
		}
		return filepath.Join(home, expanded[2:])
	}
	return expanded
}
