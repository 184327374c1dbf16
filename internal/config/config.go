// Package config provides unified configuration management for relay.
// Configuration is loaded from multiple sources with the following
// precedence: embedded defaults → global file → env vars → local file →
// CLI flags.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/worksonmyai/relay/internal/dirs"
)

//go:embed defaults/config.yaml
var defaultsFS embed.FS

// Config holds all configuration settings for relay. Fields ending in
// *Set track whether that field was explicitly set in a given layer,
// so a local config can override the global one with zero values.
type Config struct {
	// Workflow defaults, overridable per start.
	IterationLimit int    `yaml:"iteration_limit"`
	Model          string `yaml:"model"`

	// Item discovery pattern for the expand stage.
	ItemsGlob string `yaml:"items_glob"`

	// Lines of snapshot history rendered into every instruction.
	HistoryWindow int `yaml:"history_window"`

	// Context paths included in every workflow started in this project.
	ContextPaths []string `yaml:"context_paths"`

	// Set tracking for merge behavior.
	IterationLimitSet bool `yaml:"-"`
	ModelSet          bool `yaml:"-"`
	ItemsGlobSet      bool `yaml:"-"`
	HistoryWindowSet  bool `yaml:"-"`

	globalDir string
	localDir  string
	sources   []string
}

// Sources returns the ordered list of layers that contributed values.
func (c *Config) Sources() []string { return c.sources }

// GlobalDir returns the global config directory.
func (c *Config) GlobalDir() string { return c.globalDir }

// LocalDir returns the project config directory if one was detected.
func (c *Config) LocalDir() string { return c.localDir }

// Load loads configuration for workDir, auto-detecting a .relay/ project
// directory for local overrides.
func Load(workDir string) (*Config, error) {
	localDir := ""
	if candidate := dirs.LocalDir(workDir); isDir(candidate) {
		localDir = candidate
	}
	return LoadWithDirs(dirs.ConfigDir(), localDir)
}

// LoadWithDirs loads configuration with explicit global and local
// directories. Either may be empty to skip that layer.
func LoadWithDirs(globalDir, localDir string) (*Config, error) {
	cfg, err := loadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load embedded defaults: %w", err)
	}
	cfg.sources = []string{"embedded defaults"}
	cfg.globalDir = globalDir
	cfg.localDir = localDir

	if globalDir != "" {
		if layer, ok, err := loadFile(filepath.Join(globalDir, "config.yaml")); err != nil {
			return nil, err
		} else if ok {
			cfg.merge(layer)
			cfg.sources = append(cfg.sources, "global config")
		}
	}

	if env := fromEnv(); env != nil {
		cfg.merge(env)
		cfg.sources = append(cfg.sources, "environment")
	}

	if localDir != "" {
		if layer, ok, err := loadFile(filepath.Join(localDir, "config.yaml")); err != nil {
			return nil, err
		} else if ok {
			cfg.merge(layer)
			cfg.sources = append(cfg.sources, "local config")
		}
	}

	return cfg, nil
}

// merge overlays the explicitly set fields of layer onto c.
func (c *Config) merge(layer *Config) {
	if layer.IterationLimitSet {
		c.IterationLimit = layer.IterationLimit
		c.IterationLimitSet = true
	}
	if layer.ModelSet {
		c.Model = layer.Model
		c.ModelSet = true
	}
	if layer.ItemsGlobSet {
		c.ItemsGlob = layer.ItemsGlob
		c.ItemsGlobSet = true
	}
	if layer.HistoryWindowSet {
		c.HistoryWindow = layer.HistoryWindow
		c.HistoryWindowSet = true
	}
	if len(layer.ContextPaths) > 0 {
		c.ContextPaths = layer.ContextPaths
	}
}

func loadEmbedded() (*Config, error) {
	data, err := defaultsFS.ReadFile("defaults/config.yaml")
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile reads one config layer. A missing file is not an error; the
// layer is simply skipped.
func loadFile(path string) (*Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("parse config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("parse config %s: %w", path, err)
	}

	_, cfg.IterationLimitSet = raw["iteration_limit"]
	_, cfg.ModelSet = raw["model"]
	_, cfg.ItemsGlobSet = raw["items_glob"]
	_, cfg.HistoryWindowSet = raw["history_window"]
	return &cfg, true, nil
}

// fromEnv builds a config layer from RELAY_* variables, or nil when none
// is set.
func fromEnv() *Config {
	var cfg Config
	set := false
	if v := os.Getenv("RELAY_ITERATION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IterationLimit = n
			cfg.IterationLimitSet = true
			set = true
		}
	}
	if v := os.Getenv("RELAY_MODEL"); v != "" {
		cfg.Model = v
		cfg.ModelSet = true
		set = true
	}
	if v := os.Getenv("RELAY_ITEMS_GLOB"); v != "" {
		cfg.ItemsGlob = v
		cfg.ItemsGlobSet = true
		set = true
	}
	if v := os.Getenv("RELAY_HISTORY_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryWindow = n
			cfg.HistoryWindowSet = true
			set = true
		}
	}
	if !set {
		return nil
	}
	return &cfg
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
