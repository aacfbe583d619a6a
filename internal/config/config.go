// Package config loads voltest configuration from JSONC files with the
// usual precedence: defaults, then the global user config, then the project
// config (or an explicit file), then CLI flag overrides applied by the
// caller.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigInvalid      = errors.New("invalid config file")

	errFileSizeNotPositive  = errors.New("file_size_max_mb must be positive")
	errBlockSizeNotPositive = errors.New("block_size_max_mb must be positive")
	errFileSizeTooSmall     = errors.New("file_size_max_mb must be larger than block_size_max_mb")
	errPrefixEmpty          = errors.New("file_prefix cannot be empty")
	errPrefixSeparator      = errors.New("file_prefix cannot contain a path separator")
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".voltest.json"

// Config holds all configuration options. Sizes are whole MiB counts so the
// tester's 1 MiB alignment requirement holds by construction.
type Config struct {
	// From config files (serialized)
	FileSizeMaxMB  int64  `json:"file_size_max_mb"`
	BlockSizeMaxMB int64  `json:"block_size_max_mb"`
	FilePrefix     string `json:"file_prefix"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

const mib = 1 << 20

// FileSizeMax returns the maximum test file size in bytes.
func (c Config) FileSizeMax() int64 { return c.FileSizeMaxMB * mib }

// BlockSizeMax returns the maximum block size in bytes.
func (c Config) BlockSizeMax() int64 { return c.BlockSizeMaxMB * mib }

// Default returns the default configuration: 512 MiB files, 16 MiB blocks.
func Default() Config {
	return Config{
		FileSizeMaxMB:  512,
		BlockSizeMaxMB: 16,
		FilePrefix:     "VOLTEST",
	}
}

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/voltest/config.json if set, otherwise
// ~/.config/voltest/config.json. Empty if neither can be determined.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "voltest", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "voltest", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDir    string            // effective working directory
	ConfigPath string            // -c/--config flag value; empty means default lookup
	Env        map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
//  1. Defaults
//  2. Global user config
//  3. Project config (.voltest.json) or explicit file via ConfigPath
//
// CLI flag overrides are applied by the caller on the returned Config, after
// which [Validate] should run again.
func Load(input LoadInput) (Config, error) {
	cfg := Default()

	globalCfg, globalLoaded, err := loadFile(globalPath(input.Env), false)
	if err != nil {
		return Config{}, err
	}

	if globalLoaded {
		cfg.Sources.Global = globalPath(input.Env)
		cfg = merge(cfg, globalCfg)
	}

	projectFile := input.ConfigPath
	mustExist := projectFile != ""

	if projectFile == "" {
		projectFile = filepath.Join(input.WorkDir, ConfigFileName)
	} else if !filepath.IsAbs(projectFile) {
		projectFile = filepath.Join(input.WorkDir, projectFile)
	}

	projectCfg, projectLoaded, err := loadFile(projectFile, mustExist)
	if err != nil {
		return Config{}, err
	}

	if projectLoaded {
		cfg.Sources.Project = projectFile
		cfg = merge(cfg, projectCfg)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadFile loads one config file. A missing file is only an error when
// mustExist is set. Returns the config and whether a file was loaded.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	if path == "" {
		return Config{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}

		return Config{}, false, nil
	}

	cfg, parseErr := parse(data)
	if parseErr != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.FileSizeMaxMB != 0 {
		base.FileSizeMaxMB = overlay.FileSizeMaxMB
	}

	if overlay.BlockSizeMaxMB != 0 {
		base.BlockSizeMaxMB = overlay.BlockSizeMaxMB
	}

	if overlay.FilePrefix != "" {
		base.FilePrefix = overlay.FilePrefix
	}

	return base
}

// Validate checks a fully merged Config, including one with CLI overrides
// applied.
func Validate(cfg Config) error {
	if cfg.FileSizeMaxMB <= 0 {
		return errFileSizeNotPositive
	}

	if cfg.BlockSizeMaxMB <= 0 {
		return errBlockSizeNotPositive
	}

	if cfg.FileSizeMaxMB <= cfg.BlockSizeMaxMB {
		return errFileSizeTooSmall
	}

	if cfg.FilePrefix == "" {
		return errPrefixEmpty
	}

	if strings.ContainsRune(cfg.FilePrefix, os.PathSeparator) {
		return errPrefixSeparator
	}

	return nil
}

// Format renders a Config as indented JSON for print-config and init-config.
func Format(cfg Config) (string, error) {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}

	return string(out), nil
}
