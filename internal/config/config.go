// Package config loads resmerge.hcl, applies environment overrides and
// turns the result into a store and a host with its mounts.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/agentic-research/resmerge/api"
	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

const (
	DefaultFile = "resmerge.hcl"

	EnvConfig   = "RESMERGE_CONFIG"
	EnvStoreDSN = "RESMERGE_STORE_DSN"
	EnvLogLevel = "RESMERGE_LOG_LEVEL"

	EnvS3AccessKey = "RESMERGE_S3_ACCESS_KEY"
	EnvS3SecretKey = "RESMERGE_S3_SECRET_KEY"
)

var (
	ErrNoMounts   = errors.New("no mounts configured")
	ErrBadDriver  = errors.New("unknown store driver")
	ErrBadMount   = errors.New("invalid mount")
	ErrNoStoreDSN = errors.New("store driver requires a dsn")
	ErrNoS3       = errors.New("s3 driver requires an s3 block")
)

// Drivers lists the accepted store drivers.
var Drivers = []string{"memory", "sqlite", "postgres", "dir", "s3"}

// LoadDotEnv reads KEY=value pairs from file into the environment. A
// missing file is not an error, and variables already set win.
func LoadDotEnv(file string) error {
	err := godotenv.Load(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ResolvePath picks the configuration file: flag, then RESMERGE_CONFIG,
// then DefaultFile.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	return DefaultFile
}

// Load reads and decodes the file at path, applies the environment and
// validates the result.
func Load(ctx context.Context, path string) (*api.Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(ctx, src, path)
}

// LoadBytes decodes src as HCL. filename only labels diagnostics.
func LoadBytes(ctx context.Context, src []byte, filename string) (*api.Config, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var cfg api.Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	ApplyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	logger.Debug("config loaded", "file", filename, "driver", cfg.Store.Driver, "mounts", len(cfg.Mounts))
	return &cfg, nil
}

// ApplyEnv overrides file settings with RESMERGE_* variables.
func ApplyEnv(cfg *api.Config, getenv func(string) string) {
	if dsn := getenv(EnvStoreDSN); dsn != "" {
		if cfg.Store == nil {
			cfg.Store = &api.StoreConfig{}
		}
		cfg.Store.DSN = dsn
	}
	if lvl := getenv(EnvLogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	if cfg.Store != nil && cfg.Store.S3 != nil {
		if v := getenv(EnvS3AccessKey); v != "" {
			cfg.Store.S3.AccessKey = v
		}
		if v := getenv(EnvS3SecretKey); v != "" {
			cfg.Store.S3.SecretKey = v
		}
	}
}

func applyDefaults(cfg *api.Config) {
	if cfg.Store == nil {
		cfg.Store = &api.StoreConfig{}
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks the driver and the mounts. A configuration needs at
// least one mount or a virtual root.
func Validate(cfg *api.Config) error {
	if cfg.Store == nil || !validDriver(cfg.Store.Driver) {
		driver := ""
		if cfg.Store != nil {
			driver = cfg.Store.Driver
		}
		return fmt.Errorf("%w %q (want one of %s)", ErrBadDriver, driver, strings.Join(Drivers, ", "))
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver != "memory" {
		return fmt.Errorf("%w: %s", ErrNoStoreDSN, cfg.Store.Driver)
	}
	if cfg.Store.Driver == "s3" && cfg.Store.S3 == nil {
		return ErrNoS3
	}
	if len(cfg.Mounts) == 0 && cfg.VirtualRoot == "" {
		return ErrNoMounts
	}

	seen := make(map[string]bool)
	if cfg.VirtualRoot != "" {
		root := pathutil.Normalize("/" + cfg.VirtualRoot)
		if root == "/" {
			return fmt.Errorf("%w: virtual_root cannot be /", ErrBadMount)
		}
		seen[root] = true
	}
	for _, m := range cfg.Mounts {
		root := pathutil.Normalize("/" + m.Root)
		switch {
		case root == "/":
			return fmt.Errorf("%w %q: cannot mount at /", ErrBadMount, m.Root)
		case seen[root]:
			return fmt.Errorf("%w %q: mounted twice", ErrBadMount, m.Root)
		case m.UseSearchPaths && len(m.BasePaths) > 0:
			return fmt.Errorf("%w %q: base_paths and use_search_paths are exclusive", ErrBadMount, m.Root)
		case !m.UseSearchPaths && len(m.BasePaths) == 0:
			return fmt.Errorf("%w %q: no base_paths", ErrBadMount, m.Root)
		}
		seen[root] = true
	}
	return nil
}

func validDriver(d string) bool {
	for _, known := range Drivers {
		if d == known {
			return true
		}
	}
	return false
}
