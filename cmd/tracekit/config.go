package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/tracekit/resource"
	"github.com/hupe1980/tracekit/source"
	"github.com/hupe1980/tracekit/strpool"
	"github.com/hupe1980/tracekit/tracefile"
)

// Config represents the top-level configuration file.
type Config struct {
	Reader tracefile.Config `yaml:"reader"`
	Pool   PoolConfig       `yaml:"pool"`
	Limits LimitsConfig     `yaml:"limits"`
	Local  LocalConfig      `yaml:"local"`

	// Minio is required for minio:// paths.
	Minio *source.MinioConfig `yaml:"minio"`

	// Window is the number of lines per tokenizer window, 0 = unbounded.
	Window     int   `yaml:"window"`
	Decompress *bool `yaml:"decompress"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// PoolConfig sizes the string pool of each parser.
type PoolConfig struct {
	Buckets int `yaml:"buckets"`
	Pages   int `yaml:"pages"`
	MaxLen  int `yaml:"max_len"`
}

// LimitsConfig holds the limits shared by all parsers.
type LimitsConfig struct {
	MemoryBytes      int64 `yaml:"memory_bytes"`
	Workers          int64 `yaml:"workers"`
	IOBytesPerSecond int64 `yaml:"io_bytes_per_second"`
}

// LocalConfig controls how local files are read.
type LocalConfig struct {
	Root string `yaml:"root"`
	Mmap bool   `yaml:"mmap"`
}

func defaultConfig() *Config {
	return &Config{
		Limits:   LimitsConfig{Workers: 4},
		LogLevel: "warn",
	}
}

// LoadConfig reads a YAML configuration file from the specified path.
// Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	if err := c.Reader.Validate(); err != nil {
		return err
	}
	if c.Window < 0 {
		return fmt.Errorf("window must not be negative, got %d", c.Window)
	}
	if c.Limits.MemoryBytes < 0 || c.Limits.Workers < 0 || c.Limits.IOBytesPerSecond < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c *Config) poolConfig() strpool.Config {
	cfg := strpool.DefaultConfig()
	if c.Pool.Buckets != 0 {
		cfg.Buckets = c.Pool.Buckets
	}
	if c.Pool.Pages != 0 {
		cfg.Pages = c.Pool.Pages
	}
	if c.Pool.MaxLen != 0 {
		cfg.MaxLen = c.Pool.MaxLen
	}
	return cfg
}

func (c *Config) resourceConfig() resource.Config {
	return resource.Config{
		MemoryLimitBytes:   c.Limits.MemoryBytes,
		MaxWorkers:         c.Limits.Workers,
		IOLimitBytesPerSec: c.Limits.IOBytesPerSecond,
	}
}
