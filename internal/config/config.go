// Package config provides configuration for the empbench binary.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arkilian/empbench/pkg/types"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "EMPBENCH_"

// Config holds the configuration for all empbench modes.
type Config struct {
	// Store selects the relational engine and how to reach it
	Store StoreConfig `json:"store" yaml:"store"`

	// Generate controls synthetic data generation and bulk loading
	Generate GenerateConfig `json:"generate" yaml:"generate"`

	// Benchmark controls the index benchmark
	Benchmark BenchmarkConfig `json:"benchmark" yaml:"benchmark"`

	// Log controls logging output
	Log LogConfig `json:"log" yaml:"log"`
}

// StoreConfig holds database connection configuration.
type StoreConfig struct {
	// Driver is one of: sqlite3, sqlite, pgx, postgres, mysql
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the driver-specific data source name (a file path for SQLite)
	DSN string `json:"dsn" yaml:"dsn"`

	// MaxOpenConns caps the pool; SQLite is always held to one connection
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`
}

// GenerateConfig holds data generation configuration.
type GenerateConfig struct {
	// RandomCount is the number of uniformly random records
	RandomCount int `json:"random_count" yaml:"random_count"`

	// TargetedCount is the number of records matching the benchmark predicate
	TargetedCount int `json:"targeted_count" yaml:"targeted_count"`

	// Seed makes generation reproducible; 0 seeds from the clock
	Seed int64 `json:"seed" yaml:"seed"`

	// ChunkSize is the number of rows per multi-row INSERT statement
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
}

// BenchmarkConfig holds benchmark configuration.
type BenchmarkConfig struct {
	// NamePrefix is the full_name prefix of the benchmark predicate
	NamePrefix string `json:"name_prefix" yaml:"name_prefix"`

	// Gender is the gender of the benchmark predicate
	Gender string `json:"gender" yaml:"gender"`

	// Repeat is the number of timed executions per phase
	Repeat int `json:"repeat" yaml:"repeat"`

	// ResetIndexes drops the benchmark indexes before the unindexed phase.
	// When off, a run refuses to start while any of them exists.
	ResetIndexes bool `json:"reset_indexes" yaml:"reset_indexes"`

	// PrintRows prints the matched records after each phase
	PrintRows bool `json:"print_rows" yaml:"print_rows"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is json or console
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration: a local SQLite file,
// 1,000,000 random and 100 targeted records.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:       "sqlite3",
			DSN:          filepath.Join(".", "data", "empbench.db"),
			MaxOpenConns: 4,
		},
		Generate: GenerateConfig{
			RandomCount:   1000000,
			TargetedCount: 100,
			Seed:          0,
			ChunkSize:     1000,
		},
		Benchmark: BenchmarkConfig{
			NamePrefix:   "F",
			Gender:       "Male",
			Repeat:       1,
			ResetIndexes: true,
			PrintRows:    false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite3", "sqlite", "pgx", "postgres", "mysql":
		// Valid drivers
	default:
		return fmt.Errorf("invalid store driver: %q (must be sqlite3, sqlite, pgx, postgres or mysql)", c.Store.Driver)
	}

	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}

	if c.Generate.RandomCount < 0 || c.Generate.TargetedCount < 0 {
		return fmt.Errorf("generate counts must not be negative, got random=%d targeted=%d",
			c.Generate.RandomCount, c.Generate.TargetedCount)
	}

	if c.Generate.ChunkSize <= 0 {
		return fmt.Errorf("generate.chunk_size must be positive, got %d", c.Generate.ChunkSize)
	}

	// An empty prefix would match every record of the gender
	if c.Benchmark.NamePrefix == "" {
		return fmt.Errorf("benchmark.name_prefix is required")
	}

	if _, err := types.ParseGender(c.Benchmark.Gender); err != nil {
		return fmt.Errorf("benchmark.gender must be Male or Female, got %q: %w", c.Benchmark.Gender, err)
	}

	if c.Benchmark.Repeat < 1 {
		return fmt.Errorf("benchmark.repeat must be at least 1, got %d", c.Benchmark.Repeat)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or console)", c.Log.Format)
	}

	return nil
}

// IsSQLite reports whether the configured driver is one of the SQLite drivers.
func (c *Config) IsSQLite() bool {
	return c.Store.Driver == "sqlite3" || c.Store.Driver == "sqlite"
}

// EnsureDirectories creates the parent directory of a file-backed SQLite store.
func (c *Config) EnsureDirectories() error {
	if !c.IsSQLite() || c.Store.DSN == ":memory:" || strings.HasPrefix(c.Store.DSN, "file:") {
		return nil
	}
	dir := filepath.Dir(c.Store.DSN)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromEnv applies EMPBENCH_* environment variables to cfg.
// Malformed numeric values are reported instead of silently ignored.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv(EnvPrefix + "DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv(EnvPrefix + "DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if err := envInt("MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns); err != nil {
		return err
	}

	if err := envInt("RANDOM_COUNT", &cfg.Generate.RandomCount); err != nil {
		return err
	}
	if err := envInt("TARGETED_COUNT", &cfg.Generate.TargetedCount); err != nil {
		return err
	}
	if err := envInt("CHUNK_SIZE", &cfg.Generate.ChunkSize); err != nil {
		return err
	}
	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSEED %q: %w", EnvPrefix, v, err)
		}
		cfg.Generate.Seed = seed
	}

	if v := os.Getenv(EnvPrefix + "NAME_PREFIX"); v != "" {
		cfg.Benchmark.NamePrefix = v
	}
	if v := os.Getenv(EnvPrefix + "GENDER"); v != "" {
		cfg.Benchmark.Gender = v
	}
	if err := envInt("REPEAT", &cfg.Benchmark.Repeat); err != nil {
		return err
	}
	if v := os.Getenv(EnvPrefix + "RESET_INDEXES"); v != "" {
		cfg.Benchmark.ResetIndexes = v == "true" || v == "1"
	}

	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err)
	}
	*dst = n
	return nil
}
