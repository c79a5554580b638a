// Package config loads the agent configuration: defaults, then a TOML
// file, then environment variables (env wins). A .env file in the working
// directory is folded into the environment before overrides are read.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Model     ModelConfig     `toml:"model"`
	Database  DatabaseConfig  `toml:"database"`
	Execution ExecutionConfig `toml:"execution"`
	Context   ContextConfig   `toml:"context"`
	Indexer   IndexerConfig   `toml:"indexer"`
	Observer  ObserverConfig  `toml:"observer"`
	Debug     bool            `toml:"debug"`
}

type ModelConfig struct {
	Endpoint    string  `toml:"endpoint"`
	Name        string  `toml:"name"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type DatabaseConfig struct {
	DBPath string `toml:"db_path"`
}

type ExecutionConfig struct {
	AutoContinue bool   `toml:"auto_continue"`
	TestCommand  string `toml:"test_command"`
}

type ContextConfig struct {
	MaxSummaries    int  `toml:"max_summaries"`
	RelevanceFilter bool `toml:"relevance_filter"`
	CacheKeepLastN  int  `toml:"cache_keep_last_n"`
}

type IndexerConfig struct {
	IndexFile string `toml:"index_file"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Endpoint:    "http://localhost:11434",
			Name:        "qwen2.5-coder",
			Temperature: 0.7,
			MaxTokens:   2048,
		},
		Database: DatabaseConfig{DBPath: ".cairn/cairn.db"},
		Context: ContextConfig{
			MaxSummaries:    5,
			RelevanceFilter: true,
			CacheKeepLastN:  10,
		},
		Indexer: IndexerConfig{IndexFile: ".cairn/index.json"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
// A missing file is fine; defaults apply.
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "cairn.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Pull a local .env into the process environment so the overrides
	// below see it. Missing file is fine.
	_ = godotenv.Load()

	// Env overrides
	if v := os.Getenv("CAIRN_MODEL_ENDPOINT"); v != "" {
		cfg.Model.Endpoint = v
	}
	if v := os.Getenv("CAIRN_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("CAIRN_MODEL_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.Temperature = f
		}
	}
	if v := os.Getenv("CAIRN_MODEL_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Model.MaxTokens = n
		}
	}
	if v := os.Getenv("CAIRN_DB_PATH"); v != "" {
		cfg.Database.DBPath = v
	}
	if v := os.Getenv("CAIRN_INDEX_FILE"); v != "" {
		cfg.Indexer.IndexFile = v
	}
	if v := os.Getenv("CAIRN_AUTO_CONTINUE"); isTrue(v) {
		cfg.Execution.AutoContinue = true
	}
	if v := os.Getenv("CAIRN_OBSERVER_ENABLED"); isTrue(v) {
		cfg.Observer.Enabled = true
	}
	if v := os.Getenv("CAIRN_DEBUG"); isTrue(v) {
		cfg.Debug = true
	}

	return cfg
}

func isTrue(v string) bool {
	return v == "true" || v == "1"
}

// Describe renders the effective configuration for `cairn config-show`.
func Describe(cfg Config) string {
	return fmt.Sprintf(`model.endpoint = %q
model.name = %q
model.temperature = %v
model.max_tokens = %d
database.db_path = %q
execution.auto_continue = %v
execution.test_command = %q
context.max_summaries = %d
context.relevance_filter = %v
context.cache_keep_last_n = %d
indexer.index_file = %q
observer.enabled = %v
debug = %v
`,
		cfg.Model.Endpoint, cfg.Model.Name, cfg.Model.Temperature, cfg.Model.MaxTokens,
		cfg.Database.DBPath,
		cfg.Execution.AutoContinue, cfg.Execution.TestCommand,
		cfg.Context.MaxSummaries, cfg.Context.RelevanceFilter, cfg.Context.CacheKeepLastN,
		cfg.Indexer.IndexFile,
		cfg.Observer.Enabled, cfg.Debug)
}
