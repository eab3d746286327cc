// Package config loads roster settings from a YAML file, .env files and
// ROSTER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"roster/ingest"
)

const (
	DefaultDBPath         = "roster.db"
	DefaultAddr           = ":8080"
	DefaultMaxUploadBytes = 10 << 20
	DefaultLogLevel       = "info"
)

// EnvFiles are loaded, when present, before environment overrides apply.
var EnvFiles = []string{".env", ".env.local"}

var validate = validator.New()

type DatabaseConfig struct {
	Path string `yaml:"path" env:"ROSTER_DB_PATH" validate:"required"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" env:"ROSTER_ADDR" validate:"required"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" env:"ROSTER_MAX_UPLOAD_BYTES" validate:"gt=0"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ROSTER_ALLOWED_ORIGINS" envSeparator:","`
}

type SearchConfig struct {
	Fields   []string `yaml:"fields"`
	AgeField string   `yaml:"age_field"`
}

type SpoolConfig struct {
	Globs    []string `yaml:"globs"`
	ErrorDir string   `yaml:"error_dir"`
	// DeleteAfterImport removes a source file once it was ingested.
	DeleteAfterImport *bool         `yaml:"delete_after_import"`
	SkipSeen          *bool         `yaml:"skip_seen"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
}

type FileConfig struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	LogLevel string         `yaml:"log_level" env:"ROSTER_LOG_LEVEL" validate:"oneof=trace debug info warn warning error"`
	LogJSON  bool           `yaml:"log_json"`
	Search   SearchConfig   `yaml:"search"`
	Spool    SpoolConfig    `yaml:"spool"`
	// Aliases extends the default header aliases. Prefer mapping form:
	// aliases: {email: [courriel, mail address]}
	Aliases AliasesConfig `yaml:"aliases"`
}

func Default() *FileConfig {
	return &FileConfig{
		Database: DatabaseConfig{Path: DefaultDBPath},
		Server:   ServerConfig{Addr: DefaultAddr, MaxUploadBytes: DefaultMaxUploadBytes},
		LogLevel: DefaultLogLevel,
	}
}

// Load builds the configuration with precedence defaults < YAML file <
// environment. An empty path skips the file.
func Load(path string) (*FileConfig, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if _, err := LoadEnv(EnvFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads the env files that exist and returns how many were read.
// Variables already set in the process environment are kept.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if st, err := os.Stat(f); err == nil && !st.IsDir() {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func (c *FileConfig) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.AliasTable().Validate(); err != nil {
		return fmt.Errorf("invalid config: aliases: %w", err)
	}
	return nil
}

// AliasTable returns the default aliases merged with the configured ones.
// Labels for a known field are appended to it; new fields follow the
// defaults in declaration order.
func (c *FileConfig) AliasTable() ingest.AliasTable {
	table := ingest.DefaultAliases()
	pos := make(map[string]int, len(table))
	for i, a := range table {
		pos[a.Field] = i
	}
	for _, a := range c.Aliases.Items {
		if i, ok := pos[a.Field]; ok {
			table[i].Labels = append(table[i].Labels, a.Labels...)
			continue
		}
		pos[a.Field] = len(table)
		table = append(table, ingest.Alias{Field: a.Field, Labels: append([]string(nil), a.Labels...)})
	}
	return table
}

// DeleteAfterImportOrDefault defaults to false.
func (s SpoolConfig) DeleteAfterImportOrDefault() bool {
	return s.DeleteAfterImport != nil && *s.DeleteAfterImport
}

// SkipSeenOrDefault defaults to true.
func (s SpoolConfig) SkipSeenOrDefault() bool {
	return s.SkipSeen == nil || *s.SkipSeen
}
