package dbastion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the dbastion gateway configuration
type Config struct {
	Query QueryConfig `yaml:"query"`
	Log   LogConfig   `yaml:"log"`
	Cost  CostConfig  `yaml:"cost"`
}

// QueryConfig represents the query.* settings. They are loaded and
// validated only: the commands take format and limit from their own flags,
// and nothing reads the timeout.
type QueryConfig struct {
	DefaultFormat string `yaml:"default_format"`
	DefaultLimit  int    `yaml:"default_limit"`
	Timeout       int    `yaml:"timeout"`
}

// LogConfig represents query-log settings
type LogConfig struct {
	Root          string `yaml:"root"`
	RetentionDays int    `yaml:"retention_days"`
}

// CostConfig represents the cost.* thresholds. They are loaded and
// validated only: the query and exec commands take their cost thresholds
// from flags, so these values are not applied to any run.
type CostConfig struct {
	MaxGB   float64 `yaml:"max_gb"`
	MaxUSD  float64 `yaml:"max_usd"`
	MaxRows float64 `yaml:"max_rows"`
}

// LoadConfig loads configuration from the given path, falling back to
// defaults when the file does not exist. Environment variables in the
// format ${VAR} or $VAR are expanded in log.root, and a .env file in the
// current directory is loaded first if present.
func LoadConfig(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	config := getDefaultConfig()

	if configPath == "" {
		configPath = "dbastion.yaml"
	}

	if !fileExists(configPath) {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	expandConfigEnvVars(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Query.DefaultLimit < 0 {
		return fmt.Errorf("%w: query.default_limit must be non-negative, got %d", ErrConfigValidation, config.Query.DefaultLimit)
	}

	if config.Query.Timeout < 0 {
		return fmt.Errorf("%w: query.timeout must be non-negative, got %d", ErrConfigValidation, config.Query.Timeout)
	}

	if config.Query.DefaultFormat != "" {
		validFormats := map[string]bool{
			"json": true,
			"text": true,
		}
		if !validFormats[config.Query.DefaultFormat] {
			return fmt.Errorf("%w: query.default_format '%s' is invalid: must be json or text", ErrConfigValidation, config.Query.DefaultFormat)
		}
	}

	if config.Log.RetentionDays < 0 {
		return fmt.Errorf("%w: log.retention_days must be non-negative, got %d", ErrConfigValidation, config.Log.RetentionDays)
	}

	if config.Cost.MaxGB < 0 || config.Cost.MaxUSD < 0 || config.Cost.MaxRows < 0 {
		return fmt.Errorf("%w: cost thresholds must be non-negative", ErrConfigValidation)
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Query: QueryConfig{
			DefaultFormat: "json",
			DefaultLimit:  1000,
			Timeout:       30,
		},
		Log: LogConfig{
			Root:          defaultLogRoot(),
			RetentionDays: 30,
		},
	}
}

// defaultLogRoot returns ~/.dbastion/logs, or a relative fallback when the
// home directory cannot be resolved.
func defaultLogRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dbastion/logs"
	}

	return filepath.Join(home, ".dbastion", "logs")
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	re1 := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re1.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		return os.Getenv(varName)
	})

	return s
}

// expandConfigEnvVars expands environment variables in path-valued settings
func expandConfigEnvVars(config *Config) {
	config.Log.Root = expandEnvVars(config.Log.Root)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
