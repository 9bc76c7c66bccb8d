package snape2e

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// ErrConfigValidation is returned when configuration validation fails
var ErrConfigValidation = errors.New("configuration validation failed")

// DefaultConfigFile is the configuration file looked up by the CLI
const DefaultConfigFile = "snape2e.yaml"

// Config represents the snape2e configuration
type Config struct {
	Environment  string              `yaml:"environment"`
	Databases    map[string]Database `yaml:"databases"`
	ResultsDir   string              `yaml:"results_dir"`
	Spreadsheet  SpreadsheetConfig   `yaml:"spreadsheet"`
	Locale       LocaleConfig        `yaml:"locale"`
	Browser      BrowserConfig       `yaml:"browser"`
	Verification VerificationConfig  `yaml:"verification"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// Database represents database connection configuration
type Database struct {
	Driver     string `yaml:"driver"`
	Connection string `yaml:"connection"`
	Timeout    int    `yaml:"timeout"`
}

// SpreadsheetConfig selects the worksheet holding scenario data
type SpreadsheetConfig struct {
	Sheet int `yaml:"sheet"`
}

// LocaleConfig controls how dates are rendered for comparison.
// SettingsQuery, when set, is executed at scenario start and must return
// "region" and "date_format" columns; it takes precedence over the static values.
type LocaleConfig struct {
	Region        string `yaml:"region"`
	DateFormat    string `yaml:"date_format"`
	Timezone      string `yaml:"timezone"`
	SettingsQuery string `yaml:"settings_query"`
}

// BrowserConfig represents browser driver settings
type BrowserConfig struct {
	Headless   *bool         `yaml:"headless"`
	Bin        string        `yaml:"bin"`
	ControlURL string        `yaml:"control_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Viewport   Viewport      `yaml:"viewport"`
}

// Viewport is the browser window size
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// IsHeadless returns true unless headless is explicitly disabled
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// VerificationConfig holds comparison defaults
type VerificationConfig struct {
	Separator    string        `yaml:"separator"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data, validates it and applies defaults
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	// Parse YAML with strict mode to detect unknown fields
	err := yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	return &config, nil
}

// CurrentDatabase returns the database entry of the configured environment
func (c *Config) CurrentDatabase() (Database, error) {
	db, ok := c.Databases[c.Environment]
	if !ok {
		return Database{}, fmt.Errorf("%w: '%s'", ErrDatabaseNotConfigured, c.Environment)
	}

	return db, nil
}

// Location returns the timezone used for date normalization
func (c *Config) Location() (*time.Location, error) {
	if c.Locale.Timezone == "" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(c.Locale.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid locale.timezone '%s': %w", c.Locale.Timezone, err)
	}

	return loc, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	validDrivers := map[string]bool{
		"postgres": true,
		"pgx":      true,
		"mysql":    true,
		"sqlite3":  true,
		"sqlite":   true,
	}

	for name, db := range config.Databases {
		if db.Driver == "" {
			return fmt.Errorf("%w: databases.%s.driver is required", ErrConfigValidation, name)
		}

		if !validDrivers[db.Driver] {
			return fmt.Errorf("%w: databases.%s.driver '%s': must be one of postgres, mysql, sqlite3", ErrConfigValidation, name, db.Driver)
		}

		if db.Timeout < 0 {
			return fmt.Errorf("%w: databases.%s.timeout must be non-negative, got %d", ErrConfigValidation, name, db.Timeout)
		}
	}

	if config.Spreadsheet.Sheet < 0 {
		return fmt.Errorf("%w: spreadsheet.sheet must be non-negative, got %d", ErrConfigValidation, config.Spreadsheet.Sheet)
	}

	if config.Verification.ReadyTimeout < 0 {
		return fmt.Errorf("%w: verification.ready_timeout must be >= 0, got %s", ErrConfigValidation, config.Verification.ReadyTimeout)
	}

	if config.Browser.Timeout < 0 {
		return fmt.Errorf("%w: browser.timeout must be >= 0, got %s", ErrConfigValidation, config.Browser.Timeout)
	}

	if config.Browser.Viewport.Width < 0 || config.Browser.Viewport.Height < 0 {
		return fmt.Errorf("%w: browser.viewport must be non-negative", ErrConfigValidation)
	}

	if config.Logging.Level != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[config.Logging.Level] {
			return fmt.Errorf("%w: logging.level '%s' is invalid: must be one of debug, info, warn, error", ErrConfigValidation, config.Logging.Level)
		}
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	config := &Config{
		Databases: make(map[string]Database),
	}
	applyDefaults(config)

	return config
}

// applyDefaults fills missing values with defaults
func applyDefaults(config *Config) {
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Databases == nil {
		config.Databases = make(map[string]Database)
	}

	for name, db := range config.Databases {
		if db.Timeout == 0 {
			db.Timeout = 30
		}

		config.Databases[name] = db
	}

	if config.ResultsDir == "" {
		config.ResultsDir = "queryResults"
	}

	if config.Browser.Timeout == 0 {
		config.Browser.Timeout = 60 * time.Second
	}

	if config.Browser.Viewport.Width == 0 {
		config.Browser.Viewport.Width = 1920
	}

	if config.Browser.Viewport.Height == 0 {
		config.Browser.Viewport.Height = 1080
	}

	if config.Verification.Separator == "" {
		config.Verification.Separator = ","
	}

	if config.Verification.ReadyTimeout == 0 {
		config.Verification.ReadyTimeout = 30 * time.Second
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
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

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	plainEnvVar  = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR.
// Reference placeholders (${__...}) are left untouched.
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if len(varName) >= 2 && varName[:2] == "__" {
			return match
		}

		return os.Getenv(varName)
	})

	return plainEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// expandConfigEnvVars expands environment variables in config values
func expandConfigEnvVars(config *Config) {
	for name, db := range config.Databases {
		db.Connection = expandEnvVars(db.Connection)
		db.Driver = expandEnvVars(db.Driver)
		config.Databases[name] = db
	}

	config.Environment = expandEnvVars(config.Environment)
	config.ResultsDir = expandEnvVars(config.ResultsDir)
	config.Locale.Region = expandEnvVars(config.Locale.Region)
	config.Locale.SettingsQuery = expandEnvVars(config.Locale.SettingsQuery)
	config.Browser.Bin = expandEnvVars(config.Browser.Bin)
	config.Browser.ControlURL = expandEnvVars(config.Browser.ControlURL)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
