package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ico-maker-go/internal/converter"
	"ico-maker-go/internal/icon"
	"ico-maker-go/internal/probe"
)

// Config represents the main configuration structure
type Config struct {
	OutputDirectory     string            `mapstructure:"output_directory"`
	BaseName            string            `mapstructure:"base_name"`
	Sizes               []string          `mapstructure:"sizes"`
	SupportedExtensions []string          `mapstructure:"supported_extensions"`
	Conversion          ConversionConfig  `mapstructure:"conversion"`
	Performance         PerformanceConfig `mapstructure:"performance"`
	Watch               WatchConfig       `mapstructure:"watch"`
	Web                 WebConfig         `mapstructure:"web"`
	Logging             LoggingConfig     `mapstructure:"logging"`
}

// ConversionConfig contains the size policy settings
type ConversionConfig struct {
	FilterBySource bool `mapstructure:"filter_by_source"`
	AutoOrient     bool `mapstructure:"auto_orient"`
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	WorkerThreads int `mapstructure:"worker_threads"`
}

// WatchConfig contains hot folder settings
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// WebConfig contains web front end settings
type WebConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Sizes:               icon.NewSelection(icon.Catalog()...).Strings(),
		SupportedExtensions: append([]string(nil), probe.DefaultExtensions...),
		Conversion: ConversionConfig{
			FilterBySource: true,
			AutoOrient:     true,
		},
		Performance: PerformanceConfig{
			WorkerThreads: 4,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Web: WebConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ico-maker")
		v.AddConfigPath("/etc/ico-maker")
	}

	v.SetEnvPrefix("ICO_MAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Lists from the file replace the defaults instead of merging into them.
	if v.IsSet("sizes") {
		config.Sizes = nil
	}
	if v.IsSet("supported_extensions") {
		config.SupportedExtensions = nil
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnv registers keys so AutomaticEnv also applies to Unmarshal.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"output_directory",
		"base_name",
		"conversion.filter_by_source",
		"conversion.auto_orient",
		"performance.worker_threads",
		"watch.debounce",
		"web.port",
		"logging.level",
		"logging.file_path",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := icon.ParseSizes(c.Sizes); err != nil {
		return fmt.Errorf("invalid sizes: %w", err)
	}

	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)
	if len(c.SupportedExtensions) == 0 {
		c.SupportedExtensions = append([]string(nil), probe.DefaultExtensions...)
	}

	if c.Performance.WorkerThreads <= 0 {
		c.Performance.WorkerThreads = 4
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port: %d", c.Web.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// SizeSelection returns the configured sizes as a Selection.
func (c *Config) SizeSelection() icon.Selection {
	sel, err := icon.ParseSizes(c.Sizes)
	if err != nil {
		return nil
	}
	return sel
}

// ConverterOptions returns the engine options for this configuration.
func (c *Config) ConverterOptions() converter.Options {
	return converter.Options{
		FilterBySource: c.Conversion.FilterBySource,
		Workers:        c.Performance.WorkerThreads,
		AutoOrient:     c.Conversion.AutoOrient,
	}
}

// Target returns the output target with the home directory expanded.
func (c *Config) Target() converter.Target {
	return converter.Target{
		Directory: ExpandPath(c.OutputDirectory),
		BaseName:  c.BaseName,
	}
}

// IsImageExtension checks if the extension is for a convertible image file
func (c *Config) IsImageExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

// ExpandPath expands environment variables and a leading ~.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	expanded := os.ExpandEnv(path)
	if strings.HasPrefix(expanded, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expanded
		}
		expanded = filepath.Join(home, expanded[1:])
	}
	return expanded
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return normalized
}
