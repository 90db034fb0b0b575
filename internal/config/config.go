package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"varexplorer/adapters/ensembl"
	"varexplorer/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Ensembl   ensembl.ClientConfig
	Presets   PresetConfig
	Analysis  AnalysisConfig
	Charts    ChartConfig
	Profiling ProfilingConfig
	LogLevel  string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PresetConfig locates the region presets file
type PresetConfig struct {
	File  string // empty uses the built-in presets
	Watch bool
}

// AnalysisConfig holds run limits
type AnalysisConfig struct {
	PlotsDir      string
	MaxStoredRuns int
	TopVariants   int
	TopFocus      int
}

// ChartConfig holds rendered image sizes
type ChartConfig struct {
	Width  int
	Height int
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:    *loadServerConfig(),
		Ensembl:   loadEnsemblConfig(),
		Presets:   *loadPresetConfig(),
		Analysis:  *loadAnalysisConfig(),
		Charts:    *loadChartConfig(),
		Profiling: *loadProfilingConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadEnsemblConfig() ensembl.ClientConfig {
	defaults := ensembl.DefaultClientConfig()
	return ensembl.ClientConfig{
		BaseURL:      getEnvOrDefault("ENSEMBL_BASE_URL", defaults.BaseURL),
		Species:      getEnvOrDefault("ENSEMBL_SPECIES", defaults.Species),
		Timeout:      getEnvDurationOrDefault("ENSEMBL_TIMEOUT", defaults.Timeout),
		RequestDelay: getEnvDurationOrDefault("ENSEMBL_REQUEST_DELAY", defaults.RequestDelay),
		UserAgent:    getEnvOrDefault("ENSEMBL_USER_AGENT", defaults.UserAgent),
	}
}

func loadPresetConfig() *PresetConfig {
	return &PresetConfig{
		File:  getEnvOrDefault("PRESETS_FILE", ""),
		Watch: getEnvBoolOrDefault("PRESETS_WATCH", true),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		PlotsDir:      getEnvOrDefault("PLOTS_DIR", "plots"),
		MaxStoredRuns: getEnvIntOrDefault("MAX_STORED_RUNS", 20),
		TopVariants:   getEnvIntOrDefault("TOP_VARIANTS", 10),
		TopFocus:      getEnvIntOrDefault("TOP_FOCUS", 5),
	}
}

func loadChartConfig() *ChartConfig {
	return &ChartConfig{
		Width:  getEnvIntOrDefault("CHART_WIDTH", 1200),
		Height: getEnvIntOrDefault("CHART_HEIGHT", 600),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if err := config.Ensembl.Validate(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if strings.TrimSpace(config.Server.Port) == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Analysis.MaxStoredRuns < 1 {
		return errors.ConfigInvalid("MAX_STORED_RUNS must be at least 1")
	}
	if config.Analysis.TopVariants < 1 || config.Analysis.TopFocus < 1 {
		return errors.ConfigInvalid("TOP_VARIANTS and TOP_FOCUS must be at least 1")
	}
	if config.Charts.Width < 200 || config.Charts.Height < 150 {
		return errors.ConfigInvalid("chart size must be at least 200x150")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("250ms") or plain seconds ("0.1")
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return defaultValue
}
