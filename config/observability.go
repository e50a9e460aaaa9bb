package config

import (
	"log/slog"
	"strings"
)

// ObservabilityConfig controls logging and the Prometheus endpoint.
type ObservabilityConfig struct {
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath    string `env:"METRICS_PATH"    envDefault:"/metrics"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Sanitize normalizes the metrics path and log level.
func (c *ObservabilityConfig) Sanitize() {
	c.MetricsPath = strings.TrimSpace(c.MetricsPath)
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if !strings.HasPrefix(c.MetricsPath, "/") {
		c.MetricsPath = "/" + c.MetricsPath
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if _, ok := logLevels[c.LogLevel]; !ok {
		c.LogLevel = "info"
	}
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *ObservabilityConfig) SlogLevel() slog.Level {
	if l, ok := logLevels[c.LogLevel]; ok {
		return l
	}
	return slog.LevelInfo
}

var logLevels = map[string]slog.Level{ //nolint:gochecknoglobals // lookup table
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}
