package telemetry

import (
	"fmt"
	"time"
)

// MetricsConfig metrics pipeline configuration
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	Exporter       string            `mapstructure:"exporter"`        // stdout | none
	ExportInterval time.Duration     `mapstructure:"export_interval"` // periodic reader interval
	ServiceName    string            `mapstructure:"service_name"`
	Namespace      string            `mapstructure:"namespace"` // meter name prefix
	Labels         map[string]string `mapstructure:"labels"`    // resource attributes (env, region)
}

// DefaultMetricsConfig returns the default configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:        true,
		Exporter:       "none",
		ExportInterval: 60 * time.Second,
		ServiceName:    "tiercache",
		Namespace:      "tiercache",
	}
}

// Validate checks exporter and interval
func (c MetricsConfig) Validate() error {
	switch c.Exporter {
	case "stdout", "none", "":
	default:
		return fmt.Errorf("unsupported metrics exporter type: %s", c.Exporter)
	}
	if c.Enabled && c.Exporter == "stdout" && c.ExportInterval <= 0 {
		return fmt.Errorf("export_interval must be positive, got %s", c.ExportInterval)
	}
	return nil
}
