package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/nicoegiaian/heatfield/pkg/core"
)

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is
// not an error; the engine runs on defaults when embedded without one.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./heatfieldlogs")

	viper.SetDefault("render.gamma", 1.0)
	viper.SetDefault("render.sigma", 6.0)
	viper.SetDefault("render.threshold", 0.05)
	viper.SetDefault("render.resolutionPx", 800)
	viper.SetDefault("render.pathOverlay", false)
	viper.SetDefault("render.pathStrokeWidth", 3.0)

	viper.SetDefault("segmentation.gapMinutes", 10.0)

	viper.SetDefault("geocode.enabled", true)
	viper.SetDefault("geocode.endpoint", "https://nominatim.openstreetmap.org")
	viper.SetDefault("geocode.userAgent", "heatfield/1.0")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "heatfield-metrics")
	viper.SetDefault("influx.bucket", "render_telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("monitor.interval", "30s")

	viper.SetConfigName("heatfield.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetRenderParams assembles the configured render parameters, clamped to
// their valid ranges.
func GetRenderParams() core.RenderParams {
	p := core.RenderParams{
		Gamma:        viper.GetFloat64("render.gamma"),
		Sigma:        viper.GetFloat64("render.sigma"),
		Threshold:    viper.GetFloat64("render.threshold"),
		ResolutionPx: viper.GetInt("render.resolutionPx"),
	}
	return p.Clamped()
}

// GetGapMinutes returns the configured inactivity gap, clamped to its valid
// range.
func GetGapMinutes() float64 {
	return core.ClampGapMinutes(viper.GetFloat64("segmentation.gapMinutes"))
}
