// Package config loads and validates the YAML configuration driving a node,
// following the same load/override/validate/log pipeline shape used
// throughout this codebase's ambient stack.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"ilnpnode/internal/configloader"
	"ilnpnode/internal/logger"

	"gopkg.in/yaml.v3"
)

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// NodeConfig is the identity and link-layer configuration of this node,
// grounded on the original source's sensor.config.Configuration (my_id,
// my_locator, port, packet_buffer_size_bytes, loopback, mcast_groups).
type NodeConfig struct {
	ID              uint64   `yaml:"id"`
	Locator         uint64   `yaml:"locator"`
	Port            int      `yaml:"port"`
	BufferSizeBytes int      `yaml:"bufferSizeBytes"`
	Loopback        bool     `yaml:"loopback"`
	MulticastGroups []string `yaml:"multicastGroups"`
}

// SinkConfig configures the optional sensor-data sink behavior: how often
// this node originates synthetic readings, where it sends them, and where
// results are logged.
type SinkConfig struct {
	ID               uint64 `yaml:"id"`
	SendIntervalSecs int    `yaml:"sendIntervalSecs"`
	SinkLogPath      string `yaml:"sinkLogPath"`
	ResultsPath      string `yaml:"resultsPath"`
}

type BatteryConfig struct {
	MaxSends uint64 `yaml:"maxSends"`
}

// ControlConfig holds the control plane's timing settings. Only
// KeepaliveIntervalSecs reaches the control plane (via Keepalive, which
// falls back to 20s when unset). MaxRetries and AgeUntilRetryInterval are
// validated and logged, but route discovery uses its own fixed values
// (3 retries, retry after 3 keepalive intervals) and does not read them.
type ControlConfig struct {
	KeepaliveIntervalSecs int `yaml:"keepaliveIntervalSecs"`
	MaxRetries            int `yaml:"maxRetries"`
	AgeUntilRetryInterval int `yaml:"ageUntilRetryIntervals"`
}

type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Sink      SinkConfig      `yaml:"sink"`
	Battery   BatteryConfig   `yaml:"battery"`
	Control   ControlConfig   `yaml:"control"`
	Logger    LoggerConfig    `yaml:"logger"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoadConfig reads a YAML file containing one or more named sections (top
// level keys), each a full Config, mirroring the original source's
// ConfigParser-per-section model so one file can describe a whole
// simulated network. section selects which one to return; an empty section
// name means the file holds a single unnamed Config at its root.
func LoadConfig(path string, section string) (*Config, error) {
	if section == "" {
		var cfg Config
		if err := configloader.LoadYAML(path, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var sections map[string]Config
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("failed to parse yaml sections: %w", err)
	}
	cfg, ok := sections[section]
	if !ok {
		return nil, fmt.Errorf("section %q not found in %s", section, path)
	}
	return &cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration, letting a deployment override a handful of deployment-
// specific fields without editing the shared config file.
//
//	NODE_PORT             -> cfg.Node.Port
//	NODE_LOOPBACK         -> cfg.Node.Loopback
//	NODE_MULTICAST_GROUPS -> cfg.Node.MulticastGroups (comma-separated)
//	SINK_SEND_INTERVAL    -> cfg.Sink.SendIntervalSecs
//	SINK_RESULTS_PATH     -> cfg.Sink.ResultsPath
//	BATTERY_MAX_SENDS     -> cfg.Battery.MaxSends
//	TRACE_ENABLED         -> cfg.Telemetry.Tracing.Enabled
//	TRACE_EXPORTER        -> cfg.Telemetry.Tracing.Exporter
//	TRACE_ENDPOINT        -> cfg.Telemetry.Tracing.Endpoint
//	LOGGER_ENABLED        -> cfg.Logger.Active
//	LOGGER_LEVEL          -> cfg.Logger.Level
//	LOGGER_ENCODING       -> cfg.Logger.Encoding
//	LOGGER_MODE           -> cfg.Logger.Mode
//	LOGGER_FILE_PATH      -> cfg.Logger.File.Path
func (cfg *Config) ApplyEnvOverrides() {
	configloader.OverrideInt(&cfg.Node.Port, "NODE_PORT")
	configloader.OverrideBool(&cfg.Node.Loopback, "NODE_LOOPBACK")
	configloader.OverrideStringSlice(&cfg.Node.MulticastGroups, "NODE_MULTICAST_GROUPS")
	configloader.OverrideInt(&cfg.Sink.SendIntervalSecs, "SINK_SEND_INTERVAL")
	configloader.OverrideString(&cfg.Sink.ResultsPath, "SINK_RESULTS_PATH")

	if v := os.Getenv("BATTERY_MAX_SENDS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Battery.MaxSends = n
		}
	}

	configloader.OverrideBool(&cfg.Telemetry.Tracing.Enabled, "TRACE_ENABLED")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Exporter, "TRACE_EXPORTER")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Endpoint, "TRACE_ENDPOINT")

	configloader.OverrideBool(&cfg.Logger.Active, "LOGGER_ENABLED")
	configloader.OverrideString(&cfg.Logger.Level, "LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "LOGGER_ENCODING")
	configloader.OverrideString(&cfg.Logger.Mode, "LOGGER_MODE")
	configloader.OverrideString(&cfg.Logger.File.Path, "LOGGER_FILE_PATH")
}

// ValidateConfig performs structural validation, accumulating every problem
// found into a single returned error instead of failing on the first one.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if cfg.Node.Port < 0 || cfg.Node.Port > 65535 {
		errs = append(errs, fmt.Sprintf("node.port must be in [0,65535], got %d", cfg.Node.Port))
	}
	if cfg.Node.BufferSizeBytes <= 0 {
		errs = append(errs, "node.bufferSizeBytes must be > 0")
	}
	if len(cfg.Node.MulticastGroups) == 0 {
		errs = append(errs, "node.multicastGroups must contain at least one group (own zone)")
	}
	for _, g := range cfg.Node.MulticastGroups {
		if net.ParseIP(g) == nil {
			errs = append(errs, fmt.Sprintf("invalid multicast group address %q", g))
		}
	}

	if cfg.Sink.SendIntervalSecs < 0 {
		errs = append(errs, "sink.sendIntervalSecs must be >= 0")
	}

	if cfg.Control.KeepaliveIntervalSecs <= 0 {
		errs = append(errs, "control.keepaliveIntervalSecs must be > 0")
	}
	if cfg.Control.MaxRetries <= 0 {
		errs = append(errs, "control.maxRetries must be > 0")
	}
	if cfg.Control.AgeUntilRetryInterval <= 0 {
		errs = append(errs, "control.ageUntilRetryIntervals must be > 0")
	}

	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
		if cfg.Telemetry.Tracing.Exporter == "otlp" && cfg.Telemetry.Tracing.Endpoint == "" {
			errs = append(errs, "telemetry.tracing.endpoint is required for exporter=otlp")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Keepalive returns the configured keepalive interval, defaulting to the
// spec-mandated 20 seconds when unset.
func (cfg *Config) Keepalive() time.Duration {
	if cfg.Control.KeepaliveIntervalSecs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(cfg.Control.KeepaliveIntervalSecs) * time.Second
}

// LogConfig dumps the loaded configuration at DEBUG level, useful for
// verifying a deployment parsed the way the operator expects.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("node.id", cfg.Node.ID),
		logger.F("node.locator", cfg.Node.Locator),
		logger.F("node.port", cfg.Node.Port),
		logger.F("node.bufferSizeBytes", cfg.Node.BufferSizeBytes),
		logger.F("node.loopback", cfg.Node.Loopback),
		logger.F("node.multicastGroups", cfg.Node.MulticastGroups),

		logger.F("sink.id", cfg.Sink.ID),
		logger.F("sink.sendIntervalSecs", cfg.Sink.SendIntervalSecs),
		logger.F("sink.sinkLogPath", cfg.Sink.SinkLogPath),
		logger.F("sink.resultsPath", cfg.Sink.ResultsPath),

		logger.F("battery.maxSends", cfg.Battery.MaxSends),

		logger.F("control.keepaliveIntervalSecs", cfg.Control.KeepaliveIntervalSecs),
		logger.F("control.maxRetries", cfg.Control.MaxRetries),
		logger.F("control.ageUntilRetryIntervals", cfg.Control.AgeUntilRetryInterval),

		logger.F("logger.active", cfg.Logger.Active),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("logger.file.path", cfg.Logger.File.Path),

		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
		logger.F("telemetry.tracing.endpoint", cfg.Telemetry.Tracing.Endpoint),
	)
}
