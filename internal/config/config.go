// Package config loads the wiretap configuration using viper.
//
// Precedence, highest first: command-line flags, WIRETAP_* environment
// variables, the YAML file, built-in defaults.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"firestige.xyz/wiretap/internal/core"
)

// EnvPrefix prefixes environment overrides, e.g. WIRETAP_CAPTURE_SNAP_LEN.
const EnvPrefix = "WIRETAP"

// Engines lists the live capture engines a build may provide.
var Engines = []string{"pcap", "afpacket"}

// Config is the complete run configuration.
type Config struct {
	Input   InputConfig   `mapstructure:"input" yaml:"input"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ─── Input / Output ───

// InputConfig selects the frame source. Exactly one field is set.
type InputConfig struct {
	Interface string `mapstructure:"interface" yaml:"interface"`
	File      string `mapstructure:"file" yaml:"file"`
}

// OutputConfig configures the optional sinks besides stdout.
type OutputConfig struct {
	File  string      `mapstructure:"file" yaml:"file"` // empty = no recording
	Kafka KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

// KafkaConfig configures the summary line mirror.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	Compression  string        `mapstructure:"compression" yaml:"compression"` // none|gzip|snappy|lz4|zstd
}

// ─── Capture ───

// CaptureConfig tunes live capture.
type CaptureConfig struct {
	Engine       string        `mapstructure:"engine" yaml:"engine"`
	SnapLen      int           `mapstructure:"snap_len" yaml:"snap_len"`
	Promiscuous  bool          `mapstructure:"promiscuous" yaml:"promiscuous"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string        `mapstructure:"level" yaml:"level"`   // trace / debug / info / warn / error
	Format     string        `mapstructure:"format" yaml:"format"` // text / json / pattern
	Pattern    string        `mapstructure:"pattern" yaml:"pattern"`
	TimeFormat string        `mapstructure:"time_format" yaml:"time_format"`
	File       LogFileConfig `mapstructure:"file" yaml:"file"`
}

// LogFileConfig configures the rotated log file.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"interface": "input.interface",
	"file":      "input.file",
	"output":    "output.file",
	"engine":    "capture.engine",
	"snaplen":   "capture.snap_len",
	"promisc":   "capture.promiscuous",
	"log-level": "log.level",
}

// Load builds the configuration from path (optional), the environment and
// flags (optional), then validates it.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := Resolve(path, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve merges defaults, the file at path, the environment and changed
// flags, in increasing precedence. The result is not validated.
func Resolve(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %v", core.ErrConfigInvalid, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", core.ErrConfigInvalid, err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration without any input selected.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// setDefaults registers every key so environment overrides apply to all of them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("input.interface", "")
	v.SetDefault("input.file", "")

	v.SetDefault("output.file", "")
	v.SetDefault("output.kafka.enabled", false)
	v.SetDefault("output.kafka.brokers", []string{})
	v.SetDefault("output.kafka.topic", "wiretap.summary")
	v.SetDefault("output.kafka.batch_timeout", "100ms")
	v.SetDefault("output.kafka.compression", "snappy")

	v.SetDefault("capture.engine", "pcap")
	v.SetDefault("capture.snap_len", 65536)
	v.SetDefault("capture.promiscuous", true)
	v.SetDefault("capture.timeout", "500ms")
	v.SetDefault("capture.buffer_size_mb", 8)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.pattern", "%time [%level] %msg %field\n")
	v.SetDefault("log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "/var/log/wiretap/wiretap.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9091")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration. Every error wraps core.ErrConfigInvalid.
func (cfg *Config) Validate() error {
	// ── Input ──
	switch {
	case cfg.Input.Interface == "" && cfg.Input.File == "":
		return invalid("no input: set either input.interface (-i) or input.file (-f)")
	case cfg.Input.Interface != "" && cfg.Input.File != "":
		return invalid("input.interface %q and input.file %q are mutually exclusive: capture live or replay a file, not both",
			cfg.Input.Interface, cfg.Input.File)
	}

	// ── Capture ──
	if !slices.Contains(Engines, cfg.Capture.Engine) {
		return invalid("unknown capture.engine %q (must be one of %s)", cfg.Capture.Engine, strings.Join(Engines, "/"))
	}
	if cfg.Capture.SnapLen <= 0 {
		return invalid("capture.snap_len must be positive, got %d", cfg.Capture.SnapLen)
	}
	if cfg.Capture.Timeout < 0 {
		return invalid("capture.timeout must not be negative, got %s", cfg.Capture.Timeout)
	}
	if cfg.Capture.BufferSizeMB <= 0 {
		return invalid("capture.buffer_size_mb must be positive, got %d", cfg.Capture.BufferSizeMB)
	}

	// ── Output ──
	if cfg.Output.File != "" && cfg.Input.File != "" && filepath.Clean(cfg.Output.File) == filepath.Clean(cfg.Input.File) {
		return invalid("output.file must differ from input.file (%s)", cfg.Input.File)
	}
	if k := cfg.Output.Kafka; k.Enabled {
		if len(k.Brokers) == 0 {
			return invalid("output.kafka.brokers is required when output.kafka.enabled=true")
		}
		if k.Topic == "" {
			return invalid("output.kafka.topic is required when output.kafka.enabled=true")
		}
		if !slices.Contains([]string{"none", "gzip", "snappy", "lz4", "zstd"}, k.Compression) {
			return invalid("invalid output.kafka.compression: %s (must be none/gzip/snappy/lz4/zstd)", k.Compression)
		}
	}

	// ── Log ──
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error"}, cfg.Log.Level) {
		return invalid("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if !slices.Contains([]string{"text", "json", "pattern"}, cfg.Log.Format) {
		return invalid("invalid log format: %s (must be text/json/pattern)", cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return invalid("log.file.path is required when log.file.enabled=true")
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return invalid("metrics.listen is required when metrics.enabled=true")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return invalid("metrics.path must start with '/', got %q", cfg.Metrics.Path)
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrConfigInvalid}, args...)...)
}
