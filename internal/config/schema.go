// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for clamp.
package config

import (
	"time"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
	"github.com/clamp-sh/clamp/internal/gateway"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir is where on-disk state (the archive database) lives.
	DataDir string `yaml:"data_dir"`

	Log       LogConfig       `yaml:"log"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Engine    EngineConfig    `yaml:"engine"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Cron      CronConfig      `yaml:"cron"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// GatewayConfig is the YAML shape of the HTTP gateway settings.
type GatewayConfig struct {
	Bind            string     `yaml:"bind"`
	Auth            AuthConfig `yaml:"auth"`
	ReadTimeout     Duration   `yaml:"read_timeout"`
	WriteTimeout    Duration   `yaml:"write_timeout"`
	ShutdownTimeout Duration   `yaml:"shutdown_timeout"`
}

// AuthConfig configures bearer authentication for admin endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
}

// ToGateway converts the YAML shape into the gateway's config.
func (c GatewayConfig) ToGateway() gateway.Config {
	return gateway.Config{
		Bind:            c.Bind,
		Auth:            gateway.AuthConfig{BearerToken: c.Auth.BearerToken},
		ReadTimeout:     c.ReadTimeout.Std(),
		WriteTimeout:    c.WriteTimeout.Std(),
		ShutdownTimeout: c.ShutdownTimeout.Std(),
	}
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format"`
}

// EstimatorConfig selects the token estimator.
type EstimatorConfig struct {
	// Kind is "chars" (offline ratio estimate) or "tiktoken" (exact BPE
	// counts, fetches the vocabulary on first use). Defaults to chars.
	Kind string `yaml:"kind"`

	// Model names the tokenizer model for the tiktoken estimator.
	Model string `yaml:"model"`

	// CharsPerToken is the ratio for the chars estimator. Defaults to 4.
	CharsPerToken float64 `yaml:"chars_per_token"`
}

// EngineConfig tunes the context engine.
type EngineConfig struct {
	WarningTokens        int           `yaml:"warning_tokens"`
	CriticalTokens       int           `yaml:"critical_tokens"`
	MaxMessageTokens     int           `yaml:"max_message_tokens"`
	FallbackTargetTokens int           `yaml:"fallback_target_tokens"`
	ToolResultTTL        Duration      `yaml:"tool_result_ttl"`
	Pruning              PruningConfig `yaml:"pruning"`
}

// PruningConfig tunes the hard-clear passes. The keep flags default to
// true; pointers distinguish "unset" from an explicit false.
type PruningConfig struct {
	KeepSystemMessages *bool    `yaml:"keep_system_messages"`
	KeepUserMessages   *bool    `yaml:"keep_user_messages"`
	KeepLastNAssistant int      `yaml:"keep_last_n_assistant"`
	MaxMessageAge      Duration `yaml:"max_message_age"`
}

// ToEngine converts the YAML shape into the engine's config.
func (c EngineConfig) ToEngine() ctxengine.EngineConfig {
	return ctxengine.EngineConfig{
		Thresholds: ctxengine.Thresholds{
			WarningTokens:  c.WarningTokens,
			CriticalTokens: c.CriticalTokens,
		},
		Pruning: ctxengine.PruningConfig{
			KeepSystemMessages: boolOr(c.Pruning.KeepSystemMessages, true),
			KeepUserMessages:   boolOr(c.Pruning.KeepUserMessages, true),
			KeepLastNAssistant: c.Pruning.KeepLastNAssistant,
			MaxMessageAge:      c.Pruning.MaxMessageAge.Std(),
		},
		MaxMessageTokens:     c.MaxMessageTokens,
		FallbackTargetTokens: c.FallbackTargetTokens,
	}
}

// ArchiveConfig selects where eviction entries are persisted.
type ArchiveConfig struct {
	// Backend is "sqlite" or "memory". Defaults to sqlite.
	Backend string `yaml:"backend"`

	// Path is the database file. Defaults to {DataDir}/archive.db.
	Path string `yaml:"path"`

	// BusyTimeout is the SQLite busy timeout in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`

	// Retention bounds how long eviction entries are kept. Zero keeps
	// them forever.
	Retention Duration `yaml:"retention"`
}

// CronConfig overrides the built-in job schedules.
type CronConfig struct {
	SweepSchedule     string   `yaml:"sweep_schedule"`
	ReaperSchedule    string   `yaml:"reaper_schedule"`
	RetentionSchedule string   `yaml:"retention_schedule"`
	MaxSessionIdle    Duration `yaml:"max_session_idle"`
}

// TracingConfig controls the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Defaults fills zero values with working defaults.
func (c *Config) Defaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Estimator.Kind == "" {
		c.Estimator.Kind = "chars"
	}
	if c.Estimator.CharsPerToken == 0 {
		c.Estimator.CharsPerToken = 4
	}
	if c.Engine.ToolResultTTL == 0 {
		c.Engine.ToolResultTTL = Duration(5 * time.Minute)
	}
	if c.Archive.Backend == "" {
		c.Archive.Backend = "sqlite"
	}
	if c.Gateway.Bind == "" {
		c.Gateway.Bind = "127.0.0.1:8080"
	}
	if c.Cron.MaxSessionIdle == 0 {
		c.Cron.MaxSessionIdle = Duration(time.Hour)
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
