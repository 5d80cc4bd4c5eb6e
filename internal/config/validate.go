package config

import (
	"errors"
	"fmt"
)

// Validate checks the structural validity of a Config after defaults have
// been applied. All problems are reported at once via errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level must be debug, info, warn, or error, got %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be text or json, got %q", cfg.Log.Format))
	}

	switch cfg.Estimator.Kind {
	case "chars":
		if cfg.Estimator.CharsPerToken <= 0 {
			errs = append(errs, fmt.Errorf("config: estimator.chars_per_token must be positive, got %v", cfg.Estimator.CharsPerToken))
		}
	case "tiktoken":
		if cfg.Estimator.Model == "" {
			errs = append(errs, errors.New("config: estimator.model is required for the tiktoken estimator"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: estimator.kind must be chars or tiktoken, got %q", cfg.Estimator.Kind))
	}

	errs = append(errs, validateEngine(cfg.Engine)...)

	switch cfg.Archive.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("config: archive.backend must be sqlite or memory, got %q", cfg.Archive.Backend))
	}
	if cfg.Archive.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: archive.busy_timeout must be non-negative, got %d", cfg.Archive.BusyTimeout))
	}
	if cfg.Archive.Retention < 0 {
		errs = append(errs, fmt.Errorf("config: archive.retention must be non-negative, got %v", cfg.Archive.Retention))
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("config: tracing.endpoint is required when tracing is enabled"))
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("config: tracing.sample_ratio must be within [0,1], got %v", cfg.Tracing.SampleRatio))
	}

	return errors.Join(errs...)
}

func validateEngine(engine EngineConfig) []error {
	var errs []error

	if engine.WarningTokens < 0 || engine.CriticalTokens < 0 {
		errs = append(errs, errors.New("config: engine thresholds must be non-negative"))
	}
	if engine.WarningTokens > 0 && engine.CriticalTokens > 0 && engine.WarningTokens >= engine.CriticalTokens {
		errs = append(errs, fmt.Errorf("config: engine.warning_tokens (%d) must be below engine.critical_tokens (%d)",
			engine.WarningTokens, engine.CriticalTokens))
	}
	if engine.MaxMessageTokens < 0 {
		errs = append(errs, fmt.Errorf("config: engine.max_message_tokens must be non-negative, got %d", engine.MaxMessageTokens))
	}
	if engine.FallbackTargetTokens < 0 {
		errs = append(errs, fmt.Errorf("config: engine.fallback_target_tokens must be non-negative, got %d", engine.FallbackTargetTokens))
	}
	if engine.ToolResultTTL < 0 {
		errs = append(errs, fmt.Errorf("config: engine.tool_result_ttl must be non-negative, got %v", engine.ToolResultTTL))
	}
	if engine.Pruning.KeepLastNAssistant < 0 {
		errs = append(errs, fmt.Errorf("config: engine.pruning.keep_last_n_assistant must be non-negative, got %d", engine.Pruning.KeepLastNAssistant))
	}
	if engine.Pruning.MaxMessageAge < 0 {
		errs = append(errs, fmt.Errorf("config: engine.pruning.max_message_age must be non-negative, got %v", engine.Pruning.MaxMessageAge))
	}

	return errs
}
