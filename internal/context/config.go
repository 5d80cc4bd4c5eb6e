// Package ctxengine implements conversation context management for the agent
// loop: importance classification, tool-call lifetime tracking, structural
// pruning, progressive content compression, and budget-driven compaction.
//
// The engine is synchronous and single-threaded per session. All operations
// are total functions over their input domain: they perform no I/O, return no
// errors, and always terminate with a bounded result, even when the budget
// cannot be met.
package ctxengine

import "time"

// Default values for EngineConfig.
const (
	DefaultWarningTokens      = 60000
	DefaultCriticalTokens     = 80000
	DefaultMaxMessageTokens   = 2048
	DefaultFallbackTokens     = 4096
	DefaultKeepLastNAssistant = 3
)

// Thresholds defines the token levels that trigger compaction.
type Thresholds struct {
	// WarningTokens triggers structural pruning (hard-clearing expired and
	// aged content). Below it, a budget check is a no-op.
	WarningTokens int

	// CriticalTokens additionally triggers per-message compression and, as
	// a last resort, the message-level fallback.
	CriticalTokens int
}

// PruningConfig controls the hard-clear passes of the pruning controller.
type PruningConfig struct {
	// KeepSystemMessages exempts system messages from age-based clearing.
	KeepSystemMessages bool

	// KeepUserMessages exempts user messages from age-based clearing.
	KeepUserMessages bool

	// KeepLastNAssistant exempts the N most recent assistant messages
	// (by original order) from age-based clearing.
	KeepLastNAssistant int

	// MaxMessageAge makes messages older than this eligible for age-based
	// clearing. Zero or negative disables the age pass entirely.
	MaxMessageAge time.Duration
}

// EngineConfig holds the tuning knobs for the context engine.
type EngineConfig struct {
	Thresholds Thresholds
	Pruning    PruningConfig

	// MaxMessageTokens is the per-message size above which the progressive
	// fallback compressor is applied during a critical budget check.
	MaxMessageTokens int

	// FallbackTargetTokens is the target handed to the message-level
	// fallback summarizer.
	FallbackTargetTokens int
}

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// sensible defaults.
func (cfg EngineConfig) withDefaults() EngineConfig {
	if cfg.Thresholds.WarningTokens == 0 {
		cfg.Thresholds.WarningTokens = DefaultWarningTokens
	}
	if cfg.Thresholds.CriticalTokens == 0 {
		cfg.Thresholds.CriticalTokens = DefaultCriticalTokens
	}
	if cfg.MaxMessageTokens == 0 {
		cfg.MaxMessageTokens = DefaultMaxMessageTokens
	}
	if cfg.FallbackTargetTokens == 0 {
		cfg.FallbackTargetTokens = DefaultFallbackTokens
	}
	if cfg.Pruning.KeepLastNAssistant == 0 {
		cfg.Pruning.KeepLastNAssistant = DefaultKeepLastNAssistant
	}
	return cfg
}
