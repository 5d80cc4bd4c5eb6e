package ctxengine

import "time"

// Strategy names used in Report.StrategiesUsed for the structural and
// message-level stages. Per-message stages report their compression
// strategy names (StrategyTruncate etc.).
const (
	StrategyHardClear       = "hard-clear"
	StrategyMessageFallback = "message-fallback"
)

// Report describes what one budget check did, for observability and tests.
type Report struct {
	TokensBefore     int
	TokensAfter      int
	StrategiesUsed   []string
	ClearedCount     int
	ToolCallsCleared []string
	CompressionRatio float64
	UsedFallback     bool
	Duration         time.Duration
}

// Compacted reports whether the check changed anything.
func (r Report) Compacted() bool {
	return len(r.StrategiesUsed) > 0
}

// Engine is the per-session budget monitor. It owns the ordering guarantee
// of a budget check: cheap structural pruning always runs before destructive
// content rewriting, and the message-level summarizer is the strict last
// resort, invoked at most once per check.
//
// One Engine is constructed per conversation session and passed by
// reference; it holds no global state and sessions never share one.
// Like the rest of the package it is single-writer: the caller must not
// invoke it concurrently for the same session.
type Engine struct {
	estimator  TokenEstimator
	tracker    *ToolCallTracker
	compressor *FallbackCompressor
	summarizer *MessageSummarizer
	sink       ArchiveSink
	config     EngineConfig
	now        func() time.Time
}

// NewEngine creates an engine for one session. The estimator and tracker are
// required; archive sink and clock have working defaults (discard, time.Now).
func NewEngine(estimator TokenEstimator, tracker *ToolCallTracker, cfg EngineConfig) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		estimator:  estimator,
		tracker:    tracker,
		compressor: NewFallbackCompressor(estimator),
		summarizer: NewMessageSummarizer(estimator, nil),
		sink:       discardSink{},
		config:     cfg,
		now:        time.Now,
	}
}

// SetArchiveSink attaches a sink for evicted-content records.
func (e *Engine) SetArchiveSink(sink ArchiveSink) {
	if sink == nil {
		sink = discardSink{}
	}
	e.sink = sink
}

// SetClock replaces the time source, for deterministic age and TTL tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.now = now
	e.summarizer = NewMessageSummarizer(e.estimator, now)
}

// Config returns the effective (defaulted) engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Tracker returns the session's tool-call tracker.
func (e *Engine) Tracker() *ToolCallTracker {
	return e.tracker
}

// CheckAndCompact runs one budget check over the message sequence and
// returns the (possibly replaced) sequence plus a report.
//
// Below the warning threshold it is a no-op. Between warning and critical
// only the structural hard-clear passes run. At or above critical the
// progressive fallback compressor additionally rewrites oversized messages,
// and if the total still exceeds critical after that full pass, the
// message-level fallback runs once.
//
// The engine must not retain references to the sequence after returning.
func (e *Engine) CheckAndCompact(messages []Message) ([]Message, Report) {
	start := e.now()
	report := Report{TokensBefore: EstimateMessages(e.estimator, messages)}
	report.TokensAfter = report.TokensBefore

	defer func() {
		// Duration is taken from the injected clock so tests stay
		// deterministic; a frozen clock reports zero.
		if d := e.now().Sub(start); d > 0 {
			report.Duration = d
		}
	}()

	if report.TokensBefore < e.config.Thresholds.WarningTokens {
		return messages, report
	}

	messages = e.structuralPrune(messages, &report)
	total := EstimateMessages(e.estimator, messages)

	if total >= e.config.Thresholds.CriticalTokens {
		messages = e.compressOversized(messages, &report)
		total = EstimateMessages(e.estimator, messages)
	}

	if total >= e.config.Thresholds.CriticalTokens {
		messages = e.messageFallback(messages, &report)
		total = EstimateMessages(e.estimator, messages)
	}

	report.TokensAfter = total
	if report.TokensBefore > 0 && total < report.TokensBefore {
		report.CompressionRatio = 1 - float64(total)/float64(report.TokensBefore)
	}
	return messages, report
}

// structuralPrune runs the hard-clear passes, forwards archive records, and
// releases cleared tool calls from the tracker.
func (e *Engine) structuralPrune(messages []Message, report *Report) []Message {
	now := e.now()
	expired := e.tracker.Expired(now)
	res := ApplyHardClear(messages, expired, e.config.Pruning, now)

	for _, rec := range res.Archived {
		e.sink.Archive(rec)
	}
	for _, id := range res.ToolCallsCleared {
		e.tracker.Remove(id)
	}

	report.ClearedCount = res.ClearedCount
	report.ToolCallsCleared = res.ToolCallsCleared
	if res.ClearedCount > 0 {
		e.recordStrategy(report, StrategyHardClear)
	}
	return res.Messages
}

// compressOversized applies the progressive fallback ladder to every
// not-yet-cleared message above the per-message cap.
func (e *Engine) compressOversized(messages []Message, report *Report) []Message {
	limit := e.config.MaxMessageTokens
	for i := range messages {
		msg := &messages[i]
		if msg.HardCleared {
			continue
		}
		if EstimateMessage(e.estimator, *msg) <= limit {
			continue
		}
		res := e.compressor.Apply(msg.Content, limit)
		if res.Strategy == StrategyNone || res.TokenCount >= res.OriginalTokens {
			continue
		}
		msg.Content = res.Content
		msg.SoftTrimmed = true
		e.recordStrategy(report, res.Strategy)
	}
	return messages
}

// messageFallback collapses the whole sequence into one summary message and
// archives the event.
func (e *Engine) messageFallback(messages []Message, report *Report) []Message {
	res := e.summarizer.Apply(messages, e.config.FallbackTargetTokens)
	e.sink.Archive(ArchiveRecord{
		Index:       0,
		Reason:      ReasonFallback,
		ClearedAt:   e.now(),
		Placeholder: fallbackHeader,
	})
	report.UsedFallback = true
	e.recordStrategy(report, StrategyMessageFallback)
	return res.Messages
}

// recordStrategy appends a strategy name once, preserving first-use order.
func (e *Engine) recordStrategy(report *Report, strategy string) {
	for _, s := range report.StrategiesUsed {
		if s == strategy {
			return
		}
	}
	report.StrategiesUsed = append(report.StrategiesUsed, strategy)
}
