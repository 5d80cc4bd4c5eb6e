package ctxengine

import (
	"regexp"
	"sort"
	"strings"
)

// Compression strategy names reported in CompressionResult.
const (
	StrategyNone               = "none"
	StrategyTruncate           = "truncate"
	StrategyRemoveMiddle       = "remove-middle"
	StrategyExtractKey         = "extract-key"
	StrategyAggressiveTruncate = "aggressive-truncate"
)

// charsPerTokenApprox converts a token target into a character budget for
// the slicing strategies. Deliberately conservative.
const charsPerTokenApprox = 4

// CompressionResult is the outcome of compressing one content block.
type CompressionResult struct {
	Content        string
	TokenCount     int
	OriginalTokens int

	// CompressionRatio is 1 - TokenCount/OriginalTokens: 0 when nothing was
	// saved (or OriginalTokens is 0), approaching 1 for heavy compression.
	// Never negative.
	CompressionRatio float64

	Strategy string
}

// FallbackCompressor shrinks a single oversized content block through a
// ladder of increasingly destructive strategies.
type FallbackCompressor struct {
	estimator TokenEstimator
}

// NewFallbackCompressor creates a compressor using the given estimator.
func NewFallbackCompressor(estimator TokenEstimator) *FallbackCompressor {
	return &FallbackCompressor{estimator: estimator}
}

// Apply runs the fallback ladder until the result fits the target (with a
// ~1.1x safety margin) or the ladder is exhausted, in which case the final
// rung's result is returned unconditionally.
//
// The ladder, least to most destructive:
//
//  1. truncate: keep head and tail, drop the middle.
//  2. remove-middle: same, biased 70:30 toward the head.
//  3. extract-key: keep the sentences that carry error/code/task signal.
//  4. aggressive-truncate: hard cut to the character budget.
//
// Apply is total: it never fails, and the result's token count never exceeds
// the original's. A non-positive target is treated as zero.
func (c *FallbackCompressor) Apply(content string, targetTokens int) CompressionResult {
	if targetTokens < 0 {
		targetTokens = 0
	}
	originalTokens := c.estimator.Estimate(content)

	// Already satisfied (includes empty content).
	margin := targetTokens + targetTokens/10
	if originalTokens <= margin {
		return CompressionResult{
			Content:        content,
			TokenCount:     originalTokens,
			OriginalTokens: originalTokens,
			Strategy:       StrategyNone,
		}
	}

	if res := c.Truncate(content, targetTokens); res.TokenCount <= margin {
		return res
	}
	if res := c.RemoveMiddle(content, targetTokens); res.TokenCount <= margin {
		return res
	}
	if res, ok := c.ExtractKeyInfo(content, targetTokens); ok && res.TokenCount <= margin {
		return res
	}
	// The floor of the ladder: returned whether or not it meets the target.
	return c.AggressiveTruncate(content, targetTokens)
}

// rungOutput is a strategy's raw output before token accounting.
type rungOutput struct {
	content  string
	strategy string
}

// finish turns a rung output into a CompressionResult, clamping so a
// "compressed" block can never cost more tokens than the original.
func (c *FallbackCompressor) finish(out rungOutput, original string) CompressionResult {
	originalTokens := c.estimator.Estimate(original)
	content := out.content
	tokens := c.estimator.Estimate(content)
	if tokens > originalTokens {
		// Markers on tiny inputs can outgrow the source; keep the source.
		content = original
		tokens = originalTokens
	}
	ratio := 0.0
	if originalTokens > 0 && tokens < originalTokens {
		ratio = 1 - float64(tokens)/float64(originalTokens)
	}
	return CompressionResult{
		Content:          content,
		TokenCount:       tokens,
		OriginalTokens:   originalTokens,
		CompressionRatio: ratio,
		Strategy:         out.strategy,
	}
}

// Truncate keeps the literal start and end of the content and drops the
// middle, so headers and trailing state survive.
func (c *FallbackCompressor) Truncate(content string, targetTokens int) CompressionResult {
	const marker = "\n...truncated...\n"
	budget := clampTarget(targetTokens) * charsPerTokenApprox
	return c.finish(rungOutput{
		content:  spliceHeadTail(content, budget, marker, 50),
		strategy: StrategyTruncate,
	}, content)
}

// RemoveMiddle drops the middle with an explicit 70:30 head:tail split,
// favouring the problem statement over trailing detail.
func (c *FallbackCompressor) RemoveMiddle(content string, targetTokens int) CompressionResult {
	const marker = "\n...removed...\n"
	budget := clampTarget(targetTokens) * charsPerTokenApprox
	return c.finish(rungOutput{
		content:  spliceHeadTail(content, budget, marker, 70),
		strategy: StrategyRemoveMiddle,
	}, content)
}

// spliceHeadTail keeps headPercent of the character budget from the start
// and the rest from the end, joined by the marker. Both segments are literal
// slices of the original.
func spliceHeadTail(content string, budgetChars int, marker string, headPercent int) string {
	if budgetChars >= len(content) {
		return content
	}
	headLen := budgetChars * headPercent / 100
	tailLen := budgetChars - headLen
	if headLen < 1 {
		headLen = 1
	}
	if tailLen < 1 {
		tailLen = 1
	}
	if headLen+tailLen >= len(content) {
		return content
	}
	return content[:headLen] + marker + content[len(content)-tailLen:]
}

// keyVocab marks sentences worth keeping during key-info extraction.
var keyVocab = []string{
	"error", "bug", "fix", "fail", "todo", "fixme", "warning", "broken",
	"panic", "crash",
}

// callPattern matches function-call shapes like `doThing(` or `pkg.Fn(`.
var callPattern = regexp.MustCompile(`\b\w+(\.\w+)*\(`)

// ExtractKeyInfo keeps the highest-scoring sentences until the target is
// approached. Returns ok=false when no sentence carries any signal, so the
// ladder falls through to the aggressive rung instead of returning an
// arbitrary selection.
func (c *FallbackCompressor) ExtractKeyInfo(content string, targetTokens int) (CompressionResult, bool) {
	targetTokens = clampTarget(targetTokens)
	sentences := splitSentences(content)

	type scored struct {
		pos   int
		score int
		text  string
	}
	var candidates []scored
	for i, s := range sentences {
		score := sentenceScore(s)
		if score > 0 {
			candidates = append(candidates, scored{pos: i, score: score, text: s})
		}
	}
	if len(candidates) == 0 {
		return CompressionResult{}, false
	}

	// Best signal first; stable so earlier sentences win ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	kept := make(map[int]string)
	used := 0
	for _, cand := range candidates {
		cost := c.estimator.Estimate(cand.text)
		if used > 0 && used+cost > targetTokens {
			break
		}
		kept[cand.pos] = cand.text
		used += cost
		if used >= targetTokens {
			break
		}
	}

	// Re-emit in original order.
	var b strings.Builder
	for i := range sentences {
		if text, ok := kept[i]; ok {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(text)
		}
	}
	return c.finish(rungOutput{content: b.String(), strategy: StrategyExtractKey}, content), true
}

// sentenceScore counts key-vocabulary hits and code-syntax indicators.
func sentenceScore(sentence string) int {
	score := 0
	lower := strings.ToLower(sentence)
	for _, word := range keyVocab {
		if strings.Contains(lower, word) {
			score++
		}
	}
	if strings.Contains(sentence, "`") {
		score++
	}
	if callPattern.MatchString(sentence) {
		score++
	}
	return score
}

// splitSentences breaks content on sentence punctuation and newlines,
// dropping empty fragments. Linear in the content length.
func splitSentences(content string) []string {
	fragments := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	sentences := fragments[:0]
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f != "" {
			sentences = append(sentences, f)
		}
	}
	return sentences
}

// AggressiveTruncate is the unconditional floor: a hard cut to the character
// budget with an explicit notice. When even the notice would outgrow the
// original, the original is returned as-is.
func (c *FallbackCompressor) AggressiveTruncate(content string, targetTokens int) CompressionResult {
	const notice = "\n[content truncated]"
	budget := clampTarget(targetTokens)*charsPerTokenApprox - len(notice)
	if budget < 0 {
		budget = 0
	}
	out := rungOutput{strategy: StrategyAggressiveTruncate}
	switch {
	case budget >= len(content):
		out.content = content
	default:
		out.content = content[:budget] + notice
		if len(out.content) >= len(content) {
			out.content = content
		}
	}
	return c.finish(out, content)
}

// clampTarget treats negative targets as zero so every rung shares the
// same malformed-input behaviour.
func clampTarget(targetTokens int) int {
	if targetTokens < 0 {
		return 0
	}
	return targetTokens
}
