package ctxengine

// TokenEstimator estimates the token count of a string.
//
// Implementations must be monotonic in text length; the engine never ships
// its own tokenizer and treats the estimate as ground truth.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for French or other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0 (English approximation).
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := float64(len(text)) / e.CharsPerToken
	// Always round up to avoid underestimation.
	return int(tokens) + 1
}

// messageOverheadTokens approximates the per-message cost of role and
// formatting tokens in the provider wire format.
const messageOverheadTokens = 4

// EstimateMessage returns the estimated token count for a single message,
// including per-message overhead.
func EstimateMessage(estimator TokenEstimator, msg Message) int {
	return messageOverheadTokens + estimator.Estimate(msg.Content)
}

// EstimateMessages returns the total estimated tokens for a message sequence.
func EstimateMessages(estimator TokenEstimator, messages []Message) int {
	total := 0
	for i := range messages {
		total += EstimateMessage(estimator, messages[i])
	}
	return total
}
