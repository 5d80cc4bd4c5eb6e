// Package tiktoken provides a TokenEstimator backed by real BPE encodings,
// for exact budget accounting against OpenAI-tokenizer models. Loading an
// encoding downloads its vocabulary on first use, so deployments that must
// stay offline keep the character-ratio estimator instead.
package tiktoken

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

// fallbackEncoding is used when the model name is unknown to the library.
const fallbackEncoding = "cl100k_base"

// Estimator counts tokens with a tiktoken BPE encoder. Safe for concurrent
// use; the underlying encoder is read-only after construction.
type Estimator struct {
	encoder *tiktoken.Tiktoken
}

var _ ctxengine.TokenEstimator = (*Estimator)(nil)

// New creates an estimator for the given model, falling back to the
// cl100k_base encoding when the model is not recognised.
func New(model string) (*Estimator, error) {
	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoder, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("tiktoken: get encoding: %w", err)
		}
	}
	return &Estimator{encoder: encoder}, nil
}

// Estimate implements ctxengine.TokenEstimator.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.encoder.Encode(text, nil, nil))
}
