package window

import (
	"fmt"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"parley/internal/domain"
)

// TikToken wraps tiktoken-go to implement domain.Tokenizer.
type TikToken struct {
	encoding *tiktoken.Tiktoken
}

// NewTikToken creates a TikToken tokenizer with the given encoding name.
// Common encodings: "cl100k_base" (GPT-4/3.5), "o200k_base" (GPT-4o).
// Returns an error if the encoding is not recognized or its dictionary
// cannot be loaded.
func NewTikToken(encodingName string) (*TikToken, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("window: unknown encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: enc}, nil
}

// CountTokens returns the number of tokens in the given text.
func (t *TikToken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := t.encoding.Encode(text, nil, nil)
	return len(tokens), nil
}

// Estimator approximates token counts at four characters per token. It stands
// in for TikToken when the encoding dictionary is unavailable (for example on
// hosts without network access for the initial dictionary download).
type Estimator struct{}

// NewEstimator returns a character-count based Tokenizer.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// CountTokens returns ceil(runes/4).
func (e *Estimator) CountTokens(text string) (int, error) {
	return estimateTokens(text), nil
}

// estimateTokens approximates a token count at four runes per token, rounded up.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	return (runes + 3) / 4
}

var (
	_ domain.Tokenizer = (*TikToken)(nil)
	_ domain.Tokenizer = (*Estimator)(nil)
)
