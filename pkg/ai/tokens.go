package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultTokenEncoder = "o200k_base"

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// EstimateTokens returns the token count of text under the default
// encoder, falling back to a bytes/4 estimate when the encoder cannot
// be loaded (offline environments).
func EstimateTokens(text string) int {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(defaultTokenEncoder)
		if err == nil {
			encoder = enc
		}
	})
	if encoder == nil {
		return len(text) / 4
	}
	return len(encoder.Encode(text, nil, nil))
}
