// Package utils provides shared helpers for the Relay framework.
package utils

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens for a specific model using tiktoken encodings.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

var (
	// Encoding initialization is expensive; cache per model.
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for the given model. Unknown models
// fall back to the cl100k_base encoding used by the GPT-4 family.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// GetModel returns the model this counter was created for.
func (tc *TokenCounter) GetModel() string {
	return tc.model
}

// Count returns the token count for a piece of text.
func (tc *TokenCounter) Count(text string) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessage counts tokens for one chat message including the per-message
// format overhead described in OpenAI's token counting cookbook.
func (tc *TokenCounter) CountMessage(role, content string) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	// <|start|>role<|message|>content<|end|>
	tokens := 3
	tokens += len(tc.encoding.Encode(role, nil, nil))
	tokens += len(tc.encoding.Encode(content, nil, nil))
	return tokens
}
