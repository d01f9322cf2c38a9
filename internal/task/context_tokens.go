package task

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/codefionn/agentloop/internal/transcript"
)

// TokenCounter measures a transcript's context-window footprint so hosts can
// decide when to condense the history.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding. The encoding data may need
// a network fetch on first use; callers should fall back to the estimating
// counter when this fails.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding: %w", err)
	}
	return &TokenCounter{enc: enc}, nil
}

// estimatingCounter approximates tokens as len/4 when no encoding is
// available, which is close enough for condensation thresholds.
func estimatingCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the token count of one text.
func (c *TokenCounter) Count(text string) int {
	if c.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountTranscript sums the footprint of every block, including tool-call
// argument payloads.
func (c *TokenCounter) CountTranscript(tr *transcript.Transcript) int {
	total := 0
	for _, msg := range tr.Messages() {
		for _, block := range msg.Blocks {
			total += c.Count(block.Text)
			total += c.Count(block.ToolName)
			for key, value := range block.Arguments {
				total += c.Count(key)
				total += c.Count(fmt.Sprintf("%v", value))
			}
		}
	}
	return total
}
