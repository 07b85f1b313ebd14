// Package budget provides token budget estimation and prompt trimming for
// insight generation. Because the system supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B,
	// GPT-3.5) while leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimResourceBlocks drops grounding blocks from the end of blocks until the
// combined estimate of fixed prompt text plus the surviving blocks fits within
// maxTokens. Callers order blocks most-relevant-first, so the least relevant
// grounding material is sacrificed first.
//
// Returns the surviving prefix. If even an empty block list exceeds the
// budget, the empty slice is returned; fixed prompt text is never trimmed
// here, so callers should warn separately when it alone exceeds the budget.
func TrimResourceBlocks(fixed string, blocks []string, maxTokens int) []string {
	if len(blocks) == 0 {
		return blocks
	}

	fixedTokens := Estimate(fixed)

	total := fixedTokens
	for _, b := range blocks {
		total += Estimate(b)
	}
	for len(blocks) > 0 && total > maxTokens {
		last := blocks[len(blocks)-1]
		total -= Estimate(last)
		blocks = blocks[:len(blocks)-1]
	}
	return blocks
}
