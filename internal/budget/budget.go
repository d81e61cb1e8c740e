// Package budget provides token budget estimation for the prompts vetrag
// sends to the LLM. Because the assistant supports several backends with
// different tokenizers, it uses a conservative byte-based heuristic:
// 1 token ≈ 4 bytes. Persian text is two bytes per letter in UTF-8, so the
// estimate runs high for it, which leaves headroom rather than overflowing.
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/vetrag-go/internal/rag"
)

const (
	// charsPerToken is the byte-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// It fits 8k-context models while leaving room for the answer.
	// Override via MODEL_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000

	// separatorTokens is the cost of the blank line joining two passages.
	separatorTokens = 1
)

// Estimate returns a rough token count for s using the byte heuristic.
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

// FitResults drops the lowest-ranked results until fixed (the system prompt
// and question template) plus the joined passages fit within maxTokens.
// The top-ranked result is always kept.
//
// Returns the kept prefix of results and the number dropped.
func FitResults(fixed []*schema.Message, results []rag.Result, maxTokens int) ([]rag.Result, int) {
	if len(results) <= 1 {
		return results, 0
	}

	total := EstimateMessages(fixed)
	for i, r := range results {
		cost := Estimate(r.Content)
		if i > 0 {
			cost += separatorTokens
		}
		if i > 0 && total+cost > maxTokens {
			return results[:i], len(results) - i
		}
		total += cost
	}
	return results, 0
}
