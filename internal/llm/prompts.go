package llm

import (
	"fmt"
)

// Prompt template for cluster top-term labeling.

const systemPrompt = `You are a terse document-clustering assistant. You extract the most salient terms from a news article's title and body. You never add filler or commentary.`

// BuildLabelPrompt creates the top-terms extraction prompt for a cluster's founding article.
func BuildLabelPrompt(title, text string, maxTerms int) string {
	return fmt.Sprintf(`Extract up to %d of the most salient terms or short phrases from this article.
For each term, give a weight in [0,1] reflecting its relative importance.

Title: %s

Body:
%s

Respond with ONLY a JSON array of objects shaped like {"term": "...", "weight": 0.0}, sorted by weight descending.`,
		maxTerms, title, truncateContent(text, 4000))
}

func truncateContent(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}
	return content[:maxChars] + "\n[...truncated]"
}
