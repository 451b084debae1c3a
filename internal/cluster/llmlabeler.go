package cluster

import (
	"context"

	"github.com/zyrak/simdoc/internal/llm"
	"github.com/zyrak/simdoc/internal/models"
)

// LLMLabeler adapts internal/llm's (title, text, maxTerms) Labeler to the
// Registry's single-string Label signature. Selected when TOPTERMS_MODE=llm
// (spec_full §10); the default stays the frequency-based extractor.
type LLMLabeler struct {
	inner    llm.Labeler
	maxTerms int
}

// NewLLMLabeler wraps inner. maxTerms bounds the returned term count.
func NewLLMLabeler(inner llm.Labeler, maxTerms int) *LLMLabeler {
	if maxTerms <= 0 {
		maxTerms = 10
	}
	return &LLMLabeler{inner: inner, maxTerms: maxTerms}
}

// Label satisfies Labeler. text is the founder's "title content" join; we
// pass it through as the text with an empty title, since the Registry only
// ever has the combined string at hand.
func (l *LLMLabeler) Label(ctx context.Context, text string) ([]models.Term, error) {
	terms, err := l.inner.Label(ctx, "", text, l.maxTerms)
	if err != nil {
		return nil, err
	}
	out := make([]models.Term, 0, len(terms))
	for _, t := range terms {
		out = append(out, models.Term{Term: t.Term, Weight: t.Weight})
	}
	return out, nil
}
