package llm

import (
	"context"
	"strings"

	"github.com/voicewise/insights/internal/models"
)

type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental).
	StreamAnswer(ctx context.Context, prompt string) (chunks <-chan string, errs <-chan error)
	Close() error
}

// Extractor turns a finished transcript into structured insight fields.
type Extractor interface {
	ExtractInsights(ctx context.Context, transcript, contextText string, customInstructions []string) (models.ExtractedInsight, error)
}

// LiveAnalyzer scores the caller's side of a call in progress.
type LiveAnalyzer interface {
	AnalyzeLive(ctx context.Context, userText string, prev models.LiveEstimate) (models.LiveEstimate, error)
}

// QueryExpander rewrites a search query with synonyms and related phrasing
// before it is embedded.
type QueryExpander interface {
	ExpandQuery(ctx context.Context, query string) (string, error)
}

// Collect drains a stream into one string.
func Collect(ctx context.Context, p Provider, prompt string) (string, error) {
	chunks, errs := p.StreamAnswer(ctx, prompt)
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	if err := <-errs; err != nil {
		return "", err
	}
	return b.String(), nil
}
