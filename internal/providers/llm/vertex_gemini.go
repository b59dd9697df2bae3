package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"

	"github.com/voicewise/insights/internal/utils"
)

const defaultModel = "gemini-1.5-flash"

type VertexConfig struct {
	Project  string
	Location string
	Model    string
	// Temperature defaults to 0.2; extraction wants stable output.
	Temperature float32
	// MaxOutputTokens is left to the model default when zero.
	MaxOutputTokens int32
}

// VertexGemini streams JSON-mode completions from Gemini on Vertex AI.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, cfg VertexConfig) (*VertexGemini, error) {
	const op = "VertexGemini.New"
	if cfg.Project == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "VERTEX_PROJECT is required", nil)
	}
	c, err := vertexgenai.NewClient(ctx, cfg.Project, cfg.Location)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "vertex client", err)
	}

	name := cfg.Model
	if name == "" {
		name = defaultModel
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.2
	}

	m := c.GenerativeModel(name)
	m.SetTemperature(temp)
	if cfg.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	m.ResponseMIMEType = "application/json"
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

var errBlocked = errors.New("response blocked by safety filters")

func (v *VertexGemini) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	const op = "VertexGemini.StreamAnswer"
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		it := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- utils.Collaborator(op, "gemini stream", err)
				return
			}
			if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != vertexgenai.BlockedReasonUnspecified {
				errs <- utils.E(utils.CodeInvalidArgument, op, "prompt blocked", errBlocked)
				return
			}

			for _, cand := range resp.Candidates {
				if cand.FinishReason == vertexgenai.FinishReasonSafety {
					errs <- utils.E(utils.CodeInvalidArgument, op, "candidate blocked", errBlocked)
					return
				}
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					t, ok := part.(vertexgenai.Text)
					if !ok || t == "" {
						continue
					}
					select {
					case out <- string(t):
					case <-ctx.Done():
						errs <- utils.Collaborator(op, "gemini stream", ctx.Err())
						return
					}
				}
			}
		}
	}()

	return out, errs
}
