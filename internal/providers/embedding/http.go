package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voicewise/insights/internal/utils"
)

// maxInputChars bounds the request size; the model truncates long inputs
// to its token window anyway.
const maxInputChars = 8000

// HTTPProvider calls an OpenAI-compatible /embeddings endpoint.
type HTTPProvider struct {
	url    string
	model  string
	apiKey string
	dim    int
	client *http.Client
}

type HTTPConfig struct {
	URL     string
	Model   string
	APIKey  string
	Dim     int
	Timeout time.Duration
}

func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Dim <= 0 {
		cfg.Dim = 384
	}
	return &HTTPProvider{
		url:    cfg.URL,
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		dim:    cfg.Dim,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *HTTPProvider) Dimensions() int { return p.dim }

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "HTTPProvider.Embed"

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty text", nil)
	}
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	body, err := json.Marshal(embedRequest{Input: []string{text}, Model: p.model})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, utils.Collaborator(op, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, utils.Collaborator(op, "embedding request failed",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, utils.Collaborator(op, "decode embedding response", err)
	}
	if len(out.Data) == 0 {
		return nil, utils.Collaborator(op, "empty embedding response", nil)
	}
	vec := out.Data[0].Embedding
	if len(vec) != p.dim {
		return nil, utils.Collaborator(op, fmt.Sprintf("embedding has %d dimensions, want %d", len(vec), p.dim), nil)
	}
	return vec, nil
}
