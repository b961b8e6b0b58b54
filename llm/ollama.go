package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// NewOllama creates a provider backed by a local Ollama server.
// Chat goes through Ollama's OpenAI-compatible endpoint; embeddings use
// the native /api/embed endpoint, which supports batch input.
func NewOllama(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return &ollamaProvider{base: newOpenAICompatClient(cfg)}
}

type ollamaProvider struct {
	base openAICompatClient
}

func (p *ollamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *ollamaProvider) ChatStream(ctx context.Context, req ChatRequest, emit func(string) error) (*ChatResponse, error) {
	return p.base.chatStream(ctx, req, emit)
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := ollamaEmbedRequest{
		Model: p.base.cfg.Model,
		Input: texts,
	}

	respBody, err := p.base.doPost(ctx, "/api/embed", body)
	if err != nil {
		return nil, err
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding ollama embed response: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Ping checks that the Ollama server is up. /api/tags is cheap and does
// not trigger a model load.
func (p *ollamaProvider) Ping(ctx context.Context) error {
	return p.base.ping(ctx, "/api/tags")
}
