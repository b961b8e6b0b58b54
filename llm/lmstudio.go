package llm

import "context"

// NewLMStudio creates a provider backed by a local LM Studio server.
// LM Studio exposes a standard OpenAI-compatible API on port 1234.
func NewLMStudio(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:1234"
	}
	return &lmStudioProvider{base: newOpenAICompatClient(cfg)}
}

type lmStudioProvider struct {
	base openAICompatClient
}

func (p *lmStudioProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *lmStudioProvider) ChatStream(ctx context.Context, req ChatRequest, emit func(string) error) (*ChatResponse, error) {
	return p.base.chatStream(ctx, req, emit)
}

func (p *lmStudioProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

// Ping checks that the LM Studio server is reachable.
func (p *lmStudioProvider) Ping(ctx context.Context) error {
	return p.base.ping(ctx, "/v1/models")
}
