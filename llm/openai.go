package llm

// NewOpenAI creates a provider for the hosted OpenAI API.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	return &openAICompatProvider{base: newOpenAICompatClient(cfg)}
}
