package generator

import "context"

// LLMClient abstracts the text model used to reformat malformed output.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings is the base configuration shared by LLMClient implementations.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
