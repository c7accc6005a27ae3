package generator

import (
	"context"
	"errors"
)

// Agent is the reasoning agent that rewrites malformed provider output into
// the expected shape.
type Agent struct {
	llm LLMClient
}

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Reformat asks the LLM to convert raw into JSON matching shape. cause is the
// parse or validation error that triggered the reformat and may be nil.
func (a *Agent) Reformat(ctx context.Context, shape Shape, raw string, cause error) (string, error) {
	return a.llm.Complete(ctx, BuildReformatPrompt(shape, raw, cause))
}
