package generator

import (
	"context"
	"errors"
	"strings"
)

// MockLLM is an offline LLMClient for local runs. It answers a reformat
// request by echoing the JSON found in the text being converted.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	text := prompt.User
	if idx := strings.Index(text, reformatInputMarker); idx >= 0 {
		text = text[idx+len(reformatInputMarker):]
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", errors.New("mock llm: no json in prompt")
	}
	end := strings.LastIndexAny(text, "}]")
	if end < start {
		return text[start:], nil
	}
	return text[start : end+1], nil
}
