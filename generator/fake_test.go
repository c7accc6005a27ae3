package generator

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"lecture_builder/twelvelabs"
)

// fakeAnalyzer is an in-memory VideoAnalyzer. Analyze answers by matching a
// substring of the prompt against responses.
type fakeAnalyzer struct {
	mu sync.Mutex

	responses  map[string]string
	analyzeErr error

	chunks    []string
	failAfter int // -1 streams every chunk successfully
	streamErr error

	summary    string
	summaryErr error
	gist       twelvelabs.Gist
	gistErr    error
	indexes    []twelvelabs.Index

	calls   map[string]int
	prompts []string
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		responses: map[string]string{},
		failAfter: -1,
		calls:     map[string]int{},
	}
}

func (f *fakeAnalyzer) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeAnalyzer) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAnalyzer) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeAnalyzer) ListIndexes(context.Context) ([]twelvelabs.Index, error) {
	f.count("indexes")
	return f.indexes, nil
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, prompt string) (string, error) {
	f.count("analyze")
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.analyzeErr != nil {
		return "", f.analyzeErr
	}
	for key, resp := range f.responses {
		if strings.Contains(prompt, key) {
			return resp, nil
		}
	}
	return "", errors.New("fake: no response for prompt")
}

func (f *fakeAnalyzer) AnalyzeStream(context.Context, string, string) iter.Seq2[string, error] {
	f.count("stream")
	return func(yield func(string, error) bool) {
		for i, chunk := range f.chunks {
			if i == f.failAfter {
				yield("", f.streamErr)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if f.failAfter == len(f.chunks) {
			yield("", f.streamErr)
		}
	}
}

func (f *fakeAnalyzer) Summarize(context.Context, string, string) (string, error) {
	f.count("summarize")
	return f.summary, f.summaryErr
}

func (f *fakeAnalyzer) Gist(context.Context, string, []string) (twelvelabs.Gist, error) {
	f.count("gist")
	return f.gist, f.gistErr
}

type stubLLM struct {
	reply   string
	err     error
	prompts []Prompt
}

func (s *stubLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

const (
	chaptersJSON = `{"chapters":[{"title":"Intro","summary":"Why graphs matter.","start_time":0,"end_time":60},{"title":"BFS","summary":"Breadth-first search.","start_time":60,"end_time":300}]}`
	takeawaysKey = "key takeaways"
	chaptersKey  = "Split this lecture"
	pacingKey    = "pacing"
	engageKey    = "engage"
	quizKey      = "quiz questions"
)
