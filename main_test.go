package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture_builder/config"
	"lecture_builder/generator"
)

const testChaptersJSON = `{"chapters":[{"title":"Intro","summary":"Why graphs matter.","start_time":0,"end_time":60}]}`

// fakeTwelveLabs serves the provider endpoints the CLI uses.
func fakeTwelveLabs(t *testing.T) *httptest.Server {
	t.Helper()
	analyze := map[string]string{
		"Split this lecture":     testChaptersJSON,
		"List the key takeaways": `{"key_takeaways":[{"takeaway":"BFS finds shortest paths.","timestamp":90}]}`,
		"Review the pacing":      `{"pacing_recommendations":[{"start_time":0,"end_time":60,"issue":"rushed","recommendation":"slow down"}]}`,
		"Suggest moments":        `{"engagement":[{"type":"poll","description":"Which traversal?","timestamp":100}]}`,
		"Write multiple-choice":  `{"questions":[{"question":"BFS uses?","options":["stack","queue"],"answer":"queue"}]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/indexes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"_id":"idx-1","index_name":"lectures"}]}`)
	})
	mux.HandleFunc("/summarize", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"s1","summary":"A lecture on graph traversal."}`)
	})
	mux.HandleFunc("/gist", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"g1","title":"Graphs","topics":["algorithms"],"hashtags":["#bfs"]}`)
	})
	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream {
			fmt.Fprintln(w, `{"event_type":"stream_start"}`)
			fmt.Fprintln(w, `{"event_type":"text_generation","text":"Hello"}`)
			fmt.Fprintln(w, `{"event_type":"text_generation","text":" world"}`)
			fmt.Fprintln(w, `{"event_type":"stream_end"}`)
			return
		}
		for prefix, resp := range analyze {
			if strings.HasPrefix(req.Prompt, prefix) {
				data, _ := json.Marshal(map[string]string{"id": "a1", "data": resp})
				_, _ = w.Write(data)
				return
			}
		}
		http.Error(w, `{"code":"unknown_prompt","message":"no canned answer"}`, http.StatusBadRequest)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ts := fakeTwelveLabs(t)
	t.Setenv(config.EnvTwelveLabsAPIKey, "test-key")
	t.Setenv("LECTURE_BUILDER_TWELVELABS_BASE_URL", ts.URL)
	t.Setenv("LECTURE_BUILDER_LOGGING_LEVEL", "error")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIndexesCommand(t *testing.T) {
	out, err := runCLI(t, "indexes")
	require.NoError(t, err)
	var indexes map[string]generator.Index
	require.NoError(t, json.Unmarshal([]byte(out), &indexes))
	assert.Equal(t, "idx-1", indexes["lectures"].ID)
}

func TestIndexesCommandSelectedIndex(t *testing.T) {
	out, err := runCLI(t, "--index", "lectures", "indexes")
	require.NoError(t, err)
	var idx generator.Index
	require.NoError(t, json.Unmarshal([]byte(out), &idx))
	assert.Equal(t, "idx-1", idx.ID)

	_, err = runCLI(t, "--index", "idx-9", "indexes")
	require.ErrorIs(t, err, generator.ErrIndexNotFound)
}

func TestFeatureCommandRequiresVideo(t *testing.T) {
	_, err := runCLI(t, "chapters")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video id is required")
}

func TestChaptersCommand(t *testing.T) {
	out, err := runCLI(t, "--video", "vid-1", "chapters")
	require.NoError(t, err)
	var res generator.Result[generator.Chapters]
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.True(t, res.Valid)
	assert.Equal(t, "Intro", res.Value.Chapters[0].Title)
}

func TestQuizCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapters.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title":"Intro","summary":"Why graphs matter."}]`), 0o600))

	out, err := runCLI(t, "--video", "vid-1", "quiz", "--chapters-file", path)
	require.NoError(t, err)
	var res generator.Result[generator.QuizQuestions]
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.True(t, res.Valid)
	assert.Equal(t, "queue", res.Value.Questions[0].Answer)
}

func TestQuizCommandRejectsEmptyChapters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapters.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chapters":[]}`), 0o600))

	_, err := runCLI(t, "--video", "vid-1", "quiz", "--chapters-file", path)
	require.ErrorIs(t, err, generator.ErrNoChapters)
}

func TestStreamCommand(t *testing.T) {
	out, err := runCLI(t, "--video", "vid-1", "stream", "--type", "summary", "--prompt", "Summarize")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `{"type":"summary","content":"Hello","status":"in_progress"}`, lines[0])
	assert.Equal(t, `{"type":"summary","chunk":null,"status":"complete"}`, lines[2])
}

func TestBuildCommandPublishes(t *testing.T) {
	htmlPath := filepath.Join(t.TempDir(), "lecture.html")
	out, err := runCLI(t, "--video", "vid-1", "build", "--out", htmlPath)
	require.NoError(t, err)

	var lec generator.Lecture
	require.NoError(t, json.Unmarshal([]byte(out), &lec))
	assert.Equal(t, "Graphs", lec.Gist.Title)
	assert.True(t, lec.Chapters.Valid)
	assert.True(t, lec.Quiz.Valid)

	doc, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<h1>Graphs</h1>")
}

func TestBuildLLM(t *testing.T) {
	llm, err := buildLLM(config.LLMConfig{})
	require.NoError(t, err)
	assert.Nil(t, llm)

	llm, err = buildLLM(config.LLMConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, generator.MockLLM{}, llm)

	_, err = buildLLM(config.LLMConfig{Provider: "deepseek"})
	require.Error(t, err)

	_, err = buildLLM(config.LLMConfig{Provider: "claude-local"})
	require.Error(t, err)
}
