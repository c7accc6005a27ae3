package twelvelabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New("test-key", WithBaseURL(server.URL))
	require.NoError(t, err)
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
}

func TestListIndexes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/indexes", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		_, _ = fmt.Fprint(w, `{"data":[{"_id":"idx-1","index_name":"lectures"},{"_id":"idx-2","index_name":"seminars"}]}`)
	})

	indexes, err := client.ListIndexes(context.Background())
	require.NoError(t, err)
	require.Len(t, indexes, 2)
	assert.Equal(t, "idx-1", indexes[0].ID)
	assert.Equal(t, "seminars", indexes[1].Name)
}

func TestAnalyzeSendsPrompt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vid-1", body["video_id"])
		assert.Equal(t, "list chapters", body["prompt"])
		assert.Equal(t, false, body["stream"])
		_, _ = fmt.Fprint(w, `{"id":"gen-1","data":"hello"}`)
	})

	text, err := client.Analyze(context.Background(), "vid-1", "list chapters")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestAnalyzeAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"code":"video_not_ready","message":"video is still indexing"}`)
	})

	_, err := client.Analyze(context.Background(), "vid-1", "p")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "video_not_ready", apiErr.Code)
	assert.Equal(t, "video is still indexing", apiErr.Message)
}

func TestAnalyzeAPIErrorPlainBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = fmt.Fprint(w, "upstream down")
	})

	_, err := client.Analyze(context.Background(), "vid-1", "p")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestAnalyzeRequiresVideoID(t *testing.T) {
	client, err := New("k")
	require.NoError(t, err)
	_, err = client.Analyze(context.Background(), "", "p")
	require.Error(t, err)
}

func TestAnalyzeStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = fmt.Fprintln(w, `{"event_type":"stream_start","metadata":{"generation_id":"g"}}`)
		_, _ = fmt.Fprintln(w, `{"event_type":"text_generation","text":"a"}`)
		_, _ = fmt.Fprintln(w, `not json`)
		_, _ = fmt.Fprintln(w, `{"event_type":"text_generation","text":"b"}`)
		_, _ = fmt.Fprintln(w, ``)
		_, _ = fmt.Fprintln(w, `{"event_type":"text_generation","text":"c"}`)
		_, _ = fmt.Fprintln(w, `{"event_type":"stream_end"}`)
		_, _ = fmt.Fprintln(w, `{"event_type":"text_generation","text":"ignored"}`)
	})

	var chunks []string
	for chunk, err := range client.AnalyzeStream(context.Background(), "vid-1", "p") {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"a", "b", "c"}, chunks)
}

func TestAnalyzeStreamErrorEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, `{"event_type":"text_generation","text":"a"}`)
		_, _ = fmt.Fprintln(w, `{"event_type":"error","error":{"message":"quota exceeded"}}`)
	})

	var chunks []string
	var streamErr error
	for chunk, err := range client.AnalyzeStream(context.Background(), "vid-1", "p") {
		if err != nil {
			streamErr = err
			continue
		}
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"a"}, chunks)
	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "quota exceeded")
}

func TestAnalyzeStreamHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"code":"api_key_invalid","message":"bad key"}`)
	})

	count := 0
	for _, err := range client.AnalyzeStream(context.Background(), "vid-1", "p") {
		count++
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	}
	assert.Equal(t, 1, count)
}

func TestAnalyzeStreamStopsEarly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			_, _ = fmt.Fprintf(w, "{\"event_type\":\"text_generation\",\"text\":\"%d\"}\n", i)
		}
	})

	var chunks []string
	for chunk, err := range client.AnalyzeStream(context.Background(), "vid-1", "p") {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
		if len(chunks) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"0", "1"}, chunks)
}

func TestSummarize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/summarize", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "summary", body["type"])
		_, _ = fmt.Fprint(w, `{"id":"s-1","summary":"A lecture on graphs."}`)
	})

	summary, err := client.Summarize(context.Background(), "vid-1", "")
	require.NoError(t, err)
	assert.Equal(t, "A lecture on graphs.", summary)
}

func TestGistDefaultsTypes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gist", r.URL.Path)
		var body struct {
			Types []string `json:"types"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.ElementsMatch(t, []string{"title", "topic", "hashtag"}, body.Types)
		_, _ = fmt.Fprint(w, `{"id":"g-1","title":"Graphs","topics":["math"],"hashtags":["#graphs"]}`)
	})

	gist, err := client.Gist(context.Background(), "vid-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Graphs", gist.Title)
	assert.Equal(t, []string{"math"}, gist.Topics)
	assert.Equal(t, []string{"#graphs"}, gist.Hashtags)
}

func TestRateLimitHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"data":[]}`)
	})
	WithRateLimit(0.001)(client)

	_, err := client.ListIndexes(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.ListIndexes(ctx)
	require.Error(t, err)
}

func TestAnalyzeStreamOutlastsTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, text := range []string{"a", "b", "c", "d", "e"} {
			_, _ = fmt.Fprintf(w, `{"event_type":"text_generation","text":%q}`+"\n", text)
			flusher.Flush()
			time.Sleep(40 * time.Millisecond)
		}
		_, _ = fmt.Fprintln(w, `{"event_type":"stream_end"}`)
	})
	WithTimeout(60 * time.Millisecond)(client)

	var chunks []string
	for chunk, err := range client.AnalyzeStream(context.Background(), "vid-1", "p") {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, chunks)
}

func TestAnalyzeStreamHeaderTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	WithTimeout(50 * time.Millisecond)(client)

	var errs []error
	for _, err := range client.AnalyzeStream(context.Background(), "vid-1", "p") {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "no response headers within")
}

func TestJSONCallTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	WithTimeout(50 * time.Millisecond)(client)

	_, err := client.Analyze(context.Background(), "vid-1", "p")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
