// Package twelvelabs is a small client for the Twelve Labs video understanding API.
package twelvelabs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.twelvelabs.io/v1.3"

	indexesPath   = "/indexes"
	analyzePath   = "/analyze"
	summarizePath = "/summarize"
	gistPath      = "/gist"

	defaultTimeout = 60 * time.Second
	maxLineBytes   = 1 << 20
)

// Gist types accepted by the gist endpoint.
const (
	GistTitle   = "title"
	GistTopic   = "topic"
	GistHashtag = "hashtag"
)

// Index is a video index on the account.
type Index struct {
	ID        string    `json:"_id"`
	Name      string    `json:"index_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Gist holds the title, topics and hashtags generated for a video.
type Gist struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Topics   []string `json:"topics"`
	Hashtags []string `json:"hashtags"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("twelvelabs: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("twelvelabs: http %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

type listIndexesResp struct {
	Data []Index `json:"data"`
}

type analyzeReq struct {
	VideoID string `json:"video_id"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
}

type analyzeResp struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type summarizeReq struct {
	VideoID string `json:"video_id"`
	Type    string `json:"type"`
}

type summarizeResp struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

type gistReq struct {
	VideoID string   `json:"video_id"`
	Types   []string `json:"types"`
}

// Client talks to the Twelve Labs HTTP API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. A Timeout set on it also
// bounds how long a stream may run; prefer WithTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTimeout bounds each JSON call end to end, and only the wait for
// response headers on streams. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit paces outgoing requests. Zero or negative disables pacing.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client. The API key is required.
func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("twelvelabs: api key is required")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client:  &http.Client{},
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListIndexes returns every index on the account.
func (c *Client) ListIndexes(ctx context.Context) ([]Index, error) {
	var data listIndexesResp
	if err := c.doJSON(ctx, http.MethodGet, indexesPath, nil, &data); err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	return data.Data, nil
}

// Analyze runs an open-ended prompt against an indexed video and returns the generated text.
func (c *Client) Analyze(ctx context.Context, videoID, prompt string) (string, error) {
	if videoID == "" {
		return "", errors.New("analyze: video id is required")
	}
	var data analyzeResp
	body := analyzeReq{VideoID: videoID, Prompt: prompt}
	if err := c.doJSON(ctx, http.MethodPost, analyzePath, body, &data); err != nil {
		return "", fmt.Errorf("analyze: %w", err)
	}
	return data.Data, nil
}

// AnalyzeStream runs a prompt in streaming mode. Text fragments are yielded in
// arrival order; a failure is yielded once as the final element.
func (c *Client) AnalyzeStream(ctx context.Context, videoID, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if videoID == "" {
			yield("", errors.New("analyze stream: video id is required"))
			return
		}
		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		var headerTimer *time.Timer
		if c.timeout > 0 {
			headerTimer = time.AfterFunc(c.timeout, cancel)
		}
		resp, err := c.send(streamCtx, http.MethodPost, analyzePath, analyzeReq{VideoID: videoID, Prompt: prompt, Stream: true})
		if headerTimer != nil && !headerTimer.Stop() && ctx.Err() == nil {
			if err == nil {
				resp.Body.Close()
			}
			err = fmt.Errorf("no response headers within %s", c.timeout)
		}
		if err != nil {
			yield("", fmt.Errorf("analyze stream: %w", err))
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			if !gjson.ValidBytes(line) {
				c.logger.Debug("skipping malformed stream line", zap.ByteString("line", line))
				continue
			}
			event := gjson.ParseBytes(line)
			switch event.Get("event_type").String() {
			case "text_generation":
				if !yield(event.Get("text").String(), nil) {
					return
				}
			case "stream_end":
				return
			case "error":
				yield("", fmt.Errorf("analyze stream: %s", firstNonEmpty(
					event.Get("error.message").String(),
					event.Get("message").String(),
					"provider reported an error",
				)))
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("analyze stream: read: %w", err))
		}
	}
}

// Summarize generates a summary of the video.
func (c *Client) Summarize(ctx context.Context, videoID, summaryType string) (string, error) {
	if videoID == "" {
		return "", errors.New("summarize: video id is required")
	}
	if summaryType == "" {
		summaryType = "summary"
	}
	var data summarizeResp
	if err := c.doJSON(ctx, http.MethodPost, summarizePath, summarizeReq{VideoID: videoID, Type: summaryType}, &data); err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return data.Summary, nil
}

// Gist generates a title, topics and hashtags for the video.
func (c *Client) Gist(ctx context.Context, videoID string, types []string) (Gist, error) {
	if videoID == "" {
		return Gist{}, errors.New("gist: video id is required")
	}
	if len(types) == 0 {
		types = []string{GistTitle, GistTopic, GistHashtag}
	}
	var data Gist
	if err := c.doJSON(ctx, http.MethodPost, gistPath, gistReq{VideoID: videoID, Types: types}, &data); err != nil {
		return Gist{}, fmt.Errorf("gist: %w", err)
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send issues the request and returns the response for 2xx statuses only.
func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("twelvelabs request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, parseAPIError(resp.StatusCode, raw)
	}
	return resp, nil
}

func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if gjson.ValidBytes(raw) {
		parsed := gjson.ParseBytes(raw)
		apiErr.Code = parsed.Get("code").String()
		apiErr.Message = firstNonEmpty(parsed.Get("message").String(), parsed.Get("error").String())
	}
	if apiErr.Message == "" {
		apiErr.Message = firstNonEmpty(strings.TrimSpace(string(raw)), http.StatusText(status))
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
