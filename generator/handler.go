package generator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"

	"lecture_builder/twelvelabs"
)

const defaultStreamBuffer = 16

// VideoAnalyzer is the provider surface the handler consumes.
// *twelvelabs.Client implements it.
type VideoAnalyzer interface {
	ListIndexes(ctx context.Context) ([]twelvelabs.Index, error)
	Analyze(ctx context.Context, videoID, prompt string) (string, error)
	AnalyzeStream(ctx context.Context, videoID, prompt string) iter.Seq2[string, error]
	Summarize(ctx context.Context, videoID, summaryType string) (string, error)
	Gist(ctx context.Context, videoID string, types []string) (twelvelabs.Gist, error)
}

// Handler generates lecture artifacts for one indexed video.
type Handler struct {
	analyzer     VideoAnalyzer
	videoID      string
	indexID      string
	agent        *Agent
	logger       *zap.Logger
	streamBuffer int
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithIndexID selects the index ResolveIndex looks up, by ID or name.
func WithIndexID(indexID string) HandlerOption {
	return func(h *Handler) { h.indexID = indexID }
}

// WithReformatter enables the reasoning-agent fallback for malformed responses.
func WithReformatter(agent *Agent) HandlerOption {
	return func(h *Handler) { h.agent = agent }
}

func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithStreamBuffer sets the channel capacity used by Stream.
func WithStreamBuffer(n int) HandlerOption {
	return func(h *Handler) {
		if n >= 0 {
			h.streamBuffer = n
		}
	}
}

func NewHandler(analyzer VideoAnalyzer, videoID string, opts ...HandlerOption) (*Handler, error) {
	if analyzer == nil {
		return nil, errors.New("video analyzer is required")
	}
	h := &Handler{
		analyzer:     analyzer,
		videoID:      strings.TrimSpace(videoID),
		logger:       zap.NewNop(),
		streamBuffer: defaultStreamBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("video_id", h.videoID))
	return h, nil
}

func (h *Handler) VideoID() string { return h.videoID }

func (h *Handler) IndexID() string { return h.indexID }

// ListIndexes returns the account's indexes keyed by name.
func (h *Handler) ListIndexes(ctx context.Context) (map[string]Index, error) {
	indexes, err := h.analyzer.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Index, len(indexes))
	for _, idx := range indexes {
		byName[idx.Name] = idx
	}
	return byName, nil
}

// ResolveIndex finds the configured index among the account's indexes,
// matching by ID or by name.
func (h *Handler) ResolveIndex(ctx context.Context) (Index, error) {
	if h.indexID == "" {
		return Index{}, ErrNoIndex
	}
	indexes, err := h.analyzer.ListIndexes(ctx)
	if err != nil {
		return Index{}, err
	}
	for _, idx := range indexes {
		if idx.ID == h.indexID || idx.Name == h.indexID {
			return idx, nil
		}
	}
	return Index{}, fmt.Errorf("%w: %q", ErrIndexNotFound, h.indexID)
}

// GenerateSummary returns the provider summary of the video.
func (h *Handler) GenerateSummary(ctx context.Context) (Summary, error) {
	text, err := h.analyzer.Summarize(ctx, h.videoID, "summary")
	if err != nil {
		return Summary{}, h.fail(FeatureSummary, err)
	}
	return Summary{Summary: text}, nil
}

// GenerateGist returns the provider title, hashtags and topics of the video.
func (h *Handler) GenerateGist(ctx context.Context) (Gist, error) {
	gist, err := h.analyzer.Gist(ctx, h.videoID, []string{twelvelabs.GistTopic, twelvelabs.GistHashtag, twelvelabs.GistTitle})
	if err != nil {
		return Gist{}, h.fail(FeatureGist, err)
	}
	return Gist{Title: gist.Title, Hashtags: gist.Hashtags, Topics: gist.Topics}, nil
}

func (h *Handler) GenerateChapters(ctx context.Context) (Result[Chapters], error) {
	return promptStructured[Chapters](ctx, h, FeatureChapters, ChapterPrompt)
}

func (h *Handler) GenerateKeyTakeaways(ctx context.Context) (Result[KeyTakeaways], error) {
	return promptStructured[KeyTakeaways](ctx, h, FeatureKeyTakeaways, KeyTakeawaysPrompt)
}

func (h *Handler) GeneratePacingRecommendations(ctx context.Context) (Result[PacingRecommendations], error) {
	return promptStructured[PacingRecommendations](ctx, h, FeaturePacing, PacingRecommendationsPrompt)
}

func (h *Handler) GenerateEngagement(ctx context.Context) (Result[EngagementList], error) {
	return promptStructured[EngagementList](ctx, h, FeatureEngagement, EngagementPrompt)
}

// GenerateQuizQuestions writes quiz questions from the given chapters. The
// chapters must be non-empty and each must carry a title and a summary; this
// is checked before the provider is called.
func (h *Handler) GenerateQuizQuestions(ctx context.Context, chapters []Chapter) (Result[QuizQuestions], error) {
	if err := checkQuizChapters(chapters); err != nil {
		return Result[QuizQuestions]{}, err
	}
	h.logger.Debug("generating quiz questions", zap.Int("chapters", len(chapters)))
	return promptStructured[QuizQuestions](ctx, h, FeatureQuiz, BuildQuizPrompt(chapters))
}

func checkQuizChapters(chapters []Chapter) error {
	if len(chapters) == 0 {
		return &PreconditionError{Feature: FeatureQuiz, Err: ErrNoChapters}
	}
	for i, ch := range chapters {
		if strings.TrimSpace(ch.Title) == "" || strings.TrimSpace(ch.Summary) == "" {
			return &PreconditionError{
				Feature: FeatureQuiz,
				Err:     fmt.Errorf("chapter %d must have a title and a summary", i),
			}
		}
	}
	return nil
}

// promptStructured runs prompt against the video and decodes the answer as T.
// A provider failure is returned as *GenerationError. A response that cannot
// be parsed or validated (even after the reformat fallback) is logged and
// returned as an invalid Result holding the raw text, with a nil error.
func promptStructured[T Shape](ctx context.Context, h *Handler, feature Feature, prompt string) (Result[T], error) {
	raw, err := h.analyzer.Analyze(ctx, h.videoID, prompt)
	if err != nil {
		return Result[T]{}, h.fail(feature, err)
	}

	value, perr := parseShape[T](raw)
	if perr == nil {
		return Result[T]{Value: &value, Raw: raw, Valid: true}, nil
	}

	if h.agent != nil {
		h.logger.Warn("response did not match shape, reformatting",
			zap.String("feature", string(feature)),
			zap.Error(perr),
		)
		reformatted, rerr := h.agent.Reformat(ctx, value, raw, perr)
		if rerr == nil {
			value, perr = parseShape[T](reformatted)
			if perr == nil {
				return Result[T]{Value: &value, Raw: raw, Valid: true}, nil
			}
		} else {
			perr = fmt.Errorf("reformat: %w (after %v)", rerr, perr)
		}
	}

	h.logger.Error(fmt.Sprintf("Error generating %s", value.ShapeName()),
		zap.String("feature", string(feature)),
		zap.Error(perr),
	)
	return Result[T]{Raw: raw}, nil
}

func (h *Handler) fail(feature Feature, err error) error {
	h.logger.Error("generation failed", zap.String("feature", string(feature)), zap.Error(err))
	return &GenerationError{Feature: feature, Err: err}
}
