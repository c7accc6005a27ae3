package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Lecture collects every generated artifact for one video.
type Lecture struct {
	VideoID      string                        `json:"video_id"`
	Summary      Summary                       `json:"summary"`
	Gist         Gist                          `json:"gist"`
	Chapters     Result[Chapters]              `json:"chapters"`
	KeyTakeaways Result[KeyTakeaways]          `json:"key_takeaways"`
	Pacing       Result[PacingRecommendations] `json:"pacing_recommendations"`
	Engagement   Result[EngagementList]        `json:"engagement"`
	Quiz         Result[QuizQuestions]         `json:"quiz_questions"`
	// Errors holds per-feature failures that did not abort the build.
	Errors map[Feature]string `json:"errors,omitempty"`
}

// Turn records one (re)generation of a feature.
type Turn struct {
	Feature   Feature   `json:"feature"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// Session holds the lecture built for one video and its generation history.
type Session struct {
	ID      string
	VideoID string

	mu      sync.Mutex
	lecture Lecture
	history []Turn
	handler *Handler
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewSession creates a session; nothing is generated yet.
func NewSession(id string, handler *Handler) *Session {
	return &Session{
		ID:      id,
		VideoID: handler.VideoID(),
		lecture: Lecture{VideoID: handler.VideoID()},
		handler: handler,
	}
}

// Lecture returns a copy of the current lecture.
func (s *Session) Lecture() Lecture {
	s.mu.Lock()
	defer s.mu.Unlock()
	lec := s.lecture
	if s.lecture.Errors != nil {
		lec.Errors = make(map[Feature]string, len(s.lecture.Errors))
		for k, v := range s.lecture.Errors {
			lec.Errors[k] = v
		}
	}
	return lec
}

// History returns a copy of the generation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}

// Build generates every feature. Summary, gist, chapters, key takeaways,
// pacing and engagement run concurrently; quiz questions follow once
// chapters are known. A summary or gist failure aborts the build; other
// failures are recorded in Lecture.Errors.
func (s *Session) Build(ctx context.Context) (Lecture, error) {
	h := s.handler
	lec := Lecture{VideoID: s.VideoID}
	var (
		errMu  sync.Mutex
		errs   = map[Feature]string{}
		record = func(f Feature, err error) {
			errMu.Lock()
			errs[f] = err.Error()
			errMu.Unlock()
		}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		lec.Summary, err = h.GenerateSummary(gctx)
		return err
	})
	g.Go(func() (err error) {
		lec.Gist, err = h.GenerateGist(gctx)
		return err
	})
	g.Go(func() error {
		res, err := h.GenerateChapters(gctx)
		if err != nil {
			record(FeatureChapters, err)
		}
		lec.Chapters = res
		return nil
	})
	g.Go(func() error {
		res, err := h.GenerateKeyTakeaways(gctx)
		if err != nil {
			record(FeatureKeyTakeaways, err)
		}
		lec.KeyTakeaways = res
		return nil
	})
	g.Go(func() error {
		res, err := h.GeneratePacingRecommendations(gctx)
		if err != nil {
			record(FeaturePacing, err)
		}
		lec.Pacing = res
		return nil
	})
	g.Go(func() error {
		res, err := h.GenerateEngagement(gctx)
		if err != nil {
			record(FeatureEngagement, err)
		}
		lec.Engagement = res
		return nil
	})
	if err := g.Wait(); err != nil {
		s.appendTurn("build", fmt.Sprintf("failed: %v", err))
		return Lecture{}, err
	}

	if lec.Chapters.Valid {
		res, err := h.GenerateQuizQuestions(ctx, lec.Chapters.Value.Chapters)
		if err != nil {
			record(FeatureQuiz, err)
		}
		lec.Quiz = res
	} else {
		errs[FeatureQuiz] = "skipped: no valid chapters"
	}
	if len(errs) > 0 {
		lec.Errors = errs
	}

	s.mu.Lock()
	s.lecture = lec
	s.mu.Unlock()
	s.appendTurn("build", outcome(len(errs)))
	return s.Lecture(), nil
}

// Regenerate re-runs one feature and stores the new output in the lecture.
// Quiz regeneration uses the session's current chapters.
func (s *Session) Regenerate(ctx context.Context, feature Feature) (Lecture, error) {
	h := s.handler
	current := s.Lecture()

	var err error
	switch feature {
	case FeatureSummary:
		var v Summary
		if v, err = h.GenerateSummary(ctx); err == nil {
			s.update(func(l *Lecture) { l.Summary = v })
		}
	case FeatureGist:
		var v Gist
		if v, err = h.GenerateGist(ctx); err == nil {
			s.update(func(l *Lecture) { l.Gist = v })
		}
	case FeatureChapters:
		var v Result[Chapters]
		if v, err = h.GenerateChapters(ctx); err == nil {
			s.update(func(l *Lecture) { l.Chapters = v })
		}
	case FeatureKeyTakeaways:
		var v Result[KeyTakeaways]
		if v, err = h.GenerateKeyTakeaways(ctx); err == nil {
			s.update(func(l *Lecture) { l.KeyTakeaways = v })
		}
	case FeaturePacing:
		var v Result[PacingRecommendations]
		if v, err = h.GeneratePacingRecommendations(ctx); err == nil {
			s.update(func(l *Lecture) { l.Pacing = v })
		}
	case FeatureEngagement:
		var v Result[EngagementList]
		if v, err = h.GenerateEngagement(ctx); err == nil {
			s.update(func(l *Lecture) { l.Engagement = v })
		}
	case FeatureQuiz:
		var chapters []Chapter
		if current.Chapters.Value != nil {
			chapters = current.Chapters.Value.Chapters
		}
		var v Result[QuizQuestions]
		if v, err = h.GenerateQuizQuestions(ctx, chapters); err == nil {
			s.update(func(l *Lecture) { l.Quiz = v })
		}
	default:
		return Lecture{}, fmt.Errorf("%w %q", ErrUnknownFeature, feature)
	}

	if err != nil {
		s.appendTurn(feature, fmt.Sprintf("failed: %v", err))
		return Lecture{}, err
	}
	s.update(func(l *Lecture) { delete(l.Errors, feature) })
	s.appendTurn(feature, "ok")
	return s.Lecture(), nil
}

func (s *Session) update(fn func(*Lecture)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.lecture)
}

func (s *Session) appendTurn(feature Feature, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{
		Feature:   feature,
		Outcome:   outcome,
		CreatedAt: time.Now(),
	})
}

func outcome(failures int) string {
	if failures == 0 {
		return "ok"
	}
	return fmt.Sprintf("ok with %d feature errors", failures)
}
