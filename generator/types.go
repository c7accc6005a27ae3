package generator

import (
	"fmt"
	"strings"

	"lecture_builder/twelvelabs"
)

// Feature names one generated artifact of a lecture.
type Feature string

const (
	FeatureSummary      Feature = "summary"
	FeatureGist         Feature = "gist"
	FeatureChapters     Feature = "chapters"
	FeatureKeyTakeaways Feature = "key_takeaways"
	FeaturePacing       Feature = "pacing_recommendations"
	FeatureQuiz         Feature = "quiz_questions"
	FeatureEngagement   Feature = "engagement"
)

// ParseFeature resolves a feature name. Kebab case and the short aliases
// "takeaways", "pacing" and "quiz" are accepted.
func ParseFeature(name string) (Feature, error) {
	f := Feature(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	switch f {
	case FeatureSummary, FeatureGist, FeatureChapters, FeatureKeyTakeaways,
		FeaturePacing, FeatureQuiz, FeatureEngagement:
		return f, nil
	case "takeaways":
		return FeatureKeyTakeaways, nil
	case "pacing":
		return FeaturePacing, nil
	case "quiz":
		return FeatureQuiz, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFeature, name)
}

// Index is re-exported so callers need not import the provider package.
type Index = twelvelabs.Index

// Summary is the provider-generated video summary.
type Summary struct {
	Summary string `json:"summary"`
}

// Gist is the provider-generated title, hashtags and topics.
type Gist struct {
	Title    string   `json:"title"`
	Hashtags []string `json:"hashtags"`
	Topics   []string `json:"topics"`
}

// Shape is implemented by every structured output the handler validates.
type Shape interface {
	ShapeName() string
	// FieldHint is a JSON skeleton of the shape, used when asking the
	// reasoning agent to reformat a malformed response.
	FieldHint() string
}

// Result carries a structured response. Valid is false when the provider
// text could not be parsed or validated; Raw always holds the provider text.
type Result[T Shape] struct {
	Value *T     `json:"value,omitempty"`
	Raw   string `json:"raw"`
	Valid bool   `json:"valid"`
}

type Chapter struct {
	Title     string  `json:"title" validate:"required"`
	Summary   string  `json:"summary" validate:"required"`
	StartTime float64 `json:"start_time" validate:"gte=0"`
	EndTime   float64 `json:"end_time" validate:"gte=0"`
}

type Chapters struct {
	Chapters []Chapter `json:"chapters" validate:"required,min=1,dive"`
}

func (Chapters) ShapeName() string { return "Chapters" }

func (Chapters) FieldHint() string {
	return `{"chapters":[{"title":"string","summary":"string","start_time":0,"end_time":0}]}`
}

type KeyTakeaway struct {
	Takeaway  string  `json:"takeaway" validate:"required"`
	Timestamp float64 `json:"timestamp" validate:"gte=0"`
}

type KeyTakeaways struct {
	KeyTakeaways []KeyTakeaway `json:"key_takeaways" validate:"required,min=1,dive"`
}

func (KeyTakeaways) ShapeName() string { return "KeyTakeaways" }

func (KeyTakeaways) FieldHint() string {
	return `{"key_takeaways":[{"takeaway":"string","timestamp":0}]}`
}

type PacingRecommendation struct {
	StartTime      float64 `json:"start_time" validate:"gte=0"`
	EndTime        float64 `json:"end_time" validate:"gte=0"`
	Issue          string  `json:"issue" validate:"required"`
	Recommendation string  `json:"recommendation" validate:"required"`
	Severity       string  `json:"severity,omitempty" validate:"omitempty,oneof=low medium high"`
}

type PacingRecommendations struct {
	Recommendations []PacingRecommendation `json:"pacing_recommendations" validate:"required,min=1,dive"`
}

func (PacingRecommendations) ShapeName() string { return "PacingRecommendations" }

func (PacingRecommendations) FieldHint() string {
	return `{"pacing_recommendations":[{"start_time":0,"end_time":0,"issue":"string","recommendation":"string","severity":"low|medium|high"}]}`
}

type QuizQuestion struct {
	Question    string   `json:"question" validate:"required"`
	Options     []string `json:"options" validate:"required,min=2,dive,required"`
	Answer      string   `json:"answer" validate:"required"`
	Explanation string   `json:"explanation,omitempty"`
	Chapter     string   `json:"chapter,omitempty"`
}

type QuizQuestions struct {
	Questions []QuizQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (QuizQuestions) ShapeName() string { return "QuizQuestions" }

func (QuizQuestions) FieldHint() string {
	return `{"questions":[{"question":"string","options":["string","string"],"answer":"string","explanation":"string","chapter":"string"}]}`
}

type EngagementItem struct {
	Type        string  `json:"type" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Timestamp   float64 `json:"timestamp" validate:"gte=0"`
}

type EngagementList struct {
	Engagement []EngagementItem `json:"engagement" validate:"required,min=1,dive"`
}

func (EngagementList) ShapeName() string { return "EngagementList" }

func (EngagementList) FieldHint() string {
	return `{"engagement":[{"type":"poll|discussion|question|activity","description":"string","timestamp":0}]}`
}
