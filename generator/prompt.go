package generator

import (
	"fmt"
	"strings"
)

// Prompt is the system and user message pair sent to the reasoning LLM.
type Prompt struct {
	System string
	User   string
}

const (
	jsonOnly = "Respond with a single JSON object only, with no commentary before or after it."

	reformatInputMarker = "Output to convert:\n"
)

// Video prompts sent to the provider's analyze endpoint.
var (
	ChapterPrompt = `Split this lecture video into chapters that follow its structure.
For each chapter give a short title, a two or three sentence summary, and the
start and end time in seconds.
Return JSON shaped like ` + Chapters{}.FieldHint() + `
` + jsonOnly

	KeyTakeawaysPrompt = `List the key takeaways a student should remember from this lecture video.
Each takeaway is one sentence, with the time in seconds where it is discussed.
Return JSON shaped like ` + KeyTakeaways{}.FieldHint() + `
` + jsonOnly

	PacingRecommendationsPrompt = `Review the pacing of this lecture video. Identify segments that move too fast
or too slow for a student audience, and recommend how to fix each one.
Give the start and end time in seconds and a severity of low, medium or high.
Return JSON shaped like ` + PacingRecommendations{}.FieldHint() + `
` + jsonOnly

	EngagementPrompt = `Suggest moments in this lecture video where the instructor could engage the
audience, such as a poll, a discussion prompt, a check-in question or a short
activity. Give the time in seconds for each suggestion.
Return JSON shaped like ` + EngagementList{}.FieldHint() + `
` + jsonOnly

	quizQuestionsTemplate = `Write multiple-choice quiz questions covering this lecture video.
Use these chapters as the outline, at least one question per chapter:
%s

Each question has four options, exactly one of which is the answer; the answer
field repeats the correct option verbatim.
Return JSON shaped like ` + QuizQuestions{}.FieldHint() + `
` + jsonOnly
)

// BuildQuizPrompt renders the quiz prompt with one "title: summary" line per chapter.
func BuildQuizPrompt(chapters []Chapter) string {
	lines := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		lines = append(lines, fmt.Sprintf("%s: %s", ch.Title, ch.Summary))
	}
	return fmt.Sprintf(quizQuestionsTemplate, strings.Join(lines, "\n"))
}

// BuildReformatPrompt asks the reasoning model to rewrite a malformed
// response into the expected shape without changing its content.
func BuildReformatPrompt(shape Shape, raw string, cause error) Prompt {
	var sb strings.Builder
	sb.WriteString("You convert model output into strict JSON.\n")
	sb.WriteString("- Keep the original content; do not invent entries.\n")
	sb.WriteString("- Drop entries that cannot be completed from the text.\n")
	sb.WriteString("- Times are numbers of seconds.\n")
	sb.WriteString("- " + jsonOnly + "\n")

	user := fmt.Sprintf("Target shape %s:\n%s\n\n", shape.ShapeName(), shape.FieldHint())
	if cause != nil {
		user += fmt.Sprintf("The previous output was rejected: %v\n\n", cause)
	}
	user += reformatInputMarker + raw

	return Prompt{
		System: sb.String(),
		User:   user,
	}
}
