package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture_builder/twelvelabs"
)

func fullFake() *fakeAnalyzer {
	fake := newFakeAnalyzer()
	fake.summary = "A lecture on graph traversal."
	fake.gist = twelvelabs.Gist{Title: "Graphs", Hashtags: []string{"#bfs"}, Topics: []string{"algorithms"}}
	fake.responses[chaptersKey] = chaptersJSON
	fake.responses[takeawaysKey] = `{"key_takeaways":[{"takeaway":"Use a queue.","timestamp":90}]}`
	fake.responses[pacingKey] = `{"pacing_recommendations":[{"start_time":0,"end_time":60,"issue":"slow intro","recommendation":"trim","severity":"low"}]}`
	fake.responses[engageKey] = `{"engagement":[{"type":"question","description":"Ask about DFS","timestamp":200}]}`
	fake.responses[quizKey] = `{"questions":[{"question":"BFS uses?","options":["queue","stack"],"answer":"queue"}]}`
	return fake
}

func TestSessionBuild(t *testing.T) {
	fake := fullFake()
	h, _ := newTestHandler(t, fake)
	sess := NewSession(NewSessionID(), h)

	lec, err := sess.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vid-1", lec.VideoID)
	assert.Equal(t, "A lecture on graph traversal.", lec.Summary.Summary)
	assert.Equal(t, "Graphs", lec.Gist.Title)
	assert.True(t, lec.Chapters.Valid)
	assert.True(t, lec.KeyTakeaways.Valid)
	assert.True(t, lec.Pacing.Valid)
	assert.True(t, lec.Engagement.Valid)
	assert.True(t, lec.Quiz.Valid)
	assert.Empty(t, lec.Errors)
	assert.Equal(t, 5, fake.callCount("analyze"))

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, Feature("build"), history[0].Feature)
	assert.Equal(t, "ok", history[0].Outcome)
}

func TestSessionBuildSkipsQuizWithoutChapters(t *testing.T) {
	fake := fullFake()
	fake.responses[chaptersKey] = "no chapters"
	h, _ := newTestHandler(t, fake)
	sess := NewSession("s-1", h)

	lec, err := sess.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, lec.Chapters.Valid)
	assert.Equal(t, "no chapters", lec.Chapters.Raw)
	assert.Contains(t, lec.Errors, FeatureQuiz)
	assert.Equal(t, 4, fake.callCount("analyze"))
}

func TestSessionBuildFailsOnSummaryError(t *testing.T) {
	fake := fullFake()
	fake.summaryErr = errors.New("provider down")
	h, _ := newTestHandler(t, fake)
	sess := NewSession("s-1", h)

	_, err := sess.Build(context.Background())
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, FeatureSummary, genErr.Feature)
}

func TestSessionRegenerate(t *testing.T) {
	fake := fullFake()
	h, _ := newTestHandler(t, fake)
	sess := NewSession("s-1", h)
	_, err := sess.Build(context.Background())
	require.NoError(t, err)

	fake.responses[quizKey] = `{"questions":[{"question":"DFS uses?","options":["queue","stack"],"answer":"stack"}]}`
	lec, err := sess.Regenerate(context.Background(), FeatureQuiz)
	require.NoError(t, err)
	assert.Equal(t, "stack", lec.Quiz.Value.Questions[0].Answer)

	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, FeatureQuiz, history[1].Feature)
	assert.Equal(t, "ok", history[1].Outcome)
}

func TestSessionRegenerateQuizWithoutChapters(t *testing.T) {
	fake := fullFake()
	h, _ := newTestHandler(t, fake)
	sess := NewSession("s-1", h)

	_, err := sess.Regenerate(context.Background(), FeatureQuiz)
	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Zero(t, fake.callCount("analyze"))
}

func TestSessionRegenerateUnknownFeature(t *testing.T) {
	h, _ := newTestHandler(t, fullFake())
	sess := NewSession("s-1", h)

	_, err := sess.Regenerate(context.Background(), Feature("flashcards"))
	require.ErrorIs(t, err, ErrUnknownFeature)
	assert.Empty(t, sess.History())
}

func TestParseFeature(t *testing.T) {
	for in, want := range map[string]Feature{
		"summary":                FeatureSummary,
		"key-takeaways":          FeatureKeyTakeaways,
		"takeaways":              FeatureKeyTakeaways,
		"Pacing":                 FeaturePacing,
		"pacing_recommendations": FeaturePacing,
		"quiz":                   FeatureQuiz,
		" engagement ":           FeatureEngagement,
	} {
		got, err := ParseFeature(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFeature("flashcards")
	require.ErrorIs(t, err, ErrUnknownFeature)
}
