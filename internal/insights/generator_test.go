package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor-insights-go/internal/types"
)

func TestGenerateMixedScores(t *testing.T) {
	scores := types.ScoreSet{
		Engagement:     75,
		Communication:  85,
		TechnicalDepth: 65,
		Clarity:        85,
		Interaction:    60,
		Overall:        74.5,
	}
	got := Generate(nil, scores)

	assert.Equal(t, []string{
		"Excellent communication clarity (Score: 85.0/100)",
		"Very clear explanations (Score: 85.0/100)",
	}, got.Strengths)
	assert.Equal(t, []string{
		"Technical depth requires strengthening (Score: 65.0/100)",
		"Increase student interaction (Score: 60.0/100)",
	}, got.Improvements)
	assert.Equal(t, []string{
		"Deepen subject knowledge", "Add practical examples",
		"Schedule Q&A sessions", "Encourage questions",
	}, got.Recommendations)
	assert.Equal(t, "Good teaching foundation with opportunities for improvement", got.KeyHighlight)
}

func TestGenerateCapsPreserveMetricOrder(t *testing.T) {
	scores := types.ScoreSet{Engagement: 10, Communication: 20, TechnicalDepth: 30, Clarity: 40, Interaction: 50, Overall: 27}
	got := Generate(nil, scores)

	require.Len(t, got.Improvements, 5)
	assert.Contains(t, got.Improvements[0], "Student engagement")
	assert.Contains(t, got.Improvements[4], "Increase student interaction")

	// ten candidate recommendations, capped at six in metric order
	assert.Equal(t, []string{
		"Use more real-world examples", "Add interactive elements",
		"Practice pronunciation", "Work on pacing",
		"Deepen subject knowledge", "Add practical examples",
	}, got.Recommendations)
	assert.Empty(t, got.Strengths)
	assert.Equal(t, "Developing teaching skills with focused improvement needed", got.KeyHighlight)
}

func TestGenerateExcellentAddsMentorRecommendation(t *testing.T) {
	scores := types.ScoreSet{Engagement: 95, Communication: 95, TechnicalDepth: 92, Clarity: 90, Interaction: 100, Overall: 93.6}
	got := Generate(nil, scores)

	assert.Len(t, got.Strengths, 5)
	assert.Empty(t, got.Improvements)
	assert.Equal(t, []string{mentorRecommendation}, got.Recommendations)
	assert.Equal(t, "Exceptional teaching performance across all metrics", got.KeyHighlight)
}

func TestGenerateBoundaryScores(t *testing.T) {
	// 70 is neither a weakness nor a strength; 85 is a strength
	got := Generate(nil, types.ScoreSet{Engagement: 70, Communication: 84.99, TechnicalDepth: 85, Clarity: 69.99, Interaction: 70, Overall: 80})
	assert.Equal(t, []string{"Strong technical knowledge (Score: 85.0/100)"}, got.Strengths)
	assert.Equal(t, []string{"Explanations need better structure (Score: 69.99/100)"}, got.Improvements)
	assert.Equal(t, "Strong teaching performance with minor areas for growth", got.KeyHighlight)
}

func TestKeyHighlightLadder(t *testing.T) {
	assert.Equal(t, "Exceptional teaching performance across all metrics", KeyHighlight(90))
	assert.Equal(t, "Strong teaching performance with minor areas for growth", KeyHighlight(89.99))
	assert.Equal(t, "Good teaching foundation with opportunities for improvement", KeyHighlight(70))
	assert.Equal(t, "Developing teaching skills with focused improvement needed", KeyHighlight(69.99))
}

func TestGenerateIsDeterministic(t *testing.T) {
	scores := types.ScoreSet{Engagement: 66, Communication: 91, TechnicalDepth: 72, Clarity: 55, Interaction: 88, Overall: 73.4}
	assert.Equal(t, Generate(nil, scores), Generate(&types.AnalysisBundle{}, scores))
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "95.0"},
		{87.5, "87.5"},
		{69.99, "69.99"},
		{0, "0.0"},
		{100, "100.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatScore(tt.score))
	}
}
