package insights

import (
	"fmt"
	"strconv"
	"strings"

	"mentor-insights-go/internal/types"
)

const (
	maxStrengths       = 5
	maxImprovements    = 5
	maxRecommendations = 6

	strengthThreshold    = 85
	improvementThreshold = 70
)

const mentorRecommendation = "Excellent performance! Consider mentoring other instructors."

type metric struct {
	strength        string
	improvement     string
	recommendations []string
	score           func(types.ScoreSet) float64
}

// fixed iteration order; insight lists follow it, not score order
var metrics = []metric{
	{
		strength:        "Outstanding student engagement",
		improvement:     "Student engagement needs improvement",
		recommendations: []string{"Use more real-world examples", "Add interactive elements"},
		score:           func(s types.ScoreSet) float64 { return s.Engagement },
	},
	{
		strength:        "Excellent communication clarity",
		improvement:     "Communication could be enhanced",
		recommendations: []string{"Practice pronunciation", "Work on pacing"},
		score:           func(s types.ScoreSet) float64 { return s.Communication },
	},
	{
		strength:        "Strong technical knowledge",
		improvement:     "Technical depth requires strengthening",
		recommendations: []string{"Deepen subject knowledge", "Add practical examples"},
		score:           func(s types.ScoreSet) float64 { return s.TechnicalDepth },
	},
	{
		strength:        "Very clear explanations",
		improvement:     "Explanations need better structure",
		recommendations: []string{"Create structured outlines", "Break down complex topics"},
		score:           func(s types.ScoreSet) float64 { return s.Clarity },
	},
	{
		strength:        "Effective student interaction",
		improvement:     "Increase student interaction",
		recommendations: []string{"Schedule Q&A sessions", "Encourage questions"},
		score:           func(s types.ScoreSet) float64 { return s.Interaction },
	},
}

// Generate maps a ScoreSet to narrative feedback. The bundle is accepted for
// callers that have one; the narrative is driven by the scores alone.
func Generate(_ *types.AnalysisBundle, scores types.ScoreSet) types.InsightSet {
	out := types.InsightSet{
		Strengths:       []string{},
		Improvements:    []string{},
		Recommendations: []string{},
	}

	for _, m := range metrics {
		score := m.score(scores)
		switch {
		case score >= strengthThreshold:
			out.Strengths = append(out.Strengths, withScore(m.strength, score))
		case score < improvementThreshold:
			out.Improvements = append(out.Improvements, withScore(m.improvement, score))
			out.Recommendations = append(out.Recommendations, m.recommendations...)
		}
	}
	if scores.Overall >= 90 {
		out.Recommendations = append(out.Recommendations, mentorRecommendation)
	}

	out.Strengths = truncate(out.Strengths, maxStrengths)
	out.Improvements = truncate(out.Improvements, maxImprovements)
	out.Recommendations = truncate(out.Recommendations, maxRecommendations)
	out.KeyHighlight = KeyHighlight(scores.Overall)
	return out
}

// KeyHighlight buckets the overall score into a one-line summary.
func KeyHighlight(overall float64) string {
	switch {
	case overall >= 90:
		return "Exceptional teaching performance across all metrics"
	case overall >= 80:
		return "Strong teaching performance with minor areas for growth"
	case overall >= 70:
		return "Good teaching foundation with opportunities for improvement"
	default:
		return "Developing teaching skills with focused improvement needed"
	}
}

func withScore(label string, score float64) string {
	return fmt.Sprintf("%s (Score: %s/100)", label, formatScore(score))
}

// formatScore prints the shortest exact form, keeping one decimal for whole
// numbers: 95.0, 87.5, 69.99.
func formatScore(score float64) string {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func truncate(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
