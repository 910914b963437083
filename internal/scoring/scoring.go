// Package scoring reduces an analysis bundle to five sub-scores and a weighted
// overall score. It is pure: the same bundle always yields the same ScoreSet.
package scoring

import (
	"math"

	"mentor-insights-go/internal/types"
)

// Weights of each sub-score in the overall score. They sum to 1.
const (
	WeightEngagement     = 0.20
	WeightCommunication  = 0.20
	WeightTechnicalDepth = 0.30
	WeightClarity        = 0.20
	WeightInteraction    = 0.10
)

// Calculate scores a bundle. A nil bundle is scored as if every stage were absent.
func Calculate(b *types.AnalysisBundle) types.ScoreSet {
	if b == nil {
		b = &types.AnalysisBundle{}
	}

	engagement := engagementScore(b.Visual, b.Audio)
	communication := communicationScore(b.Audio, b.NLP)
	technical := technicalScore(b.NLP)
	clarity := clarityScore(b.Audio, b.NLP)
	interaction := interactionScore(b.Visual, b.NLP)

	overall := engagement*WeightEngagement +
		communication*WeightCommunication +
		technical*WeightTechnicalDepth +
		clarity*WeightClarity +
		interaction*WeightInteraction

	return types.ScoreSet{
		Engagement:     round2(engagement),
		Communication:  round2(communication),
		TechnicalDepth: round2(technical),
		Clarity:        round2(clarity),
		Interaction:    round2(interaction),
		Overall:        round2(overall),
	}
}

// gestures, face presence, vocal energy
func engagementScore(visual *types.VisualFeatures, audio *types.AudioFeatures) float64 {
	score := 70.0
	if visual.GestureCountOr() > 10 {
		score += 10
	}
	if visual.FaceConfidenceOr() > 0.8 {
		score += 10
	}
	score += audio.EnergyMeanOr() * 10
	return clamp(score)
}

// speech rate (optimal 130-170 wpm) and language clarity
func communicationScore(audio *types.AudioFeatures, nlp *types.NLPFeatures) float64 {
	score := 70.0
	wpm := audio.SpeechRateOr()
	switch {
	case wpm >= 130 && wpm <= 170:
		score += 15
	case wpm >= 120 && wpm <= 180:
		score += 10
	}
	if v, ok := nlp.Clarity(); ok {
		score += v * 15
	}
	return clamp(score)
}

func technicalScore(nlp *types.NLPFeatures) float64 {
	score := 65.0
	if nlp.TechnicalTermCountOr() > 5 {
		score += 20
	}
	if v, ok := nlp.TechnicalDepth(); ok {
		score += v * 15
	}
	return clamp(score)
}

// pause ratio (optimal 0.10-0.20) and transcript structure
func clarityScore(audio *types.AudioFeatures, nlp *types.NLPFeatures) float64 {
	score := 70.0
	pause := audio.PauseRatioOr()
	if pause >= 0.10 && pause <= 0.20 {
		score += 15
	}
	if v, ok := nlp.Structure(); ok {
		score += v * 15
	}
	return clamp(score)
}

func interactionScore(visual *types.VisualFeatures, nlp *types.NLPFeatures) float64 {
	score := 60.0
	if nlp.QuestionCountOr() > 3 {
		score += 20
	}
	if visual.EyeContactOr() > 0.6 {
		score += 20
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(100, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
