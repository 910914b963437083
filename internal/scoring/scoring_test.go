package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor-insights-go/internal/types"
)

func weighted(s types.ScoreSet) float64 {
	return s.Engagement*WeightEngagement +
		s.Communication*WeightCommunication +
		s.TechnicalDepth*WeightTechnicalDepth +
		s.Clarity*WeightClarity +
		s.Interaction*WeightInteraction
}

func assertValid(t *testing.T, s types.ScoreSet) {
	t.Helper()
	for name, v := range map[string]float64{
		"engagement":      s.Engagement,
		"communication":   s.Communication,
		"technical_depth": s.TechnicalDepth,
		"clarity":         s.Clarity,
		"interaction":     s.Interaction,
		"overall":         s.Overall,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 100.0, name)
	}
	assert.InDelta(t, weighted(s), s.Overall, 0.01)
}

func TestWeightsSumToOne(t *testing.T) {
	sum := WeightEngagement + WeightCommunication + WeightTechnicalDepth + WeightClarity + WeightInteraction
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestScenarioAudioOnly(t *testing.T) {
	b := &types.AnalysisBundle{
		Audio: &types.AudioFeatures{
			EnergyMean:    types.Float(0.5),
			SpeechRateWPM: types.Float(150),
			PauseRatio:    types.Float(0.15),
		},
		Visual: &types.VisualFeatures{},
		NLP:    &types.NLPFeatures{},
	}

	s := Calculate(b)
	assert.Equal(t, 75.0, s.Engagement)
	assert.Equal(t, 85.0, s.Communication)
	assert.Equal(t, 65.0, s.TechnicalDepth)
	assert.Equal(t, 85.0, s.Clarity)
	assert.Equal(t, 60.0, s.Interaction)
	assert.Equal(t, 74.5, s.Overall)
	assertValid(t, s)
}

func TestScenarioVisualAndQuestions(t *testing.T) {
	b := &types.AnalysisBundle{
		Visual: &types.VisualFeatures{
			GestureCount:    types.Int(15),
			FaceConfidence:  types.Float(0.9),
			EyeContactRatio: types.Float(0.7),
		},
		NLP: &types.NLPFeatures{QuestionCount: types.Int(5)},
	}

	s := Calculate(b)
	assert.Equal(t, 95.0, s.Engagement)
	assert.Equal(t, 100.0, s.Interaction)
	assertValid(t, s)
}

func TestSkippedLanguageStageUsesBaseOnly(t *testing.T) {
	s := Calculate(&types.AnalysisBundle{Audio: types.DefaultAudioFeatures()})
	assert.Equal(t, 65.0, s.TechnicalDepth)

	withTerms := Calculate(&types.AnalysisBundle{NLP: &types.NLPFeatures{TechnicalTermCount: types.Int(9)}})
	assert.Equal(t, 85.0, withTerms.TechnicalDepth)
}

func TestEmptyBundleUsesDefaults(t *testing.T) {
	for _, b := range []*types.AnalysisBundle{
		nil,
		{},
		{Audio: &types.AudioFeatures{}, Visual: &types.VisualFeatures{}, NLP: &types.NLPFeatures{}},
	} {
		s := Calculate(b)
		assertValid(t, s)
		assert.Equal(t, 75.0, s.Engagement)
		assert.Equal(t, 85.0, s.Communication)
		assert.Equal(t, 85.0, s.Clarity)
	}
}

func TestFallbackFeaturesScore(t *testing.T) {
	b := &types.AnalysisBundle{
		Audio:  types.DefaultAudioFeatures(),
		Visual: types.PlaceholderVisualFeatures(),
		NLP:    types.DefaultNLPFeatures(),
	}
	s := Calculate(b)
	assertValid(t, s)
	// 65 + 0.6*15, term count 5 is not above the threshold
	assert.Equal(t, 74.0, s.TechnicalDepth)
	// 70 + 15 + 0.7*15
	assert.Equal(t, 95.5, s.Communication)
}

func TestCommunicationSpeechBands(t *testing.T) {
	cases := []struct {
		wpm  float64
		want float64
	}{
		{100, 70}, {119.9, 70}, {120, 80}, {129, 80}, {130, 85}, {170, 85}, {175, 80}, {180, 80}, {181, 70},
	}
	for _, tc := range cases {
		s := Calculate(&types.AnalysisBundle{Audio: &types.AudioFeatures{SpeechRateWPM: types.Float(tc.wpm)}})
		assert.Equal(t, tc.want, s.Communication, "wpm=%v", tc.wpm)
	}
}

func TestSubScoresClamped(t *testing.T) {
	b := &types.AnalysisBundle{
		Audio: &types.AudioFeatures{EnergyMean: types.Float(50)},
		Visual: &types.VisualFeatures{
			GestureCount:   types.Int(40),
			FaceConfidence: types.Float(1),
		},
		NLP: &types.NLPFeatures{
			TechnicalDepthScore: types.Float(1),
			ClaritySignal:       types.Float(1),
			StructureSignal:     types.Float(1),
			TechnicalTermCount:  types.Int(20),
		},
	}
	s := Calculate(b)
	assert.Equal(t, 100.0, s.Engagement)
	assert.Equal(t, 100.0, s.Communication)
	assert.Equal(t, 100.0, s.TechnicalDepth)
	assert.Equal(t, 100.0, s.Clarity)
	assertValid(t, s)

	low := Calculate(&types.AnalysisBundle{Audio: &types.AudioFeatures{EnergyMean: types.Float(-20)}})
	assert.Equal(t, 0.0, low.Engagement)
	assertValid(t, low)
}

func TestCalculateIsIdempotent(t *testing.T) {
	b := &types.AnalysisBundle{
		Audio:  &types.AudioFeatures{EnergyMean: types.Float(0.337), SpeechRateWPM: types.Float(126.4)},
		Visual: &types.VisualFeatures{GestureCount: types.Int(11), EyeContactRatio: types.Float(0.61)},
		NLP:    &types.NLPFeatures{TechnicalDepthScore: types.Float(0.713), ClaritySignal: types.Float(0.129)},
	}
	first := Calculate(b)
	second := Calculate(b)
	require.Equal(t, first, second)
}

func TestMonotonicInGesturesAndQuestions(t *testing.T) {
	for _, energy := range []float64{0, 0.3, 0.5, 1} {
		audio := &types.AudioFeatures{EnergyMean: types.Float(energy)}
		for _, low := range []int{0, 5, 10} {
			for _, high := range []int{11, 15, 100} {
				before := Calculate(&types.AnalysisBundle{Audio: audio, Visual: &types.VisualFeatures{GestureCount: types.Int(low)}})
				after := Calculate(&types.AnalysisBundle{Audio: audio, Visual: &types.VisualFeatures{GestureCount: types.Int(high)}})
				assert.GreaterOrEqual(t, after.Engagement, before.Engagement)
			}
		}
	}

	for _, eye := range []float64{0, 0.7} {
		visual := &types.VisualFeatures{EyeContactRatio: types.Float(eye)}
		for _, low := range []int{0, 3} {
			for _, high := range []int{4, 12} {
				before := Calculate(&types.AnalysisBundle{Visual: visual, NLP: &types.NLPFeatures{QuestionCount: types.Int(low)}})
				after := Calculate(&types.AnalysisBundle{Visual: visual, NLP: &types.NLPFeatures{QuestionCount: types.Int(high)}})
				assert.GreaterOrEqual(t, after.Interaction, before.Interaction)
			}
		}
	}
}

func TestOverallTracksRoundedSubScores(t *testing.T) {
	for _, v := range []float64{0.001, 0.123, 0.4567, 0.999} {
		b := &types.AnalysisBundle{
			Audio: &types.AudioFeatures{EnergyMean: types.Float(v)},
			NLP: &types.NLPFeatures{
				TechnicalDepthScore: types.Float(v),
				ClaritySignal:       types.Float(1 - v),
				StructureSignal:     types.Float(v / 2),
			},
		}
		assertValid(t, Calculate(b))
	}
}
