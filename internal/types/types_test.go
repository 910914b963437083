package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusProcessing, StatusCompleted}: true,
		{StatusProcessing, StatusFailed}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusProcessing.Valid())
	assert.False(t, Status("done").Valid())
}

func TestNilAccessorsUseScoringDefaults(t *testing.T) {
	var a *AudioFeatures
	assert.Equal(t, 0.0, a.DurationOr())
	assert.Equal(t, 0.5, a.EnergyMeanOr())
	assert.Equal(t, 150.0, a.SpeechRateOr())
	assert.Equal(t, 0.15, a.PauseRatioOr())

	var v *VisualFeatures
	assert.Equal(t, 0, v.GestureCountOr())
	assert.Equal(t, 0.0, v.FaceConfidenceOr())
	assert.Equal(t, 0.0, v.EyeContactOr())

	var n *NLPFeatures
	_, ok := n.TechnicalDepth()
	assert.False(t, ok)
	_, ok = n.Clarity()
	assert.False(t, ok)
	_, ok = n.Structure()
	assert.False(t, ok)
	assert.Equal(t, 0, n.QuestionCountOr())
	assert.Equal(t, 0, n.TechnicalTermCountOr())

	empty := &AudioFeatures{}
	assert.Equal(t, 0.5, empty.EnergyMeanOr())
}

func TestZeroSignalIsPresent(t *testing.T) {
	n := &NLPFeatures{ClaritySignal: Float(0)}
	v, ok := n.Clarity()
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestFallbackFeatureSets(t *testing.T) {
	a := DefaultAudioFeatures()
	assert.Equal(t, 0.0, *a.Duration)
	assert.Equal(t, 0.5, *a.EnergyMean)
	assert.Equal(t, 0.2, *a.EnergyStd)
	assert.Equal(t, 180.0, *a.PitchMean)
	assert.Equal(t, 50.0, *a.PitchStd)
	assert.Equal(t, 150.0, *a.SpeechRateWPM)
	assert.Equal(t, 0.15, *a.PauseRatio)
	assert.Equal(t, 22050.0, *a.SampleRate)

	v := PlaceholderVisualFeatures()
	assert.Equal(t, 15, v.GestureCountOr())
	assert.Equal(t, 0.85, v.FaceConfidenceOr())
	assert.Equal(t, 0.75, v.EyeContactOr())

	n := DefaultNLPFeatures()
	td, _ := n.TechnicalDepth()
	cl, _ := n.Clarity()
	st, _ := n.Structure()
	assert.Equal(t, []float64{0.6, 0.7, 0.65}, []float64{td, cl, st})
	assert.Equal(t, 3, n.QuestionCountOr())
	assert.Equal(t, 5, n.TechnicalTermCountOr())
	assert.Equal(t, 0, *n.WordCount)

	// each call returns a fresh copy
	DefaultAudioFeatures().EnergyMean = Float(0.9)
	assert.Equal(t, 0.5, DefaultAudioFeatures().EnergyMeanOr())
}

func TestBundleJSONOmitsAbsentKeys(t *testing.T) {
	b := &AnalysisBundle{Audio: &AudioFeatures{EnergyMean: Float(0.4)}}
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"audio_features":{"energy_mean":0.4},"duration_seconds":0}`, string(raw))
	assert.False(t, b.Degraded())

	b.DegradedStages = []string{StageAudio}
	assert.True(t, b.Degraded())
	var nilBundle *AnalysisBundle
	assert.False(t, nilBundle.Degraded())
}
