package types

// Stage names as they appear in logs and in AnalysisBundle.DegradedStages.
const (
	StageTranscription = "transcription"
	StageAudio         = "audio"
	StageVisual        = "visual"
	StageLanguage      = "language"
)

// Values assumed by the scoring engine when a feature is absent from the bundle.
const (
	defaultEnergyMean    = 0.5
	defaultSpeechRateWPM = 150
	defaultPauseRatio    = 0.15
)

// AnalysisBundle is the merged, best-effort output of all stages for one job.
// A nil feature pointer means the stage was skipped.
type AnalysisBundle struct {
	Transcript      string          `json:"transcript,omitempty"`
	Audio           *AudioFeatures  `json:"audio_features,omitempty"`
	Visual          *VisualFeatures `json:"visual_features,omitempty"`
	NLP             *NLPFeatures    `json:"nlp_features,omitempty"`
	DurationSeconds float64         `json:"duration_seconds"`
	DegradedStages  []string        `json:"degraded_stages,omitempty"`
}

// Degraded reports whether any stage contributed fallback values.
func (b *AnalysisBundle) Degraded() bool {
	return b != nil && len(b.DegradedStages) > 0
}

// AudioFeatures is the audio analyzer contribution.
type AudioFeatures struct {
	Duration      *float64 `json:"duration,omitempty"`
	EnergyMean    *float64 `json:"energy_mean,omitempty"`
	EnergyStd     *float64 `json:"energy_std,omitempty"`
	PitchMean     *float64 `json:"pitch_mean,omitempty"`
	PitchStd      *float64 `json:"pitch_std,omitempty"`
	SpeechRateWPM *float64 `json:"speech_rate_wpm,omitempty"`
	PauseRatio    *float64 `json:"pause_ratio,omitempty"`
	SampleRate    *float64 `json:"sample_rate,omitempty"`
}

// DefaultAudioFeatures is what the audio stage reports when the analyzer fails.
func DefaultAudioFeatures() *AudioFeatures {
	return &AudioFeatures{
		Duration:      Float(0),
		EnergyMean:    Float(defaultEnergyMean),
		EnergyStd:     Float(0.2),
		PitchMean:     Float(180),
		PitchStd:      Float(50),
		SpeechRateWPM: Float(defaultSpeechRateWPM),
		PauseRatio:    Float(defaultPauseRatio),
		SampleRate:    Float(22050),
	}
}

func (a *AudioFeatures) DurationOr() float64 {
	if a == nil {
		return 0
	}
	return floatOr(a.Duration, 0)
}

func (a *AudioFeatures) EnergyMeanOr() float64 {
	if a == nil {
		return defaultEnergyMean
	}
	return floatOr(a.EnergyMean, defaultEnergyMean)
}

func (a *AudioFeatures) SpeechRateOr() float64 {
	if a == nil {
		return defaultSpeechRateWPM
	}
	return floatOr(a.SpeechRateWPM, defaultSpeechRateWPM)
}

func (a *AudioFeatures) PauseRatioOr() float64 {
	if a == nil {
		return defaultPauseRatio
	}
	return floatOr(a.PauseRatio, defaultPauseRatio)
}

// VisualFeatures is the vision analyzer contribution. Ratios and confidence are in [0,1].
type VisualFeatures struct {
	TotalFrames       *int     `json:"total_frames,omitempty"`
	SamplesAnalyzed   *int     `json:"samples_analyzed,omitempty"`
	GestureCount      *int     `json:"gesture_count,omitempty"`
	FaceConfidence    *float64 `json:"face_confidence,omitempty"`
	FacePresenceRatio *float64 `json:"face_presence_ratio,omitempty"`
	EyeContactRatio   *float64 `json:"eye_contact_ratio,omitempty"`
	HandGestureCount  *int     `json:"hand_gesture_count,omitempty"`
}

// PlaceholderVisualFeatures is what the visual stage reports when the landmark
// detector is unavailable or fails. The values sit in the middle of the ranges a
// camera-facing instructor typically produces over 30 sampled frames.
func PlaceholderVisualFeatures() *VisualFeatures {
	return &VisualFeatures{
		TotalFrames:       Int(0),
		SamplesAnalyzed:   Int(30),
		GestureCount:      Int(15),
		FaceConfidence:    Float(0.85),
		FacePresenceRatio: Float(0.8),
		EyeContactRatio:   Float(0.75),
		HandGestureCount:  Int(11),
	}
}

func (v *VisualFeatures) GestureCountOr() int {
	if v == nil {
		return 0
	}
	return intOr(v.GestureCount, 0)
}

func (v *VisualFeatures) FaceConfidenceOr() float64 {
	if v == nil {
		return 0
	}
	return floatOr(v.FaceConfidence, 0)
}

func (v *VisualFeatures) EyeContactOr() float64 {
	if v == nil {
		return 0
	}
	return floatOr(v.EyeContactRatio, 0)
}

// NLPFeatures is the language-scoring contribution. Signals are in [0,1].
type NLPFeatures struct {
	TechnicalDepthScore *float64 `json:"technical_depth_score,omitempty"`
	ClaritySignal       *float64 `json:"clarity_signal,omitempty"`
	StructureSignal     *float64 `json:"structure_signal,omitempty"`
	QuestionCount       *int     `json:"question_count,omitempty"`
	TechnicalTermCount  *int     `json:"technical_term_count,omitempty"`
	WordCount           *int     `json:"word_count,omitempty"`
}

// DefaultNLPFeatures is what the language stage reports when the scorer fails.
func DefaultNLPFeatures() *NLPFeatures {
	return &NLPFeatures{
		TechnicalDepthScore: Float(0.6),
		ClaritySignal:       Float(0.7),
		StructureSignal:     Float(0.65),
		QuestionCount:       Int(3),
		TechnicalTermCount:  Int(5),
		WordCount:           Int(0),
	}
}

// Signal accessors return ok=false when the signal is absent, so callers add no bonus.

func (n *NLPFeatures) TechnicalDepth() (float64, bool) {
	if n == nil || n.TechnicalDepthScore == nil {
		return 0, false
	}
	return *n.TechnicalDepthScore, true
}

func (n *NLPFeatures) Clarity() (float64, bool) {
	if n == nil || n.ClaritySignal == nil {
		return 0, false
	}
	return *n.ClaritySignal, true
}

func (n *NLPFeatures) Structure() (float64, bool) {
	if n == nil || n.StructureSignal == nil {
		return 0, false
	}
	return *n.StructureSignal, true
}

func (n *NLPFeatures) QuestionCountOr() int {
	if n == nil {
		return 0
	}
	return intOr(n.QuestionCount, 0)
}

func (n *NLPFeatures) TechnicalTermCountOr() int {
	if n == nil {
		return 0
	}
	return intOr(n.TechnicalTermCount, 0)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
