package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"mentor-insights-go/internal/types"
)

// promptWindow is how many characters of the transcript are shown to the model.
const promptWindow = 1000

var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:algorithm|function|variable|class|object|method|parameter)\b`),
	regexp.MustCompile(`(?i)\b(?:database|query|server|client|API|protocol)\b`),
	regexp.MustCompile(`(?i)\b(?:machine learning|neural network|deep learning|AI)\b`),
	regexp.MustCompile(`(?i)\b(?:data structure|complexity|optimization|efficiency)\b`),
}

// Completer is the subset of Gateway the scorer needs.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string, target any) error
}

// Scorer rates a teaching transcript for technical depth, clarity and structure.
type Scorer struct {
	llm  Completer
	mock bool
}

// NewScorer returns a scorer backed by llm. With mock set the model is never called.
func NewScorer(llm Completer, mock bool) *Scorer {
	return &Scorer{llm: llm, mock: mock}
}

type signals struct {
	TechnicalDepth *float64 `json:"technical_depth"`
	Clarity        *float64 `json:"clarity"`
	Structure      *float64 `json:"structure"`
}

func (s *Scorer) Score(ctx context.Context, transcript string) (*types.NLPFeatures, error) {
	var sig signals
	if s.mock {
		sig = signals{TechnicalDepth: types.Float(0.6), Clarity: types.Float(0.7), Structure: types.Float(0.65)}
	} else {
		if s.llm == nil {
			return nil, ErrNotConfigured
		}
		var raw json.RawMessage
		if err := s.llm.CompleteJSON(ctx, BuildScoringPrompt(transcript), &raw); err != nil {
			return nil, err
		}
		if err := validateReply(raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &sig); err != nil {
			return nil, fmt.Errorf("decode llm reply: %w", err)
		}
	}

	return &types.NLPFeatures{
		TechnicalDepthScore: types.Float(clamp01(*sig.TechnicalDepth)),
		ClaritySignal:       types.Float(clamp01(*sig.Clarity)),
		StructureSignal:     types.Float(clamp01(*sig.Structure)),
		QuestionCount:       types.Int(CountQuestions(transcript)),
		TechnicalTermCount:  types.Int(CountTechnicalTerms(transcript)),
		WordCount:           types.Int(len(strings.Fields(transcript))),
	}, nil
}

// BuildScoringPrompt asks for all three ratings in one JSON object.
func BuildScoringPrompt(transcript string) string {
	transcript = firstRunes(transcript, promptWindow)
	return `Analyze the following teaching transcript.
Rate each aspect on a scale of 0.0 to 1.0:

technical_depth:
- 0.0-0.3: Very basic, no technical content
- 0.4-0.6: Moderate technical content
- 0.7-1.0: Deep technical content with detailed explanations

clarity:
- 0.0-0.3: Confusing, unclear
- 0.4-0.6: Moderately clear
- 0.7-1.0: Very clear and well-structured

structure:
- 0.0-0.3: Poorly organized
- 0.4-0.6: Moderately organized
- 0.7-1.0: Well-organized with clear flow

Respond with ONLY a JSON object of the form
{"technical_depth": 0.0, "clarity": 0.0, "structure": 0.0}

Transcript: ` + transcript
}

func CountQuestions(transcript string) int {
	return strings.Count(transcript, "?")
}

// CountTechnicalTerms counts matches of each term family, case-insensitively.
func CountTechnicalTerms(transcript string) int {
	n := 0
	for _, re := range technicalPatterns {
		n += len(re.FindAllStringIndex(transcript, -1))
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
