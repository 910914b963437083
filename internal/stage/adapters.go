package stage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mentor-insights-go/internal/logger"
	"mentor-insights-go/internal/types"
)

// Capabilities provided by the external analyzers.
type (
	Transcriber interface {
		Transcribe(ctx context.Context, inputRef string) (string, error)
	}
	AudioExtractor interface {
		Extract(ctx context.Context, inputRef string) (*types.AudioFeatures, error)
	}
	VisualExtractor interface {
		Extract(ctx context.Context, inputRef string) (*types.VisualFeatures, error)
	}
	LanguageScorer interface {
		Score(ctx context.Context, transcript string) (*types.NLPFeatures, error)
	}
)

var errEmptyResult = errors.New("analyzer returned no features")

// Adapters bundles the four stage adapters with their shared time budget.
type Adapters struct {
	Transcriber Transcriber
	Audio       AudioExtractor
	Visual      VisualExtractor
	Language    LanguageScorer
	Timeout     time.Duration
	Log         *logrus.Entry
}

func (a *Adapters) log() *logrus.Entry {
	if a.Log == nil {
		return logger.Discard()
	}
	return a.Log
}

// Missing names the capabilities that were not wired.
func (a *Adapters) Missing() []string {
	var missing []string
	if a.Transcriber == nil {
		missing = append(missing, types.StageTranscription)
	}
	if a.Audio == nil {
		missing = append(missing, types.StageAudio)
	}
	if a.Visual == nil {
		missing = append(missing, types.StageVisual)
	}
	if a.Language == nil {
		missing = append(missing, types.StageLanguage)
	}
	return missing
}

// Transcription falls back to an empty transcript.
func (a *Adapters) Transcription(ctx context.Context, log *logrus.Entry, inputRef string) Outcome[string] {
	return Run(ctx, orDefault(log, a.log()), types.StageTranscription, a.Timeout, "", func(ctx context.Context) (string, error) {
		text, err := a.Transcriber.Transcribe(ctx, inputRef)
		return strings.TrimSpace(text), err
	})
}

// AudioFeatures falls back to types.DefaultAudioFeatures.
func (a *Adapters) AudioFeatures(ctx context.Context, log *logrus.Entry, inputRef string) Outcome[*types.AudioFeatures] {
	return Run(ctx, orDefault(log, a.log()), types.StageAudio, a.Timeout, types.DefaultAudioFeatures(), func(ctx context.Context) (*types.AudioFeatures, error) {
		f, err := a.Audio.Extract(ctx, inputRef)
		if err == nil && f == nil {
			err = errEmptyResult
		}
		return f, err
	})
}

// VisualFeatures falls back to types.PlaceholderVisualFeatures.
func (a *Adapters) VisualFeatures(ctx context.Context, log *logrus.Entry, inputRef string) Outcome[*types.VisualFeatures] {
	return Run(ctx, orDefault(log, a.log()), types.StageVisual, a.Timeout, types.PlaceholderVisualFeatures(), func(ctx context.Context) (*types.VisualFeatures, error) {
		f, err := a.Visual.Extract(ctx, inputRef)
		if err == nil && f == nil {
			err = errEmptyResult
		}
		return f, err
	})
}

// LanguageScoring falls back to types.DefaultNLPFeatures.
func (a *Adapters) LanguageScoring(ctx context.Context, log *logrus.Entry, transcript string) Outcome[*types.NLPFeatures] {
	return Run(ctx, orDefault(log, a.log()), types.StageLanguage, a.Timeout, types.DefaultNLPFeatures(), func(ctx context.Context) (*types.NLPFeatures, error) {
		f, err := a.Language.Score(ctx, transcript)
		if err == nil && f == nil {
			err = errEmptyResult
		}
		return f, err
	})
}

func orDefault(log, def *logrus.Entry) *logrus.Entry {
	if log != nil {
		return log
	}
	return def
}
