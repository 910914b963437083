// Package pipeline schedules the analysis stages for one job: transcription,
// audio and visual analysis run concurrently, then language scoring runs on the
// transcript once all three have finished.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mentor-insights-go/internal/logger"
	"mentor-insights-go/internal/stage"
	"mentor-insights-go/internal/types"
)

const (
	// MinWorkers is one worker per independent stage.
	MinWorkers = 3
	// DefaultMinTranscriptChars is the shortest transcript worth scoring.
	DefaultMinTranscriptChars = 50
)

// FailureError is an orchestration-level fault, as opposed to a stage failure.
// It is the only error Process returns.
type FailureError struct {
	Op  string
	Err error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Op, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

var errNoInput = errors.New("job has no input reference")

// Options configures an Orchestrator.
type Options struct {
	Workers            int
	MinTranscriptChars int
	Log                *logrus.Entry
}

// Orchestrator runs the stage adapters for a job and merges their output.
type Orchestrator struct {
	adapters *stage.Adapters
	workers  int
	minChars int
	log      *logrus.Entry
}

// New builds an Orchestrator. Workers below MinWorkers are raised to it.
func New(adapters *stage.Adapters, opts Options) *Orchestrator {
	workers := opts.Workers
	if workers < MinWorkers {
		workers = MinWorkers
	}
	minChars := opts.MinTranscriptChars
	if minChars <= 0 {
		minChars = DefaultMinTranscriptChars
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Orchestrator{
		adapters: adapters,
		workers:  workers,
		minChars: minChars,
		log:      log.WithField("component", "pipeline"),
	}
}

// Process runs every stage for job and returns the merged bundle. Stage
// failures are absorbed into fallback values; only a *FailureError is returned.
func (o *Orchestrator) Process(ctx context.Context, job *types.AnalysisJob) (*types.AnalysisBundle, error) {
	if o.adapters == nil {
		return nil, &FailureError{Op: "setup", Err: errors.New("no stage adapters configured")}
	}
	if missing := o.adapters.Missing(); len(missing) > 0 {
		return nil, &FailureError{Op: "setup", Err: fmt.Errorf("stages not configured: %s", strings.Join(missing, ", "))}
	}
	if job == nil || strings.TrimSpace(job.InputRef) == "" {
		return nil, &FailureError{Op: "setup", Err: errNoInput}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FailureError{Op: "schedule", Err: err}
	}

	log := o.log.WithField("job_id", job.ID)
	log.WithField("input_ref", job.InputRef).Info("pipeline started")

	var (
		transcript stage.Outcome[string]
		audio      stage.Outcome[*types.AudioFeatures]
		visual     stage.Outcome[*types.VisualFeatures]
	)

	// Adapters never fail, so the group only propagates scheduling faults.
	// Each goroutine writes a distinct variable; Wait is the barrier.
	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	g.Go(func() error {
		transcript = o.adapters.Transcription(ctx, log, job.InputRef)
		return nil
	})
	g.Go(func() error {
		audio = o.adapters.AudioFeatures(ctx, log, job.InputRef)
		return nil
	})
	g.Go(func() error {
		visual = o.adapters.VisualFeatures(ctx, log, job.InputRef)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, &FailureError{Op: "fan-in", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FailureError{Op: "fan-in", Err: err}
	}

	bundle := &types.AnalysisBundle{
		Transcript: transcript.Value,
		Audio:      audio.Value,
		Visual:     visual.Value,
	}
	markDegraded(bundle, transcript.Stage, transcript.Degraded)
	markDegraded(bundle, audio.Stage, audio.Degraded)
	markDegraded(bundle, visual.Stage, visual.Degraded)

	chars := utf8.RuneCountInString(bundle.Transcript)
	if chars >= o.minChars {
		nlp := o.adapters.LanguageScoring(ctx, log, bundle.Transcript)
		if err := ctx.Err(); err != nil {
			return bundle, &FailureError{Op: "language stage", Err: err}
		}
		bundle.NLP = nlp.Value
		markDegraded(bundle, nlp.Stage, nlp.Degraded)
	} else {
		log.WithField("transcript_chars", chars).Info("transcript too short, skipping language scoring")
	}

	bundle.DurationSeconds = bundle.Audio.DurationOr()

	log.WithFields(logrus.Fields{
		"duration_s":      bundle.DurationSeconds,
		"degraded_stages": bundle.DegradedStages,
		"nlp":             bundle.NLP != nil,
	}).Info("pipeline finished")
	return bundle, nil
}

func markDegraded(b *types.AnalysisBundle, name string, degraded bool) {
	if degraded {
		b.DegradedStages = append(b.DegradedStages, name)
	}
}
