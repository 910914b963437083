// Package processor owns the lifecycle of an analysis job. It is the only writer
// of a job's status after creation and performs exactly two writes per run: the
// claim (pending to processing) and the terminal outcome.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mentor-insights-go/internal/insights"
	"mentor-insights-go/internal/logger"
	"mentor-insights-go/internal/scoring"
	"mentor-insights-go/internal/store"
	"mentor-insights-go/internal/types"
)

var (
	// ErrAlreadyTerminal rejects re-running a completed or failed job.
	ErrAlreadyTerminal = errors.New("analysis job already finished")
	// ErrAlreadyClaimed means another worker is processing the job.
	ErrAlreadyClaimed = errors.New("analysis job already claimed")
	// ErrInvalidJob is a job that cannot be analyzed at all. It is left pending.
	ErrInvalidJob = errors.New("analysis job is not runnable")
)

// ComputationFault is a panic or error raised while scoring or writing insights.
type ComputationFault struct {
	Step  string
	Cause any
}

func (e *ComputationFault) Error() string {
	return fmt.Sprintf("%s computation fault: %v", e.Step, e.Cause)
}

// JobStore is the part of the store the processor writes through.
type JobStore interface {
	Get(ctx context.Context, id string) (*types.AnalysisJob, error)
	UpdateStatus(ctx context.Context, id string, from, to types.Status, patch store.Patch) (*types.AnalysisJob, error)
}

// Runner produces the merged stage output for a job.
type Runner interface {
	Process(ctx context.Context, job *types.AnalysisJob) (*types.AnalysisBundle, error)
}

type Options struct {
	Log *logrus.Entry
	// Score and Insights default to the scoring and insights packages.
	Score    func(*types.AnalysisBundle) types.ScoreSet
	Insights func(*types.AnalysisBundle, types.ScoreSet) types.InsightSet
	Now      func() time.Time
}

type Processor struct {
	store    JobStore
	runner   Runner
	log      *logrus.Entry
	score    func(*types.AnalysisBundle) types.ScoreSet
	insights func(*types.AnalysisBundle, types.ScoreSet) types.InsightSet
	now      func() time.Time
}

func New(s JobStore, r Runner, opts Options) *Processor {
	p := &Processor{
		store:    s,
		runner:   r,
		log:      opts.Log,
		score:    opts.Score,
		insights: opts.Insights,
		now:      opts.Now,
	}
	if p.log == nil {
		p.log = logger.Discard()
	}
	p.log = p.log.WithField("component", "processor")
	if p.score == nil {
		p.score = scoring.Calculate
	}
	if p.insights == nil {
		p.insights = insights.Generate
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Process runs job id to a terminal state and returns the stored job. A pipeline
// failure is not an error here: the job is returned FAILED with its detail set.
// Errors are reserved for jobs that could not be claimed or recorded.
func (p *Processor) Process(ctx context.Context, id string) (*types.AnalysisJob, error) {
	log := p.log.WithField("job_id", id)

	job, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case job.Status.Terminal():
		log.WithField("status", job.Status).Warn("refusing to re-run finished job")
		return job, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, job.Status)
	case job.Status == types.StatusProcessing:
		return job, fmt.Errorf("%w: %s", ErrAlreadyClaimed, id)
	case job.InputRef == "":
		return job, fmt.Errorf("%w: %s has no input reference", ErrInvalidJob, id)
	}

	claimed, err := p.store.UpdateStatus(ctx, id, types.StatusPending, types.StatusProcessing, store.Patch{})
	if errors.Is(err, store.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyClaimed, id)
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	log.Info("job claimed")
	start := p.now()

	bundle, runErr := p.runner.Process(ctx, claimed)
	var (
		scores *types.ScoreSet
		ins    *types.InsightSet
	)
	if runErr == nil {
		scores, ins, runErr = p.evaluate(bundle)
	}

	// The outcome is recorded even if the caller has given up.
	writeCtx := context.WithoutCancel(ctx)
	finished := p.now().UTC()
	if runErr != nil {
		log.WithError(runErr).Error("analysis failed")
		return p.store.UpdateStatus(writeCtx, id, types.StatusProcessing, types.StatusFailed, store.Patch{
			Bundle:      bundle,
			ErrorDetail: runErr.Error(),
			CompletedAt: &finished,
		})
	}

	done, err := p.store.UpdateStatus(writeCtx, id, types.StatusProcessing, types.StatusCompleted, store.Patch{
		Bundle:      bundle,
		Scores:      scores,
		Insights:    ins,
		CompletedAt: &finished,
	})
	if err != nil {
		// The job must not be left in processing; record the write error instead.
		log.WithError(err).Error("recording completion failed")
		failed, ferr := p.store.UpdateStatus(writeCtx, id, types.StatusProcessing, types.StatusFailed, store.Patch{
			ErrorDetail: "record completion: " + err.Error(),
			CompletedAt: &finished,
		})
		if ferr != nil {
			return nil, fmt.Errorf("record completion: %w", errors.Join(err, ferr))
		}
		return failed, nil
	}
	log.WithFields(logrus.Fields{
		"overall":         scores.Overall,
		"degraded_stages": bundle.DegradedStages,
		"elapsed":         finished.Sub(start.UTC()).String(),
	}).Info("analysis completed")
	return done, nil
}

func (p *Processor) evaluate(bundle *types.AnalysisBundle) (scores *types.ScoreSet, ins *types.InsightSet, err error) {
	step := "scoring"
	defer func() {
		if r := recover(); r != nil {
			scores, ins = nil, nil
			err = &ComputationFault{Step: step, Cause: r}
		}
	}()
	s := p.score(bundle)
	step = "insights"
	i := p.insights(bundle, s)
	return &s, &i, nil
}
