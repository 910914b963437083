// Package app wires the analysis service together from a Config. Both the HTTP
// server and the evaluate CLI run on top of it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"mentor-insights-go/internal/analyzer"
	"mentor-insights-go/internal/config"
	"mentor-insights-go/internal/dispatch"
	"mentor-insights-go/internal/extractor"
	"mentor-insights-go/internal/ingest"
	"mentor-insights-go/internal/pipeline"
	"mentor-insights-go/internal/processor"
	"mentor-insights-go/internal/stage"
	"mentor-insights-go/internal/store"
	"mentor-insights-go/internal/transcription"
	"mentor-insights-go/internal/types"
)

// InterruptedReason is recorded on jobs that were processing when the service stopped.
const InterruptedReason = "interrupted: service stopped while the job was processing"

type App struct {
	Config     *config.Config
	Store      *store.Store
	Processor  *processor.Processor
	Dispatcher *dispatch.Dispatcher
	Ingestor   *ingest.Ingestor
	log        *logrus.Entry
}

// New opens the store and starts the dispatcher. Close releases both.
func New(cfg *config.Config, log *logrus.Entry) (*App, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	orch := pipeline.New(Adapters(cfg, log), pipeline.Options{
		Workers:            cfg.PipelineWorkers,
		MinTranscriptChars: cfg.MinTranscriptChars,
		Log:                log,
	})
	proc := processor.New(st, orch, processor.Options{Log: log})
	disp := dispatch.New(proc, dispatch.Options{
		Workers:   cfg.DispatchWorkers,
		QueueSize: cfg.DispatchQueueSize,
		Log:       log,
	})
	in := ingest.New(st, disp, ingest.Options{
		UploadDir:         cfg.UploadDir,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
		Log:               log,
	})
	return &App{
		Config:     cfg,
		Store:      st,
		Processor:  proc,
		Dispatcher: disp,
		Ingestor:   in,
		log:        log.WithField("component", "app"),
	}, nil
}

// Adapters builds the four remote capabilities from cfg.
func Adapters(cfg *config.Config, log *logrus.Entry) *stage.Adapters {
	gateway := extractor.NewGateway(extractor.GatewayConfig{
		URL:         cfg.LLMGatewayURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		HTTPTimeout: cfg.HTTPTimeout,
	}, log)
	return &stage.Adapters{
		Transcriber: transcription.NewClient(transcription.Config{
			BaseURL:     cfg.TranscribeURL,
			HTTPTimeout: cfg.HTTPTimeout,
			Mock:        cfg.UseMockTranscribe,
		}, log),
		Audio:    analyzer.NewAudio(analyzer.Config{URL: cfg.AudioAnalyzerURL, HTTPTimeout: cfg.HTTPTimeout, Mock: cfg.UseMockAnalyzers}, log),
		Visual:   analyzer.NewVisual(analyzer.Config{URL: cfg.VisualAnalyzerURL, HTTPTimeout: cfg.HTTPTimeout, Mock: cfg.UseMockAnalyzers}, log),
		Language: extractor.NewScorer(gateway, cfg.UseMockLLM),
		Timeout:  cfg.StageTimeout,
		Log:      log,
	}
}

// Recover settles jobs left behind by a previous run: processing jobs are
// failed, pending jobs are queued again.
func (a *App) Recover(ctx context.Context) (failed int64, requeued int, err error) {
	failed, err = a.Store.FailInterrupted(ctx, InterruptedReason)
	if err != nil {
		return 0, 0, err
	}
	pending, err := a.Store.List(ctx, store.Filter{Status: types.StatusPending})
	if err != nil {
		return failed, 0, err
	}
	// List is newest first; requeue oldest first.
	for i := len(pending) - 1; i >= 0; i-- {
		if _, err := a.Dispatcher.Submit(pending[i].ID); err != nil {
			a.log.WithError(err).WithField("remaining", i+1).Warn("stopped requeueing pending jobs")
			break
		}
		requeued++
	}
	a.log.WithFields(logrus.Fields{"failed": failed, "requeued": requeued}).Info("recovered jobs from previous run")
	return failed, requeued, nil
}

// Close drains the dispatcher within ctx and closes the store.
func (a *App) Close(ctx context.Context) error {
	derr := a.Dispatcher.Shutdown(ctx)
	serr := a.Store.Close()
	return errors.Join(derr, serr)
}
