package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor-insights-go/internal/config"
	"mentor-insights-go/internal/ingest"
	"mentor-insights-go/internal/logger"
	"mentor-insights-go/internal/store"
	"mentor-insights-go/internal/types"
)

func mockConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Environment:        "test",
		DBPath:             filepath.Join(dir, "db", "analyses.db"),
		UploadDir:          filepath.Join(dir, "uploads"),
		MaxUploadBytes:     1 << 20,
		AllowedExtensions:  []string{"mp4"},
		StageTimeout:       5 * time.Second,
		HTTPTimeout:        time.Second,
		PipelineWorkers:    3,
		MinTranscriptChars: 50,
		DispatchWorkers:    2,
		DispatchQueueSize:  8,
		UseMockTranscribe:  true,
		UseMockAnalyzers:   true,
		UseMockLLM:         true,
	}
}

func newApp(t *testing.T) *App {
	t.Helper()
	a, err := New(mockConfig(t), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestSubmitRunsToCompletion(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	job, ticket, err := a.Ingestor.Submit(ctx, ingest.Request{Subject: "Hashing", Owner: "dr-rao", Filename: "talk.mp4"}, strings.NewReader("bytes"))
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	done, err := ticket.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, done.ID)
	assert.Equal(t, types.StatusCompleted, done.Status)
	require.NotNil(t, done.Scores)
	require.NotNil(t, done.Bundle)
	assert.NotNil(t, done.Bundle.NLP)
	assert.Empty(t, done.Bundle.DegradedStages)

	stored, err := a.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, done.Scores, stored.Scores)
}

func TestRecoverFailsStrandedAndRequeuesPending(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	for _, id := range []string{"stranded", "waiting"} {
		require.NoError(t, a.Store.Create(ctx, &types.AnalysisJob{ID: id, Subject: "s", Owner: "o", InputRef: "/tmp/" + id + ".mp4"}))
	}
	_, err := a.Store.UpdateStatus(ctx, "stranded", types.StatusPending, types.StatusProcessing, store.Patch{})
	require.NoError(t, err)

	failed, requeued, err := a.Recover(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)
	assert.Equal(t, 1, requeued)

	stranded, err := a.Store.Get(ctx, "stranded")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, stranded.Status)
	assert.Equal(t, InterruptedReason, stranded.ErrorDetail)

	require.Eventually(t, func() bool {
		j, err := a.Store.Get(ctx, "waiting")
		return err == nil && j.Status == types.StatusCompleted
	}, 10*time.Second, 20*time.Millisecond)
}

func TestAdaptersAreFullyWired(t *testing.T) {
	ad := Adapters(mockConfig(t), logger.Discard())
	assert.Empty(t, ad.Missing())
	assert.Equal(t, 5*time.Second, ad.Timeout)
}
