package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mentor-insights-go/internal/dataset"
	"mentor-insights-go/internal/dispatch"
	"mentor-insights-go/internal/ingest"
	"mentor-insights-go/internal/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.xlsx>",
	Short: "Analyze every session listed in a spreadsheet",
	Long:  "Reads sessions (owner, subject, video path or URL) from the first sheet of an xlsx manifest, analyzes them and optionally writes a score report.",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

var batchReport string

func init() {
	batchCmd.Flags().StringVarP(&batchReport, "report", "r", "", "Write an xlsx report of the batch to this path")
	rootCmd.AddCommand(batchCmd)
}

type batchResult struct {
	Submitted int              `json:"submitted"`
	Rejected  int              `json:"rejected"`
	Summary   dataset.Summary  `json:"summary"`
	Jobs      []*batchJobBrief `json:"jobs"`
}

type batchJobBrief struct {
	Row     int          `json:"row"`
	ID      string       `json:"id"`
	Owner   string       `json:"owner"`
	Status  types.Status `json:"status"`
	Overall *float64     `json:"overall,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	sessions, err := dataset.LoadManifest(args[0])
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	a, log, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	var (
		queue  []queued
		result batchResult
	)
	for _, s := range sessions {
		rowLog := log.WithFields(logrus.Fields{"row": s.Row, "input_ref": s.InputRef})
		job, ticket, err := a.Ingestor.SubmitPath(cmd.Context(), ingest.Request{Subject: s.Subject, Owner: s.Owner}, s.InputRef)
		if errors.Is(err, ingest.ErrNotDispatched) {
			ticket, err = requeue(cmd.Context(), a.Dispatcher, job.ID, queue)
		}
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			rowLog.WithError(err).Warn("row rejected")
			result.Rejected++
			continue
		}
		if err != nil {
			return fmt.Errorf("row %d: %w", s.Row, err)
		}
		queue = append(queue, queued{row: s.Row, ticket: ticket})
		result.Submitted++
	}

	var jobs []*types.AnalysisJob
	for _, p := range queue {
		job, err := p.ticket.Wait(cmd.Context())
		brief := &batchJobBrief{Row: p.row, ID: p.ticket.ID}
		if err != nil {
			brief.Error = err.Error()
		}
		if job != nil {
			jobs = append(jobs, job)
			brief.Owner = job.Owner
			brief.Status = job.Status
			if job.Scores != nil {
				overall := job.Scores.Overall
				brief.Overall = &overall
			}
			if job.ErrorDetail != "" {
				brief.Error = job.ErrorDetail
			}
		}
		result.Jobs = append(result.Jobs, brief)
	}
	result.Summary = dataset.Summarize(jobs)

	if batchReport != "" {
		if err := dataset.WriteReport(batchReport, jobs); err != nil {
			return err
		}
		log.WithField("path", batchReport).Info("report written")
	}
	return printJSON(cmd.OutOrStdout(), result)
}

type queued struct {
	row    int
	ticket *dispatch.Ticket
}

// requeue waits for earlier jobs to finish until the dispatcher accepts id.
func requeue(ctx context.Context, d *dispatch.Dispatcher, id string, earlier []queued) (*dispatch.Ticket, error) {
	for _, q := range earlier {
		t, err := d.Submit(id)
		if !errors.Is(err, dispatch.ErrQueueFull) {
			return t, err
		}
		select {
		case <-q.ticket.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.Submit(id)
}
