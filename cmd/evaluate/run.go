package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mentor-insights-go/internal/ingest"
	"mentor-insights-go/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run <video>",
	Short: "Analyze one session and print the result",
	Long:  "Creates an analysis job for a local video file or URL, waits for it to finish and prints the job as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

var (
	runSubject string
	runOwner   string
)

func init() {
	runCmd.Flags().StringVarP(&runSubject, "subject", "s", "", "Session subject (required)")
	runCmd.Flags().StringVarP(&runOwner, "owner", "o", "", "Instructor who taught the session (required)")
	if err := runCmd.MarkFlagRequired("subject"); err != nil {
		panic(fmt.Sprintf("failed to mark subject flag as required: %v", err))
	}
	if err := runCmd.MarkFlagRequired("owner"); err != nil {
		panic(fmt.Sprintf("failed to mark owner flag as required: %v", err))
	}
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, log, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	job, ticket, err := a.Ingestor.SubmitPath(cmd.Context(), ingest.Request{Subject: runSubject, Owner: runOwner}, args[0])
	if err != nil {
		return err
	}
	log.WithField("job_id", job.ID).Info("analysis started")

	done, err := ticket.Wait(cmd.Context())
	if err != nil {
		return fmt.Errorf("analysis %s: %w", job.ID, err)
	}
	if err := printJSON(cmd.OutOrStdout(), done); err != nil {
		return err
	}
	if done.Status == types.StatusFailed {
		return fmt.Errorf("analysis %s failed: %s", done.ID, done.ErrorDetail)
	}
	return nil
}
