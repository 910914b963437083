package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mentor-insights-go/internal/dataset"
	"mentor-insights-go/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored analyses to an xlsx report",
	Long:  "Writes every stored analysis to a workbook with a Scores leaderboard sheet and a Summary sheet, and prints the summary as JSON.",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var (
	exportReport string
	exportOwner  string
)

func init() {
	exportCmd.Flags().StringVarP(&exportReport, "report", "r", "", "Path to the output xlsx file (required)")
	exportCmd.Flags().StringVar(&exportOwner, "owner", "", "Only export analyses for this instructor")
	if err := exportCmd.MarkFlagRequired("report"); err != nil {
		panic(fmt.Sprintf("failed to mark report flag as required: %v", err))
	}
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, log, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	jobs, err := a.Store.List(cmd.Context(), store.Filter{Owner: exportOwner})
	if err != nil {
		return err
	}
	if err := dataset.WriteReport(exportReport, jobs); err != nil {
		return err
	}
	log.WithFields(map[string]any{"path": exportReport, "jobs": len(jobs)}).Info("report written")
	return printJSON(cmd.OutOrStdout(), dataset.Summarize(jobs))
}
