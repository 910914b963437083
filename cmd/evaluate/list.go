package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mentor-insights-go/internal/store"
	"mentor-insights-go/internal/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show stored analyses",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var (
	listStatus string
	listOwner  string
	listLimit  int
	listJSON   bool
)

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only show analyses in this status (pending, processing, completed, failed)")
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Only show analyses for this instructor")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of analyses to show")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON instead of a table")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	status := types.Status(listStatus)
	if listStatus != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", listStatus)
	}
	a, log, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	jobs, err := a.Store.List(cmd.Context(), store.Filter{Status: status, Owner: listOwner, Limit: listLimit})
	if err != nil {
		return err
	}
	if listJSON {
		if jobs == nil {
			jobs = []*types.AnalysisJob{}
		}
		return printJSON(cmd.OutOrStdout(), jobs)
	}
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No analyses found")
		return err
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		overall := "-"
		if j.Scores != nil {
			overall = score(j.Scores.Overall)
		}
		rows = append(rows, []string{j.ID, j.Owner, j.Subject, string(j.Status), overall, j.CreatedAt.Format("2006-01-02 15:04")})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Owner", "Subject", "Status", "Overall", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return err
}
