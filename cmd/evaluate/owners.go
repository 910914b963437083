package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"mentor-insights-go/internal/dataset"
	"mentor-insights-go/internal/store"
)

var ownersCmd = &cobra.Command{
	Use:   "owners [owner]",
	Short: "Show per-instructor statistics",
	Long:  "Without an argument, ranks instructors by average overall score. With an instructor name, shows their session totals and most recent analyses.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOwners,
}

var (
	ownersTop  int
	ownersJSON bool
)

func init() {
	ownersCmd.Flags().IntVar(&ownersTop, "top", 0, "Only show the best N instructors (0 shows all)")
	ownersCmd.Flags().BoolVar(&ownersJSON, "json", false, "Print JSON instead of a table")
	rootCmd.AddCommand(ownersCmd)
}

func runOwners(cmd *cobra.Command, args []string) error {
	if ownersTop < 0 {
		return fmt.Errorf("--top must not be negative")
	}
	a, log, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		jobs, err := a.Store.List(cmd.Context(), store.Filter{Owner: args[0]})
		if err != nil {
			return err
		}
		detail, err := dataset.Owner(args[0], jobs)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if ownersJSON {
			return printJSON(out, detail)
		}
		return printOwnerDetail(out, detail)
	}

	jobs, err := a.Store.List(cmd.Context(), store.Filter{})
	if err != nil {
		return err
	}
	ranked := dataset.TopOwners(jobs, ownersTop)
	if ownersJSON {
		if ranked == nil {
			ranked = []dataset.OwnerStats{}
		}
		return printJSON(out, ranked)
	}
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(out, "No completed analyses")
		return err
	}
	rows := make([][]string, 0, len(ranked))
	for _, o := range ranked {
		last := "-"
		if o.LastSession != nil {
			last = o.LastSession.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{strconv.Itoa(o.Rank), o.Owner, strconv.Itoa(o.CompletedSessions),
			score(o.AverageScore), score(o.HighestScore), score(o.LowestScore), last})
	}
	_, err = fmt.Fprintln(out, renderTable(
		[]string{"Rank", "Owner", "Completed", "Average", "Highest", "Lowest", "Last Session"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	return err
}

func printOwnerDetail(w io.Writer, d *dataset.OwnerDetail) error {
	if _, err := fmt.Fprintf(w, "%s: %d sessions, %d completed, average %s (highest %s, lowest %s)\n",
		d.Owner, d.TotalSessions, d.CompletedSessions, score(d.AverageScore), score(d.HighestScore), score(d.LowestScore)); err != nil {
		return err
	}
	rows := make([][]string, 0, len(d.Recent))
	for _, j := range d.Recent {
		overall := "-"
		if j.Scores != nil {
			overall = score(j.Scores.Overall)
		}
		rows = append(rows, []string{j.ID, j.Subject, string(j.Status), overall, j.CreatedAt.Format("2006-01-02 15:04")})
	}
	_, err := fmt.Fprintln(w, renderTable(
		[]string{"ID", "Subject", "Status", "Overall", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return err
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
