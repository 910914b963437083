package dataset

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"mentor-insights-go/internal/types"
)

const (
	scoresSheet  = "Scores"
	summarySheet = "Summary"
)

// Summary aggregates completed jobs.
type Summary struct {
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	Pending   int            `json:"pending"`
	Mean      types.ScoreSet `json:"mean"`
	ByOwner   []OwnerStats   `json:"by_owner"`
}

// Leaderboard returns the completed jobs ordered by overall score, best first.
func Leaderboard(jobs []*types.AnalysisJob) []*types.AnalysisJob {
	var out []*types.AnalysisJob
	for _, j := range jobs {
		if j != nil && j.Status == types.StatusCompleted && j.Scores != nil {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Scores.Overall > out[b].Scores.Overall })
	return out
}

// Summarize computes the report's summary sheet.
func Summarize(jobs []*types.AnalysisJob) Summary {
	var s Summary
	for _, j := range jobs {
		if j == nil {
			continue
		}
		switch j.Status {
		case types.StatusFailed:
			s.Failed++
			continue
		case types.StatusPending, types.StatusProcessing:
			s.Pending++
			continue
		}
		if j.Scores == nil {
			continue
		}
		s.Completed++
		s.Mean.Engagement += j.Scores.Engagement
		s.Mean.Communication += j.Scores.Communication
		s.Mean.TechnicalDepth += j.Scores.TechnicalDepth
		s.Mean.Clarity += j.Scores.Clarity
		s.Mean.Interaction += j.Scores.Interaction
		s.Mean.Overall += j.Scores.Overall
	}
	if s.Completed > 0 {
		n := float64(s.Completed)
		s.Mean = types.ScoreSet{
			Engagement:     round2(s.Mean.Engagement / n),
			Communication:  round2(s.Mean.Communication / n),
			TechnicalDepth: round2(s.Mean.TechnicalDepth / n),
			Clarity:        round2(s.Mean.Clarity / n),
			Interaction:    round2(s.Mean.Interaction / n),
			Overall:        round2(s.Mean.Overall / n),
		}
	}
	s.ByOwner = RankOwners(jobs)
	return s
}

// WriteReport saves the Scores and Summary sheets to path.
func WriteReport(path string, jobs []*types.AnalysisJob) error {
	f, err := buildReport(jobs)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// WriteReportTo streams the workbook, e.g. as an HTTP download.
func WriteReportTo(w io.Writer, jobs []*types.AnalysisJob) error {
	f, err := buildReport(jobs)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func buildReport(jobs []*types.AnalysisJob) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", scoresSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	header := []any{"Rank", "Job ID", "Owner", "Subject", "Overall", "Engagement", "Communication",
		"Technical Depth", "Clarity", "Interaction", "Key Highlight", "Degraded Stages", "Completed At"}
	if err := setRow(f, scoresSheet, 1, header); err != nil {
		return nil, err
	}
	for i, j := range Leaderboard(jobs) {
		highlight := ""
		if j.Insights != nil {
			highlight = j.Insights.KeyHighlight
		}
		degraded := ""
		if j.Bundle != nil {
			degraded = strings.Join(j.Bundle.DegradedStages, ", ")
		}
		completed := ""
		if j.CompletedAt != nil {
			completed = j.CompletedAt.UTC().Format(time.RFC3339)
		}
		row := []any{i + 1, j.ID, j.Owner, j.Subject, j.Scores.Overall, j.Scores.Engagement, j.Scores.Communication,
			j.Scores.TechnicalDepth, j.Scores.Clarity, j.Scores.Interaction, highlight, degraded, completed}
		if err := setRow(f, scoresSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	s := Summarize(jobs)
	lines := [][]any{
		{"Completed", s.Completed},
		{"Failed", s.Failed},
		{"Pending", s.Pending},
		{},
		{"Mean Engagement", s.Mean.Engagement},
		{"Mean Communication", s.Mean.Communication},
		{"Mean Technical Depth", s.Mean.TechnicalDepth},
		{"Mean Clarity", s.Mean.Clarity},
		{"Mean Interaction", s.Mean.Interaction},
		{"Mean Overall", s.Mean.Overall},
		{},
		{"Rank", "Owner", "Sessions", "Completed", "Average", "Highest", "Lowest"},
	}
	for _, o := range s.ByOwner {
		lines = append(lines, []any{o.Rank, o.Owner, o.TotalSessions, o.CompletedSessions, o.AverageScore, o.HighestScore, o.LowestScore})
	}
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		if err := setRow(f, summarySheet, i+1, line); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cellName, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cellName, &values)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
