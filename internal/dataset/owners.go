package dataset

import (
	"errors"
	"math"
	"sort"
	"time"

	"mentor-insights-go/internal/types"
)

// RecentLimit is how many analyses an owner's detail view carries.
const RecentLimit = 5

var ErrOwnerNotFound = errors.New("owner has no analyses")

// OwnerStats aggregates one instructor's sessions. Score fields cover completed
// sessions only and are zero when there are none.
type OwnerStats struct {
	Rank              int        `json:"rank,omitempty"`
	Owner             string     `json:"owner"`
	TotalSessions     int        `json:"total_sessions"`
	CompletedSessions int        `json:"completed_sessions"`
	AverageScore      float64    `json:"average_score"`
	HighestScore      float64    `json:"highest_score"`
	LowestScore       float64    `json:"lowest_score"`
	LastSession       *time.Time `json:"last_session,omitempty"`
}

// OwnerDetail is OwnerStats plus the most recent analyses, newest first.
type OwnerDetail struct {
	OwnerStats
	Recent []*types.AnalysisJob `json:"recent_analyses"`
}

// RankOwners returns every owner with at least one completed session, best
// average first, ranked from 1. Ties go to the owner name.
func RankOwners(jobs []*types.AnalysisJob) []OwnerStats {
	byOwner := map[string][]*types.AnalysisJob{}
	for _, j := range jobs {
		if j != nil {
			byOwner[j.Owner] = append(byOwner[j.Owner], j)
		}
	}
	var out []OwnerStats
	for owner, js := range byOwner {
		st := ownerStats(owner, js)
		if st.CompletedSessions > 0 {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].AverageScore != out[b].AverageScore {
			return out[a].AverageScore > out[b].AverageScore
		}
		return out[a].Owner < out[b].Owner
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// TopOwners is the first limit entries of RankOwners. A limit of zero or less
// returns them all.
func TopOwners(jobs []*types.AnalysisJob, limit int) []OwnerStats {
	ranked := RankOwners(jobs)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Owner builds the detail view for one owner from jobs.
func Owner(owner string, jobs []*types.AnalysisJob) (*OwnerDetail, error) {
	var mine []*types.AnalysisJob
	for _, j := range jobs {
		if j != nil && j.Owner == owner {
			mine = append(mine, j)
		}
	}
	if len(mine) == 0 {
		return nil, ErrOwnerNotFound
	}
	sort.SliceStable(mine, func(a, b int) bool { return mine[a].CreatedAt.After(mine[b].CreatedAt) })

	d := &OwnerDetail{OwnerStats: ownerStats(owner, mine)}
	d.Recent = mine[:min(len(mine), RecentLimit)]
	return d, nil
}

func ownerStats(owner string, jobs []*types.AnalysisJob) OwnerStats {
	st := OwnerStats{Owner: owner, TotalSessions: len(jobs)}
	var sum float64
	highest, lowest := math.Inf(-1), math.Inf(1)
	for _, j := range jobs {
		if j.Status != types.StatusCompleted || j.Scores == nil {
			continue
		}
		st.CompletedSessions++
		sum += j.Scores.Overall
		highest = math.Max(highest, j.Scores.Overall)
		lowest = math.Min(lowest, j.Scores.Overall)
		if !j.CreatedAt.IsZero() && (st.LastSession == nil || j.CreatedAt.After(*st.LastSession)) {
			at := j.CreatedAt
			st.LastSession = &at
		}
	}
	if st.CompletedSessions > 0 {
		st.AverageScore = round2(sum / float64(st.CompletedSessions))
		st.HighestScore = round2(highest)
		st.LowestScore = round2(lowest)
	}
	return st
}
