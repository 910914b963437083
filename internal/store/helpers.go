package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"mentor-insights-go/internal/types"
)

const jobColumns = "id, subject, owner, input_ref, status, bundle_json, scores_json, insights_json, error_detail, created_at, updated_at, completed_at"

// Fixed-width so that lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*types.AnalysisJob, error) {
	var (
		id, subject, owner, inputRef, status string
		bundleRaw, scoresRaw, insightsRaw    sql.NullString
		errorDetail                          sql.NullString
		createdRaw, updatedRaw               string
		completedRaw                         sql.NullString
	)
	if err := scanner.Scan(
		&id, &subject, &owner, &inputRef, &status,
		&bundleRaw, &scoresRaw, &insightsRaw,
		&errorDetail, &createdRaw, &updatedRaw, &completedRaw,
	); err != nil {
		return nil, err
	}

	job := &types.AnalysisJob{
		ID:          id,
		Subject:     subject,
		Owner:       owner,
		InputRef:    inputRef,
		Status:      types.Status(status),
		ErrorDetail: errorDetail.String,
	}
	if bundleRaw.Valid {
		job.Bundle = &types.AnalysisBundle{}
		if err := json.Unmarshal([]byte(bundleRaw.String), job.Bundle); err != nil {
			return nil, err
		}
	}
	if scoresRaw.Valid {
		job.Scores = &types.ScoreSet{}
		if err := json.Unmarshal([]byte(scoresRaw.String), job.Scores); err != nil {
			return nil, err
		}
	}
	if insightsRaw.Valid {
		job.Insights = &types.InsightSet{}
		if err := json.Unmarshal([]byte(insightsRaw.String), job.Insights); err != nil {
			return nil, err
		}
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = t
	}
	if completedRaw.Valid {
		if t, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &t
		}
	}
	return job, nil
}

func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
