package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mentor-insights-go/internal/types"
)

// Patch carries the fields written alongside a status change. Nil pointers and
// empty strings leave the stored value untouched.
type Patch struct {
	Bundle      *types.AnalysisBundle
	Scores      *types.ScoreSet
	Insights    *types.InsightSet
	ErrorDetail string
	CompletedAt *time.Time
}

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	Status types.Status
	Owner  string
	Limit  int
}

// Create inserts a new job. The job must be pending.
func (s *Store) Create(ctx context.Context, job *types.AnalysisJob) error {
	if job == nil || job.ID == "" {
		return errors.New("create job: missing id")
	}
	if job.Status == "" {
		job.Status = types.StatusPending
	}
	if job.Status != types.StatusPending {
		return fmt.Errorf("create job: %w: new jobs start %s, got %s", ErrInvalidTransition, types.StatusPending, job.Status)
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	_, err := s.execWithRetry(ctx,
		`INSERT INTO analysis_jobs (id, subject, owner, input_ref, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Subject, job.Owner, job.InputRef, string(job.Status),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateID, job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get loads one job by id.
func (s *Store) Get(ctx context.Context, id string) (*types.AnalysisJob, error) {
	var job *types.AnalysisJob
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM analysis_jobs WHERE id = ?", id)
		var scanErr error
		job, scanErr = scanJob(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateStatus moves a job from one status to another only if it is still in
// from. When no row matches, the result is ErrNotFound for an unknown id and
// ErrStatusConflict otherwise.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to types.Status, patch Patch) (*types.AnalysisJob, error) {
	if !types.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	bundle, err := marshalNullable(patch.Bundle)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	scores, err := marshalNullable(patch.Scores)
	if err != nil {
		return nil, fmt.Errorf("encode scores: %w", err)
	}
	insights, err := marshalNullable(patch.Insights)
	if err != nil {
		return nil, fmt.Errorf("encode insights: %w", err)
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE analysis_jobs SET
		    status = ?,
		    bundle_json = COALESCE(?, bundle_json),
		    scores_json = COALESCE(?, scores_json),
		    insights_json = COALESCE(?, insights_json),
		    error_detail = COALESCE(?, error_detail),
		    completed_at = COALESCE(?, completed_at),
		    updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), bundle, scores, insights,
		nullableString(patch.ErrorDetail), nullableTime(patch.CompletedAt),
		formatTime(time.Now().UTC()),
		id, string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	if n == 0 {
		current, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, id, current.Status, from)
	}
	return s.Get(ctx, id)
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*types.AnalysisJob, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, f.Owner)
	}
	query := "SELECT " + jobColumns + " FROM analysis_jobs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var jobs []*types.AnalysisJob
	err := retryOnBusy(ctx, func() error {
		jobs = jobs[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// FailInterrupted marks every processing job as failed. It is meant to run once at
// startup, before any worker exists, to settle jobs stranded by a crash.
func (s *Store) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx,
		`UPDATE analysis_jobs SET status = ?, error_detail = ?, completed_at = ?, updated_at = ?
		 WHERE status = ?`,
		string(types.StatusFailed), reason, now, now, string(types.StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}
