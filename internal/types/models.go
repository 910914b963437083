package types

import "time"

// Status is the lifecycle state of an analysis job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition enforces the job state machine edges.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// AnalysisJob is one evaluation of a recorded teaching session.
type AnalysisJob struct {
	ID          string          `json:"id"`
	Subject     string          `json:"subject"`
	Owner       string          `json:"owner"`
	InputRef    string          `json:"input_ref"`
	Status      Status          `json:"status"`
	Bundle      *AnalysisBundle `json:"bundle,omitempty"`
	Scores      *ScoreSet       `json:"scores,omitempty"`
	Insights    *InsightSet     `json:"insights,omitempty"`
	ErrorDetail string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ScoreSet holds the five sub-scores and the weighted overall score, each in [0,100].
type ScoreSet struct {
	Engagement     float64 `json:"engagement"`
	Communication  float64 `json:"communication"`
	TechnicalDepth float64 `json:"technical_depth"`
	Clarity        float64 `json:"clarity"`
	Interaction    float64 `json:"interaction"`
	Overall        float64 `json:"overall"`
}

// InsightSet is the narrative feedback derived from a ScoreSet.
type InsightSet struct {
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`
	KeyHighlight    string   `json:"key_highlight"`
}
