// Package migration contains the workspace-migration domain: jobs, the
// entity-mapping ledger that makes imports idempotent, the source-system
// client contract, and the pure transform rules applied while importing.
package migration

import (
	"fmt"
	"time"

	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// JobType identifies the source integration a job imports from
type JobType string

// JobTypeTrelloImport is the only integration currently supported
const JobTypeTrelloImport JobType = "trello_import"

// JobStatus represents the lifecycle state of a migration job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusPaused,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobConfig carries the source credentials and the boards to migrate.
// The key and token are opaque caller-supplied strings; they are stored with
// the job but must never appear in logs or API responses.
type JobConfig struct {
	APIKey   string   `json:"api_key"`
	APIToken string   `json:"api_token"`
	BoardIDs []string `json:"board_ids"`
}

// Progress tracks how far a job has advanced. Current/Total count entities
// within the active phase; writes are batched, so Current may lag briefly.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Phase   string `json:"phase,omitempty"`
}

// MaxReportErrors caps the number of entity-level errors retained per job
const MaxReportErrors = 20

// Report accumulates per-kind created counters and a capped error list
type Report struct {
	Boards        int      `json:"boards"`
	Lists         int      `json:"lists"`
	Cards         int      `json:"cards"`
	Comments      int      `json:"comments"`
	Attachments   int      `json:"attachments"`
	Labels        int      `json:"labels"`
	Checklists    int      `json:"checklists"`
	Skipped       int      `json:"skipped"`
	ErrorsDropped int      `json:"errors_dropped,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// AddError records an entity-level error message. Once the cap is reached
// further messages only bump ErrorsDropped so the report stays bounded.
func (r *Report) AddError(msg string) {
	if len(r.Errors) >= MaxReportErrors {
		r.ErrorsDropped++
		return
	}
	r.Errors = append(r.Errors, msg)
}

// Merge adds another report's counters and errors into this one
func (r *Report) Merge(other Report) {
	r.Boards += other.Boards
	r.Lists += other.Lists
	r.Cards += other.Cards
	r.Comments += other.Comments
	r.Attachments += other.Attachments
	r.Labels += other.Labels
	r.Checklists += other.Checklists
	r.Skipped += other.Skipped
	r.ErrorsDropped += other.ErrorsDropped
	for _, e := range other.Errors {
		r.AddError(e)
	}
}

// Job is a unit of migration work. A parent job holds the full board list and
// never imports anything itself; each child job imports exactly one board.
type Job struct {
	shared.BaseAggregateRoot
	Type        JobType
	Status      JobStatus
	Config      JobConfig
	Progress    Progress
	Report      Report
	Error       string
	ParentJobID *uuid.UUID
	BoardIndex  int
	StartedBy   uuid.UUID
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewParentJob creates the coordinating job for a multi-board migration
// request. It validates the caller-supplied credentials and board list.
func NewParentJob(startedBy uuid.UUID, cfg JobConfig) (*Job, error) {
	if cfg.APIKey == "" || cfg.APIToken == "" {
		return nil, shared.NewDomainError("MISSING_CREDENTIALS", "Source API key and token are required")
	}
	if len(cfg.BoardIDs) == 0 {
		return nil, shared.NewDomainError("MISSING_BOARDS", "At least one source board ID is required")
	}
	return &Job{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              JobTypeTrelloImport,
		Status:            JobStatusPending,
		Config:            cfg,
		StartedBy:         startedBy,
	}, nil
}

// NewChildJob creates the per-board job at the given ordinal among its
// siblings. Children inherit the parent's credentials but carry exactly one
// board and never spawn further children.
func NewChildJob(parent *Job, sourceBoardID string, boardIndex int) (*Job, error) {
	if parent.ParentJobID != nil {
		return nil, shared.NewDomainError("INVALID_PARENT", "Child jobs cannot spawn children")
	}
	if sourceBoardID == "" {
		return nil, shared.NewDomainError("MISSING_BOARDS", "Child job requires a source board ID")
	}
	parentID := parent.ID
	return &Job{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              parent.Type,
		Status:            JobStatusPending,
		Config: JobConfig{
			APIKey:   parent.Config.APIKey,
			APIToken: parent.Config.APIToken,
			BoardIDs: []string{sourceBoardID},
		},
		ParentJobID: &parentID,
		BoardIndex:  boardIndex,
		StartedBy:   parent.StartedBy,
	}, nil
}

// IsChild reports whether this job imports a single board on behalf of a parent
func (j *Job) IsChild() bool {
	return j.ParentJobID != nil
}

// SourceBoardID returns the single board a child job migrates
func (j *Job) SourceBoardID() string {
	if len(j.Config.BoardIDs) == 0 {
		return ""
	}
	return j.Config.BoardIDs[0]
}

// Start transitions the job to running
func (j *Job) Start() error {
	if j.Status != JobStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start job from state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Complete marks the job as successfully finished
func (j *Job) Complete() error {
	if j.Status != JobStatusRunning {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete job from state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Fail marks the job as failed with a single top-level error message
func (j *Job) Fail(message string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail job from terminal state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = message
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Cancel requests cooperative termination. The importer observes the status
// change between entity batches; in-flight page fetches are not aborted.
func (j *Job) Cancel() error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel job from terminal state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Pause parks a running job for manual intervention. Paused jobs are never
// auto-resumed.
func (j *Job) Pause() error {
	if j.Status != JobStatusRunning {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot pause job from state: %s", j.Status))
	}
	j.Status = JobStatusPaused
	j.UpdatedAt = time.Now()
	j.IncrementVersion()
	return nil
}

// SetProgress replaces the job's progress snapshot
func (j *Job) SetProgress(current, total int, phase string) {
	j.Progress = Progress{Current: current, Total: total, Phase: phase}
	j.UpdatedAt = time.Now()
}
