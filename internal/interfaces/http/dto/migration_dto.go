package dto

import (
	"time"

	appmigration "github.com/agencyboard/backend/internal/application/migration"
	"github.com/agencyboard/backend/internal/domain/migration"
)

// CreateMigrationJobRequest starts a new import. Credentials are accepted
// here, stored with the job and never echoed back in any response.
type CreateMigrationJobRequest struct {
	APIKey   string   `json:"api_key" binding:"required"`
	APIToken string   `json:"api_token" binding:"required"`
	BoardIDs []string `json:"board_ids" binding:"required,min=1,dive,len=24,hexadecimal"`
}

// ListSourceBoardsRequest carries credentials for board discovery. It is a
// POST body rather than query parameters so the token cannot end up in
// access logs.
type ListSourceBoardsRequest struct {
	APIKey   string `json:"api_key" binding:"required"`
	APIToken string `json:"api_token" binding:"required"`
}

// ProgressResponse mirrors a job's progress snapshot
type ProgressResponse struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Phase   string `json:"phase,omitempty"`
}

// ReportResponse mirrors a job's import report
type ReportResponse struct {
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

// MigrationJobResponse is the API shape of a job. The job's source
// credentials are deliberately absent.
type MigrationJobResponse struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Status      string                 `json:"status"`
	BoardIDs    []string               `json:"board_ids"`
	Progress    ProgressResponse       `json:"progress"`
	Report      ReportResponse         `json:"report"`
	Error       string                 `json:"error,omitempty"`
	ParentJobID *string                `json:"parent_job_id,omitempty"`
	BoardIndex  int                    `json:"board_index"`
	StartedBy   string                 `json:"started_by"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Children    []MigrationJobResponse `json:"children,omitempty"`
}

// LaunchResponse reports how many boards were queued
type LaunchResponse struct {
	JobID         string `json:"job_id"`
	Launched      int    `json:"launched"`
	TotalChildren int    `json:"total_children"`
}

// SourceBoardResponse is one board visible to the supplied credentials
type SourceBoardResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Closed        bool   `json:"closed"`
	URL           string `json:"url,omitempty"`
	SuggestedType string `json:"suggested_type,omitempty"`
}

// ToMigrationJobResponse converts a domain job to its API shape
func ToMigrationJobResponse(job *migration.Job) MigrationJobResponse {
	resp := MigrationJobResponse{
		ID:       job.ID.String(),
		Type:     string(job.Type),
		Status:   string(job.Status),
		BoardIDs: job.Config.BoardIDs,
		Progress: ProgressResponse{
			Current: job.Progress.Current,
			Total:   job.Progress.Total,
			Phase:   job.Progress.Phase,
		},
		Report:      ToReportResponse(job.Report),
		Error:       job.Error,
		BoardIndex:  job.BoardIndex,
		StartedBy:   job.StartedBy.String(),
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.ParentJobID != nil {
		parentID := job.ParentJobID.String()
		resp.ParentJobID = &parentID
	}
	return resp
}

// ToMigrationJobDetailResponse converts a job and its children
func ToMigrationJobDetailResponse(detail *appmigration.JobDetail) MigrationJobResponse {
	resp := ToMigrationJobResponse(detail.Job)
	for _, child := range detail.Children {
		resp.Children = append(resp.Children, ToMigrationJobResponse(child))
	}
	return resp
}

// ToReportResponse converts a domain report to its API shape
func ToReportResponse(report migration.Report) ReportResponse {
	return ReportResponse{
		Boards:        report.Boards,
		Lists:         report.Lists,
		Cards:         report.Cards,
		Comments:      report.Comments,
		Attachments:   report.Attachments,
		Labels:        report.Labels,
		Checklists:    report.Checklists,
		Skipped:       report.Skipped,
		ErrorsDropped: report.ErrorsDropped,
		Errors:        report.Errors,
	}
}
