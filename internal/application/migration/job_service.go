package migration

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/domain/shared"
)

// JobService is the use-case layer for migration jobs: creating job trees,
// launching them, inspecting progress and cancelling them
type JobService struct {
	jobs         migration.JobRepository
	sources      migration.SourceClientFactory
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// JobServiceOption configures a JobService
type JobServiceOption func(*JobService)

// WithJobServiceLogger sets the service's logger
func WithJobServiceLogger(logger *zap.Logger) JobServiceOption {
	return func(s *JobService) { s.logger = logger }
}

// NewJobService creates a JobService
func NewJobService(
	jobs migration.JobRepository,
	sources migration.SourceClientFactory,
	orchestrator *Orchestrator,
	opts ...JobServiceOption,
) *JobService {
	s := &JobService{
		jobs:         jobs,
		sources:      sources,
		orchestrator: orchestrator,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// JobDetail pairs a parent job with its per-board children
type JobDetail struct {
	Job      *migration.Job
	Children []*migration.Job
}

// CreateJob validates the request and persists a pending parent job plus one
// pending child per requested board. Nothing is imported until Launch.
func (s *JobService) CreateJob(ctx context.Context, startedBy uuid.UUID, cfg migration.JobConfig) (*JobDetail, error) {
	parent, err := migration.NewParentJob(startedBy, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Save(ctx, parent); err != nil {
		return nil, err
	}

	children := make([]*migration.Job, 0, len(cfg.BoardIDs))
	for n, boardID := range cfg.BoardIDs {
		child, err := migration.NewChildJob(parent, boardID, n)
		if err != nil {
			return nil, err
		}
		if err := s.jobs.Save(ctx, child); err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	s.logger.Info("migration job created",
		zap.String("job_id", parent.ID.String()),
		zap.String("started_by", startedBy.String()),
		zap.Int("boards", len(children)),
	)
	return &JobDetail{Job: parent, Children: children}, nil
}

// Launch hands a pending parent job to the orchestrator. It returns how
// many boards were queued for import and the total child count.
func (s *JobService) Launch(ctx context.Context, jobID uuid.UUID) (int, int, error) {
	launched, total, err := s.orchestrator.Launch(ctx, jobID)
	if err != nil {
		return 0, 0, err
	}
	s.logger.Info("migration job launched",
		zap.String("job_id", jobID.String()),
		zap.Int("launched", launched),
		zap.Int("total", total),
	)
	return launched, total, nil
}

// GetJob loads a job; for parents the per-board children come along
func (s *JobService) GetJob(ctx context.Context, jobID uuid.UUID) (*JobDetail, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	detail := &JobDetail{Job: job}
	if !job.IsChild() {
		children, err := s.jobs.FindChildren(ctx, jobID)
		if err != nil {
			return nil, err
		}
		detail.Children = children
	}
	return detail, nil
}

// ListJobs returns a page of parent jobs, newest first
func (s *JobService) ListJobs(ctx context.Context, page, pageSize int) ([]*migration.Job, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.jobs.FindAll(ctx, page, pageSize)
}

// CancelJob requests cooperative cancellation of a job tree
func (s *JobService) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	if err := s.orchestrator.Cancel(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("migration job cancelled", zap.String("job_id", jobID.String()))
	return nil
}

// Subscribe attaches a listener to a job's progress events
func (s *JobService) Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan Event, func(), error) {
	if _, err := s.jobs.FindByID(ctx, jobID); err != nil {
		return nil, nil, err
	}
	events, cancel := s.orchestrator.Subscribe(jobID)
	return events, cancel, nil
}

// ListSourceBoards lists the boards the supplied credentials can see, so a
// caller can pick which ones to migrate. The credentials are used for this
// one call and are not persisted.
func (s *JobService) ListSourceBoards(ctx context.Context, apiKey, apiToken string) ([]migration.SourceBoard, error) {
	if apiKey == "" || apiToken == "" {
		return nil, shared.NewDomainError("MISSING_CREDENTIALS", "Source API key and token are required")
	}
	client := s.sources.NewClient(apiKey, apiToken)
	return client.ListBoards(ctx)
}
