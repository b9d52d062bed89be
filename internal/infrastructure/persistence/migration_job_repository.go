package persistence

import (
	"context"
	"errors"

	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/agencyboard/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormJobRepository implements migration.JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// FindByID finds a migration job by ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*migration.Job, error) {
	var model models.MigrationJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns top-level jobs (parents and standalone) with pagination,
// most recent first
func (r *GormJobRepository) FindAll(ctx context.Context, page, pageSize int) ([]*migration.Job, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MigrationJobModel{}).
		Where("parent_job_id IS NULL")

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	query = query.Order("created_at DESC")

	var jobModels []models.MigrationJobModel
	if err := query.Find(&jobModels).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]*migration.Job, len(jobModels))
	for i := range jobModels {
		jobs[i] = jobModels[i].ToDomain()
	}
	return jobs, totalCount, nil
}

// FindChildren returns a parent's child jobs in board order
func (r *GormJobRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]*migration.Job, error) {
	var jobModels []models.MigrationJobModel
	if err := r.db.WithContext(ctx).
		Where("parent_job_id = ?", parentID).
		Order("board_index ASC").
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]*migration.Job, len(jobModels))
	for i := range jobModels {
		jobs[i] = jobModels[i].ToDomain()
	}
	return jobs, nil
}

// FindByStatus returns all jobs in the given status, oldest first
func (r *GormJobRepository) FindByStatus(ctx context.Context, status migration.JobStatus) ([]*migration.Job, error) {
	var jobModels []models.MigrationJobModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]*migration.Job, len(jobModels))
	for i := range jobModels {
		jobs[i] = jobModels[i].ToDomain()
	}
	return jobs, nil
}

// CountUnfinishedChildren counts a parent's children still in a non-terminal state
func (r *GormJobRepository) CountUnfinishedChildren(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MigrationJobModel{}).
		Where("parent_job_id = ? AND status NOT IN ?", parentID,
			[]migration.JobStatus{migration.JobStatusCompleted, migration.JobStatusFailed, migration.JobStatusCancelled}).
		Count(&count).Error
	return count, err
}

// Save saves a migration job (create or update)
func (r *GormJobRepository) Save(ctx context.Context, job *migration.Job) error {
	model := models.MigrationJobModelFromDomain(job)
	return r.db.WithContext(ctx).Save(model).Error
}

// Compile-time interface compliance check
var _ migration.JobRepository = (*GormJobRepository)(nil)
