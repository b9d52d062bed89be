package persistence

import (
	"context"
	"errors"

	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormEntityMappingRepository implements migration.EntityMappingRepository using GORM
type GormEntityMappingRepository struct {
	db *gorm.DB
}

// NewGormEntityMappingRepository creates a new GormEntityMappingRepository
func NewGormEntityMappingRepository(db *gorm.DB) *GormEntityMappingRepository {
	return &GormEntityMappingRepository{db: db}
}

// Resolve returns the platform ID recorded for the source entity, or uuid.Nil
// when no mapping exists
func (r *GormEntityMappingRepository) Resolve(ctx context.Context, sourceType migration.SourceEntityType, sourceID string) (uuid.UUID, error) {
	var model models.EntityMappingModel
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return model.TargetID, nil
}

// Record inserts a mapping. Conflicts on the (source_type, source_id) unique
// index are ignored so concurrent importers race safely: first writer wins.
func (r *GormEntityMappingRepository) Record(ctx context.Context, m *migration.EntityMapping) error {
	model := models.EntityMappingModelFromDomain(m)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).
		Create(model).Error
}

// CountByJob reports how many mappings a job has recorded
func (r *GormEntityMappingRepository) CountByJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EntityMappingModel{}).
		Where("job_id = ?", jobID).
		Count(&count).Error
	return count, err
}

// Compile-time interface compliance check
var _ migration.EntityMappingRepository = (*GormEntityMappingRepository)(nil)
