package models

import (
	"encoding/json"
	"time"

	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/google/uuid"
)

// MigrationJobModel is the persistence model for the migration Job aggregate.
// Config, progress and report are stored as JSONB documents.
type MigrationJobModel struct {
	AggregateModel
	Type        migration.JobType   `gorm:"type:varchar(40);not null"`
	Status      migration.JobStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	Config      string              `gorm:"type:jsonb;not null;default:'{}'"`
	Progress    string              `gorm:"type:jsonb;not null;default:'{}'"`
	Report      string              `gorm:"type:jsonb;not null;default:'{}'"`
	Error       string              `gorm:"type:text"`
	ParentJobID *uuid.UUID          `gorm:"type:uuid;index"`
	BoardIndex  int                 `gorm:"not null;default:0"`
	StartedBy   uuid.UUID           `gorm:"type:uuid;not null;index"`
	StartedAt   *time.Time          `gorm:"type:timestamptz"`
	CompletedAt *time.Time          `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (MigrationJobModel) TableName() string {
	return "migration_jobs"
}

// ToDomain converts the persistence model to a domain Job
func (m *MigrationJobModel) ToDomain() *migration.Job {
	job := &migration.Job{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Type:              m.Type,
		Status:            m.Status,
		Error:             m.Error,
		ParentJobID:       m.ParentJobID,
		BoardIndex:        m.BoardIndex,
		StartedBy:         m.StartedBy,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
	}
	if m.Config != "" {
		_ = json.Unmarshal([]byte(m.Config), &job.Config)
	}
	if m.Progress != "" {
		_ = json.Unmarshal([]byte(m.Progress), &job.Progress)
	}
	if m.Report != "" {
		_ = json.Unmarshal([]byte(m.Report), &job.Report)
	}
	return job
}

// FromDomain populates the persistence model from a domain Job
func (m *MigrationJobModel) FromDomain(j *migration.Job) {
	m.FromDomainAggregateRoot(j.BaseAggregateRoot)
	m.Type = j.Type
	m.Status = j.Status
	m.Error = j.Error
	m.ParentJobID = j.ParentJobID
	m.BoardIndex = j.BoardIndex
	m.StartedBy = j.StartedBy
	m.StartedAt = j.StartedAt
	m.CompletedAt = j.CompletedAt
	m.Config = marshalOrEmpty(j.Config)
	m.Progress = marshalOrEmpty(j.Progress)
	m.Report = marshalOrEmpty(j.Report)
}

// MigrationJobModelFromDomain creates a new persistence model from a domain Job
func MigrationJobModelFromDomain(j *migration.Job) *MigrationJobModel {
	m := &MigrationJobModel{}
	m.FromDomain(j)
	return m
}

func marshalOrEmpty(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// EntityMappingModel is the persistence model for the idempotency ledger.
// The composite unique index enforces first-writer-wins for each source entity.
type EntityMappingModel struct {
	ID         uuid.UUID                  `gorm:"type:uuid;primary_key"`
	SourceType migration.SourceEntityType `gorm:"type:varchar(20);not null;uniqueIndex:idx_entity_mappings_source"`
	SourceID   string                     `gorm:"type:varchar(64);not null;uniqueIndex:idx_entity_mappings_source"`
	TargetID   uuid.UUID                  `gorm:"type:uuid;not null;index"`
	JobID      uuid.UUID                  `gorm:"type:uuid;not null;index"`
	CreatedAt  time.Time                  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntityMappingModel) TableName() string {
	return "entity_mappings"
}

// ToDomain converts the persistence model to a domain EntityMapping
func (m *EntityMappingModel) ToDomain() *migration.EntityMapping {
	return &migration.EntityMapping{
		ID:         m.ID,
		SourceType: m.SourceType,
		SourceID:   m.SourceID,
		TargetID:   m.TargetID,
		JobID:      m.JobID,
		CreatedAt:  m.CreatedAt,
	}
}

// EntityMappingModelFromDomain creates a persistence model from a domain EntityMapping
func EntityMappingModelFromDomain(e *migration.EntityMapping) *EntityMappingModel {
	return &EntityMappingModel{
		ID:         e.ID,
		SourceType: e.SourceType,
		SourceID:   e.SourceID,
		TargetID:   e.TargetID,
		JobID:      e.JobID,
		CreatedAt:  e.CreatedAt,
	}
}
