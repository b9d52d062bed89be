package migration

import (
	"time"

	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SourceEntityType classifies entries in the mapping ledger
type SourceEntityType string

const (
	SourceEntityBoard      SourceEntityType = "board"
	SourceEntityList       SourceEntityType = "list"
	SourceEntityCard       SourceEntityType = "card"
	SourceEntityComment    SourceEntityType = "comment"
	SourceEntityAttachment SourceEntityType = "attachment"
	SourceEntityLabel      SourceEntityType = "label"
	SourceEntityChecklist  SourceEntityType = "checklist"
)

// IsValid checks if the entity type is valid
func (t SourceEntityType) IsValid() bool {
	switch t {
	case SourceEntityBoard, SourceEntityList, SourceEntityCard,
		SourceEntityComment, SourceEntityAttachment, SourceEntityLabel,
		SourceEntityChecklist:
		return true
	}
	return false
}

// EntityMapping is one ledger entry linking a source-system identifier to the
// platform entity created from it. The (SourceType, SourceID) pair is unique
// across all jobs, which is what makes re-running an import idempotent.
type EntityMapping struct {
	ID         uuid.UUID
	SourceType SourceEntityType
	SourceID   string
	TargetID   uuid.UUID
	JobID      uuid.UUID
	CreatedAt  time.Time
}

// NewEntityMapping creates a ledger entry for a newly imported entity
func NewEntityMapping(sourceType SourceEntityType, sourceID string, targetID, jobID uuid.UUID) (*EntityMapping, error) {
	if !sourceType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_TYPE", "Unknown source entity type: "+string(sourceType))
	}
	if sourceID == "" {
		return nil, shared.NewDomainError("INVALID_SOURCE_ID", "Source ID cannot be empty")
	}
	return &EntityMapping{
		ID:         uuid.New(),
		SourceType: sourceType,
		SourceID:   sourceID,
		TargetID:   targetID,
		JobID:      jobID,
		CreatedAt:  time.Now(),
	}, nil
}
