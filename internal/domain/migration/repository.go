package migration

import (
	"context"

	"github.com/google/uuid"
)

// JobRepository persists migration jobs
type JobRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	FindAll(ctx context.Context, page, pageSize int) ([]*Job, int64, error)
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]*Job, error)

	// FindByStatus returns every job in the given status, parents and
	// children alike. Startup recovery uses it to find work a previous
	// process left running.
	FindByStatus(ctx context.Context, status JobStatus) ([]*Job, error)

	// CountUnfinishedChildren returns how many of the parent's children are
	// still in a non-terminal state. The orchestrator finalizes the parent
	// when this reaches zero.
	CountUnfinishedChildren(ctx context.Context, parentID uuid.UUID) (int64, error)

	Save(ctx context.Context, job *Job) error
}

// EntityMappingRepository persists the idempotency ledger
type EntityMappingRepository interface {
	// Resolve returns the platform ID previously recorded for the source
	// entity, or (uuid.Nil, nil) when no mapping exists.
	Resolve(ctx context.Context, sourceType SourceEntityType, sourceID string) (uuid.UUID, error)

	// Record inserts a mapping. A concurrent insert for the same
	// (sourceType, sourceID) pair is not an error; the first writer wins
	// and callers should Resolve afterwards if they need the winner.
	Record(ctx context.Context, m *EntityMapping) error

	// CountByJob reports how many mappings a job has recorded
	CountByJob(ctx context.Context, jobID uuid.UUID) (int64, error)
}
