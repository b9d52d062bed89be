package migration

import "github.com/agencyboard/backend/internal/domain/shared"

// Errors surfaced by source-system clients. Handlers map these to HTTP
// statuses; the importer decides which are fatal for a board and which only
// cost a single entity.
var (
	ErrSourceUnauthorized = shared.NewDomainError("SOURCE_UNAUTHORIZED", "Source system rejected the provided credentials")
	ErrSourceNotFound     = shared.NewDomainError("SOURCE_NOT_FOUND", "Source entity does not exist or is not accessible")
	ErrSourceRateLimited  = shared.NewDomainError("SOURCE_RATE_LIMITED", "Source system rate limit exceeded")
	ErrSourceUnavailable  = shared.NewDomainError("SOURCE_UNAVAILABLE", "Source system is unavailable")
	ErrJobNotRunning      = shared.NewDomainError("JOB_NOT_RUNNING", "Job is not in a runnable state")
	ErrJobAlreadyLaunched = shared.NewDomainError("JOB_ALREADY_LAUNCHED", "Job has already been launched")
)
