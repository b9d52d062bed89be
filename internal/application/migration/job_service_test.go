package migration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/domain/shared"
)

func newServiceHarness(t *testing.T) (*JobService, *orchHarness) {
	t.Helper()
	h := newOrchHarness(t)
	service := NewJobService(h.jobs, &fakeFactory{client: h.source}, h.orchestrator)
	return service, h
}

func TestCreateJobBuildsTree(t *testing.T) {
	service, _ := newServiceHarness(t)
	owner := uuid.New()

	detail, err := service.CreateJob(context.Background(), owner, migration.JobConfig{
		APIKey: "key", APIToken: "token", BoardIDs: []string{"brd1", "brd2", "brd3"},
	})
	require.NoError(t, err)

	assert.Equal(t, migration.JobStatusPending, detail.Job.Status)
	assert.Equal(t, owner, detail.Job.StartedBy)
	require.Len(t, detail.Children, 3)
	for n, child := range detail.Children {
		assert.Equal(t, migration.JobStatusPending, child.Status)
		assert.Equal(t, n, child.BoardIndex)
		assert.Equal(t, []string{detail.Job.Config.BoardIDs[n]}, child.Config.BoardIDs)
	}
}

func TestCreateJobRequiresCredentials(t *testing.T) {
	service, _ := newServiceHarness(t)

	_, err := service.CreateJob(context.Background(), uuid.New(), migration.JobConfig{
		BoardIDs: []string{"brd1"},
	})
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "MISSING_CREDENTIALS", domainErr.Code)
}

func TestCreateJobRequiresBoards(t *testing.T) {
	service, _ := newServiceHarness(t)

	_, err := service.CreateJob(context.Background(), uuid.New(), migration.JobConfig{
		APIKey: "key", APIToken: "token",
	})
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "MISSING_BOARDS", domainErr.Code)
}

func TestLaunchRunsCreatedJob(t *testing.T) {
	service, h := newServiceHarness(t)
	seedWorkspace(h.source, "brd1")

	detail, err := service.CreateJob(context.Background(), uuid.New(), migration.JobConfig{
		APIKey: "key", APIToken: "token", BoardIDs: []string{"brd1"},
	})
	require.NoError(t, err)

	launched, total, err := service.Launch(context.Background(), detail.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, launched)
	assert.Equal(t, 1, total)

	status := h.waitTerminal(t, detail.Job.ID)
	assert.Equal(t, migration.JobStatusCompleted, status)
}

func TestGetJobIncludesChildren(t *testing.T) {
	service, _ := newServiceHarness(t)

	created, err := service.CreateJob(context.Background(), uuid.New(), migration.JobConfig{
		APIKey: "key", APIToken: "token", BoardIDs: []string{"brd1", "brd2"},
	})
	require.NoError(t, err)

	detail, err := service.GetJob(context.Background(), created.Job.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Children, 2)

	childDetail, err := service.GetJob(context.Background(), created.Children[0].ID)
	require.NoError(t, err)
	assert.Empty(t, childDetail.Children)
}

func TestGetJobNotFound(t *testing.T) {
	service, _ := newServiceHarness(t)
	_, err := service.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListJobsReturnsParentsOnly(t *testing.T) {
	service, _ := newServiceHarness(t)
	ctx := context.Background()

	for n := 0; n < 3; n++ {
		_, err := service.CreateJob(ctx, uuid.New(), migration.JobConfig{
			APIKey: "key", APIToken: "token", BoardIDs: []string{"brd1", "brd2"},
		})
		require.NoError(t, err)
	}

	jobs, total, err := service.ListJobs(ctx, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.False(t, job.IsChild())
	}
}

func TestSubscribeUnknownJob(t *testing.T) {
	service, _ := newServiceHarness(t)
	_, _, err := service.Subscribe(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListSourceBoards(t *testing.T) {
	service, h := newServiceHarness(t)
	seedWorkspace(h.source, "brd1")

	boards, err := service.ListSourceBoards(context.Background(), "key", "token")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "brd1", boards[0].ID)

	_, err = service.ListSourceBoards(context.Background(), "", "")
	require.Error(t, err)
}
