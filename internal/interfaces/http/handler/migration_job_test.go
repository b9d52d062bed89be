package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmigration "github.com/agencyboard/backend/internal/application/migration"
	"github.com/agencyboard/backend/internal/domain/board"
	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/agencyboard/backend/internal/interfaces/http/dto"
	"github.com/agencyboard/backend/internal/interfaces/http/middleware"
)

// stubJobRepo is a minimal in-memory job repository for handler tests
type stubJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]migration.Job
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{jobs: make(map[uuid.UUID]migration.Job)}
}

func (r *stubJobRepo) FindByID(_ context.Context, id uuid.UUID) (*migration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := job
	return &copied, nil
}

func (r *stubJobRepo) FindAll(_ context.Context, page, pageSize int) ([]*migration.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var parents []*migration.Job
	for id := range r.jobs {
		job := r.jobs[id]
		if job.ParentJobID == nil {
			copied := job
			parents = append(parents, &copied)
		}
	}
	sort.Slice(parents, func(a, b int) bool {
		return parents[a].CreatedAt.After(parents[b].CreatedAt)
	})
	return parents, int64(len(parents)), nil
}

func (r *stubJobRepo) FindChildren(_ context.Context, parentID uuid.UUID) ([]*migration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var children []*migration.Job
	for id := range r.jobs {
		job := r.jobs[id]
		if job.ParentJobID != nil && *job.ParentJobID == parentID {
			copied := job
			children = append(children, &copied)
		}
	}
	sort.Slice(children, func(a, b int) bool {
		return children[a].BoardIndex < children[b].BoardIndex
	})
	return children, nil
}

func (r *stubJobRepo) FindByStatus(_ context.Context, status migration.JobStatus) ([]*migration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*migration.Job
	for id := range r.jobs {
		job := r.jobs[id]
		if job.Status == status {
			copied := job
			matched = append(matched, &copied)
		}
	}
	return matched, nil
}

func (r *stubJobRepo) CountUnfinishedChildren(_ context.Context, parentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, job := range r.jobs {
		if job.ParentJobID != nil && *job.ParentJobID == parentID && !job.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (r *stubJobRepo) Save(_ context.Context, job *migration.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

// stubSource serves a fixed board list; the import paths are not exercised
// by handler tests
type stubSource struct{}

func (stubSource) FetchBoard(context.Context, string) (*migration.SourceBoard, error) {
	return nil, migration.ErrSourceNotFound
}
func (stubSource) ListBoards(context.Context) ([]migration.SourceBoard, error) {
	return []migration.SourceBoard{{ID: "5f9a1b2c3d4e5f6a7b8c9d0e", Name: "Sales Pipeline"}}, nil
}
func (stubSource) ListLists(context.Context, string) ([]migration.SourceList, error) { return nil, nil }
func (stubSource) ListCards(context.Context, string) ([]migration.SourceCard, error) { return nil, nil }
func (stubSource) ListComments(context.Context, string) ([]migration.SourceComment, error) {
	return nil, nil
}
func (stubSource) ListAttachments(context.Context, string) ([]migration.SourceAttachment, error) {
	return nil, nil
}
func (stubSource) ListLabels(context.Context, string) ([]migration.SourceLabel, error) {
	return nil, nil
}
func (stubSource) ListChecklists(context.Context, string) ([]migration.SourceChecklist, error) {
	return nil, nil
}
func (stubSource) DownloadAttachment(context.Context, string) (io.ReadCloser, int64, error) {
	return nil, 0, migration.ErrSourceNotFound
}

type stubFactory struct{}

func (stubFactory) NewClient(_, _ string) migration.SourceClient { return stubSource{} }

// unusedBoardRepo and friends satisfy the importer's dependencies; handler
// tests never reach them
type unusedBoardRepo struct{}

func (unusedBoardRepo) FindByID(context.Context, uuid.UUID) (*board.Board, error) {
	return nil, shared.ErrNotFound
}
func (unusedBoardRepo) FindAll(context.Context, int, int) ([]*board.Board, int64, error) {
	return nil, 0, nil
}
func (unusedBoardRepo) Save(context.Context, *board.Board) error { return nil }
func (unusedBoardRepo) FindListsByBoard(context.Context, uuid.UUID) ([]*board.List, error) {
	return nil, nil
}
func (unusedBoardRepo) SaveList(context.Context, *board.List) error { return nil }

type unusedCardRepo struct{}

func (unusedCardRepo) FindByID(context.Context, uuid.UUID) (*board.Card, error) {
	return nil, shared.ErrNotFound
}
func (unusedCardRepo) FindByList(context.Context, uuid.UUID) ([]*board.Card, error) {
	return nil, nil
}
func (unusedCardRepo) Save(context.Context, *board.Card) error              { return nil }
func (unusedCardRepo) SaveComment(context.Context, *board.Comment) error    { return nil }
func (unusedCardRepo) SaveAttachment(context.Context, *board.Attachment) error {
	return nil
}
func (unusedCardRepo) SaveLabel(context.Context, *board.Label) error { return nil }
func (unusedCardRepo) AttachLabel(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}
func (unusedCardRepo) SaveChecklist(context.Context, *board.Checklist) error { return nil }

type unusedMappingRepo struct{}

func (unusedMappingRepo) Resolve(context.Context, migration.SourceEntityType, string) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (unusedMappingRepo) Record(context.Context, *migration.EntityMapping) error { return nil }
func (unusedMappingRepo) CountByJob(context.Context, uuid.UUID) (int64, error)   { return 0, nil }

type unusedStorage struct{}

func (unusedStorage) Upload(context.Context, string, io.Reader, int64, string) error { return nil }
func (unusedStorage) Delete(context.Context, string) error                           { return nil }
func (unusedStorage) Exists(context.Context, string) (bool, error)                   { return false, nil }

// testServer wires the migration API over in-memory stubs with a fixed
// authenticated user
func testServer(t *testing.T) (*gin.Engine, *stubJobRepo, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jobs := newStubJobRepo()
	importer := appmigration.NewImporter(
		stubFactory{}, jobs, unusedMappingRepo{}, unusedBoardRepo{}, unusedCardRepo{}, unusedStorage{},
	)
	hub := appmigration.NewHub()
	orchestrator := appmigration.NewOrchestrator(jobs, importer, hub)
	t.Cleanup(func() { _ = orchestrator.Shutdown(context.Background()) })
	service := appmigration.NewJobService(jobs, stubFactory{}, orchestrator)

	userID := uuid.New()
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, userID.String())
		c.Next()
	})

	api := engine.Group("/api/v1")
	NewMigrationJobHandler(service).RegisterRoutes(api)
	NewMigrationStreamHandler(service).RegisterRoutes(api)
	return engine, jobs, userID
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCreateMigrationJob(t *testing.T) {
	engine, _, userID := testServer(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations", gin.H{
		"api_key":   "key-123",
		"api_token": "token-456",
		"board_ids": []string{"5f9a1b2c3d4e5f6a7b8c9d0e", "6a0b1c2d3e4f5a6b7c8d9e0f"},
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool                     `json:"success"`
		Data    dto.MigrationJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "pending", resp.Data.Status)
	assert.Equal(t, userID.String(), resp.Data.StartedBy)
	assert.Len(t, resp.Data.Children, 2)

	// the job config holds credentials; the response must not
	body := w.Body.String()
	assert.NotContains(t, body, "key-123")
	assert.NotContains(t, body, "token-456")
}

func TestCreateMigrationJobValidation(t *testing.T) {
	engine, _, _ := testServer(t)

	t.Run("missing credentials", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations", gin.H{
			"board_ids": []string{"5f9a1b2c3d4e5f6a7b8c9d0e"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed board id", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations", gin.H{
			"api_key":   "key",
			"api_token": "token",
			"board_ids": []string{"not-a-board-id"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty board list", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations", gin.H{
			"api_key":   "key",
			"api_token": "token",
			"board_ids": []string{},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetMigrationJobNotFound(t *testing.T) {
	engine, _, _ := testServer(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/migrations/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeNotFound)
}

func TestGetMigrationJobInvalidID(t *testing.T) {
	engine, _, _ := testServer(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/migrations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLaunchRunningJobStartsZero(t *testing.T) {
	engine, jobs, _ := testServer(t)

	parent, err := migration.NewParentJob(uuid.New(), migration.JobConfig{
		APIKey: "key", APIToken: "token", BoardIDs: []string{"5f9a1b2c3d4e5f6a7b8c9d0e"},
	})
	require.NoError(t, err)
	require.NoError(t, parent.Start())
	require.NoError(t, jobs.Save(context.Background(), parent))

	w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations/"+parent.ID.String()+"/launch", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data dto.LaunchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.Launched)
}

func TestLaunchFinishedJobConflict(t *testing.T) {
	engine, jobs, _ := testServer(t)

	parent, err := migration.NewParentJob(uuid.New(), migration.JobConfig{
		APIKey: "key", APIToken: "token", BoardIDs: []string{"5f9a1b2c3d4e5f6a7b8c9d0e"},
	})
	require.NoError(t, err)
	require.NoError(t, parent.Start())
	require.NoError(t, parent.Complete())
	require.NoError(t, jobs.Save(context.Background(), parent))

	w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations/"+parent.ID.String()+"/launch", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeJobAlreadyLaunched)
}

func TestCancelTerminalJob(t *testing.T) {
	engine, jobs, _ := testServer(t)

	parent, err := migration.NewParentJob(uuid.New(), migration.JobConfig{
		APIKey: "key", APIToken: "token", BoardIDs: []string{"5f9a1b2c3d4e5f6a7b8c9d0e"},
	})
	require.NoError(t, err)
	require.NoError(t, parent.Start())
	require.NoError(t, parent.Complete())
	require.NoError(t, jobs.Save(context.Background(), parent))

	w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations/"+parent.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeJobNotRunning)
}

func TestListSourceBoardsEndpoint(t *testing.T) {
	engine, _, _ := testServer(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations/source-boards", gin.H{
		"api_key":   "key",
		"api_token": "token",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []dto.SourceBoardResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Sales Pipeline", resp.Data[0].Name)
	assert.Equal(t, "sales_pipeline", resp.Data[0].SuggestedType)
}

func TestListMigrationJobs(t *testing.T) {
	engine, _, _ := testServer(t)

	for n := 0; n < 2; n++ {
		w := doJSON(t, engine, http.MethodPost, "/api/v1/migrations", gin.H{
			"api_key":   "key",
			"api_token": "token",
			"board_ids": []string{"5f9a1b2c3d4e5f6a7b8c9d0e"},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, engine, http.MethodGet, "/api/v1/migrations?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []dto.MigrationJobResponse `json:"data"`
		Meta *dto.Meta                  `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	require.NotNil(t, resp.Meta)
	assert.EqualValues(t, 2, resp.Meta.Total)
	for _, job := range resp.Data {
		assert.True(t, strings.HasPrefix(job.Type, "trello"))
	}
}
