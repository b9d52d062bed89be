// Package handler contains the gin HTTP handlers for the migration API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appmigration "github.com/agencyboard/backend/internal/application/migration"
	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/interfaces/http/dto"
)

// MigrationJobHandler handles migration job API endpoints
type MigrationJobHandler struct {
	BaseHandler
	service *appmigration.JobService
	logger  *zap.Logger
}

// MigrationJobHandlerOption configures the handler
type MigrationJobHandlerOption func(*MigrationJobHandler)

// WithMigrationJobLogger sets the handler's logger
func WithMigrationJobLogger(logger *zap.Logger) MigrationJobHandlerOption {
	return func(h *MigrationJobHandler) { h.logger = logger }
}

// NewMigrationJobHandler creates a new MigrationJobHandler
func NewMigrationJobHandler(service *appmigration.JobService, opts ...MigrationJobHandlerOption) *MigrationJobHandler {
	h := &MigrationJobHandler{
		service: service,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers migration job routes
func (h *MigrationJobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	migrations := rg.Group("/migrations")
	{
		migrations.POST("", h.Create)
		migrations.GET("", h.List)
		migrations.GET("/:id", h.Get)
		migrations.POST("/:id/launch", h.Launch)
		migrations.POST("/:id/cancel", h.Cancel)
		migrations.POST("/source-boards", h.ListSourceBoards)
	}
}

// Create registers a new migration job tree in the pending state
func (h *MigrationJobHandler) Create(c *gin.Context) {
	var req dto.CreateMigrationJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	detail, err := h.service.CreateJob(c.Request.Context(), userID, migration.JobConfig{
		APIKey:   req.APIKey,
		APIToken: req.APIToken,
		BoardIDs: req.BoardIDs,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.ToMigrationJobDetailResponse(detail))
}

// Launch hands a pending job to the background importer
func (h *MigrationJobHandler) Launch(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	launched, total, err := h.service.Launch(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, dto.LaunchResponse{JobID: jobID.String(), Launched: launched, TotalChildren: total})
}

// List returns a page of migration jobs
func (h *MigrationJobHandler) List(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	jobs, total, err := h.service.ListJobs(c.Request.Context(), req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.MigrationJobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, dto.ToMigrationJobResponse(job))
	}
	h.SuccessWithMeta(c, responses, total, req.Page, req.PageSize)
}

// Get returns one job with its per-board children
func (h *MigrationJobHandler) Get(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	detail, err := h.service.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToMigrationJobDetailResponse(detail))
}

// Cancel requests cooperative cancellation of a job tree
func (h *MigrationJobHandler) Cancel(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	if err := h.service.CancelJob(c.Request.Context(), jobID); err != nil {
		h.HandleError(c, err)
		return
	}

	detail, err := h.service.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToMigrationJobDetailResponse(detail))
}

// ListSourceBoards lists the boards the supplied credentials can access,
// annotated with the board type the importer would assign
func (h *MigrationJobHandler) ListSourceBoards(c *gin.Context) {
	var req dto.ListSourceBoardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}

	boards, err := h.service.ListSourceBoards(c.Request.Context(), req.APIKey, req.APIToken)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.SourceBoardResponse, 0, len(boards))
	for _, b := range boards {
		suggested, _ := migration.SuggestBoardType(b.Name)
		responses = append(responses, dto.SourceBoardResponse{
			ID:            b.ID,
			Name:          b.Name,
			Description:   b.Description,
			Closed:        b.Closed,
			URL:           b.URL,
			SuggestedType: string(suggested),
		})
	}
	h.Success(c, responses)
}
