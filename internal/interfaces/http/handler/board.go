package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appboard "github.com/agencyboard/backend/internal/application/board"
	"github.com/agencyboard/backend/internal/interfaces/http/dto"
)

// BoardHandler serves read access to migrated boards
type BoardHandler struct {
	BaseHandler
	service *appboard.QueryService
	logger  *zap.Logger
}

// BoardHandlerOption configures the handler
type BoardHandlerOption func(*BoardHandler)

// WithBoardLogger sets the handler's logger
func WithBoardLogger(logger *zap.Logger) BoardHandlerOption {
	return func(h *BoardHandler) { h.logger = logger }
}

// NewBoardHandler creates a new BoardHandler
func NewBoardHandler(service *appboard.QueryService, opts ...BoardHandlerOption) *BoardHandler {
	h := &BoardHandler{
		service: service,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers board routes
func (h *BoardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	boards := rg.Group("/boards")
	{
		boards.GET("", h.List)
		boards.GET("/:id", h.Get)
	}
}

// List returns a page of boards
func (h *BoardHandler) List(c *gin.Context) {
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

	boards, total, err := h.service.ListBoards(c.Request.Context(), req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.BoardResponse, 0, len(boards))
	for _, b := range boards {
		responses = append(responses, dto.ToBoardResponse(b))
	}
	h.SuccessWithMeta(c, responses, total, req.Page, req.PageSize)
}

// Get returns one board with its lists and cards
func (h *BoardHandler) Get(c *gin.Context) {
	boardID, ok := h.pathID(c, "Invalid board ID")
	if !ok {
		return
	}

	detail, err := h.service.GetBoard(c.Request.Context(), boardID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToBoardDetailResponse(detail))
}
