package persistence

import (
	"context"
	"errors"

	"github.com/agencyboard/backend/internal/domain/board"
	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/agencyboard/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBoardRepository implements board.BoardRepository using GORM
type GormBoardRepository struct {
	db *gorm.DB
}

// NewGormBoardRepository creates a new GormBoardRepository
func NewGormBoardRepository(db *gorm.DB) *GormBoardRepository {
	return &GormBoardRepository{db: db}
}

// FindByID finds a board by ID
func (r *GormBoardRepository) FindByID(ctx context.Context, id uuid.UUID) (*board.Board, error) {
	var model models.BoardModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns boards with pagination, most recent first
func (r *GormBoardRepository) FindAll(ctx context.Context, page, pageSize int) ([]*board.Board, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BoardModel{})

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	query = query.Order("created_at DESC")

	var boardModels []models.BoardModel
	if err := query.Find(&boardModels).Error; err != nil {
		return nil, 0, err
	}

	boards := make([]*board.Board, len(boardModels))
	for i := range boardModels {
		boards[i] = boardModels[i].ToDomain()
	}
	return boards, totalCount, nil
}

// Save saves a board (create or update)
func (r *GormBoardRepository) Save(ctx context.Context, b *board.Board) error {
	model := models.BoardModelFromDomain(b)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindListsByBoard returns the board's lists in position order
func (r *GormBoardRepository) FindListsByBoard(ctx context.Context, boardID uuid.UUID) ([]*board.List, error) {
	var listModels []models.ListModel
	if err := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("position ASC").
		Find(&listModels).Error; err != nil {
		return nil, err
	}

	lists := make([]*board.List, len(listModels))
	for i := range listModels {
		lists[i] = listModels[i].ToDomain()
	}
	return lists, nil
}

// SaveList saves a list (create or update)
func (r *GormBoardRepository) SaveList(ctx context.Context, l *board.List) error {
	model := models.ListModelFromDomain(l)
	return r.db.WithContext(ctx).Save(model).Error
}

// Compile-time interface compliance check
var _ board.BoardRepository = (*GormBoardRepository)(nil)
