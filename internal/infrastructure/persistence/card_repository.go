package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/agencyboard/backend/internal/domain/board"
	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/agencyboard/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCardRepository implements board.CardRepository using GORM
type GormCardRepository struct {
	db *gorm.DB
}

// NewGormCardRepository creates a new GormCardRepository
func NewGormCardRepository(db *gorm.DB) *GormCardRepository {
	return &GormCardRepository{db: db}
}

// FindByID finds a card by ID
func (r *GormCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*board.Card, error) {
	var model models.CardModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByList returns the list's cards in position order
func (r *GormCardRepository) FindByList(ctx context.Context, listID uuid.UUID) ([]*board.Card, error) {
	var cardModels []models.CardModel
	if err := r.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("position ASC").
		Find(&cardModels).Error; err != nil {
		return nil, err
	}

	cards := make([]*board.Card, len(cardModels))
	for i := range cardModels {
		cards[i] = cardModels[i].ToDomain()
	}
	return cards, nil
}

// Save saves a card (create or update)
func (r *GormCardRepository) Save(ctx context.Context, c *board.Card) error {
	model := models.CardModelFromDomain(c)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveComment saves a comment (create or update)
func (r *GormCardRepository) SaveComment(ctx context.Context, c *board.Comment) error {
	model := models.CommentModelFromDomain(c)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveAttachment saves attachment metadata (create or update)
func (r *GormCardRepository) SaveAttachment(ctx context.Context, a *board.Attachment) error {
	model := models.AttachmentModelFromDomain(a)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveLabel saves a label (create or update)
func (r *GormCardRepository) SaveLabel(ctx context.Context, l *board.Label) error {
	model := models.LabelModelFromDomain(l)
	return r.db.WithContext(ctx).Save(model).Error
}

// AttachLabel links a label to a card. Duplicate links are ignored.
func (r *GormCardRepository) AttachLabel(ctx context.Context, cardID, labelID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CardLabelModel{
			CardID:    cardID,
			LabelID:   labelID,
			CreatedAt: time.Now(),
		}).Error
}

// SaveChecklist saves a checklist (create or update)
func (r *GormCardRepository) SaveChecklist(ctx context.Context, cl *board.Checklist) error {
	model := models.ChecklistModelFromDomain(cl)
	return r.db.WithContext(ctx).Save(model).Error
}

// Compile-time interface compliance check
var _ board.CardRepository = (*GormCardRepository)(nil)
