package board

import (
	"context"

	"github.com/google/uuid"
)

// BoardRepository persists boards and their lists
type BoardRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Board, error)
	FindAll(ctx context.Context, page, pageSize int) ([]*Board, int64, error)
	Save(ctx context.Context, b *Board) error

	FindListsByBoard(ctx context.Context, boardID uuid.UUID) ([]*List, error)
	SaveList(ctx context.Context, l *List) error
}

// CardRepository persists cards and their child entities
type CardRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Card, error)
	FindByList(ctx context.Context, listID uuid.UUID) ([]*Card, error)
	Save(ctx context.Context, c *Card) error

	SaveComment(ctx context.Context, c *Comment) error
	SaveAttachment(ctx context.Context, a *Attachment) error
	SaveLabel(ctx context.Context, l *Label) error
	AttachLabel(ctx context.Context, cardID, labelID uuid.UUID) error
	SaveChecklist(ctx context.Context, cl *Checklist) error
}
