// Package board exposes read access to migrated boards. Writes go through
// the importer only; the HTTP surface never mutates boards directly.
package board

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencyboard/backend/internal/domain/board"
)

// QueryService answers board read requests
type QueryService struct {
	boards board.BoardRepository
	cards  board.CardRepository
	logger *zap.Logger
}

// QueryServiceOption configures a QueryService
type QueryServiceOption func(*QueryService)

// WithQueryServiceLogger sets the service's logger
func WithQueryServiceLogger(logger *zap.Logger) QueryServiceOption {
	return func(s *QueryService) { s.logger = logger }
}

// NewQueryService creates a QueryService
func NewQueryService(boards board.BoardRepository, cards board.CardRepository, opts ...QueryServiceOption) *QueryService {
	s := &QueryService{
		boards: boards,
		cards:  cards,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListDetail pairs a list with its cards in position order
type ListDetail struct {
	List  *board.List
	Cards []*board.Card
}

// BoardDetail is a board with its lists and their cards
type BoardDetail struct {
	Board *board.Board
	Lists []ListDetail
}

// ListBoards returns a page of boards, newest first
func (s *QueryService) ListBoards(ctx context.Context, page, pageSize int) ([]*board.Board, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.boards.FindAll(ctx, page, pageSize)
}

// GetBoard loads one board with its lists and cards
func (s *QueryService) GetBoard(ctx context.Context, boardID uuid.UUID) (*BoardDetail, error) {
	b, err := s.boards.FindByID(ctx, boardID)
	if err != nil {
		return nil, err
	}

	lists, err := s.boards.FindListsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	detail := &BoardDetail{Board: b, Lists: make([]ListDetail, 0, len(lists))}
	for _, l := range lists {
		cards, err := s.cards.FindByList(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		detail.Lists = append(detail.Lists, ListDetail{List: l, Cards: cards})
	}
	return detail, nil
}
