// Package board holds the platform's native board model. Boards, lists and
// cards are the targets of workspace migration; the migration engine creates
// and updates them but defines no invariants here beyond those of the model
// itself.
package board

import (
	"strings"

	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BoardType is the platform's canonical board taxonomy
type BoardType string

const (
	BoardTypeClientWork      BoardType = "client_work"
	BoardTypeContentCalendar BoardType = "content_calendar"
	BoardTypeSalesPipeline   BoardType = "sales_pipeline"
	BoardTypeHiring          BoardType = "hiring"
	BoardTypeRoadmap         BoardType = "roadmap"
	BoardTypeRetainer        BoardType = "retainer"
	BoardTypeGeneral         BoardType = "general"
)

// IsValid checks if the board type is valid
func (t BoardType) IsValid() bool {
	switch t {
	case BoardTypeClientWork, BoardTypeContentCalendar, BoardTypeSalesPipeline,
		BoardTypeHiring, BoardTypeRoadmap, BoardTypeRetainer, BoardTypeGeneral:
		return true
	}
	return false
}

// Board is a top-level workspace container of lists and cards
type Board struct {
	shared.BaseAggregateRoot
	Name        string
	Type        BoardType
	Description string
	Archived    bool
	CreatedBy   *uuid.UUID
}

// NewBoard creates a new board with the given name and type
func NewBoard(name string, boardType BoardType, createdBy uuid.UUID) (*Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_BOARD_NAME", "Board name cannot be empty")
	}
	if boardType == "" {
		boardType = BoardTypeGeneral
	}
	if !boardType.IsValid() {
		return nil, shared.NewDomainError("INVALID_BOARD_TYPE", "Unknown board type: "+string(boardType))
	}
	return &Board{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Type:              boardType,
		CreatedBy:         &createdBy,
	}, nil
}

// List is a position-ordered column of cards within a board
type List struct {
	shared.BaseEntity
	BoardID  uuid.UUID
	Name     string
	Position int
	Archived bool
}

// NewList creates a new list on the given board
func NewList(boardID uuid.UUID, name string, position int) (*List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_LIST_NAME", "List name cannot be empty")
	}
	if position < 0 {
		return nil, shared.NewDomainError("INVALID_LIST_POSITION", "List position cannot be negative")
	}
	return &List{
		BaseEntity: shared.NewBaseEntity(),
		BoardID:    boardID,
		Name:       name,
		Position:   position,
	}, nil
}
