package dto

import (
	"time"

	appboard "github.com/agencyboard/backend/internal/application/board"
	"github.com/agencyboard/backend/internal/domain/board"
)

// BoardResponse is the API shape of a board
type BoardResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Archived    bool           `json:"archived"`
	CreatedBy   *string        `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Lists       []ListResponse `json:"lists,omitempty"`
}

// ListResponse is one list on a board with its cards in position order
type ListResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Position int            `json:"position"`
	Archived bool           `json:"archived"`
	Cards    []CardResponse `json:"cards"`
}

// CardResponse is the API shape of a card
type CardResponse struct {
	ID          string     `json:"id"`
	ListID      string     `json:"list_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position    int        `json:"position"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToBoardResponse converts a domain board to its API shape
func ToBoardResponse(b *board.Board) BoardResponse {
	resp := BoardResponse{
		ID:          b.ID.String(),
		Name:        b.Name,
		Type:        string(b.Type),
		Description: b.Description,
		Archived:    b.Archived,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if b.CreatedBy != nil {
		createdBy := b.CreatedBy.String()
		resp.CreatedBy = &createdBy
	}
	return resp
}

// ToBoardDetailResponse converts a board with its lists and cards
func ToBoardDetailResponse(detail *appboard.BoardDetail) BoardResponse {
	resp := ToBoardResponse(detail.Board)
	resp.Lists = make([]ListResponse, 0, len(detail.Lists))
	for _, l := range detail.Lists {
		listResp := ListResponse{
			ID:       l.List.ID.String(),
			Name:     l.List.Name,
			Position: l.List.Position,
			Archived: l.List.Archived,
			Cards:    make([]CardResponse, 0, len(l.Cards)),
		}
		for _, c := range l.Cards {
			listResp.Cards = append(listResp.Cards, CardResponse{
				ID:          c.ID.String(),
				ListID:      c.ListID.String(),
				Title:       c.Title,
				Description: c.Description,
				Position:    c.Position,
				DueAt:       c.DueAt,
				Archived:    c.Archived,
				CreatedAt:   c.CreatedAt,
			})
		}
		resp.Lists = append(resp.Lists, listResp)
	}
	return resp
}
