package board

import (
	"strings"
	"time"

	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Card is a unit of work on a list
type Card struct {
	shared.BaseEntity
	BoardID     uuid.UUID
	ListID      uuid.UUID
	Title       string
	Description string
	Position    int
	DueAt       *time.Time
	Archived    bool
}

// NewCard creates a new card on the given list
func NewCard(boardID, listID uuid.UUID, title string, position int) (*Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewDomainError("INVALID_CARD_TITLE", "Card title cannot be empty")
	}
	return &Card{
		BaseEntity: shared.NewBaseEntity(),
		BoardID:    boardID,
		ListID:     listID,
		Title:      title,
		Position:   position,
	}, nil
}

// Comment is a discussion entry on a card.
// CreatedAt may be backdated when the comment originates from an imported
// workspace whose identifiers embed the original creation time.
type Comment struct {
	shared.BaseEntity
	CardID   uuid.UUID
	AuthorID *uuid.UUID
	Body     string
}

// NewComment creates a new comment on the given card
func NewComment(cardID uuid.UUID, body string) (*Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, shared.NewDomainError("INVALID_COMMENT_BODY", "Comment body cannot be empty")
	}
	return &Comment{
		BaseEntity: shared.NewBaseEntity(),
		CardID:     cardID,
		Body:       body,
	}, nil
}

// Backdate overrides the creation timestamp with one recovered from the
// source system. No-op for zero times.
func (c *Comment) Backdate(t time.Time) {
	if t.IsZero() {
		return
	}
	c.CreatedAt = t
}

// Attachment is a file attached to a card. Bytes live in object storage
// under StorageKey; the row only carries metadata.
type Attachment struct {
	shared.BaseEntity
	CardID      uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	SourceURL   string
}

// NewAttachment creates attachment metadata for the given card
func NewAttachment(cardID uuid.UUID, fileName, storageKey string) (*Attachment, error) {
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_ATTACHMENT_NAME", "Attachment file name cannot be empty")
	}
	if storageKey == "" {
		return nil, shared.NewDomainError("INVALID_STORAGE_KEY", "Attachment storage key cannot be empty")
	}
	return &Attachment{
		BaseEntity: shared.NewBaseEntity(),
		CardID:     cardID,
		FileName:   fileName,
		StorageKey: storageKey,
	}, nil
}

// Label is a board-scoped colored tag applicable to cards
type Label struct {
	shared.BaseEntity
	BoardID uuid.UUID
	Name    string
	Color   string
}

// NewLabel creates a new label on the given board
func NewLabel(boardID uuid.UUID, name, color string) *Label {
	return &Label{
		BaseEntity: shared.NewBaseEntity(),
		BoardID:    boardID,
		Name:       name,
		Color:      color,
	}
}

// ChecklistItem is a single entry inside a checklist
type ChecklistItem struct {
	Name     string `json:"name"`
	Checked  bool   `json:"checked"`
	Position int    `json:"position"`
}

// Checklist is an ordered set of checkable items on a card
type Checklist struct {
	shared.BaseEntity
	CardID uuid.UUID
	Name   string
	Items  []ChecklistItem
}

// NewChecklist creates a new checklist on the given card
func NewChecklist(cardID uuid.UUID, name string, items []ChecklistItem) (*Checklist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_CHECKLIST_NAME", "Checklist name cannot be empty")
	}
	if items == nil {
		items = make([]ChecklistItem, 0)
	}
	return &Checklist{
		BaseEntity: shared.NewBaseEntity(),
		CardID:     cardID,
		Name:       name,
		Items:      items,
	}, nil
}
