package models

import (
	"encoding/json"
	"time"

	"github.com/agencyboard/backend/internal/domain/board"
	"github.com/google/uuid"
)

// BoardModel is the persistence model for the Board aggregate
type BoardModel struct {
	AggregateModel
	Name        string          `gorm:"type:varchar(255);not null"`
	Type        board.BoardType `gorm:"type:varchar(30);not null;default:'general'"`
	Description string          `gorm:"type:text"`
	Archived    bool            `gorm:"not null;default:false"`
	CreatedBy   *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (BoardModel) TableName() string {
	return "boards"
}

// ToDomain converts the persistence model to a domain Board
func (m *BoardModel) ToDomain() *board.Board {
	return &board.Board{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		Type:              m.Type,
		Description:       m.Description,
		Archived:          m.Archived,
		CreatedBy:         m.CreatedBy,
	}
}

// BoardModelFromDomain creates a persistence model from a domain Board
func BoardModelFromDomain(b *board.Board) *BoardModel {
	m := &BoardModel{
		Name:        b.Name,
		Type:        b.Type,
		Description: b.Description,
		Archived:    b.Archived,
		CreatedBy:   b.CreatedBy,
	}
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	return m
}

// ListModel is the persistence model for a board list
type ListModel struct {
	BaseModel
	BoardID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(255);not null"`
	Position int       `gorm:"not null;default:0"`
	Archived bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ListModel) TableName() string {
	return "lists"
}

// ToDomain converts the persistence model to a domain List
func (m *ListModel) ToDomain() *board.List {
	return &board.List{
		BaseEntity: m.BaseModel.ToDomain(),
		BoardID:    m.BoardID,
		Name:       m.Name,
		Position:   m.Position,
		Archived:   m.Archived,
	}
}

// ListModelFromDomain creates a persistence model from a domain List
func ListModelFromDomain(l *board.List) *ListModel {
	m := &ListModel{
		BoardID:  l.BoardID,
		Name:     l.Name,
		Position: l.Position,
		Archived: l.Archived,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// CardModel is the persistence model for a card
type CardModel struct {
	BaseModel
	BoardID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	ListID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Title       string     `gorm:"type:varchar(512);not null"`
	Description string     `gorm:"type:text"`
	Position    int        `gorm:"not null;default:0"`
	DueAt       *time.Time `gorm:"type:timestamptz"`
	Archived    bool       `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (CardModel) TableName() string {
	return "cards"
}

// ToDomain converts the persistence model to a domain Card
func (m *CardModel) ToDomain() *board.Card {
	return &board.Card{
		BaseEntity:  m.BaseModel.ToDomain(),
		BoardID:     m.BoardID,
		ListID:      m.ListID,
		Title:       m.Title,
		Description: m.Description,
		Position:    m.Position,
		DueAt:       m.DueAt,
		Archived:    m.Archived,
	}
}

// CardModelFromDomain creates a persistence model from a domain Card
func CardModelFromDomain(c *board.Card) *CardModel {
	m := &CardModel{
		BoardID:     c.BoardID,
		ListID:      c.ListID,
		Title:       c.Title,
		Description: c.Description,
		Position:    c.Position,
		DueAt:       c.DueAt,
		Archived:    c.Archived,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// CommentModel is the persistence model for a card comment
type CommentModel struct {
	BaseModel
	CardID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	AuthorID *uuid.UUID `gorm:"type:uuid;index"`
	Body     string     `gorm:"type:text;not null"`
}

// TableName returns the table name for GORM
func (CommentModel) TableName() string {
	return "comments"
}

// ToDomain converts the persistence model to a domain Comment
func (m *CommentModel) ToDomain() *board.Comment {
	return &board.Comment{
		BaseEntity: m.BaseModel.ToDomain(),
		CardID:     m.CardID,
		AuthorID:   m.AuthorID,
		Body:       m.Body,
	}
}

// CommentModelFromDomain creates a persistence model from a domain Comment
func CommentModelFromDomain(c *board.Comment) *CommentModel {
	m := &CommentModel{
		CardID:   c.CardID,
		AuthorID: c.AuthorID,
		Body:     c.Body,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// AttachmentModel is the persistence model for attachment metadata
type AttachmentModel struct {
	BaseModel
	CardID      uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName    string    `gorm:"type:varchar(512);not null"`
	ContentType string    `gorm:"type:varchar(255)"`
	SizeBytes   int64     `gorm:"not null;default:0"`
	StorageKey  string    `gorm:"type:varchar(1024);not null"`
	SourceURL   string    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AttachmentModel) TableName() string {
	return "attachments"
}

// ToDomain converts the persistence model to a domain Attachment
func (m *AttachmentModel) ToDomain() *board.Attachment {
	return &board.Attachment{
		BaseEntity:  m.BaseModel.ToDomain(),
		CardID:      m.CardID,
		FileName:    m.FileName,
		ContentType: m.ContentType,
		SizeBytes:   m.SizeBytes,
		StorageKey:  m.StorageKey,
		SourceURL:   m.SourceURL,
	}
}

// AttachmentModelFromDomain creates a persistence model from a domain Attachment
func AttachmentModelFromDomain(a *board.Attachment) *AttachmentModel {
	m := &AttachmentModel{
		CardID:      a.CardID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		StorageKey:  a.StorageKey,
		SourceURL:   a.SourceURL,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}

// LabelModel is the persistence model for a board label
type LabelModel struct {
	BaseModel
	BoardID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name    string    `gorm:"type:varchar(255)"`
	Color   string    `gorm:"type:varchar(30)"`
}

// TableName returns the table name for GORM
func (LabelModel) TableName() string {
	return "labels"
}

// ToDomain converts the persistence model to a domain Label
func (m *LabelModel) ToDomain() *board.Label {
	return &board.Label{
		BaseEntity: m.BaseModel.ToDomain(),
		BoardID:    m.BoardID,
		Name:       m.Name,
		Color:      m.Color,
	}
}

// LabelModelFromDomain creates a persistence model from a domain Label
func LabelModelFromDomain(l *board.Label) *LabelModel {
	m := &LabelModel{
		BoardID: l.BoardID,
		Name:    l.Name,
		Color:   l.Color,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// CardLabelModel joins cards to labels
type CardLabelModel struct {
	CardID    uuid.UUID `gorm:"type:uuid;primary_key"`
	LabelID   uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CardLabelModel) TableName() string {
	return "card_labels"
}

// ChecklistModel is the persistence model for a card checklist.
// Items are stored as a JSONB array.
type ChecklistModel struct {
	BaseModel
	CardID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name   string    `gorm:"type:varchar(255);not null"`
	Items  string    `gorm:"type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (ChecklistModel) TableName() string {
	return "checklists"
}

// ToDomain converts the persistence model to a domain Checklist
func (m *ChecklistModel) ToDomain() *board.Checklist {
	cl := &board.Checklist{
		BaseEntity: m.BaseModel.ToDomain(),
		CardID:     m.CardID,
		Name:       m.Name,
		Items:      []board.ChecklistItem{},
	}
	if m.Items != "" {
		_ = json.Unmarshal([]byte(m.Items), &cl.Items)
	}
	return cl
}

// ChecklistModelFromDomain creates a persistence model from a domain Checklist
func ChecklistModelFromDomain(cl *board.Checklist) *ChecklistModel {
	items, err := json.Marshal(cl.Items)
	if err != nil {
		items = []byte("[]")
	}
	m := &ChecklistModel{
		CardID: cl.CardID,
		Name:   cl.Name,
		Items:  string(items),
	}
	m.FromDomainBaseEntity(cl.BaseEntity)
	return m
}
