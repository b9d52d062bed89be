package migration

import (
	"context"
	"io"
	"time"
)

// SourceBoard is a board as reported by the source system
type SourceBoard struct {
	ID          string
	Name        string
	Description string
	Closed      bool
	URL         string
}

// SourceList is a list (column) on a source board
type SourceList struct {
	ID       string
	BoardID  string
	Name     string
	Position float64
	Closed   bool
}

// SourceCard is a card on a source board
type SourceCard struct {
	ID          string
	BoardID     string
	ListID      string
	Name        string
	Description string
	Position    float64
	Due         *time.Time
	Closed      bool
	LabelIDs    []string
}

// SourceComment is a comment on a source card
type SourceComment struct {
	ID       string
	CardID   string
	Text     string
	AuthorID string
	Date     time.Time
}

// SourceAttachment is an attachment on a source card. URL requires the same
// credentials as the listing call to download.
type SourceAttachment struct {
	ID       string
	CardID   string
	Name     string
	URL      string
	MimeType string
	Bytes    int64
}

// SourceLabel is a board-scoped label in the source system
type SourceLabel struct {
	ID      string
	BoardID string
	Name    string
	Color   string
}

// SourceChecklistItem is one entry on a source checklist
type SourceChecklistItem struct {
	ID       string
	Name     string
	Checked  bool
	Position float64
}

// SourceChecklist is a checklist on a source card
type SourceChecklist struct {
	ID     string
	CardID string
	Name   string
	Items  []SourceChecklistItem
}

// SourceClient reads entities from the source workspace. List operations
// return the complete result set; implementations page internally and apply
// their own rate limiting and retry policy.
type SourceClient interface {
	// FetchBoard retrieves a single board and verifies it is accessible
	// with the configured credentials.
	FetchBoard(ctx context.Context, boardID string) (*SourceBoard, error)

	// ListBoards retrieves all boards visible to the credential owner.
	ListBoards(ctx context.Context) ([]SourceBoard, error)

	ListLists(ctx context.Context, boardID string) ([]SourceList, error)
	ListCards(ctx context.Context, boardID string) ([]SourceCard, error)
	ListComments(ctx context.Context, boardID string) ([]SourceComment, error)
	ListAttachments(ctx context.Context, cardID string) ([]SourceAttachment, error)
	ListLabels(ctx context.Context, boardID string) ([]SourceLabel, error)
	ListChecklists(ctx context.Context, boardID string) ([]SourceChecklist, error)

	// DownloadAttachment streams the attachment bytes. The caller must close
	// the reader. Size is -1 when the source does not report a length.
	DownloadAttachment(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// SourceClientFactory builds a client bound to one credential pair. Clients
// built from the same credentials share a rate-limit budget.
type SourceClientFactory interface {
	NewClient(apiKey, apiToken string) SourceClient
}
