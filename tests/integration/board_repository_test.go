package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyboard/backend/internal/domain/board"
	"github.com/agencyboard/backend/internal/infrastructure/persistence"
)

// TestBoardImportPersistence_Integration walks the write path the importer
// takes for one board against a real PostgreSQL database
func TestBoardImportPersistence_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	boards := persistence.NewGormBoardRepository(testDB.DB)
	cards := persistence.NewGormCardRepository(testDB.DB)
	ctx := context.Background()

	owner := uuid.New()

	b, err := board.NewBoard("Client Projects", board.BoardTypeClientWork, owner)
	require.NoError(t, err)
	b.Description = "Imported from Trello"
	require.NoError(t, boards.Save(ctx, b))

	found, err := boards.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Client Projects", found.Name)
	assert.Equal(t, board.BoardTypeClientWork, found.Type)
	require.NotNil(t, found.CreatedBy)
	assert.Equal(t, owner, *found.CreatedBy)

	todo, err := board.NewList(b.ID, "To Do", 0)
	require.NoError(t, err)
	done, err := board.NewList(b.ID, "Done", 1)
	require.NoError(t, err)
	require.NoError(t, boards.SaveList(ctx, todo))
	require.NoError(t, boards.SaveList(ctx, done))

	lists, err := boards.FindListsByBoard(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "To Do", lists[0].Name)
	assert.Equal(t, "Done", lists[1].Name)

	card, err := board.NewCard(b.ID, todo.ID, "Draft launch brief", 0)
	require.NoError(t, err)
	require.NoError(t, cards.Save(ctx, card))

	t.Run("cards are listed per list", func(t *testing.T) {
		inTodo, err := cards.FindByList(ctx, todo.ID)
		require.NoError(t, err)
		require.Len(t, inTodo, 1)
		assert.Equal(t, card.ID, inTodo[0].ID)

		inDone, err := cards.FindByList(ctx, done.ID)
		require.NoError(t, err)
		assert.Empty(t, inDone)
	})

	t.Run("comment survives a backdated creation time", func(t *testing.T) {
		comment, err := board.NewComment(card.ID, "Looks good, shipping it")
		require.NoError(t, err)
		created := comment.CreatedAt.AddDate(-1, 0, 0)
		comment.Backdate(created)
		require.NoError(t, cards.SaveComment(ctx, comment))

		var storedAt int64
		err = testDB.DB.Raw(
			"SELECT EXTRACT(EPOCH FROM created_at)::bigint FROM comments WHERE id = ?",
			comment.ID,
		).Scan(&storedAt).Error
		require.NoError(t, err)
		assert.Equal(t, created.Unix(), storedAt)
	})

	t.Run("label can be attached to a card once", func(t *testing.T) {
		label := board.NewLabel(b.ID, "urgent", "red")
		require.NoError(t, cards.SaveLabel(ctx, label))

		require.NoError(t, cards.AttachLabel(ctx, card.ID, label.ID))
		// A second attach must not violate the join table's primary key
		require.NoError(t, cards.AttachLabel(ctx, card.ID, label.ID))

		var count int64
		err := testDB.DB.Raw(
			"SELECT COUNT(*) FROM card_labels WHERE card_id = ? AND label_id = ?",
			card.ID, label.ID,
		).Scan(&count).Error
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("checklist items round trip through JSON", func(t *testing.T) {
		checklist, err := board.NewChecklist(card.ID, "Launch checklist", []board.ChecklistItem{
			{Name: "Write copy", Checked: true, Position: 0},
			{Name: "Schedule posts", Checked: false, Position: 1},
		})
		require.NoError(t, err)
		require.NoError(t, cards.SaveChecklist(ctx, checklist))

		var raw string
		err = testDB.DB.Raw(
			"SELECT items::text FROM checklists WHERE id = ?", checklist.ID,
		).Scan(&raw).Error
		require.NoError(t, err)
		assert.Contains(t, raw, "Write copy")
		assert.Contains(t, raw, "Schedule posts")
	})

	t.Run("attachment metadata is persisted", func(t *testing.T) {
		attachment, err := board.NewAttachment(card.ID, "brief.pdf", "attachments/"+card.ID.String()+"/brief.pdf")
		require.NoError(t, err)
		attachment.ContentType = "application/pdf"
		attachment.SizeBytes = 2048
		attachment.SourceURL = "https://files.example/brief.pdf"
		require.NoError(t, cards.SaveAttachment(ctx, attachment))

		var key string
		err = testDB.DB.Raw(
			"SELECT storage_key FROM attachments WHERE id = ?", attachment.ID,
		).Scan(&key).Error
		require.NoError(t, err)
		assert.Equal(t, attachment.StorageKey, key)
	})
}
