package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/agencyboard/backend/internal/domain/board"
	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/domain/shared"
	"github.com/agencyboard/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared", testDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.MigrationJobModel{},
		&models.EntityMappingModel{},
		&models.BoardModel{},
		&models.ListModel{},
		&models.CardModel{},
		&models.CommentModel{},
		&models.AttachmentModel{},
		&models.LabelModel{},
		&models.CardLabelModel{},
		&models.ChecklistModel{},
	))
	return db
}

func TestJobRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormJobRepository(db)

	cfg := migration.JobConfig{
		APIKey:   "key",
		APIToken: "token",
		BoardIDs: []string{"5f1a2b3c4d5e6f7a8b9c0d1e", "66988c790000000000000001"},
	}
	parent, err := migration.NewParentJob(uuid.New(), cfg)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, parent))

	t.Run("round-trips config and report", func(t *testing.T) {
		parent.Report.AddError("card 5f1a failed")
		parent.Report.Cards = 7
		require.NoError(t, repo.Save(ctx, parent))

		found, err := repo.FindByID(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, cfg.BoardIDs, found.Config.BoardIDs)
		assert.Equal(t, 7, found.Report.Cards)
		assert.Equal(t, []string{"card 5f1a failed"}, found.Report.Errors)
	})

	t.Run("not found maps to domain error", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("children ordered by board index", func(t *testing.T) {
		for i, boardID := range cfg.BoardIDs {
			child, err := migration.NewChildJob(parent, boardID, i)
			require.NoError(t, err)
			require.NoError(t, repo.Save(ctx, child))
		}

		children, err := repo.FindChildren(ctx, parent.ID)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, 0, children[0].BoardIndex)
		assert.Equal(t, "5f1a2b3c4d5e6f7a8b9c0d1e", children[0].SourceBoardID())

		unfinished, err := repo.CountUnfinishedChildren(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), unfinished)

		require.NoError(t, children[0].Start())
		require.NoError(t, children[0].Complete())
		require.NoError(t, repo.Save(ctx, children[0]))

		unfinished, err = repo.CountUnfinishedChildren(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), unfinished)
	})

	t.Run("list excludes children", func(t *testing.T) {
		jobs, total, err := repo.FindAll(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, jobs, 1)
		assert.Equal(t, parent.ID, jobs[0].ID)
	})
}

func TestEntityMappingRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormEntityMappingRepository(db)
	jobID := uuid.New()

	t.Run("resolve unknown returns nil uuid", func(t *testing.T) {
		target, err := repo.Resolve(ctx, migration.SourceEntityCard, "5f1a2b3c4d5e6f7a8b9c0d1e")
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, target)
	})

	t.Run("first writer wins on duplicate source", func(t *testing.T) {
		first, err := migration.NewEntityMapping(migration.SourceEntityCard, "5f1a2b3c4d5e6f7a8b9c0d1e", uuid.New(), jobID)
		require.NoError(t, err)
		require.NoError(t, repo.Record(ctx, first))

		second, err := migration.NewEntityMapping(migration.SourceEntityCard, "5f1a2b3c4d5e6f7a8b9c0d1e", uuid.New(), jobID)
		require.NoError(t, err)
		require.NoError(t, repo.Record(ctx, second)) // conflict ignored

		target, err := repo.Resolve(ctx, migration.SourceEntityCard, "5f1a2b3c4d5e6f7a8b9c0d1e")
		require.NoError(t, err)
		assert.Equal(t, first.TargetID, target)

		count, err := repo.CountByJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("same source id under different type is distinct", func(t *testing.T) {
		m, err := migration.NewEntityMapping(migration.SourceEntityList, "5f1a2b3c4d5e6f7a8b9c0d1e", uuid.New(), jobID)
		require.NoError(t, err)
		require.NoError(t, repo.Record(ctx, m))

		target, err := repo.Resolve(ctx, migration.SourceEntityList, "5f1a2b3c4d5e6f7a8b9c0d1e")
		require.NoError(t, err)
		assert.Equal(t, m.TargetID, target)
	})
}

func TestBoardAndCardRepositories(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	boards := NewGormBoardRepository(db)
	cards := NewGormCardRepository(db)

	b, err := board.NewBoard("Acme Client Projects", board.BoardTypeClientWork, uuid.New())
	require.NoError(t, err)
	require.NoError(t, boards.Save(ctx, b))

	l, err := board.NewList(b.ID, "Backlog", 0)
	require.NoError(t, err)
	require.NoError(t, boards.SaveList(ctx, l))

	c, err := board.NewCard(b.ID, l.ID, "Design homepage", 0)
	require.NoError(t, err)
	require.NoError(t, cards.Save(ctx, c))

	t.Run("board round-trip", func(t *testing.T) {
		found, err := boards.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, board.BoardTypeClientWork, found.Type)
		assert.Equal(t, "Acme Client Projects", found.Name)
	})

	t.Run("lists by board", func(t *testing.T) {
		lists, err := boards.FindListsByBoard(ctx, b.ID)
		require.NoError(t, err)
		require.Len(t, lists, 1)
		assert.Equal(t, "Backlog", lists[0].Name)
	})

	t.Run("cards by list", func(t *testing.T) {
		got, err := cards.FindByList(ctx, l.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Design homepage", got[0].Title)
	})

	t.Run("checklist items stored as json", func(t *testing.T) {
		cl, err := board.NewChecklist(c.ID, "Launch steps", []board.ChecklistItem{
			{Name: "Draft copy", Checked: true, Position: 0},
			{Name: "Review", Position: 1},
		})
		require.NoError(t, err)
		require.NoError(t, cards.SaveChecklist(ctx, cl))

		var model models.ChecklistModel
		require.NoError(t, db.First(&model, "card_id = ?", c.ID).Error)
		restored := model.ToDomain()
		require.Len(t, restored.Items, 2)
		assert.True(t, restored.Items[0].Checked)
	})

	t.Run("attach label twice is idempotent", func(t *testing.T) {
		lbl := board.NewLabel(b.ID, "urgent", "red")
		require.NoError(t, cards.SaveLabel(ctx, lbl))
		require.NoError(t, cards.AttachLabel(ctx, c.ID, lbl.ID))
		require.NoError(t, cards.AttachLabel(ctx, c.ID, lbl.ID))

		var count int64
		require.NoError(t, db.Model(&models.CardLabelModel{}).Where("card_id = ?", c.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}
