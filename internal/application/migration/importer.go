package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencyboard/backend/internal/domain/board"
	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/infrastructure/storage"
	"github.com/agencyboard/backend/internal/infrastructure/telemetry"
)

// errJobStopped aborts an import when its job leaves the running state
var errJobStopped = errors.New("job is no longer running")

// Importer migrates one source board into the native model. Every created
// entity is recorded in the mapping ledger first, so a re-run after a crash
// resumes where it left off instead of duplicating rows.
type Importer struct {
	sources   migration.SourceClientFactory
	jobs      migration.JobRepository
	mappings  migration.EntityMappingRepository
	boards    board.BoardRepository
	cards     board.CardRepository
	storage   storage.ObjectStorage
	logger    *zap.Logger
	metrics   *telemetry.MigrationMetrics
	batchSize int
}

// ImporterOption configures an Importer
type ImporterOption func(*Importer)

// WithImporterLogger sets the importer's logger
func WithImporterLogger(logger *zap.Logger) ImporterOption {
	return func(i *Importer) { i.logger = logger }
}

// WithImporterMetrics sets the importer's metrics recorder
func WithImporterMetrics(m *telemetry.MigrationMetrics) ImporterOption {
	return func(i *Importer) { i.metrics = m }
}

// WithProgressBatchSize sets how many entities are processed between
// progress writes and cancellation checks
func WithProgressBatchSize(n int) ImporterOption {
	return func(i *Importer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// NewImporter creates an Importer
func NewImporter(
	sources migration.SourceClientFactory,
	jobs migration.JobRepository,
	mappings migration.EntityMappingRepository,
	boards board.BoardRepository,
	cards board.CardRepository,
	store storage.ObjectStorage,
	opts ...ImporterOption,
) *Importer {
	imp := &Importer{
		sources:   sources,
		jobs:      jobs,
		mappings:  mappings,
		boards:    boards,
		cards:     cards,
		storage:   store,
		logger:    zap.NewNop(),
		batchSize: 25,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// importState carries the per-board import context between phases
type importState struct {
	job      *migration.Job
	client   migration.SourceClient
	boardID  uuid.UUID              // native board
	listIDs  map[string]uuid.UUID   // source list ID -> native list
	cardIDs  map[string]uuid.UUID   // source card ID -> native card
	labelIDs map[string]uuid.UUID   // source label ID -> native label
	progress func(current, total int, phase string)
}

// ImportBoard migrates the job's board. The job must be running. Entity-level
// failures are recorded on the job's report and do not stop the import; board
// or list level failures abort and are returned.
func (i *Importer) ImportBoard(ctx context.Context, job *migration.Job, progress func(current, total int, phase string)) error {
	if job.Status != migration.JobStatusRunning {
		return migration.ErrJobNotRunning
	}
	if progress == nil {
		progress = func(int, int, string) {}
	}

	st := &importState{
		job:      job,
		client:   i.sources.NewClient(job.Config.APIKey, job.Config.APIToken),
		listIDs:  make(map[string]uuid.UUID),
		cardIDs:  make(map[string]uuid.UUID),
		labelIDs: make(map[string]uuid.UUID),
		progress: progress,
	}

	log := i.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("source_board_id", job.SourceBoardID()),
	)
	log.Info("board import starting")

	phases := []struct {
		name string
		run  func(context.Context, *importState) error
	}{
		{"board", i.importBoardEntity},
		{"labels", i.importLabels},
		{"lists", i.importLists},
		{"cards", i.importCards},
		{"comments", i.importComments},
		{"checklists", i.importChecklists},
		{"attachments", i.importAttachments},
	}

	for _, phase := range phases {
		if err := i.checkStillRunning(ctx, st.job); err != nil {
			return err
		}
		if err := phase.run(ctx, st); err != nil {
			return fmt.Errorf("%s phase: %w", phase.name, err)
		}
	}

	log.Info("board import finished",
		zap.Int("cards", job.Report.Cards),
		zap.Int("comments", job.Report.Comments),
		zap.Int("attachments", job.Report.Attachments),
		zap.Int("entity_errors", len(job.Report.Errors)+job.Report.ErrorsDropped),
	)
	return nil
}

// checkStillRunning reloads the job's status so an external cancel takes
// effect at the next batch boundary
func (i *Importer) checkStillRunning(ctx context.Context, job *migration.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := i.jobs.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if current.Status != migration.JobStatusRunning {
		job.Status = current.Status
		return errJobStopped
	}
	return nil
}

// resolveOrCreate runs the ledger protocol for one entity: skip when a
// mapping exists, otherwise create via the callback and record the mapping.
func (i *Importer) resolveOrCreate(
	ctx context.Context,
	st *importState,
	sourceType migration.SourceEntityType,
	sourceID string,
	create func() (uuid.UUID, error),
) (uuid.UUID, bool, error) {
	existing, err := i.mappings.Resolve(ctx, sourceType, sourceID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if existing != uuid.Nil {
		st.job.Report.Skipped++
		if i.metrics != nil {
			i.metrics.EntitySkipped(ctx, string(sourceType))
		}
		return existing, false, nil
	}

	targetID, err := create()
	if err != nil {
		return uuid.Nil, false, err
	}

	mapping, err := migration.NewEntityMapping(sourceType, sourceID, targetID, st.job.ID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if err := i.mappings.Record(ctx, mapping); err != nil {
		return uuid.Nil, false, err
	}
	if i.metrics != nil {
		i.metrics.EntityImported(ctx, string(sourceType))
	}
	return targetID, true, nil
}

func (i *Importer) importBoardEntity(ctx context.Context, st *importState) error {
	st.progress(0, 1, "board")

	sourceBoard, err := st.client.FetchBoard(ctx, st.job.SourceBoardID())
	if err != nil {
		return err
	}

	boardID, created, err := i.resolveOrCreate(ctx, st, migration.SourceEntityBoard, sourceBoard.ID, func() (uuid.UUID, error) {
		// Unmapped names get the general type from the board constructor
		boardType, _ := migration.SuggestBoardType(sourceBoard.Name)
		b, err := board.NewBoard(sourceBoard.Name, boardType, st.job.StartedBy)
		if err != nil {
			return uuid.Nil, err
		}
		b.Description = sourceBoard.Description
		b.Archived = sourceBoard.Closed
		if err := i.boards.Save(ctx, b); err != nil {
			return uuid.Nil, err
		}
		return b.ID, nil
	})
	if err != nil {
		return err
	}
	if created {
		st.job.Report.Boards++
	}
	st.boardID = boardID
	st.progress(1, 1, "board")
	return nil
}

func (i *Importer) importLabels(ctx context.Context, st *importState) error {
	labels, err := st.client.ListLabels(ctx, st.job.SourceBoardID())
	if err != nil {
		return err
	}
	for n, sourceLabel := range labels {
		labelID, created, err := i.resolveOrCreate(ctx, st, migration.SourceEntityLabel, sourceLabel.ID, func() (uuid.UUID, error) {
			l := board.NewLabel(st.boardID, sourceLabel.Name, sourceLabel.Color)
			if err := i.cards.SaveLabel(ctx, l); err != nil {
				return uuid.Nil, err
			}
			return l.ID, nil
		})
		if err != nil {
			st.job.Report.AddError(fmt.Sprintf("label %s: %v", sourceLabel.ID, err))
			continue
		}
		if created {
			st.job.Report.Labels++
		}
		st.labelIDs[sourceLabel.ID] = labelID
		st.progress(n+1, len(labels), "labels")
	}
	return nil
}

func (i *Importer) importLists(ctx context.Context, st *importState) error {
	lists, err := st.client.ListLists(ctx, st.job.SourceBoardID())
	if err != nil {
		return err
	}
	for n, sourceList := range lists {
		position := n
		listID, created, err := i.resolveOrCreate(ctx, st, migration.SourceEntityList, sourceList.ID, func() (uuid.UUID, error) {
			l, err := board.NewList(st.boardID, migration.SuggestListName(sourceList.Name), position)
			if err != nil {
				return uuid.Nil, err
			}
			l.Archived = sourceList.Closed
			if err := i.boards.SaveList(ctx, l); err != nil {
				return uuid.Nil, err
			}
			return l.ID, nil
		})
		if err != nil {
			// Cards need their list; a failed list makes them unplaceable
			return fmt.Errorf("list %s: %w", sourceList.ID, err)
		}
		if created {
			st.job.Report.Lists++
		}
		st.listIDs[sourceList.ID] = listID
		st.progress(n+1, len(lists), "lists")
	}
	return nil
}

func (i *Importer) importCards(ctx context.Context, st *importState) error {
	sourceCards, err := st.client.ListCards(ctx, st.job.SourceBoardID())
	if err != nil {
		return err
	}
	for n, sourceCard := range sourceCards {
		if n%i.batchSize == 0 {
			if err := i.checkStillRunning(ctx, st.job); err != nil {
				return err
			}
			st.progress(n, len(sourceCards), "cards")
		}

		listID, ok := st.listIDs[sourceCard.ListID]
		if !ok {
			st.job.Report.AddError(fmt.Sprintf("card %s: unknown list %s", sourceCard.ID, sourceCard.ListID))
			continue
		}

		position := n
		cardID, created, err := i.resolveOrCreate(ctx, st, migration.SourceEntityCard, sourceCard.ID, func() (uuid.UUID, error) {
			c, err := board.NewCard(st.boardID, listID, sourceCard.Name, position)
			if err != nil {
				return uuid.Nil, err
			}
			c.Description = sourceCard.Description
			c.DueAt = sourceCard.Due
			c.Archived = sourceCard.Closed
			if err := i.cards.Save(ctx, c); err != nil {
				return uuid.Nil, err
			}
			return c.ID, nil
		})
		if err != nil {
			st.job.Report.AddError(fmt.Sprintf("card %s: %v", sourceCard.ID, err))
			continue
		}
		if created {
			st.job.Report.Cards++
		}
		st.cardIDs[sourceCard.ID] = cardID

		for _, sourceLabelID := range sourceCard.LabelIDs {
			labelID, ok := st.labelIDs[sourceLabelID]
			if !ok {
				continue
			}
			if err := i.cards.AttachLabel(ctx, cardID, labelID); err != nil {
				st.job.Report.AddError(fmt.Sprintf("card %s label %s: %v", sourceCard.ID, sourceLabelID, err))
			}
		}
	}
	st.progress(len(sourceCards), len(sourceCards), "cards")
	return nil
}

func (i *Importer) importComments(ctx context.Context, st *importState) error {
	comments, err := st.client.ListComments(ctx, st.job.SourceBoardID())
	if err != nil {
		return err
	}
	for n, sourceComment := range comments {
		if n%i.batchSize == 0 {
			if err := i.checkStillRunning(ctx, st.job); err != nil {
				return err
			}
			st.progress(n, len(comments), "comments")
		}

		cardID, ok := st.cardIDs[sourceComment.CardID]
		if !ok {
			// Comment on a card outside this import (or one that failed)
			st.job.Report.AddError(fmt.Sprintf("comment %s: unknown card %s", sourceComment.ID, sourceComment.CardID))
			continue
		}

		createdAt := commentTimestamp(sourceComment)
		_, created, err := i.resolveOrCreate(ctx, st, migration.SourceEntityComment, sourceComment.ID, func() (uuid.UUID, error) {
			c, err := board.NewComment(cardID, sourceComment.Text)
			if err != nil {
				return uuid.Nil, err
			}
			c.Backdate(createdAt)
			if err := i.cards.SaveComment(ctx, c); err != nil {
				return uuid.Nil, err
			}
			return c.ID, nil
		})
		if err != nil {
			st.job.Report.AddError(fmt.Sprintf("comment %s: %v", sourceComment.ID, err))
			continue
		}
		if created {
			st.job.Report.Comments++
		}
	}
	st.progress(len(comments), len(comments), "comments")
	return nil
}

// commentTimestamp prefers the action date the source reports; when absent
// it falls back to the creation second embedded in the comment's identifier
func commentTimestamp(c migration.SourceComment) time.Time {
	if !c.Date.IsZero() {
		return c.Date
	}
	if decoded, ok := migration.DecodeSourceTimestamp(c.ID); ok {
		return decoded
	}
	return time.Time{}
}

func (i *Importer) importChecklists(ctx context.Context, st *importState) error {
	checklists, err := st.client.ListChecklists(ctx, st.job.SourceBoardID())
	if err != nil {
		return err
	}
	for n, sourceChecklist := range checklists {
		if n%i.batchSize == 0 {
			if err := i.checkStillRunning(ctx, st.job); err != nil {
				return err
			}
			st.progress(n, len(checklists), "checklists")
		}

		cardID, ok := st.cardIDs[sourceChecklist.CardID]
		if !ok {
			st.job.Report.AddError(fmt.Sprintf("checklist %s: unknown card %s", sourceChecklist.ID, sourceChecklist.CardID))
			continue
		}

		_, created, err := i.resolveOrCreate(ctx, st, migration.SourceEntityChecklist, sourceChecklist.ID, func() (uuid.UUID, error) {
			items := make([]board.ChecklistItem, len(sourceChecklist.Items))
			for j, item := range sourceChecklist.Items {
				items[j] = board.ChecklistItem{
					Name:     item.Name,
					Checked:  item.Checked,
					Position: j,
				}
			}
			cl, err := board.NewChecklist(cardID, sourceChecklist.Name, items)
			if err != nil {
				return uuid.Nil, err
			}
			if err := i.cards.SaveChecklist(ctx, cl); err != nil {
				return uuid.Nil, err
			}
			return cl.ID, nil
		})
		if err != nil {
			st.job.Report.AddError(fmt.Sprintf("checklist %s: %v", sourceChecklist.ID, err))
			continue
		}
		if created {
			st.job.Report.Checklists++
		}
	}
	st.progress(len(checklists), len(checklists), "checklists")
	return nil
}

func (i *Importer) importAttachments(ctx context.Context, st *importState) error {
	processed := 0
	total := len(st.cardIDs)
	for sourceCardID, cardID := range st.cardIDs {
		if processed%i.batchSize == 0 {
			if err := i.checkStillRunning(ctx, st.job); err != nil {
				return err
			}
			st.progress(processed, total, "attachments")
		}
		processed++

		attachments, err := st.client.ListAttachments(ctx, sourceCardID)
		if err != nil {
			st.job.Report.AddError(fmt.Sprintf("card %s attachments: %v", sourceCardID, err))
			continue
		}

		for _, sourceAttachment := range attachments {
			if err := i.importAttachment(ctx, st, cardID, sourceAttachment); err != nil {
				st.job.Report.AddError(fmt.Sprintf("attachment %s: %v", sourceAttachment.ID, err))
			}
		}
	}
	st.progress(total, total, "attachments")
	return nil
}

// importAttachment downloads one file and streams it straight into object
// storage; the payload never lands on local disk
func (i *Importer) importAttachment(ctx context.Context, st *importState, cardID uuid.UUID, sourceAttachment migration.SourceAttachment) error {
	_, created, err := i.resolveOrCreate(ctx, st, migration.SourceEntityAttachment, sourceAttachment.ID, func() (uuid.UUID, error) {
		body, size, err := st.client.DownloadAttachment(ctx, sourceAttachment.URL)
		if err != nil {
			return uuid.Nil, err
		}
		defer body.Close()

		storageKey := fmt.Sprintf("attachments/%s/%s/%s", cardID, sourceAttachment.ID, sourceAttachment.Name)
		if err := i.storage.Upload(ctx, storageKey, body, size, sourceAttachment.MimeType); err != nil {
			return uuid.Nil, err
		}

		a, err := board.NewAttachment(cardID, sourceAttachment.Name, storageKey)
		if err != nil {
			return uuid.Nil, err
		}
		a.ContentType = sourceAttachment.MimeType
		a.SourceURL = sourceAttachment.URL
		if size >= 0 {
			a.SizeBytes = size
		} else {
			a.SizeBytes = sourceAttachment.Bytes
		}
		if err := i.cards.SaveAttachment(ctx, a); err != nil {
			return uuid.Nil, err
		}
		return a.ID, nil
	})
	if err != nil {
		return err
	}
	if created {
		st.job.Report.Attachments++
	}
	return nil
}
