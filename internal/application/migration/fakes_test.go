package migration

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/agencyboard/backend/internal/domain/board"
	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/domain/shared"
)

// memJobRepo is an in-memory JobRepository for service-level tests
type memJobRepo struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]migration.Job
	onFind func(job *migration.Job)
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[uuid.UUID]migration.Job)}
}

func (r *memJobRepo) FindByID(_ context.Context, id uuid.UUID) (*migration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := job
	if r.onFind != nil {
		r.onFind(&copied)
	}
	return &copied, nil
}

func (r *memJobRepo) FindAll(_ context.Context, page, pageSize int) ([]*migration.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var parents []*migration.Job
	for id := range r.jobs {
		job := r.jobs[id]
		if job.ParentJobID == nil {
			copied := job
			parents = append(parents, &copied)
		}
	}
	sort.Slice(parents, func(a, b int) bool {
		return parents[a].CreatedAt.After(parents[b].CreatedAt)
	})
	total := int64(len(parents))
	start := (page - 1) * pageSize
	if start >= len(parents) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(parents) {
		end = len(parents)
	}
	return parents[start:end], total, nil
}

func (r *memJobRepo) FindChildren(_ context.Context, parentID uuid.UUID) ([]*migration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var children []*migration.Job
	for id := range r.jobs {
		job := r.jobs[id]
		if job.ParentJobID != nil && *job.ParentJobID == parentID {
			copied := job
			children = append(children, &copied)
		}
	}
	sort.Slice(children, func(a, b int) bool {
		return children[a].BoardIndex < children[b].BoardIndex
	})
	return children, nil
}

func (r *memJobRepo) FindByStatus(_ context.Context, status migration.JobStatus) ([]*migration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*migration.Job
	for id := range r.jobs {
		job := r.jobs[id]
		if job.Status == status {
			copied := job
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(a, b int) bool {
		return matched[a].CreatedAt.Before(matched[b].CreatedAt)
	})
	return matched, nil
}

func (r *memJobRepo) CountUnfinishedChildren(_ context.Context, parentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, job := range r.jobs {
		if job.ParentJobID != nil && *job.ParentJobID == parentID && !job.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (r *memJobRepo) Save(_ context.Context, job *migration.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memJobRepo) status(id uuid.UUID) migration.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id].Status
}

// memMappingRepo is an in-memory idempotency ledger
type memMappingRepo struct {
	mu       sync.Mutex
	mappings map[string]*migration.EntityMapping
}

func newMemMappingRepo() *memMappingRepo {
	return &memMappingRepo{mappings: make(map[string]*migration.EntityMapping)}
}

func mappingKey(sourceType migration.SourceEntityType, sourceID string) string {
	return string(sourceType) + "\x00" + sourceID
}

func (r *memMappingRepo) Resolve(_ context.Context, sourceType migration.SourceEntityType, sourceID string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.mappings[mappingKey(sourceType, sourceID)]; ok {
		return m.TargetID, nil
	}
	return uuid.Nil, nil
}

func (r *memMappingRepo) Record(_ context.Context, m *migration.EntityMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := mappingKey(m.SourceType, m.SourceID)
	if _, ok := r.mappings[key]; ok {
		return nil
	}
	r.mappings[key] = m
	return nil
}

func (r *memMappingRepo) CountByJob(_ context.Context, jobID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.mappings {
		if m.JobID == jobID {
			n++
		}
	}
	return n, nil
}

func (r *memMappingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mappings)
}

// memBoardRepo is an in-memory BoardRepository counting writes
type memBoardRepo struct {
	mu         sync.Mutex
	boards     map[uuid.UUID]*board.Board
	lists      map[uuid.UUID]*board.List
	boardSaves int
	listSaves  int
}

func newMemBoardRepo() *memBoardRepo {
	return &memBoardRepo{
		boards: make(map[uuid.UUID]*board.Board),
		lists:  make(map[uuid.UUID]*board.List),
	}
}

func (r *memBoardRepo) FindByID(_ context.Context, id uuid.UUID) (*board.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.boards[id]; ok {
		return b, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memBoardRepo) FindAll(_ context.Context, _, _ int) ([]*board.Board, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*board.Board
	for _, b := range r.boards {
		all = append(all, b)
	}
	return all, int64(len(all)), nil
}

func (r *memBoardRepo) Save(_ context.Context, b *board.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards[b.ID] = b
	r.boardSaves++
	return nil
}

func (r *memBoardRepo) FindListsByBoard(_ context.Context, boardID uuid.UUID) ([]*board.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lists []*board.List
	for _, l := range r.lists {
		if l.BoardID == boardID {
			lists = append(lists, l)
		}
	}
	return lists, nil
}

func (r *memBoardRepo) SaveList(_ context.Context, l *board.List) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[l.ID] = l
	r.listSaves++
	return nil
}

// memCardRepo is an in-memory CardRepository counting writes
type memCardRepo struct {
	mu          sync.Mutex
	cards       map[uuid.UUID]*board.Card
	comments    []*board.Comment
	attachments []*board.Attachment
	labels      map[uuid.UUID]*board.Label
	cardLabels  map[string]struct{}
	checklists  []*board.Checklist
	cardSaves   int
}

func newMemCardRepo() *memCardRepo {
	return &memCardRepo{
		cards:      make(map[uuid.UUID]*board.Card),
		labels:     make(map[uuid.UUID]*board.Label),
		cardLabels: make(map[string]struct{}),
	}
}

func (r *memCardRepo) FindByID(_ context.Context, id uuid.UUID) (*board.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cards[id]; ok {
		return c, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memCardRepo) FindByList(_ context.Context, listID uuid.UUID) ([]*board.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cards []*board.Card
	for _, c := range r.cards {
		if c.ListID == listID {
			cards = append(cards, c)
		}
	}
	return cards, nil
}

func (r *memCardRepo) Save(_ context.Context, c *board.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[c.ID] = c
	r.cardSaves++
	return nil
}

func (r *memCardRepo) SaveComment(_ context.Context, c *board.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments = append(r.comments, c)
	return nil
}

func (r *memCardRepo) SaveAttachment(_ context.Context, a *board.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachments = append(r.attachments, a)
	return nil
}

func (r *memCardRepo) SaveLabel(_ context.Context, l *board.Label) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[l.ID] = l
	return nil
}

func (r *memCardRepo) AttachLabel(_ context.Context, cardID, labelID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cardLabels[cardID.String()+"/"+labelID.String()] = struct{}{}
	return nil
}

func (r *memCardRepo) SaveChecklist(_ context.Context, cl *board.Checklist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checklists = append(r.checklists, cl)
	return nil
}

// memStorage is an in-memory ObjectStorage
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeSource serves a canned workspace and can inject failures
type fakeSource struct {
	boards      map[string]migration.SourceBoard
	lists       map[string][]migration.SourceList
	cards       map[string][]migration.SourceCard
	comments    map[string][]migration.SourceComment
	labels      map[string][]migration.SourceLabel
	checklists  map[string][]migration.SourceChecklist
	attachments map[string][]migration.SourceAttachment

	fetchBoardErr map[string]error
	downloadErr   map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		boards:        make(map[string]migration.SourceBoard),
		lists:         make(map[string][]migration.SourceList),
		cards:         make(map[string][]migration.SourceCard),
		comments:      make(map[string][]migration.SourceComment),
		labels:        make(map[string][]migration.SourceLabel),
		checklists:    make(map[string][]migration.SourceChecklist),
		attachments:   make(map[string][]migration.SourceAttachment),
		fetchBoardErr: make(map[string]error),
		downloadErr:   make(map[string]error),
	}
}

func (s *fakeSource) FetchBoard(_ context.Context, boardID string) (*migration.SourceBoard, error) {
	if err := s.fetchBoardErr[boardID]; err != nil {
		return nil, err
	}
	b, ok := s.boards[boardID]
	if !ok {
		return nil, migration.ErrSourceNotFound
	}
	return &b, nil
}

func (s *fakeSource) ListBoards(_ context.Context) ([]migration.SourceBoard, error) {
	var all []migration.SourceBoard
	for _, b := range s.boards {
		all = append(all, b)
	}
	return all, nil
}

func (s *fakeSource) ListLists(_ context.Context, boardID string) ([]migration.SourceList, error) {
	return s.lists[boardID], nil
}

func (s *fakeSource) ListCards(_ context.Context, boardID string) ([]migration.SourceCard, error) {
	return s.cards[boardID], nil
}

func (s *fakeSource) ListComments(_ context.Context, boardID string) ([]migration.SourceComment, error) {
	return s.comments[boardID], nil
}

func (s *fakeSource) ListAttachments(_ context.Context, cardID string) ([]migration.SourceAttachment, error) {
	return s.attachments[cardID], nil
}

func (s *fakeSource) ListLabels(_ context.Context, boardID string) ([]migration.SourceLabel, error) {
	return s.labels[boardID], nil
}

func (s *fakeSource) ListChecklists(_ context.Context, boardID string) ([]migration.SourceChecklist, error) {
	return s.checklists[boardID], nil
}

func (s *fakeSource) DownloadAttachment(_ context.Context, url string) (io.ReadCloser, int64, error) {
	if err := s.downloadErr[url]; err != nil {
		return nil, 0, err
	}
	data := []byte("file-content-" + url)
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

type fakeFactory struct {
	client migration.SourceClient
}

func (f *fakeFactory) NewClient(_, _ string) migration.SourceClient {
	return f.client
}

// seedWorkspace fills the fake source with one board holding two lists,
// three cards, a label, comments, a checklist and an attachment
func seedWorkspace(s *fakeSource, boardID string) {
	s.boards[boardID] = migration.SourceBoard{ID: boardID, Name: "Client Projects"}
	s.labels[boardID] = []migration.SourceLabel{
		{ID: boardID + "-lab1", BoardID: boardID, Name: "urgent", Color: "red"},
	}
	s.lists[boardID] = []migration.SourceList{
		{ID: boardID + "-l1", BoardID: boardID, Name: "To Do", Position: 100},
		{ID: boardID + "-l2", BoardID: boardID, Name: "Done", Position: 200},
	}
	s.cards[boardID] = []migration.SourceCard{
		{ID: boardID + "-c1", BoardID: boardID, ListID: boardID + "-l1", Name: "Draft brief", LabelIDs: []string{boardID + "-lab1"}},
		{ID: boardID + "-c2", BoardID: boardID, ListID: boardID + "-l1", Name: "Review copy"},
		{ID: boardID + "-c3", BoardID: boardID, ListID: boardID + "-l2", Name: "Ship assets"},
	}
	s.comments[boardID] = []migration.SourceComment{
		{ID: "66988c79000000000000000a", CardID: boardID + "-c1", Text: "looks good"},
	}
	s.checklists[boardID] = []migration.SourceChecklist{
		{ID: boardID + "-chk1", CardID: boardID + "-c1", Name: "Launch steps", Items: []migration.SourceChecklistItem{
			{ID: "i1", Name: "write", Checked: true},
			{ID: "i2", Name: "publish"},
		}},
	}
	s.attachments[boardID+"-c1"] = []migration.SourceAttachment{
		{ID: boardID + "-att1", CardID: boardID + "-c1", Name: "brief.pdf", URL: "https://files.example/" + boardID + "-att1", MimeType: "application/pdf"},
	}
}

// importHarness bundles the fakes an importer test needs
type importHarness struct {
	source   *fakeSource
	jobs     *memJobRepo
	mappings *memMappingRepo
	boards   *memBoardRepo
	cards    *memCardRepo
	storage  *memStorage
	importer *Importer
}

func newImportHarness(opts ...ImporterOption) *importHarness {
	h := &importHarness{
		source:   newFakeSource(),
		jobs:     newMemJobRepo(),
		mappings: newMemMappingRepo(),
		boards:   newMemBoardRepo(),
		cards:    newMemCardRepo(),
		storage:  newMemStorage(),
	}
	h.importer = NewImporter(
		&fakeFactory{client: h.source},
		h.jobs, h.mappings, h.boards, h.cards, h.storage,
		opts...,
	)
	return h
}

// runningChildJob creates a started child job persisted in the harness repo
func (h *importHarness) runningChildJob(boardID string) (*migration.Job, error) {
	parent, err := migration.NewParentJob(uuid.New(), migration.JobConfig{
		APIKey:   "key",
		APIToken: "token",
		BoardIDs: []string{boardID},
	})
	if err != nil {
		return nil, err
	}
	child, err := migration.NewChildJob(parent, boardID, 0)
	if err != nil {
		return nil, err
	}
	if err := child.Start(); err != nil {
		return nil, err
	}
	if err := h.jobs.Save(context.Background(), child); err != nil {
		return nil, err
	}
	return child, nil
}
