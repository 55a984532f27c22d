// internal/services/chapter_service.go
package services

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/Corphon/BookFlow/internal/errors"
	"github.com/Corphon/BookFlow/internal/generator"
	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/search"
	"github.com/Corphon/BookFlow/internal/storage"
	"github.com/Corphon/BookFlow/internal/utils"
	"github.com/Corphon/BookFlow/internal/workflow"
)

// MsgNoChapterSelected is returned when an action names no chapter.
const MsgNoChapterSelected = "No chapter selected"

// Generator produces a chapter from a source URL.
type Generator interface {
	Generate(ctx context.Context, chapterURL, apiURL string) (*generator.Result, error)
}

// ChapterService runs the editorial workflow over the chapter store.
type ChapterService struct {
	store     storage.Store
	generator Generator
	index     *search.Index // optional
	log       *utils.Logger
	metrics   *utils.Metrics
	now       func() time.Time
}

// NewChapterService wires the workflow to its collaborators. index may be nil.
func NewChapterService(store storage.Store, gen Generator, index *search.Index, log *utils.Logger) *ChapterService {
	return &ChapterService{
		store:     store,
		generator: gen,
		index:     index,
		log:       log.With("service", "chapters"),
		metrics:   utils.NewMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Workspace is what a role sees when it opens a chapter.
type Workspace struct {
	View    workflow.View     `json:"view"`
	Draft   workflow.Draft    `json:"draft"`
	Actions []workflow.Action `json:"actions"`
}

// Stats summarises the store.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Indexed  uint64         `json:"indexed"`

	Metrics utils.MetricsSnapshot `json:"metrics"`
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError(MsgNoChapterSelected, nil)
	}
	return nil
}

// Get returns a chapter by id.
func (s *ChapterService) Get(ctx context.Context, id string) (models.Chapter, error) {
	if err := requireID(id); err != nil {
		return models.Chapter{}, err
	}
	return s.store.Get(ctx, id)
}

// Queue returns role's work queue, newest first.
func (s *ChapterService) Queue(ctx context.Context, role models.Role) ([]models.Chapter, error) {
	chapters, err := s.store.List(ctx)
	if err != nil {
		return nil, apperrors.WrapError(err, "list chapters", apperrors.ErrorTypeError)
	}
	return workflow.Queue(role, chapters), nil
}

// WatchQueue streams store snapshots; callers filter with workflow.Queue.
func (s *ChapterService) WatchQueue(ctx context.Context) (*storage.Subscription, error) {
	return s.store.Subscribe(ctx)
}

// Open loads a chapter from role's queue with its editable fields seeded.
func (s *ChapterService) Open(ctx context.Context, role models.Role, id string) (*Workspace, error) {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.InQueue(role, ch.Status) {
		return nil, apperrors.NewForbiddenError("chapter is not in the "+string(role)+" queue", nil)
	}
	return &Workspace{
		View:    workflow.Render(ch),
		Draft:   workflow.Seed(role, ch),
		Actions: availableActions(role, ch.Status),
	}, nil
}

func availableActions(role models.Role, status models.Status) []workflow.Action {
	actions := []workflow.Action{}
	for _, t := range workflow.Transitions() {
		if t.Role == role && t.From == status && t.Action != workflow.ActionIngest {
			actions = append(actions, t.Action)
		}
	}
	return actions
}

// transition applies action to id as an atomic merge guarded by revision.
// patch is built from the stored record inside the update.
func (s *ChapterService) transition(ctx context.Context, role models.Role, id string, action workflow.Action, revision int64, patch func(current models.Chapter) workflow.Patch) (models.Chapter, error) {
	if err := requireID(id); err != nil {
		return models.Chapter{}, err
	}

	updated, err := s.store.Update(ctx, id, revision, func(current models.Chapter) (models.Chapter, error) {
		return workflow.Apply(current, role, action, patch(current), s.now())
	})
	if err != nil {
		s.log.Warn("transition rejected", "chapter_id", id, "action", action, "role", role, "error", err)
		s.metrics.Inc("rejected." + string(apperrors.TypeOf(err)))
		return models.Chapter{}, err
	}
	s.metrics.Inc("transition." + string(action))

	s.log.Info("chapter transitioned", "chapter_id", id, "action", action, "status", updated.Status.String(), "revision", updated.Revision)
	if action == workflow.ActionPublish && s.index != nil {
		if err := s.index.IndexChapter(updated); err != nil {
			s.log.Error("index published chapter failed", "chapter_id", id, "error", err)
		}
	}
	return updated, nil
}

func fixed(p workflow.Patch) func(models.Chapter) workflow.Patch {
	return func(models.Chapter) workflow.Patch { return p }
}

// SaveDraft stores the writer's text without changing status.
func (s *ChapterService) SaveDraft(ctx context.Context, id, text string, revision int64) (models.Chapter, error) {
	return s.transition(ctx, models.RoleWriter, id, workflow.ActionSaveDraft, revision, fixed(workflow.Patch{WriterText: &text}))
}

// Approve hands the chapter to the reviewer. A nil text approves the writer's
// seeded text: the saved draft, else the AI version.
func (s *ChapterService) Approve(ctx context.Context, id string, text *string, revision int64) (models.Chapter, error) {
	return s.transition(ctx, models.RoleWriter, id, workflow.ActionApprove, revision, func(current models.Chapter) workflow.Patch {
		if text != nil {
			return workflow.Patch{WriterText: text}
		}
		seeded := workflow.Seed(models.RoleWriter, current).Text
		return workflow.Patch{WriterText: &seeded}
	})
}

// SubmitReview records the reviewer's version and feedback.
func (s *ChapterService) SubmitReview(ctx context.Context, id, version, feedback string, revision int64) (models.Chapter, error) {
	return s.transition(ctx, models.RoleReviewer, id, workflow.ActionSubmitReview, revision, fixed(workflow.Patch{
		ReviewerVersion:  &version,
		ReviewerFeedback: &feedback,
	}))
}

// Publish records the final text and rating.
func (s *ChapterService) Publish(ctx context.Context, id, finalVersion string, rating int, revision int64) (models.Chapter, error) {
	return s.transition(ctx, models.RoleEditor, id, workflow.ActionPublish, revision, fixed(workflow.Patch{
		FinalVersion: &finalVersion,
		Rating:       &rating,
	}))
}

// Ingest generates a chapter from chapterURL and stores it with no status.
func (s *ChapterService) Ingest(ctx context.Context, chapterURL, apiURL string) (models.Chapter, error) {
	if s.generator == nil {
		return models.Chapter{}, apperrors.NewProcessingError("generation is not configured", nil)
	}
	started := time.Now()
	result, err := s.generator.Generate(ctx, chapterURL, apiURL)
	s.metrics.Observe("generate", time.Since(started))
	if err != nil {
		s.metrics.Inc("generate.failed")
		return models.Chapter{}, err
	}

	source := strings.TrimSpace(chapterURL)
	ch, err := workflow.Apply(models.Chapter{}, models.RoleReader, workflow.ActionIngest, workflow.Patch{
		Title:     &result.Title,
		Chapter:   &result.Title,
		URL:       &source,
		Content:   &result.Original,
		AIVersion: &result.AIVersion,
	}, s.now())
	if err != nil {
		return models.Chapter{}, err
	}

	created, err := s.store.Create(ctx, ch)
	if err != nil {
		return models.Chapter{}, apperrors.WrapError(err, "store generated chapter", apperrors.ErrorTypeError)
	}
	s.metrics.Inc("transition." + string(workflow.ActionIngest))
	s.log.Info("chapter ingested", "chapter_id", created.ID, "title", workflow.DisplayTitle(created))
	return created, nil
}

// Library returns published chapters, newest first.
func (s *ChapterService) Library(ctx context.Context) ([]workflow.Entry, error) {
	chapters, err := s.store.List(ctx)
	if err != nil {
		return nil, apperrors.WrapError(err, "list chapters", apperrors.ErrorTypeError)
	}
	return workflow.Library(chapters, s.now()), nil
}

// Books groups the library by book.
func (s *ChapterService) Books(ctx context.Context) ([]workflow.Book, error) {
	entries, err := s.Library(ctx)
	if err != nil {
		return nil, err
	}
	return workflow.GroupByBook(entries), nil
}

// SearchLibrary filters the library by book name or title.
func (s *ChapterService) SearchLibrary(ctx context.Context, query string) ([]workflow.Entry, error) {
	entries, err := s.Library(ctx)
	if err != nil {
		return nil, err
	}
	return workflow.Search(entries, query), nil
}

// FullText searches published chapter text.
func (s *ChapterService) FullText(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	if s.index == nil {
		return nil, apperrors.NewProcessingError("full-text index is not available", nil)
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidationError("query is required", nil)
	}
	hits, err := s.index.Search(query, limit)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid search query", err)
	}
	return hits, nil
}

// RebuildIndex re-indexes every published chapter.
func (s *ChapterService) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	chapters, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	return s.index.Rebuild(chapters)
}

// Stats counts chapters per status.
func (s *ChapterService) Stats(ctx context.Context) (Stats, error) {
	chapters, err := s.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Total:    len(chapters),
		ByStatus: make(map[string]int, len(models.AllStatuses)),
		Metrics:  s.metrics.Snapshot(),
	}
	for _, st := range models.AllStatuses {
		stats.ByStatus[st.String()] = 0
	}
	for _, ch := range chapters {
		stats.ByStatus[ch.Status.String()]++
	}
	if s.index != nil {
		if n, err := s.index.Count(); err == nil {
			stats.Indexed = n
		}
	}
	return stats, nil
}
