// internal/storage/store.go
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/BookFlow/internal/errors"
	"github.com/Corphon/BookFlow/internal/models"
)

// Mutator receives the current record and returns the full record to write back.
type Mutator func(current models.Chapter) (models.Chapter, error)

// Store is the shared chapter document store.
//
// Update is an atomic read-merge-write: mutate runs against the latest stored
// record while the record is locked. When expectedRevision is non-zero the write
// fails with a conflict error unless it matches the stored revision.
type Store interface {
	Get(ctx context.Context, id string) (models.Chapter, error)
	List(ctx context.Context) ([]models.Chapter, error)
	Create(ctx context.Context, ch models.Chapter) (models.Chapter, error)
	Update(ctx context.Context, id string, expectedRevision int64, mutate Mutator) (models.Chapter, error)
	// Subscribe delivers the current snapshot immediately and a new one after every change.
	Subscribe(ctx context.Context) (*Subscription, error)
	// Refresh re-reads the backend and pushes a snapshot to subscribers.
	Refresh(ctx context.Context) error
	Close() error
}

// prepareCreate assigns an id and the first revision.
func prepareCreate(ch models.Chapter) models.Chapter {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	ch.Revision = 1
	if ch.LastModified.IsZero() {
		ch.LastModified = time.Now().UTC()
	}
	return ch
}

// commit runs mutate against current and stamps the result with the next revision.
func commit(current models.Chapter, expectedRevision int64, mutate Mutator) (models.Chapter, error) {
	if expectedRevision != 0 && current.Revision != expectedRevision {
		return models.Chapter{}, apperrors.NewConflictError(
			fmt.Sprintf("chapter %s changed (revision %d, expected %d)", current.ID, current.Revision, expectedRevision), nil)
	}
	next, err := mutate(current)
	if err != nil {
		return models.Chapter{}, err
	}
	next.ID = current.ID
	next.Revision = current.Revision + 1
	if next.LastModified.IsZero() {
		next.LastModified = time.Now().UTC()
	}
	return next, nil
}

func notFound(id string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("chapter %s not found", id), nil)
}

func commitConflict(id string) error {
	return apperrors.NewConflictError(fmt.Sprintf("chapter %s changed during update", id), nil)
}

func alreadyExists(id string) error {
	return apperrors.NewConflictError(fmt.Sprintf("chapter %s already exists", id), nil)
}

func sortByID(chapters []models.Chapter) {
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].ID < chapters[j].ID })
}

// broadcaster serializes snapshot reads with publication so subscribers never
// observe an older snapshot after a newer one.
type broadcaster struct {
	mu   sync.Mutex
	feed *Feed
	load func(ctx context.Context) ([]models.Chapter, error)
}

func newBroadcaster(load func(ctx context.Context) ([]models.Chapter, error)) *broadcaster {
	return &broadcaster{feed: NewFeed(), load: load}
}

func (b *broadcaster) snapshot(ctx context.Context) (models.Snapshot, error) {
	chapters, err := b.load(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{Chapters: chapters, TakenAt: time.Now().UTC()}, nil
}

func (b *broadcaster) notify(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.feed.Len() == 0 {
		return nil
	}
	snap, err := b.snapshot(ctx)
	if err != nil {
		return err
	}
	b.feed.Publish(snap)
	return nil
}

func (b *broadcaster) subscribe(ctx context.Context) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return b.feed.Subscribe(ctx, snap)
}

func (b *broadcaster) close() {
	b.feed.Close()
}
