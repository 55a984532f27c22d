// internal/storage/memory_store.go
package storage

import (
	"context"
	"sync"

	"github.com/Corphon/BookFlow/internal/models"
)

// MemoryStore keeps chapters in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	chapters map[string]models.Chapter
	bc       *broadcaster
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{chapters: make(map[string]models.Chapter)}
	s.bc = newBroadcaster(s.List)
	return s
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chapters[id]
	if !ok {
		return models.Chapter{}, notFound(id)
	}
	return ch, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]models.Chapter, error) {
	s.mu.RLock()
	out := make([]models.Chapter, 0, len(s.chapters))
	for _, ch := range s.chapters {
		out = append(out, ch)
	}
	s.mu.RUnlock()
	sortByID(out)
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, ch models.Chapter) (models.Chapter, error) {
	ch = prepareCreate(ch)

	s.mu.Lock()
	if _, exists := s.chapters[ch.ID]; exists {
		s.mu.Unlock()
		return models.Chapter{}, alreadyExists(ch.ID)
	}
	s.chapters[ch.ID] = ch
	s.mu.Unlock()

	_ = s.bc.notify(ctx)
	return ch, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, expectedRevision int64, mutate Mutator) (models.Chapter, error) {
	s.mu.Lock()
	current, ok := s.chapters[id]
	if !ok {
		s.mu.Unlock()
		return models.Chapter{}, notFound(id)
	}
	next, err := commit(current, expectedRevision, mutate)
	if err != nil {
		s.mu.Unlock()
		return models.Chapter{}, err
	}
	s.chapters[id] = next
	s.mu.Unlock()

	_ = s.bc.notify(ctx)
	return next, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (*Subscription, error) {
	return s.bc.subscribe(ctx)
}

func (s *MemoryStore) Refresh(ctx context.Context) error {
	return s.bc.notify(ctx)
}

func (s *MemoryStore) Close() error {
	s.bc.close()
	return nil
}
