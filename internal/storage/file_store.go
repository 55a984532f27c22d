// internal/storage/file_store.go
package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/utils"
)

const (
	chaptersDir = "chapters"
	docSuffix   = ".json"
)

// FileStore keeps one JSON document per chapter at <baseDir>/chapters/<id>.json.
// Several processes may share baseDir: updates read the document from disk, so
// the revision check sees writes made elsewhere.
type FileStore struct {
	files *FileStorage
	locks *LockManager
	bc    *broadcaster
	log   *utils.Logger
}

// NewFileStore opens a file-backed store rooted at baseDir.
func NewFileStore(baseDir string, log *utils.Logger) (*FileStore, error) {
	files, err := NewFileStorage(baseDir, 30*time.Second)
	if err != nil {
		return nil, err
	}
	s := &FileStore{
		files: files,
		locks: NewLockManager(5 * time.Minute),
		log:   log.With("component", "file_store"),
	}
	s.bc = newBroadcaster(s.List)
	return s, nil
}

func docName(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid chapter id %q", id)
	}
	return id + docSuffix, nil
}

func (s *FileStore) load(id string, fresh bool) (models.Chapter, error) {
	name, err := docName(id)
	if err != nil {
		return models.Chapter{}, notFound(id)
	}
	var ch models.Chapter
	if err := s.files.LoadJSONFile(chaptersDir, name, &ch, fresh); err != nil {
		if os.IsNotExist(err) {
			return models.Chapter{}, notFound(id)
		}
		return models.Chapter{}, fmt.Errorf("load chapter %s: %w", id, err)
	}
	if ch.ID == "" {
		ch.ID = id
	}
	return ch, nil
}

func (s *FileStore) save(ch models.Chapter) error {
	name, err := docName(ch.ID)
	if err != nil {
		return err
	}
	return s.files.SaveJSONFile(chaptersDir, name, ch)
}

func (s *FileStore) Get(ctx context.Context, id string) (models.Chapter, error) {
	return s.load(id, false)
}

func (s *FileStore) List(ctx context.Context) ([]models.Chapter, error) {
	names, err := s.files.ListFiles(chaptersDir, docSuffix)
	if err != nil {
		return nil, err
	}
	out := make([]models.Chapter, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(name, docSuffix)
		ch, err := s.load(id, false)
		if err != nil {
			s.log.Warn("skipping unreadable chapter", "chapter_id", id, "error", err)
			continue
		}
		out = append(out, ch)
	}
	sortByID(out)
	return out, nil
}

func (s *FileStore) Create(ctx context.Context, ch models.Chapter) (models.Chapter, error) {
	ch = prepareCreate(ch)
	name, err := docName(ch.ID)
	if err != nil {
		return models.Chapter{}, err
	}

	err = s.locks.ExecuteWithLock(ch.ID, func() error {
		if s.files.FileExists(chaptersDir, name) {
			return alreadyExists(ch.ID)
		}
		return s.save(ch)
	})
	if err != nil {
		return models.Chapter{}, err
	}

	_ = s.bc.notify(ctx)
	return ch, nil
}

func (s *FileStore) Update(ctx context.Context, id string, expectedRevision int64, mutate Mutator) (models.Chapter, error) {
	var next models.Chapter
	err := s.locks.ExecuteWithLock(id, func() error {
		current, err := s.load(id, true)
		if err != nil {
			return err
		}
		next, err = commit(current, expectedRevision, mutate)
		if err != nil {
			return err
		}
		return s.save(next)
	})
	if err != nil {
		return models.Chapter{}, err
	}

	_ = s.bc.notify(ctx)
	return next, nil
}

func (s *FileStore) Subscribe(ctx context.Context) (*Subscription, error) {
	return s.bc.subscribe(ctx)
}

// Refresh drops cached documents so writes from other processes become visible.
func (s *FileStore) Refresh(ctx context.Context) error {
	s.files.InvalidateAll()
	return s.bc.notify(ctx)
}

func (s *FileStore) Close() error {
	s.bc.close()
	s.locks.Stop()
	s.files.Close()
	return nil
}
