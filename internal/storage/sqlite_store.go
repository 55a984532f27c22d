// internal/storage/sqlite_store.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/utils"
)

// SQLiteStore keeps each chapter as a JSON document alongside its revision.
// Updates are compare-and-swap on the revision column.
type SQLiteStore struct {
	db  *sql.DB
	bc  *broadcaster
	log *utils.Logger
}

// OpenSQLite opens or creates the database at path. ":memory:" is accepted for tests.
func OpenSQLite(path string, log *utils.Logger) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_txlock=immediate"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	s := &SQLiteStore{db: db, log: log.With("component", "sqlite_store")}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s.bc = newBroadcaster(s.List)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT '',
		revision INTEGER NOT NULL,
		doc TEXT NOT NULL,
		last_modified TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chapters_status ON chapters(status);
	CREATE INDEX IF NOT EXISTS idx_chapters_modified ON chapters(last_modified);
	`
	_, err := s.db.Exec(schema)
	return err
}

func decodeChapter(doc string, revision int64) (models.Chapter, error) {
	var ch models.Chapter
	if err := json.Unmarshal([]byte(doc), &ch); err != nil {
		return models.Chapter{}, fmt.Errorf("decode chapter: %w", err)
	}
	ch.Revision = revision
	return ch, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryRower, id string) (models.Chapter, error) {
	var doc string
	var revision int64
	err := q.QueryRowContext(ctx, `SELECT doc, revision FROM chapters WHERE id = ?`, id).Scan(&doc, &revision)
	if err == sql.ErrNoRows {
		return models.Chapter{}, notFound(id)
	}
	if err != nil {
		return models.Chapter{}, fmt.Errorf("query chapter: %w", err)
	}
	return decodeChapter(doc, revision)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Chapter, error) {
	return s.get(ctx, s.db, id)
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc, revision FROM chapters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	var out []models.Chapter
	for rows.Next() {
		var id, doc string
		var revision int64
		if err := rows.Scan(&id, &doc, &revision); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		ch, err := decodeChapter(doc, revision)
		if err != nil {
			s.log.Warn("skipping unreadable chapter", "chapter_id", id, "error", err)
			continue
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Create(ctx context.Context, ch models.Chapter) (models.Chapter, error) {
	ch = prepareCreate(ch)
	doc, err := json.Marshal(ch)
	if err != nil {
		return models.Chapter{}, fmt.Errorf("encode chapter: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chapters (id, status, revision, doc, last_modified) VALUES (?, ?, ?, ?, ?)`,
		ch.ID, string(ch.Status), ch.Revision, string(doc), ch.LastModified)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.Chapter{}, alreadyExists(ch.ID)
		}
		return models.Chapter{}, fmt.Errorf("insert chapter: %w", err)
	}

	_ = s.bc.notify(ctx)
	return ch, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, expectedRevision int64, mutate Mutator) (models.Chapter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Chapter{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current, err := s.get(ctx, tx, id)
	if err != nil {
		return models.Chapter{}, err
	}
	next, err := commit(current, expectedRevision, mutate)
	if err != nil {
		return models.Chapter{}, err
	}
	doc, err := json.Marshal(next)
	if err != nil {
		return models.Chapter{}, fmt.Errorf("encode chapter: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE chapters SET status = ?, revision = ?, doc = ?, last_modified = ? WHERE id = ? AND revision = ?`,
		string(next.Status), next.Revision, string(doc), next.LastModified, id, current.Revision)
	if err != nil {
		return models.Chapter{}, fmt.Errorf("update chapter: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return models.Chapter{}, commitConflict(id)
	}
	if err := tx.Commit(); err != nil {
		return models.Chapter{}, fmt.Errorf("commit: %w", err)
	}

	_ = s.bc.notify(ctx)
	return next, nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context) (*Subscription, error) {
	return s.bc.subscribe(ctx)
}

func (s *SQLiteStore) Refresh(ctx context.Context) error {
	return s.bc.notify(ctx)
}

func (s *SQLiteStore) Close() error {
	s.bc.close()
	return s.db.Close()
}
