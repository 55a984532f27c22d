// internal/storage/redis_relay.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/utils"
)

// changeNotice is the payload published on every local write.
type changeNotice struct {
	Instance  string    `json:"instance"`
	ChapterID string    `json:"chapter_id"`
	At        time.Time `json:"at"`
}

// RedisRelay lets several server instances sharing one backend push each
// other's writes to their local subscribers.
type RedisRelay struct {
	rdb      *goredis.Client
	channel  string
	instance string
	log      *utils.Logger
}

// NewRedisRelay connects to addr and verifies the connection.
func NewRedisRelay(ctx context.Context, addr, channel string, log *utils.Logger) (*RedisRelay, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "bookflow:chapters"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisRelay{
		rdb:      rdb,
		channel:  channel,
		instance: uuid.NewString(),
		log:      log.With("component", "redis_relay"),
	}, nil
}

// Announce publishes a change of chapter id.
func (r *RedisRelay) Announce(ctx context.Context, id string) error {
	raw, err := json.Marshal(changeNotice{Instance: r.instance, ChapterID: id, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, raw).Err()
}

// Start listens for notices from other instances and refreshes store on each.
// It returns once the subscription is live; delivery stops when ctx is done.
func (r *RedisRelay) Start(ctx context.Context, store Store) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				r.handle(ctx, m.Payload, store)
			}
		}
	}()
	return nil
}

// handle refreshes store for notices published by other instances.
func (r *RedisRelay) handle(ctx context.Context, payload string, store Store) bool {
	var notice changeNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		r.log.Warn("bad change notice", "error", err)
		return false
	}
	if notice.Instance == r.instance {
		return false
	}
	if err := store.Refresh(ctx); err != nil {
		r.log.Warn("refresh after remote change failed", "chapter_id", notice.ChapterID, "error", err)
		return false
	}
	return true
}

// Wrap returns a Store that announces every successful write.
func (r *RedisRelay) Wrap(store Store) Store {
	return &relayedStore{Store: store, relay: r}
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}

type relayedStore struct {
	Store
	relay *RedisRelay
}

func (s *relayedStore) announce(ctx context.Context, id string) {
	if err := s.relay.Announce(ctx, id); err != nil {
		s.relay.log.Warn("announce change failed", "chapter_id", id, "error", err)
	}
}

func (s *relayedStore) Create(ctx context.Context, ch models.Chapter) (models.Chapter, error) {
	created, err := s.Store.Create(ctx, ch)
	if err == nil {
		s.announce(ctx, created.ID)
	}
	return created, err
}

func (s *relayedStore) Update(ctx context.Context, id string, expectedRevision int64, mutate Mutator) (models.Chapter, error) {
	updated, err := s.Store.Update(ctx, id, expectedRevision, mutate)
	if err == nil {
		s.announce(ctx, id)
	}
	return updated, err
}
