package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/utils"
)

func snapWith(ids ...string) models.Snapshot {
	snap := models.Snapshot{TakenAt: time.Now()}
	for _, id := range ids {
		snap.Chapters = append(snap.Chapters, models.Chapter{ID: id})
	}
	return snap
}

func TestFeedSlowSubscriberSeesLatest(t *testing.T) {
	f := NewFeed()
	sub, err := f.Subscribe(context.Background(), snapWith("initial"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	f.Publish(snapWith("a"))
	f.Publish(snapWith("a", "b"))
	f.Publish(snapWith("a", "b", "c"))

	got := recv(t, sub)
	if len(got.Chapters) != 3 {
		t.Fatalf("expected only the latest snapshot, got %+v", got.Chapters)
	}
	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected extra snapshot %+v", extra)
	default:
	}
}

func TestFeedCloseCancelsSubscribers(t *testing.T) {
	f := NewFeed()
	sub, err := f.Subscribe(context.Background(), snapWith())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	f.Close()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected subscription cancelled on close")
	}
	if f.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", f.Len())
	}
	if _, err := f.Subscribe(context.Background(), snapWith()); err != ErrFeedClosed {
		t.Fatalf("expected ErrFeedClosed, got %v", err)
	}
	f.Publish(snapWith("ignored"))
}

func TestFeedCancelRemovesSubscriber(t *testing.T) {
	f := NewFeed()
	a, _ := f.Subscribe(context.Background(), snapWith())
	b, _ := f.Subscribe(context.Background(), snapWith())
	if f.Len() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", f.Len())
	}
	a.Cancel()
	if f.Len() != 1 {
		t.Fatalf("expected 1 subscriber after cancel, got %d", f.Len())
	}
	b.Cancel()
}

func TestRedisRelayHandleRefreshesForRemoteNotices(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	sub, err := store.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()
	recv(t, sub)

	relay := &RedisRelay{instance: "self", log: utils.NopLogger()}
	ctx := context.Background()

	own, _ := json.Marshal(changeNotice{Instance: "self", ChapterID: "a"})
	if relay.handle(ctx, string(own), store) {
		t.Fatalf("own notices must be ignored")
	}

	if relay.handle(ctx, "not json", store) {
		t.Fatalf("malformed notices must be ignored")
	}

	remote, _ := json.Marshal(changeNotice{Instance: "other", ChapterID: "a"})
	if !relay.handle(ctx, string(remote), store) {
		t.Fatalf("remote notice should refresh")
	}
	recv(t, sub)
}

func TestLockManagerSerializesPerID(t *testing.T) {
	lm := NewLockManager(0)
	defer lm.Stop()

	inside := make(chan struct{})
	release := make(chan struct{})
	go lm.ExecuteWithLock("a", func() error {
		close(inside)
		<-release
		return nil
	})
	<-inside

	done := make(chan struct{})
	go func() {
		lm.ExecuteWithLock("a", func() error { return nil })
		close(done)
	}()

	if err := lm.ExecuteWithLock("b", func() error { return nil }); err != nil {
		t.Fatalf("other ids must not block: %v", err)
	}

	select {
	case <-done:
		t.Fatalf("second holder of a ran concurrently")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second holder never ran")
	}
	if lm.Size() != 2 {
		t.Fatalf("expected 2 tracked locks, got %d", lm.Size())
	}
}
