// internal/storage/feed.go
package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/Corphon/BookFlow/internal/models"
)

// ErrFeedClosed is returned when subscribing to a closed feed.
var ErrFeedClosed = errors.New("snapshot feed closed")

// Subscription is a live snapshot stream. C is closed after Cancel.
type Subscription struct {
	C <-chan models.Snapshot

	ch     chan models.Snapshot
	done   chan struct{}
	once   sync.Once
	remove func()
}

// Cancel stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.remove()
		close(s.done)
	})
}

// Done is closed once the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Feed fans snapshots out to subscribers. Each subscriber buffers one snapshot;
// a slow subscriber skips intermediate snapshots and always sees the latest.
type Feed struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a subscriber and queues initial for it.
// The subscription is cancelled when ctx is done.
func (f *Feed) Subscribe(ctx context.Context, initial models.Snapshot) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}

	id := f.nextID
	f.nextID++

	ch := make(chan models.Snapshot, 1)
	sub := &Subscription{C: ch, ch: ch, done: make(chan struct{})}
	sub.remove = func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
	ch <- initial
	f.subs[id] = sub

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Publish delivers snap to every subscriber without blocking.
func (f *Feed) Publish(snap models.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		select {
		case sub.ch <- snap:
		default:
			// drop the stale pending snapshot; only Publish sends, under f.mu
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}

// Len returns the number of live subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close cancels every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	subs := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
