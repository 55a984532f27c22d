// internal/storage/lock_manager.go
package storage

import (
	"sync"
	"time"
)

// LockManager hands out one mutex per record id.
type LockManager struct {
	locks      map[string]*lockInfo
	globalLock sync.Mutex
	lockTTL    time.Duration
	maxLocks   int
	stop       chan struct{}
	stopOnce   sync.Once
}

type lockInfo struct {
	mutex    sync.Mutex
	lastUsed time.Time
	refs     int
}

// NewLockManager starts a manager that prunes idle locks every interval.
func NewLockManager(interval time.Duration) *LockManager {
	lm := &LockManager{
		locks:    make(map[string]*lockInfo),
		lockTTL:  30 * time.Minute,
		maxLocks: 200,
		stop:     make(chan struct{}),
	}
	if interval > 0 {
		go lm.cleanupLoop(interval)
	}
	return lm
}

func (lm *LockManager) acquire(id string) *lockInfo {
	lm.globalLock.Lock()
	info, ok := lm.locks[id]
	if !ok {
		info = &lockInfo{}
		lm.locks[id] = info
	}
	info.refs++
	info.lastUsed = time.Now()
	lm.globalLock.Unlock()

	info.mutex.Lock()
	return info
}

func (lm *LockManager) release(info *lockInfo) {
	info.mutex.Unlock()

	lm.globalLock.Lock()
	info.refs--
	info.lastUsed = time.Now()
	lm.globalLock.Unlock()
}

// ExecuteWithLock runs fn while holding the lock for id.
func (lm *LockManager) ExecuteWithLock(id string, fn func() error) error {
	info := lm.acquire(id)
	defer lm.release(info)
	return fn()
}

func (lm *LockManager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lm.cleanupUnusedLocks()
		case <-lm.stop:
			return
		}
	}
}

// cleanupUnusedLocks drops idle locks once the table grows past maxLocks.
// Locks with holders or waiters are never dropped.
func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	if len(lm.locks) <= lm.maxLocks {
		return
	}
	now := time.Now()
	for id, info := range lm.locks {
		if info.refs == 0 && now.Sub(info.lastUsed) > lm.lockTTL {
			delete(lm.locks, id)
		}
	}
}

// Size returns the number of tracked locks.
func (lm *LockManager) Size() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.locks)
}

// Stop ends the cleanup loop.
func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() { close(lm.stop) })
}
