// internal/services/lock_manager.go
package services

import (
	"sync"
	"sync/atomic"
	"time"
)

// LockManager hands out one mutex per user so that project mutations
// for the same user never interleave. Locks for inactive users are
// pruned once the table grows past a threshold.
type LockManager struct {
	userLocks  map[string]*LockInfo
	globalLock sync.RWMutex

	cleanupTicker *time.Ticker
}

// LockInfo wraps a lock with its last-use timestamp. The timestamp is
// atomic: hits update it under the table's read lock, concurrently
// with the cleanup goroutine's reads.
type LockInfo struct {
	Mutex    *sync.Mutex
	lastUsed atomic.Int64 // unix nanos
}

func (li *LockInfo) touch() {
	li.lastUsed.Store(time.Now().UnixNano())
}

func (li *LockInfo) lastUsedTime() time.Time {
	return time.Unix(0, li.lastUsed.Load())
}

// NewLockManager creates a lock manager with background pruning.
func NewLockManager() *LockManager {
	lm := &LockManager{
		userLocks: make(map[string]*LockInfo),
	}

	lm.startCleanup()
	return lm
}

// GetUserLock returns the mutex for a user, creating it on first use.
func (lm *LockManager) GetUserLock(userID string) *sync.Mutex {
	lm.globalLock.RLock()
	if lockInfo, exists := lm.userLocks[userID]; exists {
		lockInfo.touch()
		lm.globalLock.RUnlock()
		return lockInfo.Mutex
	}
	lm.globalLock.RUnlock()

	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// re-check under the write lock
	if lockInfo, exists := lm.userLocks[userID]; exists {
		lockInfo.touch()
		return lockInfo.Mutex
	}

	lockInfo := &LockInfo{Mutex: &sync.Mutex{}}
	lockInfo.touch()
	lm.userLocks[userID] = lockInfo
	return lockInfo.Mutex
}

// executeWithUserLock runs fn while holding the user's lock.
func (lm *LockManager) executeWithUserLock(userID string, fn func() error) error {
	lock := lm.GetUserLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (lm *LockManager) startCleanup() {
	lm.cleanupTicker = time.NewTicker(5 * time.Minute)
	go func() {
		for range lm.cleanupTicker.C {
			lm.cleanupUnusedLocks()
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	const maxLocks = 200
	const lockTimeout = 30 * time.Minute

	if len(lm.userLocks) <= maxLocks {
		return
	}

	now := time.Now()
	for userID, lockInfo := range lm.userLocks {
		if now.Sub(lockInfo.lastUsedTime()) > lockTimeout {
			delete(lm.userLocks, userID)
		}
	}
}
