// internal/services/lock_manager_test.go
package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markUsedAt(info *LockInfo, t time.Time) {
	info.lastUsed.Store(t.UnixNano())
}

func TestGetUserLockReturnsSameMutexPerUser(t *testing.T) {
	lm := NewLockManager()

	a := lm.GetUserLock("user-a")
	b := lm.GetUserLock("user-b")

	assert.Same(t, a, lm.GetUserLock("user-a"))
	assert.NotSame(t, a, b)
}

func TestExecuteWithUserLockSerializes(t *testing.T) {
	lm := NewLockManager()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lm.executeWithUserLock("user-a", func() error {
				counter++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestExecuteWithUserLockPropagatesError(t *testing.T) {
	lm := NewLockManager()

	wantErr := fmt.Errorf("boom")
	err := lm.executeWithUserLock("user-a", func() error { return wantErr })
	assert.Equal(t, wantErr, err)
}

func TestCleanupKeepsTableSmallUntouched(t *testing.T) {
	lm := NewLockManager()

	for i := 0; i < 10; i++ {
		lm.GetUserLock(fmt.Sprintf("user-%d", i))
	}
	// mark everything stale; below the size threshold nothing is pruned
	lm.globalLock.Lock()
	for _, info := range lm.userLocks {
		markUsedAt(info, time.Now().Add(-time.Hour))
	}
	lm.globalLock.Unlock()

	lm.cleanupUnusedLocks()

	lm.globalLock.RLock()
	defer lm.globalLock.RUnlock()
	assert.Len(t, lm.userLocks, 10)
}

func TestCleanupPrunesStaleLocksWhenTableIsLarge(t *testing.T) {
	lm := NewLockManager()

	for i := 0; i < 250; i++ {
		lm.GetUserLock(fmt.Sprintf("user-%d", i))
	}
	lm.globalLock.Lock()
	for i := 0; i < 100; i++ {
		info, ok := lm.userLocks[fmt.Sprintf("user-%d", i)]
		require.True(t, ok)
		markUsedAt(info, time.Now().Add(-time.Hour))
	}
	lm.globalLock.Unlock()

	lm.cleanupUnusedLocks()

	lm.globalLock.RLock()
	defer lm.globalLock.RUnlock()
	assert.Len(t, lm.userLocks, 150)
	_, stale := lm.userLocks["user-0"]
	assert.False(t, stale)
	_, fresh := lm.userLocks["user-200"]
	assert.True(t, fresh)
}

func TestTimestampUpdatesRaceCleanup(t *testing.T) {
	lm := NewLockManager()

	for i := 0; i < 250; i++ {
		lm.GetUserLock(fmt.Sprintf("user-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				lm.GetUserLock(fmt.Sprintf("user-%d", (n*100+j)%250))
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			lm.cleanupUnusedLocks()
		}
	}()
	wg.Wait()

	// every lock was just touched, so nothing is stale enough to prune
	lm.globalLock.RLock()
	defer lm.globalLock.RUnlock()
	assert.Len(t, lm.userLocks, 250)
}
