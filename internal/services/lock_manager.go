// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager 按会话ID管理读写锁
type LockManager struct {
	locks      map[string]*LockInfo
	globalLock sync.Mutex
	lockTTL    time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	Mutex          *sync.RWMutex
	LastUsed       time.Time
	ReferenceCount int32 // 正在使用的调用数，非零时不会被清理
}

// NewLockManager 创建锁管理器；interval<=0 时不启动后台清理
func NewLockManager(lockTTL, interval time.Duration) *LockManager {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	lm := &LockManager{
		locks:   make(map[string]*LockInfo),
		lockTTL: lockTTL,
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		lm.startCleanup(interval)
	}
	return lm
}

// acquire 取出锁并增加引用计数
func (lm *LockManager) acquire(id string) *LockInfo {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	info, exists := lm.locks[id]
	if !exists {
		info = &LockInfo{Mutex: &sync.RWMutex{}}
		lm.locks[id] = info
	}
	info.LastUsed = time.Now()
	info.ReferenceCount++
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	lm.globalLock.Lock()
	info.ReferenceCount--
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()
}

// ExecuteWithLock 在会话写锁保护下执行操作
func (lm *LockManager) ExecuteWithLock(id string, fn func() error) error {
	info := lm.acquire(id)
	defer lm.release(info)

	info.Mutex.Lock()
	defer info.Mutex.Unlock()
	return fn()
}

// ExecuteWithReadLock 在会话读锁保护下执行操作
func (lm *LockManager) ExecuteWithReadLock(id string, fn func() error) error {
	info := lm.acquire(id)
	defer lm.release(info)

	info.Mutex.RLock()
	defer info.Mutex.RUnlock()
	return fn()
}

// Remove 删除空闲的锁，正在使用时保留
func (lm *LockManager) Remove(id string) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	if info, exists := lm.locks[id]; exists && info.ReferenceCount == 0 {
		delete(lm.locks, id)
	}
}

// Len 当前持有的锁数量
func (lm *LockManager) Len() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.locks)
}

// Stop 停止后台清理
func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() { close(lm.stop) })
}

// 定期清理未使用的锁
func (lm *LockManager) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				lm.cleanupUnusedLocks(time.Now())
			case <-lm.stop:
				return
			}
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks(now time.Time) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	for id, info := range lm.locks {
		if info.ReferenceCount == 0 && now.Sub(info.LastUsed) > lm.lockTTL {
			delete(lm.locks, id)
		}
	}
}
