// internal/storage/transcript_cache.go
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Corphon/TubeDigest/internal/models"
	"github.com/Corphon/TubeDigest/internal/utils"
)

// TranscriptFetcher 实际拉取字幕的来源
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (*models.Transcript, error)
}

// TranscriptCache 按视频ID缓存字幕的内存 LRU，条目超过 TTL 后重新拉取
type TranscriptCache struct {
	source     TranscriptFetcher
	cache      map[string]*TranscriptCacheEntry
	mutex      sync.RWMutex
	maxSize    int           // 最大缓存条目数
	expiration time.Duration // 缓存过期时间
	now        func() time.Time
	metrics    *utils.SummaryMetrics
}

// TranscriptCacheEntry 缓存条目
type TranscriptCacheEntry struct {
	Transcript *models.Transcript
	CreatedAt  time.Time
	LastRead   time.Time
}

// NewTranscriptCache 创建字幕缓存
func NewTranscriptCache(source TranscriptFetcher, maxSize int, expiration time.Duration, metrics *utils.SummaryMetrics) *TranscriptCache {
	if maxSize <= 0 {
		maxSize = 200
	}
	if expiration <= 0 {
		expiration = 30 * time.Minute
	}
	if metrics == nil {
		metrics = utils.NewSummaryMetrics(nil, nil)
	}

	return &TranscriptCache{
		source:     source,
		cache:      make(map[string]*TranscriptCacheEntry),
		maxSize:    maxSize,
		expiration: expiration,
		now:        time.Now,
		metrics:    metrics,
	}
}

// Fetch 命中且未过期时返回缓存，否则从来源拉取；失败不写入缓存
func (c *TranscriptCache) Fetch(ctx context.Context, videoID string) (*models.Transcript, error) {
	now := c.now()

	c.mutex.Lock()
	entry, exists := c.cache[videoID]
	if exists && now.Sub(entry.CreatedAt) <= c.expiration {
		entry.LastRead = now
		c.mutex.Unlock()
		c.metrics.Collector().IncrementCounter("transcript_cache_hits")
		return entry.Transcript, nil
	}
	if exists {
		delete(c.cache, videoID)
	}
	c.mutex.Unlock()

	c.metrics.Collector().IncrementCounter("transcript_cache_misses")
	start := time.Now()
	transcript, err := c.source.Fetch(ctx, videoID)
	fragments := 0
	if transcript != nil {
		fragments = len(transcript.Fragments)
	}
	c.metrics.RecordTranscriptFetch(videoID, fragments, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	// 以拉取完成的时间入缓存，避免拉取期间被读过的条目显得更新
	fetched := c.now()
	c.mutex.Lock()
	c.cache[videoID] = &TranscriptCacheEntry{
		Transcript: transcript,
		CreatedAt:  fetched,
		LastRead:   fetched,
	}
	// 超出容量时清理最少使用的条目
	if len(c.cache) > c.maxSize {
		c.cleanupLRU(len(c.cache) - c.maxSize)
	}
	c.mutex.Unlock()

	return transcript, nil
}

// Delete 从缓存中删除条目
func (c *TranscriptCache) Delete(videoID string) {
	c.mutex.Lock()
	delete(c.cache, videoID)
	c.mutex.Unlock()
}

// Clear 清空缓存
func (c *TranscriptCache) Clear() {
	c.mutex.Lock()
	c.cache = make(map[string]*TranscriptCacheEntry)
	c.mutex.Unlock()
}

// Len 当前条目数
func (c *TranscriptCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// 清理最少使用的条目，调用方持有写锁
func (c *TranscriptCache) cleanupLRU(count int) {
	type keyAge struct {
		key  string
		time time.Time
	}

	entries := make([]keyAge, 0, len(c.cache))
	for k, v := range c.cache {
		entries = append(entries, keyAge{k, v.LastRead})
	}

	// 按最后读取时间排序
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].time.Before(entries[j].time)
	})

	maxToDelete := min(count, len(entries))
	for i := 0; i < maxToDelete; i++ {
		delete(c.cache, entries[i].key)
	}
}
