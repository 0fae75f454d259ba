package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Corphon/TubeDigest/internal/models"
	"github.com/Corphon/TubeDigest/internal/utils"
)

type countingSource struct {
	calls  map[string]int
	err    error
	during func(videoID string) // 拉取过程中执行
}

func (s *countingSource) Fetch(ctx context.Context, videoID string) (*models.Transcript, error) {
	s.calls[videoID]++
	if s.during != nil {
		s.during(videoID)
	}
	if s.err != nil {
		return nil, s.err
	}
	return models.NewTranscript(videoID, []models.TranscriptFragment{{Start: 0, Text: videoID}}), nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(src *countingSource, size int, ttl time.Duration) (*TranscriptCache, *fakeClock, *utils.MetricsCollector) {
	collector := utils.NewMetricsCollector()
	cache := NewTranscriptCache(src, size, ttl, utils.NewSummaryMetrics(collector, utils.NewLogger(io.Discard, utils.ERROR)))
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache.now = clock.now
	return cache, clock, collector
}

func TestCacheHit(t *testing.T) {
	src := &countingSource{calls: map[string]int{}}
	cache, _, collector := newTestCache(src, 10, time.Minute)
	ctx := context.Background()

	first, err := cache.Fetch(ctx, "aaaaaaaaaaa")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := cache.Fetch(ctx, "aaaaaaaaaaa")
	if first != second || src.calls["aaaaaaaaaaa"] != 1 {
		t.Errorf("expected one upstream call, got %d", src.calls["aaaaaaaaaaa"])
	}
	if collector.GetCounterValue("transcript_cache_hits") != 1 || collector.GetCounterValue("transcript_fetch_total") != 1 {
		t.Errorf("metrics = %v", collector.GetMetrics()["counters"])
	}
}

func TestCacheExpiry(t *testing.T) {
	src := &countingSource{calls: map[string]int{}}
	cache, clock, _ := newTestCache(src, 10, time.Minute)
	ctx := context.Background()

	cache.Fetch(ctx, "aaaaaaaaaaa")
	clock.t = clock.t.Add(2 * time.Minute)
	cache.Fetch(ctx, "aaaaaaaaaaa")

	if src.calls["aaaaaaaaaaa"] != 2 {
		t.Errorf("expired entry should be refetched, calls = %d", src.calls["aaaaaaaaaaa"])
	}
}

func TestCacheEvictsLeastRecentlyRead(t *testing.T) {
	src := &countingSource{calls: map[string]int{}}
	cache, clock, _ := newTestCache(src, 2, time.Hour)
	ctx := context.Background()

	cache.Fetch(ctx, "a")
	clock.t = clock.t.Add(time.Second)
	cache.Fetch(ctx, "b")
	clock.t = clock.t.Add(time.Second)
	cache.Fetch(ctx, "a") // a is now newer than b
	clock.t = clock.t.Add(time.Second)
	cache.Fetch(ctx, "c")

	if cache.Len() != 2 {
		t.Fatalf("Len = %d", cache.Len())
	}
	cache.Fetch(ctx, "a")
	if src.calls["a"] != 1 {
		t.Error("a should still be cached")
	}
	cache.Fetch(ctx, "b")
	if src.calls["b"] != 2 {
		t.Error("b should have been evicted")
	}
}

func TestCacheSlowFetchIsNewest(t *testing.T) {
	src := &countingSource{calls: map[string]int{}}
	cache, clock, _ := newTestCache(src, 2, time.Hour)
	ctx := context.Background()

	cache.Fetch(ctx, "a")
	clock.t = clock.t.Add(time.Second)
	cache.Fetch(ctx, "b")
	clock.t = clock.t.Add(time.Second)

	// 拉取 c 期间 a 和 b 都被读过
	src.during = func(videoID string) {
		if videoID != "c" {
			return
		}
		clock.t = clock.t.Add(time.Second)
		cache.Fetch(ctx, "a")
		clock.t = clock.t.Add(time.Second)
		cache.Fetch(ctx, "b")
		clock.t = clock.t.Add(time.Second)
	}
	cache.Fetch(ctx, "c")
	src.during = nil

	cache.Fetch(ctx, "c")
	if src.calls["c"] != 1 {
		t.Errorf("freshly fetched entry was evicted, calls = %d", src.calls["c"])
	}
	cache.Fetch(ctx, "a")
	if src.calls["a"] != 2 {
		t.Errorf("a should have been evicted, calls = %d", src.calls["a"])
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	src := &countingSource{calls: map[string]int{}, err: errors.New("down")}
	cache, _, collector := newTestCache(src, 10, time.Hour)

	if _, err := cache.Fetch(context.Background(), "a"); err == nil {
		t.Fatal("expected error")
	}
	if cache.Len() != 0 {
		t.Error("failed fetch must not be cached")
	}
	if collector.GetCounterValue("transcript_fetch_failed") != 1 {
		t.Error("failure not counted")
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	src := &countingSource{calls: map[string]int{}}
	cache, _, _ := newTestCache(src, 10, time.Hour)
	ctx := context.Background()

	cache.Fetch(ctx, "a")
	cache.Fetch(ctx, "b")
	cache.Delete("a")
	if cache.Len() != 1 {
		t.Errorf("Len after delete = %d", cache.Len())
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after clear = %d", cache.Len())
	}
}
