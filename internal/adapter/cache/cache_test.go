package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sort"
	"testing"

	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/logger"
)

func testLogger() logger.StyledLogger {
	return logger.NewPlainStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeEmbedder maps prompt text to fixed vectors so similarity is under
// test control.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	fail    bool
}

func (f *fakeEmbedder) Generate(_ context.Context, _, _, _ string) (string, error) {
	return "", errors.New("not used in cache tests")
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding service down")
	}
	vec, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no fixture vector for " + text)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

func (f *fakeEmbedder) Version(_ context.Context) (string, error) {
	return "fake", nil
}

type storedPoint struct {
	entry  domain.CacheEntry
	vector []float32
}

type fakeIndex struct {
	searchErr error
	upsertErr error
	points    []storedPoint
	ensured   int
	available bool
	dropped   bool
}

func (f *fakeIndex) EnsureCollection(_ context.Context) error {
	f.ensured++
	f.available = true
	return nil
}

func (f *fakeIndex) Search(_ context.Context, vector []float32, limit int, threshold float64) ([]domain.CacheEntry, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}

	type scored struct {
		entry domain.CacheEntry
		score float64
	}
	var hits []scored
	for _, p := range f.points {
		score := dot(vector, p.vector)
		if score >= threshold {
			hits = append(hits, scored{entry: p.entry, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	entries := make([]domain.CacheEntry, 0, len(hits))
	for _, h := range hits {
		entries = append(entries, h.entry)
	}
	return entries, nil
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, vector []float32, entry domain.CacheEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.points = append(f.points, storedPoint{entry: entry, vector: vector})
	return nil
}

func (f *fakeIndex) Drop(_ context.Context) error {
	f.dropped = true
	f.points = nil
	return nil
}

func (f *fakeIndex) Count(_ context.Context) (int64, error) {
	return int64(len(f.points)), nil
}

func (f *fakeIndex) Available() bool {
	return f.available
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func newTestCache(t *testing.T, capacity int, embedder *fakeEmbedder, index *fakeIndex) *PromptCache {
	t.Helper()
	c, err := NewPromptCache(Config{
		EmbedModel: "nomic-embed-text",
		L1Capacity: capacity,
	}, embedder, index, testLogger())
	if err != nil {
		t.Fatalf("NewPromptCache: %v", err)
	}
	return c
}

func TestCacheExactHit(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"make tea": {1, 0}}}
	index := &fakeIndex{available: true}
	c := newTestCache(t, 10, embedder, index)

	c.Put(context.Background(), "make tea", "Brew a proper cup of tea.", "llama3")

	entry, ok := c.Get(context.Background(), "make tea")
	if !ok {
		t.Fatal("expected an exact hit")
	}
	if entry.Enhanced != "Brew a proper cup of tea." || entry.Model != "llama3" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if embedder.calls != 1 {
		t.Errorf("exact hits must not embed; embed calls = %d", embedder.calls)
	}

	stats := c.Stats(context.Background())
	if stats.Hits != 1 || stats.Misses != 0 {
		t.Errorf("hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

func TestCacheMiss(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}
	index := &fakeIndex{}
	c := newTestCache(t, 10, embedder, index)

	if _, ok := c.Get(context.Background(), "never seen"); ok {
		t.Fatal("expected a miss")
	}

	stats := c.Stats(context.Background())
	if stats.Hits != 0 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

func TestCacheSimilarityHit(t *testing.T) {
	// Both phrasings embed to the same direction, so the second one
	// should match the stored first.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"make me tea":   {3, 4},
		"brew me a tea": {6, 8},
		"walk the dog":  {0, 1},
	}}
	index := &fakeIndex{available: true}
	c := newTestCache(t, 10, embedder, index)

	c.Put(context.Background(), "make me tea", "Brew a proper cup of tea.", "llama3")

	entry, ok := c.Get(context.Background(), "brew me a tea")
	if !ok {
		t.Fatal("expected a similarity hit")
	}
	if entry.Enhanced != "Brew a proper cup of tea." {
		t.Errorf("unexpected entry %+v", entry)
	}

	stats := c.Stats(context.Background())
	if stats.L1Size != 1 {
		t.Errorf("similarity hits must not be copied into L1; size = %d", stats.L1Size)
	}
	if stats.Hits != 1 {
		t.Errorf("hits = %d", stats.Hits)
	}
}

func TestCacheSimilarityBelowThreshold(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"make me tea":  {1, 0},
		"walk the dog": {0, 1},
	}}
	index := &fakeIndex{available: true}
	c := newTestCache(t, 10, embedder, index)

	c.Put(context.Background(), "make me tea", "Brew a proper cup of tea.", "llama3")

	if _, ok := c.Get(context.Background(), "walk the dog"); ok {
		t.Fatal("orthogonal prompts must not match")
	}
}

func TestCacheEmbedFailureLeavesL1Only(t *testing.T) {
	embedder := &fakeEmbedder{fail: true}
	index := &fakeIndex{available: true}
	c := newTestCache(t, 10, embedder, index)

	c.Put(context.Background(), "make tea", "Brew a proper cup of tea.", "llama3")

	if len(index.points) != 0 {
		t.Errorf("failed embedding must not reach the vector store; points = %d", len(index.points))
	}
	if _, ok := c.Get(context.Background(), "make tea"); !ok {
		t.Error("the L1 entry must survive an embedding failure")
	}
}

func TestCacheSearchFailureIsAMiss(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"make tea": {1, 0}}}
	index := &fakeIndex{available: true, searchErr: errors.New("qdrant down")}
	c := newTestCache(t, 10, embedder, index)

	if _, ok := c.Get(context.Background(), "make tea"); ok {
		t.Fatal("a vector search failure must degrade to a miss")
	}
}

func TestCacheSkipsVectorTierWhenUnavailable(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"make tea": {1, 0}}}
	index := &fakeIndex{available: false}
	c := newTestCache(t, 10, embedder, index)

	c.Put(context.Background(), "make tea", "Brew a proper cup of tea.", "llama3")
	c.Get(context.Background(), "something else")

	if embedder.calls != 0 {
		t.Errorf("no embeddings should be requested while the store is unavailable; calls = %d", embedder.calls)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	embedder := &fakeEmbedder{fail: true}
	index := &fakeIndex{}
	c := newTestCache(t, 2, embedder, index)

	ctx := context.Background()
	c.Put(ctx, "a", "A", "m")
	c.Put(ctx, "b", "B", "m")
	c.Get(ctx, "a") // bump a
	c.Put(ctx, "c", "C", "m")

	if _, ok := c.Get(ctx, "a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Error("newest entry missing")
	}
}

func TestCacheUpsertsUnitVectors(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"make tea": {3, 4}}}
	index := &fakeIndex{available: true}
	c := newTestCache(t, 10, embedder, index)

	c.Put(context.Background(), "make tea", "Brew a proper cup of tea.", "llama3")

	if len(index.points) != 1 {
		t.Fatalf("expected one stored point, got %d", len(index.points))
	}
	length := math.Sqrt(dot(index.points[0].vector, index.points[0].vector))
	if math.Abs(length-1) > 1e-6 {
		t.Errorf("stored vector should be unit length, got %f", length)
	}
}

func TestCacheClear(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"make tea": {1, 0}}}
	index := &fakeIndex{available: true}
	c := newTestCache(t, 10, embedder, index)

	ctx := context.Background()
	c.Put(ctx, "make tea", "Brew a proper cup of tea.", "llama3")
	c.Get(ctx, "make tea")
	c.Get(ctx, "unknown")

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	stats := c.Stats(ctx)
	if stats.L1Size != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("stats not reset: %+v", stats)
	}
	if !index.dropped {
		t.Error("clear must drop the vector collection")
	}
	if index.ensured == 0 {
		t.Error("clear must recreate the vector collection")
	}
	if stats.L2Entries != 0 {
		t.Errorf("l2_entries = %d after clear", stats.L2Entries)
	}
}

func TestCacheClearWithoutVectorStore(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := &fakeIndex{available: false}
	c := newTestCache(t, 10, embedder, index)

	c.Put(context.Background(), "make tea", "Brew a proper cup of tea.", "llama3")
	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear without a vector store: %v", err)
	}
	if index.dropped {
		t.Error("clear must not touch an unavailable vector store")
	}
}

func TestCacheStatsShape(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"a": {1, 0}, "b": {0, 1}}}
	index := &fakeIndex{available: true}
	c := newTestCache(t, 5, embedder, index)

	ctx := context.Background()
	stats := c.Stats(ctx)
	if stats.HitRate != 0 {
		t.Errorf("idle hit rate should be 0, got %f", stats.HitRate)
	}
	if stats.L1Capacity != 5 {
		t.Errorf("l1_capacity = %d", stats.L1Capacity)
	}

	c.Put(ctx, "a", "A", "m")
	c.Get(ctx, "a")
	c.Get(ctx, "b")

	stats = c.Stats(ctx)
	if stats.HitRate != 0.5 {
		t.Errorf("hit rate = %f, expected 0.5", stats.HitRate)
	}
	if !stats.L2Available {
		t.Error("l2_available should mirror the store")
	}
	if stats.L2Entries != 1 {
		t.Errorf("l2_entries = %d", stats.L2Entries)
	}
}

func TestNormaliseZeroVector(t *testing.T) {
	vec := normalise([]float32{0, 0, 0})
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("zero vector must stay zero, got %v", vec)
		}
	}
}
