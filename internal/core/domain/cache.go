package domain

import "time"

const (
	DefaultCacheCapacity       = 1000
	DefaultSimilarityThreshold = 0.85
	DefaultVectorDimension     = 768
	DefaultVectorCollection    = "prompt_cache"
)

// CacheEntry is one stored enhancement keyed by the exact prompt text (L1)
// or its embedding (L2).
type CacheEntry struct {
	Prompt    string    `json:"prompt"`
	Enhanced  string    `json:"response"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheStats is the shape reported by the stats endpoints.
type CacheStats struct {
	L1Size      int     `json:"l1_size"`
	L1Capacity  int     `json:"l1_capacity"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	L2Available bool    `json:"l2_available"`
	L2Entries   int64   `json:"l2_entries"`
}
