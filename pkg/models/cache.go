package models

import "time"

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries       int64   `json:"entries"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Sets          int64   `json:"sets"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
}

// CacheEntryInfo describes one cache entry for diagnostics.
type CacheEntryInfo struct {
	Key          string        `json:"key"`
	HitCount     int64         `json:"hit_count"`
	Age          time.Duration `json:"age"`
	RemainingTTL time.Duration `json:"remaining_ttl"`
	Expired      bool          `json:"expired"`
	Size         int           `json:"size"`
}
