package models

import "time"

// SystemMetrics is a point-in-time summary of service instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	HTTPRequestsTotal        uint64    `json:"http_requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	RequestsCreated          uint64    `json:"requests_created"`
	StatusTransitions        uint64    `json:"status_transitions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
