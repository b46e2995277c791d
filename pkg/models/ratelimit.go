package models

import "time"

// RateLimitConfig is the per-backend rate limit, provided by the backend
// adapter. A zero MaxRequests means the backend is exempt from limiting.
type RateLimitConfig struct {
	MaxRequests int           `json:"max_requests" yaml:"max_requests"`
	Window      time.Duration `json:"window" yaml:"window"`
	MaxWait     time.Duration `json:"max_wait" yaml:"max_wait"`
}

// Exempt reports whether rate limiting is disabled for this backend.
func (c RateLimitConfig) Exempt() bool {
	return c.MaxRequests <= 0
}

// RateWindowState is the governor's rolling-window state. FirstCall anchors
// the window: it is set on the first recorded call and moves only when a full
// window elapses with no further limit signals.
type RateWindowState struct {
	FirstCall            time.Time `json:"first_call,omitempty"`
	LastLimit            time.Time `json:"last_limit,omitempty"`
	ConsecutiveLimitHits int       `json:"consecutive_limit_hits"`
}
