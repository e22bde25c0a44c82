package domain

import (
	"fmt"
	"time"
)

// Severity is the closed set of anomaly severities a caller may report.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities lists the accepted values in display order.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity returns the Severity for s, or false if s is not in the closed set.
func ParseSeverity(s string) (Severity, bool) {
	for _, sev := range Severities {
		if Severity(s) == sev {
			return sev, true
		}
	}
	return "", false
}

// Label is the fixed display form used in prompts.
func (s Severity) Label() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	default:
		return string(s)
	}
}

// ReasoningRequest is a validated observation that needs an explanation.
type ReasoningRequest struct {
	Latitude  float64
	Longitude float64
	Value     float64 // CO2 concentration in ppm
	Deviation float64 // signed deviation from the baseline in ppm
	TimeLabel string  // opaque period identifier, e.g. "2023-01-15"
	Severity  Severity
	ZScore    float64
}

// CacheKey returns the key the request is cached under.
func (r ReasoningRequest) CacheKey() CacheKey {
	return DeriveCacheKey(r.Latitude, r.Longitude, r.TimeLabel)
}

// Metadata snapshots the request for audit purposes. It is stored alongside
// cached reasoning and never consulted for lookups.
func (r ReasoningRequest) Metadata() map[string]any {
	return map[string]any{
		"lat":       r.Latitude,
		"lon":       r.Longitude,
		"co2":       r.Value,
		"deviation": r.Deviation,
		"date":      r.TimeLabel,
		"severity":  string(r.Severity),
		"zscore":    r.ZScore,
	}
}

func (r ReasoningRequest) String() string {
	return fmt.Sprintf("(%g, %g) %s", r.Latitude, r.Longitude, r.TimeLabel)
}

// CacheEntry is a persisted explanation.
type CacheEntry struct {
	Key           CacheKey       `json:"cache_key"`
	ReasoningText string         `json:"reasoning"`
	CachedAt      time.Time      `json:"cached_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewCacheEntry stamps an entry written at now that lives for ttl.
func NewCacheEntry(key CacheKey, text string, metadata map[string]any, now time.Time, ttl time.Duration) CacheEntry {
	return CacheEntry{
		Key:           key,
		ReasoningText: text,
		CachedAt:      now,
		ExpiresAt:     now.Add(ttl),
		Metadata:      metadata,
	}
}

// Expired reports whether the entry must be treated as absent at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
