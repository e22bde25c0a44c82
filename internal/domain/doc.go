// Package domain models CO2 anomaly observations and the cached explanations
// produced for them.
//
// # Requests
//
// A request describes one anomalous observation from a satellite CO2 scan:
//
//	lat, lon    WGS-84 coordinates, [-90, 90] and [-180, 180]
//	co2         column-averaged concentration in ppm, >= 0
//	deviation   signed deviation from the regional baseline in ppm
//	date        observation period label (a date or scan file name), opaque
//	severity    "low", "medium" or "high"
//	zscore      statistical score of the deviation, may be negative
//
// Validation collects every problem before reporting: missing fields first,
// then type and range problems, then severity membership. See [ValidateRequest].
//
// # Cache Keys
//
// Explanations are keyed on location and period only. Two observations of the
// same point in the same period share one explanation regardless of their
// measured values. Keys are SHA-256 hex digests of
//
//	"<lat>_<lon>_<date>"  e.g. "35.6762_139.6503_2023-01-15"
//
// where coordinates are rounded to four decimal places (about 11 m) and
// printed in shortest round-trip form with a ".0" suffix for integral values.
// The format matches keys already stored by earlier deployments, so it must
// not change. See [DeriveCacheKey].
//
// # Expiration
//
// Entries carry ExpiresAt = CachedAt + horizon (90 days by default). Stores
// reclaim expired entries on their own schedule; until they do, lookups must
// still report them as absent. The request path never deletes entries.
package domain
