package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// CacheKey is the 64-character lowercase hex SHA-256 digest identifying a
// location and observation period.
type CacheKey string

func (k CacheKey) String() string { return string(k) }

// coordinatePrecision is the number of decimal places coordinates are rounded
// to before keying. Changing it invalidates every stored key.
const coordinatePrecision = 4

const keySeparator = "_"

// DeriveCacheKey maps a location and period label to its cache key. Only
// these three values participate: requests that differ in measurement
// payload share a key.
//
// The input string is "<lat>_<lon>_<timeLabel>" with each coordinate rounded
// to four places and printed in shortest round-trip form with a ".0" suffix
// for integral values, so keys match those written by earlier deployments.
func DeriveCacheKey(lat, lon float64, timeLabel string) CacheKey {
	var b strings.Builder
	b.WriteString(formatCoordinate(lat))
	b.WriteString(keySeparator)
	b.WriteString(formatCoordinate(lon))
	b.WriteString(keySeparator)
	b.WriteString(timeLabel)

	sum := sha256.Sum256([]byte(b.String()))
	return CacheKey(hex.EncodeToString(sum[:]))
}

// formatCoordinate renders v rounded to coordinatePrecision places. Negative
// and positive zero both render as "0.0".
func formatCoordinate(v float64) string {
	if v == 0 {
		return "0.0"
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	// 'f' with a fixed precision rounds the exact binary value, which is what
	// a correctly rounded decimal round() does.
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', coordinatePrecision, 64), 64)
	if rounded == 0 {
		return "0.0"
	}

	abs := math.Abs(rounded)
	if abs >= 1e16 || abs < 1e-4 {
		return strconv.FormatFloat(rounded, 'e', -1, 64)
	}

	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
