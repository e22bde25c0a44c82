package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Request field names as they appear on the wire.
const (
	FieldLat       = "lat"
	FieldLon       = "lon"
	FieldCO2       = "co2"
	FieldDeviation = "deviation"
	FieldDate      = "date"
	FieldSeverity  = "severity"
	FieldZScore    = "zscore"
)

// RequiredFields lists every required field in reporting order.
var RequiredFields = []string{FieldLat, FieldLon, FieldCO2, FieldDeviation, FieldDate, FieldSeverity, FieldZScore}

// Domain floor for the measured concentration.
const minConcentration = 0

// ValidateRequest checks a decoded request body before any I/O happens.
// Presence is checked first for every field, then type and range, then
// severity membership; all problems found are reported together in a
// *ValidationError.
//
// Numeric fields accept JSON numbers or numeric strings. A null value counts
// as missing.
func ValidateRequest(raw map[string]any) (ReasoningRequest, error) {
	verr := &ValidationError{}

	for _, field := range RequiredFields {
		if v, ok := raw[field]; !ok || v == nil {
			verr.MissingFields = append(verr.MissingFields, field)
		}
	}

	var req ReasoningRequest
	number := func(field string, dst *float64, check func(float64) string) {
		v, ok := raw[field]
		if !ok || v == nil {
			return
		}
		f, err := toFloat(v)
		if err != nil {
			verr.Invalid = append(verr.Invalid, fmt.Sprintf("%s: %v", field, err))
			return
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			verr.Invalid = append(verr.Invalid, field+": must be a finite number")
			return
		}
		if check != nil {
			if problem := check(f); problem != "" {
				verr.Invalid = append(verr.Invalid, field+": "+problem)
				return
			}
		}
		*dst = f
	}

	number(FieldLat, &req.Latitude, within(-90, 90))
	number(FieldLon, &req.Longitude, within(-180, 180))
	number(FieldCO2, &req.Value, func(f float64) string {
		if f < minConcentration {
			return fmt.Sprintf("must be >= %d", minConcentration)
		}
		return ""
	})
	number(FieldDeviation, &req.Deviation, nil)

	if v, ok := raw[FieldDate]; ok && v != nil {
		s, isString := v.(string)
		switch {
		case !isString:
			verr.Invalid = append(verr.Invalid, FieldDate+": must be a string")
		case strings.TrimSpace(s) == "":
			verr.Invalid = append(verr.Invalid, FieldDate+": must not be empty")
		default:
			req.TimeLabel = s
		}
	}

	number(FieldZScore, &req.ZScore, nil)

	if v, ok := raw[FieldSeverity]; ok && v != nil {
		s, _ := v.(string)
		sev, valid := ParseSeverity(s)
		if valid {
			req.Severity = sev
		} else {
			verr.Severity = "severity must be one of: " + severityChoices()
		}
	}

	if !verr.empty() {
		return ReasoningRequest{}, verr
	}
	return req, nil
}

func severityChoices() string {
	names := make([]string, len(Severities))
	for i, sev := range Severities {
		names[i] = string(sev)
	}
	return strings.Join(names, ", ")
}

func within(lo, hi float64) func(float64) string {
	return func(f float64) string {
		if f < lo || f > hi {
			return fmt.Sprintf("must be within [%g, %g]", lo, hi)
		}
		return ""
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("must be a number, got %T", v)
	}
}
