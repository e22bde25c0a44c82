package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokyoKey = "62a9c0b44bf9b424667d5c16dd1d5850e42fab20f8022c5dbb114f0b1d9420ac"

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("reason", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, f := range fieldFlags {
		fs.String(f.field, "", f.usage)
	}
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestReadRequest_FromFlags(t *testing.T) {
	fs := newFlagSet(t, "-lat", "35.6762", "-lon", "139.6503", "-severity", "high")

	raw, err := readRequest(fs, "", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		domain.FieldLat:      "35.6762",
		domain.FieldLon:      "139.6503",
		domain.FieldSeverity: "high",
	}, raw, "unset flags are omitted")
}

func TestReadRequest_FromStdin(t *testing.T) {
	stdin := strings.NewReader(`{"lat":35.6762,"lon":139.6503,"date":"2023-01-15"}`)

	raw, err := readRequest(newFlagSet(t), "-", stdin)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-15", raw[domain.FieldDate])
	assert.Equal(t, json.Number("35.6762"), raw[domain.FieldLat])
}

func TestReadRequest_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"date":"2023-01-15"}`), 0o600))

	raw, err := readRequest(newFlagSet(t), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-15", raw[domain.FieldDate])
}

func TestReadRequest_InvalidJSON(t *testing.T) {
	for name, body := range map[string]string{
		"malformed": `{"lat":`,
		"null":      `null`,
		"array":     `[1]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := readRequest(newFlagSet(t), "-", strings.NewReader(body))
			require.Error(t, err)
		})
	}
}

func TestRun_KeyOnly(t *testing.T) {
	fs := newFlagSet(t, "-lat", "35.6762", "-lon", "139.6503", "-date", "2023-01-15")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), fs, "", true, nil, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	assert.Equal(t, tokyoKey+"\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRun_KeyOnlyNeedsLocation(t *testing.T) {
	fs := newFlagSet(t, "-lat", "north", "-date", "2023-01-15")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), fs, "", true, nil, &stdout, &stderr)

	assert.Equal(t, exitInvalid, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "lat must be a number")
}

func TestRun_ValidationErrorExitsTwo(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("CREDENTIAL_SOURCE", "env")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("TRACING_EXPORTER", "none")
	fs := newFlagSet(t, "-lat", "35.6762", "-lon", "139.6503")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), fs, "", false, nil, &stdout, &stderr)

	assert.Equal(t, exitInvalid, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "missing: co2, deviation, date, severity, zscore")
}

func TestRun_KeyOnlyRejectsWhatValidationRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"numeric date", `{"lat":35.6762,"lon":139.6503,"date":20230115}`, "date must be a string"},
		{"blank date", `{"lat":35.6762,"lon":139.6503,"date":"  "}`, "date must not be empty"},
		{"latitude out of range", `{"lat":91,"lon":139.6503,"date":"2023-01-15"}`, "lat must be within [-90, 90]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), newFlagSet(t), "-", true, strings.NewReader(tt.body), &stdout, &stderr)

			assert.Equal(t, exitInvalid, code)
			assert.Empty(t, stdout.String())
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}
