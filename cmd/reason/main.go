// Command reason answers a single anomaly reasoning request from the command
// line. It reads the same environment configuration as the server and shares
// its cache, so an explanation generated here is served as a hit by the API
// and vice versa.
//
// The request is read as JSON from -file (or stdin with "-file -"), or built
// from the individual field flags. With -key only the cache key for -lat,
// -lon and -date is printed and nothing is contacted.
//
// Usage:
//
//	go run ./cmd/reason -lat 35.6762 -lon 139.6503 -date 2023-01-15 \
//	  -co2 420.5 -deviation 5.0 -severity high -zscore 2.5
//
//	echo '{"lat":35.6762,...}' | go run ./cmd/reason -file -
//
//	go run ./cmd/reason -key -lat 35.6762 -lon 139.6503 -date 2023-01-15
//
// Exit status is 0 on success, 2 for an invalid request and 1 for any other
// failure.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/couchcryptid/reasoning-cache-service/internal/bootstrap"
	"github.com/couchcryptid/reasoning-cache-service/internal/config"
	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/couchcryptid/reasoning-cache-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitInvalid = 2
)

// fieldFlags maps request fields to the flag that supplies them.
var fieldFlags = []struct {
	field string
	usage string
}{
	{domain.FieldLat, "latitude in degrees"},
	{domain.FieldLon, "longitude in degrees"},
	{domain.FieldCO2, "measured CO2 concentration (ppm)"},
	{domain.FieldDeviation, "deviation from the expected level (ppm)"},
	{domain.FieldDate, "observation period label, e.g. 2023-01-15"},
	{domain.FieldSeverity, "anomaly severity: high, medium or low"},
	{domain.FieldZScore, "statistical z-score of the anomaly"},
}

func main() {
	fs := flag.NewFlagSet("reason", flag.ExitOnError)
	file := fs.String("file", "", `read the request as JSON from this path ("-" for stdin)`)
	keyOnly := fs.Bool("key", false, "print the cache key for -lat, -lon and -date and exit")
	for _, f := range fieldFlags {
		fs.String(f.field, "", f.usage)
	}
	_ = fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, fs, *file, *keyOnly, os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, fs *flag.FlagSet, file string, keyOnly bool, stdin io.Reader, stdout, stderr io.Writer) int {
	raw, err := readRequest(fs, file, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "read request: %v\n", err)
		return exitInvalid
	}

	if keyOnly {
		key, err := keyFor(raw)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitInvalid
		}
		fmt.Fprintln(stdout, key)
		return exitOK
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitFailure
	}
	logger := observability.NewLoggerTo(stderr, cfg)

	app, err := bootstrap.New(ctx, cfg, clockwork.NewRealClock(), logger, observability.NewMetrics())
	if err != nil {
		logger.Error("failed to build service", "error", err)
		return exitFailure
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}()

	resp, err := app.Service.Handle(ctx, raw)
	// Let a canceled miss finish writing to the cache before exiting.
	app.Service.Wait()
	if err != nil {
		return reportError(stderr, logger, err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Error("write response", "error", err)
		return exitFailure
	}
	return exitOK
}

// readRequest decodes the JSON request from file, or collects the field flags
// that were set. Unset flags are left out so validation reports them missing.
func readRequest(fs *flag.FlagSet, file string, stdin io.Reader) (map[string]any, error) {
	if file == "" {
		raw := make(map[string]any)
		fs.Visit(func(f *flag.Flag) {
			for _, ff := range fieldFlags {
				if ff.field == f.Name {
					raw[f.Name] = f.Value.String()
				}
			}
		})
		return raw, nil
	}

	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var raw map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if raw == nil {
		return nil, errors.New("invalid JSON: expected an object")
	}
	return raw, nil
}

func keyFor(raw map[string]any) (domain.CacheKey, error) {
	lat, err := floatField(raw, domain.FieldLat, 90)
	if err != nil {
		return "", err
	}
	lon, err := floatField(raw, domain.FieldLon, 180)
	if err != nil {
		return "", err
	}
	v, ok := raw[domain.FieldDate]
	if !ok || v == nil {
		return "", fmt.Errorf("%s is required", domain.FieldDate)
	}
	date, isString := v.(string)
	if !isString {
		return "", fmt.Errorf("%s must be a string", domain.FieldDate)
	}
	if strings.TrimSpace(date) == "" {
		return "", fmt.Errorf("%s must not be empty", domain.FieldDate)
	}
	return domain.DeriveCacheKey(lat, lon, date), nil
}

// floatField reads a coordinate and checks it lies within [-limit, limit].
func floatField(raw map[string]any, name string, limit float64) (float64, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", name)
	}
	f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if f < -limit || f > limit {
		return 0, fmt.Errorf("%s must be within [%g, %g]", name, -limit, limit)
	}
	return f, nil
}

func reportError(stderr io.Writer, logger *slog.Logger, err error) int {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(stderr, "%s: %s\n", verr.Kind().Label(), verr.Message())
		return exitInvalid
	}
	logger.Error("reasoning request failed", "error", err)
	return exitFailure
}
