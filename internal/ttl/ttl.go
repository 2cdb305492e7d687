// Package ttl turns caller-supplied expiry hints into an absolute
// expiry instant stored in record metadata.
package ttl

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/yndnr/stashkv/internal/core/domain"
)

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

var unitScale = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseDuration accepts a millisecond count (any Go integer or float
// type, or json.Number), a time.Duration, or a string such as "30s",
// "15m", "2h" or "7d". Zero and negative values are valid.
func ParseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		return parseDurationString(d)
	case json.Number:
		if i, err := d.Int64(); err == nil {
			return millis(float64(i))
		}
		f, err := d.Float64()
		if err != nil {
			return 0, domain.ErrInvalidDuration.WithDetailsf("%q is not a number", d.String())
		}
		return millis(f)
	}
	if f, ok := toFloat(v); ok {
		return millis(f)
	}
	return 0, domain.ErrInvalidDuration.WithDetailsf("unsupported ttl type %T", v)
}

func parseDurationString(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, domain.ErrInvalidDuration.WithDetailsf("%q does not match <digits><s|m|h|d>", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidDuration.WithDetailsf("%q is out of range", s)
	}
	scale := unitScale[m[2]]
	if n > int64(math.MaxInt64/scale) {
		return 0, domain.ErrInvalidDuration.WithDetailsf("%q is out of range", s)
	}
	return time.Duration(n) * scale, nil
}

func millis(f float64) (time.Duration, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, domain.ErrInvalidDuration.WithDetailsf("%v is not a finite duration", f)
	}
	ns := f * float64(time.Millisecond)
	if ns >= math.MaxInt64 || ns <= math.MinInt64 {
		return 0, domain.ErrInvalidDuration.WithDetailsf("%v ms is out of range", f)
	}
	return time.Duration(ns), nil
}

// ResolveExpires converts an absolute expiry into epoch milliseconds.
// It accepts epoch milliseconds as a number, a time.Time, or an RFC 3339
// timestamp or YYYY-MM-DD date string.
func ResolveExpires(v any) (int64, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli(), nil
	case *time.Time:
		if t == nil {
			break
		}
		return t.UnixMilli(), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UnixMilli(), nil
			}
		}
		return 0, domain.ErrInvalidDuration.WithDetailsf("%q is not a timestamp", t)
	}
	if ms, ok := domain.AsEpochMillis(v); ok {
		return ms, nil
	}
	return 0, domain.ErrInvalidDuration.WithDetailsf("unsupported expires type %T", v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
