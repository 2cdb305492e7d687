package ttl

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/pipeline"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    time.Duration
		wantErr bool
	}{
		{"int millis", 1500, 1500 * time.Millisecond, false},
		{"int64 millis", int64(50), 50 * time.Millisecond, false},
		{"float millis", 2.5, 2500 * time.Microsecond, false},
		{"json number", json.Number("250"), 250 * time.Millisecond, false},
		{"zero", 0, 0, false},
		{"negative", -1000, -time.Second, false},
		{"duration", 3 * time.Second, 3 * time.Second, false},
		{"seconds", "30s", 30 * time.Second, false},
		{"minutes", "15m", 15 * time.Minute, false},
		{"hours", "2h", 2 * time.Hour, false},
		{"days", "7d", 7 * 24 * time.Hour, false},
		{"zero string", "0s", 0, false},
		{"unknown unit", "5w", 0, true},
		{"missing unit", "10", 0, true},
		{"go syntax", "1h30m", 0, true},
		{"negative string", "-5s", 0, true},
		{"spaces", " 5s", 0, true},
		{"overflow", "99999999999999999999d", 0, true},
		{"NaN", math.NaN(), 0, true},
		{"infinite", math.Inf(1), 0, true},
		{"bool", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidDuration) {
					t.Errorf("ParseDuration(%v) error = %v, want ErrInvalidDuration", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%v) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveExpires(t *testing.T) {
	ts := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"epoch millis", int64(1_900_000_000_000), 1_900_000_000_000, false},
		{"float epoch", float64(1_900_000_000_000), 1_900_000_000_000, false},
		{"time", ts, ts.UnixMilli(), false},
		{"rfc3339", "2030-01-02T03:04:05Z", ts.UnixMilli(), false},
		{"date only", "2030-01-02", time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli(), false},
		{"garbage", "next tuesday", 0, true},
		{"slice", []int{1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveExpires(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveExpires(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveExpires(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	clock := func() time.Time { return now }

	tests := []struct {
		name       string
		defaultTTL time.Duration
		in         domain.Metadata
		want       domain.Metadata
	}{
		{
			name: "no expiry and no default",
			in:   nil,
			want: nil,
		},
		{
			name: "metadata without expiry passes through",
			in:   domain.Metadata{"owner": "ada"},
			want: domain.Metadata{"owner": "ada"},
		},
		{
			name: "relative ttl becomes expires",
			in:   domain.Metadata{"ttl": "10s", "owner": "ada"},
			want: domain.Metadata{"expires": int64(1_010_000), "owner": "ada"},
		},
		{
			name: "absolute expires is kept",
			in:   domain.Metadata{"expires": float64(2_000_000)},
			want: domain.Metadata{"expires": int64(2_000_000)},
		},
		{
			name: "ttl wins over expires",
			in:   domain.Metadata{"ttl": 500, "expires": int64(9_999_999)},
			want: domain.Metadata{"expires": int64(1_000_500)},
		},
		{
			name:       "default applies when nothing supplied",
			defaultTTL: time.Minute,
			in:         nil,
			want:       domain.Metadata{"expires": int64(1_060_000)},
		},
		{
			name:       "explicit ttl beats default",
			defaultTTL: time.Minute,
			in:         domain.Metadata{"ttl": "1s"},
			want:       domain.Metadata{"expires": int64(1_001_000)},
		},
		{
			name:       "explicit expires beats default",
			defaultTTL: time.Minute,
			in:         domain.Metadata{"expires": int64(5)},
			want:       domain.Metadata{"expires": int64(5)},
		},
		{
			name: "zero ttl expires immediately",
			in:   domain.Metadata{"ttl": 0},
			want: domain.Metadata{"expires": int64(1_000_000)},
		},
		{
			name: "negative ttl lands in the past",
			in:   domain.Metadata{"ttl": -1000},
			want: domain.Metadata{"expires": int64(999_000)},
		},
		{
			name: "null ttl is dropped",
			in:   domain.Metadata{"ttl": nil},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Normalizer{DefaultTTL: tt.defaultTTL, Now: clock}
			got, err := n.Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Normalize() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Normalize()[%q] = %#v, want %#v", k, got[k], v)
				}
			}
			if _, ok := got["ttl"]; ok {
				t.Error("ttl must never survive normalization")
			}
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := domain.Metadata{"ttl": "5s"}
	if _, err := NewNormalizer(0).Normalize(in); err != nil {
		t.Fatal(err)
	}
	if in["ttl"] != "5s" || len(in) != 1 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestHook(t *testing.T) {
	now := time.UnixMilli(0)
	h := NewHook(&Normalizer{Now: func() time.Time { return now }})
	if h.Name() != "ttl" {
		t.Errorf("Name() = %q", h.Name())
	}

	oc := pipeline.NewOperationContext("ns", domain.OpSet, "a")
	oc.Metadata = domain.Metadata{"ttl": 50}
	if err := h.Before(context.Background(), oc); err != nil {
		t.Fatal(err)
	}
	if oc.Metadata["expires"] != int64(50) {
		t.Errorf("expires = %#v, want 50", oc.Metadata["expires"])
	}

	bad := pipeline.NewOperationContext("ns", domain.OpSet, "a")
	bad.Metadata = domain.Metadata{"ttl": "soon"}
	if err := h.Before(context.Background(), bad); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Errorf("Before(bad ttl) error = %v, want ErrInvalidDuration", err)
	}

	get := pipeline.NewOperationContext("ns", domain.OpGet, "a")
	get.Metadata = domain.Metadata{"ttl": "soon"}
	if err := h.Before(context.Background(), get); err != nil {
		t.Errorf("non-set operations must be ignored, got %v", err)
	}
}
