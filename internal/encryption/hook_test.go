package encryption

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/yndnr/stashkv/internal/codec"
	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/keycache"
	"github.com/yndnr/stashkv/internal/pipeline"
	"github.com/yndnr/stashkv/pkg/crypto/adaptive"
)

func newHook(t *testing.T, p keycache.CredentialProvider) *Hook {
	t.Helper()
	keys, err := keycache.New(keycache.Config{Capacity: 4, Iterations: 1, Cipher: adaptive.CipherXChaCha20, Provider: p}, nil)
	if err != nil {
		t.Fatalf("keycache.New: %v", err)
	}
	return NewHook(keys, nil)
}

var testCred = keycache.Static(&keycache.Credential{Password: "pw", Salt: "salt"})

func seal(t *testing.T, h *Hook, key string, value any) *Envelope {
	t.Helper()
	oc := pipeline.NewOperationContext("ns", domain.OpSet, key)
	oc.Value = value
	if err := h.Before(context.Background(), oc); err != nil {
		t.Fatalf("Before: %v", err)
	}
	env, ok := oc.Value.(*Envelope)
	if !ok {
		t.Fatalf("value = %T, want *Envelope", oc.Value)
	}
	return env
}

func open(h *Hook, key string, stored any) (any, error) {
	oc := pipeline.NewOperationContext("ns", domain.OpGet, key)
	return h.After(context.Background(), oc, stored)
}

func TestHook_StringFormat(t *testing.T) {
	h := newHook(t, testCred)
	env := seal(t, h, "k", "plain")

	if env.Format != FormatString || env.Algorithm != string(adaptive.CipherXChaCha20) {
		t.Errorf("envelope = %+v", env)
	}
	got, err := open(h, "k", env)
	if err != nil || got != "plain" {
		t.Errorf("open = (%v, %v)", got, err)
	}
}

func TestHook_GenericMapEnvelope(t *testing.T) {
	h := newHook(t, testCred)
	env := seal(t, h, "k", []any{"a", int64(2)})

	stored := map[string]any{Marker: true, "alg": env.Algorithm, "fmt": env.Format, "ct": env.Ciphertext}
	got, err := open(h, "k", stored)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	list, ok := got.([]any)
	if !ok || len(list) != 2 || list[0] != "a" || list[1] != int64(2) {
		t.Errorf("open = %#v", got)
	}
}

func TestHook_OpenFailures(t *testing.T) {
	h := newHook(t, testCred)
	env := seal(t, h, "k", "plain")

	tests := []struct {
		name   string
		mutate func(e Envelope) Envelope
	}{
		{"wrong algorithm", func(e Envelope) Envelope { e.Algorithm = "aes-256-gcm"; return e }},
		{"bad base64", func(e Envelope) Envelope { e.Ciphertext = "!!"; return e }},
		{"tampered", func(e Envelope) Envelope { e.Ciphertext = e.Ciphertext[:len(e.Ciphertext)-4] + "AAAA"; return e }},
		{"unknown format", func(e Envelope) Envelope { e.Format = "xml"; return e }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.mutate(*env)
			if _, err := open(h, "k", &e); !errors.Is(err, domain.ErrDecryptionFailure) {
				t.Errorf("err = %v, want DecryptionFailure", err)
			}
		})
	}
}

func TestHook_NoCredentialOnRead(t *testing.T) {
	env := seal(t, newHook(t, testCred), "k", "plain")
	h := newHook(t, nil)
	if _, err := open(h, "k", env); !errors.Is(err, domain.ErrDecryptionFailure) {
		t.Errorf("err = %v, want DecryptionFailure", err)
	}
}

func TestHook_PassThrough(t *testing.T) {
	h := newHook(t, testCred)

	got, err := open(h, "k", map[string]any{"plain": true})
	if err != nil || got.(map[string]any)["plain"] != true {
		t.Errorf("non-envelope = (%v, %v)", got, err)
	}

	oc := pipeline.NewOperationContext("ns", domain.OpRemove, "k")
	if err := h.Before(context.Background(), oc); err != nil || oc.Value != nil {
		t.Errorf("remove touched: (%v, %v)", oc.Value, err)
	}
}

func TestHook_EnvelopeShapedPlaintext(t *testing.T) {
	type doc struct {
		Marker bool   `json:"__kvenc"`
		Alg    string `json:"alg"`
		Fmt    string `json:"fmt"`
		Ct     string `json:"ct"`
	}
	tests := []struct {
		name string
		in   any
	}{
		{"envelope map", map[string]any{Marker: true, "alg": "aes-gcm", "fmt": "string", "ct": "AAAA"}},
		{"escaped shape", map[string]any{Marker: escapedMarker, "value": int64(1)}},
		{"struct", doc{Marker: true, Alg: "aes-gcm", Fmt: "string", Ct: "AAAA"}},
	}
	h := newHook(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oc := pipeline.NewOperationContext("ns", domain.OpSet, "doc")
			oc.Value = tt.in
			if err := h.Before(context.Background(), oc); err != nil {
				t.Fatalf("Before: %v", err)
			}
			data, err := codec.Marshal(oc.Value)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			stored, err := codec.Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if _, ok := ParseEnvelope(stored); ok {
				t.Fatalf("stored plaintext %v parses as an envelope", stored)
			}

			got, err := open(h, "doc", stored)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			want, _ := codec.Unmarshal(mustMarshal(t, tt.in))
			if !reflect.DeepEqual(got, want) {
				t.Errorf("open = %#v, want %#v", got, want)
			}
		})
	}

	oc := pipeline.NewOperationContext("ns", domain.OpSet, "k")
	oc.Value = map[string]any{"plain": true}
	if err := h.Before(context.Background(), oc); err != nil {
		t.Fatalf("Before: %v", err)
	}
	if m, ok := oc.Value.(map[string]any); !ok || len(m) != 1 {
		t.Errorf("ordinary map rewritten to %v", oc.Value)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := codec.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return data
}

func TestHook_CodecFailureIsEncryptionFailure(t *testing.T) {
	h := newHook(t, testCred)
	oc := pipeline.NewOperationContext("ns", domain.OpSet, "k")
	oc.Value = make(chan int)

	err := h.Before(context.Background(), oc)
	if !errors.Is(err, domain.ErrEncryptionFailure) || !errors.Is(err, domain.ErrUnsupportedValue) {
		t.Errorf("err = %v", err)
	}
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"string", "x", false},
		{"no marker", map[string]any{"alg": "a", "fmt": "string", "ct": ""}, false},
		{"missing ct", map[string]any{Marker: true, "alg": "a", "fmt": "string"}, false},
		{"complete", map[string]any{Marker: true, "alg": "a", "fmt": "string", "ct": ""}, true},
		{"nil pointer", (*Envelope)(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ParseEnvelope(tt.v); ok != tt.want {
				t.Errorf("ParseEnvelope = %v, want %v", ok, tt.want)
			}
		})
	}
}
