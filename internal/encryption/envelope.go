// Package encryption encrypts record values at rest.
//
// On set the value is sealed into an Envelope with the per-key cipher
// from a keycache.Coalescer; the logical key is bound as associated data,
// so an envelope copied under another key does not decrypt. Strings are
// sealed as their raw bytes, everything else through the rich-value codec.
package encryption

import (
	"encoding/base64"
	"reflect"

	"github.com/yndnr/stashkv/internal/codec"
)

// Marker is the field that identifies a stored envelope.
const Marker = "__kvenc"

// escapedMarker is the Marker value of a wrapped plaintext record.
const escapedMarker = "plain"

// Plaintext formats.
const (
	FormatString = "string"
	FormatCodec  = "codec"
)

// Envelope is the stored form of an encrypted value.
type Envelope struct {
	Marker     bool   `json:"__kvenc"`
	Algorithm  string `json:"alg"`
	Format     string `json:"fmt"`
	Ciphertext string `json:"ct"`
}

func newEnvelope(alg, format string, sealed []byte) *Envelope {
	return &Envelope{
		Marker:     true,
		Algorithm:  alg,
		Format:     format,
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}
}

// ParseEnvelope recognizes an envelope in a decoded value. It accepts
// both *Envelope and the generic map produced by decoding stored JSON.
func ParseEnvelope(v any) (*Envelope, bool) {
	switch e := v.(type) {
	case *Envelope:
		return e, e != nil && e.Marker
	case map[string]any:
		if marker, _ := e[Marker].(bool); !marker {
			return nil, false
		}
		alg, ok1 := e["alg"].(string)
		format, ok2 := e["fmt"].(string)
		ct, ok3 := e["ct"].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, false
		}
		return &Envelope{Marker: true, Algorithm: alg, Format: format, Ciphertext: ct}, true
	default:
		return nil, false
	}
}

func (e *Envelope) sealed() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Ciphertext)
}

// escape wraps a plaintext value whose stored form carries the Marker
// field, so that a later read cannot mistake it for an envelope.
func escape(v any) (any, bool) {
	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Map, reflect.Struct:
	default:
		return v, false
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return v, false
	}
	decoded, err := codec.Unmarshal(data)
	if err != nil {
		return v, false
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return v, false
	}
	if _, clash := m[Marker]; !clash {
		return v, false
	}
	return map[string]any{Marker: escapedMarker, "value": v}, true
}

// unescape reverses escape on a decoded record.
func unescape(v any) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 2 {
		return v, false
	}
	if marker, _ := m[Marker].(string); marker != escapedMarker {
		return v, false
	}
	inner, ok := m["value"]
	return inner, ok
}
