package codec

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/stashkv/internal/core/domain"
)

// ParseJSON unmarshals data into a generic tree, keeping numbers as
// json.Number so integers survive beyond 2^53.
func ParseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, domain.ErrMalformedValue.WithDetails("invalid JSON").WithCause(err)
	}
	return tree, nil
}

// Decode reverses Encode. Integer literals come back as int64, or uint64
// above math.MaxInt64; everything else numeric comes back as float64. Tagged objects come back as their native type.
func Decode(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return u, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, domain.ErrMalformedValue.WithDetailsf("number %q", t.String())
		}
		return f, nil
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			d, err := Decode(el)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case map[string]any:
		if tag, ok := t[TagKey].(string); ok {
			return decodeTagged(tag, t)
		}
		return decodeObject(t)
	}
	return v, nil
}

func decodeObject(obj map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for k, el := range obj {
		d, err := Decode(el)
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

func decodeTagged(tag string, obj map[string]any) (any, error) {
	switch tag {
	case tagNumber:
		switch obj["value"] {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return nil, domain.ErrMalformedValue.WithDetailsf("unknown number sentinel %v", obj["value"])

	case tagBigInt:
		s, _ := obj["value"].(string)
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, domain.ErrMalformedValue.WithDetailsf("bigint %q", s)
		}
		return n, nil

	case tagDate:
		s, _ := obj["value"].(string)
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, domain.ErrMalformedValue.WithDetailsf("date %q", s).WithCause(err)
		}
		return ts, nil

	case tagRegexp:
		src, _ := obj["source"].(string)
		flags, _ := obj["flags"].(string)
		if flags != "" {
			src = "(?" + flags + ")" + src
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, domain.ErrMalformedValue.WithDetailsf("regexp %q", src).WithCause(err)
		}
		return re, nil

	case tagBytes:
		return decodeBase64(obj["data"])

	case tagTypedArray:
		return decodeTypedArray(obj)

	case tagBlob:
		data, err := decodeBase64(obj["data"])
		if err != nil {
			return nil, err
		}
		b := Blob{Data: data}
		b.Name, _ = obj["name"].(string)
		b.MediaType, _ = obj["mediaType"].(string)
		return b, nil

	case tagMap:
		entries, ok := obj["entries"].([]any)
		if !ok {
			return nil, domain.ErrMalformedValue.WithDetails("map entries missing")
		}
		out := make(map[any]any, len(entries))
		for _, e := range entries {
			pair, ok := e.([]any)
			if !ok || len(pair) != 2 {
				return nil, domain.ErrMalformedValue.WithDetails("map entry is not a pair")
			}
			k, err := Decode(pair[0])
			if err != nil {
				return nil, err
			}
			if !isHashable(k) {
				return nil, domain.ErrMalformedValue.WithDetailsf("map key of type %T", k)
			}
			val, err := Decode(pair[1])
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil

	case tagSet:
		vals, ok := obj["values"].([]any)
		if !ok {
			return nil, domain.ErrMalformedValue.WithDetails("set values missing")
		}
		out := make(Set, len(vals))
		for i, el := range vals {
			d, err := Decode(el)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil

	case tagObject:
		inner, ok := obj["value"].(map[string]any)
		if !ok {
			return nil, domain.ErrMalformedValue.WithDetails("escaped object missing")
		}
		return decodeObject(inner)
	}

	return nil, domain.ErrMalformedValue.WithDetailsf("unknown tag %q", tag)
}

func isHashable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

// isIntegerLiteral reports whether a JSON number has neither a fraction
// nor an exponent.
func isIntegerLiteral(s string) bool {
	return !strings.ContainsAny(s, ".eE")
}
