// Package codec converts rich Go values into a JSON-safe tagged tree and
// back.
//
// Values JSON cannot carry faithfully are replaced by an object whose
// TagKey field names the original type:
//
//	math.NaN()               {"__kvtype":"number","value":"NaN"}
//	*big.Int                 {"__kvtype":"bigint","value":"123456789012345678901234567890"}
//	time.Time                {"__kvtype":"date","value":"2024-01-02T03:04:05.000000006Z"}
//	*regexp.Regexp           {"__kvtype":"regexp","source":"ab+c","flags":"i"}
//	[]byte                   {"__kvtype":"bytes","data":"<base64>"}
//	[]int16 (and friends)    {"__kvtype":"typedarray","kind":"int16","bits":16,"signed":true,"data":"<base64 LE>"}
//	Blob                     {"__kvtype":"blob","name":"a.png","mediaType":"image/png","data":"<base64>"}
//	map[int]string           {"__kvtype":"map","entries":[[1,"a"],[2,"b"]]}
//	Set                      {"__kvtype":"set","values":[1,2,3]}
//
// A string-keyed object that already has a TagKey field is wrapped as
// {"__kvtype":"object","value":{...}} so decoding never misreads user
// data as a tag.
package codec

import (
	"encoding/json"
	"reflect"
)

// TagKey is the discriminant field of tagged objects.
const TagKey = "__kvtype"

// Tag values.
const (
	tagNumber     = "number"
	tagBigInt     = "bigint"
	tagDate       = "date"
	tagRegexp     = "regexp"
	tagBytes      = "bytes"
	tagTypedArray = "typedarray"
	tagBlob       = "blob"
	tagMap        = "map"
	tagSet        = "set"
	tagObject     = "object"
)

// Blob is an opaque binary payload with optional file attributes.
type Blob struct {
	Data      []byte
	Name      string
	MediaType string
}

// Set is an unordered collection of distinct values. Use NewSet to build
// one with duplicates removed.
type Set []any

// NewSet returns a Set holding each comparable value once, in first-seen
// order. Non-comparable values are kept as given.
func NewSet(values ...any) Set {
	s := make(Set, 0, len(values))
	seen := make(map[any]struct{}, len(values))
	for _, v := range values {
		if v != nil && !reflect.TypeOf(v).Comparable() {
			s = append(s, v)
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		s = append(s, v)
	}
	return s
}

// Has reports whether v is a member of s.
func (s Set) Has(v any) bool {
	for _, m := range s {
		if reflect.DeepEqual(m, v) {
			return true
		}
	}
	return false
}

// Marshal encodes v and renders the result as JSON.
func Marshal(v any) ([]byte, error) {
	tree, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Unmarshal parses JSON produced by Marshal and decodes it.
func Unmarshal(data []byte) (any, error) {
	tree, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	return Decode(tree)
}
