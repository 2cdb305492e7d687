package codec

import (
	"encoding/base64"
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

var (
	bigIntType = reflect.TypeOf(big.Int{})
	timeType   = reflect.TypeOf(time.Time{})
	regexpType = reflect.TypeOf(regexp.Regexp{})
	blobType   = reflect.TypeOf(Blob{})
	setType    = reflect.TypeOf(Set{})
	numberType = reflect.TypeOf(json.Number(""))
)

// identity names one container instance. Slices are keyed by their
// backing array and length so distinct sub-slices stay distinct.
type identity struct {
	kind reflect.Kind
	ptr  uintptr
	len  int
}

// encoder owns the seen-set of a single Encode call.
type encoder struct {
	seen map[identity]struct{}
}

// Encode converts v into a tree of JSON-safe values: nil, bool, string,
// int64, uint64, float64, json.Number, []any and map[string]any.
//
// Encode fails with domain.ErrCircularReference when the same map, slice
// or pointer is reachable more than once, and with
// domain.ErrUnsupportedValue for channels, functions and complex numbers.
func Encode(v any) (any, error) {
	e := &encoder{seen: make(map[identity]struct{})}
	return e.encode(reflect.ValueOf(v))
}

func (e *encoder) enter(v reflect.Value) error {
	// Zero-size allocations share one address and cannot form a cycle.
	if k := v.Kind(); (k == reflect.Pointer || k == reflect.Slice) && v.Type().Elem().Size() == 0 {
		return nil
	}
	id := identity{kind: v.Kind(), ptr: v.Pointer()}
	if v.Kind() == reflect.Slice {
		id.len = v.Len()
	}
	if _, dup := e.seen[id]; dup {
		return domain.ErrCircularReference.WithDetailsf("%s reached twice", v.Type())
	}
	e.seen[id] = struct{}{}
	return nil
}

func (e *encoder) encode(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Type() {
	case bigIntType:
		return tagged(tagBigInt, "value", addr(v).Interface().(*big.Int).String()), nil
	case timeType:
		t := v.Interface().(time.Time)
		return tagged(tagDate, "value", t.Format(time.RFC3339Nano)), nil
	case regexpType:
		return encodeRegexp(addr(v).Interface().(*regexp.Regexp)), nil
	case blobType:
		b := v.Interface().(Blob)
		return map[string]any{
			TagKey:      tagBlob,
			"name":      b.Name,
			"mediaType": b.MediaType,
			"data":      base64.StdEncoding.EncodeToString(b.Data),
		}, nil
	case numberType:
		return v.Interface(), nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return encodeFloat(v.Float()), nil

	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return e.encode(v.Elem())

	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		switch v.Type().Elem() {
		case bigIntType, timeType, regexpType, blobType:
			return e.encode(v.Elem())
		}
		if err := e.enter(v); err != nil {
			return nil, err
		}
		return e.encode(v.Elem())

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		if err := e.enter(v); err != nil {
			return nil, err
		}
		return e.encodeMap(v)

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Len() > 0 {
			if err := e.enter(v); err != nil {
				return nil, err
			}
		}
		if v.Type() == setType {
			vals, err := e.encodeElems(v)
			if err != nil {
				return nil, err
			}
			return tagged(tagSet, "values", vals), nil
		}
		if t, ok := encodeTypedArray(v); ok {
			return t, nil
		}
		return e.encodeElems(v)

	case reflect.Array:
		return e.encodeElems(v)

	case reflect.Struct:
		return e.encodeStruct(v)
	}

	return nil, domain.ErrUnsupportedValue.WithDetailsf("cannot encode %s", v.Type())
}

func (e *encoder) encodeElems(v reflect.Value) ([]any, error) {
	out := make([]any, v.Len())
	for i := range out {
		ev, err := e.encode(v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

func (e *encoder) encodeMap(v reflect.Value) (any, error) {
	if v.Type().Key().Kind() == reflect.String {
		obj := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			ev, err := e.encode(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Key().String()] = ev
		}
		if _, clash := obj[TagKey]; clash {
			return tagged(tagObject, "value", obj), nil
		}
		return obj, nil
	}

	entries := make([]any, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := e.encode(iter.Key())
		if err != nil {
			return nil, err
		}
		val, err := e.encode(iter.Value())
		if err != nil {
			return nil, err
		}
		entries = append(entries, []any{k, val})
	}
	return tagged(tagMap, "entries", entries), nil
}

// encodeStruct renders exported fields as an object, honoring json tag
// names, "-" and omitempty. Field values keep their rich encodings.
func (e *encoder) encodeStruct(v reflect.Value) (any, error) {
	t := v.Type()
	obj := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty := f.Name, false
		if tag, ok := f.Tag.Lookup("json"); ok {
			if tag == "-" {
				continue
			}
			n, opts, _ := strings.Cut(tag, ",")
			if n != "" {
				name = n
			}
			omitEmpty = strings.Contains(opts, "omitempty")
		}
		fv := v.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		ev, err := e.encode(fv)
		if err != nil {
			return nil, err
		}
		obj[name] = ev
	}
	if _, clash := obj[TagKey]; clash {
		return tagged(tagObject, "value", obj), nil
	}
	return obj, nil
}

func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return tagged(tagNumber, "value", "NaN")
	case math.IsInf(f, 1):
		return tagged(tagNumber, "value", "Infinity")
	case math.IsInf(f, -1):
		return tagged(tagNumber, "value", "-Infinity")
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if isIntegerLiteral(s) {
		s += ".0"
	}
	return json.Number(s)
}

var leadingFlags = regexp.MustCompile(`^\(\?([imsU]+)\)`)

func encodeRegexp(re *regexp.Regexp) any {
	src, flags := re.String(), ""
	if m := leadingFlags.FindStringSubmatch(src); m != nil {
		flags = m[1]
		src = src[len(m[0]):]
	}
	return map[string]any{TagKey: tagRegexp, "source": src, "flags": flags}
}

// addr returns a pointer to v, copying v first when it is not addressable.
func addr(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

func tagged(tag, field string, value any) map[string]any {
	return map[string]any{TagKey: tag, field: value}
}
