package codec

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"reflect"

	"github.com/yndnr/stashkv/internal/core/domain"
)

// arrayKind describes one typed numeric slice layout.
type arrayKind struct {
	name   string
	elem   reflect.Kind
	bits   int
	signed bool
	float  bool
}

var arrayKinds = []arrayKind{
	{"int8", reflect.Int8, 8, true, false},
	{"int16", reflect.Int16, 16, true, false},
	{"uint16", reflect.Uint16, 16, false, false},
	{"int32", reflect.Int32, 32, true, false},
	{"uint32", reflect.Uint32, 32, false, false},
	{"int64", reflect.Int64, 64, true, false},
	{"uint64", reflect.Uint64, 64, false, false},
	{"float32", reflect.Float32, 32, true, true},
	{"float64", reflect.Float64, 64, true, true},
}

func kindByElem(k reflect.Kind) (arrayKind, bool) {
	for _, ak := range arrayKinds {
		if ak.elem == k {
			return ak, true
		}
	}
	return arrayKind{}, false
}

func kindByName(name string) (arrayKind, bool) {
	for _, ak := range arrayKinds {
		if ak.name == name {
			return ak, true
		}
	}
	return arrayKind{}, false
}

// encodeTypedArray packs fixed-width numeric slices little-endian.
// []byte is reported as a raw buffer rather than a typed array.
func encodeTypedArray(v reflect.Value) (any, bool) {
	elem := v.Type().Elem().Kind()
	if elem == reflect.Uint8 {
		return tagged(tagBytes, "data", base64.StdEncoding.EncodeToString(v.Bytes())), true
	}
	ak, ok := kindByElem(elem)
	if !ok {
		return nil, false
	}

	width := ak.bits / 8
	buf := make([]byte, v.Len()*width)
	for i := 0; i < v.Len(); i++ {
		putElem(buf[i*width:], ak, v.Index(i))
	}
	return map[string]any{
		TagKey:   tagTypedArray,
		"kind":   ak.name,
		"bits":   ak.bits,
		"signed": ak.signed,
		"data":   base64.StdEncoding.EncodeToString(buf),
	}, true
}

func putElem(b []byte, ak arrayKind, v reflect.Value) {
	var u uint64
	switch {
	case ak.float && ak.bits == 32:
		u = uint64(math.Float32bits(float32(v.Float())))
	case ak.float:
		u = math.Float64bits(v.Float())
	case ak.signed:
		u = uint64(v.Int())
	default:
		u = v.Uint()
	}
	switch ak.bits {
	case 8:
		b[0] = byte(u)
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(u))
	case 32:
		binary.LittleEndian.PutUint32(b, uint32(u))
	case 64:
		binary.LittleEndian.PutUint64(b, u)
	}
}

func decodeTypedArray(obj map[string]any) (any, error) {
	name, _ := obj["kind"].(string)
	ak, ok := kindByName(name)
	if !ok {
		return nil, domain.ErrMalformedValue.WithDetailsf("unknown typed array kind %q", name)
	}
	data, err := decodeBase64(obj["data"])
	if err != nil {
		return nil, err
	}
	width := ak.bits / 8
	if len(data)%width != 0 {
		return nil, domain.ErrMalformedValue.WithDetailsf("%s array has %d trailing bytes", ak.name, len(data)%width)
	}

	out := reflect.MakeSlice(reflect.SliceOf(typeOfKind(ak.elem)), len(data)/width, len(data)/width)
	for i := 0; i < out.Len(); i++ {
		b := data[i*width:]
		var u uint64
		switch ak.bits {
		case 8:
			u = uint64(b[0])
		case 16:
			u = uint64(binary.LittleEndian.Uint16(b))
		case 32:
			u = uint64(binary.LittleEndian.Uint32(b))
		case 64:
			u = binary.LittleEndian.Uint64(b)
		}
		el := out.Index(i)
		switch {
		case ak.float && ak.bits == 32:
			el.SetFloat(float64(math.Float32frombits(uint32(u))))
		case ak.float:
			el.SetFloat(math.Float64frombits(u))
		case ak.signed:
			el.SetInt(signExtend(u, ak.bits))
		default:
			el.SetUint(u)
		}
	}
	return out.Interface(), nil
}

func signExtend(u uint64, bits int) int64 {
	shift := 64 - bits
	return int64(u<<shift) >> shift
}

func typeOfKind(k reflect.Kind) reflect.Type {
	switch k {
	case reflect.Int8:
		return reflect.TypeOf(int8(0))
	case reflect.Int16:
		return reflect.TypeOf(int16(0))
	case reflect.Uint16:
		return reflect.TypeOf(uint16(0))
	case reflect.Int32:
		return reflect.TypeOf(int32(0))
	case reflect.Uint32:
		return reflect.TypeOf(uint32(0))
	case reflect.Int64:
		return reflect.TypeOf(int64(0))
	case reflect.Uint64:
		return reflect.TypeOf(uint64(0))
	case reflect.Float32:
		return reflect.TypeOf(float32(0))
	default:
		return reflect.TypeOf(float64(0))
	}
}

func decodeBase64(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, domain.ErrMalformedValue.WithDetails("binary payload is not a string")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, domain.ErrMalformedValue.WithDetails("binary payload is not base64").WithCause(err)
	}
	return b, nil
}
