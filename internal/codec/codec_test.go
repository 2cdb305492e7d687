package codec

import (
	"errors"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/yndnr/stashkv/internal/core/domain"
)

// roundTrip pushes v through JSON the way the encryption layer does.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	data, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal(%T) error = %v", v, err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", data, err)
	}
	return out
}

func TestRoundTrip_Tagged(t *testing.T) {
	bigN, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"bigint", bigN, bigN},
		{"negative bigint", big.NewInt(-42), big.NewInt(-42)},
		{"bytes", []byte{0, 1, 2, 255}, []byte{0, 1, 2, 255}},
		{"int8 array", []int8{-128, 0, 127}, []int8{-128, 0, 127}},
		{"int16 array", []int16{-32768, 1, 32767}, []int16{-32768, 1, 32767}},
		{"uint16 array", []uint16{0, 65535}, []uint16{0, 65535}},
		{"int32 array", []int32{math.MinInt32, math.MaxInt32}, []int32{math.MinInt32, math.MaxInt32}},
		{"uint32 array", []uint32{math.MaxUint32}, []uint32{math.MaxUint32}},
		{"int64 array", []int64{math.MinInt64, math.MaxInt64}, []int64{math.MinInt64, math.MaxInt64}},
		{"uint64 array", []uint64{math.MaxUint64}, []uint64{math.MaxUint64}},
		{"float32 array", []float32{1.5, -2.25}, []float32{1.5, -2.25}},
		{"float64 array", []float64{math.Pi, -0.5}, []float64{math.Pi, -0.5}},
		{"empty typed array", []int16{}, []int16{}},
		{
			"blob",
			Blob{Data: []byte("png"), Name: "a.png", MediaType: "image/png"},
			Blob{Data: []byte("png"), Name: "a.png", MediaType: "image/png"},
		},
		{
			"int-keyed map",
			map[int]string{1: "a", 2: "b"},
			map[any]any{int64(1): "a", int64(2): "b"},
		},
		{"set", NewSet(1, "two", 1), Set{int64(1), "two"}},
		{
			"object with tag key",
			map[string]any{TagKey: "date", "x": 1},
			map[string]any{TagKey: "date", "x": int64(1)},
		},
		{
			"nested",
			map[string]any{"tags": NewSet("a"), "raw": []byte("z"), "n": []any{1.5, "s", nil, true}},
			map[string]any{"tags": Set{"a"}, "raw": []byte("z"), "n": []any{1.5, "s", nil, true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.in)
			if gb, ok := got.(*big.Int); ok {
				if gb.Cmp(tt.want.(*big.Int)) != 0 {
					t.Errorf("got %s, want %s", gb, tt.want)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRoundTrip_Floats(t *testing.T) {
	if got := roundTrip(t, math.NaN()).(float64); !math.IsNaN(got) {
		t.Errorf("NaN round trip = %v", got)
	}
	if got := roundTrip(t, math.Inf(1)).(float64); !math.IsInf(got, 1) {
		t.Errorf("+Inf round trip = %v", got)
	}
	if got := roundTrip(t, math.Inf(-1)).(float64); !math.IsInf(got, -1) {
		t.Errorf("-Inf round trip = %v", got)
	}
	if got := roundTrip(t, 2.5); got != 2.5 {
		t.Errorf("2.5 round trip = %v", got)
	}
	if got := roundTrip(t, int64(1<<60)); got != int64(1<<60) {
		t.Errorf("large int round trip = %v", got)
	}
}

func TestRoundTrip_Numbers(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"max uint64", uint64(math.MaxUint64)},
		{"uint64 above int64", []any{int64(math.MaxInt64), uint64(1 << 63)}},
		{"min int64", int64(math.MinInt64)},
		{"integral float", map[string]any{"ratio": 2.0}},
		{"negative integral float", -7.0},
		{"large integral float", 1e21},
		{"small float", 1e-9},
		{"float pair", []any{2.0, int64(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roundTrip(t, tt.in); !reflect.DeepEqual(got, tt.in) {
				t.Errorf("round trip = %#v, want %#v", got, tt.in)
			}
		})
	}

	if got := roundTrip(t, math.Copysign(0, -1)).(float64); got != 0 || !math.Signbit(got) {
		t.Errorf("-0 round trip = %v", got)
	}
}

func TestRoundTrip_Date(t *testing.T) {
	in := time.Date(2024, 2, 29, 13, 14, 15, 123456789, time.FixedZone("X", 3600))
	got := roundTrip(t, in).(time.Time)
	if !got.Equal(in) {
		t.Errorf("date round trip = %v, want %v", got, in)
	}
}

func TestRoundTrip_Regexp(t *testing.T) {
	tests := []string{`ab+c`, `(?i)hello\s+world`, `(?ms)^x.$`, `(?i:only)group`}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			in := regexp.MustCompile(src)
			got := roundTrip(t, in).(*regexp.Regexp)
			if got.String() != in.String() {
				t.Errorf("regexp round trip = %q, want %q", got.String(), in.String())
			}
		})
	}

	enc, _ := Encode(regexp.MustCompile(`(?i)abc`))
	obj := enc.(map[string]any)
	if obj["source"] != "abc" || obj["flags"] != "i" {
		t.Errorf("encoded regexp = %v, want source abc flags i", obj)
	}
}

func TestEncode_Struct(t *testing.T) {
	type profile struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	got := roundTrip(t, profile{Name: "ada", Age: 36})
	want := map[string]any{"name": "ada", "age": int64(36)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("struct round trip = %#v, want %#v", got, want)
	}
}

func TestEncode_CircularReference(t *testing.T) {
	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	shared := []any{1}
	dag := map[string]any{"a": shared, "b": shared}

	type node struct{ Next *node }
	loop := &node{}
	loop.Next = loop

	for name, v := range map[string]any{"cycle": cyclic, "shared": dag, "pointer": loop} {
		t.Run(name, func(t *testing.T) {
			_, err := Encode(v)
			if !errors.Is(err, domain.ErrCircularReference) {
				t.Errorf("Encode error = %v, want ErrCircularReference", err)
			}
		})
	}
}

func TestEncode_ZeroSizePointers(t *testing.T) {
	type empty struct{}
	tests := map[string]any{
		"pointers": []any{&empty{}, &empty{}},
		"slices":   map[string]any{"a": []struct{}{{}}, "b": []struct{}{{}}},
	}
	for name, v := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Encode(v); err != nil {
				t.Errorf("Encode error = %v", err)
			}
		})
	}
}

func TestEncode_SeenSetIsPerCall(t *testing.T) {
	shared := map[string]any{"x": 1}
	for i := 0; i < 3; i++ {
		if _, err := Encode(shared); err != nil {
			t.Fatalf("call %d: Encode error = %v", i, err)
		}
	}
}

func TestEncode_Unsupported(t *testing.T) {
	for name, v := range map[string]any{
		"chan":    make(chan int),
		"func":    func() {},
		"complex": complex(1, 2),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Encode(v); !errors.Is(err, domain.ErrUnsupportedValue) {
				t.Errorf("Encode error = %v, want ErrUnsupportedValue", err)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := map[string]string{
		"unknown tag":     `{"__kvtype":"pointer"}`,
		"bad bigint":      `{"__kvtype":"bigint","value":"12x"}`,
		"bad date":        `{"__kvtype":"date","value":"yesterday"}`,
		"bad base64":      `{"__kvtype":"bytes","data":"@@"}`,
		"bad typed width": `{"__kvtype":"typedarray","kind":"int16","data":"AQ=="}`,
		"bad map entry":   `{"__kvtype":"map","entries":[[1]]}`,
		"bad json":        `{"__kvtype":`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(in)); !errors.Is(err, domain.ErrMalformedValue) {
				t.Errorf("Unmarshal error = %v, want ErrMalformedValue", err)
			}
		})
	}
}

func TestSet(t *testing.T) {
	s := NewSet("a", "b", "a", []int{1})
	if len(s) != 3 {
		t.Errorf("len(NewSet) = %d, want 3", len(s))
	}
	if !s.Has("b") || s.Has("c") || !s.Has([]int{1}) {
		t.Error("Has() reported wrong membership")
	}
}
