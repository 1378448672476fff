package batchz

import (
	"fmt"
	"maps"
	"math"
)

// Record is an open mapping of string keys to scalar values. It models
// sensor readings ({"temp": 22.5}), transactions ({"buy": 100}) and the
// JSON-like records that flow through pipelines.
type Record map[string]any

// Has reports whether key is present.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Float returns the numeric value under key, or 0 when the key is missing
// or not a number.
func (r Record) Float(key string) float64 {
	n, ok := toNumber(r[key])
	if !ok {
		return 0
	}
	return n.float()
}

// Int returns the integer value under key, truncating floats, or 0 when the
// key is missing or not a number.
func (r Record) Int(key string) int64 {
	n, ok := toNumber(r[key])
	if !ok {
		return 0
	}
	if n.integral {
		return n.i
	}
	return int64(n.f)
}

// Clone returns a shallow copy. Values are scalars so this is sufficient.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// AsRecord returns v as a Record when it is a Record or a map[string]any.
func AsRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	}
	return nil, false
}

// AsBatch returns v as a batch when it is a sequence. nil is an empty batch.
// Typed slices common in Go callers and config decoding are converted.
func AsBatch(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case []any:
		return s, true
	case []int:
		return convert(s), true
	case []int64:
		return convert(s), true
	case []float64:
		return convert(s), true
	case []float32:
		return convert(s), true
	case []string:
		return convert(s), true
	case []Record:
		return convert(s), true
	case []map[string]any:
		return convert(s), true
	}
	return nil, false
}

func convert[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// number is a numeric item normalised to either an int64 or a float64.
type number struct {
	i        int64
	f        float64
	integral bool
}

func (n number) float() float64 {
	if n.integral {
		return float64(n.i)
	}
	return n.f
}

// toNumber accepts Go's integer and floating point kinds. Booleans are not
// numbers and are rejected explicitly.
func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case bool:
		return number{}, false
	case int:
		return number{i: int64(n), integral: true}, true
	case int8:
		return number{i: int64(n), integral: true}, true
	case int16:
		return number{i: int64(n), integral: true}, true
	case int32:
		return number{i: int64(n), integral: true}, true
	case int64:
		return number{i: n, integral: true}, true
	case uint:
		return unsigned(uint64(n)), true
	case uint8:
		return number{i: int64(n), integral: true}, true
	case uint16:
		return number{i: int64(n), integral: true}, true
	case uint32:
		return number{i: int64(n), integral: true}, true
	case uint64:
		return unsigned(n), true
	case float32:
		return number{f: float64(n)}, true
	case float64:
		return number{f: n}, true
	}
	return number{}, false
}

// unsigned keeps values beyond the int64 range as floats.
func unsigned(n uint64) number {
	if n > math.MaxInt64 {
		return number{f: float64(n)}
	}
	return number{i: int64(n), integral: true}
}

// describe names the shape of v for rejection messages.
func describe(v any) string {
	if v == nil {
		return "nothing"
	}
	if _, ok := AsRecord(v); ok {
		return "a record"
	}
	if _, ok := v.(string); ok {
		return "text"
	}
	if _, ok := toNumber(v); ok {
		return "a number"
	}
	if _, ok := AsBatch(v); ok {
		return "a sequence"
	}
	return fmt.Sprintf("%T", v)
}
