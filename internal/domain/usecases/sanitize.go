package usecases

import (
	"encoding/json"
	"math"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

// SanitizeMetadata flattens raw metadata into the scalar map the index
// accepts. Strings, booleans, integers (as int64) and floats (as float64)
// are kept; nil values are removed; lists, maps and anything else are
// dropped and reported so the caller can log them. Idempotent.
func SanitizeMetadata(raw entities.RawMetadata) (entities.Metadata, []*entities.UnsupportedMetadataValueError) {
	out := make(entities.Metadata)
	if raw == nil {
		return out, nil
	}
	var dropped []*entities.UnsupportedMetadataValueError
	for k, v := range raw.Fields() {
		if v == nil {
			continue
		}
		if s, ok := scalar(v); ok {
			out[k] = s
			continue
		}
		dropped = append(dropped, &entities.UnsupportedMetadataValueError{Key: k, Value: v})
	}
	return out, dropped
}

// scalar coerces v to the canonical scalar representation.
func scalar(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint:
		return uintScalar(uint64(x))
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return uintScalar(x)
	case float32:
		return float64(x), true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return f, true
		}
		return nil, false
	}
	return nil, false
}

func uintScalar(u uint64) (any, bool) {
	if u > math.MaxInt64 {
		return float64(u), true
	}
	return int64(u), true
}
