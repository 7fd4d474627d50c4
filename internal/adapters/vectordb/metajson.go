package vectordb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

// encodeMeta serializes scalar metadata to JSON. Floats always carry a
// fractional part so decodeMeta can tell them apart from integers.
func encodeMeta(m map[string]any) ([]byte, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: metadata %q is not a finite number", entities.ErrInvalidInput, k)
			}
			out[k] = json.Number(formatFloat(x))
		default:
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if f == math.Trunc(f) && !bytes.ContainsAny([]byte(s), ".e") {
		s += ".0"
	}
	return s
}

// decodeMeta reverses encodeMeta: integral literals become int64, others float64.
func decodeMeta(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	fixNumbers(raw)
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// fixNumbers converts json.Number values of m in place: integral literals
// become int64, others float64.
func fixNumbers(m map[string]any) {
	for k, v := range m {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			m[k] = i
		} else if f, err := n.Float64(); err == nil {
			m[k] = f
		}
	}
}
