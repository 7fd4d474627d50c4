package vectordb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

// Operators understood by the in-process filter evaluator.
const (
	opAnd = "$and"
	opOr  = "$or"
	opEq  = "$eq"
	opNe  = "$ne"
	opGt  = "$gt"
	opGte = "$gte"
	opLt  = "$lt"
	opLte = "$lte"
	opIn  = "$in"
	opNin = "$nin"
)

// ValidateFilter checks that every operator in f is supported, without
// evaluating it.
func ValidateFilter(f entities.Filter) error {
	_, err := Match(nil, f)
	return err
}

// Match reports whether meta satisfies f. A nil or empty filter matches
// everything. Several keys at the same level are combined with AND.
// Unknown operators fail with entities.ErrUnsupportedFilter.
func Match(meta map[string]any, f entities.Filter) (bool, error) {
	return matchMap(meta, f)
}

func matchMap(meta map[string]any, f map[string]any) (bool, error) {
	ok := true
	for key, cond := range f {
		var (
			m   bool
			err error
		)
		switch {
		case key == opAnd || key == opOr:
			m, err = matchLogical(meta, key, cond)
		case strings.HasPrefix(key, "$"):
			return false, fmt.Errorf("%w: operator %s", entities.ErrUnsupportedFilter, key)
		default:
			m, err = matchField(meta, key, cond)
		}
		if err != nil {
			return false, err
		}
		// keep evaluating so unsupported operators are always reported
		ok = ok && m
	}
	return ok, nil
}

func matchLogical(meta map[string]any, op string, cond any) (bool, error) {
	subs, err := subFilters(cond)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", entities.ErrUnsupportedFilter, op, err)
	}
	result := op == opAnd
	for _, sub := range subs {
		m, err := matchMap(meta, sub)
		if err != nil {
			return false, err
		}
		if op == opAnd {
			result = result && m
		} else {
			result = result || m
		}
	}
	return result, nil
}

func subFilters(cond any) ([]map[string]any, error) {
	switch v := cond.(type) {
	case []map[string]any:
		return v, nil
	case []entities.Filter:
		out := make([]map[string]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, m)
			case entities.Filter:
				out = append(out, m)
			default:
				return nil, fmt.Errorf("expected filter object, got %T", item)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of filters, got %T", cond)
}

func matchField(meta map[string]any, key string, cond any) (bool, error) {
	value, present := meta[key]
	ops, isOps := cond.(map[string]any)
	if !isOps {
		if f, ok := cond.(entities.Filter); ok {
			ops, isOps = f, true
		}
	}
	if !isOps {
		if !isScalar(cond) {
			return false, fmt.Errorf("%w: %s: operand of type %T", entities.ErrUnsupportedFilter, key, cond)
		}
		return present && equal(value, cond), nil
	}

	ok := true
	for op, arg := range ops {
		m, err := apply(op, value, present, arg)
		if err != nil {
			return false, err
		}
		ok = ok && m
	}
	return ok, nil
}

func apply(op string, value any, present bool, arg any) (bool, error) {
	if op != opIn && op != opNin && !isScalar(arg) {
		return false, fmt.Errorf("%w: %s: operand of type %T", entities.ErrUnsupportedFilter, op, arg)
	}
	switch op {
	case opEq:
		return present && equal(value, arg), nil
	case opNe:
		return !present || !equal(value, arg), nil
	case opGt, opGte, opLt, opLte:
		if !present {
			return false, nil
		}
		c, ok := compare(value, arg)
		if !ok {
			return false, nil
		}
		switch op {
		case opGt:
			return c > 0, nil
		case opGte:
			return c >= 0, nil
		case opLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case opIn, opNin:
		list, ok := arg.([]any)
		if !ok {
			var err error
			if list, err = anySlice(arg); err != nil {
				return false, fmt.Errorf("%w: %s: %v", entities.ErrUnsupportedFilter, op, err)
			}
		}
		in := false
		for _, candidate := range list {
			if present && equal(value, candidate) {
				in = true
				break
			}
		}
		if op == opIn {
			return in, nil
		}
		return !in, nil
	}
	return false, fmt.Errorf("%w: operator %s", entities.ErrUnsupportedFilter, op)
}

func anySlice(arg any) ([]any, error) {
	switch v := arg.(type) {
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list, got %T", arg)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	_, ok := number(v)
	return ok
}

// equal compares scalars; numbers compare by value across int and float kinds.
func equal(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

// compare orders two numbers or two strings.
func compare(a, b any) (int, bool) {
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	x, ok := a.(string)
	if !ok {
		return 0, false
	}
	y, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(x, y), true
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
