package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fields projects a loosely typed payload into typed values. Absent or null
// optional values become zero; the first failure on a required field is kept
// in err and makes the frame Skipped.
type fields struct {
	p   map[string]any
	err error
}

func (f *fields) fail(key string, err error) {
	if f.err == nil {
		f.err = fmt.Errorf("field %s: %w", key, err)
	}
}

func (f *fields) text(key string) string {
	switch v := f.p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return jsonText(v)
	}
}

// raw stores lists and objects as compact JSON text.
func (f *fields) raw(key string) string {
	switch v := f.p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return jsonText(v)
	}
}

func (f *fields) real(key string) float64 {
	v, _ := toFloat(f.p[key])
	return v
}

func (f *fields) integer(key string) int64 {
	v, _ := toInt(f.p[key])
	return v
}

func (f *fields) flag(key string) bool {
	v, _ := toBool(f.p[key])
	return v
}

func (f *fields) mustReal(key string) float64 {
	v, err := toFloat(f.p[key])
	if err != nil {
		f.fail(key, err)
	}
	return v
}

func (f *fields) mustInt(key string) int64 {
	v, err := toInt(f.p[key])
	if err != nil {
		f.fail(key, err)
	}
	return v
}

func (f *fields) mustText(key string) string {
	v := f.text(key)
	if strings.TrimSpace(v) == "" {
		f.fail(key, errEmpty)
	}
	return v
}

var errEmpty = errors.New("empty value")

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int64(math.Round(f)), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return int64(math.Round(f)), nil
	default:
		f, err := toFloat(v)
		return int64(math.Round(f)), err
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case string:
		if strings.TrimSpace(b) == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(b))
	default:
		f, err := toFloat(v)
		return f != 0, err
	}
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
