package dispatch

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
)

// args reads tool arguments leniently: numbers may arrive as strings and
// strings as numbers.
type args map[string]any

func invalid(format string, a ...any) error {
	return errs.Errorf(errs.InvalidArguments, "decode arguments", format, a...)
}

func (a args) str(key string, required bool) (string, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		if required {
			return "", invalid("%s is required", key)
		}
		return "", nil
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case float64, int, int64, json.Number, bool:
		s = fmt.Sprint(v)
	default:
		return "", invalid("%s must be a string, got %T", key, raw)
	}
	if s == "" && required {
		return "", invalid("%s is required", key)
	}
	return s, nil
}

func (a args) integer(key string, def int) (int, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return def, nil
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, invalid("%s must be a number, got %q", key, v)
		}
		f = n
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return def, nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, invalid("%s must be a number, got %q", key, v)
		}
		f = n
	default:
		return 0, invalid("%s must be a number, got %T", key, raw)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, invalid("%s must be a whole number, got %v", key, f)
	}
	if f < 0 {
		return 0, invalid("%s must not be negative, got %v", key, f)
	}
	return int(f), nil
}
