package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fields reads loosely typed values decoded from JSON or YAML.
type fields map[string]any

func (f fields) str(keys ...string) string {
	for _, k := range keys {
		switch v := f[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64, int, int64, json.Number:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// num returns the first present numeric field. present is false when none of
// the keys is set; err is set when a present value is not a number.
func (f fields) num(keys ...string) (v float64, present bool, err error) {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok || raw == nil {
			continue
		}
		switch x := raw.(type) {
		case float64:
			return x, true, nil
		case float32:
			return float64(x), true, nil
		case int:
			return float64(x), true, nil
		case int64:
			return float64(x), true, nil
		case json.Number:
			n, err := x.Float64()
			return n, true, err
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
			if s == "" {
				continue
			}
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, true, fmt.Errorf("field %s: %q is not a number", k, x)
			}
			return n, true, nil
		default:
			return 0, true, fmt.Errorf("field %s: unexpected type %T", k, raw)
		}
	}
	return 0, false, nil
}

// list accepts an array or a comma-separated string.
func (f fields) list(keys ...string) []string {
	for _, k := range keys {
		var out []string
		switch v := f[k].(type) {
		case []any:
			for _, item := range v {
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
					out = append(out, s)
				}
			}
		case []string:
			for _, s := range v {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func (f fields) boolean(key string) (bool, bool) {
	switch v := f[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	}
	return false, false
}

// objects returns the elements of an array field that are objects.
func (f fields) objects(key string) []fields {
	arr, _ := f[key].([]any)
	var out []fields
	for _, item := range arr {
		switch m := item.(type) {
		case map[string]any:
			out = append(out, fields(m))
		}
	}
	return out
}

type district struct {
	name  string
	extra fields
}

// districts reads an array of district names or {district, seasons,
// soil_types} objects; a comma-separated string is also accepted.
func (f fields) districts(key string) []district {
	var out []district
	arr, ok := f[key].([]any)
	if !ok {
		for _, s := range f.list(key) {
			out = append(out, district{name: s})
		}
		return out
	}
	for _, item := range arr {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, district{name: s})
			}
		case map[string]any:
			d := fields(v)
			if name := d.str("district", "name"); name != "" {
				out = append(out, district{name: name, extra: d})
			}
		}
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
}

// timestamp reads `timestamp` or `date` as a string, time value or unix seconds.
func (f fields) timestamp() (time.Time, error) {
	for _, k := range []string{"timestamp", "date", "time"} {
		switch v := f[k].(type) {
		case nil:
			continue
		case time.Time:
			return v.UTC(), nil
		case string:
			s := strings.TrimSpace(v)
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC(), nil
				}
			}
			return time.Time{}, fmt.Errorf("field %s: unrecognized time %q", k, v)
		default:
			secs, present, err := f.num(k)
			if err != nil || !present {
				return time.Time{}, fmt.Errorf("field %s: unrecognized time %v", k, v)
			}
			return time.Unix(int64(secs), 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("missing timestamp or date")
}
