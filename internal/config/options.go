package config

import (
	"strconv"
	"strings"
)

// Options is a free-form option bag attached to a config section (parser
// options, for example). Accessors tolerate both JSON and YAML decoded
// shapes and fall back to the supplied default on a missing or mistyped key.
type Options map[string]any

func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

func (o Options) String(key, def string) string {
	if v, ok := o.Any(key).(string); ok {
		return v
	}
	return def
}

func (o Options) Bool(key string, def bool) bool {
	switch v := o.Any(key).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func (o Options) Int(key string, def int) int {
	switch v := o.Any(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string option, e.g. a CSV delimiter.
// The escape "\t" is accepted for tab.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o.Any(key).(string)
	if !ok || s == "" {
		return def
	}
	if s == `\t` {
		return '\t'
	}
	return []rune(s)[0]
}

// StringMap returns a string->string view of a nested object option.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := o.Any(key).(type) {
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
