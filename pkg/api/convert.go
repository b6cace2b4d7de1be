package api

import (
	"math"
	"time"
)

// reply adapts a typed callback to the bridge's func(args ...any) form,
// converting the first argument. A nil cb sends no callback.
func reply[T any](cb func(T), convert func(any) T) any {
	if cb == nil {
		return nil
	}
	return func(args ...any) {
		cb(convert(first(args)))
	}
}

func done(cb func()) any {
	if cb == nil {
		return nil
	}
	return func(...any) { cb() }
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func asInt(v any) int {
	return int(math.Round(asNumber(v)))
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asStrings(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// asTime reads a millisecond timestamp.
func asTime(v any) time.Time {
	return time.UnixMilli(int64(asNumber(v)))
}

func asList[T any](v any, convert func(any) T) []T {
	items, _ := v.([]any)
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, convert(item))
	}
	return out
}
