// Package parser extracts structured JSON from free-form model output,
// tolerating markdown fences and stray prose around the object.
package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseError means no JSON object could be recovered from the model text.
// The orchestrator does not retry it through the provider backoff loop; it
// triggers at most one reinforced "JSON only" reprompt.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("could not parse JSON from model response: %v (raw: %q)", e.Err, raw)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse recovers a JSON object from raw model text. Strategies in order:
// direct parse, markdown fence stripping, first balanced {...} substring.
func Parse(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)

	var result map[string]any
	if err := json.Unmarshal([]byte(trimmed), &result); err == nil {
		return result, nil
	}

	if fenced, ok := stripFences(trimmed); ok {
		if err := json.Unmarshal([]byte(fenced), &result); err == nil {
			return result, nil
		}
	}

	if candidate, ok := firstBalancedObject(trimmed); ok {
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
	}

	return nil, &ParseError{Raw: raw, Err: fmt.Errorf("no valid JSON object found")}
}

// stripFences removes a leading ```json (or bare ```) fence and its closing
// fence.
func stripFences(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start == -1 {
		return "", false
	}
	rest := s[start+3:]
	// Tolerate a language tag on the opening fence
	if newline := strings.IndexByte(rest, '\n'); newline != -1 {
		firstLine := strings.TrimSpace(rest[:newline])
		if firstLine == "json" || firstLine == "JSON" || firstLine == "" {
			rest = rest[newline+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

// firstBalancedObject scans for the first balanced top-level {...} block,
// respecting string literals and escapes.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// String returns the string field named key, or fallback when missing or
// not a string.
func String(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// Float returns the numeric field named key, coercing stringified numbers,
// or fallback.
func Float(m map[string]any, key string, fallback float64) float64 {
	v, ok := m[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return fallback
}

// Bool returns the boolean field named key, coercing "true"/"false"
// strings, or fallback.
func Bool(m map[string]any, key string, fallback bool) bool {
	v, ok := m[key]
	if !ok {
		return fallback
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return fallback
}

// StringSlice returns the array field named key with its string elements.
// Non-string elements are skipped.
func StringSlice(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ObjectSlice returns the array field named key with its object elements.
func ObjectSlice(m map[string]any, key string) []map[string]any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// Clamp bounds v into [min, max]. Out-of-range model output is clamped
// rather than rejected.
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
