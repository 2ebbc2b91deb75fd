// Package jsonutil provides tolerant JSON decoding for text produced by a
// generative model: direct decode first, then bounded shape repairs.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON indicates that no decodable JSON literal was found in the input.
var ErrNoJSON = errors.New("jsonutil: no JSON literal found")

// Unmarshal decodes raw into v, trying progressively looser readings:
//  1. the raw bytes as-is
//  2. the raw bytes with surrounding code fences and prose stripped
//  3. the largest balanced object/array literal inside the raw bytes
//
// Repaired reads change only the shape of the input, never its values.
// The returned bool reports whether a repair step was needed.
func Unmarshal(raw []byte, v any) (bool, error) {
	if err := json.Unmarshal(raw, v); err == nil {
		return false, nil
	}
	if stripped := StripFences(raw); !bytes.Equal(stripped, raw) {
		if err := json.Unmarshal(stripped, v); err == nil {
			return true, nil
		}
		raw = stripped
	}
	lit, ok := LargestLiteral(raw)
	if !ok {
		return false, ErrNoJSON
	}
	if err := json.Unmarshal(lit, v); err != nil {
		return false, err
	}
	return true, nil
}

// StripFences removes a surrounding Markdown code fence (``` or ```json) and
// trims whitespace. Input without a fence is returned trimmed.
func StripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line (e.g. "json").
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return []byte(strings.TrimSpace(s))
}

// LargestLiteral returns the largest balanced JSON object or array literal
// inside raw. Braces inside JSON strings are honored. Returns false when no
// balanced literal exists.
func LargestLiteral(raw []byte) ([]byte, bool) {
	var best []byte
	for i := 0; i < len(raw); i++ {
		open := raw[i]
		if open != '{' && open != '[' {
			continue
		}
		if end, ok := matchLiteral(raw, i); ok {
			lit := raw[i : end+1]
			if len(lit) > len(best) && json.Valid(lit) {
				best = lit
			}
			// Skip past this literal; nested literals are smaller.
			i = end
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func matchLiteral(raw []byte, start int) (int, bool) {
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// MarshalIndentNoEscape encodes v with indentation and without escaping
// <, >, & into unicode sequences. Used for prompt payloads and artifacts.
func MarshalIndentNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
