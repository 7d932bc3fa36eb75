// Package jsonx pulls structured JSON values out of chatty model output.
//
// Model replies rarely arrive as clean JSON: the value may be wrapped in a
// markdown fence, preceded by prose, or followed by trailing commentary.
// Extract and DecodeFirst are deliberately lenient about the surroundings but
// commit to the first plausible candidate only.
package jsonx

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoJSON is returned when no JSON-like span exists in the input.
var ErrNoJSON = eris.New("jsonx: no JSON value found")

var fenceRE = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// Extract returns the most plausible single JSON span from raw model text.
//
// Order of preference: the first ```json fenced block; otherwise the first
// balanced brace-or-bracket span, with anything after the matching closing
// delimiter discarded. Braces inside quoted strings do not affect balance.
func Extract(raw string) (string, error) {
	if m := fenceRE.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if span := balancedSpan(raw); span != "" {
		return span, nil
	}
	return "", ErrNoJSON
}

// balancedSpan scans for the first '{' or '[' and returns the text up to its
// matching closing delimiter, tracking nesting depth and quoted-string state.
// Returns "" when no balanced span exists.
func balancedSpan(s string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

// DecodeFirst decodes the first JSON value in s, skipping leading noise and
// ignoring any trailing text after the value. Trailing garbage after a valid
// value is never an error.
func DecodeFirst(s string) (any, error) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}
	dec := json.NewDecoder(strings.NewReader(s[start:]))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, eris.Wrap(err, "jsonx: decode first value")
	}
	return v, nil
}

// ExtractAndDecode is the common Extract→DecodeFirst path. When extraction
// finds no span the raw text is still handed to DecodeFirst, since a bare
// value with leading noise can slip past the span scanner's assumptions.
func ExtractAndDecode(raw string) (any, error) {
	candidate, err := Extract(raw)
	if err != nil {
		candidate = raw
	}
	return DecodeFirst(candidate)
}
