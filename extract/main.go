// Package extract pulls the lead-field JSON block out of raw model output.
// Model responses are untrusted, noisy text: prose before and after the
// object, markdown fences, literal "null" placeholders. Extraction is a pure
// function of the input.
package extract

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"counselordev/leads"
)

// ErrInvalidJSON is returned when no syntactically valid JSON object exists
// anywhere in the input.
var ErrInvalidJSON = errors.New("no valid JSON object found in model output")

// Placeholder values the model emits when a field was not mentioned. Treated
// the same as JSON null.
var nullLiterals = map[string]bool{
	"null":    true,
	"None":    true,
	"N/A":     true,
	"unknown": true,
}

// Extract scans raw for the first valid JSON object and returns the
// recognized fields carrying a usable value. Null or placeholder values are
// absent from the result. A valid object with no recognized fields yields an
// empty map and a nil error.
func Extract(raw string, known []string) (leads.FieldMap, error) {
	obj, _, _, ok := firstObject(raw)
	if !ok {
		return nil, ErrInvalidJSON
	}

	recognized := make(map[string]bool, len(known))
	for _, name := range known {
		recognized[name] = true
	}

	fields := leads.FieldMap{}
	for key, val := range obj {
		if !recognized[key] {
			continue
		}
		s, usable := stringValue(val)
		if !usable {
			continue
		}
		fields[key] = s
	}
	return fields, nil
}

// Suggestions returns the reply chips the model proposed in its JSON block,
// nil when the block is missing or offers none. The model may send either an
// array of strings or one comma-separated string.
func Suggestions(raw string) []string {
	obj, _, _, ok := firstObject(raw)
	if !ok {
		return nil
	}

	var out []string
	switch v := obj["Suggestions"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" && !nullLiterals[s] {
				out = append(out, s)
			}
		}
	}
	return out
}

// Strip returns the conversational part of raw: the first JSON object and any
// markdown fences removed. Used for the reply shown to the user.
func Strip(raw string) string {
	if _, start, end, ok := firstObject(raw); ok {
		before := strings.TrimRight(raw[:start], " \t")
		after := strings.TrimLeft(raw[end:], " \t")
		switch {
		case before == "" || after == "":
			raw = before + after
		case strings.HasSuffix(before, "\n") || strings.HasPrefix(after, "\n"):
			raw = before + after
		default:
			// Mid-sentence splice: rejoin with a single space.
			raw = before + " " + after
		}
	}
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	return strings.TrimSpace(raw)
}

// firstObject finds the first substring of raw that decodes as a JSON object.
// A '{' that does not open valid JSON is skipped and the scan continues at
// the next brace.
func firstObject(raw string) (obj map[string]any, start, end int, ok bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(raw[i:]))
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			continue
		}
		return m, i, i + int(dec.InputOffset()), true
	}
	return nil, 0, 0, false
}

// stringValue renders a JSON value as a field string. Nulls, placeholder
// literals, empty strings and structured values are not usable.
func stringValue(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" || nullLiterals[s] {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
