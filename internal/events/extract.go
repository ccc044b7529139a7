package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\r?\n?(.*?)```")

// fencedBodies returns the contents of every fenced code block, in order.
func fencedBodies(reply string) []string {
	matches := fencePattern.FindAllStringSubmatch(reply, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// balancedObjects returns every top-level balanced {...} span in s, in
// order. Braces inside JSON strings are ignored. An opening brace that never
// closes is skipped and the scan resumes just after it.
func balancedObjects(s string) []string {
	var out []string
	for from := 0; from < len(s); {
		found, open := scanObjects(s[from:])
		out = append(out, found...)
		if open < 0 {
			break
		}
		from += open + 1
	}
	return out
}

// scanObjects collects balanced spans until the end of s. open is the offset
// of a top-level brace left unclosed, or -1.
func scanObjects(s string) (found []string, open int) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
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
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				found = append(found, s[start:i+1])
				start = -1
			}
		}
	}
	if depth > 0 {
		return found, start
	}
	return found, -1
}

// field is one key/value pair of a JSON object, in document order.
type field struct {
	Key   string
	Value json.RawMessage
}

// orderedObject decodes a JSON object keeping its key order.
func orderedObject(raw []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		fields = append(fields, field{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

// kind returns the first significant byte of a raw JSON value.
func kind(raw json.RawMessage) byte {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return 0
	}
	return t[0]
}

// textOf renders any JSON value as text: strings unquoted, scalars literal,
// containers compact.
func textOf(raw json.RawMessage) string {
	switch kind(raw) {
	case 0, 'n':
		return ""
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	}
	return strings.TrimSpace(string(raw))
}

var intPattern = regexp.MustCompile(`\d+`)

// intOf reads an integer from a JSON number or from the first run of digits
// in a JSON string ("Society-3", "year 12").
func intOf(raw json.RawMessage) (int, bool) {
	switch kind(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		return firstInt(s)
	case 0, 'n', '{', '[', 't', 'f':
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return int(f), true
}

func firstInt(s string) (int, bool) {
	m := intPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// objectEntries decodes a JSON array, keeping only its object elements.
func objectEntries(raw json.RawMessage) []map[string]json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]map[string]json.RawMessage, 0, len(items))
	for _, item := range items {
		if kind(item) != '{' {
			continue
		}
		var e map[string]json.RawMessage
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		lowered := make(map[string]json.RawMessage, len(e))
		for k, v := range e {
			lowered[strings.ToLower(strings.TrimSpace(k))] = v
		}
		out = append(out, lowered)
	}
	return out
}
