package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fields walks the top level of a flat object and returns the raw value
// token of every key. Strings keep their quotes; arrays and nested objects
// are returned as their balanced bracket span. Later duplicates win.
func fields(line string) (map[string]string, error) {
	s := strings.TrimSpace(line)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	out := make(map[string]string, 8)
	i := 1
	end := len(s) - 1
	for {
		i = skipSpace(s, i)
		if i < end && s[i] == ',' {
			i++
			continue
		}
		if i >= end {
			return out, nil
		}
		if s[i] != '"' {
			return nil, fmt.Errorf("%w: expected key at offset %d", ErrMalformed, i)
		}
		keyEnd, err := scanString(s, i)
		if err != nil {
			return nil, err
		}
		key := s[i+1 : keyEnd-1]

		i = skipSpace(s, keyEnd)
		if i >= end || s[i] != ':' {
			return nil, fmt.Errorf("%w: missing ':' after key %q", ErrMalformed, key)
		}
		i = skipSpace(s, i+1)

		valEnd, err := scanValue(s, i, end)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		raw := strings.TrimSpace(s[i:valEnd])
		if raw == "" {
			return nil, fmt.Errorf("%w: empty value for key %q", ErrMalformed, key)
		}
		out[key] = raw
		i = valEnd
	}
}

// splitArray splits "[a,b,{c,d}]" on its top-level commas only.
// An empty array yields nil.
func splitArray(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '[' || raw[len(raw)-1] != ']' {
		return nil, fmt.Errorf("%w: not an array", ErrMalformed)
	}
	inner := raw[1 : len(raw)-1]
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}

	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(inner); i++ {
		switch c := inner[i]; c {
		case '"':
			j, err := scanString(inner, i)
			if err != nil {
				return nil, err
			}
			i = j - 1
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced %q", ErrMalformed, c)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unterminated array", ErrMalformed)
	}
	parts = append(parts, strings.TrimSpace(inner[start:]))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty array element", ErrMalformed)
		}
	}
	return parts, nil
}

// scanValue returns the index just past the value starting at i. Scalars
// end at the next top-level ',' or at end.
func scanValue(s string, i, end int) (int, error) {
	if i >= end {
		return i, nil
	}
	switch s[i] {
	case '"':
		return scanString(s, i)
	case '[', '{':
		return scanBalanced(s, i, end)
	}
	j := i
	for j < end && s[j] != ',' {
		switch s[j] {
		case '[', ']', '{', '}', '"':
			return 0, fmt.Errorf("%w: unexpected %q in scalar", ErrMalformed, s[j])
		}
		j++
	}
	return j, nil
}

// scanBalanced returns the index just past the bracket or brace opened at i.
func scanBalanced(s string, i, end int) (int, error) {
	depth := 0
	for j := i; j < end; j++ {
		switch s[j] {
		case '"':
			k, err := scanString(s, j)
			if err != nil {
				return 0, err
			}
			j = k - 1
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return j + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unterminated %q", ErrMalformed, s[i])
}

// scanString returns the index just past the closing quote of the string
// opened at i, honouring backslash escapes.
func scanString(s string, i int) (int, error) {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: unterminated string", ErrMalformed)
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\n') {
		i++
	}
	return i
}

func unquote(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(unquote(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrMalformed, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite number %q", ErrMalformed, raw)
	}
	return v, nil
}

// parseInt accepts integral values written in either integer or float form.
func parseInt(raw string) (int, error) {
	if n, err := strconv.Atoi(unquote(raw)); err == nil {
		return n, nil
	}
	v, err := parseFloat(raw)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: not an integer %q", ErrMalformed, raw)
	}
	return int(v), nil
}
