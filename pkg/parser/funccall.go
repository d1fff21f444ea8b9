package parser

import (
	"strconv"
	"strings"
)

// callExpr is one extracted do(...) or finish(...) invocation.
type callExpr struct {
	name string
	args map[string]argValue
}

type argValue struct {
	str  string
	list []float64
	num  float64
	kind argKind
}

type argKind int

const (
	argString argKind = iota
	argList
	argNumber
)

// extractCall finds the last do(...) or finish(...) invocation in raw and
// returns the text before it as thinking. Models in this family emit
// free-form reasoning followed by exactly one call; taking the last
// occurrence tolerates reasoning that mentions the verbs.
func extractCall(dialect, raw string) (thinking string, call callExpr, err error) {
	start, name := lastCallStart(raw)
	if start < 0 {
		return "", callExpr{}, newParseError(dialect, "no do() or finish() call found")
	}

	open := start + len(name)
	argText, err := scanParens(dialect, raw[open:])
	if err != nil {
		return "", callExpr{}, err
	}

	args, err := parseArgs(dialect, argText)
	if err != nil {
		return "", callExpr{}, err
	}

	thinking = strings.TrimSpace(raw[:start])
	return thinking, callExpr{name: name, args: args}, nil
}

// lastCallStart returns the byte offset and verb of the last call
// keyword followed by an open paren.
func lastCallStart(raw string) (int, string) {
	best := -1
	verb := ""
	for _, name := range []string{"do", "finish"} {
		idx := 0
		for {
			i := strings.Index(raw[idx:], name+"(")
			if i < 0 {
				break
			}
			pos := idx + i
			// Reject matches inside a longer identifier, e.g. "redo(".
			if pos > 0 && isIdentChar(raw[pos-1]) {
				idx = pos + 1
				continue
			}
			if pos > best {
				best = pos
				verb = name
			}
			idx = pos + 1
		}
	}
	return best, verb
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// scanParens consumes text starting at '(' and returns the argument text
// up to the matching ')', honoring quoted strings and bracket nesting.
func scanParens(dialect, s string) (string, error) {
	if len(s) == 0 || s[0] != '(' {
		return "", newParseError(dialect, "malformed call: missing open paren")
	}
	depth := 0
	inString := false
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				return s[1:i], nil
			}
		}
	}
	return "", newParseError(dialect, "malformed call: unterminated arguments")
}

// parseArgs splits "key=value, key=value" on top-level commas.
func parseArgs(dialect, text string) (map[string]argValue, error) {
	args := make(map[string]argValue)
	for _, part := range splitTopLevel(text) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.Index(part, "=")
		if eq < 0 {
			return nil, newParseError(dialect, "malformed argument %q", part)
		}
		key := strings.TrimSpace(part[:eq])
		val, err := parseValue(dialect, key, strings.TrimSpace(part[eq+1:]))
		if err != nil {
			return nil, err
		}
		args[key] = val
	}
	return args, nil
}

func splitTopLevel(text string) []string {
	var parts []string
	depth := 0
	inString := false
	var quote byte
	last := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, text[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, text[last:])
	return parts
}

func parseValue(dialect, key, raw string) (argValue, error) {
	if raw == "" {
		return argValue{}, newParseError(dialect, "empty value for %q", key)
	}
	switch raw[0] {
	case '"', '\'':
		s, err := unquote(raw)
		if err != nil {
			return argValue{}, newParseError(dialect, "bad string for %q: %v", key, err)
		}
		return argValue{kind: argString, str: s}, nil
	case '[':
		list, err := parseNumberList(raw)
		if err != nil {
			return argValue{}, newParseError(dialect, "bad list for %q: %v", key, err)
		}
		return argValue{kind: argList, list: list}, nil
	default:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return argValue{}, newParseError(dialect, "bad value for %q: %q", key, raw)
		}
		return argValue{kind: argNumber, num: n}, nil
	}
}

func unquote(raw string) (string, error) {
	quote := raw[0]
	if len(raw) < 2 || raw[len(raw)-1] != quote {
		return "", strconv.ErrSyntax
	}
	body := raw[1 : len(raw)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

func parseNumberList(raw string) ([]float64, error) {
	if len(raw) < 2 || raw[0] != '[' || raw[len(raw)-1] != ']' {
		return nil, strconv.ErrSyntax
	}
	body := strings.TrimSpace(raw[1 : len(raw)-1])
	if body == "" {
		return nil, nil
	}
	var list []float64
	for _, part := range strings.Split(body, ",") {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, nil
}
