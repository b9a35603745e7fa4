package format

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// keyValuePattern matches key=value tokens embedded in free-text messages.
// The value is either a brace/bracket/paren-delimited literal or a bare
// token.
var keyValuePattern = regexp.MustCompile(`(\w+)=(\{.*?\}|\[.*?\]|\(.*?\)|\S+)`)

// pair preserves the order tokens appeared in the message.
type pair struct {
	key   string
	value any
}

// extractPairs pulls key=value tokens out of a message, converting each value
// through the typed parse chain. A later token for the same key wins, but the
// key keeps its first position.
func extractPairs(message string) []pair {
	matches := keyValuePattern.FindAllStringSubmatch(message, -1)
	if len(matches) == 0 {
		return nil
	}

	pairs := make([]pair, 0, len(matches))
	index := make(map[string]int, len(matches))
	for _, m := range matches {
		key, value := m[1], convertValue(m[2])
		if i, seen := index[key]; seen {
			pairs[i].value = value
			continue
		}
		index[key] = len(pairs)
		pairs = append(pairs, pair{key: key, value: value})
	}
	return pairs
}

// stripPairs removes every matched key=value token from the message.
func stripPairs(message string) string {
	return strings.TrimSpace(keyValuePattern.ReplaceAllString(message, ""))
}

// cleanMessage collapses the newlines and tabs used by multi-line log
// messages into spaces.
func cleanMessage(message string) string {
	message = strings.ReplaceAll(message, "\n", " ")
	message = strings.ReplaceAll(message, "\t", " ")
	return strings.TrimSpace(message)
}

// convertValue runs the ordered parse chain: boolean keyword, then structural
// literal, then the raw string as fallback. Parse failures never surface.
func convertValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}

	if v, err := parseLiteral(raw); err == nil {
		return v
	}
	return raw
}

var errNotLiteral = errors.New("not a literal")

// parseLiteral parses numbers, quoted strings, and brace/bracket/paren
// delimited containers, recursively. Anything else is rejected so the caller
// falls back to the raw string.
func parseLiteral(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, errNotLiteral
	}

	switch {
	case s == "None" || s == "null" || s == "nil":
		return nil, nil
	case len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]:
		return s[1 : len(s)-1], nil
	case s[0] == '{' && s[len(s)-1] == '}':
		return parseDict(s[1 : len(s)-1])
	case s[0] == '[' && s[len(s)-1] == ']':
		return parseList(s[1 : len(s)-1])
	case s[0] == '(' && s[len(s)-1] == ')':
		return parseList(s[1 : len(s)-1])
	}

	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, errNotLiteral
}

func parseDict(body string) (any, error) {
	out := map[string]any{}
	for _, item := range splitTop(body, ',') {
		if strings.TrimSpace(item) == "" {
			continue
		}
		kv := splitTop(item, ':')
		if len(kv) != 2 {
			return nil, errNotLiteral
		}
		key, err := parseLiteral(kv[0])
		if err != nil {
			return nil, err
		}
		value, err := parseLiteral(kv[1])
		if err != nil {
			return nil, err
		}
		keyStr, ok := key.(string)
		if !ok {
			keyStr = strings.TrimSpace(kv[0])
		}
		out[keyStr] = value
	}
	return out, nil
}

func parseList(body string) (any, error) {
	out := []any{}
	for _, item := range splitTop(body, ',') {
		if strings.TrimSpace(item) == "" {
			continue
		}
		value, err := parseLiteral(item)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

// splitTop splits on sep at nesting depth zero, honoring quotes.
func splitTop(s string, sep byte) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{' || c == '[' || c == '(':
			depth++
		case c == '}' || c == ']' || c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
