package recognition

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseValues splits a "Key=Value;Key2=Value2;" attribute or parameter
// string into its pairs. Whitespace around keys and values is trimmed and
// empty segments are skipped. For a segment without '=' it returns the
// byte offset where that segment starts.
func ParseValues(s string) (map[string]string, int, error) {
	values := make(map[string]string)
	pos := 0
	for _, seg := range strings.Split(s, ";") {
		start := pos
		pos += len(seg) + 1
		if strings.TrimSpace(seg) == "" {
			continue
		}
		key, value, ok := strings.Cut(seg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, start, fmt.Errorf("%w: segment %q at %d", ErrInvalidParameters, seg, start)
		}
		values[key] = strings.TrimSpace(value)
	}
	return values, -1, nil
}

// FormatValue renders a single attribute value the way trackers report it.
func FormatValue(key, value string) string {
	return key + "=" + value + ";"
}

// AttributeValue extracts the value of key from an attribute string.
func AttributeValue(attrs, key string) (string, error) {
	values, _, err := ParseValues(attrs)
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAttributeNotFound, key)
	}
	return v, nil
}

// ValueConfidence returns the confidence of key in an attribute string such
// as "Liveness=0.734;".
func ValueConfidence(attrs, key string) (float32, error) {
	v, err := AttributeValue(attrs, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", key, err)
	}
	return float32(f), nil
}
