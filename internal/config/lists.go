package config

import (
	"fmt"
	"strconv"
	"strings"
)

// unset spellings accepted in sweep lists.
var unsetWords = map[string]bool{"": true, "none": true, "null": true, "-": true}

// ParseFloatList parses a comma separated list such as "none,0.005,0.01".
// "none" yields a nil entry.
func ParseFloatList(s string) ([]*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []*float64
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if unsetWords[part] {
			out = append(out, nil)
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidConfig, part)
		}
		out = append(out, &v)
	}
	return out, nil
}

// ParseIntList parses a comma separated list such as "none,180,300".
func ParseIntList(s string) ([]*int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []*int
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if unsetWords[part] {
			out = append(out, nil)
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidConfig, part)
		}
		out = append(out, &v)
	}
	return out, nil
}
