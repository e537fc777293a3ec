// Package normalize recovers a JSON object from near-JSON model output.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/meme-maker/pkg/types"
)

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	openingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	closingFence  = regexp.MustCompile("\\s*```$")
)

// ExtractJSONObject parses text into a JSON object. It strips code fences,
// removes trailing commas and, as a last resort, slices from the first '{'
// to the last '}'. Arrays and scalars are rejected. Every failure wraps
// types.ErrMalformedResponse.
func ExtractJSONObject(text string) (map[string]any, error) {
	candidate := strings.TrimSpace(text)
	if candidate == "" {
		return nil, fmt.Errorf("empty model response: %w", types.ErrMalformedResponse)
	}

	if strings.HasPrefix(candidate, "```") {
		candidate = openingFence.ReplaceAllString(candidate, "")
		candidate = closingFence.ReplaceAllString(candidate, "")
		candidate = strings.TrimSpace(candidate)
	}

	if obj, ok := parseWithRepair(candidate); ok {
		return obj, nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in model response: %w", types.ErrMalformedResponse)
	}

	if obj, ok := parseWithRepair(candidate[start : end+1]); ok {
		return obj, nil
	}
	return nil, fmt.Errorf("invalid JSON after extraction and repair: %w", types.ErrMalformedResponse)
}

func parseWithRepair(s string) (map[string]any, bool) {
	if obj, ok := parseObject(s); ok {
		return obj, true
	}
	return parseObject(trailingComma.ReplaceAllString(s, "$1"))
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
