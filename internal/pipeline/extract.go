// Package pipeline turns unreliable completion output into validated,
// geocoded, deduplicated company records. Stages are plain functions and
// small structs so each one is testable in isolation: extract, normalize
// (with geocoding), dedupe, then validate.
package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Reasons reported by Extract when no records are recoverable.
const (
	ReasonEmpty       = "empty"
	ReasonUnparseable = "unparseable"
)

// fenceRe matches a markdown code fence with an optional language tag and
// captures the inner content.
var fenceRe = regexp.MustCompile("(?s)```(?:[a-zA-Z]+)?\\s*(.*?)```")

// parseStrategy is one way of recovering a record list from text. It reports
// ok=false to pass control to the next strategy, an explicit chain instead
// of nested "parse, and if that throws, try the next shape" handling.
type parseStrategy func(text string) (fragments []any, ok bool)

var parseStrategies = []parseStrategy{
	parseObject,
	parseArray,
	parseBracketSubstring,
}

// Extract recovers candidate record fragments from raw model output text.
// Models wrap valid JSON in prose, markdown fences, or an enclosing object;
// each strategy peels one of those layers. On failure the reason is either
// ReasonEmpty or ReasonUnparseable.
func Extract(text string) ([]any, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ReasonEmpty
	}

	text = stripFence(text)

	for _, strategy := range parseStrategies {
		if fragments, ok := strategy(text); ok {
			return fragments, ""
		}
	}
	return nil, ReasonUnparseable
}

// stripFence unwraps a fenced code block if present, keeping inner content.
func stripFence(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// parseObject handles content starting with "{": either a wrapper object
// carrying a `companies` array, or (defensively) a payload that decodes to
// an array anyway.
func parseObject(text string) ([]any, bool) {
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, false
	}

	switch v := decoded.(type) {
	case []any:
		return v, true
	case map[string]any:
		if companies, ok := v["companies"].([]any); ok {
			return companies, true
		}
	}
	return nil, false
}

// parseArray handles content that is the record list directly.
func parseArray(text string) ([]any, bool) {
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}

	var fragments []any
	if err := json.Unmarshal([]byte(text), &fragments); err != nil {
		return nil, false
	}
	return fragments, true
}

// parseBracketSubstring locates the first "[" and last "]" and parses the
// inclusive substring. Last resort for JSON buried in prose.
func parseBracketSubstring(text string) ([]any, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var fragments []any
	if err := json.Unmarshal([]byte(text[start:end+1]), &fragments); err != nil {
		return nil, false
	}
	return fragments, true
}
