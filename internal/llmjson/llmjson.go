// Package llmjson extracts structured payloads from free-text model output.
// Models are asked for bare JSON but regularly wrap it in prose or code
// fences; callers get a named ParseError instead of silent nil so they can
// decide between failing and falling back.
package llmjson

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseError reports that no usable JSON object could be extracted.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "llm json parse: " + e.Reason
}

// Unmarshal finds the first {...} span in text and decodes it into target.
// Malformed spans get one repair attempt before giving up.
func Unmarshal(text string, target any) error {
	span, ok := firstObjectSpan(text)
	if !ok {
		return &ParseError{Reason: "no JSON object in response"}
	}

	if err := json.Unmarshal([]byte(span), target); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(span)
	if err != nil {
		return &ParseError{Reason: "object is not valid JSON and could not be repaired"}
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return &ParseError{Reason: "repaired object still failed to decode"}
	}
	return nil
}

// firstObjectSpan returns the substring from the first '{' to the last '}',
// the same greedy span the regex-based extraction used upstream.
func firstObjectSpan(text string) (string, bool) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return "", false
	}
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return cleaned[start : end+1], true
}
