package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// The collaborator sometimes wraps JSON in markdown fences or surrounds it
// with prose. Invalid payloads are a recoverable error class, never a crash.

var (
	fenceRe = regexp.MustCompile("```(?:json)?\\s*\\n?")
	// Matches a JSON object with one level of nesting, which covers the
	// response shapes this pipeline requests.
	objectRe = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	arrayRe  = regexp.MustCompile(`\[[\s\S]*\]`)
)

// ParseError marks a response whose payload could not be interpreted as JSON.
type ParseError struct {
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse JSON from response: %s", e.Snippet)
}

// ExtractJSON returns the JSON document embedded in an LLM response,
// tolerating markdown fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	if text == "" {
		return "", &ParseError{Snippet: "(empty response)"}
	}

	stripped := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	if json.Valid([]byte(stripped)) {
		return stripped, nil
	}

	if match := objectRe.FindString(text); match != "" && json.Valid([]byte(match)) {
		return match, nil
	}
	if match := arrayRe.FindString(text); match != "" && json.Valid([]byte(match)) {
		return match, nil
	}

	return "", &ParseError{Snippet: truncate(text, 200)}
}

// ParseInto extracts the JSON document from text and unmarshals it into v.
func ParseInto(text string, v any) error {
	doc, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return &ParseError{Snippet: truncate(doc, 200)}
	}
	return nil
}
