// Package json extracts structured payloads from free-form model responses.
//
// Models often wrap their answer in prose or markdown fences. Extraction takes
// the span from the first opening delimiter to the last closing delimiter and
// parses it strictly; nothing is repaired or guessed.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Delimiter pairs used by callers.
const (
	ObjectOpener = "{"
	ObjectCloser = "}"
	ArrayOpener  = "["
	ArrayCloser  = "]"
)

// PreviewLength bounds the payload prefix kept on a ParseError.
const PreviewLength = 200

// ErrNoPayload is returned when the delimiters are absent or misordered.
var ErrNoPayload = errors.New("no structured payload found")

// ParseError reports a delimited span that is not valid JSON.
type ParseError struct {
	// Preview holds at most PreviewLength characters of the offending span.
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON payload %q: %v", e.Preview, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Extract returns the raw text between the first opener and the last closer,
// inclusive, after checking that it is valid JSON.
func Extract(response, opener, closer string) (string, error) {
	start := strings.Index(response, opener)
	if start == -1 {
		return "", ErrNoPayload
	}
	end := strings.LastIndex(response, closer)
	if end == -1 || end < start {
		return "", ErrNoPayload
	}

	payload := response[start : end+len(closer)]
	if !json.Valid([]byte(payload)) {
		// json.Valid carries no detail; decode again for the error message.
		var decoded any
		err := json.Unmarshal([]byte(payload), &decoded)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return "", &ParseError{Preview: Preview(payload, PreviewLength), Err: err}
	}
	return payload, nil
}

// ExtractInto extracts the delimited payload and decodes it into T.
func ExtractInto[T any](response, opener, closer string) (T, error) {
	var result T
	payload, err := Extract(response, opener, closer)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return result, &ParseError{Preview: Preview(payload, PreviewLength), Err: err}
	}
	return result, nil
}

// ExtractObject decodes the first-to-last brace span as a JSON object.
func ExtractObject(response string) (map[string]any, error) {
	return ExtractInto[map[string]any](response, ObjectOpener, ObjectCloser)
}

// ExtractArray decodes the first-to-last bracket span as a JSON array.
func ExtractArray(response string) ([]any, error) {
	return ExtractInto[[]any](response, ArrayOpener, ArrayCloser)
}

// Preview returns at most n characters of s, counted in runes.
func Preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
