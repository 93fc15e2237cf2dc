package fileutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoJSONObject is returned when model output contains no {...} span at all.
var ErrNoJSONObject = errors.New("no JSON object found in model output")

// DecodeModelJSON unmarshals JSON from a model response. Models often wrap the payload in
// prose or code fences, so when the whole text is not valid JSON the span from the first
// '{' to the last '}' is decoded instead. Unknown fields are rejected in both paths so a
// response shaped for a different call site does not silently decode into v.
func DecodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	// Fast path: valid JSON as-is.
	if err := decodeStrict(s, v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	// An opening brace with no closing brace is a truncated response.
	if start != -1 && end == -1 {
		return io.ErrUnexpectedEOF
	}
	if start == -1 || end <= start {
		return fmt.Errorf("%w (len=%d)", ErrNoJSONObject, len(s))
	}

	sub := s[start : end+1]
	if err := decodeStrict(sub, v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}

func decodeStrict(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
