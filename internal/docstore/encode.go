package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Encode canonicalizes JSON content for storage: object keys sorted, two-space
// indentation, trailing newline, numbers kept exactly as written. Keeping the
// layout stable keeps the repository history's diffs readable.
func Encode(content []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidContent)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return buf.Bytes(), nil
}

// Marshal encodes v and canonicalizes the result with Encode.
func Marshal(v interface{}) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return Encode(b)
}
