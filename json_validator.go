package streamconv

import (
	"bytes"
	"encoding/json"
)

// QuickValidate is the cheap byte-level prefix check from spec.md §4.2: it
// never parses, it only trims whitespace and inspects the first byte. It is
// used as a hot-path filter before a true parse, the way the NDJSON parser
// gates lines before calling ParseAndValidate.
func QuickValidate(b []byte) bool {
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) == 0 {
		return false
	}
	switch b[0] {
	case '{', '[', '"', 't', 'f', 'n', '-':
		return true
	default:
		return b[0] >= '0' && b[0] <= '9'
	}
}

// ParseAndValidate runs a full structural JSON parse, returning a *Error of
// KindJSONParse carrying the underlying decoder message on failure.
func ParseAndValidate(b []byte) (interface{}, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, wrapError(KindJSONParse, err, "invalid json")
	}
	return v, nil
}
