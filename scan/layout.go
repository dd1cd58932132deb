// Package scan decodes the three fixed-layout codes used on the dock:
// the manifest code identifying an order and skid, the kanban card
// identifying a part and box, and the short delimited internal kanban.
// Decoding is pure; identical input always yields identical output.
package scan

import "strings"

// field is one fixed-position slice of a raw code.
type field struct {
	name   string
	offset int
	length int
}

// layout is an ordered field table driving the generic extractor.
type layout []field

// minLength is the smallest raw string the layout can be cut from.
func (l layout) minLength() int {
	min := 0
	for _, f := range l {
		if end := f.offset + f.length; end > min {
			min = end
		}
	}
	return min
}

// cut extracts every field as a whitespace-trimmed substring. The caller
// must have checked the raw length against minLength.
func (l layout) cut(raw string) map[string]string {
	out := make(map[string]string, len(l))
	for _, f := range l {
		out[f.name] = strings.TrimSpace(raw[f.offset : f.offset+f.length])
	}
	return out
}

// DecodeError reports a structurally malformed raw code.
type DecodeError struct {
	Format string // "manifest", "kanban" or "internal"
	Field  string // offending field, empty for whole-string problems
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "decode " + e.Format + ": " + e.Reason
	}
	return "decode " + e.Format + ": field " + e.Field + ": " + e.Reason
}

func decodeErr(format, field, reason string) *DecodeError {
	return &DecodeError{Format: format, Field: field, Reason: reason}
}
