package scan

import "strings"

const internalDelimiter = "/"

// InternalKanbanScan pairs a physical box with its internal tracking id
// and serial.
type InternalKanbanScan struct {
	ToyotaKanbanRef string
	InternalKanban  string
	SerialNumber    string
}

// DecodeInternalKanban parses a delimited internal-kanban code of the
// form ref/kanban/serial. Exactly three non-empty segments are required.
func DecodeInternalKanban(raw string) (InternalKanbanScan, error) {
	segments := strings.Split(strings.TrimSpace(raw), internalDelimiter)
	if len(segments) != 3 {
		return InternalKanbanScan{}, decodeErr("internal", "", "expected 3 segments")
	}
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return InternalKanbanScan{}, decodeErr("internal", "", "empty segment")
		}
	}
	return InternalKanbanScan{
		ToyotaKanbanRef: strings.TrimSpace(segments[0]),
		InternalKanban:  strings.TrimSpace(segments[1]),
		SerialNumber:    strings.TrimSpace(segments[2]),
	}, nil
}
