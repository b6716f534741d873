package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	// SubjectTrace is the default prefix trace events are published under.
	SubjectTrace = "nanoservices.trace"
)

// BuildTraceSubject builds the subject a single trace event kind is published on,
// e.g. "nanoservices.trace.result".
func BuildTraceSubject(prefix, kind string) string {
	if prefix == "" {
		prefix = SubjectTrace
	}
	return fmt.Sprintf("%s.%s", strings.TrimSuffix(prefix, "."), kind)
}

// BuildTraceWildcard builds the subject matching every trace event under prefix.
func BuildTraceWildcard(prefix string) string {
	return BuildTraceSubject(prefix, ">")
}
