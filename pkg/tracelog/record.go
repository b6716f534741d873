// Package tracelog rebuilds call trees from trace log lines written with
// recorder.LineFormat ("$date $time [$id] [$type] $content").
package tracelog

import (
	"strings"

	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
)

// Date and time layouts used by recorder.LineFormat.
const (
	DateLayout = "2006/01/02"
	TimeLayout = "15:04:05"
)

// Record is one parsed trace log line.
type Record struct {
	Date    string     `json:"date"`
	Time    string     `json:"time"`
	ID      string     `json:"id"`
	Kind    trace.Kind `json:"kind"`
	Content string     `json:"content"`
}

// ParseLine decomposes a line into its five fields. The fields are separated by
// single spaces; everything after the kind is content. A line with empty content may
// omit the trailing separator.
func ParseLine(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	blocks := strings.SplitN(line, " ", 5)
	if len(blocks) < 4 {
		return Record{}, svcerr.InvalidLogLine(line)
	}
	for i := range blocks[:4] {
		blocks[i] = strings.TrimSpace(blocks[i])
	}

	id, ok := unbracket(blocks[2])
	if !ok || blocks[0] == "" || blocks[1] == "" {
		return Record{}, svcerr.InvalidLogLine(line)
	}
	kind, ok := unbracket(blocks[3])
	if !ok {
		return Record{}, svcerr.InvalidLogLine(line)
	}

	r := Record{Date: blocks[0], Time: blocks[1], ID: id, Kind: trace.Kind(kind)}
	if len(blocks) == 5 {
		r.Content = strings.TrimSpace(blocks[4])
	}
	return r, nil
}

func unbracket(s string) (string, bool) {
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// FromEvent converts a recorder event into a Record without a text round trip.
func FromEvent(e trace.Event) Record {
	return Record{
		Date:    e.Time.Format(DateLayout),
		Time:    e.Time.Format(TimeLayout),
		ID:      e.RequestID,
		Kind:    e.Kind,
		Content: e.Content(),
	}
}

// FromEvents converts events in order.
func FromEvents(events []trace.Event) []Record {
	out := make([]Record, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	return out
}
