package commsutil

import "testing"

func TestBuildTraceSubject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		kind   string
		want   string
	}{
		{"default prefix", "", "call", "nanoservices.trace.call"},
		{"custom prefix", "superid.trace", "error", "superid.trace.error"},
		{"trailing dot", "superid.trace.", "log", "superid.trace.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildTraceSubject(tt.prefix, tt.kind)
			if got != tt.want {
				t.Errorf("BuildTraceSubject(%q, %q) = %q, want %q", tt.prefix, tt.kind, got, tt.want)
			}
		})
	}
}

func TestBuildTraceWildcard(t *testing.T) {
	if got := BuildTraceWildcard(""); got != "nanoservices.trace.>" {
		t.Errorf("BuildTraceWildcard(\"\") = %q", got)
	}
	if got := BuildTraceWildcard("superid.trace"); got != "superid.trace.>" {
		t.Errorf("BuildTraceWildcard(\"superid.trace\") = %q", got)
	}
}
