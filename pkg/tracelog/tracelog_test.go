package tracelog

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Record
		wantErr bool
	}{
		{
			name: "structured content keeps spaces",
			line: `2026/03/07 09:05:01 [R:1] [call] {"service":"user.get","params":{"name":"a b"}}`,
			want: Record{Date: "2026/03/07", Time: "09:05:01", ID: "R:1", Kind: trace.KindCall, Content: `{"service":"user.get","params":{"name":"a b"}}`},
		},
		{
			name: "free text",
			line: "2026/03/07 09:05:01 [R] [log] user created id=7\r\n",
			want: Record{Date: "2026/03/07", Time: "09:05:01", ID: "R", Kind: trace.KindLog, Content: "user created id=7"},
		},
		{
			name: "empty content",
			line: "2026/03/07 09:05:01 [R] [debug]",
			want: Record{Date: "2026/03/07", Time: "09:05:01", ID: "R", Kind: trace.KindDebug},
		},
		{name: "too few fields", line: "2026/03/07 09:05:01 [R]", wantErr: true},
		{name: "unbracketed id", line: "2026/03/07 09:05:01 R [log] x", wantErr: true},
		{name: "unbracketed kind", line: "2026/03/07 09:05:01 [R] log x", wantErr: true},
		{name: "empty id", line: "2026/03/07 09:05:01 [] [log] x", wantErr: true},
		{name: "default stream format", line: "2026/03/07 09:05:01 log: [R] x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				if !errors.Is(err, svcerr.ErrInvalidLogLineFormat) {
					t.Errorf("tracelog:tracelog_test - expected INVALID_LOG_LINE_FORMAT, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("tracelog:tracelog_test - unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("tracelog:tracelog_test - record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

const sampleLog = `2026/03/07 10:00:00 [R] [call] {"service":"","params":{}}
2026/03/07 10:00:00 [R:1] [call] {"service":"user.getOrCreate","params":{"phone":"1"}}
2026/03/07 10:00:00 [R:2] [call] {"service":"face.compare","params":{}}
2026/03/07 10:00:00 [R:1:1] [call] {"service":"user.get","params":{"phone":"1"}}
2026/03/07 10:00:00 [R:1:1] [debug] cache miss
2026/03/07 10:00:01 [R:1:1] [error] {"spent":12,"error":"USER_NOT_FOUND: no user"}
2026/03/07 10:00:01 [R:1] [result] {"spent":20,"result":{"id":7}}
2026/03/07 10:00:02 [R:2] [result] {"spent":30,"result":true}
2026/03/07 10:00:02 [S] [log] unrelated
`

func TestBuildAndRender_ThreeLevels(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(sampleLog), "", false)
	if err != nil {
		t.Fatalf("tracelog:tracelog_test - ReadRecords: %v", err)
	}
	forest := Build(records)

	selected := forest.Select("R")
	if len(selected) != 1 || selected[0].ID != "R" {
		t.Fatalf("tracelog:tracelog_test - Select(R) = %v", selected)
	}
	root := selected[0]
	if len(root.Children) != 2 || root.Children[0].ID != "R:1" || root.Children[1].ID != "R:2" {
		t.Fatalf("tracelog:tracelog_test - children of R = %+v", root.Children)
	}
	if len(root.Children[0].Children) != 1 || root.Children[0].Children[0].ID != "R:1:1" {
		t.Fatalf("tracelog:tracelog_test - children of R:1 = %+v", root.Children[0].Children)
	}

	var buf bytes.Buffer
	if err := Render(&buf, selected); err != nil {
		t.Fatalf("tracelog:tracelog_test - Render: %v", err)
	}
	want := `id: R
  - 10:00:00 call {}
    id: R:1
      - 10:00:00 call user.getOrCreate {"phone":"1"}
      - 10:00:01 result 20ms {"id":7}
        id: R:1:1
          - 10:00:00 call user.get {"phone":"1"}
          - 10:00:00 debug cache miss
          - 10:00:01 error 12ms USER_NOT_FOUND: no user
    id: R:2
      - 10:00:00 call face.compare {}
      - 10:00:02 result 30ms true
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("tracelog:tracelog_test - render mismatch (-want +got):\n%s", diff)
	}
}

func TestForest_Select(t *testing.T) {
	records, _ := ReadRecords(strings.NewReader(sampleLog), "", false)
	forest := Build(records)

	ids := func(nodes []*Node) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, n.ID)
		}
		return out
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"", []string{"R", "S"}},
		{"R:1", []string{"R:1"}},
		{"R:", []string{"R:1", "R:2"}},
		{"X", nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(forest.Select(tt.prefix))); diff != "" {
				t.Errorf("tracelog:tracelog_test - Select(%q) mismatch (-want +got):\n%s", tt.prefix, diff)
			}
		})
	}

	wantIDs := []string{"R", "R:1", "R:1:1", "R:2", "S"}
	if diff := cmp.Diff(wantIDs, forest.IDs()); diff != "" {
		t.Errorf("tracelog:tracelog_test - IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_NumericSiblingOrder(t *testing.T) {
	var records []Record
	for _, id := range []string{"R:10", "R:2", "R", "R:9", "R:1"} {
		records = append(records, Record{ID: id, Kind: trace.KindLog})
	}
	forest := Build(records)

	var got []string
	for _, c := range forest.Node("R").Children {
		got = append(got, c.ID)
	}
	if diff := cmp.Diff([]string{"R:1", "R:2", "R:9", "R:10"}, got); diff != "" {
		t.Errorf("tracelog:tracelog_test - sibling order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_OrphanBecomesRoot(t *testing.T) {
	forest := Build([]Record{
		{ID: "R", Kind: trace.KindLog},
		{ID: "R:3:1", Kind: trace.KindLog},
	})
	if len(forest.Roots) != 2 || forest.Roots[1].ID != "R:3:1" {
		t.Errorf("tracelog:tracelog_test - roots = %+v", forest.Roots)
	}
	if forest.Len() != 2 {
		t.Errorf("tracelog:tracelog_test - Len() = %d", forest.Len())
	}
}

func TestFilter(t *testing.T) {
	var seen []string
	f := NewFilter(FilterOptions{
		RequestID: "R:1",
		OnRecord:  func(r Record) { seen = append(seen, r.ID+" "+string(r.Kind)) },
	})
	if _, err := f.ReadFrom(strings.NewReader(sampleLog)); err != nil {
		t.Fatalf("tracelog:tracelog_test - ReadFrom: %v", err)
	}

	want := []string{"R:1 call", "R:1:1 call", "R:1:1 debug", "R:1:1 error", "R:1 result"}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("tracelog:tracelog_test - observed mismatch (-want +got):\n%s", diff)
	}
	if len(f.Records()) != len(want) {
		t.Errorf("tracelog:tracelog_test - kept %d records, want %d", len(f.Records()), len(want))
	}
}

func TestFilter_MalformedLines(t *testing.T) {
	input := "garbage\n\n2026/03/07 10:00:00 [R] [log] ok\n"

	strict := NewFilter(FilterOptions{})
	if _, err := strict.ReadFrom(strings.NewReader(input)); !errors.Is(err, svcerr.ErrInvalidLogLineFormat) {
		t.Errorf("tracelog:tracelog_test - expected INVALID_LOG_LINE_FORMAT, got %v", err)
	}

	lenient := NewFilter(FilterOptions{IgnoreErrorLine: true})
	if _, err := lenient.ReadFrom(strings.NewReader(input)); err != nil {
		t.Fatalf("tracelog:tracelog_test - unexpected error: %v", err)
	}
	if lenient.Skipped() != 1 || len(lenient.Records()) != 1 {
		t.Errorf("tracelog:tracelog_test - skipped=%d kept=%d, want 1/1", lenient.Skipped(), len(lenient.Records()))
	}
}

func TestFromEvents(t *testing.T) {
	at := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	records := FromEvents([]trace.Event{
		{Time: at, RequestID: "R:1", Kind: trace.KindCall, Payload: trace.CallPayload{Service: "user.get", Params: map[string]interface{}{"phone": "1"}}},
		{Time: at, RequestID: "R:1", Kind: trace.KindResult, Payload: trace.ResultPayload{Spent: 3, Result: "ok"}},
	})

	want := []string{`call user.get {"phone":"1"}`, `result 3ms "ok"`}
	for i, r := range records {
		if r.Date != "2026/03/07" || r.Time != "10:00:00" {
			t.Errorf("tracelog:tracelog_test - date/time = %s %s", r.Date, r.Time)
		}
		if got := string(r.Kind) + " " + Describe(r); got != want[i] {
			t.Errorf("tracelog:tracelog_test - Describe = %q, want %q", got, want[i])
		}
	}
}

func TestDescribe_RawFallback(t *testing.T) {
	r := Record{Kind: trace.KindResult, Content: "not json"}
	if got := Describe(r); got != "not json" {
		t.Errorf("tracelog:tracelog_test - Describe = %q", got)
	}
}

func TestRenderLive(t *testing.T) {
	got := RenderLive(Record{Time: "10:00:00", ID: "R:1", Kind: trace.KindLog, Content: "hi"})
	want := "10:00:00" + strings.Repeat(" ", 8) + "R:1 log hi"
	if got != want {
		t.Errorf("tracelog:tracelog_test - RenderLive = %q, want %q", got, want)
	}
}
