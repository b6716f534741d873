package tracelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/SuperID/nanoservices/pkg/trace"
	"github.com/SuperID/nanoservices/pkg/traceid"
)

// IndentWidth is the number of columns per nesting level.
const IndentWidth = 4

// Render writes the subtrees of nodes depth-first:
//
//	id: R
//	  - 10:00:00 call api.signup {"phone":"1"}
//	    id: R:1
//	      - 10:00:00 call user.get {}
func Render(w io.Writer, nodes []*Node) error {
	bw := bufio.NewWriter(w)
	for _, root := range nodes {
		root.Walk(func(n *Node, depth int) {
			indent := strings.Repeat(" ", depth*IndentWidth)
			fmt.Fprintf(bw, "%sid: %s\n", indent, n.ID)
			for _, r := range n.Records {
				fmt.Fprintf(bw, "%s  - %s %s %s\n", indent, r.Time, r.Kind, Describe(r))
			}
		})
	}
	return bw.Flush()
}

// RenderLive formats a single record for a live view, indented by its nesting depth.
func RenderLive(r Record) string {
	indent := strings.Repeat(" ", (traceid.Depth(r.ID)+1)*IndentWidth)
	return fmt.Sprintf("%s%s%s %s %s", r.Time, indent, r.ID, r.Kind, r.Content)
}

// Describe renders the content of r by kind: call shows the service and its params,
// result and error show the elapsed time and outcome, anything else is shown raw.
// Content that does not decode is shown raw as well.
func Describe(r Record) string {
	switch r.Kind {
	case trace.KindCall:
		var p struct {
			Service string          `json:"service"`
			Params  json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal([]byte(r.Content), &p); err != nil {
			return r.Content
		}
		params := string(p.Params)
		if params == "" || params == "null" {
			params = "{}"
		}
		if p.Service == "" {
			return params
		}
		return p.Service + " " + params
	case trace.KindResult:
		var p struct {
			Spent  int64           `json:"spent"`
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal([]byte(r.Content), &p); err != nil {
			return r.Content
		}
		result := string(p.Result)
		if result == "" {
			result = "null"
		}
		return fmt.Sprintf("%dms %s", p.Spent, result)
	case trace.KindError:
		var p struct {
			Spent int64  `json:"spent"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(r.Content), &p); err != nil {
			return r.Content
		}
		return fmt.Sprintf("%dms %s", p.Spent, p.Error)
	default:
		return r.Content
	}
}
