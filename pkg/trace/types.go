// Package trace defines the trace events emitted at each lifecycle point of an
// invocation and the recorder contract that receives them.
package trace

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the lifecycle point an event describes.
type Kind string

// Event kinds.
const (
	KindCall   Kind = "call"
	KindDebug  Kind = "debug"
	KindLog    Kind = "log"
	KindResult Kind = "result"
	KindError  Kind = "error"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCall, KindDebug, KindLog, KindResult, KindError:
		return true
	}
	return false
}

// Event is one structured record describing a lifecycle point of an invocation.
type Event struct {
	Time      time.Time   `json:"time"`
	RequestID string      `json:"requestId"`
	Kind      Kind        `json:"kind"`
	Service   string      `json:"service,omitempty"`
	Payload   interface{} `json:"payload"`
}

// CallPayload is carried by call events.
type CallPayload struct {
	Service string                 `json:"service"`
	Params  map[string]interface{} `json:"params"`
}

// ResultPayload is carried by result events. Spent is in milliseconds.
type ResultPayload struct {
	Spent  int64       `json:"spent"`
	Result interface{} `json:"result"`
}

// ErrorPayload is carried by error events. Spent is in milliseconds.
type ErrorPayload struct {
	Spent int64  `json:"spent"`
	Error string `json:"error"`
}

// Content renders the payload as it appears in a formatted trace line: strings are
// written raw, everything else is JSON encoded.
func (e Event) Content() string {
	switch p := e.Payload.(type) {
	case nil:
		return ""
	case string:
		return p
	case []byte:
		return string(p)
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Sprintf("%v", e.Payload)
	}
	return string(data)
}
