package commsutil

import (
	"encoding/json"
	"fmt"
)

const codecLogPrefix = "commsutil:codec"

// EncodePayload serializes a trace message (or any other COMMS body) to JSON.
func EncodePayload(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s - encode %T: %w", codecLogPrefix, v, err)
	}
	return data, nil
}

// DecodePayload deserializes a JSON COMMS body into v. An empty body is an error:
// every trace message carries at least its request ID and kind.
func DecodePayload(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%s - empty payload", codecLogPrefix)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s - decode into %T: %w", codecLogPrefix, v, err)
	}
	return nil
}
