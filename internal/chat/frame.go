package chat

import (
	"encoding/json"
	"fmt"
)

// Frame is the JSON body exchanged with the relay in both directions.
type Frame struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// Encode serializes the frame for a text WebSocket message.
func (f Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses an inbound relay frame.
// Anything that is not a JSON object carrying a string "message" is malformed.
func DecodeFrame(data []byte) (Frame, error) {
	var raw struct {
		User    *string `json:"user"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if raw.Message == nil {
		return Frame{}, fmt.Errorf("%w: missing message field", ErrMalformedFrame)
	}

	f := Frame{Message: *raw.Message}
	if raw.User != nil {
		f.User = *raw.User
	}
	return f, nil
}
