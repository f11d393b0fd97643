package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error is returned for responses the backend marked as failed, either with
// an HTTP error status or with "success": false in a 2xx body.
type Error struct {
	Call       string
	StatusCode int
	Message    string
	Rejected   bool
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Call, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Call, e.StatusCode)
}

func (e *Error) ServerMessage() string {
	return e.Message
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func parseEnvelope(body []byte) envelope {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}
	}
	return env
}

func (e envelope) message() string {
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}

	if len(e.Data) > 0 {
		var data struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(e.Data, &data) == nil && strings.TrimSpace(data.Message) != "" {
			return strings.TrimSpace(data.Message)
		}
	}

	if len(e.Error) > 0 {
		var text string
		if json.Unmarshal(e.Error, &text) == nil {
			return strings.TrimSpace(text)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(e.Error, &nested) == nil {
			return strings.TrimSpace(nested.Message)
		}
	}

	return ""
}
