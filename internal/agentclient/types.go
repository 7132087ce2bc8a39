package agentclient

import (
	"encoding/json"
	"fmt"
)

// envelope mirrors the registry's {code, message, data} response body
type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-OK registry response. Data holds the raw data field;
// handshake failures put the handshake result there.
type APIError struct {
	Status  int
	Code    string
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry returned %d %s: %s", e.Status, e.Code, e.Message)
}
