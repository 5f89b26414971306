package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UpstreamError is returned when the scanner (or a gateway in front of it) answered with a
// non-success status.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("analyzer error: status %d", e.Status)
	}
	return fmt.Sprintf("analyzer error: %s", e.Message)
}

// TransportError is returned when the scanner could not be reached or its response could
// not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorBody is the {"error": "..."} payload the gateway emits for every failure.
type errorBody struct {
	Error string `json:"error"`
}

// encodeErrorBody keeps <, > and & literal so relayed upstream text is not rewritten.
func encodeErrorBody(msg string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(errorBody{Error: msg}); err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// errorMessage extracts the message from an {"error"} body, falling back to the raw text.
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return strings.TrimSpace(string(body))
}
