package protocol

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is the gateway wire protocol version advertised in the
// "connect" handshake (protocol.MethodConnect) and in every EventFrame's
// envelope. Bumped whenever a breaking frame-shape change ships.
const ProtocolVersion = 1

// FrameType discriminates the three frame shapes that cross the gateway's
// WebSocket connection.
type FrameType string

const (
	FrameTypeRequest  FrameType = "request"
	FrameTypeResponse FrameType = "response"
	FrameTypeEvent    FrameType = "event"
)

// RequestFrame is a client-to-server RPC call. ID is echoed back on the
// matching ResponseFrame so callers can correlate async replies.
type RequestFrame struct {
	Type   FrameType       `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame answers a RequestFrame with the same ID. Exactly one of
// Result/Error is set.
type ResponseFrame struct {
	Type   FrameType       `json:"type"`
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *FrameError     `json:"error,omitempty"`
}

// FrameError is the error shape carried on a failed ResponseFrame.
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventFrame is an unsolicited server-to-client push (protocol.EventAgent,
// protocol.EventChat, etc.) — see events.go for the Name/payload vocabulary.
type EventFrame struct {
	Type     FrameType   `json:"type"`
	Version  int         `json:"version"`
	Name     string      `json:"name"`
	Payload  interface{} `json:"payload,omitempty"`
	ServerTS int64       `json:"server_ts"`
}

// NewResponseResult builds a successful ResponseFrame, marshaling result
// into the Result field.
func NewResponseResult(id string, result interface{}) (*ResponseFrame, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &ResponseFrame{Type: FrameTypeResponse, ID: id, Result: raw}, nil
}

// NewResponseError builds a failed ResponseFrame.
func NewResponseError(id, code, message string) *ResponseFrame {
	return &ResponseFrame{Type: FrameTypeResponse, ID: id, Error: &FrameError{Code: code, Message: message}}
}

// NewEvent builds an EventFrame for name carrying payload, stamped with the
// current time.
func NewEvent(name string, payload interface{}) *EventFrame {
	return &EventFrame{
		Type:     FrameTypeEvent,
		Version:  ProtocolVersion,
		Name:     name,
		Payload:  payload,
		ServerTS: time.Now().UTC().UnixMilli(),
	}
}
