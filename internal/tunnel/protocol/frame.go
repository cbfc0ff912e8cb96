// Package protocol defines the tunnel wire frames.
package protocol

import (
	"errors"
	"fmt"
	"net/http"
)

// Type discriminates the frame union.
type Type string

// Frame types.
const (
	TypeRequest  Type = "request"
	TypeResponse Type = "response"
	TypePing     Type = "ping"
	TypePong     Type = "pong"
	TypeError    Type = "error"
)

// MaxFrameSize caps an encoded frame. Larger webhook payloads are
// rejected by the relay before they reach the agent.
const MaxFrameSize = 4 << 20 // 4 MiB

// bodyEnvelopeHeadroom reserves frame space for everything around the
// body: type, id, status, and headers.
const bodyEnvelopeHeadroom = 64 << 10

// MaxBodySize caps a raw body. Bodies ride base64-encoded inside the
// JSON envelope, growing by a third, so the raw cap is three quarters
// of the frame budget left after the envelope.
const MaxBodySize = (MaxFrameSize - bodyEnvelopeHeadroom) / 4 * 3

// Frame is one wire message. Fields are populated per Type; unused
// fields are omitted on the wire.
type Frame struct {
	Type Type   `json:"type"`
	ID   string `json:"id,omitempty"`

	// Request fields (relay -> agent).
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`

	// Shared by request and response.
	Headers http.Header `json:"headers,omitempty"`
	Body    []byte      `json:"body,omitempty"`

	// Response fields (agent -> relay).
	Status int `json:"status,omitempty"`

	// Error fields (agent -> relay).
	Message string `json:"message,omitempty"`
}

// Frame validation errors.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrFrameTooLarge  = errors.New("frame exceeds size limit")
)

// Validate checks the per-type field requirements.
func (f *Frame) Validate() error {
	switch f.Type {
	case TypePing, TypePong:
		return nil
	case TypeRequest:
		if f.ID == "" {
			return fmt.Errorf("%w: request without id", ErrMalformedFrame)
		}
		if f.Method == "" || f.Path == "" {
			return fmt.Errorf("%w: request %s missing method or path", ErrMalformedFrame, f.ID)
		}
		return nil
	case TypeResponse:
		if f.ID == "" {
			return fmt.Errorf("%w: response without id", ErrMalformedFrame)
		}
		if f.Status == 0 {
			return fmt.Errorf("%w: response %s without status", ErrMalformedFrame, f.ID)
		}
		return nil
	case TypeError:
		if f.Message == "" {
			return fmt.Errorf("%w: error frame without message", ErrMalformedFrame)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}
}

// NewResponse builds a response frame answering the given request id.
func NewResponse(id string, status int, headers http.Header, body []byte) Frame {
	return Frame{
		Type:    TypeResponse,
		ID:      id,
		Status:  status,
		Headers: headers,
		Body:    body,
	}
}

// NewError builds an error frame. id may be empty when the failure is
// not tied to a single request.
func NewError(id, message string) Frame {
	return Frame{Type: TypeError, ID: id, Message: message}
}

// Ping builds a liveness probe frame.
func Ping() Frame {
	return Frame{Type: TypePing}
}

// Pong builds the answer to a ping.
func Pong() Frame {
	return Frame{Type: TypePong}
}
