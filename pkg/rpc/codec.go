package rpc

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedAPIVersion is returned by RecvRequest when a request's
// leading API-version u32 doesn't match CurrentAPIVersion. Per the wire
// contract the caller responds with ENotImpl rather than processing the
// request.
var ErrUnsupportedAPIVersion = errors.New("rpc: unsupported API version")

// Conn is a framed RPC connection over a named pipe (or, in tests, any
// io.ReadWriter). It is safe for one concurrent reader and one concurrent
// writer — the same discipline the command-pipe message-pump thread
// follows, which alone owns the send side after the pipe is created.
type Conn struct {
	rw io.ReadWriter
}

// NewConn wraps rw as a framed RPC connection.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw}
}

// SendRequest writes a request frame: message_type in the frame header,
// and a payload of `u32 api_version` followed by params.
func (c *Conn) SendRequest(msgType uint32, apiVersion uint32, params []byte) error {
	w := NewBufferWriter()
	w.WriteU32(apiVersion)
	w.WriteBytes(params)
	return writeFrame(c.rw, msgType, w.Bytes())
}

// RecvRequest reads the next request frame and splits its payload into the
// API version and the remaining typed params. If the API version doesn't
// match CurrentAPIVersion it returns ErrUnsupportedAPIVersion alongside the
// parsed msgType, so the caller can still frame an ENotImpl response.
func (c *Conn) RecvRequest() (msgType uint32, apiVersion uint32, params []byte, err error) {
	msgType, payload, err := readFrame(c.rw)
	if err != nil {
		return 0, 0, nil, err
	}

	r := NewBufferReader(payload)
	apiVersion, err = r.ReadU32()
	if err != nil {
		return msgType, 0, nil, fmt.Errorf("rpc: read request api version: %w", err)
	}
	params = r.Remaining()

	if apiVersion != CurrentAPIVersion {
		return msgType, apiVersion, params, ErrUnsupportedAPIVersion
	}
	return msgType, apiVersion, params, nil
}

// SendResponse writes a response frame for msgType: `u32 size, u32 hresult,
// bytes result` as the payload, where size is len(result).
func (c *Conn) SendResponse(msgType uint32, hresult HResult, result []byte) error {
	w := NewBufferWriter()
	w.WriteU32(uint32(len(result)))
	w.WriteU32(uint32(hresult))
	w.WriteBytes(result)
	return writeFrame(c.rw, msgType, w.Bytes())
}

// RecvResponse reads the next response frame, returning the message type
// it answers, the HRESULT, and the result bytes.
func (c *Conn) RecvResponse() (msgType uint32, hresult HResult, result []byte, err error) {
	msgType, payload, err := readFrame(c.rw)
	if err != nil {
		return 0, 0, nil, err
	}

	r := NewBufferReader(payload)
	size, err := r.ReadU32()
	if err != nil {
		return msgType, 0, nil, fmt.Errorf("rpc: read response size: %w", err)
	}
	hr, err := r.ReadU32()
	if err != nil {
		return msgType, 0, nil, fmt.Errorf("rpc: read response hresult: %w", err)
	}
	result, err = r.ReadBytes(int(size))
	if err != nil {
		return msgType, 0, nil, fmt.Errorf("rpc: read response result: %w", err)
	}

	return msgType, HResult(hr), result, nil
}

// SendBA writes a BA->engine request using the current API version.
func (c *Conn) SendBA(msgType MessageType, params []byte) error {
	if err := msgType.Validate(); err != nil {
		return err
	}
	return c.SendRequest(uint32(msgType), CurrentAPIVersion, params)
}

// RecvBA reads the next BA->engine request.
func (c *Conn) RecvBA() (MessageType, []byte, error) {
	raw, apiVersion, params, err := c.RecvRequest()
	mt := MessageType(raw)
	if errors.Is(err, ErrUnsupportedAPIVersion) {
		return mt, params, fmt.Errorf("rpc: request api version %d: %w", apiVersion, ErrUnsupportedAPIVersion)
	}
	if err != nil {
		return mt, nil, err
	}
	return mt, params, mt.Validate()
}

// SendElevated writes an engine->companion privileged request.
func (c *Conn) SendElevated(msgType ElevatedMessageType, params []byte) error {
	if err := msgType.Validate(); err != nil {
		return err
	}
	return c.SendRequest(uint32(msgType), CurrentAPIVersion, params)
}

// RecvElevated reads the next engine->companion privileged request.
func (c *Conn) RecvElevated() (ElevatedMessageType, []byte, error) {
	raw, apiVersion, params, err := c.RecvRequest()
	mt := ElevatedMessageType(raw)
	if errors.Is(err, ErrUnsupportedAPIVersion) {
		return mt, params, fmt.Errorf("rpc: request api version %d: %w", apiVersion, ErrUnsupportedAPIVersion)
	}
	if err != nil {
		return mt, nil, err
	}
	return mt, params, mt.Validate()
}
