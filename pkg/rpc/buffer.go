package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
)

// BufferWriter builds an RPC payload as a typed value stream: u32 and u64
// integers, and length-prefixed UTF-16 strings (character count then
// units), matching the wire format the bootstrapper application and engine
// exchange over the command pipe.
type BufferWriter struct {
	buf bytes.Buffer
}

// NewBufferWriter returns an empty BufferWriter.
func NewBufferWriter() *BufferWriter {
	return &BufferWriter{}
}

// WriteU32 appends a little-endian u32.
func (w *BufferWriter) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteU64 appends a little-endian u64.
func (w *BufferWriter) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteBool appends a u32 boolean (0 or 1), the wire's native bool shape.
func (w *BufferWriter) WriteBool(v bool) {
	if v {
		w.WriteU32(1)
	} else {
		w.WriteU32(0)
	}
}

// WriteString appends a length-prefixed UTF-16 string: a u32 character
// count followed by that many little-endian UTF-16 code units.
func (w *BufferWriter) WriteString(s string) {
	units := utf16.Encode([]rune(s))
	w.WriteU32(uint32(len(units)))
	for _, u := range units {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], u)
		w.buf.Write(b[:])
	}
}

// WriteBytes appends raw bytes with no length prefix — used for the
// already-framed payload embedded in a response's "result" field.
func (w *BufferWriter) WriteBytes(b []byte) {
	w.buf.Write(b)
}

// Bytes returns the accumulated payload.
func (w *BufferWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// BufferReader parses a payload written by BufferWriter.
type BufferReader struct {
	buf *bytes.Reader
}

// NewBufferReader wraps payload for sequential typed reads.
func NewBufferReader(payload []byte) *BufferReader {
	return &BufferReader{buf: bytes.NewReader(payload)}
}

// ReadU32 consumes a little-endian u32.
func (r *BufferReader) ReadU32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.buf, b[:]); err != nil {
		return 0, fmt.Errorf("rpc: read u32: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadU64 consumes a little-endian u64.
func (r *BufferReader) ReadU64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.buf, b[:]); err != nil {
		return 0, fmt.Errorf("rpc: read u64: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ReadBool consumes a u32 boolean.
func (r *BufferReader) ReadBool() (bool, error) {
	v, err := r.ReadU32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadString consumes a length-prefixed UTF-16 string.
func (r *BufferReader) ReadString() (string, error) {
	count, err := r.ReadU32()
	if err != nil {
		return "", fmt.Errorf("rpc: read string length: %w", err)
	}
	if int(count) > r.buf.Len()/2 {
		return "", fmt.Errorf("rpc: string length %d exceeds remaining payload", count)
	}
	units := make([]uint16, count)
	for i := range units {
		var b [2]byte
		if _, err := io.ReadFull(r.buf, b[:]); err != nil {
			return "", fmt.Errorf("rpc: read string unit %d: %w", i, err)
		}
		units[i] = binary.LittleEndian.Uint16(b[:])
	}
	return string(utf16.Decode(units)), nil
}

// ReadBytes consumes n raw bytes.
func (r *BufferReader) ReadBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.buf, b); err != nil {
		return nil, fmt.Errorf("rpc: read %d bytes: %w", n, err)
	}
	return b, nil
}

// Remaining returns the bytes not yet consumed.
func (r *BufferReader) Remaining() []byte {
	rest := make([]byte, r.buf.Len())
	_, _ = r.buf.Read(rest)
	return rest
}

// Len reports how many unread bytes remain.
func (r *BufferReader) Len() int {
	return r.buf.Len()
}
