package middleware

import (
	"bytes"
	"fmt"
	"io"
	"math"
)

// DefaultMaxBodyBytes bounds how much of a request body the gate buffers.
const DefaultMaxBodyBytes int64 = 10 << 20

// BufferedBody holds a request body read once from the transport.
// The bytes are never modified after capture.
type BufferedBody struct {
	data []byte
}

// CaptureBody reads r to the end exactly once. A nil reader yields an empty
// body. At most limit bytes are accepted when limit is positive; a longer
// body is an error. A limit of math.MaxInt64 is the same as no limit.
func CaptureBody(r io.Reader, limit int64) (*BufferedBody, error) {
	if r == nil {
		return &BufferedBody{data: []byte{}}, nil
	}
	if limit == math.MaxInt64 {
		limit = 0
	}
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, &BodyTooLargeError{Limit: limit}
	}

	return &BufferedBody{data: data}, nil
}

// Bytes returns a copy of the captured bytes.
func (b *BufferedBody) Bytes() []byte {
	return bytes.Clone(b.data)
}

// Len returns the number of captured bytes.
func (b *BufferedBody) Len() int {
	return len(b.data)
}

// Replay returns a new ReplaySource over the captured bytes. Every call
// returns an independent source.
func (b *BufferedBody) Replay() *ReplaySource {
	return &ReplaySource{data: b.data}
}

// ReplaySource hands the captured body to a downstream reader.
//
// Reading it to the end yields exactly the captured bytes; afterwards every
// Read returns 0, io.EOF, like a transport body that was read once.
// A ReplaySource belongs to a single request and is not safe for concurrent use.
type ReplaySource struct {
	data []byte
	off  int
}

// Read implements io.Reader.
func (s *ReplaySource) Read(p []byte) (int, error) {
	if s.off >= len(s.data) {
		return 0, io.EOF
	}

	n := copy(p, s.data[s.off:])
	s.off += n

	return n, nil
}

// Close marks the source as exhausted.
func (s *ReplaySource) Close() error {
	s.off = len(s.data)
	return nil
}

// BodyTooLargeError reports a request body above the configured limit.
type BodyTooLargeError struct {
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds limit of %d bytes", e.Limit)
}
