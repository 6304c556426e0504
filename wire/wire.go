// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package wire implements the binary framing used on a tether connection.
//
// Each frame comprises a fixed 24-byte header followed by a variable-length
// payload. The header packs three little-endian signed 64-bit integers:
//
//	cookie | type | length
//
// The cookie is a process-wide constant both endpoints must agree on; it
// guards against a stray or cross-version process writing onto the socket.
// The type is opaque to the transport. The length gives the exact number of
// payload bytes that follow the header. There is no terminator and no
// padding; both endpoints are on the same host by construction, so no
// byte-order negotiation is required.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderLen is the encoded size of a frame header in bytes.
const HeaderLen = 24

// A Header is the fixed-size prefix of a frame.
type Header struct {
	Cookie int64 // connection cookie, must match on both ends
	Type   int64 // message type, opaque to the transport
	Length int64 // payload length in bytes, non-negative
}

// Append appends the binary encoding of h to buf and returns the result.
func (h Header) Append(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Cookie))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Type))
	return binary.LittleEndian.AppendUint64(buf, uint64(h.Length))
}

// Encode returns the binary encoding of h as a fresh slice of HeaderLen bytes.
func (h Header) Encode() []byte { return h.Append(make([]byte, 0, HeaderLen)) }

// Decode decodes a header from the first HeaderLen bytes of data.
// It reports an error if data is too short or the length field is negative.
func (h *Header) Decode(data []byte) error {
	if len(data) < HeaderLen {
		return fmt.Errorf("short frame header (%d bytes)", len(data))
	}
	h.Cookie = int64(binary.LittleEndian.Uint64(data[0:]))
	h.Type = int64(binary.LittleEndian.Uint64(data[8:]))
	h.Length = int64(binary.LittleEndian.Uint64(data[16:]))
	if h.Length < 0 {
		return fmt.Errorf("invalid frame length %d", h.Length)
	}
	return nil
}

// ReadHeader reads and decodes a frame header from r.
// A length field that decodes negative is rejected before the caller has a
// chance to allocate for it.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	var h Header
	if err := h.Decode(buf[:]); err != nil {
		return Header{}, err
	}
	return h, nil
}

// WriteTo writes the encoded header to w. It satisfies io.WriterTo.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	var buf [HeaderLen]byte
	h.Append(buf[:0])
	nw, err := w.Write(buf[:])
	return int64(nw), err
}

// String returns a human-friendly rendering of the header.
func (h Header) String() string {
	return fmt.Sprintf("Header(Cookie=%#x, Type=%d, Length=%d)", h.Cookie, h.Type, h.Length)
}
