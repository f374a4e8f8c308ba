package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// MaxFrameSize bounds a single decoded message, guarding against a peer
// claiming an absurd length prefix.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned by ReadFrame when the length prefix exceeds
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("wire: frame exceeds MaxFrameSize")

// Encode serializes v (one of the message structs in this package) to its
// wire representation.
func Encode(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

// Decode parses data into v.
func Decode(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

// WriteFrame writes a u32 big-endian length prefix followed by the CBOR
// encoding of v. Each call is exactly one handshake message, matching the
// Channel contract in spec.md §6: "each buffer carries exactly one
// handshake message".
func WriteFrame(w io.Writer, v interface{}) error {
	body, err := Encode(v)
	if err != nil {
		return fmt.Errorf("wire: encode: %w", err)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed CBOR message and decodes it into v.
func ReadFrame(r io.Reader, v interface{}) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return Decode(body, v)
}

// ReadRawFrame reads one length-prefixed frame and returns its undecoded
// body. Used by transport.Channel implementations, which hand raw bytes
// to the authenticator rather than decoding on its behalf.
func ReadRawFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteRawFrame writes body as a length-prefixed frame without touching
// its contents.
func WriteRawFrame(w io.Writer, body []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
