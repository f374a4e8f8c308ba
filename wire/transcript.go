package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
)

// Transcript accumulates an unambiguous hash of the handshake fields
// exchanged so far. It is the associated data spec.md §4.E/§7 requires:
// the SessionParams AEAD blob is sealed under the transcript through
// ClientKeyExchange, and the SessionResponse Ack is an AEAD tag over the
// transcript through SessionChallenge, both under the session key.
//
// Every variable-length field is length-prefixed before hashing (u32 fields
// are a fixed 4 bytes) so that two different splits of the same bytes
// (e.g. "ab"+"c" vs "a"+"bc") never collide.
type Transcript struct {
	h hash.Hash
}

// NewTranscript starts an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{h: sha256.New()}
}

// WriteU32 folds a 4-byte big-endian field into the transcript.
func (t *Transcript) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	t.h.Write(b[:])
}

// WriteBytes folds a length-prefixed field into the transcript.
func (t *Transcript) WriteBytes(b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	t.h.Write(lenBuf[:])
	t.h.Write(b)
}

// Sum returns the transcript digest as it stands; it does not reset or
// otherwise disturb accumulation, so callers can keep writing afterward
// and take further snapshots (e.g. one digest as AAD for SessionParams,
// a later one as AAD for the session-response Ack).
func (t *Transcript) Sum() []byte {
	return t.h.Sum(nil)
}
