// Package wire defines the handshake message structs of spec.md §6 and a
// length-prefixed CBOR framing for them. The authenticator core is
// encoding-agnostic (per spec.md §1's non-goals); this package is the one
// concrete choice a runnable module has to make, and it makes it with
// github.com/fxamacker/cbor/v2, the codec used throughout
// katzenpost-katzenpost's wire/core packages, rather than the teacher's
// JSON (encoding/json in cmd/server/main.go) — CBOR round-trips []byte
// fields (salts, group elements, MAC tags) without a base64 side channel.
package wire

// Method bits for ClientHello.MethodsMask / ServerHello.ChosenMethod.
const (
	MethodAnonymous uint32 = 1 << 0
	MethodSRP       uint32 = 1 << 1
)

// Cipher identifiers for ClientHello.CipherMask / ServerHello.ChosenCipher.
// Server preference order is ChaCha20-Poly1305 over AES-256-GCM, per
// spec.md §4.E.
const (
	CipherChaCha20Poly1305 uint32 = 1 << 0
	CipherAES256GCM        uint32 = 1 << 1
)

// Result status codes (spec.md §6).
const (
	StatusSuccess            uint32 = 0
	StatusAccessDenied       uint32 = 1
	StatusSessionDenied      uint32 = 2
	StatusInvalidProtocol    uint32 = 3
	StatusUnsupportedVersion uint32 = 4
)

// NonceSize is the length of the ClientHello/ServerHello nonces.
const NonceSize = 32

// ClientHello is the first message, client to server.
type ClientHello struct {
	Version     uint32            `cbor:"1,keyasint"`
	MethodsMask uint32            `cbor:"2,keyasint"`
	CipherMask  uint32            `cbor:"3,keyasint"`
	NonceC      [NonceSize]byte   `cbor:"4,keyasint"`
}

// ServerHello is the reply to ClientHello.
type ServerHello struct {
	Version       uint32          `cbor:"1,keyasint"`
	ChosenMethod  uint32          `cbor:"2,keyasint"`
	ChosenCipher  uint32          `cbor:"3,keyasint"`
	NonceS        [NonceSize]byte `cbor:"4,keyasint"`
	ServerPubKey  []byte          `cbor:"5,keyasint"`
}

// Identify carries the client's claimed username on the SRP path.
type Identify struct {
	Username string `cbor:"1,keyasint"`
	GroupID  uint32 `cbor:"2,keyasint"`
}

// MaxUsernameBytes is the maximum length of a normalized username,
// per spec.md §6.
const MaxUsernameBytes = 128

// ServerKeyExchange carries the server's SRP salt and public ephemeral B.
type ServerKeyExchange struct {
	Salt                []byte `cbor:"1,keyasint"`
	B                   []byte `cbor:"2,keyasint"`
	GroupID             uint32 `cbor:"3,keyasint"`
	SessionMaskOffered  uint32 `cbor:"4,keyasint"`
}

// ClientKeyExchange carries the client's public ephemeral A and its proof
// of knowledge M1.
type ClientKeyExchange struct {
	A  []byte   `cbor:"1,keyasint"`
	M1 [32]byte `cbor:"2,keyasint"`
}

// SessionChallenge carries the server's counter-proof M2 and the
// encrypted session parameters blob.
type SessionChallenge struct {
	M2       [32]byte `cbor:"1,keyasint"`
	AeadBlob []byte   `cbor:"2,keyasint"`
}

// SessionResponse is the client's final message: a transcript AEAD tag
// and the session type it is requesting. Ack's length is the negotiated
// cipher's tag size (16 bytes for both ChaCha20-Poly1305 and AES-256-GCM),
// not a fixed wire constant, since it is an AEAD Seal output rather than a
// hash.
type SessionResponse struct {
	Ack               []byte `cbor:"1,keyasint"`
	ChosenSessionType uint32 `cbor:"2,keyasint"`
}

// Result carries a terminal status, sent on both success and failure.
type Result struct {
	Status      uint32 `cbor:"1,keyasint"`
	SessionType uint32 `cbor:"2,keyasint"`
}

// SessionParams is the plaintext sealed inside SessionChallenge.AeadBlob.
type SessionParams struct {
	AllowedSessionMask uint32 `cbor:"1,keyasint"`
	ServerVersion      uint32 `cbor:"2,keyasint"`
}
