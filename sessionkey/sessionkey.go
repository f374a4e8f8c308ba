// Package sessionkey turns an SRP shared secret, or a pair of handshake
// nonces on the anonymous path, into the symmetric key material the
// negotiated cipher suite uses. The derivation runs once per handshake and
// the input secret is zeroed immediately after, per spec.md §4.D.
package sessionkey

import (
	"crypto/sha256"

	"github.com/aspia-go/peerauth/bignum"
)

// KeySize and IVSize are the sizes of the derived session key and nonce
// seed. Both AEAD suites the authenticator supports (ChaCha20-Poly1305,
// AES-256-GCM) use a 32-byte key; IVSize is wide enough for either
// construction's nonce to be derived from it.
const (
	KeySize = 32
	IVSize  = 12
)

const (
	tagAuthenticated = "AspiaSession-K"
	tagNonce         = "AspiaSession-N"
	tagAnonymous     = "AspiaSession-Anon"
)

// Material is the derived session key and nonce seed.
type Material struct {
	Key [KeySize]byte
	IV  [IVSize]byte
}

// Derive computes the session key material from the SRP shared secret S,
// per spec.md §4.D:
//
//	session_key = SHA-256( big-endian(S) || "AspiaSession-K" )
//	session_iv  = SHA-256( big-endian(S) || "AspiaSession-N" )[0..12]
//
// byteLen is the group's byte length, used to left-pad S the same way the
// SRP transcript hashes do. Derive zeroes s before returning.
func Derive(s bignum.Int, byteLen int) Material {
	defer s.Zero()

	sBytes := s.ToBytes(byteLen)

	var m Material
	kh := sha256.Sum256(append(append([]byte{}, sBytes...), tagAuthenticated...))
	copy(m.Key[:], kh[:])

	nh := sha256.Sum256(append(append([]byte{}, sBytes...), tagNonce...))
	copy(m.IV[:], nh[:IVSize])

	return m
}

// AckNonce returns the nonce used to seal the session-response Ack tag.
// It must differ from the IV used to seal the SessionParams blob: both
// operations run under the same session key, and an AEAD nonce may never
// be reused under one key.
func AckNonce(iv [IVSize]byte) [IVSize]byte {
	n := iv
	n[IVSize-1] ^= 0x01
	return n
}

// DeriveAnonymous computes session key material for the anonymous path,
// where there is no SRP secret: the key is bound instead to both nonces
// and the server's long-term public key, so that anonymous traffic is
// still encrypted under a key neither passive observer nor a replay of an
// old handshake can reproduce. spec.md §9 resolves the source's silence on
// this point by mandating derivation here.
func DeriveAnonymous(nonceClient, nonceServer, serverPubKey []byte) Material {
	var m Material
	h := sha256.New()
	h.Write(nonceClient)
	h.Write(nonceServer)
	h.Write(serverPubKey)
	h.Write([]byte(tagAnonymous))
	h.Write([]byte{'K'})
	kh := h.Sum(nil)
	copy(m.Key[:], kh)

	h2 := sha256.New()
	h2.Write(nonceClient)
	h2.Write(nonceServer)
	h2.Write(serverPubKey)
	h2.Write([]byte(tagAnonymous))
	h2.Write([]byte{'N'})
	nh := h2.Sum(nil)
	copy(m.IV[:], nh[:IVSize])

	return m
}
