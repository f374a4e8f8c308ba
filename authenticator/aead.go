package authenticator

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/aspia-go/peerauth/sessionkey"
	"github.com/aspia-go/peerauth/wire"
	"golang.org/x/crypto/chacha20poly1305"
)

func (a *Authenticator) aead() (cipher.AEAD, error) {
	switch a.chosenCipher {
	case wire.CipherChaCha20Poly1305:
		return chacha20poly1305.New(a.sessionKey.Key[:])
	case wire.CipherAES256GCM:
		block, err := aes.NewCipher(a.sessionKey.Key[:])
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, ErrMalformedMessage
	}
}

// sealParams encrypts the SessionParams blob under the session key, with
// aad binding it to the transcript so far (spec.md §4.E: "AEAD-encrypt
// the session_params blob ... with associated data = transcript hash").
func (a *Authenticator) sealParams(plaintext, aad []byte) ([]byte, error) {
	aead, err := a.aead()
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, a.sessionKey.IV[:aead.NonceSize()], plaintext, aad), nil
}

// verifyAck reports whether tag is the Ack this handshake expects for aad.
// The server only ever verifies an Ack, never sends one: sealing the
// matching tag is the client role's job (cmd/authclient, and the fake
// client in authenticator_test.go), built directly against the same
// cipher and AckNonce since there is no client-side package in this
// module to share the method with.
func (a *Authenticator) verifyAck(tag, aad []byte) bool {
	aead, err := a.aead()
	if err != nil {
		return false
	}
	nonce := sessionkey.AckNonce(a.sessionKey.IV)
	_, err = aead.Open(nil, nonce[:aead.NonceSize()], tag, aad)
	return err == nil
}
