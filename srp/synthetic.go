package srp

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/aspia-go/peerauth/bignum"
)

// SyntheticRecord derives a verifier and salt for a username that either
// does not exist or is disabled, so that the identify/key-exchange states
// behave identically whether or not the account is real. serverKey is the
// authenticator's long-term private key; it must never vary between real
// and synthetic records for the same username, or the timing/behavior
// parity this exists for would be defeated.
type SyntheticRecord struct {
	Salt     []byte
	Verifier bignum.Int
}

// MakeSynthetic derives a deterministic (salt, verifier) pair from
// HMAC-SHA256(serverKey, normalizedUsername), per spec.md §4.E.
func MakeSynthetic(g Group, serverKey []byte, normalizedUsername string) SyntheticRecord {
	mac := hmac.New(sha256.New, serverKey)
	mac.Write([]byte(normalizedUsername))
	seed := mac.Sum(nil)

	saltMac := hmac.New(sha256.New, serverKey)
	saltMac.Write(seed)
	saltMac.Write([]byte("salt"))
	salt := saltMac.Sum(nil)

	x := bignum.FromBytes(seed).Mod(g.N)
	v := ComputeVerifier(g, x)
	return SyntheticRecord{Salt: salt, Verifier: v}
}
