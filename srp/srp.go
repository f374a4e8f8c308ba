package srp

import (
	"crypto/sha256"

	"github.com/aspia-go/peerauth/bignum"
)

// computeK returns k = SHA-256(N || pad(g)), the SRP-6a multiplier that
// binds B to v. Both operands are padded to the group's byte length, per
// spec.md §4.E.
func computeK(g Group) bignum.Int {
	h := sha256.New()
	h.Write(g.N.ToBytes(g.ByteLen))
	h.Write(g.G.ToBytes(g.ByteLen))
	return bignum.FromBytes(h.Sum(nil))
}

// ComputeVerifier returns v = g^x mod N given the private exponent x
// derived from the user's password (x = H(salt, username, password) is the
// embedder's concern; this function only does the group exponentiation).
func ComputeVerifier(g Group, x bignum.Int) bignum.Int {
	return g.G.ModExp(x, g.N)
}

// ComputeB returns the server's public ephemeral value
// B = (k*v + g^b) mod N.
func ComputeB(g Group, v, b bignum.Int) bignum.Int {
	k := computeK(g)
	kv := k.ModMul(v, g.N)
	gb := g.G.ModExp(b, g.N)
	return kv.AddMod(gb, g.N)
}

// IsValidPublicValue reports whether a client or server ephemeral public
// value is acceptable, i.e. non-zero modulo N. Accepting a zero A or B
// would let an attacker force a known shared secret.
func IsValidPublicValue(pub bignum.Int, g Group) bool {
	return !pub.IsZeroMod(g.N)
}

// ComputeU returns u = SHA-256(pad(A) || pad(B)), the scrambling parameter
// that binds the two ephemeral public values together.
func ComputeU(g Group, a, b bignum.Int) bignum.Int {
	h := sha256.New()
	h.Write(a.ToBytes(g.ByteLen))
	h.Write(b.ToBytes(g.ByteLen))
	return bignum.FromBytes(h.Sum(nil))
}

// ServerSharedSecret returns S = (A * v^u)^b mod N, the server's view of
// the shared secret.
func ServerSharedSecret(g Group, a, v, u, b bignum.Int) bignum.Int {
	vu := v.ModExp(u, g.N)
	avu := a.ModMul(vu, g.N)
	return avu.ModExp(b, g.N)
}

// ComputeM1 returns M1 = SHA-256(pad(A) || pad(B) || pad(S)), the client's
// proof of knowledge of the shared secret.
func ComputeM1(g Group, a, b, s bignum.Int) []byte {
	h := sha256.New()
	h.Write(a.ToBytes(g.ByteLen))
	h.Write(b.ToBytes(g.ByteLen))
	h.Write(s.ToBytes(g.ByteLen))
	return h.Sum(nil)
}

// ComputeM2 returns M2 = SHA-256(pad(A) || M1 || pad(S)), the server's
// counter-proof carried in SessionChallenge.
func ComputeM2(g Group, a bignum.Int, m1 []byte, s bignum.Int) []byte {
	h := sha256.New()
	h.Write(a.ToBytes(g.ByteLen))
	h.Write(m1)
	h.Write(s.ToBytes(g.ByteLen))
	return h.Sum(nil)
}
