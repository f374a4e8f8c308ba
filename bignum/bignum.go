// Package bignum wraps math/big for the fixed-width, big-endian scalar
// arithmetic the SRP-6a handshake needs. Inputs are always treated as
// unsigned magnitudes; two's-complement interpretation is never used.
package bignum

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// ErrBadEncoding names a byte slice that cannot be interpreted as a
// big-endian unsigned integer of the expected width. FromBytes accepts any
// byte slice, so no function in this package returns it.
var ErrBadEncoding = errors.New("bignum: bad encoding")

// ErrOutOfRange is returned by RandomInRange when max is not positive.
var ErrOutOfRange = errors.New("bignum: value out of range")

// Int is a scalar used in the SRP transcript. The zero value is not usable;
// construct with FromBytes, FromInt64, or RandomInRange.
type Int struct {
	v *big.Int
}

// FromBytes interprets be as a big-endian unsigned integer.
func FromBytes(be []byte) Int {
	return Int{v: new(big.Int).SetBytes(be)}
}

// FromInt64 wraps a small non-negative literal, mainly for tests and
// well-known constants such as the generator g.
func FromInt64(x int64) Int {
	if x < 0 {
		panic("bignum: FromInt64 requires a non-negative value")
	}
	return Int{v: big.NewInt(x)}
}

// ToBytes renders n as a big-endian unsigned integer left-padded with
// zeroes to minLen bytes. It panics if n does not fit in minLen bytes,
// since every call site in this module knows minLen in advance (it is
// always the byte length of a group modulus).
func (n Int) ToBytes(minLen int) []byte {
	raw := n.v.Bytes()
	if len(raw) > minLen {
		panic("bignum: value does not fit in minLen bytes")
	}
	out := make([]byte, minLen)
	copy(out[minLen-len(raw):], raw)
	return out
}

// IsZero reports whether n is exactly zero.
func (n Int) IsZero() bool {
	return n.v.Sign() == 0
}

// IsZeroMod reports whether n mod m is zero. This is the check the spec
// requires for SRP's ephemeral public values (A mod N != 0).
func (n Int) IsZeroMod(m Int) bool {
	r := new(big.Int).Mod(n.v, m.v)
	return r.Sign() == 0
}

// Cmp compares n and other the way big.Int.Cmp does.
func (n Int) Cmp(other Int) int {
	return n.v.Cmp(other.v)
}

// Mod returns n mod m.
func (n Int) Mod(m Int) Int {
	return Int{v: new(big.Int).Mod(n.v, m.v)}
}

// ModExp returns (n^exp) mod m.
func (n Int) ModExp(exp, m Int) Int {
	return Int{v: new(big.Int).Exp(n.v, exp.v, m.v)}
}

// ModMul returns (n*other) mod m.
func (n Int) ModMul(other, m Int) Int {
	r := new(big.Int).Mul(n.v, other.v)
	r.Mod(r, m.v)
	return Int{v: r}
}

// ModInverse returns n^-1 mod m, or (Int{}, false) if n has no inverse.
func (n Int) ModInverse(m Int) (Int, bool) {
	r := new(big.Int)
	if r.ModInverse(n.v, m.v) == nil {
		return Int{}, false
	}
	return Int{v: r}, true
}

// Add returns n+other. Not modular; callers reduce explicitly when needed.
func (n Int) Add(other Int) Int {
	return Int{v: new(big.Int).Add(n.v, other.v)}
}

// Sub returns n-other.
func (n Int) Sub(other Int) Int {
	return Int{v: new(big.Int).Sub(n.v, other.v)}
}

// AddMod returns (n+other) mod m.
func (n Int) AddMod(other, m Int) Int {
	r := new(big.Int).Add(n.v, other.v)
	r.Mod(r, m.v)
	return Int{v: r}
}

// RandomInRange returns a uniformly random Int in [1, max), using
// rejection sampling so that zero is never returned.
func RandomInRange(max Int) (Int, error) {
	if max.v.Sign() <= 0 {
		return Int{}, ErrOutOfRange
	}
	for {
		k, err := rand.Int(rand.Reader, max.v)
		if err != nil {
			return Int{}, err
		}
		if k.Sign() != 0 {
			return Int{v: k}, nil
		}
	}
}

// Zero overwrites n's backing words so the scalar does not linger in
// memory after the handshake no longer needs it. Best-effort, like any
// Go-level zeroing: the garbage collector may have already copied the
// value elsewhere, but this closes the obvious window.
func (n Int) Zero() {
	if n.v == nil {
		return
	}
	words := n.v.Bits()
	for i := range words {
		words[i] = 0
	}
	n.v.SetInt64(0)
}
