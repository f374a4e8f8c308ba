package sessionkey

import (
	"bytes"
	"testing"

	"github.com/aspia-go/peerauth/bignum"
)

func TestDeriveIsDeterministic(t *testing.T) {
	s1 := bignum.FromInt64(123456789)
	s2 := bignum.FromInt64(123456789)

	m1 := Derive(s1, 32)
	m2 := Derive(s2, 32)

	if m1.Key != m2.Key {
		t.Fatal("Derive must be deterministic in the key")
	}
	if m1.IV != m2.IV {
		t.Fatal("Derive must be deterministic in the IV")
	}
	if bytes.Equal(m1.Key[:], m1.IV[:]) {
		t.Fatal("key and IV must differ in content, not just size")
	}
}

func TestDeriveZeroesInput(t *testing.T) {
	s := bignum.FromInt64(42)
	_ = Derive(s, 8)
	if !s.IsZero() {
		t.Fatal("Derive must zero its input secret")
	}
}

func TestDeriveAnonymousVariesWithNonces(t *testing.T) {
	pub := []byte("server-public-key-bytes")
	m1 := DeriveAnonymous([]byte("nonceC-1"), []byte("nonceS-1"), pub)
	m2 := DeriveAnonymous([]byte("nonceC-2"), []byte("nonceS-1"), pub)
	if bytes.Equal(m1.Key[:], m2.Key[:]) {
		t.Fatal("different client nonces must yield different keys")
	}
}
