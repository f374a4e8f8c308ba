package srp

import (
	"bytes"
	"testing"

	"github.com/aspia-go/peerauth/bignum"
)

func TestHandshakeMath(t *testing.T) {
	g := Default()

	// Registration: the embedder picks x from (salt, username, password)
	// by whatever KDF it likes; here we just need some scalar.
	x := bignum.FromInt64(424242)
	v := ComputeVerifier(g, x)

	b, err := bignum.RandomInRange(g.N)
	if err != nil {
		t.Fatal(err)
	}
	a, err := bignum.RandomInRange(g.N)
	if err != nil {
		t.Fatal(err)
	}

	bigB := ComputeB(g, v, b)
	bigA := g.G.ModExp(a, g.N)

	if !IsValidPublicValue(bigA, g) {
		t.Fatal("bigA unexpectedly invalid")
	}
	if !IsValidPublicValue(bigB, g) {
		t.Fatal("bigB unexpectedly invalid")
	}

	u := ComputeU(g, bigA, bigB)

	// Server's view: S = (A * v^u)^b
	serverS := ServerSharedSecret(g, bigA, v, u, b)

	// Client's view, computed independently via the SRP-6a identity
	// S = (B - k*v)^(a + u*x) mod N, to prove both parties land on the
	// same secret without this package exposing a client API (the
	// authenticator is server-only per spec.md).
	k := computeK(g)
	kv := k.ModMul(v, g.N)
	bMinusKv := bigB.Sub(kv).Mod(g.N)
	exp := a.Add(u.ModMul(x, g.N)).Mod(g.N.Sub(bignum.FromInt64(1)))
	clientS := bMinusKv.ModExp(exp, g.N)

	if clientS.Cmp(serverS) != 0 {
		t.Fatalf("client and server shared secrets disagree")
	}

	m1 := ComputeM1(g, bigA, bigB, serverS)
	m2 := ComputeM2(g, bigA, m1, serverS)
	if len(m1) != 32 || len(m2) != 32 {
		t.Fatalf("M1/M2 must be 32 bytes, got %d/%d", len(m1), len(m2))
	}
	if bytes.Equal(m1, m2) {
		t.Fatal("M1 and M2 must differ")
	}
}

func TestIsValidPublicValueRejectsZero(t *testing.T) {
	g := Default()
	zero := bignum.FromInt64(0)
	if IsValidPublicValue(zero, g) {
		t.Fatal("zero must be rejected as a public value")
	}
	nZero := g.N
	if IsValidPublicValue(nZero, g) {
		t.Fatal("N itself is 0 mod N and must be rejected")
	}
}

func TestMakeSyntheticIsDeterministic(t *testing.T) {
	g := Default()
	key := []byte("server-long-term-key-material-32b")
	r1 := MakeSynthetic(g, key, "mallory")
	r2 := MakeSynthetic(g, key, "mallory")
	if !bytes.Equal(r1.Salt, r2.Salt) {
		t.Fatal("synthetic salt must be deterministic for the same username")
	}
	if r1.Verifier.Cmp(r2.Verifier) != 0 {
		t.Fatal("synthetic verifier must be deterministic for the same username")
	}

	r3 := MakeSynthetic(g, key, "alice")
	if bytes.Equal(r1.Salt, r3.Salt) {
		t.Fatal("different usernames must not collide")
	}
}

func TestLookupUnknownGroup(t *testing.T) {
	if _, err := Lookup(GroupID(9999)); err != ErrUnknownGroup {
		t.Fatalf("expected ErrUnknownGroup, got %v", err)
	}
}
