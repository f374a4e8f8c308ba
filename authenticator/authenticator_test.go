package authenticator

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/aspia-go/peerauth/authlog"
	"github.com/aspia-go/peerauth/bignum"
	"github.com/aspia-go/peerauth/sessionkey"
	"github.com/aspia-go/peerauth/sessiontype"
	"github.com/aspia-go/peerauth/srp"
	"github.com/aspia-go/peerauth/userdb"
	"github.com/aspia-go/peerauth/wire"
	"golang.org/x/crypto/chacha20poly1305"
)

func newServerKey(t *testing.T) []byte {
	t.Helper()
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return priv.Bytes()
}

func deriveX(salt []byte, username, password string) bignum.Int {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(username))
	h.Write([]byte(password))
	return bignum.FromBytes(h.Sum(nil))
}

func registerUser(t *testing.T, store *userdb.MapStore, g srp.Group, username, password string, mask sessiontype.Mask) {
	t.Helper()
	// 32 bytes to match the width of srp.MakeSynthetic's HMAC-SHA256
	// output, so a real account's salt and a synthetic one are the same
	// length on the wire.
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		t.Fatal(err)
	}
	x := deriveX(salt, userdb.NormalizeUsername(username), password)
	v := srp.ComputeVerifier(g, x)
	store.Put(username, userdb.Record{
		Salt:               salt,
		Verifier:           v.ToBytes(g.ByteLen),
		GroupID:            srp.DefaultGroupID,
		AllowedSessionMask: mask,
		Enabled:            true,
	})
}

// clientK duplicates the unexported SRP multiplier the srp package computes
// internally, the same way cmd/authclient does: this test plays the part of
// the peer, which has no access to package srp's internals.
func clientK(g srp.Group) bignum.Int {
	h := sha256.New()
	h.Write(g.N.ToBytes(g.ByteLen))
	h.Write(g.G.ToBytes(g.ByteLen))
	return bignum.FromBytes(h.Sum(nil))
}

// srpClient carries a fake peer through the wire protocol against a real
// Authenticator, computing its own half of the SRP transcript.
type srpClient struct {
	t        *testing.T
	a        *Authenticator
	username string
	password string

	// params is the SessionParams decrypted from the most recent run, for
	// tests that want to inspect what the blob actually carried.
	params wire.SessionParams

	// expectDenied marks a run whose client secret differs from the
	// server's, so SessionChallenge.AeadBlob is not expected to decrypt.
	expectDenied bool
}

func (c *srpClient) send(ctx context.Context, msg interface{}) []byte {
	body, err := wire.Encode(msg)
	if err != nil {
		c.t.Fatal(err)
	}
	reply, err := c.a.OnBytes(ctx, body)
	if err != nil {
		return reply
	}
	return reply
}

// run drives ClientHello through SessionResponse and returns the final
// Result plus a non-nil error (ErrUnexpectedMessage if the server failed
// before SessionResponse, ErrAckMismatch if the final Result is not a
// success) unless Done is reached successfully. badPassword and requestedKind let the callers
// exercise the failure paths without duplicating the whole sequence.
//
// The client keeps its own wire.Transcript, built from exactly the bytes
// exchanged, and uses it to decrypt SessionChallenge.AeadBlob and to seal
// its own Ack, exercising the same AEAD round trip a real peer would.
func (c *srpClient) run(ctx context.Context, badPassword bool, requestedKind sessiontype.Kind) (wire.Result, error) {
	transcript := wire.NewTranscript()

	var nonceC [wire.NonceSize]byte
	rand.Read(nonceC[:])

	hello := &wire.ClientHello{
		Version:     ProtocolVersion,
		MethodsMask: wire.MethodSRP,
		CipherMask:  wire.CipherChaCha20Poly1305,
		NonceC:      nonceC,
	}
	transcript.WriteU32(hello.Version)
	transcript.WriteU32(hello.MethodsMask)
	transcript.WriteU32(hello.CipherMask)
	transcript.WriteBytes(hello.NonceC[:])

	helloReply := c.send(ctx, hello)
	if c.a.State() == Failed {
		var res wire.Result
		wire.Decode(helloReply, &res)
		return res, ErrUnexpectedMessage
	}
	var serverHello wire.ServerHello
	if err := wire.Decode(helloReply, &serverHello); err != nil {
		c.t.Fatal(err)
	}
	transcript.WriteU32(serverHello.Version)
	transcript.WriteU32(serverHello.ChosenMethod)
	transcript.WriteU32(serverHello.ChosenCipher)
	transcript.WriteBytes(serverHello.NonceS[:])
	transcript.WriteBytes(serverHello.ServerPubKey)

	ident := &wire.Identify{Username: c.username, GroupID: uint32(srp.DefaultGroupID)}
	transcript.WriteBytes([]byte(ident.Username))
	transcript.WriteU32(ident.GroupID)

	identReply := c.send(ctx, ident)
	if c.a.State() == Failed {
		var res wire.Result
		wire.Decode(identReply, &res)
		return res, ErrUnexpectedMessage
	}
	var ske wire.ServerKeyExchange
	if err := wire.Decode(identReply, &ske); err != nil {
		c.t.Fatal(err)
	}
	transcript.WriteBytes(ske.Salt)
	transcript.WriteBytes(ske.B)
	transcript.WriteU32(ske.GroupID)
	transcript.WriteU32(ske.SessionMaskOffered)

	g, err := srp.Lookup(srp.GroupID(ske.GroupID))
	if err != nil {
		g = srp.Default()
	}
	bigB := bignum.FromBytes(ske.B)

	password := c.password
	if badPassword {
		password = password + "-wrong"
	}
	x := deriveX(ske.Salt, userdb.NormalizeUsername(c.username), password)

	aExp, err := bignum.RandomInRange(g.N)
	if err != nil {
		c.t.Fatal(err)
	}
	bigA := g.G.ModExp(aExp, g.N)

	u := srp.ComputeU(g, bigA, bigB)
	k := clientK(g)
	kv := k.ModMul(srp.ComputeVerifier(g, x), g.N)
	base := bigB.Sub(kv).Mod(g.N)
	exp := aExp.Add(u.ModMul(x, g.N)).Mod(g.N.Sub(bignum.FromInt64(1)))
	s := base.ModExp(exp, g.N)

	m1 := srp.ComputeM1(g, bigA, bigB, s)
	var m1Arr [32]byte
	copy(m1Arr[:], m1)

	cke := &wire.ClientKeyExchange{A: bigA.ToBytes(g.ByteLen), M1: m1Arr}
	transcript.WriteBytes(cke.A)
	transcript.WriteBytes(cke.M1[:])
	paramsAAD := transcript.Sum()

	challengeReply := c.send(ctx, cke)
	if c.a.State() == Failed {
		var res wire.Result
		wire.Decode(challengeReply, &res)
		return res, ErrUnexpectedMessage
	}
	var challenge wire.SessionChallenge
	if err := wire.Decode(challengeReply, &challenge); err != nil {
		c.t.Fatal(err)
	}

	material := sessionkey.Derive(s, g.ByteLen)

	cipherAEAD, err := chacha20poly1305.New(material.Key[:])
	if err != nil {
		c.t.Fatal(err)
	}
	params, err := cipherAEAD.Open(nil, material.IV[:cipherAEAD.NonceSize()], challenge.AeadBlob, paramsAAD)
	if err != nil {
		// With a wrong password or a nonexistent account the client derives
		// a different shared secret from the server's and cannot open the
		// blob. It still answers with a SessionResponse: the server reports
		// the failure only as the Result to that message.
		if !c.expectDenied {
			c.t.Fatalf("SessionParams did not decrypt: %v", err)
		}
	} else {
		var sessionParams wire.SessionParams
		if err := wire.Decode(params, &sessionParams); err != nil {
			c.t.Fatal(err)
		}
		c.params = sessionParams
	}

	transcript.WriteBytes(challenge.M2[:])
	transcript.WriteBytes(challenge.AeadBlob)

	ackNonce := sessionkey.AckNonce(material.IV)
	ack := cipherAEAD.Seal(nil, ackNonce[:cipherAEAD.NonceSize()], nil, transcript.Sum())

	resultReply := c.send(ctx, &wire.SessionResponse{Ack: ack, ChosenSessionType: uint32(requestedKind)})
	var res wire.Result
	if err := wire.Decode(resultReply, &res); err != nil {
		c.t.Fatal(err)
	}
	if c.a.State() == Done && res.Status == wire.StatusSuccess {
		return res, nil
	}
	return res, ErrAckMismatch
}

func newStartedAuthenticator(t *testing.T, store userdb.Store, anon AnonymousAccess, anonMask sessiontype.Mask) (*Authenticator, []byte) {
	t.Helper()
	key := newServerKey(t)
	a := New(authlog.Nop())
	if store != nil {
		if err := a.SetUserList(store); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.SetPrivateKey(key); err != nil {
		t.Fatal(err)
	}
	if anon == AnonymousAccessEnable {
		if err := a.SetAnonymousAccess(AnonymousAccessEnable, anonMask); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return a, key
}

func TestHappyPathSRP(t *testing.T) {
	store := userdb.NewMapStore()
	g := srp.Default()
	registerUser(t, store, g, "Alice", "correct horse battery staple", sessiontype.Of(sessiontype.AuthorizedPeer))

	a, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)
	client := &srpClient{t: t, a: a, username: "alice", password: "correct horse battery staple"}

	res, err := client.run(context.Background(), false, sessiontype.AuthorizedPeer)
	if err != nil {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	if res.Status != wire.StatusSuccess {
		t.Fatalf("status = %d, want StatusSuccess", res.Status)
	}
	if sessiontype.Kind(res.SessionType) != sessiontype.AuthorizedPeer {
		t.Fatalf("session type = %d, want AuthorizedPeer", res.SessionType)
	}
	if a.State() != Done {
		t.Fatalf("state = %v, want Done", a.State())
	}
	if client.params.AllowedSessionMask != uint32(sessiontype.Of(sessiontype.AuthorizedPeer)) {
		t.Fatalf("decrypted SessionParams mask = %d, want %d", client.params.AllowedSessionMask, uint32(sessiontype.Of(sessiontype.AuthorizedPeer)))
	}
	if client.params.ServerVersion != ProtocolVersion {
		t.Fatalf("decrypted SessionParams version = %d, want %d", client.params.ServerVersion, ProtocolVersion)
	}
}

// TestSessionParamsBlobBoundToTranscript checks that SessionChallenge's
// AEAD blob cannot be decrypted against a transcript it was not actually
// sealed under, i.e. the AAD spec.md §4.E requires is load-bearing rather
// than decorative.
func TestSessionParamsBlobBoundToTranscript(t *testing.T) {
	store := userdb.NewMapStore()
	g := srp.Default()
	registerUser(t, store, g, "alice", "hunter2", sessiontype.Of(sessiontype.AuthorizedPeer))
	a, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)

	ske, challenge := identifyAndChallenge(t, a, "alice")
	_ = ske

	cipherAEAD, err := chacha20poly1305.New(a.sessionKey.Key[:])
	if err != nil {
		t.Fatal(err)
	}
	wrongAAD := []byte("not the real transcript")
	if _, err := cipherAEAD.Open(nil, a.sessionKey.IV[:cipherAEAD.NonceSize()], challenge.AeadBlob, wrongAAD); err == nil {
		t.Fatal("expected decryption under the wrong AAD to fail")
	}
}

// TestIdentifyUnknownRecordGroupFallsBackToDefault checks that a user
// record naming an unknown group id degrades to the default group rather
// than failing the handshake outright, and that the ServerKeyExchange it
// produces names the group actually used (not whatever the client happened
// to request).
func TestIdentifyUnknownRecordGroupFallsBackToDefault(t *testing.T) {
	store := userdb.NewMapStore()
	g := srp.Default()
	salt := make([]byte, 32)
	rand.Read(salt)
	x := deriveX(salt, "alice", "hunter2")
	store.Put("alice", userdb.Record{
		Salt:               salt,
		Verifier:           srp.ComputeVerifier(g, x).ToBytes(g.ByteLen),
		GroupID:            srp.GroupID(99999),
		AllowedSessionMask: sessiontype.Of(sessiontype.AuthorizedPeer),
		Enabled:            true,
	})

	shapeCheck, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)
	ske, _ := identifyAndChallenge(t, shapeCheck, "alice")
	if srp.GroupID(ske.GroupID) != srp.DefaultGroupID {
		t.Fatalf("ServerKeyExchange.GroupID = %d, want the default group once the record's group id is unknown", ske.GroupID)
	}

	a, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)
	client := &srpClient{t: t, a: a, username: "alice", password: "hunter2"}
	res, err := client.run(context.Background(), false, sessiontype.AuthorizedPeer)
	if err != nil {
		t.Fatalf("expected success despite the record's unknown group id, got err=%v res=%+v", err, res)
	}
}

func TestWrongPassword(t *testing.T) {
	store := userdb.NewMapStore()
	g := srp.Default()
	registerUser(t, store, g, "alice", "correct horse battery staple", sessiontype.Of(sessiontype.AuthorizedPeer))

	a, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)
	client := &srpClient{t: t, a: a, username: "alice", password: "correct horse battery staple", expectDenied: true}

	res, err := client.run(context.Background(), true, sessiontype.AuthorizedPeer)
	if err == nil {
		t.Fatal("expected failure for wrong password")
	}
	if res.Status != wire.StatusAccessDenied {
		t.Fatalf("status = %d, want StatusAccessDenied", res.Status)
	}
	if a.State() != Failed {
		t.Fatalf("state = %v, want Failed", a.State())
	}
}

func TestNonexistentUser(t *testing.T) {
	store := userdb.NewMapStore()
	a, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)
	client := &srpClient{t: t, a: a, username: "ghost", password: "whatever", expectDenied: true}

	res, err := client.run(context.Background(), false, sessiontype.AuthorizedPeer)
	if err == nil {
		t.Fatal("expected failure for nonexistent user")
	}
	if res.Status != wire.StatusAccessDenied {
		t.Fatalf("status = %d, want StatusAccessDenied", res.Status)
	}
}

func TestNonexistentUserShapeMatchesRealUser(t *testing.T) {
	store := userdb.NewMapStore()
	g := srp.Default()
	registerUser(t, store, g, "alice", "hunter2", sessiontype.Of(sessiontype.AuthorizedPeer))

	real, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)
	ghost, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)

	var nonceC [wire.NonceSize]byte
	hello := &wire.ClientHello{Version: ProtocolVersion, MethodsMask: wire.MethodSRP, CipherMask: wire.CipherChaCha20Poly1305, NonceC: nonceC}
	body, _ := wire.Encode(hello)

	realReply, _ := real.OnBytes(context.Background(), body)
	ghostReply, _ := ghost.OnBytes(context.Background(), body)
	if len(realReply) == 0 || len(ghostReply) == 0 {
		t.Fatal("both ClientHello replies must be non-empty")
	}

	realIdent, _ := real.OnBytes(context.Background(), mustEncode(t, &wire.Identify{Username: "alice"}))
	ghostIdent, _ := ghost.OnBytes(context.Background(), mustEncode(t, &wire.Identify{Username: "nobody"}))
	var realSKE, ghostSKE wire.ServerKeyExchange
	wire.Decode(realIdent, &realSKE)
	wire.Decode(ghostIdent, &ghostSKE)
	if len(realSKE.Salt) != len(ghostSKE.Salt) {
		t.Fatalf("salt length differs: real=%d ghost=%d, account existence must not be observable", len(realSKE.Salt), len(ghostSKE.Salt))
	}
	if realSKE.SessionMaskOffered != ghostSKE.SessionMaskOffered {
		t.Fatal("offered session mask must not depend on whether the account exists")
	}
}

func mustEncode(t *testing.T, v interface{}) []byte {
	t.Helper()
	body, err := wire.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestSessionTypeDenied(t *testing.T) {
	store := userdb.NewMapStore()
	g := srp.Default()
	registerUser(t, store, g, "alice", "hunter2", sessiontype.Of(sessiontype.AuthorizedPeer))

	a, _ := newStartedAuthenticator(t, store, AnonymousAccessDisable, 0)
	client := &srpClient{t: t, a: a, username: "alice", password: "hunter2"}

	res, err := client.run(context.Background(), false, sessiontype.Manager)
	if err == nil {
		t.Fatal("expected session-denied failure")
	}
	if res.Status != wire.StatusSessionDenied {
		t.Fatalf("status = %d, want StatusSessionDenied", res.Status)
	}
}

func TestAnonymousAccess(t *testing.T) {
	a, _ := newStartedAuthenticator(t, nil, AnonymousAccessEnable, sessiontype.Of(sessiontype.Manager))

	var nonceC [wire.NonceSize]byte
	rand.Read(nonceC[:])
	hello := &wire.ClientHello{Version: ProtocolVersion, MethodsMask: wire.MethodAnonymous, CipherMask: wire.CipherChaCha20Poly1305, NonceC: nonceC}

	reply, err := a.OnBytes(context.Background(), mustEncode(t, hello))
	if err != nil {
		t.Fatalf("ServerHello: %v", err)
	}
	var serverHello wire.ServerHello
	if err := wire.Decode(reply, &serverHello); err != nil {
		t.Fatal(err)
	}
	if serverHello.ChosenMethod != wire.MethodAnonymous {
		t.Fatal("expected anonymous method to be chosen")
	}

	final, err := a.OnWriteDone(context.Background())
	if err != nil {
		t.Fatalf("OnWriteDone: %v", err)
	}
	var res wire.Result
	if err := wire.Decode(final, &res); err != nil {
		t.Fatal(err)
	}
	if res.Status != wire.StatusSuccess {
		t.Fatalf("status = %d, want StatusSuccess", res.Status)
	}
	if sessiontype.Kind(res.SessionType) != sessiontype.Manager {
		t.Fatalf("session type = %d, want Manager", res.SessionType)
	}
	if a.State() != Done {
		t.Fatalf("state = %v, want Done", a.State())
	}
	got, err := a.TakeResult()
	if err != nil {
		t.Fatal(err)
	}
	if got != res {
		t.Fatal("TakeResult must match the Result already sent on the wire")
	}
}

func TestUnsupportedVersion(t *testing.T) {
	a, _ := newStartedAuthenticator(t, userdb.NewMapStore(), AnonymousAccessDisable, 0)
	var nonceC [wire.NonceSize]byte
	hello := &wire.ClientHello{Version: ProtocolVersion + 1, MethodsMask: wire.MethodSRP, CipherMask: wire.CipherChaCha20Poly1305, NonceC: nonceC}

	reply, err := a.OnBytes(context.Background(), mustEncode(t, hello))
	if err == nil {
		t.Fatal("expected an unsupported-version failure")
	}
	var res wire.Result
	wire.Decode(reply, &res)
	if res.Status != wire.StatusUnsupportedVersion {
		t.Fatalf("status = %d, want StatusUnsupportedVersion", res.Status)
	}
	if a.State() != Failed {
		t.Fatalf("state = %v, want Failed", a.State())
	}
}

func TestMalformedClientHello(t *testing.T) {
	a, _ := newStartedAuthenticator(t, userdb.NewMapStore(), AnonymousAccessDisable, 0)
	_, err := a.OnBytes(context.Background(), []byte{0xff, 0x00, 0x01})
	if err == nil {
		t.Fatal("expected a decode failure")
	}
	if a.State() != Failed {
		t.Fatalf("state = %v, want Failed", a.State())
	}
}

func TestTakeResultNotReadyBeforeDone(t *testing.T) {
	a, _ := newStartedAuthenticator(t, userdb.NewMapStore(), AnonymousAccessDisable, 0)
	if _, err := a.TakeResult(); err != ErrResultNotReady {
		t.Fatalf("expected ErrResultNotReady, got %v", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	a, _ := newStartedAuthenticator(t, userdb.NewMapStore(), AnonymousAccessDisable, 0)
	if err := a.Start(context.Background()); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestAnonymousRequiresPrivateKey(t *testing.T) {
	a := New(authlog.Nop())
	if err := a.SetAnonymousAccess(AnonymousAccessEnable, sessiontype.Of(sessiontype.Manager)); err != ErrPrivateKeyRequired {
		t.Fatalf("expected ErrPrivateKeyRequired, got %v", err)
	}
}

func TestStartRequiresConfiguration(t *testing.T) {
	a := New(authlog.Nop())
	if err := a.SetPrivateKey(newServerKey(t)); err != nil {
		t.Fatal(err)
	}
	if err := a.Start(context.Background()); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
