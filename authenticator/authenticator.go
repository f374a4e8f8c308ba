// Package authenticator implements the server side of the SRP-6a peer
// handshake: a single stateful type that consumes one wire message at a
// time and produces the next one to send, advancing through the states in
// package-level State.
//
// Grounded on the teacher's Auth1/Auth2/Auth3/AuthInit free functions in
// auth.go, restructured into methods on one type the way spec.md's own
// data model calls for ("prefer a sealed variant ... behind a single entry
// object" — spec.md §9). The callback shape (OnBytes/OnWriteDone) mirrors
// the asynchronous read/write split of the original Aspia C++ source
// (original_source/source/peer/server_authenticator.h), where a write is
// not assumed to complete synchronously with the call that issued it.
package authenticator

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/aspia-go/peerauth/authlog"
	"github.com/aspia-go/peerauth/bignum"
	"github.com/aspia-go/peerauth/sessionkey"
	"github.com/aspia-go/peerauth/sessiontype"
	"github.com/aspia-go/peerauth/srp"
	"github.com/aspia-go/peerauth/userdb"
	"github.com/aspia-go/peerauth/wire"
)

// ProtocolVersion is the only version this authenticator speaks. A
// ClientHello naming any other version fails with StatusUnsupportedVersion.
const ProtocolVersion uint32 = 1

// Authenticator drives one server-side handshake. It is not safe for
// concurrent use: every call (Start, OnBytes, OnWriteDone, TakeResult,
// State) must come from the same executor.Executor task, per spec.md §5.
type Authenticator struct {
	logger authlog.Logger

	store     userdb.Store
	privKey   *ecdh.PrivateKey
	anonymous AnonymousAccess
	anonMask  sessiontype.Mask

	started bool
	state   State
	result  *wire.Result

	// postWrite, when set, is what OnWriteDone runs: a state that must send
	// a second message before the next read, with no read in between (the
	// anonymous fast path's ServerHello followed immediately by Result).
	postWrite func(ctx context.Context) ([]byte, error)

	chosenMethod uint32
	chosenCipher uint32
	nonceC       [wire.NonceSize]byte
	nonceS       [wire.NonceSize]byte

	group           srp.Group
	username        string
	salt            []byte
	verifier        bignum.Int
	b               bignum.Int
	serverPub       bignum.Int
	clientPub       bignum.Int
	trueAllowedMask sessiontype.Mask
	m1valid         bool

	// transcript folds in every field of each message exchanged so far.
	// It backs the AEAD associated data for both the SessionParams blob
	// and the session-response Ack (spec.md §4.E, §7).
	transcript *wire.Transcript

	sessionKey        sessionkey.Material
	chosenSessionType sessiontype.Kind
}

// New returns an unstarted Authenticator. Pass authlog.Nop() if the
// embedder has no logging collaborator; a nil logger is replaced with one
// on Start.
func New(logger authlog.Logger) *Authenticator {
	return &Authenticator{logger: logger}
}

// SetUserList installs the verifier store consulted during AwaitIdentify.
// Must be called before Start.
func (a *Authenticator) SetUserList(store userdb.Store) error {
	if a.started {
		return ErrAlreadyStarted
	}
	a.store = store
	return nil
}

// SetPrivateKey installs the server's long-term X25519 private key, raw
// 32-byte scalar form. Must be called before Start.
func (a *Authenticator) SetPrivateKey(raw []byte) error {
	if a.started {
		return ErrAlreadyStarted
	}
	priv, err := ecdh.X25519().NewPrivateKey(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	a.privKey = priv
	return nil
}

// SetAnonymousAccess enables or disables the anonymous fast path and the
// session-kind mask it is allowed to grant. Enabling anonymous access
// requires a private key to already be set, since the anonymous session
// key is bound to the server's public key (sessionkey.DeriveAnonymous).
func (a *Authenticator) SetAnonymousAccess(mode AnonymousAccess, mask sessiontype.Mask) error {
	if a.started {
		return ErrAlreadyStarted
	}
	if mode == AnonymousAccessEnable && a.privKey == nil {
		return ErrPrivateKeyRequired
	}
	a.anonymous = mode
	a.anonMask = mask
	return nil
}

// Start validates configuration and arms the state machine at
// AwaitClientHello. It returns a ConfigError-class error synchronously;
// none of these ever produce a wire message, per spec.md §7.
func (a *Authenticator) Start(_ context.Context) error {
	if a.started {
		return ErrAlreadyStarted
	}
	if a.privKey == nil {
		return ErrPrivateKeyRequired
	}
	if a.store == nil && a.anonymous != AnonymousAccessEnable {
		return ErrNotConfigured
	}
	if a.logger == nil {
		a.logger = authlog.Nop()
	}
	a.started = true
	a.state = AwaitClientHello
	a.transcript = wire.NewTranscript()
	return nil
}

// OnBytes feeds one received wire message to the state machine. It
// returns the next message to send, if any, and an error describing why
// the handshake failed, if it did; a non-nil reply is returned alongside
// a non-nil error whenever the failure itself produced a wire-visible
// Result, so the embedder can write the reply before closing the
// connection.
func (a *Authenticator) OnBytes(ctx context.Context, data []byte) ([]byte, error) {
	if !a.started {
		return nil, ErrNotStarted
	}
	switch a.state {
	case AwaitClientHello:
		return a.handleClientHello(ctx, data)
	case AwaitIdentify:
		return a.handleIdentify(ctx, data)
	case AwaitClientKeyExchange:
		return a.handleClientKeyExchange(ctx, data)
	case AwaitSessionResponse:
		return a.handleSessionResponse(ctx, data)
	default:
		return nil, ErrUnexpectedMessage
	}
}

// OnWriteDone must be called once the embedder has finished writing the
// bytes the previous OnBytes (or OnWriteDone) call returned. Most states
// have nothing left to send and this returns (nil, nil); the anonymous
// fast path uses it to send Result immediately after ServerHello, with no
// intervening read.
func (a *Authenticator) OnWriteDone(ctx context.Context) ([]byte, error) {
	if a.postWrite == nil {
		return nil, nil
	}
	fn := a.postWrite
	a.postWrite = nil
	return fn(ctx)
}

// TakeResult returns the terminal Result once the handshake has reached
// Done or Failed. It returns ErrResultNotReady before that.
func (a *Authenticator) TakeResult() (wire.Result, error) {
	if a.state != Done && a.state != Failed || a.result == nil {
		return wire.Result{}, ErrResultNotReady
	}
	return *a.result, nil
}

// State reports the current handshake state.
func (a *Authenticator) State() State {
	return a.state
}

func (a *Authenticator) availableMethods() uint32 {
	var m uint32
	if a.store != nil {
		m |= wire.MethodSRP
	}
	if a.anonymous == AnonymousAccessEnable {
		m |= wire.MethodAnonymous
	}
	return m
}

func chooseMethod(clientMask, serverMask uint32) (uint32, bool) {
	common := clientMask & serverMask
	if common&wire.MethodSRP != 0 {
		return wire.MethodSRP, true
	}
	if common&wire.MethodAnonymous != 0 {
		return wire.MethodAnonymous, true
	}
	return 0, false
}

func chooseCipher(clientMask uint32) (uint32, bool) {
	if clientMask&wire.CipherChaCha20Poly1305 != 0 {
		return wire.CipherChaCha20Poly1305, true
	}
	if clientMask&wire.CipherAES256GCM != 0 {
		return wire.CipherAES256GCM, true
	}
	return 0, false
}

func (a *Authenticator) pubKeyBytes() []byte {
	return a.privKey.PublicKey().Bytes()
}

// serverKeyMaterial is the HMAC key synthetic records are derived under.
// It must never vary between a real lookup miss and a real lookup hit for
// the same username, so the long-term private key — constant for the
// life of the Authenticator — is used rather than anything per-handshake.
func (a *Authenticator) serverKeyMaterial() []byte {
	return a.privKey.Bytes()
}

func newNonce() ([wire.NonceSize]byte, error) {
	var n [wire.NonceSize]byte
	_, err := rand.Read(n[:])
	return n, err
}
