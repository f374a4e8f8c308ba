package authenticator

import (
	"context"
	"crypto/subtle"

	"github.com/aspia-go/peerauth/bignum"
	"github.com/aspia-go/peerauth/sessionkey"
	"github.com/aspia-go/peerauth/sessiontype"
	"github.com/aspia-go/peerauth/srp"
	"github.com/aspia-go/peerauth/userdb"
	"github.com/aspia-go/peerauth/wire"
)

// fail moves the handshake to Failed and encodes a Result carrying
// status. It always succeeds in producing a wire message: Result has no
// variable-length fields, so encoding it cannot fail the way encoding a
// handshake message with attacker-influenced contents could.
func (a *Authenticator) fail(status uint32, cause error) ([]byte, error) {
	a.state = Failed
	a.result = &wire.Result{Status: status}
	body, err := wire.Encode(a.result)
	if err != nil {
		return nil, err
	}
	a.logger.Warnf("handshake failed: %v", cause)
	return body, cause
}

func (a *Authenticator) handleClientHello(_ context.Context, data []byte) ([]byte, error) {
	var hello wire.ClientHello
	if err := wire.Decode(data, &hello); err != nil {
		return a.fail(wire.StatusInvalidProtocol, ErrMalformedMessage)
	}
	if hello.Version != ProtocolVersion {
		return a.fail(wire.StatusUnsupportedVersion, ErrUnsupportedVersion)
	}
	method, ok := chooseMethod(hello.MethodsMask, a.availableMethods())
	if !ok {
		return a.fail(wire.StatusInvalidProtocol, ErrNoMethodInCommon)
	}
	cipherID, ok := chooseCipher(hello.CipherMask)
	if !ok {
		return a.fail(wire.StatusInvalidProtocol, ErrNoMethodInCommon)
	}
	nonceS, err := newNonce()
	if err != nil {
		return nil, err
	}

	a.chosenMethod = method
	a.chosenCipher = cipherID
	a.nonceC = hello.NonceC
	a.nonceS = nonceS

	a.transcript.WriteU32(hello.Version)
	a.transcript.WriteU32(hello.MethodsMask)
	a.transcript.WriteU32(hello.CipherMask)
	a.transcript.WriteBytes(hello.NonceC[:])

	serverHello := &wire.ServerHello{
		Version:      ProtocolVersion,
		ChosenMethod: method,
		ChosenCipher: cipherID,
		NonceS:       nonceS,
		ServerPubKey: a.pubKeyBytes(),
	}
	reply, err := wire.Encode(serverHello)
	if err != nil {
		return nil, err
	}
	a.transcript.WriteU32(serverHello.Version)
	a.transcript.WriteU32(serverHello.ChosenMethod)
	a.transcript.WriteU32(serverHello.ChosenCipher)
	a.transcript.WriteBytes(serverHello.NonceS[:])
	a.transcript.WriteBytes(serverHello.ServerPubKey)

	a.state = SendServerHello
	if method == wire.MethodAnonymous {
		a.postWrite = a.sendAnonymousResult
	} else {
		a.state = AwaitIdentify
	}
	return reply, nil
}

// sendAnonymousResult is the anonymous path's second send, run from
// OnWriteDone once ServerHello has gone out. There is no Identify or key
// exchange on this path: the session key is bound to the two nonces and
// the server's long-term public key instead of an SRP secret.
func (a *Authenticator) sendAnonymousResult(_ context.Context) ([]byte, error) {
	kind, ok := a.anonMask.FirstSet()
	if !ok {
		return a.fail(wire.StatusSessionDenied, ErrSessionDenied)
	}
	a.chosenSessionType = kind
	a.sessionKey = sessionkey.DeriveAnonymous(a.nonceC[:], a.nonceS[:], a.pubKeyBytes())
	a.result = &wire.Result{Status: wire.StatusSuccess, SessionType: uint32(kind)}
	a.state = Done
	return wire.Encode(a.result)
}

func (a *Authenticator) handleIdentify(ctx context.Context, data []byte) ([]byte, error) {
	var id wire.Identify
	if err := wire.Decode(data, &id); err != nil {
		return a.fail(wire.StatusInvalidProtocol, ErrMalformedMessage)
	}
	normalized := userdb.NormalizeUsername(id.Username)
	if len(normalized) > wire.MaxUsernameBytes {
		return a.fail(wire.StatusInvalidProtocol, ErrMalformedMessage)
	}
	a.username = normalized

	a.transcript.WriteBytes([]byte(id.Username))
	a.transcript.WriteU32(id.GroupID)

	var salt []byte
	var verifier bignum.Int
	a.trueAllowedMask = 0

	rec, found, err := a.lookup(ctx, normalized)
	if err != nil {
		a.logger.Errorf("user store lookup failed: %v", err)
		found = false
	}

	// The account's own declared group wins over the client's hint: a
	// user record that names a group is authoritative for that account,
	// per spec.md §4.E's "if the user's declared group id is absent, use
	// the default group" (implying it is honored when present). A client
	// hint that disagrees with the group actually in play is logged and
	// ignored rather than honored.
	usedGroupID := srp.DefaultGroupID
	group := srp.Default()
	if found && rec.Enabled && rec.GroupID != 0 {
		if g, lookupErr := srp.Lookup(rec.GroupID); lookupErr == nil {
			group = g
			usedGroupID = rec.GroupID
		} else {
			a.logger.Errorf("user record names unknown srp group %d, using default: %v", rec.GroupID, lookupErr)
		}
	}
	if id.GroupID != 0 && id.GroupID != uint32(usedGroupID) {
		a.logger.Debugf("client requested srp group %d, using %d", id.GroupID, usedGroupID)
	}
	a.group = group

	if found && rec.Enabled {
		salt = rec.Salt
		verifier = bignum.FromBytes(rec.Verifier)
		a.trueAllowedMask = rec.AllowedSessionMask
	} else {
		synth := srp.MakeSynthetic(group, a.serverKeyMaterial(), normalized)
		salt = synth.Salt
		verifier = synth.Verifier
	}
	a.salt = salt
	a.verifier = verifier

	b, err := bignum.RandomInRange(group.N)
	if err != nil {
		return nil, err
	}
	a.b = b
	a.serverPub = srp.ComputeB(group, verifier, b)

	ske := &wire.ServerKeyExchange{
		Salt:               salt,
		B:                  a.serverPub.ToBytes(group.ByteLen),
		GroupID:            uint32(usedGroupID),
		SessionMaskOffered: uint32(sessiontype.AllKnown),
	}
	reply, err := wire.Encode(ske)
	if err != nil {
		return nil, err
	}
	a.transcript.WriteBytes(ske.Salt)
	a.transcript.WriteBytes(ske.B)
	a.transcript.WriteU32(ske.GroupID)
	a.transcript.WriteU32(ske.SessionMaskOffered)

	a.state = AwaitClientKeyExchange
	return reply, nil
}

func (a *Authenticator) lookup(ctx context.Context, normalized string) (userdb.Record, bool, error) {
	if a.store == nil {
		return userdb.Record{}, false, nil
	}
	return a.store.Find(ctx, normalized)
}

// handleClientKeyExchange always produces a well-formed SessionChallenge,
// whether or not the client's proof of knowledge verifies: spec.md's
// equal-time requirement forbids branching on the outcome here. The
// genuine verdict is recorded in m1valid and only acted on once the
// handshake reaches AwaitSessionResponse.
func (a *Authenticator) handleClientKeyExchange(_ context.Context, data []byte) ([]byte, error) {
	var cke wire.ClientKeyExchange
	if err := wire.Decode(data, &cke); err != nil {
		return a.fail(wire.StatusInvalidProtocol, ErrMalformedMessage)
	}
	clientPub := bignum.FromBytes(cke.A)
	if !srp.IsValidPublicValue(clientPub, a.group) {
		return a.fail(wire.StatusInvalidProtocol, ErrBadClientKey)
	}
	a.clientPub = clientPub

	a.transcript.WriteBytes(cke.A)
	a.transcript.WriteBytes(cke.M1[:])

	u := srp.ComputeU(a.group, clientPub, a.serverPub)
	s := srp.ServerSharedSecret(a.group, clientPub, a.verifier, u, a.b)

	expectedM1 := srp.ComputeM1(a.group, clientPub, a.serverPub, s)
	a.m1valid = subtle.ConstantTimeCompare(expectedM1, cke.M1[:]) == 1

	m2 := srp.ComputeM2(a.group, clientPub, expectedM1, s)

	// Derive zeroes s as a side effect; it must not be read after this call.
	a.sessionKey = sessionkey.Derive(s, a.group.ByteLen)

	params, err := wire.Encode(&wire.SessionParams{
		AllowedSessionMask: uint32(a.trueAllowedMask),
		ServerVersion:      ProtocolVersion,
	})
	if err != nil {
		return nil, err
	}
	// AAD binds the sealed blob to the transcript through ClientKeyExchange,
	// per spec.md §4.E, so it cannot be replayed into a different handshake.
	blob, err := a.sealParams(params, a.transcript.Sum())
	if err != nil {
		return nil, err
	}

	var m2Arr [32]byte
	copy(m2Arr[:], m2)

	challenge := &wire.SessionChallenge{M2: m2Arr, AeadBlob: blob}
	reply, err := wire.Encode(challenge)
	if err != nil {
		return nil, err
	}
	a.transcript.WriteBytes(challenge.M2[:])
	a.transcript.WriteBytes(challenge.AeadBlob)

	a.state = AwaitSessionResponse
	return reply, nil
}

func (a *Authenticator) handleSessionResponse(_ context.Context, data []byte) ([]byte, error) {
	var resp wire.SessionResponse
	if err := wire.Decode(data, &resp); err != nil {
		return a.fail(wire.StatusInvalidProtocol, ErrMalformedMessage)
	}

	// ackOK is the session-response Ack verified as an AEAD tag over the
	// transcript through SessionChallenge (spec.md §7), under a nonce
	// distinct from the one SessionParams was sealed with.
	ackOK := a.verifyAck(resp.Ack, a.transcript.Sum())

	mask, maskErr := sessiontype.NewMask(resp.ChosenSessionType)
	kind, single := mask.SingleKind()
	policyOK := maskErr == nil && single && a.trueAllowedMask.Contains(kind)

	if !a.m1valid {
		return a.fail(wire.StatusAccessDenied, ErrInvalidM1)
	}
	if !ackOK {
		return a.fail(wire.StatusAccessDenied, ErrAckMismatch)
	}
	if !policyOK {
		return a.fail(wire.StatusSessionDenied, ErrSessionDenied)
	}

	a.chosenSessionType = kind
	a.result = &wire.Result{Status: wire.StatusSuccess, SessionType: uint32(kind)}
	a.state = Done
	return wire.Encode(a.result)
}
