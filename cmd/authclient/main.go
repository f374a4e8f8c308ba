// Command authclient is a minimal client driving the SRP handshake
// against cmd/authserver, computing its half of the transcript directly
// (there is no client-side package in this module; spec.md scopes the
// authenticator to the server role, so this binary plays the peer itself).
//
// Grounded on the teacher's cmd/client/main.go (flag parsing,
// net.Dial, bufio-framed request/response).
package main

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/aspia-go/peerauth/bignum"
	"github.com/aspia-go/peerauth/sessionkey"
	"github.com/aspia-go/peerauth/sessiontype"
	"github.com/aspia-go/peerauth/srp"
	"github.com/aspia-go/peerauth/wire"
	"golang.org/x/crypto/chacha20poly1305"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s is a minimal client for the peerauth SRP handshake. It can be used together with cmd/authserver.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
	}

	addr := flag.String("addr", "localhost:9999", "server address")
	username := flag.String("user", "alice", "username")
	password := flag.String("pass", "correct horse battery staple", "password")
	sessionKind := flag.Uint("session", uint(sessiontype.AuthorizedPeer), "requested session kind bit")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := runHandshake(conn, *username, *password, sessiontype.Kind(*sessionKind)); err != nil {
		fmt.Fprintf(os.Stderr, "handshake: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("authenticated")
}

func sendRecv(conn net.Conn, msg interface{}, into interface{}) error {
	if err := wire.WriteFrame(conn, msg); err != nil {
		return err
	}
	return wire.ReadFrame(conn, into)
}

func runHandshake(conn net.Conn, username, password string, kind sessiontype.Kind) error {
	transcript := wire.NewTranscript()

	var nonceC [wire.NonceSize]byte
	if _, err := rand.Read(nonceC[:]); err != nil {
		return err
	}
	hello := &wire.ClientHello{
		Version:     1,
		MethodsMask: wire.MethodSRP,
		CipherMask:  wire.CipherChaCha20Poly1305,
		NonceC:      nonceC,
	}
	transcript.WriteU32(hello.Version)
	transcript.WriteU32(hello.MethodsMask)
	transcript.WriteU32(hello.CipherMask)
	transcript.WriteBytes(hello.NonceC[:])

	var serverHello wire.ServerHello
	if err := sendRecv(conn, hello, &serverHello); err != nil {
		return fmt.Errorf("ClientHello: %w", err)
	}
	if serverHello.ChosenMethod != wire.MethodSRP {
		return fmt.Errorf("server did not choose SRP")
	}
	transcript.WriteU32(serverHello.Version)
	transcript.WriteU32(serverHello.ChosenMethod)
	transcript.WriteU32(serverHello.ChosenCipher)
	transcript.WriteBytes(serverHello.NonceS[:])
	transcript.WriteBytes(serverHello.ServerPubKey)

	ident := &wire.Identify{Username: username, GroupID: uint32(srp.DefaultGroupID)}
	transcript.WriteBytes([]byte(ident.Username))
	transcript.WriteU32(ident.GroupID)

	var ske wire.ServerKeyExchange
	if err := sendRecv(conn, ident, &ske); err != nil {
		return fmt.Errorf("Identify: %w", err)
	}
	transcript.WriteBytes(ske.Salt)
	transcript.WriteBytes(ske.B)
	transcript.WriteU32(ske.GroupID)
	transcript.WriteU32(ske.SessionMaskOffered)

	// The server's own ServerKeyExchange names the group actually in
	// play for this account; a client hint only ever gets honored if it
	// agrees, so this is always the group to use, not a fixed default.
	g, err := srp.Lookup(srp.GroupID(ske.GroupID))
	if err != nil {
		g = srp.Default()
	}
	bigB := bignum.FromBytes(ske.B)
	if !srp.IsValidPublicValue(bigB, g) {
		return fmt.Errorf("server sent an invalid public value")
	}

	x := deriveX(ske.Salt, username, password)
	aExp, err := bignum.RandomInRange(g.N)
	if err != nil {
		return err
	}
	bigA := g.G.ModExp(aExp, g.N)

	u := srp.ComputeU(g, bigA, bigB)
	v := srp.ComputeVerifier(g, x)
	k := clientK(g)
	kv := k.ModMul(v, g.N)
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

	var challenge wire.SessionChallenge
	if err := sendRecv(conn, cke, &challenge); err != nil {
		return fmt.Errorf("ClientKeyExchange: %w", err)
	}

	expectedM2 := srp.ComputeM2(g, bigA, m1, s)
	if subtle.ConstantTimeCompare(expectedM2, challenge.M2[:]) != 1 {
		return fmt.Errorf("server proof of knowledge did not verify")
	}

	material := sessionkey.Derive(s, g.ByteLen)
	cipherAEAD, err := chacha20poly1305.New(material.Key[:])
	if err != nil {
		return err
	}
	params, err := cipherAEAD.Open(nil, material.IV[:cipherAEAD.NonceSize()], challenge.AeadBlob, paramsAAD)
	if err != nil {
		return fmt.Errorf("session params did not decrypt: %w", err)
	}
	var sessionParams wire.SessionParams
	if err := wire.Decode(params, &sessionParams); err != nil {
		return fmt.Errorf("session params: %w", err)
	}

	transcript.WriteBytes(challenge.M2[:])
	transcript.WriteBytes(challenge.AeadBlob)

	ackNonce := sessionkey.AckNonce(material.IV)
	ack := cipherAEAD.Seal(nil, ackNonce[:cipherAEAD.NonceSize()], nil, transcript.Sum())

	var result wire.Result
	if err := sendRecv(conn, &wire.SessionResponse{Ack: ack, ChosenSessionType: uint32(kind)}, &result); err != nil {
		return fmt.Errorf("SessionResponse: %w", err)
	}
	if result.Status != wire.StatusSuccess {
		return fmt.Errorf("server rejected the session, status=%d", result.Status)
	}
	return nil
}

func deriveX(salt []byte, username, password string) bignum.Int {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(username))
	h.Write([]byte(password))
	return bignum.FromBytes(h.Sum(nil))
}

// clientK duplicates the SRP multiplier the server side computes
// internally (unexported in package srp); the client needs it to recover
// the shared secret from B, exactly as srp_test.go's handshake math test
// does.
func clientK(g srp.Group) bignum.Int {
	h := sha256.New()
	h.Write(g.N.ToBytes(g.ByteLen))
	h.Write(g.G.ToBytes(g.ByteLen))
	return bignum.FromBytes(h.Sum(nil))
}
