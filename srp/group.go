// Package srp implements the SRP-6a math the authenticator's identify and
// key-exchange states need: the group registry, verifier computation, the
// server's share of the B/S/M1/M2 transcript, and the k constant.
//
// Padding is fixed: every hash input is the big-endian encoding of a scalar,
// left-padded to the byte length of the group modulus N. This module does
// not negotiate padding width with a peer; bit-exact agreement is assumed,
// per spec.md's "agreement on padding width is load-bearing".
package srp

import (
	"errors"

	"github.com/aspia-go/peerauth/bignum"
)

// ErrUnknownGroup is returned by Lookup for a GroupID with no registered
// (N, g) pair.
var ErrUnknownGroup = errors.New("srp: unknown group id")

// GroupID identifies an SRP group the way the wire protocol does: a small
// number agreed on out of band, not the group parameters themselves.
type GroupID uint32

// Well-known group identifiers. DefaultGroupID is used whenever a user
// record does not declare one. The registry is immutable at runtime;
// additional groups can be added here as new constants without touching
// any caller.
const (
	GroupRFC3526_2048 GroupID = 2

	DefaultGroupID = GroupRFC3526_2048
)

// Group is an SRP group: a safe prime N and a generator g.
type Group struct {
	N bignum.Int
	G bignum.Int

	// ByteLen is the left-pad width used for every big-endian encoding
	// involving this group (len(N) in bytes).
	ByteLen int
}

var registry map[GroupID]Group

func init() {
	registry = map[GroupID]Group{
		GroupRFC3526_2048: newGroup(rfc3526N2048Hex, 2),
	}
}

func newGroup(nHex string, g int64) Group {
	raw, err := decodeHex(nHex)
	if err != nil {
		panic("srp: bad built-in group constant: " + err.Error())
	}
	n := bignum.FromBytes(raw)
	return Group{
		N:       n,
		G:       bignum.FromInt64(g),
		ByteLen: len(raw),
	}
}

// Lookup returns the group registered under id.
func Lookup(id GroupID) (Group, error) {
	g, ok := registry[id]
	if !ok {
		return Group{}, ErrUnknownGroup
	}
	return g, nil
}

// Default returns the group this module falls back to when a user record
// or client hint does not specify one.
func Default() Group {
	g, _ := Lookup(DefaultGroupID)
	return g
}
