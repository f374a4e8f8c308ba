package authenticator

import "errors"

// Config errors (spec.md §7: "ConfigError is raised synchronously to the
// embedder and never produces a wire message"). These come back directly
// from the Set*/Start calls, not from OnBytes.
var (
	ErrAlreadyStarted     = errors.New("authenticator: already started")
	ErrInvalidKey         = errors.New("authenticator: invalid private key")
	ErrPrivateKeyRequired = errors.New("authenticator: private key must be set before enabling anonymous access")
	ErrNotConfigured      = errors.New("authenticator: neither a user store nor anonymous access is configured")
	ErrNotStarted         = errors.New("authenticator: not started")
	ErrResultNotReady     = errors.New("authenticator: handshake has not reached Done")
)

// Protocol, policy, auth, and crypto errors collapse to one of the five
// wire statuses in wire.Result (spec.md §7); these internal values are for
// logging and for tests that want to assert exactly what went wrong.
var (
	ErrUnsupportedVersion = errors.New("authenticator: unsupported protocol version")
	ErrNoMethodInCommon   = errors.New("authenticator: no method in common")
	ErrUnexpectedMessage  = errors.New("authenticator: message received out of sequence")
	ErrBadClientKey       = errors.New("authenticator: client public value is invalid (A mod N == 0)")
	ErrInvalidM1          = errors.New("authenticator: client proof of knowledge did not verify")
	ErrSessionDenied      = errors.New("authenticator: requested session type is not permitted")
	ErrAckMismatch        = errors.New("authenticator: session response ack did not verify")
	ErrMalformedMessage   = errors.New("authenticator: malformed message")
)
