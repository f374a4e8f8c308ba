// Package transport provides the byte-oriented duplex channel collaborator
// spec.md §6 describes: something that delivers one handshake message per
// read and accepts one per write, agnostic to what is inside the message.
//
// Grounded on the teacher's internal/pkg/util.Read/Write (bufio-based
// framing helpers in cmd/server and cmd/client) and on
// katzenpost-katzenpost's wire/server.Server connection-handling loop.
package transport

import (
	"context"
	"net"

	"github.com/aspia-go/peerauth/wire"
)

// Channel is the authenticator's view of the network: read one message,
// write one message, close. The authenticator never sees framing details
// beyond the message boundary, per spec.md §6.
type Channel interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, body []byte) error
	Close() error
}

// NetChannel is a Channel backed by a net.Conn, using the length-prefixed
// framing from package wire.
type NetChannel struct {
	conn net.Conn
}

// NewNetChannel wraps conn as a Channel.
func NewNetChannel(conn net.Conn) *NetChannel {
	return &NetChannel{conn: conn}
}

// ReadMessage blocks until one framed message arrives, or ctx's deadline
// (if it has one) passes. Cancelling a ctx without a deadline does not
// interrupt a read in progress.
func (c *NetChannel) ReadMessage(ctx context.Context) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(dl)
	}
	return wire.ReadRawFrame(c.conn)
}

// WriteMessage frames and sends body.
func (c *NetChannel) WriteMessage(ctx context.Context, body []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	}
	return wire.WriteRawFrame(c.conn, body)
}

// Close closes the underlying connection.
func (c *NetChannel) Close() error {
	return c.conn.Close()
}

var _ Channel = (*NetChannel)(nil)
