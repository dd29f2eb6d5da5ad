package masterserver

import (
	"github.com/SFTtech/openage-lobbyserver/internal/protocol"
)

// Client represents one authenticated session participant. Created after
// password verification, destroyed when the session exits. The inbox is the
// sole input of the session's processor; the codec is the only writer to the
// socket and serializes writes internally.
type Client struct {
	name  string
	host  string
	codec *protocol.Codec
	inbox *Inbox
}

// NewClient creates a client record for an authenticated connection.
func NewClient(name, host string, codec *protocol.Codec) *Client {
	return &Client{
		name:  name,
		host:  host,
		codec: codec,
		inbox: NewInbox(),
	}
}

// Name returns the unique username.
func (c *Client) Name() string {
	return c.name
}

// Host returns the printable peer address.
func (c *Client) Host() string {
	return c.host
}

// Inbox returns the client's mailbox.
func (c *Client) Inbox() *Inbox {
	return c.inbox
}

// Send writes a message to the client's own socket.
func (c *Client) Send(m protocol.Message) error {
	return c.codec.Write(m)
}
