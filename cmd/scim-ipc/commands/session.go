package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/scim-im/scim-ipc/pkg/handshake"
	"github.com/scim-im/scim-ipc/pkg/socket"
	"github.com/scim-im/scim-ipc/pkg/transaction"
)

// ErrBadSignature indicates a frame whose signature is not the session key.
var ErrBadSignature = errors.New("frame signature does not match session key")

// Session is a connected, handshaken client connection.
type Session struct {
	client *socket.Client
	framer *transaction.Framer
	key    uint32
	addr   socket.Address
}

// Dial connects to addr and runs the handshake as clientType, requiring
// the server to announce serverType.
func Dial(addr socket.Address, clientType, serverType string, opts handshake.Options) (*Session, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = handshake.DefaultTimeout
	}

	c := socket.NewClient()
	if err := c.ConnectWithTimeout(addr, timeout); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	key, err := handshake.OpenConnection(c, clientType, serverType, opts)
	if err != nil {
		c.Close()
		return nil, err
	}

	f := transaction.NewFramer(c, timeout)
	f.SetSignature(key)
	if opts.Logger != nil {
		f.SetLogger(opts.Logger, opts.ConnID)
	}
	f.SetMetrics(opts.Metrics)
	return &Session{client: c, framer: f, key: key, addr: addr}, nil
}

// Key returns the session key.
func (s *Session) Key() uint32 { return s.key }

// Addr returns the server address.
func (s *Session) Addr() socket.Address { return s.addr }

// Send writes tr without waiting for a reply.
func (s *Session) Send(tr *transaction.Transaction) error {
	return s.framer.Send(tr)
}

// Call writes tr and waits for one reply frame.
func (s *Session) Call(tr *transaction.Transaction) (*transaction.Transaction, error) {
	if err := s.framer.Send(tr); err != nil {
		return nil, err
	}
	reply := transaction.New()
	sig, err := s.framer.Receive(reply)
	if err != nil {
		return nil, err
	}
	if sig != s.key {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrBadSignature, sig)
	}
	return reply, nil
}

// SetTimeout changes the per-frame timeout.
func (s *Session) SetTimeout(d time.Duration) {
	s.framer.SetTimeout(d)
}

// Close tells the server the connection is going away and closes it.
func (s *Session) Close() error {
	tr := transaction.New()
	tr.PutCommand(transaction.CmdRequest)
	tr.PutCommand(transaction.CmdCloseConnection)
	s.framer.Send(tr)
	return s.client.Close()
}
