package socket

import "time"

// Client is a Socket that connects out and can reconnect, recreating its
// descriptor when the target's family changes.
type Client struct {
	Socket
	connected bool
}

// NewClient creates a client without a descriptor.
func NewClient() *Client {
	return &Client{Socket: Socket{fd: -1}}
}

// Connect closes any current connection and connects to addr.
func (c *Client) Connect(addr Address) error {
	return c.ConnectWithTimeout(addr, NoTimeout)
}

// ConnectWithTimeout is Connect bounded by timeout.
func (c *Client) ConnectWithTimeout(addr Address, timeout time.Duration) error {
	if !addr.Valid() {
		return ErrInvalidAddress
	}
	c.Close()
	if err := c.create(addr.Family()); err != nil {
		return err
	}
	if err := c.Socket.ConnectWithTimeout(addr, timeout); err != nil {
		c.Socket.close()
		return err
	}
	c.connected = true
	return nil
}

// IsConnected reports whether the last Connect succeeded and the client
// has not been closed since.
func (c *Client) IsConnected() bool {
	return c.connected && c.Valid()
}

// Close closes the connection.
func (c *Client) Close() error {
	c.connected = false
	return c.Socket.close()
}
