package commands

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/scim-im/scim-ipc/pkg/handshake"
	"github.com/scim-im/scim-ipc/pkg/log"
	"github.com/scim-im/scim-ipc/pkg/metrics"
	"github.com/scim-im/scim-ipc/pkg/socket"
	"github.com/scim-im/scim-ipc/pkg/transaction"
)

// EchoService is a minimal SCIM peer used to exercise clients. It runs
// the handshake on accept and answers each REQUEST with REPLY followed
// by the request's remaining values.
type EchoService struct {
	// ServerTypes is announced during the handshake.
	ServerTypes string

	// ClientTypes lists the accepted client types.
	ClientTypes string

	// Timeout bounds each frame.
	Timeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger

	// Metrics records frames and handshakes (optional).
	Metrics *metrics.Metrics

	// Ops receives operational logs. Defaults to slog.Default().
	Ops *slog.Logger

	mu       sync.Mutex
	sessions map[*socket.Socket]*echoSession
}

type echoSession struct {
	framer   *transaction.Framer
	key      uint32
	peerType string
}

// ServerConfig returns a server configuration wired to the service.
func (e *EchoService) ServerConfig(addr socket.Address, maxClients int) socket.ServerConfig {
	return socket.ServerConfig{
		Address:     addr,
		MaxClients:  maxClients,
		Logger:      e.Logger,
		Metrics:     e.Metrics,
		OnAccept:    e.OnAccept,
		OnReceive:   e.OnReceive,
		OnException: e.OnException,
	}
}

// NumSessions returns the number of handshaken connections.
func (e *EchoService) NumSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Reset forgets every session and returns how many there were. Server
// shutdown closes connections without callbacks, so call it once Run
// has returned.
func (e *EchoService) Reset() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.sessions)
	clear(e.sessions)
	return n
}

func (e *EchoService) ops() *slog.Logger {
	if e.Ops != nil {
		return e.Ops
	}
	return slog.Default()
}

// OnAccept runs the acceptor side of the handshake.
func (e *EchoService) OnAccept(srv *socket.Server, c *socket.Socket) {
	peerType, key, err := handshake.AcceptConnection(c, e.ServerTypes, e.ClientTypes, handshake.Options{
		Timeout: e.Timeout,
		Logger:  e.Logger,
		ConnID:  c.ConnID(),
		Metrics: e.Metrics,
	})
	if err != nil {
		e.ops().Warn("handshake failed", "conn_id", c.ConnID(), "remote", c.RemoteAddr(), "error", err)
		srv.CloseConnection(c)
		return
	}

	f := transaction.NewFramer(c, e.Timeout)
	f.SetSignature(key)
	if e.Logger != nil {
		f.SetLogger(e.Logger, c.ConnID())
	}
	f.SetMetrics(e.Metrics)

	e.mu.Lock()
	if e.sessions == nil {
		e.sessions = make(map[*socket.Socket]*echoSession)
	}
	e.sessions[c] = &echoSession{framer: f, key: key, peerType: peerType}
	e.mu.Unlock()

	e.ops().Info("session opened", "conn_id", c.ConnID(), "peer_type", peerType, "remote", c.RemoteAddr())
}

// OnReceive reads one frame and answers it.
func (e *EchoService) OnReceive(srv *socket.Server, c *socket.Socket) {
	e.mu.Lock()
	sess := e.sessions[c]
	e.mu.Unlock()
	if sess == nil {
		e.close(srv, c)
		return
	}

	tr := transaction.New()
	sig, err := sess.framer.Receive(tr)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			e.ops().Warn("receive failed", "conn_id", c.ConnID(), "error", err)
		}
		e.close(srv, c)
		return
	}
	if sig != sess.key {
		e.ops().Warn("signature mismatch", "conn_id", c.ConnID(), "signature", sig)
		e.close(srv, c)
		return
	}

	reply, keep := Echo(tr)
	if !keep {
		e.close(srv, c)
		return
	}
	if err := sess.framer.Send(reply); err != nil {
		e.ops().Warn("send failed", "conn_id", c.ConnID(), "error", err)
		e.close(srv, c)
	}
}

// OnException drops the connection.
func (e *EchoService) OnException(srv *socket.Server, c *socket.Socket) {
	e.close(srv, c)
}

func (e *EchoService) close(srv *socket.Server, c *socket.Socket) {
	e.mu.Lock()
	delete(e.sessions, c)
	e.mu.Unlock()
	srv.CloseConnection(c)
}

// Echo computes the reply to a request. It reports false when the
// connection should be closed instead.
func Echo(req *transaction.Transaction) (*transaction.Transaction, bool) {
	reply := transaction.New()
	reply.PutCommand(transaction.CmdReply)

	r := req.Reader()
	cmd, ok := r.GetCommand()
	if !ok || cmd != transaction.CmdRequest {
		reply.PutCommand(transaction.CmdFail)
		return reply, true
	}
	var values []transaction.Value
	for {
		v, ok := r.Next()
		if !ok {
			break
		}
		values = append(values, v)
	}
	if len(values) > 0 {
		if next, ok := values[0].(transaction.Command); ok && next == transaction.CmdCloseConnection {
			return nil, false
		}
	}
	for _, v := range values {
		reply.Put(v)
	}
	return reply, true
}
