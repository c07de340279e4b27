package handshake

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scim-im/scim-ipc/pkg/log"
	"github.com/scim-im/scim-ipc/pkg/metrics"
	"github.com/scim-im/scim-ipc/pkg/transaction"
	"github.com/scim-im/scim-ipc/pkg/version"
)

// ProbeType is the client type used purely to test that a server is alive.
// Servers accept it regardless of their client type list.
const ProbeType = "ConnectionTester"

// DefaultTimeout bounds each handshake frame when Options.Timeout is 0.
const DefaultTimeout = 5 * time.Second

// Handshake errors.
var (
	// ErrProtocol indicates a message that does not follow the handshake.
	ErrProtocol = errors.New("handshake protocol violation")

	// ErrVersionMismatch indicates the peers speak different binary versions.
	ErrVersionMismatch = errors.New("binary version mismatch")

	// ErrTypeRejected indicates the peer type is not in the accepted list.
	ErrTypeRejected = errors.New("peer type not accepted")

	// ErrRefused indicates the peer answered FAIL.
	ErrRefused = errors.New("connection refused by peer")
)

// Options configures a handshake. The zero value is usable.
type Options struct {
	// Timeout bounds each frame (0 = DefaultTimeout, negative = none).
	Timeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger

	// ConnID identifies the connection in log events.
	ConnID string

	// Metrics records handshake outcomes (optional).
	Metrics *metrics.Metrics
}

func (o Options) framer(ep transaction.Endpoint) *transaction.Framer {
	timeout := o.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	f := transaction.NewFramer(ep, timeout)
	if o.Logger != nil {
		f.SetLogger(o.Logger, o.ConnID)
	}
	f.SetMetrics(o.Metrics)
	return f
}

// CheckType reports whether t is one of the comma separated names in list.
func CheckType(list, t string) bool {
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == t && t != "" {
			return true
		}
	}
	return false
}

// OpenConnection runs the connector side over ep, announcing clientType
// and requiring the acceptor to list serverType. It returns the session
// key.
func OpenConnection(ep transaction.Endpoint, clientType, serverType string, opts Options) (uint32, error) {
	key, _, err := open(ep, clientType, func(types string) bool {
		return CheckType(types, serverType)
	}, opts)
	return key, err
}

func open(ep transaction.Endpoint, clientType string, accept func(string) bool, opts Options) (uint32, string, error) {
	f := opts.framer(ep)
	key, types, err := runOpen(f, clientType, accept)
	opts.Metrics.Handshake("open", err == nil)
	logSession(opts, types, err)
	return key, types, err
}

func runOpen(f *transaction.Framer, clientType string, accept func(string) bool) (uint32, string, error) {
	tr := transaction.New()
	tr.PutCommand(transaction.CmdRequest)
	tr.PutCommand(transaction.CmdOpenConnection)
	tr.PutString(version.Binary)
	tr.PutString(clientType)
	if err := f.Send(tr); err != nil {
		return 0, "", fmt.Errorf("failed to send open request: %w", err)
	}

	if _, err := f.Receive(tr); err != nil {
		return 0, "", fmt.Errorf("failed to read open reply: %w", err)
	}
	r := tr.Reader()
	if cmd, ok := r.GetCommand(); !ok || cmd != transaction.CmdReply {
		return 0, "", fmt.Errorf("%w: expected REPLY", ErrProtocol)
	}
	types, ok := r.GetString()
	if !ok {
		// A bare REPLY, FAIL means the acceptor turned us down.
		if cmd, ok := r.GetCommand(); ok && cmd == transaction.CmdFail {
			return 0, "", ErrRefused
		}
		return 0, "", fmt.Errorf("%w: expected server types", ErrProtocol)
	}
	key, ok := r.GetUint32()
	if !ok {
		return 0, types, fmt.Errorf("%w: expected session key", ErrProtocol)
	}

	tr.Clear()
	tr.PutCommand(transaction.CmdReply)
	if !accept(types) {
		tr.PutCommand(transaction.CmdFail)
		f.Send(tr)
		return 0, types, fmt.Errorf("%w: server types %q", ErrTypeRejected, types)
	}
	tr.PutCommand(transaction.CmdOK)
	if err := f.Send(tr); err != nil {
		return 0, types, fmt.Errorf("failed to send confirmation: %w", err)
	}
	return key, types, nil
}

// AcceptConnection runs the acceptor side over ep. serverTypes is sent to
// the connector; clientTypes lists the connector types accepted. It
// returns the connector's type and the session key.
func AcceptConnection(ep transaction.Endpoint, serverTypes, clientTypes string, opts Options) (string, uint32, error) {
	f := opts.framer(ep)
	clientType, key, err := runAccept(f, serverTypes, clientTypes)
	opts.Metrics.Handshake("accept", err == nil)
	logSession(opts, clientType, err)
	return clientType, key, err
}

func runAccept(f *transaction.Framer, serverTypes, clientTypes string) (string, uint32, error) {
	tr := transaction.New()
	if _, err := f.Receive(tr); err != nil {
		return "", 0, fmt.Errorf("failed to read open request: %w", err)
	}

	clientType, err := checkRequest(tr.Reader(), clientTypes)
	if err != nil {
		tr.Clear()
		tr.PutCommand(transaction.CmdReply)
		tr.PutCommand(transaction.CmdFail)
		f.Send(tr)
		return clientType, 0, err
	}

	key, err := NewSessionKey()
	if err != nil {
		return clientType, 0, err
	}
	tr.Clear()
	tr.PutCommand(transaction.CmdReply)
	tr.PutString(serverTypes)
	tr.PutUint32(key)
	if err := f.Send(tr); err != nil {
		return clientType, 0, fmt.Errorf("failed to send open reply: %w", err)
	}

	if _, err := f.Receive(tr); err != nil {
		return clientType, 0, fmt.Errorf("failed to read confirmation: %w", err)
	}
	r := tr.Reader()
	if cmd, ok := r.GetCommand(); !ok || cmd != transaction.CmdReply {
		return clientType, 0, fmt.Errorf("%w: expected REPLY", ErrProtocol)
	}
	cmd, ok := r.GetCommand()
	switch {
	case ok && cmd == transaction.CmdOK:
		return clientType, key, nil
	case ok && cmd == transaction.CmdFail:
		return clientType, 0, ErrRefused
	default:
		return clientType, 0, fmt.Errorf("%w: expected OK", ErrProtocol)
	}
}

func checkRequest(r *transaction.Reader, clientTypes string) (string, error) {
	if cmd, ok := r.GetCommand(); !ok || cmd != transaction.CmdRequest {
		return "", fmt.Errorf("%w: expected REQUEST", ErrProtocol)
	}
	if cmd, ok := r.GetCommand(); !ok || cmd != transaction.CmdOpenConnection {
		return "", fmt.Errorf("%w: expected OPEN_CONNECTION", ErrProtocol)
	}
	ver, ok := r.GetString()
	if !ok {
		return "", fmt.Errorf("%w: expected version", ErrProtocol)
	}
	clientType, ok := r.GetString()
	if !ok {
		return "", fmt.Errorf("%w: expected client type", ErrProtocol)
	}
	if ver != version.Binary {
		return clientType, fmt.Errorf("%w: peer %q, local %q", ErrVersionMismatch, ver, version.Binary)
	}
	if clientType != ProbeType && !CheckType(clientTypes, clientType) {
		return clientType, fmt.Errorf("%w: %q not in %q", ErrTypeRejected, clientType, clientTypes)
	}
	return clientType, nil
}

// NewSessionKey returns a random non-zero session key.
func NewSessionKey() (uint32, error) {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("failed to generate session key: %w", err)
		}
		if key := binary.LittleEndian.Uint32(b[:]); key != 0 {
			return key, nil
		}
	}
}

func logSession(opts Options, peerType string, err error) {
	if opts.Logger == nil {
		return
	}
	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: opts.ConnID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		PeerType:     peerType,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: "HANDSHAKE",
			NewState: "OPEN",
		},
	}
	if err != nil {
		ev.StateChange.NewState = "FAILED"
		ev.StateChange.Reason = err.Error()
	}
	opts.Logger.Log(ev)
}
