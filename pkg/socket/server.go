package socket

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/scim-im/scim-ipc/pkg/log"
	"github.com/scim-im/scim-ipc/pkg/metrics"
)

// DefaultMaxClients caps the watch set when ServerConfig.MaxClients is 0.
const DefaultMaxClients = 1024

// AcceptRetryDelay is how long the listener stays out of the watch set
// after accept ran out of descriptors or kernel memory. Closing any
// client ends the pause early.
const AcceptRetryDelay = 100 * time.Millisecond

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to bind and listen on.
	Address Address

	// MaxClients limits accepted plus external descriptors
	// (0 = DefaultMaxClients). Larger values are honored; the process
	// descriptor limit still applies.
	MaxClients int

	// Backlog is the listen backlog (0 = DefaultBacklog).
	Backlog int

	// Logger for protocol logging (optional).
	Logger log.Logger

	// Metrics collects connection counts (optional).
	Metrics *metrics.Metrics

	// OnAccept is called after a connection is accepted and registered.
	OnAccept func(srv *Server, client *Socket)

	// OnReceive is called when a client or external descriptor is
	// readable or hung up. When nil the connection is closed.
	OnReceive func(srv *Server, client *Socket)

	// OnException is called when a client or external descriptor
	// reports an error condition. When nil the connection is closed.
	OnException func(srv *Server, client *Socket)
}

// Server accepts connections on one listening socket and multiplexes
// them in a single poll loop.
//
// Callbacks run on the goroutine that called Run. CloseConnection,
// InsertExternalSocket and RemoveExternalSocket must be called from a
// callback or while Run is not active; Shutdown may be called from
// anywhere.
type Server struct {
	config   ServerConfig
	listener *Socket

	// Watch set in dispatch order.
	clients   map[int]*Socket
	externals map[int]*Socket
	order     []int
	active    atomic.Int32

	wakeR, wakeW int

	// Zero unless accept is paused; loop goroutine only.
	acceptPausedUntil time.Time

	mu       sync.Mutex
	running  bool
	stopping bool
	closed   bool
}

// NewServer creates the listening socket, binds it to config.Address and
// starts listening. Bind errors satisfying IsFatal are returned as is.
func NewServer(config ServerConfig) (*Server, error) {
	if !config.Address.Valid() {
		return nil, ErrInvalidAddress
	}
	if config.MaxClients <= 0 {
		config.MaxClients = DefaultMaxClients
	}

	l, err := NewSocket(config.Address.Family())
	if err != nil {
		return nil, err
	}
	if err := l.Bind(config.Address); err != nil {
		l.Close()
		return nil, err
	}
	if err := l.Listen(config.Backlog); err != nil {
		l.Close()
		return nil, err
	}

	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		l.Close()
		return nil, os.NewSyscallError("pipe", err)
	}
	for _, fd := range p {
		unix.SetNonblock(fd, true)
		unix.CloseOnExec(fd)
	}

	s := &Server{
		config:    config,
		listener:  l,
		clients:   make(map[int]*Socket),
		externals: make(map[int]*Socket),
		wakeR:     p[0],
		wakeW:     p[1],
	}
	s.logState("", "CREATED", config.Address.String())
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() Address { return s.config.Address }

// NumClients returns the number of accepted and external descriptors.
// It is safe to call from any goroutine.
func (s *Server) NumClients() int { return int(s.active.Load()) }

// MaxClients returns the effective client limit.
func (s *Server) MaxClients() int { return s.config.MaxClients }

// IsRunning reports whether Run is active.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run polls the watch set and dispatches callbacks until Shutdown is
// called or ctx is cancelled, then shuts the server down. It returns nil
// in both cases and an error if the listening socket fails.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrServerClosed
	case s.running:
		s.mu.Unlock()
		return ErrServerRunning
	}
	s.running = true
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { s.Shutdown() })
	defer stop()

	s.logState("CREATED", "RUNNING", "")
	err := s.loop()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.Shutdown()
	return err
}

func (s *Server) loop() error {
	var fds []unix.PollFd
	for !s.shouldStop() {
		// poll ignores negative descriptors, which parks the listener
		// while accept is paused.
		listenFD, timeout := int32(s.listener.FD()), -1
		if !s.acceptPausedUntil.IsZero() {
			if wait := time.Until(s.acceptPausedUntil); wait > 0 {
				listenFD = -1
				timeout = int(wait/time.Millisecond) + 1
			} else {
				s.acceptPausedUntil = time.Time{}
			}
		}

		fds = fds[:0]
		fds = append(fds,
			unix.PollFd{Fd: int32(s.wakeR), Events: unix.POLLIN},
			unix.PollFd{Fd: listenFD, Events: unix.POLLIN},
		)
		for _, fd := range s.order {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN | unix.POLLPRI})
		}

		if _, err := unix.Poll(fds, timeout); err != nil {
			if err == unix.EINTR {
				continue
			}
			return os.NewSyscallError("poll", err)
		}

		if fds[0].Revents != 0 {
			s.drainWake()
			continue
		}
		if re := fds[1].Revents; re&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return fmt.Errorf("listening socket %s failed (revents 0x%x)", s.config.Address, re)
		} else if re&unix.POLLIN != 0 {
			s.acceptOne()
		}

		for _, pfd := range fds[2:] {
			if s.shouldStop() {
				break
			}
			if pfd.Revents == 0 {
				continue
			}
			c := s.lookup(int(pfd.Fd))
			if c == nil {
				// Closed by an earlier callback in this round.
				continue
			}
			s.dispatch(c, pfd.Revents)
		}
	}
	return nil
}

func (s *Server) dispatch(c *Socket, revents int16) {
	fd := c.FD()
	if revents&(unix.POLLERR|unix.POLLNVAL|unix.POLLPRI) != 0 {
		if s.config.OnException != nil {
			s.config.OnException(s, c)
		} else {
			s.CloseConnection(c)
		}
		// A descriptor closed behind our back would report forever.
		if revents&unix.POLLNVAL != 0 && s.lookup(fd) == c {
			s.forget(fd)
		}
		return
	}
	if s.config.OnReceive != nil {
		s.config.OnReceive(s, c)
	} else {
		s.CloseConnection(c)
	}
}

func (s *Server) acceptOne() {
	nfd, sa, err := unix.Accept(s.listener.FD())
	switch err {
	case nil:
	case unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM:
		// The pending connection stays queued and the listener stays
		// readable, so polling it again right away would spin.
		s.acceptPausedUntil = time.Now().Add(AcceptRetryDelay)
		s.logAcceptError(err)
		return
	default:
		// EAGAIN, EINTR and ECONNABORTED leave nothing to do until the
		// next readiness report.
		return
	}

	if len(s.order) >= s.config.MaxClients {
		unix.Close(nfd)
		s.config.Metrics.ConnectionRejected()
		s.logConn("", peerString(sa), "", "REJECTED", ErrServerFull.Error())
		return
	}

	c, err := wrapFD(nfd, s.listener.Family())
	if err != nil {
		unix.Close(nfd)
		return
	}
	c.addr = s.config.Address
	c.peer = peerString(sa)
	c.borrowed = true
	c.connID = uuid.New().String()

	s.clients[nfd] = c
	s.order = append(s.order, nfd)
	s.config.Metrics.ConnectionAccepted()
	s.updateActive()
	s.logConn(c.connID, c.peer, "", "ACCEPTED", "")

	if s.config.OnAccept != nil {
		s.config.OnAccept(s, c)
	}
}

// CloseConnection closes an accepted client and stops watching it.
// External descriptors are only removed from the watch set.
func (s *Server) CloseConnection(client *Socket) bool {
	if client == nil {
		return false
	}
	fd := client.FD()
	if c, ok := s.clients[fd]; ok && c == client {
		s.forget(fd)
		c.close()
		s.logConn(c.connID, c.peer, "ACCEPTED", "CLOSED", "")
		return true
	}
	if c, ok := s.externals[fd]; ok && c == client {
		s.forget(fd)
		return true
	}
	return false
}

// InsertExternalSocket adds a descriptor the server does not own to the
// watch set. It counts against MaxClients and is never closed by the
// server.
func (s *Server) InsertExternalSocket(fd int) error {
	if fd < 0 {
		return ErrClosed
	}
	if s.lookup(fd) != nil || fd == s.listener.FD() {
		return fmt.Errorf("descriptor %d already watched", fd)
	}
	if len(s.order) >= s.config.MaxClients {
		return ErrServerFull
	}
	s.externals[fd] = &Socket{fd: fd, family: FamilyUnknown, borrowed: true}
	s.order = append(s.order, fd)
	s.updateActive()
	return nil
}

// RemoveExternalSocket stops watching an external descriptor.
func (s *Server) RemoveExternalSocket(fd int) bool {
	if _, ok := s.externals[fd]; !ok {
		return false
	}
	s.forget(fd)
	return true
}

// Shutdown stops Run and closes every accepted client and the listening
// socket. External descriptors are left open and the socket file is left
// in place. Shutdown is idempotent.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.running {
		s.stopping = true
		s.mu.Unlock()
		s.wake()
		return nil
	}
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	for _, fd := range s.order {
		if c, ok := s.clients[fd]; ok {
			c.close()
			s.logConn(c.connID, c.peer, "ACCEPTED", "CLOSED", "shutdown")
		}
	}
	clear(s.clients)
	clear(s.externals)
	s.order = s.order[:0]
	s.updateActive()

	err := s.listener.close()
	unix.Close(s.wakeR)
	unix.Close(s.wakeW)
	s.logState("", "SHUTDOWN", "")
	return err
}

func (s *Server) shouldStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *Server) wake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var b [1]byte
	unix.Write(s.wakeW, b[:])
}

func (s *Server) drainWake() {
	var b [64]byte
	for {
		n, err := unix.Read(s.wakeR, b[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (s *Server) lookup(fd int) *Socket {
	if c, ok := s.clients[fd]; ok {
		return c
	}
	return s.externals[fd]
}

func (s *Server) forget(fd int) {
	delete(s.clients, fd)
	delete(s.externals, fd)
	for i, v := range s.order {
		if v == fd {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	// A freed slot may be exactly what accept was waiting for.
	s.acceptPausedUntil = time.Time{}
	s.updateActive()
}

func (s *Server) logAcceptError(err error) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: os.NewSyscallError("accept", err).Error(),
			Context: "accept",
			Reason:  "resources",
		},
	})
}

func (s *Server) updateActive() {
	s.active.Store(int32(len(s.order)))
	s.config.Metrics.SetActiveConnections(len(s.order))
}

func (s *Server) logConn(connID, peer, oldState, newState, reason string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   peer,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (s *Server) logState(oldState, newState, reason string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityServer,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
