package socket

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// NoTimeout disables the deadline of a timed read or write.
const NoTimeout time.Duration = -1

// DefaultBacklog is the listen backlog used when none is configured.
const DefaultBacklog = 16

// Socket owns one stream descriptor.
//
// A Socket is not safe for concurrent use, except that one goroutine may
// read while another writes.
type Socket struct {
	fd       int
	family   Family
	addr     Address
	peer     string
	bound    bool
	borrowed bool
	connID   string
	err      error
}

// NewSocket creates an unconnected socket of the given family.
func NewSocket(family Family) (*Socket, error) {
	s := &Socket{fd: -1}
	if err := s.create(family); err != nil {
		return nil, err
	}
	return s, nil
}

// Pair returns two connected local sockets.
func Pair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, os.NewSyscallError("socketpair", err)
	}
	a, err := wrapFD(fds[0], FamilyLocal)
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := wrapFD(fds[1], FamilyLocal)
	if err != nil {
		a.Close()
		unix.Close(fds[1])
		return nil, nil, err
	}
	return a, b, nil
}

// wrapFD takes ownership of fd and switches it to non-blocking,
// close-on-exec mode.
func wrapFD(fd int, family Family) (*Socket, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, os.NewSyscallError("setnonblock", err)
	}
	unix.CloseOnExec(fd)
	return &Socket{fd: fd, family: family}, nil
}

func (s *Socket) create(family Family) error {
	domain, err := family.domain()
	if err != nil {
		return err
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return s.fail(os.NewSyscallError("socket", err))
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return s.fail(os.NewSyscallError("setnonblock", err))
	}
	unix.CloseOnExec(fd)

	s.fd = fd
	s.family = family
	s.addr = Address{}
	s.peer = ""
	s.bound = false
	s.err = nil
	return nil
}

// FD returns the descriptor, or -1 when closed.
func (s *Socket) FD() int { return s.fd }

// Valid reports whether the socket holds an open descriptor.
func (s *Socket) Valid() bool { return s.fd >= 0 }

// Family returns the socket's address family.
func (s *Socket) Family() Family { return s.family }

// Addr returns the address the socket was bound or connected to.
func (s *Socket) Addr() Address { return s.addr }

// RemoteAddr describes the peer, when known.
func (s *Socket) RemoteAddr() string { return s.peer }

// ConnID returns the identifier a Server assigned to an accepted socket.
func (s *Socket) ConnID() string { return s.connID }

// Err returns the last error the socket encountered.
func (s *Socket) Err() error { return s.err }

func (s *Socket) fail(err error) error {
	s.err = err
	return err
}

// Bind binds the socket to addr.
//
// For local addresses an existing path is probed first: a live listener
// yields ErrAddressInUse, a stale socket file is removed and any other
// file yields ErrNotSocketFile. The bound socket file is restricted to
// mode 0600.
func (s *Socket) Bind(addr Address) error {
	if !s.Valid() {
		return ErrClosed
	}
	if s.bound {
		return s.fail(ErrAlreadyBound)
	}
	if addr.Family() != s.family {
		return s.fail(fmt.Errorf("%w: bind %s address on %s socket", ErrFamilyMismatch, addr.Family(), s.family))
	}
	sa, err := addr.sockaddr()
	if err != nil {
		return s.fail(err)
	}

	switch s.family {
	case FamilyLocal:
		if err := claimPath(addr); err != nil {
			return s.fail(err)
		}
	case FamilyInet:
		if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return s.fail(os.NewSyscallError("setsockopt", err))
		}
	}

	if err := unix.Bind(s.fd, sa); err != nil {
		return s.fail(fmt.Errorf("bind %s: %w", addr, os.NewSyscallError("bind", err)))
	}
	if s.family == FamilyLocal {
		if err := os.Chmod(addr.Path(), 0o600); err != nil {
			return s.fail(err)
		}
	}

	s.bound = true
	s.addr = addr
	return nil
}

// claimPath clears a stale socket file left at addr's path.
func claimPath(addr Address) error {
	info, err := os.Lstat(addr.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	probe, err := NewSocket(FamilyLocal)
	if err != nil {
		return err
	}
	err = probe.ConnectWithTimeout(addr, time.Second)
	probe.Close()
	// A full backlog still means someone is listening.
	live := err == nil || errors.Is(err, unix.EAGAIN)
	if live {
		return fmt.Errorf("%w: %s", ErrAddressInUse, addr.Path())
	}

	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%w: %s", ErrNotSocketFile, addr.Path())
	}
	if err := os.Remove(addr.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Listen marks a bound socket as accepting connections.
func (s *Socket) Listen(backlog int) error {
	if !s.Valid() {
		return ErrClosed
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if err := unix.Listen(s.fd, backlog); err != nil {
		return s.fail(os.NewSyscallError("listen", err))
	}
	return nil
}

// Accept waits for and returns the next connection.
func (s *Socket) Accept() (*Socket, error) {
	if !s.Valid() {
		return nil, ErrClosed
	}
	for {
		nfd, sa, err := unix.Accept(s.fd)
		switch {
		case err == unix.EINTR || err == unix.ECONNABORTED:
			continue
		case err == unix.EAGAIN:
			if err := s.wait(unix.POLLIN, newDeadline(NoTimeout)); err != nil {
				return nil, s.fail(err)
			}
			continue
		case err != nil:
			return nil, s.fail(os.NewSyscallError("accept", err))
		}

		c, err := wrapFD(nfd, s.family)
		if err != nil {
			unix.Close(nfd)
			return nil, s.fail(err)
		}
		c.addr = s.addr
		c.peer = peerString(sa)
		return c, nil
	}
}

// Connect connects to addr, waiting as long as the kernel allows.
func (s *Socket) Connect(addr Address) error {
	return s.ConnectWithTimeout(addr, NoTimeout)
}

// ConnectWithTimeout connects to addr, giving up after timeout.
func (s *Socket) ConnectWithTimeout(addr Address, timeout time.Duration) error {
	if !s.Valid() {
		return ErrClosed
	}
	if s.bound {
		return s.fail(ErrAlreadyBound)
	}
	if addr.Family() != s.family {
		return s.fail(fmt.Errorf("%w: connect to %s address on %s socket", ErrFamilyMismatch, addr.Family(), s.family))
	}
	sa, err := addr.sockaddr()
	if err != nil {
		return s.fail(err)
	}

	dl := newDeadline(timeout)
	for {
		err = unix.Connect(s.fd, sa)
		if err != unix.EINTR {
			break
		}
	}
	switch err {
	case nil:
	case unix.EINPROGRESS, unix.EALREADY:
		if err := s.wait(unix.POLLOUT, dl); err != nil {
			return s.fail(err)
		}
		soErr, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return s.fail(os.NewSyscallError("getsockopt", err))
		}
		if soErr != 0 {
			return s.fail(fmt.Errorf("connect %s: %w", addr, os.NewSyscallError("connect", unix.Errno(soErr))))
		}
	default:
		return s.fail(fmt.Errorf("connect %s: %w", addr, os.NewSyscallError("connect", err)))
	}

	s.addr = addr
	s.peer = addr.String()
	return nil
}

// Read fills p completely, waiting as long as necessary.
func (s *Socket) Read(p []byte) (int, error) {
	return s.ReadWithTimeout(p, NoTimeout)
}

// Write writes all of p, waiting as long as necessary.
func (s *Socket) Write(p []byte) (int, error) {
	return s.WriteWithTimeout(p, NoTimeout)
}

// ReadWithTimeout fills p completely or fails. It returns io.EOF when
// the peer closes or resets the connection and ErrTimeout when the deadline passes;
// in both cases n reports the bytes already read. A negative timeout
// waits forever.
func (s *Socket) ReadWithTimeout(p []byte, timeout time.Duration) (int, error) {
	if !s.Valid() {
		return 0, ErrClosed
	}
	dl := newDeadline(timeout)
	n := 0
	for n < len(p) {
		m, err := unix.Read(s.fd, p[n:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			if err := s.wait(unix.POLLIN, dl); err != nil {
				return n, s.fail(err)
			}
			continue
		case err == unix.ECONNRESET:
			// The peer closed with our data still unread on its side.
			return n, io.EOF
		case err != nil:
			return n, s.fail(os.NewSyscallError("read", err))
		case m == 0:
			return n, io.EOF
		}
		n += m
	}
	return n, nil
}

// WriteWithTimeout writes all of p or fails. On ErrTimeout n reports
// the bytes already written. A negative timeout waits forever.
func (s *Socket) WriteWithTimeout(p []byte, timeout time.Duration) (int, error) {
	if !s.Valid() {
		return 0, ErrClosed
	}
	dl := newDeadline(timeout)
	n := 0
	for n < len(p) {
		m, err := unix.Write(s.fd, p[n:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			if err := s.wait(unix.POLLOUT, dl); err != nil {
				return n, s.fail(err)
			}
			continue
		case err != nil:
			return n, s.fail(os.NewSyscallError("write", err))
		}
		n += m
	}
	return n, nil
}

// WaitForData waits until the socket is readable, the peer hangs up or
// timeout passes, without consuming any bytes. It reports false on
// timeout.
func (s *Socket) WaitForData(timeout time.Duration) (bool, error) {
	if !s.Valid() {
		return false, ErrClosed
	}
	err := s.wait(unix.POLLIN, newDeadline(timeout))
	if errors.Is(err, ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(err)
	}
	return true, nil
}

// Close closes the descriptor. Closing a closed socket is a no-op.
// Sockets handed out by a Server cannot be closed here.
func (s *Socket) Close() error {
	if s.borrowed {
		return ErrBorrowed
	}
	return s.close()
}

func (s *Socket) close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	s.bound = false
	if err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// wait polls for events until they are reported or dl passes. Error and
// hang-up conditions count as ready so the next transfer surfaces them.
func (s *Socket) wait(events int16, dl deadline) error {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: events}}
	for {
		ms, ok := dl.pollTimeout()
		if !ok {
			return ErrTimeout
		}
		n, err := unix.Poll(fds, ms)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return os.NewSyscallError("poll", err)
		case n == 0:
			continue
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return ErrClosed
		}
		return nil
	}
}

// deadline is one point on the monotonic clock, or none.
type deadline struct {
	at       time.Time
	infinite bool
}

func newDeadline(timeout time.Duration) deadline {
	if timeout < 0 {
		return deadline{infinite: true}
	}
	return deadline{at: time.Now().Add(timeout)}
}

// pollTimeout returns the poll(2) timeout in milliseconds, rounded up,
// and false once the deadline has passed.
func (d deadline) pollTimeout() (int, bool) {
	if d.infinite {
		return -1, true
	}
	left := time.Until(d.at)
	if left <= 0 {
		return 0, false
	}
	return int((left + time.Millisecond - 1) / time.Millisecond), true
}
