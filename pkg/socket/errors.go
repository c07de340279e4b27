package socket

import "errors"

// Socket errors.
var (
	// ErrClosed indicates an operation on a closed or never opened socket.
	ErrClosed = errors.New("use of closed socket")

	// ErrBorrowed indicates an attempt to close a descriptor owned by a
	// Server. Use Server.CloseConnection instead.
	ErrBorrowed = errors.New("socket is owned by the server")

	// ErrFamilyMismatch indicates an address of the wrong family.
	ErrFamilyMismatch = errors.New("address family mismatch")

	// ErrAlreadyBound indicates Connect or Bind on a bound socket.
	ErrAlreadyBound = errors.New("socket already bound")

	// ErrInvalidAddress indicates an address that failed to parse.
	ErrInvalidAddress = errors.New("invalid socket address")

	// ErrAddressInUse indicates a live server already owns the local path.
	ErrAddressInUse = errors.New("address in use by a live server")

	// ErrNotSocketFile indicates the local path exists and is not a socket.
	ErrNotSocketFile = errors.New("path exists and is not a socket")

	// ErrServerFull indicates the client limit has been reached.
	ErrServerFull = errors.New("too many clients")

	// ErrServerClosed is returned by Run after Shutdown.
	ErrServerClosed = errors.New("server closed")

	// ErrServerRunning is returned by Run when the loop is already active.
	ErrServerRunning = errors.New("server already running")
)

// ErrTimeout is returned when a deadline passes before an operation
// completes. It satisfies net.Error with Timeout() == true.
var ErrTimeout error = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// IsFatal reports whether err is a deployment error that retrying cannot
// fix: the local path is held by a live server or by a non-socket file.
// Binaries terminate on such errors.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAddressInUse) || errors.Is(err, ErrNotSocketFile)
}
