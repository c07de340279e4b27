package transaction

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"time"
)

// Frame constants.
const (
	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 16

	// Magic identifies a frame header. It reads "SCIM" in memory order.
	Magic uint32 = 0x4D494353

	// MaxFrameSize is the largest accepted payload (16 MiB).
	MaxFrameSize = 16 << 20

	// ResyncBudget is the number of extra header words a reader skips
	// while looking for the magic before giving up.
	ResyncBudget = 8
)

// Frame errors.
var (
	// ErrEmpty indicates an attempt to send a Transaction without values.
	ErrEmpty = errors.New("transaction is empty")

	// ErrBadMagic indicates no frame magic within the resync budget.
	ErrBadMagic = errors.New("frame magic not found")

	// ErrFrameSize indicates a declared payload size outside [1, MaxFrameSize].
	ErrFrameSize = errors.New("frame size out of range")

	// ErrChecksum indicates a payload whose checksum does not match the header.
	ErrChecksum = errors.New("frame checksum mismatch")

	// ErrTruncated indicates the stream ended inside a frame.
	ErrTruncated = errors.New("frame truncated")
)

// Endpoint is a byte stream with deadline-bounded full reads and writes.
// A negative timeout waits forever. *socket.Socket implements it.
type Endpoint interface {
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
	WriteWithTimeout(p []byte, timeout time.Duration) (int, error)
}

// Header is a decoded frame header.
type Header struct {
	Signature uint32
	Size      uint32
	Checksum  uint32
}

// Checksum computes the rotating payload checksum:
// sum = rotl(sum, 1) + byte.
func Checksum(payload []byte) uint32 {
	var sum uint32
	for _, b := range payload {
		sum = bits.RotateLeft32(sum, 1) + uint32(b)
	}
	return sum
}

// Header returns the header of the last frame written or read.
func (t *Transaction) Header() Header {
	return Header{
		Signature: binary.LittleEndian.Uint32(t.buf[0:]),
		Size:      binary.LittleEndian.Uint32(t.buf[8:]),
		Checksum:  binary.LittleEndian.Uint32(t.buf[12:]),
	}
}

// WriteToSocket frames the Transaction with signature and writes it to
// ep in a single full write bounded by timeout.
func (t *Transaction) WriteToSocket(ep Endpoint, signature uint32, timeout time.Duration) error {
	if err := t.stamp(signature); err != nil {
		return err
	}
	n, err := ep.WriteWithTimeout(t.buf, timeout)
	if err != nil {
		return fmt.Errorf("failed to write frame (%d of %d bytes): %w", n, len(t.buf), err)
	}
	if n != len(t.buf) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrTruncated, n, len(t.buf))
	}
	return nil
}

// WriteFrame frames the Transaction with signature and writes it to w.
func (t *Transaction) WriteFrame(w io.Writer, signature uint32) error {
	if err := t.stamp(signature); err != nil {
		return err
	}
	if _, err := w.Write(t.buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFromSocket replaces the Transaction's contents with the next frame
// read from ep and returns the frame's signature. The whole frame must
// arrive before timeout expires. On any error the Transaction is left
// empty.
func (t *Transaction) ReadFromSocket(ep Endpoint, timeout time.Duration) (uint32, error) {
	src := &endpointSource{ep: ep, infinite: timeout < 0}
	if !src.infinite {
		src.deadline = time.Now().Add(timeout)
	}
	return t.readFrame(src)
}

// ReadFrame replaces the Transaction's contents with the next frame read
// from r and returns the frame's signature.
func (t *Transaction) ReadFrame(r io.Reader) (uint32, error) {
	return t.readFrame(streamSource{r: r})
}

// stamp fills in the header for the current payload.
func (t *Transaction) stamp(signature uint32) error {
	size := t.Size()
	if size == 0 {
		return ErrEmpty
	}
	if size > MaxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameSize, size, MaxFrameSize)
	}
	binary.LittleEndian.PutUint32(t.buf[0:], signature)
	binary.LittleEndian.PutUint32(t.buf[4:], Magic)
	binary.LittleEndian.PutUint32(t.buf[8:], uint32(size))
	binary.LittleEndian.PutUint32(t.buf[12:], Checksum(t.Payload()))
	return nil
}

// readFrame reads and validates one frame. Peers that omit the signature
// word are accepted, and up to ResyncBudget stray words in front of the
// header are skipped.
func (t *Transaction) readFrame(src frameSource) (uint32, error) {
	t.Clear()

	var head [8]byte
	if err := src.readFull(head[:]); err != nil {
		return 0, err
	}
	w0 := binary.LittleEndian.Uint32(head[0:])
	w1 := binary.LittleEndian.Uint32(head[4:])

	var signature, size uint32
	var err error
	switch {
	case w1 == Magic:
		signature = w0
		if size, err = readWord(src); err != nil {
			return 0, err
		}
	case w0 == Magic:
		size = w1
	default:
		found := false
		for i := 0; i < ResyncBudget && !found; i++ {
			next, err := readWord(src)
			if err != nil {
				return 0, err
			}
			w0, w1 = w1, next
			found = w1 == Magic
		}
		if !found {
			return 0, ErrBadMagic
		}
		signature = w0
		if size, err = readWord(src); err != nil {
			return 0, err
		}
	}

	checksum, err := readWord(src)
	if err != nil {
		return 0, err
	}
	if size < 1 || size > MaxFrameSize {
		return 0, fmt.Errorf("%w: %d", ErrFrameSize, size)
	}

	if cap(t.buf) < HeaderSize+int(size) {
		t.buf = make([]byte, HeaderSize, HeaderSize+int(size))
	}
	t.buf = t.buf[:HeaderSize+int(size)]
	if err := src.readFull(t.buf[HeaderSize:]); err != nil {
		t.Clear()
		return 0, err
	}

	if sum := Checksum(t.Payload()); sum != checksum {
		t.Clear()
		return 0, fmt.Errorf("%w: got 0x%08x, header 0x%08x", ErrChecksum, sum, checksum)
	}

	binary.LittleEndian.PutUint32(t.buf[0:], signature)
	binary.LittleEndian.PutUint32(t.buf[4:], Magic)
	binary.LittleEndian.PutUint32(t.buf[8:], size)
	binary.LittleEndian.PutUint32(t.buf[12:], checksum)
	return signature, nil
}

func readWord(src frameSource) (uint32, error) {
	var b [4]byte
	if err := src.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// frameSource fills p completely or fails.
type frameSource interface {
	readFull(p []byte) error
}

// endpointSource reads from an Endpoint against one deadline for the
// whole frame.
type endpointSource struct {
	ep       Endpoint
	deadline time.Time
	infinite bool
}

func (s *endpointSource) readFull(p []byte) error {
	timeout := time.Duration(-1)
	if !s.infinite {
		timeout = max(time.Until(s.deadline), 0)
	}
	n, err := s.ep.ReadWithTimeout(p, timeout)
	if err != nil {
		if n > 0 && errors.Is(err, io.EOF) {
			return ErrTruncated
		}
		return err
	}
	if n != len(p) {
		return ErrTruncated
	}
	return nil
}

// streamSource reads from a plain io.Reader.
type streamSource struct {
	r io.Reader
}

func (s streamSource) readFull(p []byte) error {
	if _, err := io.ReadFull(s.r, p); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return err
	}
	return nil
}

// ErrorReason classifies a frame error for metrics and logs.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrChecksum):
		return "checksum"
	case errors.Is(err, ErrBadMagic):
		return "magic"
	case errors.Is(err, ErrFrameSize):
		return "size"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrEmpty):
		return "empty"
	case errors.Is(err, io.EOF):
		return "eof"
	default:
		return "io"
	}
}
