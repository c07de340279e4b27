package transaction

import (
	"sync"
	"time"

	"github.com/scim-im/scim-ipc/pkg/log"
	"github.com/scim-im/scim-ipc/pkg/metrics"
)

// MaxLogFrameDataSize is the maximum payload size to include in logs (4 KB).
// Larger frames are truncated in log events to avoid excessive memory usage.
const MaxLogFrameDataSize = 4096

// Framer sends and receives Transactions over one Endpoint, stamping
// outgoing frames with the session signature and reporting every frame
// to an optional protocol logger and metrics collector.
//
// Send is safe for concurrent use. Receive must be called from a single
// goroutine.
type Framer struct {
	ep        Endpoint
	signature uint32
	timeout   time.Duration
	mu        sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string

	metrics *metrics.Metrics
}

// NewFramer creates a framer over ep. The timeout bounds each whole
// frame; a negative timeout waits forever.
func NewFramer(ep Endpoint, timeout time.Duration) *Framer {
	return &Framer{ep: ep, timeout: timeout}
}

// SetSignature sets the signature stamped on outgoing frames.
func (f *Framer) SetSignature(sig uint32) {
	f.mu.Lock()
	f.signature = sig
	f.mu.Unlock()
}

// Signature returns the signature stamped on outgoing frames.
func (f *Framer) Signature() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signature
}

// SetTimeout changes the per-frame timeout.
func (f *Framer) SetTimeout(d time.Duration) {
	f.mu.Lock()
	f.timeout = d
	f.mu.Unlock()
}

// SetLogger configures protocol logging for this framer.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.logger = logger
	f.connID = connID
}

// SetMetrics configures frame metrics. Pass nil to disable.
func (f *Framer) SetMetrics(m *metrics.Metrics) {
	f.metrics = m
}

// Send frames t with the current signature and writes it.
func (f *Framer) Send(t *Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := t.WriteToSocket(f.ep, f.signature, f.timeout); err != nil {
		f.reportError(log.DirectionOut, "write", err)
		return err
	}

	f.metrics.Frame(metrics.DirectionOut, t.Size())
	if f.logger != nil {
		f.logger.Log(f.makeFrameEvent(t, log.DirectionOut))
		f.logger.Log(f.makeMessageEvent(t, log.DirectionOut))
	}
	return nil
}

// Receive reads the next frame into t and returns its signature.
func (f *Framer) Receive(t *Transaction) (uint32, error) {
	f.mu.Lock()
	timeout := f.timeout
	f.mu.Unlock()

	sig, err := t.ReadFromSocket(f.ep, timeout)
	if err != nil {
		f.reportError(log.DirectionIn, "read", err)
		return 0, err
	}

	f.metrics.Frame(metrics.DirectionIn, t.Size())
	if f.logger != nil {
		f.logger.Log(f.makeFrameEvent(t, log.DirectionIn))
		f.logger.Log(f.makeMessageEvent(t, log.DirectionIn))
	}
	return sig, nil
}

func (f *Framer) reportError(dir log.Direction, op string, err error) {
	reason := ErrorReason(err)
	if reason == "eof" {
		return
	}
	metricsDir := metrics.DirectionIn
	if dir == log.DirectionOut {
		metricsDir = metrics.DirectionOut
	}
	f.metrics.FrameError(metricsDir, reason)

	if f.logger != nil {
		f.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: f.connID,
			Direction:    dir,
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: err.Error(),
				Context: op,
				Reason:  reason,
			},
		})
	}
}

// makeFrameEvent creates a log event for a frame.
func (f *Framer) makeFrameEvent(t *Transaction, direction log.Direction) log.Event {
	h := t.Header()
	payload := t.Payload()
	truncated := false
	if len(payload) > MaxLogFrameDataSize {
		payload = payload[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      HeaderSize + t.Size(),
			Data:      append([]byte(nil), payload...),
			Truncated: truncated,
			Signature: h.Signature,
			Checksum:  h.Checksum,
		},
	}
}

// makeMessageEvent creates a log event with the decoded values.
func (f *Framer) makeMessageEvent(t *Transaction, direction log.Direction) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.connID,
		Direction:    direction,
		Layer:        log.LayerCodec,
		Category:     log.CategoryMessage,
		Message:      Summarize(t),
	}
}
