package transaction

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scim-im/scim-ipc/pkg/log"
	"github.com/scim-im/scim-ipc/pkg/metrics"
)

type recordingLogger struct {
	events []log.Event
}

func (r *recordingLogger) Log(ev log.Event) { r.events = append(r.events, ev) }

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestFramerSendReceive(t *testing.T) {
	ep := &memEndpoint{}
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	rec := &recordingLogger{}

	f := NewFramer(ep, time.Second)
	f.SetSignature(0xABCD)
	f.SetLogger(rec, "conn-1")
	f.SetMetrics(m)
	assert.Equal(t, uint32(0xABCD), f.Signature())

	require.NoError(t, f.Send(sampleTransaction()))
	ep.in.Write(ep.out.Bytes())

	got := New()
	sig, err := f.Receive(got)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCD), sig)
	assert.Equal(t, sampleTransaction().Payload(), got.Payload())

	assert.Equal(t, 1.0, counterValue(t, reg, "scim_ipc_frames_total", map[string]string{"direction": "out"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "scim_ipc_frames_total", map[string]string{"direction": "in"}))
	assert.Equal(t, 17.0, counterValue(t, reg, "scim_ipc_frame_bytes_total", map[string]string{"direction": "in"}))

	require.Len(t, rec.events, 4)
	out := rec.events[0]
	assert.Equal(t, "conn-1", out.ConnectionID)
	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, log.LayerTransport, out.Layer)
	require.NotNil(t, out.Frame)
	assert.Equal(t, HeaderSize+17, out.Frame.Size)
	assert.Equal(t, uint32(0xABCD), out.Frame.Signature)
	assert.False(t, out.Frame.Truncated)

	msg := rec.events[3]
	assert.Equal(t, log.DirectionIn, msg.Direction)
	assert.Equal(t, log.LayerCodec, msg.Layer)
	require.NotNil(t, msg.Message)
	assert.Equal(t, []uint32{42}, msg.Message.Commands)
	assert.Equal(t, 3, msg.Message.ValueCount)
	assert.Equal(t, `CMD(42) 7 "hi"`, msg.Message.Summary)
}

func TestFramerLogTruncatesLargeFrames(t *testing.T) {
	ep := &memEndpoint{}
	rec := &recordingLogger{}
	f := NewFramer(ep, time.Second)
	f.SetLogger(rec, "big")

	tr := New()
	tr.PutRaw(make([]byte, 2*MaxLogFrameDataSize))
	require.NoError(t, f.Send(tr))

	require.NotEmpty(t, rec.events)
	frame := rec.events[0].Frame
	require.NotNil(t, frame)
	assert.True(t, frame.Truncated)
	assert.Len(t, frame.Data, MaxLogFrameDataSize)
}

func TestFramerReportsErrors(t *testing.T) {
	ep := &memEndpoint{}
	reg := prometheus.NewRegistry()
	rec := &recordingLogger{}
	f := NewFramer(ep, time.Second)
	f.SetLogger(rec, "bad")
	f.SetMetrics(metrics.New(metrics.WithRegistry(reg)))

	frame := encodeFrame(t, 1)
	frame[len(frame)-1] ^= 0x01
	ep.in.Write(frame)

	_, err := f.Receive(New())
	require.ErrorIs(t, err, ErrChecksum)
	assert.Equal(t, 1.0, counterValue(t, reg, "scim_ipc_frame_errors_total", map[string]string{"direction": "in", "reason": "checksum"}))
	require.Len(t, rec.events, 1)
	assert.Equal(t, log.CategoryError, rec.events[0].Category)
	assert.Equal(t, "read", rec.events[0].Error.Context)
	assert.Equal(t, "checksum", rec.events[0].Error.Reason)

	// A clean close is not an error worth recording.
	_, err = f.Receive(New())
	require.Error(t, err)
	assert.Len(t, rec.events, 1)

	err = f.Send(New())
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, 1.0, counterValue(t, reg, "scim_ipc_frame_errors_total", map[string]string{"direction": "out", "reason": "empty"}))
}
