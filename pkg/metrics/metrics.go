// Package metrics exposes Prometheus counters for the SCIM socket
// transport.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional collector without guarding every call.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "scim").
	Namespace string

	// Subsystem is the metrics subsystem (default: "ipc").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "scim",
		Subsystem: "ipc",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the transport collectors.
type Metrics struct {
	connectionsAccepted prometheus.Counter
	connectionsRejected prometheus.Counter
	activeConnections   prometheus.Gauge
	framesTotal         *prometheus.CounterVec
	frameBytes          *prometheus.CounterVec
	frameErrors         *prometheus.CounterVec
	handshakes          *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_accepted_total",
			Help:        "Total number of accepted client connections",
			ConstLabels: config.ConstLabels,
		}),

		connectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_rejected_total",
			Help:        "Total number of connections closed because the server was full",
			ConstLabels: config.ConstLabels,
		}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_connections",
			Help:        "Number of tracked client and external descriptors",
			ConstLabels: config.ConstLabels,
		}),

		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_total",
			Help:        "Total number of transaction frames by direction",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		frameBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frame_bytes_total",
			Help:        "Total payload bytes of transaction frames by direction",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		frameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frame_errors_total",
			Help:        "Total number of failed frame reads and writes by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"direction", "reason"}),

		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handshakes_total",
			Help:        "Total number of connection handshakes by role and result",
			ConstLabels: config.ConstLabels,
		}, []string{"role", "result"}),
	}
}

// Direction labels.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// ConnectionAccepted records an accepted connection.
func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

// ConnectionRejected records a connection refused at the client limit.
func (m *Metrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.connectionsRejected.Inc()
}

// SetActiveConnections records the number of tracked descriptors.
func (m *Metrics) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(n))
}

// Frame records a frame of size payload bytes.
func (m *Metrics) Frame(direction string, size int) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(direction).Inc()
	m.frameBytes.WithLabelValues(direction).Add(float64(size))
}

// FrameError records a failed frame read or write.
func (m *Metrics) FrameError(direction, reason string) {
	if m == nil {
		return
	}
	m.frameErrors.WithLabelValues(direction, reason).Inc()
}

// Handshake records a handshake outcome. Role is "open" or "accept".
func (m *Metrics) Handshake(role string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.handshakes.WithLabelValues(role, result).Inc()
}
