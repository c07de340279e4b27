package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/scim-im/scim-ipc/cmd/scim-ipc/commands"
	"github.com/scim-im/scim-ipc/pkg/addressing"
	"github.com/scim-im/scim-ipc/pkg/config"
	"github.com/scim-im/scim-ipc/pkg/connection"
	"github.com/scim-im/scim-ipc/pkg/handshake"
	scimlog "github.com/scim-im/scim-ipc/pkg/log"
	"github.com/scim-im/scim-ipc/pkg/metrics"
	"github.com/scim-im/scim-ipc/pkg/socket"
)

// globalOptions holds the persistent flags and the state derived from
// them.
type globalOptions struct {
	configPath  string
	logLevel    string
	protocolLog string
	role        string
	address     string
	display     string
	timeout     time.Duration

	logger *slog.Logger
	store  *config.FileStore
}

func (g *globalOptions) setup(stderr io.Writer) error {
	level, err := parseLevel(g.logLevel)
	if err != nil {
		return err
	}
	g.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.logger)

	if g.configPath != "" {
		store, err := config.Load(g.configPath)
		if err != nil {
			return err
		}
		g.store = store
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}

func (g *globalOptions) resolver() addressing.Resolver {
	r := addressing.Resolver{}
	// Only set the store when non-nil to avoid a typed-nil interface.
	if g.store != nil {
		r.Store = g.store
	}
	return r
}

// target resolves the socket address and role from --address or --role.
func (g *globalOptions) target() (socket.Address, addressing.Role, error) {
	role, err := addressing.ParseRole(g.role)
	if err != nil {
		return socket.Address{}, 0, err
	}
	spec := g.address
	if spec == "" {
		spec = g.resolver().Address(role, g.display)
	}
	addr, err := socket.ParseAddress(spec)
	if err != nil {
		return socket.Address{}, role, fmt.Errorf("failed to parse address %q: %w", spec, err)
	}
	return addr, role, nil
}

// frameTimeout returns --timeout, falling back to the resolved default.
func (g *globalOptions) frameTimeout() time.Duration {
	if g.timeout != 0 {
		return g.timeout
	}
	return g.resolver().Timeout()
}

// protocolLogger opens the capture file from --protocol-log and adds an
// slog adapter at debug level. The returned function closes the file.
func (g *globalOptions) protocolLogger() (scimlog.Logger, func(), error) {
	var file, console scimlog.Logger
	closeFn := func() {}

	if g.protocolLog != "" {
		fl, err := scimlog.NewFileLogger(g.protocolLog)
		if err != nil {
			return nil, closeFn, fmt.Errorf("failed to create protocol logger: %w", err)
		}
		file = fl
		closeFn = func() {
			if n := fl.Dropped(); n > 0 {
				g.logger.Warn("protocol capture dropped events", "path", fl.Path(), "dropped", n)
			}
			fl.Close()
		}
	}
	if g.logLevel == "debug" {
		console = scimlog.NewSlogAdapter(g.logger)
	}
	return scimlog.Combine(file, console), closeFn, nil
}

// dial connects to the target and runs the handshake.
func (g *globalOptions) dial(clientType, serverType string, logger scimlog.Logger, m *metrics.Metrics) (*commands.Session, error) {
	addr, role, err := g.target()
	if err != nil {
		return nil, err
	}
	if clientType == "" {
		clientType = commands.DefaultClientType(role)
	}
	if serverType == "" {
		serverType = commands.TypesFor(role).Server
	}
	g.logger.Debug("connecting", "address", addr.String(), "client_type", clientType, "server_type", serverType)
	return commands.Dial(addr, clientType, serverType, handshake.Options{
		Timeout: g.frameTimeout(),
		Logger:  logger,
		ConnID:  newConnID(),
		Metrics: m,
	})
}

// waitFor runs connect once, or retries it with backoff for up to wait
// when wait is positive.
func (g *globalOptions) waitFor(ctx context.Context, wait time.Duration, logger scimlog.Logger, connect connection.ConnectFunc) error {
	if _, _, err := g.target(); err != nil {
		return err
	}
	if wait <= 0 {
		return connect(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	mgr := connection.NewManager(connect, connection.Config{
		Logger: logger,
		ConnID: newConnID(),
		OnReconnecting: func(attempt int, delay time.Duration) {
			g.logger.Info("server not ready, retrying", "attempt", attempt, "delay", delay)
		},
	})
	defer mgr.Close()
	return mgr.ConnectWithRetry(ctx, 0)
}
