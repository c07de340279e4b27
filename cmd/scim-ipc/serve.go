package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/scim-im/scim-ipc/cmd/scim-ipc/commands"
	"github.com/scim-im/scim-ipc/pkg/metrics"
	"github.com/scim-im/scim-ipc/pkg/socket"
)

func serveCmd(g *globalOptions) *cobra.Command {
	var (
		maxClients    int
		serverTypes   string
		clientTypes   string
		metricsListen string
		watchConfig   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an echo server on a role's socket",
		Long: `Run a SCIM peer that performs the handshake on every connection and
answers each REQUEST with REPLY followed by the request's values.

Stop it with SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, role, err := g.target()
			if err != nil {
				return err
			}
			types := commands.TypesFor(role)
			if serverTypes == "" {
				serverTypes = types.Server
			}
			if clientTypes == "" {
				clientTypes = types.Clients
			}

			reg := prometheus.NewRegistry()
			m := metrics.New(metrics.WithRegistry(reg))

			protoLogger, closeLog, err := g.protocolLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			svc := &commands.EchoService{
				ServerTypes: serverTypes,
				ClientTypes: clientTypes,
				Timeout:     g.frameTimeout(),
				Logger:      protoLogger,
				Metrics:     m,
				Ops:         g.logger,
			}
			srv, err := socket.NewServer(svc.ServerConfig(addr, maxClients))
			if err != nil {
				if socket.IsFatal(err) {
					log.Fatalf("Cannot serve %s: %v", addr, err)
				}
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if metricsListen != "" {
				startMetricsServer(ctx, g, metricsListen, reg)
			}
			if watchConfig && g.store != nil {
				watchStore(ctx, g, addr)
			}

			g.logger.Info("serving",
				"address", addr.String(),
				"server_types", serverTypes,
				"client_types", clientTypes,
				"max_clients", srv.MaxClients())
			err = srv.Run(ctx)
			g.logger.Info("server stopped", "sessions_dropped", svc.Reset())
			return err
		},
	}

	cmd.Flags().IntVar(&maxClients, "max-clients", 0, "Maximum concurrent clients (0 = default)")
	cmd.Flags().StringVar(&serverTypes, "server-types", "", "Announced server types (default from role)")
	cmd.Flags().StringVar(&clientTypes, "client-types", "", "Accepted client types (default from role)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	cmd.Flags().BoolVar(&watchConfig, "watch-config", true, "Reload the configuration file when it changes")

	return cmd
}

func startMetricsServer(ctx context.Context, g *globalOptions, listen string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	hs := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("metrics server failed", "listen", listen, "error", err)
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(shutdownCtx)
	})
	g.logger.Info("metrics listening", "listen", listen)
}

// watchStore reloads the configuration file on change. A running server
// keeps its socket; a changed address only takes effect on restart.
func watchStore(ctx context.Context, g *globalOptions, bound socket.Address) {
	g.store.OnChange(func() {
		addr, _, err := g.target()
		switch {
		case err != nil:
			g.logger.Warn("configuration reloaded with invalid address", "error", err)
		case addr.String() != bound.String():
			g.logger.Warn("configuration reloaded, address change needs a restart",
				"bound", bound.String(), "configured", addr.String())
		default:
			g.logger.Info("configuration reloaded", "path", g.store.Path())
		}
	})
	go func() {
		err := g.store.Watch(ctx, func(err error) {
			g.logger.Warn("configuration reload failed", "path", g.store.Path(), "error", err)
		})
		if err != nil {
			g.logger.Warn("configuration watch stopped", "error", err)
		}
	}()
}
