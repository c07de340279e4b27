// Command scim-ipc is an operator tool for SCIM IPC sockets.
//
// It resolves socket addresses the way SCIM processes do, probes and
// talks to running servers, runs an echo server for client testing, and
// reads protocol capture files.
//
// Usage:
//
//	scim-ipc <command> [flags]
//
// Commands:
//
//	serve    Run an echo server on a role's socket
//	send     Connect, handshake, send one transaction and print the reply
//	probe    Check that a server answers the handshake
//	shell    Interactive transaction shell
//	addr     Print resolved socket addresses
//	log      View, export, or summarize a protocol capture file
//	version  Print version information
//
// Examples:
//
//	# Serve the front-end socket with a protocol capture
//	scim-ipc serve --role frontend --protocol-log frontend.scimlog
//
//	# Probe the panel of display :1
//	scim-ipc probe --role panel --display :1
//
//	# Send REQUEST, user command 3 and a string
//	scim-ipc send --role frontend REQUEST user:3 s:hello
//
//	# Show where every role listens
//	scim-ipc addr
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information set at link time.
var (
	buildVersion = "dev"
	commit       = "none"
	date         = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalOptions

	rootCmd := &cobra.Command{
		Use:   "scim-ipc",
		Short: "Inspect and exercise SCIM IPC sockets",
		Long: `scim-ipc talks the SCIM transaction protocol over local and inet sockets.

Addresses are resolved per role from SCIM_SOCKET_ADDRESS, the role's
environment variable, the configuration file, and the compiled default,
in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "Configuration file (YAML)")
	flags.StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&g.protocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flags.StringVar(&g.role, "role", "frontend", "Socket role: frontend, imengine, config, panel, helper-manager")
	flags.StringVar(&g.address, "address", "", "Socket address, overrides --role")
	flags.StringVar(&g.display, "display", os.Getenv("DISPLAY"), "X display used for the panel address")
	flags.DurationVar(&g.timeout, "timeout", 0, "Frame timeout (default from SCIM_SOCKET_TIMEOUT or config)")

	rootCmd.AddCommand(
		serveCmd(&g),
		sendCmd(&g),
		probeCmd(&g),
		shellCmd(&g),
		addrCmd(&g),
		logCmd(),
		versionCmd(),
	)
	return rootCmd
}
