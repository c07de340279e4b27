package main

import (
	"github.com/spf13/cobra"

	"github.com/scim-im/scim-ipc/cmd/scim-ipc/commands"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "View, export, or summarize a protocol capture file",
		Long: `Protocol capture files are written by serve, send, probe and shell
with --protocol-log. Each record is one CBOR encoded event.`,
	}
	cmd.AddCommand(logViewCmd(), logExportCmd(), logStatsCmd())
	return cmd
}

func addFilterFlags(cmd *cobra.Command, opts *commands.FilterOptions) {
	cmd.Flags().StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	cmd.Flags().StringVar(&opts.PeerType, "peer-type", "", "Filter by negotiated peer type")
	cmd.Flags().StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	cmd.Flags().StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	cmd.Flags().StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, codec, session)")
	cmd.Flags().StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Filter by category (message, state, error)")
	cmd.Flags().StringVar(&opts.Signature, "signature", "", "Filter frames by signature / session key (e.g. 0x1a2b3c4d)")
	cmd.Flags().StringVar(&opts.ErrorReason, "error-reason", "", "Filter errors by reason (checksum, magic, size, truncated, timeout, io)")
	cmd.Flags().StringVar(&opts.Entity, "entity", "", "Filter state changes by entity (connection, session, server)")
}

func logViewCmd() *cobra.Command {
	var opts commands.FilterOptions

	cmd := &cobra.Command{
		Use:   "view <file.scimlog>",
		Short: "View a capture file in human-readable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := commands.BuildFilter(opts)
			if err != nil {
				return err
			}
			return commands.RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	addFilterFlags(cmd, &opts)
	return cmd
}

func logExportCmd() *cobra.Command {
	var (
		opts   commands.FilterOptions
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <file.scimlog>",
		Short: "Export a capture file to JSON lines or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := commands.BuildFilter(opts)
			if err != nil {
				return err
			}
			return commands.RunExport(args[0], filter, format, output)
		},
	}
	addFilterFlags(cmd, &opts)
	cmd.Flags().StringVar(&format, "format", "jsonl", "Output format (jsonl, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func logStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.scimlog>",
		Short: "Show statistics about a capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunStats(args[0], cmd.OutOrStdout())
		},
	}
}
