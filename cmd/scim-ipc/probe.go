package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scim-im/scim-ipc/pkg/handshake"
)

func probeCmd(g *globalOptions) *cobra.Command {
	var (
		serverType string
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that a server answers the handshake",
		Long: `Connect as ConnectionTester, complete the handshake and disconnect.
Exits non-zero when the server is unreachable or refuses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _, err := g.target()
			if err != nil {
				return err
			}

			protoLogger, closeLog, err := g.protocolLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			var res *handshake.ProbeResult
			err = g.waitFor(cmd.Context(), wait, protoLogger, func(context.Context) error {
				var err error
				res, err = handshake.Probe(addr, serverType, handshake.Options{
					Timeout: g.frameTimeout(),
					Logger:  protoLogger,
					ConnID:  newConnID(),
				})
				return err
			})
			if err != nil {
				return fmt.Errorf("probe %s: %w", addr, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address:      %s\n", addr)
			fmt.Fprintf(out, "Server types: %s\n", strings.Join(res.ServerTypes, ", "))
			fmt.Fprintf(out, "Session key:  0x%08x\n", res.Key)
			fmt.Fprintf(out, "Round trip:   %s\n", res.RTT)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverType, "server-type", "", "Require the server to announce this type")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep probing for up to this long until the server answers")

	return cmd
}
