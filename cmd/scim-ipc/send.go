package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scim-im/scim-ipc/cmd/scim-ipc/commands"
	"github.com/scim-im/scim-ipc/pkg/transaction"
)

func sendCmd(g *globalOptions) *cobra.Command {
	var (
		clientType string
		serverType string
		noReply    bool
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send [values...]",
		Short: "Send one transaction and print the reply",
		Long: `Connect to the target socket, run the handshake, send one transaction
built from the arguments and print the reply.

Values:
  REQUEST, OK, ...   named command
  cmd:N, user:N      command by number, peer specific command
  123, u:0x7b        uint32
  s:text, text       string
  w:text             wide string
  raw:cafe           raw bytes (hex)
  u[]:1,2 s[]:a,b    vectors (also w[]:)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := commands.ParseValues(args)
			if err != nil {
				return err
			}

			protoLogger, closeLog, err := g.protocolLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			var sess *commands.Session
			err = g.waitFor(cmd.Context(), wait, protoLogger, func(context.Context) error {
				var err error
				sess, err = g.dial(clientType, serverType, protoLogger, nil)
				return err
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "> %s\n", transaction.Dump(tr))
			if noReply {
				return sess.Send(tr)
			}
			reply, err := sess.Call(tr)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "< %s\n", transaction.Dump(reply))
			return nil
		},
	}

	cmd.Flags().StringVar(&clientType, "client-type", "", "Client type announced in the handshake (default from role)")
	cmd.Flags().StringVar(&serverType, "server-type", "", "Server type required from the peer (default from role)")
	cmd.Flags().BoolVar(&noReply, "no-reply", false, "Do not wait for a reply")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep retrying the connection for up to this long")

	return cmd
}

// newConnID returns a connection ID for client side protocol logs.
func newConnID() string {
	return uuid.NewString()
}
