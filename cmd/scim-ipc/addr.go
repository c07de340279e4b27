package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scim-im/scim-ipc/pkg/addressing"
	"github.com/scim-im/scim-ipc/pkg/socket"
)

func addrCmd(g *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "addr",
		Short: "Print resolved socket addresses",
		Long: `Print the socket address of every role, or only of --role when
--all=false, as resolved from the environment, configuration and
compiled defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := g.resolver()
			roles := addressing.Roles()
			if !all {
				role, err := addressing.ParseRole(g.role)
				if err != nil {
					return err
				}
				roles = []addressing.Role{role}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROLE\tADDRESS\tRESOLVED")
			for _, role := range roles {
				spec := r.Address(role, g.display)
				resolved := "invalid"
				if addr, err := socket.ParseAddress(spec); err == nil {
					resolved = addr.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", role, spec, resolved)
			}
			tw.Flush()

			if timeout := r.Timeout(); timeout < 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nTimeout: none")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "\nTimeout: %s\n", timeout)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", true, "Print every role")

	return cmd
}
