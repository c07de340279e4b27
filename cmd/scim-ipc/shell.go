package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/scim-im/scim-ipc/cmd/scim-ipc/commands"
	"github.com/scim-im/scim-ipc/pkg/connection"
	scimlog "github.com/scim-im/scim-ipc/pkg/log"
	"github.com/scim-im/scim-ipc/pkg/transaction"
)

func shellCmd(g *globalOptions) *cobra.Command {
	var (
		clientType string
		serverType string
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive transaction shell",
		Long: `Connect to the target socket and send one transaction per line.
Lines use the value syntax of "scim-ipc send". Type "help" for the
shell commands. A broken connection is re-established in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			protoLogger, closeLog, err := g.protocolLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "scim> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			sh := &shell{g: g, rl: rl, clientType: clientType, serverType: serverType, logger: protoLogger}
			sh.mgr = connection.NewManager(sh.connect, connection.Config{
				Logger: protoLogger,
				ConnID: newConnID(),
				OnReconnecting: func(attempt int, delay time.Duration) {
					fmt.Fprintf(rl.Stderr(), "Reconnecting (attempt %d) in %s\n", attempt, delay.Round(time.Millisecond))
				},
			})
			defer sh.disconnect()
			defer sh.mgr.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go sh.mgr.Run(ctx)

			if err := sh.mgr.Connect(ctx); err != nil {
				fmt.Fprintf(rl.Stderr(), "Not connected: %v\n", err)
			}
			return sh.run(ctx)
		},
	}

	cmd.Flags().StringVar(&clientType, "client-type", "", "Client type announced in the handshake (default from role)")
	cmd.Flags().StringVar(&serverType, "server-type", "", "Server type required from the peer (default from role)")

	return cmd
}

type shell struct {
	g          *globalOptions
	rl         *readline.Instance
	clientType string
	serverType string
	logger     scimlog.Logger
	mgr        *connection.Manager

	mu   sync.Mutex
	sess *commands.Session
}

// connect is the manager's ConnectFunc. It also runs on the reconnect
// goroutine.
func (s *shell) connect(context.Context) error {
	s.disconnect()
	sess, err := s.g.dial(s.clientType, s.serverType, s.logger, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
	fmt.Fprintf(s.rl.Stdout(), "Connected to %s (key 0x%08x)\n", sess.Addr(), sess.Key())
	return nil
}

func (s *shell) session() *commands.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

func (s *shell) disconnect() {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

func (s *shell) run(ctx context.Context) error {
	for {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "help", "?":
			s.printHelp()
			continue
		case "quit", "exit", "q":
			return nil
		case "reconnect":
			if s.mgr.IsConnected() {
				s.disconnect()
				s.mgr.NotifyConnectionLost()
			} else if err := s.mgr.Connect(ctx); err != nil {
				fmt.Fprintf(s.rl.Stderr(), "Error: %v\n", err)
			}
			continue
		case "status":
			if sess := s.session(); sess == nil {
				fmt.Fprintf(s.rl.Stdout(), "Not connected (%s)\n", s.mgr.State())
			} else {
				fmt.Fprintf(s.rl.Stdout(), "Connected to %s (key 0x%08x)\n", sess.Addr(), sess.Key())
			}
			continue
		}

		s.send(input)
	}
}

func (s *shell) send(input string) {
	sess := s.session()
	if sess == nil {
		fmt.Fprintln(s.rl.Stderr(), "Not connected (use reconnect)")
		return
	}
	args, err := commands.SplitArgs(input)
	if err != nil {
		fmt.Fprintf(s.rl.Stderr(), "Error: %v\n", err)
		return
	}
	tr, err := commands.ParseValues(args)
	if err != nil {
		fmt.Fprintf(s.rl.Stderr(), "Error: %v\n", err)
		return
	}
	reply, err := sess.Call(tr)
	if err != nil {
		fmt.Fprintf(s.rl.Stderr(), "Error: %v\n", err)
		s.disconnect()
		s.mgr.NotifyConnectionLost()
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "< %s\n", transaction.Dump(reply))
}

func (s *shell) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `Commands:
  help, ?      Show this help
  status       Show the connection
  reconnect    Reconnect and redo the handshake
  quit, exit   Leave the shell

Any other line is sent as one transaction, e.g.:
  REQUEST user:3 "hello world" u:7 raw:cafe
`)
}
