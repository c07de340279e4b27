// Package socket implements the SCIM stream transport over unix-domain
// and IPv4 sockets.
//
// A Socket owns one non-blocking, close-on-exec descriptor. Reads and
// writes block the calling goroutine until the whole buffer is
// transferred, the peer goes away, or a deadline passes; interrupted
// system calls are retried and would-block results wait in poll(2)
// against a single monotonic deadline.
//
// A Server multiplexes its listening descriptor, accepted clients and
// externally owned descriptors in one poll loop and dispatches callbacks
// synchronously on the goroutine that called Run:
//
//	srv, err := socket.NewServer(socket.ServerConfig{
//	    Address:    addr,
//	    MaxClients: 16,
//	    OnReceive: func(s *socket.Server, c *socket.Socket) {
//	        // read one transaction from c, or s.CloseConnection(c)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
//
// Addresses are written as "local:/tmp/scim-socket" (also "unix:" and
// "file:") or "inet:host:port" (also "tcp:"). Local paths receive a
// "-<user>" suffix so several users can share one host.
package socket
