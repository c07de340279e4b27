// Package connection keeps a client connection to a SCIM server alive.
//
// A Manager wraps a ConnectFunc that dials the server and runs the
// handshake. When the caller reports the connection lost, Run retries
// in the background with exponential backoff:
//
//  1. First retry after 100 ms
//  2. Doubling: 200 ms, 400 ms, 800 ms, ...
//  3. Capped at 5 seconds
//  4. Reset after a successful connect
//
// Each delay gets up to 20% random jitter so that clients restarted
// together by a dying server do not reconnect in lockstep.
//
// Every successful reconnect runs the handshake again, so the session
// key changes. Callers must not reuse a framer across reconnects.
package connection
