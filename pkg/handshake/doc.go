// Package handshake implements the SCIM connection handshake that runs
// once on every new socket before any other transaction.
//
// # Flow
//
//  1. The connector sends REQUEST, OPEN_CONNECTION, the binary version
//     and its own type name ("FrontEnd", "Panel", ...).
//  2. The acceptor checks the version for an exact match and the type
//     against its comma separated list of accepted types. The probe type
//     ConnectionTester is always accepted.
//  3. The acceptor replies REPLY, its own type list and a random 32-bit
//     session key.
//  4. The connector checks the acceptor's list for the type it wanted to
//     reach and answers REPLY, OK (or REPLY, FAIL).
//
// Every later frame on the connection carries the session key as its
// signature. The key tags frames; it does not authenticate them.
package handshake
