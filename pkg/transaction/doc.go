// Package transaction implements the SCIM Transaction binary codec.
//
// A Transaction is one logical IPC message: an ordered sequence of typed
// values appended to a growable buffer, sent over a socket as a single
// frame and read back with a Reader.
//
// # Frame Layout
//
//	┌────────────┬────────────┬──────────────┬────────────┬─────────────┐
//	│ signature  │ magic      │ payload size │ checksum   │ payload ... │
//	│ u32        │ 0x4D494353 │ u32          │ u32        │ size bytes  │
//	└────────────┴────────────┴──────────────┴────────────┴─────────────┘
//
// All header words are little-endian. The signature is chosen by the
// sender (normally the session key) and is returned to the receiver
// untouched. The checksum is a rotating sum over the payload and detects
// corruption only.
//
// # Values
//
// Every value starts with a one byte DataType tag. Strings, vectors and
// lists carry a 32-bit length or count before their elements. Wide
// strings travel as UTF-8.
//
// # Decoding
//
// Reader getters return ok=false on a short buffer, an out of range
// length or a tag mismatch. A failed get leaves the cursor where it was,
// so callers simply stop parsing the message.
package transaction
