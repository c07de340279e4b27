// Package log provides structured protocol capture for the SCIM IPC
// transport.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (socket, codec, session).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Components accept a Logger through their configuration:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/tmp/scim-panel.scimlog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw frame headers and bytes (FrameEvent)
//   - Codec: Decoded transaction contents (MessageEvent)
//   - Session: Connection and handshake state changes (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files are a stream of CBOR encoded events. The "scim-ipc log"
// commands view and summarize them.
package log
