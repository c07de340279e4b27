// Package config provides the read-only configuration store consulted
// for default socket addresses and timeouts.
//
// Keys are slash separated paths such as "/DefaultSocketTimeout". A
// FileStore reads them from a YAML document in which nested mappings
// spell out the path:
//
//	DefaultSocketTimeout: 3000
//	DefaultPanelSocketAddress: local:/tmp/scim-panel-socket
//	Panel:
//	  Gtk:
//	    Font: Sans 12
//
// A MapStore holds values in memory and is intended for tests and
// embedding.
package config
