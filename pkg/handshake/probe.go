package handshake

import (
	"fmt"
	"strings"
	"time"

	"github.com/scim-im/scim-ipc/pkg/socket"
)

// ProbeResult describes a server that answered a probe.
type ProbeResult struct {
	// ServerTypes lists the types the server announced.
	ServerTypes []string

	// Key is the session key the server handed out.
	Key uint32

	// RTT is the time from connect to confirmation.
	RTT time.Duration
}

// Probe connects to addr as a ConnectionTester, completes the handshake
// and disconnects. If serverType is not empty the server must list it.
func Probe(addr socket.Address, serverType string, opts Options) (*ProbeResult, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	c := socket.NewClient()
	defer c.Close()
	if err := c.ConnectWithTimeout(addr, timeout); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	key, types, err := open(c, ProbeType, func(types string) bool {
		return serverType == "" || CheckType(types, serverType)
	}, opts)
	if err != nil {
		return nil, err
	}

	result := &ProbeResult{Key: key, RTT: time.Since(start)}
	for _, name := range strings.Split(types, ",") {
		if name = strings.TrimSpace(name); name != "" {
			result.ServerTypes = append(result.ServerTypes, name)
		}
	}
	return result, nil
}
