// Package addressing resolves the default socket addresses and timeout
// of the SCIM processes from the environment, a configuration store and
// compiled-in defaults, in that order.
package addressing

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scim-im/scim-ipc/pkg/config"
	"github.com/scim-im/scim-ipc/pkg/socket"
)

// Environment variables.
const (
	EnvSocketAddress              = "SCIM_SOCKET_ADDRESS"
	EnvFrontendSocketAddress      = "SCIM_FRONTEND_SOCKET_ADDRESS"
	EnvIMEngineSocketAddress      = "SCIM_IMENGINE_SOCKET_ADDRESS"
	EnvConfigSocketAddress        = "SCIM_CONFIG_SOCKET_ADDRESS"
	EnvPanelSocketAddress         = "SCIM_PANEL_SOCKET_ADDRESS"
	EnvHelperManagerSocketAddress = "SCIM_HELPER_MANAGER_SOCKET_ADDRESS"
	EnvSocketTimeout              = "SCIM_SOCKET_TIMEOUT"
)

// Compiled-in defaults.
const (
	DefaultFrontendAddress      = "local:/tmp/scim-socket-frontend"
	DefaultIMEngineAddress      = "local:/tmp/scim-imengine-socket"
	DefaultConfigAddress        = "local:/tmp/scim-config-socket"
	DefaultPanelAddress         = "local:/tmp/scim-panel-socket"
	DefaultHelperManagerAddress = "local:/tmp/scim-helper-manager-socket"
	DefaultTimeout              = 5000 * time.Millisecond
)

// Role names a SCIM process whose socket address can be resolved.
type Role uint8

const (
	RoleFrontend Role = iota
	RoleIMEngine
	RoleConfig
	RolePanel
	RoleHelperManager
)

type roleInfo struct {
	name string
	env  string
	key  string
	def  string
}

var roles = map[Role]roleInfo{
	RoleFrontend:      {"frontend", EnvFrontendSocketAddress, config.KeyFrontendAddress, DefaultFrontendAddress},
	RoleIMEngine:      {"imengine", EnvIMEngineSocketAddress, config.KeyIMEngineAddress, DefaultIMEngineAddress},
	RoleConfig:        {"config", EnvConfigSocketAddress, config.KeyConfigAddress, DefaultConfigAddress},
	RolePanel:         {"panel", EnvPanelSocketAddress, config.KeyPanelAddress, DefaultPanelAddress},
	RoleHelperManager: {"helper-manager", EnvHelperManagerSocketAddress, config.KeyHelperManagerAddress, DefaultHelperManagerAddress},
}

// String returns the role name.
func (r Role) String() string {
	if info, ok := roles[r]; ok {
		return info.name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole resolves a role name as printed by Role.String.
func ParseRole(name string) (Role, error) {
	for r, info := range roles {
		if info.name == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// Roles returns all roles in declaration order.
func Roles() []Role {
	return []Role{RoleFrontend, RoleIMEngine, RoleConfig, RolePanel, RoleHelperManager}
}

// Resolver resolves default addresses. The zero value reads the process
// environment and has no configuration store.
type Resolver struct {
	// Store is consulted after the environment (optional).
	Store config.Store

	// Getenv replaces os.Getenv (optional).
	Getenv func(string) string
}

func (r Resolver) getenv(key string) string {
	if r.Getenv != nil {
		return r.Getenv(key)
	}
	return os.Getenv(key)
}

// Address returns the address spec for role. The display argument is
// only used for RolePanel.
func (r Resolver) Address(role Role, display string) string {
	if role == RolePanel {
		return r.PanelAddress(display)
	}
	return r.lookup(role)
}

func (r Resolver) lookup(role Role) string {
	info, ok := roles[role]
	if !ok {
		return ""
	}
	if v := r.getenv(EnvSocketAddress); v != "" {
		return v
	}
	if v := r.getenv(info.env); v != "" {
		return v
	}
	if r.Store != nil {
		if v := strings.TrimSpace(r.Store.String(info.key, "")); v != "" && v != "default" {
			return v
		}
	}
	return info.def
}

// FrontendAddress returns the front-end socket address.
func (r Resolver) FrontendAddress() string { return r.lookup(RoleFrontend) }

// IMEngineAddress returns the IMEngine socket address.
func (r Resolver) IMEngineAddress() string { return r.lookup(RoleIMEngine) }

// ConfigAddress returns the config socket address.
func (r Resolver) ConfigAddress() string { return r.lookup(RoleConfig) }

// HelperManagerAddress returns the helper manager socket address.
func (r Resolver) HelperManagerAddress() string { return r.lookup(RoleHelperManager) }

// PanelAddress returns the panel socket address for an X display such as
// ":0.0" or "host:1". Local addresses get the display name appended with
// the screen number removed and "/" replaced by "_"; inet addresses get
// the display number added to the port.
func (r Resolver) PanelAddress(display string) string {
	base := r.lookup(RolePanel)
	scheme, rest, ok := strings.Cut(base, ":")
	if !ok {
		return base
	}

	switch scheme {
	case "local", "unix", "file":
		return base + strings.ReplaceAll(stripScreen(display), "/", "_")
	case "inet", "tcp":
		host, portStr, ok := strings.Cut(rest, ":")
		if !ok {
			return base
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return base
		}
		return fmt.Sprintf("%s:%s:%d", scheme, host, port+DisplayNumber(display))
	default:
		return base
	}
}

// Timeout returns the socket timeout: SCIM_SOCKET_TIMEOUT, then the
// configured value, then DefaultTimeout, all in milliseconds. A value of
// zero or less means no timeout.
func (r Resolver) Timeout() time.Duration {
	ms := int(DefaultTimeout / time.Millisecond)
	if r.Store != nil {
		ms = r.Store.Int(config.KeySocketTimeout, ms)
	}
	if v := strings.TrimSpace(r.getenv(EnvSocketTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ms = n
		}
	}
	if ms <= 0 {
		return socket.NoTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// Resolve parses the address for role for the current user.
func (r Resolver) Resolve(role Role, display string) (socket.Address, error) {
	return socket.ParseAddress(r.Address(role, display))
}

// stripScreen removes the ".screen" suffix from a display name.
func stripScreen(display string) string {
	colon := strings.LastIndexByte(display, ':')
	if colon < 0 {
		return display
	}
	if dot := strings.IndexByte(display[colon:], '.'); dot >= 0 {
		return display[:colon+dot]
	}
	return display
}

// DisplayNumber returns the display number of an X display name, or 0.
func DisplayNumber(display string) int {
	colon := strings.LastIndexByte(display, ':')
	if colon < 0 {
		return 0
	}
	num := display[colon+1:]
	if dot := strings.IndexByte(num, '.'); dot >= 0 {
		num = num[:dot]
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
