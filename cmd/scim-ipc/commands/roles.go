package commands

import "github.com/scim-im/scim-ipc/pkg/addressing"

// RoleTypes holds the handshake type names a role's server uses.
type RoleTypes struct {
	// Server is announced by the role's server.
	Server string

	// Clients lists the client types the server accepts.
	Clients string
}

var roleTypes = map[addressing.Role]RoleTypes{
	addressing.RoleFrontend:      {Server: "SocketFrontEnd", Clients: "SocketIMEngine,SocketConfig"},
	addressing.RoleIMEngine:      {Server: "SocketIMEngine", Clients: "SocketFrontEnd"},
	addressing.RoleConfig:        {Server: "SocketConfig", Clients: "SocketFrontEnd,SocketIMEngine"},
	addressing.RolePanel:         {Server: "Panel", Clients: "FrontEnd,Helper"},
	addressing.RoleHelperManager: {Server: "HelperManager", Clients: "HelperLauncher,Panel"},
}

// TypesFor returns the handshake type names for role.
func TypesFor(role addressing.Role) RoleTypes {
	return roleTypes[role]
}

// DefaultClientType returns the first client type the role's server
// accepts.
func DefaultClientType(role addressing.Role) string {
	clients := roleTypes[role].Clients
	for i := 0; i < len(clients); i++ {
		if clients[i] == ',' {
			return clients[:i]
		}
	}
	return clients
}
