package transaction

import (
	"fmt"
	"strconv"
)

// Command is a protocol command code carried by a COMMAND value.
type Command uint32

// Commands shared by every SCIM protocol. Peer specific commands start
// at CmdUserDefined.
const (
	CmdUnknown         Command = 0
	CmdRequest         Command = 1
	CmdReply           Command = 2
	CmdTrue            Command = 3
	CmdFalse           Command = 4
	CmdOK              Command = 5
	CmdFail            Command = 6
	CmdOpenConnection  Command = 7
	CmdCloseConnection Command = 8
	CmdLoadFile        Command = 9
	CmdSaveFile        Command = 10
	CmdUserDefined     Command = 10000
)

var commandNames = map[Command]string{
	CmdUnknown:         "UNKNOWN",
	CmdRequest:         "REQUEST",
	CmdReply:           "REPLY",
	CmdTrue:            "TRUE",
	CmdFalse:           "FALSE",
	CmdOK:              "OK",
	CmdFail:            "FAIL",
	CmdOpenConnection:  "OPEN_CONNECTION",
	CmdCloseConnection: "CLOSE_CONNECTION",
	CmdLoadFile:        "LOAD_FILE",
	CmdSaveFile:        "SAVE_FILE",
}

// String returns the command name, or its number for unnamed commands.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	if c >= CmdUserDefined {
		return fmt.Sprintf("USER(%d)", uint32(c-CmdUserDefined))
	}
	return fmt.Sprintf("CMD(%d)", uint32(c))
}

// ParseCommand resolves a command name (case sensitive) or decimal code.
func ParseCommand(s string) (Command, error) {
	for c, name := range commandNames {
		if name == s {
			return c, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return CmdUnknown, fmt.Errorf("unknown command %q", s)
	}
	return Command(n), nil
}
