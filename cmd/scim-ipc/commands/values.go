package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/scim-im/scim-ipc/pkg/transaction"
)

// ErrUnterminatedQuote is returned by SplitArgs for an open quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// ParseValues builds a transaction from command line tokens:
//
//	REQUEST, OK, ...   named command
//	cmd:N              command by number or name
//	user:N             peer specific command N
//	123, u:0x7b        uint32
//	s:text             string (also any token not matched above)
//	w:text             wide string
//	raw:cafe           raw bytes, hex encoded
//	u[]:1,2 s[]:a,b    uint32 and string vectors
//	w[]:a,b            wide string vector
func ParseValues(args []string) (*transaction.Transaction, error) {
	tr := transaction.New()
	for _, arg := range args {
		v, err := parseValue(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", arg, err)
		}
		tr.Put(v)
	}
	return tr, nil
}

func parseValue(arg string) (transaction.Value, error) {
	prefix, rest, ok := strings.Cut(arg, ":")
	if !ok {
		if n, err := strconv.ParseUint(arg, 10, 32); err == nil {
			return transaction.Uint32(n), nil
		}
		if cmd, err := transaction.ParseCommand(arg); err == nil {
			return cmd, nil
		}
		return transaction.String(arg), nil
	}

	switch prefix {
	case "cmd":
		return transaction.ParseCommand(rest)
	case "user":
		n, err := strconv.ParseUint(rest, 0, 32)
		if err != nil {
			return nil, err
		}
		return transaction.CmdUserDefined + transaction.Command(n), nil
	case "u":
		n, err := strconv.ParseUint(rest, 0, 32)
		if err != nil {
			return nil, err
		}
		return transaction.Uint32(n), nil
	case "s":
		return transaction.String(rest), nil
	case "w":
		return transaction.WString([]rune(rest)), nil
	case "raw":
		b, err := hex.DecodeString(rest)
		if err != nil {
			return nil, err
		}
		return transaction.Raw(b), nil
	case "u[]":
		var vec transaction.Uint32Vector
		for _, s := range splitList(rest) {
			n, err := strconv.ParseUint(s, 0, 32)
			if err != nil {
				return nil, err
			}
			vec = append(vec, uint32(n))
		}
		return vec, nil
	case "s[]":
		return transaction.StringVector(splitList(rest)), nil
	case "w[]":
		var vec transaction.WStringVector
		for _, s := range splitList(rest) {
			vec = append(vec, []rune(s))
		}
		return vec, nil
	default:
		return transaction.String(arg), nil
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// SplitArgs splits a shell line into tokens. Double quotes group words;
// a backslash escapes the next character.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
			started = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote || escaped {
		return nil, ErrUnterminatedQuote
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
