package transaction

import (
	"fmt"
	"strings"

	"github.com/scim-im/scim-ipc/pkg/log"
)

// Dump renders every value of t on one line, for logs and the CLI.
// Undecodable trailing bytes are reported, not hidden.
func Dump(t *Transaction) string {
	var sb strings.Builder
	r := t.Reader()
	for r.Remaining() > 0 {
		v, ok := r.Next()
		if !ok {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "<%d undecodable bytes at %d>", r.Remaining(), r.Pos())
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		if cmd, ok := v.(Command); ok {
			sb.WriteString(cmd.String())
			continue
		}
		sb.WriteString(v.String())
	}
	return sb.String()
}

// Summarize returns the codec layer log record for t.
func Summarize(t *Transaction) *log.MessageEvent {
	ev := &log.MessageEvent{}
	r := t.Reader()
	for {
		v, ok := r.Next()
		if !ok {
			break
		}
		ev.ValueCount++
		if cmd, ok := v.(Command); ok {
			ev.Commands = append(ev.Commands, uint32(cmd))
		}
	}
	ev.Summary = Dump(t)
	return ev
}
