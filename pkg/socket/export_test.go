package socket

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// getsockname returns the bound inet address of s in spec form.
func getsockname(s *Socket) (string, error) {
	sa, err := unix.Getsockname(s.FD())
	if err != nil {
		return "", err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", fmt.Errorf("unexpected sockaddr %T", sa)
	}
	return fmt.Sprintf("inet:%d.%d.%d.%d:%d", in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3], in4.Port), nil
}
