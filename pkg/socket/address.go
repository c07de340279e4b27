package socket

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Family is the address family of an Address or Socket.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyLocal
	FamilyInet
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyLocal:
		return "local"
	case FamilyInet:
		return "inet"
	default:
		return "unknown"
	}
}

// maxPathLen is the usable length of sockaddr_un.sun_path, leaving room
// for the terminating NUL.
const maxPathLen = 107

// Address is an immutable, resolved socket address.
type Address struct {
	family Family
	spec   string
	path   string
	ip     [4]byte
	port   int
}

// ParseAddress parses spec for the current user. Local paths receive a
// "-<user>" suffix.
func ParseAddress(spec string) (Address, error) {
	return ParseAddressForUser(spec, CurrentUser())
}

// ParseAddressForUser parses spec, suffixing local paths with "-<user>".
// An empty user leaves the path unchanged.
//
// Accepted forms are "local:<path>", "unix:<path>", "file:<path>",
// "inet:<host>:<port>" and "tcp:<host>:<port>". The host "any" binds all
// interfaces and "loopback" is 127.0.0.1; other hosts go through the
// system resolver, which must produce an IPv4 address.
func ParseAddressForUser(spec, userName string) (Address, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return Address{}, fmt.Errorf("%w %q: missing scheme", ErrInvalidAddress, spec)
	}

	switch parts[0] {
	case "local", "unix", "file":
		path := spec[len(parts[0])+1:]
		if path == "" {
			return Address{}, fmt.Errorf("%w %q: empty path", ErrInvalidAddress, spec)
		}
		if userName != "" {
			path += "-" + userName
		}
		if len(path) > maxPathLen {
			return Address{}, fmt.Errorf("%w %q: path longer than %d bytes", ErrInvalidAddress, spec, maxPathLen)
		}
		return Address{family: FamilyLocal, spec: spec, path: path}, nil

	case "inet", "tcp":
		if len(parts) != 3 {
			return Address{}, fmt.Errorf("%w %q: want %s:<host>:<port>", ErrInvalidAddress, spec, parts[0])
		}
		port, err := strconv.ParseUint(parts[2], 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("%w %q: bad port: %v", ErrInvalidAddress, spec, err)
		}
		ip, err := resolveIPv4(parts[1])
		if err != nil {
			return Address{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, spec, err)
		}
		return Address{family: FamilyInet, spec: spec, ip: ip, port: int(port)}, nil

	default:
		return Address{}, fmt.Errorf("%w %q: unknown scheme %q", ErrInvalidAddress, spec, parts[0])
	}
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(spec string) Address {
	addr, err := ParseAddress(spec)
	if err != nil {
		panic(err)
	}
	return addr
}

func resolveIPv4(host string) ([4]byte, error) {
	switch host {
	case "any", "":
		return [4]byte{0, 0, 0, 0}, nil
	case "loopback":
		return [4]byte{127, 0, 0, 1}, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return [4]byte(ip4), nil
		}
		return [4]byte{}, fmt.Errorf("%s is not an IPv4 address", host)
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return [4]byte{}, err
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return [4]byte(ip4), nil
		}
	}
	return [4]byte{}, fmt.Errorf("%s has no IPv4 address", host)
}

// CurrentUser returns the login name used to suffix local paths.
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return strconv.Itoa(os.Getuid())
}

// Valid reports whether the address was parsed successfully.
func (a Address) Valid() bool { return a.family != FamilyUnknown }

// Family returns the address family.
func (a Address) Family() Family { return a.family }

// Spec returns the text the address was parsed from.
func (a Address) Spec() string { return a.spec }

// Path returns the socket path of a local address.
func (a Address) Path() string { return a.path }

// Port returns the port of an inet address.
func (a Address) Port() int { return a.port }

// IP returns the IPv4 address of an inet address.
func (a Address) IP() net.IP {
	if a.family != FamilyInet {
		return nil
	}
	return net.IPv4(a.ip[0], a.ip[1], a.ip[2], a.ip[3])
}

// String returns the resolved address in spec form.
func (a Address) String() string {
	switch a.family {
	case FamilyLocal:
		return "local:" + a.path
	case FamilyInet:
		return fmt.Sprintf("inet:%d.%d.%d.%d:%d", a.ip[0], a.ip[1], a.ip[2], a.ip[3], a.port)
	default:
		return "unknown"
	}
}

func (a Address) sockaddr() (unix.Sockaddr, error) {
	switch a.family {
	case FamilyLocal:
		return &unix.SockaddrUnix{Name: a.path}, nil
	case FamilyInet:
		return &unix.SockaddrInet4{Port: a.port, Addr: a.ip}, nil
	default:
		return nil, ErrInvalidAddress
	}
}

func (f Family) domain() (int, error) {
	switch f {
	case FamilyLocal:
		return unix.AF_UNIX, nil
	case FamilyInet:
		return unix.AF_INET, nil
	default:
		return 0, ErrFamilyMismatch
	}
}

func peerString(sa unix.Sockaddr) string {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("inet:%d.%d.%d.%d:%d", sa.Addr[0], sa.Addr[1], sa.Addr[2], sa.Addr[3], sa.Port)
	case *unix.SockaddrUnix:
		if sa.Name != "" {
			return "local:" + sa.Name
		}
	}
	return ""
}
