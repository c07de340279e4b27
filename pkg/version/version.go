// Package version provides the IPC binary version string exchanged in the
// connection handshake, with parsing and comparison helpers.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Binary is the protocol binary version implemented by this library. Peers
// must present exactly this string when opening a connection.
const Binary = "1.4.0"

// BinaryVersion represents a parsed "major.minor.micro" version.
type BinaryVersion struct {
	Major uint16
	Minor uint16
	Micro uint16
}

// Parse parses a "major.minor.micro" version string.
func Parse(s string) (BinaryVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return BinaryVersion{}, fmt.Errorf("invalid version %q: expected major.minor.micro", s)
	}

	var nums [3]uint16
	for i, name := range []string{"major", "minor", "micro"} {
		n, err := strconv.ParseUint(parts[i], 10, 16)
		if err != nil || parts[i] == "" {
			return BinaryVersion{}, fmt.Errorf("invalid version %q: bad %s component", s, name)
		}
		nums[i] = uint16(n)
	}

	return BinaryVersion{Major: nums[0], Minor: nums[1], Micro: nums[2]}, nil
}

// Current returns the parsed Binary version.
func Current() BinaryVersion {
	v, err := Parse(Binary)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor.micro".
func (v BinaryVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal
// to or after other.
func (v BinaryVersion) Compare(other BinaryVersion) int {
	a := [3]uint16{v.Major, v.Minor, v.Micro}
	b := [3]uint16{other.Major, other.Minor, other.Micro}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// Compatible returns true if other has the same major and minor version.
// The handshake itself still insists on an exact string match; this is
// used for diagnostics.
func (v BinaryVersion) Compatible(other BinaryVersion) bool {
	return v.Major == other.Major && v.Minor == other.Minor
}
