package socket

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		spec   string
		user   string
		family Family
		path   string
		port   int
		ip     string
	}{
		{"local:/tmp/x", "alice", FamilyLocal, "/tmp/x-alice", 0, ""},
		{"unix:/tmp/scim-panel-socket:0", "bob", FamilyLocal, "/tmp/scim-panel-socket:0-bob", 0, ""},
		{"file:/run/s", "", FamilyLocal, "/run/s", 0, ""},
		{"inet:localhost:9999", "alice", FamilyInet, "", 9999, "127.0.0.1"},
		{"tcp:any:8080", "", FamilyInet, "", 8080, "0.0.0.0"},
		{"inet:loopback:1", "", FamilyInet, "", 1, "127.0.0.1"},
		{"tcp:10.1.2.3:65535", "", FamilyInet, "", 65535, "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			addr, err := ParseAddressForUser(tt.spec, tt.user)
			require.NoError(t, err)
			assert.True(t, addr.Valid())
			assert.Equal(t, tt.family, addr.Family())
			assert.Equal(t, tt.spec, addr.Spec())
			assert.Equal(t, tt.path, addr.Path())
			assert.Equal(t, tt.port, addr.Port())
			if tt.ip != "" {
				assert.Equal(t, tt.ip, addr.IP().String())
			} else {
				assert.Nil(t, addr.IP())
			}
		})
	}
}

func TestParseAddressRejects(t *testing.T) {
	specs := []string{
		"",
		"local",
		"/tmp/no-scheme",
		"local:",
		"ftp:host:21",
		"tcp:host",
		"inet:loopback:",
		"inet:loopback:99999",
		"inet:loopback:port",
		"inet:::1:80",
		"inet:::1",
		"local:/" + strings.Repeat("x", 120),
	}
	for _, spec := range specs {
		t.Run(spec, func(t *testing.T) {
			addr, err := ParseAddressForUser(spec, "u")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAddress), "got %v", err)
			assert.False(t, addr.Valid())
		})
	}
}

func TestParseAddressUsesCurrentUser(t *testing.T) {
	addr, err := ParseAddress("local:/tmp/scim-test")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/scim-test-"+CurrentUser(), addr.Path())
	assert.Equal(t, "local:/tmp/scim-test-"+CurrentUser(), addr.String())
}

func TestAddressString(t *testing.T) {
	addr, err := ParseAddressForUser("tcp:any:80", "")
	require.NoError(t, err)
	assert.Equal(t, "inet:0.0.0.0:80", addr.String())
	assert.Equal(t, "unknown", Address{}.String())
	assert.Equal(t, "local", FamilyLocal.String())
	assert.Equal(t, "unknown", FamilyUnknown.String())
}

func TestMustParseAddressPanics(t *testing.T) {
	assert.Panics(t, func() { MustParseAddress("nope") })
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrAddressInUse))
	assert.True(t, IsFatal(ErrNotSocketFile))
	assert.False(t, IsFatal(ErrTimeout))
	assert.False(t, IsFatal(nil))
}
