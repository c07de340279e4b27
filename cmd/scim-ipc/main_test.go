package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scim-im/scim-ipc/pkg/addressing"
	"github.com/scim-im/scim-ipc/pkg/socket"
	"github.com/scim-im/scim-ipc/pkg/version"
)

func runCLI(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func clearSocketEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		addressing.EnvSocketAddress,
		addressing.EnvFrontendSocketAddress,
		addressing.EnvIMEngineSocketAddress,
		addressing.EnvConfigSocketAddress,
		addressing.EnvPanelSocketAddress,
		addressing.EnvHelperManagerSocketAddress,
		addressing.EnvSocketTimeout,
	} {
		t.Setenv(key, "")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Protocol version: "+version.Binary)

	out, err = runCLI(t, context.Background(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, buildVersion+"\n", out)
}

func TestAddrCommand(t *testing.T) {
	clearSocketEnv(t)
	t.Setenv(addressing.EnvPanelSocketAddress, "inet:127.0.0.1:9000")

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("DefaultSocketIMEngineAddress: local:/run/scim-engine\nDefaultSocketTimeout: 250\n"), 0o600))

	out, err := runCLI(t, context.Background(), "--config", cfg, "--display", ":2.0", "addr")
	require.NoError(t, err)
	assert.Contains(t, out, "frontend")
	assert.Contains(t, out, addressing.DefaultFrontendAddress)
	assert.Contains(t, out, "local:/run/scim-engine")
	assert.Contains(t, out, "inet:127.0.0.1:9002")
	assert.Contains(t, out, "Timeout: 250ms")

	out, err = runCLI(t, context.Background(), "--role", "panel", "--display", ":1", "addr", "--all=false")
	require.NoError(t, err)
	assert.Contains(t, out, "inet:127.0.0.1:9001")
	assert.NotContains(t, out, "frontend")
}

func TestUnknownRole(t *testing.T) {
	_, err := runCLI(t, context.Background(), "--role", "keyboard", "addr", "--all=false")
	assert.Error(t, err)
}

func TestBadLogLevel(t *testing.T) {
	_, err := runCLI(t, context.Background(), "--log-level", "loud", "version")
	assert.Error(t, err)
}

func TestServeSendProbe(t *testing.T) {
	clearSocketEnv(t)
	dir := t.TempDir()
	sock := filepath.Join(dir, "frontend")
	capture := filepath.Join(dir, "serve.scimlog")
	address := "local:" + sock
	parsed, err := socket.ParseAddress(address)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := runCLI(t, ctx, "--address", address, "--log-level", "error",
			"--protocol-log", capture, "serve")
		done <- err
	}()
	require.Eventually(t, func() bool {
		_, err := os.Stat(parsed.Path())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	out, err := runCLI(t, context.Background(), "--address", address, "--log-level", "error",
		"send", "REQUEST", "user:4", "s:ping")
	require.NoError(t, err)
	assert.Contains(t, out, `> REQUEST USER(4) "ping"`)
	assert.Contains(t, out, `< REPLY USER(4) "ping"`)

	out, err = runCLI(t, context.Background(), "--address", address, "--log-level", "error",
		"probe", "--server-type", "SocketFrontEnd")
	require.NoError(t, err)
	assert.Contains(t, out, "Server types: SocketFrontEnd")

	_, err = runCLI(t, context.Background(), "--address", address, "--log-level", "error",
		"probe", "--server-type", "Panel")
	assert.Error(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}

	out, err = runCLI(t, context.Background(), "log", "stats", capture)
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION:")
	assert.Contains(t, out, "Peer: ConnectionTester")

	out, err = runCLI(t, context.Background(), "log", "view", "--layer", "codec", capture)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `REQUEST USER(4) "ping"`), out)
}

func TestProbeWaitsForServer(t *testing.T) {
	clearSocketEnv(t)
	address := "local:" + filepath.Join(t.TempDir(), "late")

	probed := make(chan error, 1)
	var out string
	go func() {
		var err error
		out, err = runCLI(t, context.Background(), "--address", address, "--log-level", "error",
			"probe", "--wait", "5s")
		probed <- err
	}()

	time.Sleep(200 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := runCLI(t, ctx, "--address", address, "--log-level", "error", "serve")
		done <- err
	}()

	select {
	case err := <-probed:
		require.NoError(t, err)
		assert.Contains(t, out, "Server types: SocketFrontEnd")
	case <-time.After(10 * time.Second):
		t.Fatal("probe did not finish")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestProbeWaitGivesUp(t *testing.T) {
	clearSocketEnv(t)
	address := "local:" + filepath.Join(t.TempDir(), "nobody")

	start := time.Now()
	_, err := runCLI(t, context.Background(), "--address", address, "--log-level", "error",
		"probe", "--wait", "300ms")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
