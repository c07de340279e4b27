package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMapStore(t *testing.T) {
	m := NewMapStore(map[string]string{
		"DefaultSocketTimeout": "250",
		KeyPanelAddress:        "local:/tmp/p",
		"/DefaultSocketBadInt": "abc",
	})

	assert.Equal(t, 250, m.Int(KeySocketTimeout, 5000))
	assert.Equal(t, "local:/tmp/p", m.String(KeyPanelAddress, ""))
	assert.Equal(t, "fallback", m.String("/Missing", "fallback"))
	assert.Equal(t, 7, m.Int("/DefaultSocketBadInt", 7))

	m.Set(KeySocketTimeout, "-1")
	assert.Equal(t, -1, m.Int(KeySocketTimeout, 5000))

	var zero MapStore
	zero.Set("k", "v")
	assert.Equal(t, "v", zero.String("/k", ""))
}

func TestFileStoreFlattens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
DefaultSocketTimeout: 3000
/DefaultSocketFrontEndAddress: inet:loopback:8000
Panel:
  Gtk:
    Font: Sans 12
    Colors: [red, green]
Empty:
`)

	fs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, fs.Path())

	assert.Equal(t, 3000, fs.Int(KeySocketTimeout, 0))
	assert.Equal(t, "inet:loopback:8000", fs.String(KeyFrontendAddress, ""))
	assert.Equal(t, "Sans 12", fs.String("/Panel/Gtk/Font", ""))
	assert.Equal(t, "red,green", fs.String("/Panel/Gtk/Colors", ""))
	assert.Equal(t, "", fs.String("/Empty", "x"))
	assert.Equal(t, []string{
		"/DefaultSocketFrontEndAddress",
		"/DefaultSocketTimeout",
		"/Empty",
		"/Panel/Gtk/Colors",
		"/Panel/Gtk/Font",
	}, fs.Keys())
}

func TestFileStoreErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeConfig(t, bad, "- just\n- a list\n")
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestFileStoreReloadKeepsValuesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "DefaultSocketTimeout: 10\n")
	fs, err := Load(path)
	require.NoError(t, err)

	var calls atomic.Int32
	fs.OnChange(func() { calls.Add(1) })

	writeConfig(t, path, ": : :\n\t- broken")
	assert.Error(t, fs.Reload())
	assert.Equal(t, 10, fs.Int(KeySocketTimeout, 0))
	assert.Equal(t, int32(0), calls.Load())

	writeConfig(t, path, "DefaultSocketTimeout: 20\n")
	require.NoError(t, fs.Reload())
	assert.Equal(t, 20, fs.Int(KeySocketTimeout, 0))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFileStoreWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "DefaultSocketTimeout: 1\n")
	fs, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fs.Watch(ctx, nil) }()

	// Give the watcher time to register before changing the file.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "DefaultSocketTimeout: 2\n")

	assert.Eventually(t, func() bool {
		return fs.Int(KeySocketTimeout, 0) == 2
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
