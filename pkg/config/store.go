package config

import (
	"strconv"
	"strings"
	"sync"
)

// Keys read by the transport.
const (
	KeyFrontendAddress      = "/DefaultSocketFrontEndAddress"
	KeyIMEngineAddress      = "/DefaultSocketIMEngineAddress"
	KeyConfigAddress        = "/DefaultSocketConfigAddress"
	KeyPanelAddress         = "/DefaultPanelSocketAddress"
	KeyHelperManagerAddress = "/DefaultHelperManagerSocketAddress"
	KeySocketTimeout        = "/DefaultSocketTimeout"
)

// Store is a read-only view of configuration values.
type Store interface {
	// String returns the value of key, or def when the key is unset.
	String(key, def string) string

	// Int returns the value of key parsed as an integer, or def when the
	// key is unset or not a number.
	Int(key string, def int) int
}

// MapStore is an in-memory Store. It is safe for concurrent use.
type MapStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMapStore creates a store holding a copy of values.
func NewMapStore(values map[string]string) *MapStore {
	m := &MapStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[normalizeKey(k)] = v
	}
	return m
}

// Set stores value under key.
func (m *MapStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[normalizeKey(key)] = value
}

// String implements Store.
func (m *MapStore) String(key, def string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[normalizeKey(key)]; ok {
		return v
	}
	return def
}

// Int implements Store.
func (m *MapStore) Int(key string, def int) int {
	return parseInt(m.String(key, ""), def)
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// normalizeKey makes every key absolute.
func normalizeKey(key string) string {
	if !strings.HasPrefix(key, "/") {
		return "/" + key
	}
	return key
}

// Compile-time interface satisfaction checks.
var (
	_ Store = (*MapStore)(nil)
	_ Store = (*FileStore)(nil)
)
