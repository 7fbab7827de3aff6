// Package config holds the immutable server configuration assembled
// once at startup. Handlers receive it by reference; nothing mutates
// it after construction.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxUploadBytes is the hard ceiling on a single asset upload
// body unless overridden.
const DefaultMaxUploadBytes = 100 << 20 // 100 MiB

// Config is the process-lifetime server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// BasePath prefixes every route ("" means root).
	BasePath string
	// StorageRoot and VolumeName locate persistent state:
	// {StorageRoot}/{VolumeName}/db.sqlite and .../assets/.
	StorageRoot string
	VolumeName  string
	// ClientDir holds the pre-built client bundle; its index.html is
	// the SPA entry document.
	ClientDir string
	// WorldName and CommitHash are reported on /status.
	WorldName  string
	CommitHash string
	// AdminPassword gates admin features; /status only reports
	// whether it is set, never the value.
	AdminPassword string
	// MirrorStrict propagates mirror failures to upload callers.
	MirrorStrict bool
	// MaxUploadBytes caps a single upload body.
	MaxUploadBytes int64

	// Public is the snapshot served at /env.js.
	Public *PublicSnapshot
}

// VolumeDir returns {StorageRoot}/{VolumeName}.
func (c *Config) VolumeDir() string {
	return filepath.Join(c.StorageRoot, c.VolumeName)
}

// AssetDir returns the asset root under the volume.
func (c *Config) AssetDir() string {
	return filepath.Join(c.VolumeDir(), "assets")
}

// DatabasePath returns the sqlite file the session runtime owns.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.VolumeDir(), "db.sqlite")
}

// Protected reports whether an admin credential is configured.
func (c *Config) Protected() bool {
	return c.AdminPassword != ""
}

// PublicSnapshot is the whitelisted subset of the environment exposed
// to clients. It is frozen at construction: the rendered script bytes
// are computed once and served verbatim for the life of the process.
type PublicSnapshot struct {
	values map[string]string
	script []byte
}

// publicKeyPrefix selects which environment keys are client-visible.
// Only keys carrying this prefix are ever exported; everything else
// stays server-side.
const publicKeyPrefix = "PUBLIC_"

// NewPublicSnapshot captures every PUBLIC_-prefixed variable from
// environ (as returned by os.Environ) plus the given extra pairs, and
// pre-renders the env.js payload.
func NewPublicSnapshot(environ []string, extra map[string]string) *PublicSnapshot {
	values := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, publicKeyPrefix) {
			continue
		}
		values[key] = value
	}
	for key, value := range extra {
		values[key] = value
	}
	return &PublicSnapshot{
		values: values,
		script: renderEnvScript(values),
	}
}

// Get returns the snapshot value for key, or "".
func (p *PublicSnapshot) Get(key string) string {
	return p.values[key]
}

// Script returns the executable configuration artifact served at
// /env.js.
func (p *PublicSnapshot) Script() []byte {
	return p.script
}

func renderEnvScript(values map[string]string) []byte {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("window.WORLDGATE_ENV = {")
	for i, key := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		// json.Marshal for safe JS string literals; keys are
		// identifier-safe env names but quoting both sides keeps the
		// artifact valid regardless.
		k, _ := json.Marshal(key)
		v, _ := json.Marshal(values[key])
		fmt.Fprintf(&b, "%s:%s", k, v)
	}
	b.WriteString("};\n")
	return []byte(b.String())
}
