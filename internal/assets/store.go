package assets

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
)

// DefaultExtension is used when a client filename carries no usable
// extension. Stored assets always have one so the static file server
// can derive a content type.
const DefaultExtension = "bin"

// Store is a content-addressed file store. An asset's on-disk name is
// a pure function of its bytes ({fingerprint}.{ext}), so identical
// content always lands on the same path and files are write-once:
// once a name exists the content behind it never changes.
type Store struct {
	root   string
	logger zerolog.Logger
}

// NewStore creates the asset root if needed and returns a store
// rooted there.
func NewStore(root string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create asset root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the directory assets are stored under.
func (s *Store) Root() string {
	return s.root
}

// Fingerprint returns the hex BLAKE3 digest of data. This is the
// identity used for content addressing.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeExtension lowercases ext, strips a leading dot, and falls
// back to DefaultExtension when nothing usable remains.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// Exists reports whether an asset with the given stored filename is
// present. It is a pure probe with no side effects, and a present
// file is by construction complete: partial writes never become
// visible under their final name.
func (s *Store) Exists(filename string) bool {
	// Reject anything that could escape the asset root; stored names
	// are always {hex}.{ext} so a separator means a forged name.
	if filename == "" || filename != filepath.Base(filename) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.root, filename))
	return err == nil
}

// Put stores data under its content-derived name and returns that
// name. Re-putting identical content is a no-op: the existing file is
// left untouched and the same name is returned.
//
// The write goes to a temp file in the asset root and is renamed into
// place, so concurrent writers racing on the same content either
// observe the finished file and skip the write, or both rename
// byte-identical files over each other. Either way exactly one
// complete file remains and no reader ever sees a partial one.
func (s *Store) Put(data []byte, ext string) (string, error) {
	filename := Fingerprint(data) + "." + NormalizeExtension(ext)
	target := filepath.Join(s.root, filename)

	if _, err := os.Stat(target); err == nil {
		s.logger.Debug().Str("asset", filename).Msg("asset already stored")
		return filename, nil
	}

	tmp, err := os.CreateTemp(s.root, "."+filename+".*")
	if err != nil {
		return "", fmt.Errorf("create temp asset: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write asset %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp asset: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish asset %s: %w", filename, err)
	}

	s.logger.Info().Str("asset", filename).Int("size_bytes", len(data)).Msg("asset stored")
	return filename, nil
}
