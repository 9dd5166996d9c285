package token

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Klingon-tech/orbital-wallet/pkg/crypto"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// IconStore keeps token icons as files named <ref>.<ext>.
type IconStore struct {
	dir string
}

// NewIconStore creates an icon store rooted at dir.
func NewIconStore(dir string) *IconStore {
	return &IconStore{dir: dir}
}

// Path returns the file path of a token icon.
func (s *IconStore) Path(ref types.Ref, ext string) string {
	return filepath.Join(s.dir, ref.String()+"."+ext)
}

// Put writes an icon. An existing file with the same content digest is
// left alone.
func (s *IconStore) Put(ref types.Ref, ext string, data []byte) error {
	path := s.Path(ref, ext)
	if existing, err := os.ReadFile(path); err == nil && crypto.Digest(existing) == crypto.Digest(data) {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create icon dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write icon: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename icon: %w", err)
	}
	return nil
}

// Get reads an icon.
func (s *IconStore) Get(ref types.Ref, ext string) ([]byte, error) {
	return os.ReadFile(s.Path(ref, ext))
}
