package images

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Store writes image bytes into the shared public directory under
// ULID-derived filenames and hands back the stable relative path the
// read side serves them from.
type Store struct {
	dir    string
	prefix string
}

// NewStore ensures the target directory exists.
func NewStore(dir, publicPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure image dir: %w", err)
	}
	return &Store{dir: dir, prefix: publicPrefix}, nil
}

// Save persists data under a fresh ULID name and returns its public path,
// e.g. "/images/01HX....jpg".
func (s *Store) Save(data []byte, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	name := ulid.Make().String() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	return path.Join(s.prefix, name), nil
}
