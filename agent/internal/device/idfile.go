package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoID is returned by LoadID when no usable id has been stored yet.
var ErrNoID = errors.New("device id not stored")

// LoadID reads the persisted device id. A missing, empty or malformed file
// yields ErrNoID so the caller registers afresh.
func LoadID(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoID
		}
		return "", err
	}
	id := strings.TrimSpace(string(b))
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrNoID
	}
	return id, nil
}

// SaveID persists id atomically at path.
func SaveID(path, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid device id %q: %w", id, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadToken reads the persisted device token; a missing file yields "".
func LoadToken(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// SaveToken persists tok atomically at path. An empty path is a no-op.
func SaveToken(path, tok string) error {
	if path == "" || tok == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(tok+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
