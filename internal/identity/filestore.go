package identity

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

// FileStore persists the signed-in identity as a JSON file so separate
// CLI invocations share a session.
type FileStore struct {
	Path string
}

var _ Source = (*FileStore)(nil)

// DefaultPath returns the session file under the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".visatrack", "session.json"), nil
}

func (f *FileStore) Current(ctx context.Context) (Identity, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, ErrNotAuthenticated
		}
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return Identity{}, ErrNotAuthenticated
	}
	if id.UserID == "" {
		return Identity{}, ErrNotAuthenticated
	}
	return id, nil
}

// Save writes the identity, creating the parent directory if needed.
func (f *FileStore) Save(id Identity) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, raw, 0o600)
}

// Clear removes the stored session. A missing file is not an error.
func (f *FileStore) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
