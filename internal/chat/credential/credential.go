// Package credential persists the signed-in identity of the chat client.
package credential

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Credential struct {
	Token     string `yaml:"token"`
	UserID    string `yaml:"user_id"`
	Email     string `yaml:"email"`
	Name      string `yaml:"name,omitempty"`
	Role      string `yaml:"role"`
	BaseURL   string `yaml:"base_url,omitempty"`
	ExpiresAt int64  `yaml:"expires_at,omitempty"`
}

func (c Credential) Valid() bool {
	return c.Token != ""
}

// Store reads and writes one credential file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath is ~/.config/support-chat/credentials.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "support-chat", "credentials.yaml")
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the stored credential. A missing file yields a zero
// Credential and no error.
func (s *Store) Load() (Credential, error) {
	var c Credential
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, errors.Wrap(err, "read credentials")
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Credential{}, errors.Wrapf(err, "parse %s", s.path)
	}
	return c, nil
}

func (s *Store) Save(c Credential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create credentials dir")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrap(err, "write credentials")
	}
	return nil
}

func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove credentials")
	}
	return nil
}
