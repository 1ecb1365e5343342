package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore keeps the token in a YAML file readable only by the owner.
type FileStore struct {
	path string
	now  func() time.Time
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Load(_ context.Context) (Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("read token file %s: %w", s.path, err)
	}

	var t Token
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Token{}, fmt.Errorf("unmarshal token file %s: %w", s.path, err)
	}
	if !t.ValidAt(s.now()) {
		return t, ErrTokenExpired
	}
	return t, nil
}

func (s *FileStore) Save(_ context.Context, t Token) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file %s: %w", s.path, err)
	}
	return nil
}
