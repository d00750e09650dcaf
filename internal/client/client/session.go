package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/filex"
)

// SessionStore keeps the session token between invocations.
type SessionStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileSessionStore keeps the token in a file readable only by the owner.
type FileSessionStore struct {
	path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Load returns "" when no session has been saved.
func (s *FileSessionStore) Load() (string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read session: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *FileSessionStore) Save(token string) error {
	if err := filex.WritePrivateFile(s.path, []byte(token)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// MemorySessionStore keeps the token in memory only.
type MemorySessionStore struct {
	token string
}

func (s *MemorySessionStore) Load() (string, error) { return s.token, nil }
func (s *MemorySessionStore) Save(token string) error {
	s.token = token
	return nil
}
func (s *MemorySessionStore) Clear() error {
	s.token = ""
	return nil
}
