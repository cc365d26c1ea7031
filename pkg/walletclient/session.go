package walletclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoSession is returned when no session has been saved
var ErrNoSession = errors.New("not logged in")

// Session of a signed-in user, passed explicitly to every call that needs one
type Session struct {
	User  Account `json:"user"`
	Token string  `json:"token"`
}

// SaveSession writes s to path, readable by the owner only
func SaveSession(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("session dir: %w", err)
	}

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("session write: %w", err)
	}

	return nil
}

// LoadSession reads the session saved at path, ErrNoSession if there is none
func LoadSession(path string) (*Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("session read: %w", err)
	}

	s := &Session{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	if s.User.ID == "" {
		return nil, ErrNoSession
	}

	return s, nil
}

// ClearSession removes the saved session
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session remove: %w", err)
	}
	return nil
}
