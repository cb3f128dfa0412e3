// Package tokens provides persistent per-user storage of Spotify OAuth tokens.
package tokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const usersDirName = "users"

// UserToken is a stored OAuth token together with the owning user's identity.
type UserToken struct {
	oauth2.Token

	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Scope       string    `json:"scope"`
	LastUpdated time.Time `json:"last_updated"`
}

// Store persists one JSON token file per user under a data directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at <dataDir>/users.
func NewStore(dataDir string) *Store {
	return &Store{dir: filepath.Join(dataDir, usersDirName)}
}

// Dir returns the directory holding the token files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// Load reads a user's stored token from disk.
// Returns (nil, nil) if no token file exists for the user.
func (s *Store) Load(userID string) (*UserToken, error) {
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var token UserToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}

	return &token, nil
}

// Save writes the user's token to disk, creating the directory if needed.
func (s *Store) Save(token *UserToken) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}
	if token.UserID == "" {
		return errors.New("cannot save token without user id")
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	token.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	if err := os.WriteFile(s.path(token.UserID), data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	return nil
}

// List returns the stored tokens of all users, sorted by user id.
func (s *Store) List() ([]*UserToken, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token directory: %w", err)
	}

	var tokens []*UserToken
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		userID := strings.TrimSuffix(entry.Name(), ".json")
		token, err := s.Load(userID)
		if err != nil {
			return nil, err
		}
		if token != nil {
			tokens = append(tokens, token)
		}
	}

	sort.Slice(tokens, func(i, j int) bool { return tokens[i].UserID < tokens[j].UserID })
	return tokens, nil
}

// Delete removes a user's token file.
// Returns nil if the file does not exist.
func (s *Store) Delete(userID string) error {
	err := os.Remove(s.path(userID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
