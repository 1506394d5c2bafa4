package auth

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Fixed storage keys. Tokens and the user profile live under separate keys
// in the same document so a single atomic write covers both.
const (
	tokenStorageKey = "auth_tokens"
	userStorageKey  = "auth_user"
)

// Store is the sole mutation gateway for persisted credentials. Nothing
// else in the system writes tokens directly.
//
// Load and LoadUser never fail: unreadable or corrupt state is reported as
// absence. Clear never fails either — logout must not hang on a broken
// storage layer, so delete failures are logged and swallowed.
type Store interface {
	// Save overwrites the persisted token pair. A nil user leaves any
	// previously stored profile untouched (tokens-only save, as done by
	// the refresh path when the server returns no profile).
	Save(pair TokenPair, user *User) error
	// Load returns the persisted pair, or a zero pair when nothing usable
	// is stored.
	Load() TokenPair
	// LoadUser returns the persisted profile, or nil when absent.
	LoadUser() *User
	// Clear removes both the token pair and the profile. Idempotent.
	Clear()
}

// FileStore persists credentials as a single JSON document on disk,
// written with a temp-file-plus-rename sequence under a cross-process
// file lock.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Save(pair TokenPair, user *User) error {
	lock, err := acquireFileLock(s.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			s.logger.Warn().Err(releaseErr).Msg("failed to release credential file lock")
		}
	}()

	// Re-read inside the lock so a tokens-only save preserves the profile
	// written by an earlier full save.
	doc := s.readDoc()

	tokens, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	doc[tokenStorageKey] = tokens

	if user != nil {
		profile, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to encode user profile: %w", err)
		}
		doc[userStorageKey] = profile
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: temp file first, then rename over the old document.
	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (s *FileStore) Load() TokenPair {
	doc := s.readDoc()
	raw, ok := doc[tokenStorageKey]
	if !ok {
		return TokenPair{}
	}

	var pair TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		s.logger.Warn().Err(err).Msg("stored token pair is malformed, treating as absent")
		return TokenPair{}
	}
	return pair
}

func (s *FileStore) LoadUser() *User {
	doc := s.readDoc()
	raw, ok := doc[userStorageKey]
	if !ok {
		return nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.logger.Warn().Err(err).Msg("stored user profile is malformed, treating as absent")
		return nil
	}
	return &user
}

func (s *FileStore) Clear() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Msg("failed to clear stored credentials")
	}
}

// readDoc loads the storage document, returning an empty document when the
// file is missing or corrupt.
func (s *FileStore) readDoc() map[string]json.RawMessage {
	doc := make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Msg("failed to read credential file")
		}
		return doc
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn().Err(err).Msg("credential file is malformed, starting fresh")
		return make(map[string]json.RawMessage)
	}
	return doc
}
