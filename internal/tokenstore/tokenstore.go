// Package tokenstore persists the OAuth credential record across restarts.
//
// The record is written as a small versioned JSON document. Saves are atomic
// (write to a temp file, then rename) so a reader never observes a partial
// write. A missing file loads as an empty record rather than an error; a
// record holding only a refresh token is valid-but-stale and callers must
// refresh before use.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion identifies the on-disk credential record layout
const SchemaVersion = 1

// Record is the persisted credential record
type Record struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	ObtainedAt   time.Time `json:"obtained_at,omitzero"`
}

// HasRefreshToken reports whether the record can be used to obtain access tokens
func (r Record) HasRefreshToken() bool {
	return r.RefreshToken != ""
}

// HasAccessToken reports whether the record carries a (possibly expired) access token
func (r Record) HasAccessToken() bool {
	return r.AccessToken != ""
}

// envelope wraps the record with a schema version on disk
type envelope struct {
	Version int    `json:"version"`
	Data    Record `json:"data"`
}

// Store reads and writes the credential record at a fixed path
type Store struct {
	path string
}

// New creates a store backed by the given file path
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted record. A missing file is not an error and
// returns the zero record. An unreadable or version-mismatched file also
// loads as empty, forcing reauthentication instead of crashing.
func (s *Store) Load() (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("reading token store: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, nil
	}
	if env.Version != SchemaVersion {
		return Record{}, nil
	}

	return env.Data, nil
}

// Save persists the record atomically, overwriting any prior content.
func (s *Store) Save(rec Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating token store directory: %w", err)
	}

	data, err := json.MarshalIndent(envelope{Version: SchemaVersion, Data: rec}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing token record: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting token file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp token file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing token store: %w", err)
	}

	return nil
}

// MergeRefreshToken merges a newly issued refresh token into the persisted
// record, preserving any still-valid access token. This backs the
// reauthentication flow.
func (s *Store) MergeRefreshToken(refreshToken string) error {
	rec, err := s.Load()
	if err != nil {
		return err
	}
	rec.RefreshToken = refreshToken
	return s.Save(rec)
}
