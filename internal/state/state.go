// Package state persists the most recently pushed notebook so pull --last
// can resolve it in a later invocation. The record is a single JSON file;
// every successful push overwrites it whole. Writes are atomic (temp file
// plus rename) so the record is never torn, but there is no cross-process
// locking: two concurrent pushes race and the last writer wins.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoLastPush reports that no push has ever been recorded.
var ErrNoLastPush = errors.New("no previous push recorded")

// LastPush is the record of the most recent successful push.
type LastPush struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

// Store reads and writes the last-push record. It is injected into the
// CLI commands; tests use MemStore.
type Store interface {
	Read() (*LastPush, error)
	Write(*LastPush) error
}

// FileStore is the on-disk Store used by the CLI.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Read loads the record. Returns ErrNoLastPush when the file does not
// exist.
func (s *FileStore) Read() (*LastPush, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLastPush
		}
		return nil, fmt.Errorf("failed to read last-push record: %w", err)
	}

	var lp LastPush
	if err := json.Unmarshal(data, &lp); err != nil {
		return nil, fmt.Errorf("corrupt last-push record: %w", err)
	}
	return &lp, nil
}

// Write atomically overwrites the record.
func (s *FileStore) Write(lp *LastPush) error {
	data, err := json.Marshal(lp)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".last_push-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	Record *LastPush
}

// Read returns the held record or ErrNoLastPush.
func (s *MemStore) Read() (*LastPush, error) {
	if s.Record == nil {
		return nil, ErrNoLastPush
	}
	return s.Record, nil
}

// Write replaces the held record.
func (s *MemStore) Write(lp *LastPush) error {
	s.Record = lp
	return nil
}
