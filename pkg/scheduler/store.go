package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/autocode-ai/autocode/pkg/models"
)

const lockTimeout = 10 * time.Second

// Store persists project state as JSON at a fixed path. Writes go through a
// temp-file rename so a crash mid-write cannot corrupt the file, and mutations
// hold an advisory file lock so concurrent harness processes cannot clobber
// each other's updates.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a store for the state file at path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Load reads the current state. A missing file yields a zero state, the
// signal that the project has not been initialized yet.
func (s *Store) Load() (*models.ProjectState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &models.ProjectState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var st models.ProjectState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	return &st, nil
}

// Update applies fn to the current state under the file lock and persists the
// result. fn returning an error abandons the update.
func (s *Store) Update(fn func(*models.ProjectState) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock state: %w", err)
	}
	if !locked {
		return fmt.Errorf("timeout waiting for state lock %s", s.lock.Path())
	}
	defer s.lock.Unlock()

	st, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.write(st)
}

// write persists st via a temp file and atomic rename.
func (s *Store) write(st *models.ProjectState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
