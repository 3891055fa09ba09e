package state

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const fileName = "state.json"

// WriteError reports a failed save. The previous file is left untouched.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write state %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DefaultPath returns <user config dir>/gitgraph/state.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "gitgraph", fileName), nil
}

// FileStore persists a State as a single JSON file.
type FileStore struct {
	Path string
}

// Load returns the default state when the file does not exist yet.
func (s FileStore) Load() (State, Report, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), Report{FromVersion: CurrentSchemaVersion}, nil
	}
	if err != nil {
		return State{}, Report{}, fmt.Errorf("read state: %w", err)
	}
	st, rep, err := Decode(data)
	if err != nil {
		return State{}, Report{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	return st, rep, nil
}

// Save replaces the file atomically: a temporary file in the same
// directory is synced and renamed over the target.
func (s FileStore) Save(st State) error {
	data, err := Encode(st)
	if err != nil {
		return &WriteError{Path: s.Path, Err: err}
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: s.Path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return &WriteError{Path: s.Path, Err: err}
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &WriteError{Path: s.Path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &WriteError{Path: s.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: s.Path, Err: err}
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return &WriteError{Path: s.Path, Err: err}
	}
	success = true
	slog.Debug("state saved", slog.String("path", s.Path), slog.Int("bytes", len(data)))
	return nil
}
