package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lastSearchFile = "last_search.json"
)

// LastSearchState records the most recent CLI search so a follow-up
// select can reference its session without retyping the id.
type LastSearchState struct {
	// SessionID is the session the search ran under.
	SessionID string `json:"session_id"`

	// Quality is the embedding quality preset the search used.
	Quality string `json:"quality"`

	// Results is how many results the search returned.
	Results int `json:"results"`

	// SearchedAt is when the search completed.
	SearchedAt time.Time `json:"searched_at"`
}

// LoadLastSearch loads the state from a target .imagesearch/last_search.json.
// Returns nil, nil if no state exists.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadLastSearch(overrideDir string) (*LastSearchState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, lastSearchFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last search state: %w", err)
	}

	state := &LastSearchState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing last search state: %w", err)
	}

	return state, nil
}

// SaveLastSearch persists the state to a target .imagesearch/last_search.json.
func (m *Manager) SaveLastSearch(state *LastSearchState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil last search state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last search state: %w", err)
	}

	path := filepath.Join(dir, lastSearchFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing last search state: %w", err)
	}

	return nil
}

// ClearLastSearch removes the state file.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearLastSearch(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, lastSearchFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing last search state: %w", err)
	}

	return nil
}
