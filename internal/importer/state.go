package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStatePath is where import progress is kept between runs.
const DefaultStatePath = "~/.claudex/import-state.json"

// State makes imports resumable: a file is imported again only when its
// content hash changes.
type State struct {
	StartedAt time.Time         `json:"started_at"`
	LastRunAt time.Time         `json:"last_run_at"`
	Imported  map[string]string `json:"imported"` // path -> sha256 of imported content
	Errors    []string          `json:"errors,omitempty"`

	path string
}

// LoadState reads the state file at path, or starts a fresh one.
func LoadState(path string) (*State, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{StartedAt: time.Now().UTC(), Imported: map[string]string{}, path: p}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.Imported == nil {
		s.Imported = map[string]string{}
	}
	s.path = p
	return &s, nil
}

func (s *State) Save() error {
	s.LastRunAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Seen reports whether path was imported with exactly this content.
func (s *State) Seen(path, hash string) bool {
	return s.Imported[path] == hash
}

func (s *State) Mark(path, hash string) {
	s.Imported[path] = hash
}

func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
