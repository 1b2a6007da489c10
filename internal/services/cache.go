package services

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Snapshot is the locally cached session state read once at startup to
// decide whether to resume straight into result/chat or start the flow
// fresh.
type Snapshot struct {
	Phone   string          `json:"phone"`
	Profile *Profile        `json:"profile,omitempty"`
	Result  *TypologyResult `json:"result,omitempty"`
	Theme   string          `json:"theme,omitempty"`
}

// Cache persists the snapshot as a JSON file. Writes are synchronous: a
// session must resume correctly even when every remote write failed.
type Cache struct {
	mu   sync.Mutex
	path string
}

func NewCache(path string) *Cache { return &Cache{path: path} }

// Load returns the cached snapshot, or nil when none has been written yet.
func (c *Cache) Load() (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Cache) Save(s *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}
