// Package seen persists the set of lot identifiers already recorded in
// previous runs.
package seen

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

// Store is a durable, monotonically growing set of normalized lot URLs.
// Load once at the start of a run, AddMany/Save once after the join; the
// engine never mutates it concurrently.
type Store struct {
	path   string
	logger *zap.Logger
	set    map[string]struct{}
}

// legacyFile is the older persisted shape, an object wrapping the list.
type legacyFile struct {
	Seen []string `json:"seen"`
}

// NewStore creates a Store bound to path. Call Load before use.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger,
		set:    make(map[string]struct{}),
	}
}

// Load reads the persisted set. A missing, unreadable or structurally
// invalid file degrades to an empty set; corruption is never fatal because
// the worst outcome is re-extracting lots the sink already dedupes.
func (s *Store) Load() {
	s.set = make(map[string]struct{})

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("seen store unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		var legacy legacyFile
		if err := json.Unmarshal(data, &legacy); err != nil || legacy.Seen == nil {
			s.logger.Warn("seen store malformed, starting empty",
				zap.String("path", s.path))
			return
		}
		urls = legacy.Seen
	}

	for _, u := range urls {
		if u != "" {
			s.set[u] = struct{}{}
		}
	}
}

// Contains reports whether the identifier was recorded by a prior run.
func (s *Store) Contains(id string) bool {
	_, ok := s.set[id]
	return ok
}

// AddMany unions identifiers into the in-memory set. Empty strings are
// ignored.
func (s *Store) AddMany(ids []string) {
	for _, id := range ids {
		if id != "" {
			s.set[id] = struct{}{}
		}
	}
}

// Len returns the current set size.
func (s *Store) Len() int {
	return len(s.set)
}

// Save writes the full set back as a sorted JSON array. The write goes to
// a temp file first and is moved into place with an atomic rename, so a
// crash mid-write never corrupts the previous valid file.
func (s *Store) Save() error {
	urls := make([]string, 0, len(s.set))
	for u := range s.set {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	data, err := json.MarshalIndent(urls, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seen set: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write seen temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace seen file: %w", err)
	}
	return nil
}
