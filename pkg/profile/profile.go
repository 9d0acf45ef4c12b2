// Package profile implements the Profile Store: named snapshots of
// enablement flags, scenery overrides, and launch arguments, persisted as a
// single JSON document at <config>/profiles.json.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"xaddonmgr/pkg/model"
)

// Store owns the profile collection for one installation. Many concurrent
// readers, exclusive writer during Save.
type Store struct {
	mu   sync.RWMutex
	doc  model.ProfileDocument
	path string
}

// Load reads <config>/profiles.json. A missing file yields an empty
// collection; a corrupt file is an error because the editor must be able to
// surface it before any write happens.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}
	return s, nil
}

// Save persists the collection.
func (s *Store) Save() error {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// Profiles returns a copy of the stored profiles.
func (s *Store) Profiles() []model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Profile, len(s.doc.Profiles))
	copy(out, s.doc.Profiles)
	return out
}

// Get returns the named profile.
func (s *Store) Get(name string) (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.doc.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return model.Profile{}, false
}

// Active returns the name of the active profile, if any.
func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ActiveProfile
}

// Put inserts or replaces a profile by name.
func (s *Store) Put(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.doc.Profiles {
		if existing.Name == p.Name {
			s.doc.Profiles[i] = p
			return
		}
	}
	s.doc.Profiles = append(s.doc.Profiles, p)
}

// Delete removes a profile by name; deleting the active profile clears the
// active marker.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.doc.Profiles {
		if p.Name == name {
			s.doc.Profiles = append(s.doc.Profiles[:i], s.doc.Profiles[i+1:]...)
			if s.doc.ActiveProfile == name {
				s.doc.ActiveProfile = ""
			}
			return true
		}
	}
	return false
}

// SetActive marks the named profile active. The Manager drives the
// application order: scenery_states, then overrides, then re-sort, then
// manifest write.
func (s *Store) SetActive(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.doc.Profiles {
		if p.Name == name {
			s.doc.ActiveProfile = name
			return nil
		}
	}
	return fmt.Errorf("profile %q does not exist", name)
}
