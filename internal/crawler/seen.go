// Package crawler drives a harvest run: it owns the seen-set, walks the
// index through the walker, hands each new entity to the extraction chain,
// and streams the resulting records into the inventory sink.
package crawler

import "github.com/doc-harvest/harvest/pkg/models"

// SeenSet is the run's dedup state: entity ids already processed (this run
// or a resumed earlier one) and fingerprints of index pages already
// walked. It also serves the walker as its loop-detection store.
//
// Not safe for concurrent use; the controller is single-threaded through
// the shared browser tab.
type SeenSet struct {
	entities     map[models.EntityID]struct{}
	fingerprints map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{
		entities:     make(map[models.EntityID]struct{}),
		fingerprints: make(map[string]struct{}),
	}
}

// Seed preloads entity ids from a previous run's inventory. Fingerprints
// are never seeded: pagination state does not survive across runs.
func (s *SeenSet) Seed(ids map[models.EntityID]struct{}) {
	for id := range ids {
		s.entities[id] = struct{}{}
	}
}

func (s *SeenSet) HasEntity(id models.EntityID) bool {
	_, ok := s.entities[id]
	return ok
}

func (s *SeenSet) MarkEntity(id models.EntityID) {
	s.entities[id] = struct{}{}
}

// Entities returns the number of entity ids marked.
func (s *SeenSet) Entities() int { return len(s.entities) }

func (s *SeenSet) HasFingerprint(fp string) bool {
	_, ok := s.fingerprints[fp]
	return ok
}

func (s *SeenSet) AddFingerprint(fp string) {
	s.fingerprints[fp] = struct{}{}
}
