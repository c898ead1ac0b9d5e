package catalog

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Store holds the immutable set of postings. It is populated exactly once at
// process start and is safe for concurrent reads afterwards.
type Store struct {
	postings []*Posting
	byID     map[string]*Posting
}

// New builds a store from an in-memory posting list, preserving the given
// order. Records failing normalization and duplicate job ids are dropped.
func New(postings []*Posting, logger *zap.Logger) *Store {
	s := &Store{byID: make(map[string]*Posting, len(postings))}

	for _, p := range postings {
		if p == nil || !p.normalize() {
			if logger != nil {
				logger.Warn("dropping malformed posting", zap.Any("posting", p))
			}
			continue
		}
		if _, exists := s.byID[p.JobID]; exists {
			if logger != nil {
				logger.Warn("dropping posting with duplicate id", zap.String("job_id", p.JobID))
			}
			continue
		}
		s.postings = append(s.postings, p)
		s.byID[p.JobID] = p
	}

	return s
}

// Load reads the catalog source file. Any read or parse failure degrades to an
// empty catalog with a warning so the service keeps serving with zero results
// instead of crashing. The file may be YAML or JSON; YAML is a superset of
// JSON so a single decoder covers both.
func Load(path string, logger *zap.Logger) *Store {
	data, err := os.ReadFile(path)
	if err != nil {
		if logger != nil {
			logger.Warn("catalog source unreadable, serving empty catalog",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return New(nil, logger)
	}

	var postings []*Posting
	if err := yaml.Unmarshal(data, &postings); err != nil {
		if logger != nil {
			logger.Warn("catalog source malformed, serving empty catalog",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return New(nil, logger)
	}

	store := New(postings, logger)
	if logger != nil {
		logger.Info("catalog loaded",
			zap.String("path", path),
			zap.Int("postings", store.Len()),
		)
	}

	return store
}

// ByID returns the posting with the given id, or false when absent.
func (s *Store) ByID(id string) (*Posting, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// All returns the postings in catalog order. Callers must not mutate the
// returned slice or the postings it references.
func (s *Store) All() []*Posting {
	return s.postings
}

func (s *Store) Len() int {
	return len(s.postings)
}
