package storage

import (
	"context"
	"sync"
)

// memoryStore keeps the most recent runs in a bounded in-process buffer.
type memoryStore struct {
	mu   sync.Mutex
	runs []RunEntry
	keep int
}

func openMemory(cfg Config) Store {
	keep := cfg.Keep
	if keep <= 0 {
		keep = defaultKeep
	}
	return &memoryStore{keep: keep}
}

func (s *memoryStore) AppendRun(_ context.Context, e RunEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, e)
	if len(s.runs) > s.keep {
		s.runs = s.runs[len(s.runs)-s.keep:]
	}
	return nil
}

func (s *memoryStore) RecentRuns(_ context.Context, job string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunEntry, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if job != "" && s.runs[i].Job != job {
			continue
		}
		out = append(out, s.runs[i])
	}
	return out, nil
}

func (s *memoryStore) Close() error { return nil }
