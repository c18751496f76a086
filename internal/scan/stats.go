package scan

import (
	"sort"
	"sync"
	"time"
)

// Stats counts scan outcomes. It is safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	Files   int
	Parsed  int
	Failed  int
	Bytes   int64
	ByKind  map[string]int
	Elapsed time.Duration
}

func newStats() *Stats {
	return &Stats{ByKind: make(map[string]int)}
}

func (s *Stats) add(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files++
	s.Bytes += int64(r.Size)
	if r.Err == nil {
		s.Parsed++
		return
	}
	s.Failed++
	s.ByKind[r.Kind()]++
}

// KindCount is one row of Stats.Kinds.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Kinds returns failure counts ordered by count, then kind.
func (s *Stats) Kinds() []KindCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]KindCount, 0, len(s.ByKind))
	for k, n := range s.ByKind {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
