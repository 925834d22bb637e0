package manager

import (
	"sync"

	"github.com/google/uuid"
)

// recentWindow bounds the duplicate-check set so it cannot grow without
// limit on a long-lived process.
const recentWindow = 4096

// OrderIDSource issues client order IDs. Exchange rules: 1-40 characters,
// unique per caller, and an ID is never reused even when the original
// submission failed, because its fate at the exchange is unknown.
type OrderIDSource struct {
	mu     sync.Mutex
	prefix string
	recent map[string]struct{}
	order  []string
}

func NewOrderIDSource(prefix string) *OrderIDSource {
	return &OrderIDSource{
		prefix: prefix,
		recent: make(map[string]struct{}, recentWindow),
	}
}

// Next returns a fresh ID: "<prefix>-<uuid>", 39 chars for a 2-char prefix.
func (s *OrderIDSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := s.prefix + "-" + uuid.NewString()
		if _, dup := s.recent[id]; dup {
			continue
		}
		s.remember(id)
		return id
	}
}

func (s *OrderIDSource) remember(id string) {
	if len(s.order) >= recentWindow {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.recent, oldest)
	}
	s.recent[id] = struct{}{}
	s.order = append(s.order, id)
}
