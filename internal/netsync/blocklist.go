package netsync

import (
	"strings"
	"sync"
	"sync/atomic"
)

// sharedSet is the locally cached shared blocklist. Flow handlers read it
// on every request while the receive loop inserts; readers take a lock-free
// snapshot and writers swap in a copy, so a read never observes a partially
// inserted entry. The set is monotonic: domains are added, never removed.
type sharedSet struct {
	mu  sync.Mutex
	val atomic.Value
}

func newSharedSet() *sharedSet {
	s := &sharedSet{}
	s.val.Store(make(map[string]struct{}))
	return s
}

func (s *sharedSet) snapshot() map[string]struct{} {
	return s.val.Load().(map[string]struct{})
}

func (s *sharedSet) add(domain string) {
	if domain == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snapshot()
	if _, ok := current[domain]; ok {
		return
	}

	next := make(map[string]struct{}, len(current)+1)
	for d := range current {
		next[d] = struct{}{}
	}
	next[domain] = struct{}{}
	s.val.Store(next)
}

func (s *sharedSet) merge(domains []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snapshot()
	next := make(map[string]struct{}, len(current)+len(domains))
	for d := range current {
		next[d] = struct{}{}
	}

	added := 0
	for _, d := range domains {
		if d == "" {
			continue
		}
		if _, ok := next[d]; !ok {
			added++
		}
		next[d] = struct{}{}
	}
	s.val.Store(next)
	return added
}

func (s *sharedSet) len() int {
	return len(s.snapshot())
}

// contains walks the label suffixes of domain, so a stored tracker domain
// also covers its subdomains but never its parents.
func (s *sharedSet) contains(domain string) bool {
	set := s.snapshot()
	if len(set) == 0 {
		return false
	}

	labels := strings.Split(domain, ".")
	for i := range labels {
		candidate := strings.Join(labels[i:], ".")
		if _, ok := set[candidate]; ok {
			return true
		}
	}
	return false
}
