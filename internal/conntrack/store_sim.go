// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conntrack

import (
	"sort"
	"sync"

	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/errors"
)

// SimStore is a stateful in-memory mark store. It stands in for the
// kernel's conntrack table in simulation mode and in tests, with the same
// whole-word compare-and-set semantics the real store provides.
type SimStore struct {
	mu    sync.Mutex
	conns map[classify.ConnKey]*simConn
}

type simConn struct {
	mark     uint32
	counters classify.ConnCounters
}

// NewSimStore creates an empty simulated conntrack table.
func NewSimStore() *SimStore {
	return &SimStore{conns: make(map[classify.ConnKey]*simConn)}
}

// Track registers a connection by its original-direction tuple, as the
// kernel would on the first packet. Tracking twice is a no-op.
func (s *SimStore) Track(orig classify.ConnKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[orig]; !ok {
		s.conns[orig] = &simConn{}
	}
}

// Expire removes a connection, as the kernel would on timeout.
func (s *SimStore) Expire(orig classify.ConnKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, orig)
}

// AddBytes advances the per-direction counters for a tracked connection.
// reply selects which direction the observed bytes belong to.
func (s *SimStore) AddBytes(key classify.ConnKey, n uint64, reply bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, c, ok := s.resolve(key)
	if !ok {
		return
	}
	if reply {
		c.counters.ReplyBytes += n
		c.counters.ReplyPackets++
	} else {
		c.counters.OrigBytes += n
		c.counters.OrigPackets++
	}
}

// resolve finds a connection by either tuple orientation.
// Caller must hold mu.
func (s *SimStore) resolve(key classify.ConnKey) (classify.ConnKey, *simConn, bool) {
	if c, ok := s.conns[key]; ok {
		return key, c, true
	}
	if c, ok := s.conns[key.Reverse()]; ok {
		return key.Reverse(), c, true
	}
	return classify.ConnKey{}, nil, false
}

// Lookup implements classify.MarkStore.
func (s *SimStore) Lookup(key classify.ConnKey) (classify.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orig, c, ok := s.resolve(key)
	if !ok {
		return classify.Entry{}, errors.Errorf(errors.KindNotFound, "no conntrack entry for %s", key)
	}
	return classify.Entry{Orig: orig, Mark: c.mark, Counters: c.counters}, nil
}

// CompareAndSet implements classify.MarkStore.
func (s *SimStore) CompareAndSet(key classify.ConnKey, old, new uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, c, ok := s.resolve(key)
	if !ok {
		return false, errors.Errorf(errors.KindNotFound, "no conntrack entry for %s", key)
	}
	if c.mark != old {
		return false, nil
	}
	c.mark = new
	return true, nil
}

// Flows implements FlowLister. Output is sorted for stable API responses.
func (s *SimStore) Flows() ([]FlowInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FlowInfo, 0, len(s.conns))
	for orig, c := range s.conns {
		out = append(out, flowInfo(orig, c.mark, c.counters))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SrcIP != out[j].SrcIP {
			return out[i].SrcIP < out[j].SrcIP
		}
		return out[i].SrcPort < out[j].SrcPort
	})
	return out, nil
}
