// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/tinmark/internal/errors"
)

// fakeStore is a minimal in-process mark store for engine tests.
type fakeStore struct {
	mu      sync.Mutex
	marks   map[ConnKey]uint32
	counter map[ConnKey]ConnCounters
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		marks:   make(map[ConnKey]uint32),
		counter: make(map[ConnKey]ConnCounters),
	}
}

func (s *fakeStore) track(orig ConnKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[orig] = 0
}

func (s *fakeStore) setCounters(orig ConnKey, c ConnCounters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter[orig] = c
}

func (s *fakeStore) resolve(key ConnKey) (ConnKey, bool) {
	if _, ok := s.marks[key]; ok {
		return key, true
	}
	if _, ok := s.marks[key.Reverse()]; ok {
		return key.Reverse(), true
	}
	return ConnKey{}, false
}

func (s *fakeStore) Lookup(key ConnKey) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orig, ok := s.resolve(key)
	if !ok {
		return Entry{}, errors.Errorf(errors.KindNotFound, "no conntrack entry for %s", key)
	}
	return Entry{Orig: orig, Mark: s.marks[orig], Counters: s.counter[orig]}, nil
}

func (s *fakeStore) CompareAndSet(key ConnKey, old, new uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orig, ok := s.resolve(key)
	if !ok {
		return false, errors.Errorf(errors.KindNotFound, "no conntrack entry for %s", key)
	}
	if s.marks[orig] != old {
		return false, nil
	}
	s.marks[orig] = new
	return true, nil
}

// countingSink counts classification events.
type countingSink struct {
	mu         sync.Mutex
	classified int
	demoted    int
	restored   int
	misses     int
}

func (c *countingSink) ConnClassified(DSCP) {
	c.mu.Lock()
	c.classified++
	c.mu.Unlock()
}
func (c *countingSink) ConnDemoted(DSCP, DSCP) {
	c.mu.Lock()
	c.demoted++
	c.mu.Unlock()
}
func (c *countingSink) PacketRestored(DSCP) {
	c.mu.Lock()
	c.restored++
	c.mu.Unlock()
}
func (c *countingSink) StoreMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func mustRules(t *testing.T, rules []Rule) *RuleSet {
	t.Helper()
	rs, err := CompileRules(rules)
	require.NoError(t, err)
	return rs
}

var lan = []netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")}

func TestEngineBulkDemotionScenario(t *testing.T) {
	// 10000 kbit/s upload, 30 s duration: threshold 37,500,000 bytes.
	store := newFakeStore()
	sink := &countingSink{}
	eng := NewEngine(mustRules(t, nil), NewThresholds(10000, 10000, 30, 30),
		store, Restorer{}, lan, nil, sink)

	conn := key(6, "192.168.1.10", 41000, "203.0.113.7", 443)
	store.track(conn)

	// First egress packet: no rule matches, provisional best effort.
	d := eng.HandleEgress(conn)
	require.Equal(t, StateProvisional, d.State)
	require.True(t, d.Stamp)
	require.Equal(t, CS0, d.DSCP)
	require.Equal(t, 1, sink.classified)

	// Below threshold: still provisional.
	store.setCounters(conn, ConnCounters{OrigBytes: 30_000_000})
	d = eng.HandleEgress(conn)
	require.Equal(t, StateProvisional, d.State)
	require.Equal(t, 0, sink.demoted)

	// Threshold crossed: demoted to bulk and locked.
	store.setCounters(conn, ConnCounters{OrigBytes: 40_000_000})
	d = eng.HandleEgress(conn)
	require.Equal(t, StateLocked, d.State)
	require.Equal(t, CS1, d.DSCP)
	require.Equal(t, 1, sink.demoted)

	// All subsequent packets, both directions, stamped CS1 forever.
	d = eng.HandleEgress(conn)
	require.Equal(t, CS1, d.DSCP)
	d = eng.HandleIngress(conn.Reverse())
	require.True(t, d.Stamp)
	require.Equal(t, CS1, d.DSCP)
	require.Equal(t, 1, sink.demoted, "locked connection must not re-demote")
}

func TestEngineFixedRuleSurvivesThreshold(t *testing.T) {
	// ssh is pinned to the voice tin; crossing the byte threshold locks
	// the mark but keeps the tin.
	store := newFakeStore()
	eng := NewEngine(
		mustRules(t, []Rule{{Name: "ssh", Ports: []int{22}, Protocol: "tcp", DSCP: "ef"}}),
		NewThresholds(10000, 10000, 30, 30), store, Restorer{}, lan, nil, nil)

	conn := key(6, "192.168.1.10", 50123, "203.0.113.7", 22)
	store.track(conn)

	d := eng.HandleEgress(conn)
	require.Equal(t, EF, d.DSCP)
	require.Equal(t, StateProvisional, d.State)

	store.setCounters(conn, ConnCounters{OrigBytes: 400_000_000})
	d = eng.HandleEgress(conn)
	require.Equal(t, StateLocked, d.State)
	require.Equal(t, EF, d.DSCP, "non-default tin survives demotion")
}

func TestEngineOneShotClassification(t *testing.T) {
	// Many first packets racing: exactly one classification is applied.
	store := newFakeStore()
	sink := &countingSink{}
	eng := NewEngine(mustRules(t, nil), NewThresholds(10000, 10000, 30, 30),
		store, Restorer{}, lan, nil, sink)

	conn := key(17, "192.168.1.20", 30000, "203.0.113.9", 53)
	store.track(conn)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng.HandleEgress(conn)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, sink.classified, "classification must apply exactly once")

	entry, err := store.Lookup(conn)
	require.NoError(t, err)
	require.Equal(t, StateProvisional, DecodeMark(entry.Mark).State())
}

func TestEngineConcurrentDemotionIsSingle(t *testing.T) {
	store := newFakeStore()
	sink := &countingSink{}
	eng := NewEngine(mustRules(t, nil), NewThresholds(10000, 10000, 30, 30),
		store, Restorer{}, lan, nil, sink)

	conn := key(6, "192.168.1.30", 45000, "203.0.113.7", 80)
	store.track(conn)
	eng.HandleEgress(conn) // provisional
	store.setCounters(conn, ConnCounters{OrigBytes: 100_000_000})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng.HandleEgress(conn)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, sink.demoted, "demotion must apply exactly once")
}

func TestEngineMonotonicLock(t *testing.T) {
	store := newFakeStore()
	eng := NewEngine(mustRules(t, nil), NewThresholds(10000, 10000, 30, 30),
		store, Restorer{}, lan, nil, nil)

	conn := key(6, "192.168.1.40", 46000, "203.0.113.7", 80)
	store.track(conn)
	eng.HandleEgress(conn)
	store.setCounters(conn, ConnCounters{OrigBytes: 100_000_000})
	eng.HandleEgress(conn)

	entry, err := store.Lookup(conn)
	require.NoError(t, err)
	locked := entry.Mark

	// Any further traffic leaves the mark untouched.
	for i := 0; i < 5; i++ {
		eng.HandleEgress(conn)
		eng.HandleIngress(conn.Reverse())
	}
	entry, err = store.Lookup(conn)
	require.NoError(t, err)
	require.Equal(t, locked, entry.Mark)
}

func TestEngineIngressNeverClassifies(t *testing.T) {
	store := newFakeStore()
	sink := &countingSink{}
	eng := NewEngine(
		mustRules(t, []Rule{{Name: "ssh", Ports: []int{22}, Protocol: "tcp", DSCP: "ef"}}),
		NewThresholds(10000, 10000, 30, 30), store, Restorer{}, lan, nil, sink)

	conn := key(6, "192.168.1.10", 50123, "203.0.113.7", 22)
	store.track(conn)

	// Ingress on an unclassified connection: no stamp, no transition.
	d := eng.HandleIngress(conn.Reverse())
	require.False(t, d.Stamp)
	require.Equal(t, 0, sink.classified)

	entry, err := store.Lookup(conn)
	require.NoError(t, err)
	require.Equal(t, StateUnclassified, DecodeMark(entry.Mark).State())
}

func TestEngineMissingEntryIsRecovered(t *testing.T) {
	store := newFakeStore()
	sink := &countingSink{}
	eng := NewEngine(mustRules(t, nil), NewThresholds(10000, 10000, 30, 30),
		store, Restorer{}, lan, nil, sink)

	// Untracked connection: packet flows unmodified, miss is accounted.
	d := eng.HandleIngress(key(6, "203.0.113.7", 443, "192.168.1.10", 41000))
	require.False(t, d.Stamp)
	require.Equal(t, 1, sink.misses)

	d = eng.HandleEgress(key(6, "192.168.1.10", 41001, "203.0.113.7", 443))
	require.False(t, d.Stamp)
	require.Equal(t, 2, sink.misses)
}

func TestEngineRemoteOriginThreshold(t *testing.T) {
	// Remotely originated connection: original-direction bytes count
	// against the download threshold.
	store := newFakeStore()
	eng := NewEngine(mustRules(t, nil), NewThresholds(50000, 10000, 30, 30),
		store, Restorer{}, lan, nil, nil)

	conn := key(6, "203.0.113.7", 51000, "192.168.1.10", 8080)
	store.track(conn)
	eng.HandleEgress(conn)

	// Download threshold is 37.5MB. Orig bytes flow toward the local
	// endpoint here, so they compare against the download limit.
	store.setCounters(conn, ConnCounters{OrigBytes: 38_000_000})
	d := eng.HandleEgress(conn)
	require.Equal(t, StateLocked, d.State)
	require.Equal(t, CS1, d.DSCP)
}
