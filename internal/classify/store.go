// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"fmt"
	"net/netip"
)

// ConnKey identifies a tracked connection by its original-direction tuple.
type ConnKey struct {
	Proto   uint8
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
}

func (k ConnKey) String() string {
	return fmt.Sprintf("proto=%d %s:%d -> %s:%d", k.Proto, k.SrcIP, k.SrcPort, k.DstIP, k.DstPort)
}

// Reverse returns the reply-direction tuple.
func (k ConnKey) Reverse() ConnKey {
	return ConnKey{
		Proto:   k.Proto,
		SrcIP:   k.DstIP,
		DstIP:   k.SrcIP,
		SrcPort: k.DstPort,
		DstPort: k.SrcPort,
	}
}

// ConnCounters are the per-direction cumulative byte/packet counts
// maintained by the connection tracker. Read-only for this package.
type ConnCounters struct {
	OrigPackets  uint64
	OrigBytes    uint64
	ReplyPackets uint64
	ReplyBytes   uint64
}

// Entry is a mark store lookup result. Orig is the connection's canonical
// original-direction tuple, which may be the reverse of the queried key
// when the observation came from the reply path.
type Entry struct {
	Orig     ConnKey
	Mark     uint32
	Counters ConnCounters
}

// MarkStore is the port onto the connection tracker's mark word and byte
// counters. The real backend is conntrack; tests use an in-memory store.
//
// CompareAndSet over the full 32-bit word is the serialization point for
// all mark mutations: concurrent packets race through it and losers
// re-read instead of overwriting.
type MarkStore interface {
	// Lookup finds the tracked connection for key, matching either
	// orientation of the tuple. Returns errors.KindNotFound (wrapped)
	// when the connection is not tracked.
	Lookup(key ConnKey) (Entry, error)

	// CompareAndSet atomically replaces the mark word if it still equals
	// old. Returns false without error when the mark changed underneath.
	CompareAndSet(key ConnKey, old, new uint32) (bool, error)
}
