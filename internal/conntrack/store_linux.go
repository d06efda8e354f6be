// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package conntrack

import (
	"os"
	"strings"

	"github.com/ti-mo/conntrack"

	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// Store is the real mark store, backed by ctnetlink.
type Store struct {
	conn   *conntrack.Conn
	logger *logging.Logger
}

// NewStore opens a ctnetlink connection and ensures per-flow byte
// accounting is enabled, which the demotion threshold depends on.
func NewStore(logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	c, err := conntrack.Dial(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "conntrack dial failed")
	}
	s := &Store{conn: c, logger: logging.WithComponent(logger, "conntrack")}
	s.ensureAccounting()
	return s, nil
}

// ensureAccounting turns on nf_conntrack_acct. Without it the byte
// counters stay zero and demotion never fires.
func (s *Store) ensureAccounting() {
	const path = "/proc/sys/net/netfilter/nf_conntrack_acct"
	if data, err := os.ReadFile(path); err == nil && strings.TrimSpace(string(data)) == "1" {
		return
	}
	if err := os.WriteFile(path, []byte("1\n"), 0o644); err != nil {
		s.logger.Warn("could not enable conntrack accounting; demotion will not trigger", "error", err)
	}
}

// Close releases the netlink socket.
func (s *Store) Close() error {
	return s.conn.Close()
}

func tupleFor(key classify.ConnKey) conntrack.Tuple {
	return conntrack.Tuple{
		IP: conntrack.IPTuple{
			SourceAddress:      key.SrcIP,
			DestinationAddress: key.DstIP,
		},
		Proto: conntrack.ProtoTuple{
			Protocol:        key.Proto,
			SourcePort:      key.SrcPort,
			DestinationPort: key.DstPort,
		},
	}
}

func keyFor(t conntrack.Tuple) classify.ConnKey {
	return classify.ConnKey{
		Proto:   t.Proto.Protocol,
		SrcIP:   t.IP.SourceAddress,
		DstIP:   t.IP.DestinationAddress,
		SrcPort: t.Proto.SourcePort,
		DstPort: t.Proto.DestinationPort,
	}
}

func (s *Store) get(key classify.ConnKey) (conntrack.Flow, error) {
	f, err := s.conn.Get(conntrack.Flow{TupleOrig: tupleFor(key)})
	if err == nil {
		return f, nil
	}
	// The queried tuple may be the reply direction of a tracked
	// connection; retry with the reversed orientation.
	f, rerr := s.conn.Get(conntrack.Flow{TupleOrig: tupleFor(key.Reverse())})
	if rerr == nil {
		return f, nil
	}
	return conntrack.Flow{}, errors.Wrapf(err, errors.KindNotFound, "no conntrack entry for %s", key)
}

// Lookup implements classify.MarkStore.
func (s *Store) Lookup(key classify.ConnKey) (classify.Entry, error) {
	f, err := s.get(key)
	if err != nil {
		return classify.Entry{}, err
	}
	return classify.Entry{
		Orig: keyFor(f.TupleOrig),
		Mark: f.Mark,
		Counters: classify.ConnCounters{
			OrigPackets:  f.CountersOrig.Packets,
			OrigBytes:    f.CountersOrig.Bytes,
			ReplyPackets: f.CountersReply.Packets,
			ReplyBytes:   f.CountersReply.Bytes,
		},
	}, nil
}

// CompareAndSet implements classify.MarkStore. ctnetlink offers no native
// compare-and-set, so this is a read-test-write against the full 32-bit
// mark word. The window between read and write is benign for this
// system's transitions: racing writers compute identical values
// (classification is deterministic) or idempotent ones (demotion), and
// the kernel serializes each whole-word mark write.
func (s *Store) CompareAndSet(key classify.ConnKey, old, new uint32) (bool, error) {
	f, err := s.get(key)
	if err != nil {
		return false, err
	}
	if f.Mark != old {
		return false, nil
	}

	update := conntrack.Flow{
		TupleOrig: f.TupleOrig,
		Timeout:   f.Timeout,
		Mark:      new,
	}
	if err := s.conn.Update(update); err != nil {
		return false, errors.Wrapf(err, errors.KindUnavailable, "mark update for %s", key)
	}
	return true, nil
}

// Flows implements FlowLister by dumping the conntrack table.
func (s *Store) Flows() ([]FlowInfo, error) {
	flows, err := s.conn.Dump(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "conntrack dump failed")
	}
	out := make([]FlowInfo, 0, len(flows))
	for _, f := range flows {
		out = append(out, flowInfo(keyFor(f.TupleOrig), f.Mark, classify.ConnCounters{
			OrigPackets:  f.CountersOrig.Packets,
			OrigBytes:    f.CountersOrig.Bytes,
			ReplyPackets: f.CountersReply.Packets,
			ReplyBytes:   f.CountersReply.Bytes,
		}))
	}
	return out, nil
}
