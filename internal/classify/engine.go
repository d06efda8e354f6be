// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"net/netip"

	"grimm.is/tinmark/internal/errors"
	"grimm.is/tinmark/internal/logging"
)

// EventSink receives classification events for accounting. All methods are
// called on the packet path and must not block.
type EventSink interface {
	ConnClassified(tin DSCP)
	ConnDemoted(from, to DSCP)
	PacketRestored(tin DSCP)
	StoreMiss()
}

type noopSink struct{}

func (noopSink) ConnClassified(DSCP)   {}
func (noopSink) ConnDemoted(DSCP, DSCP) {}
func (noopSink) PacketRestored(DSCP)   {}
func (noopSink) StoreMiss()            {}

// Decision is the engine's per-packet output: whether to stamp a codepoint
// onto the packet, and the connection's mark word after any transition.
type Decision struct {
	Stamp bool
	DSCP  DSCP
	Mark  uint32
	State State
}

// Engine drives the per-connection state machine:
//
//	UNCLASSIFIED -> PROVISIONAL  (first egress packet, fixed classifier)
//	PROVISIONAL  -> LOCKED       (byte threshold exceeded, demotion policy)
//
// Mutations are serialized through the store's compare-and-set; a losing
// racer re-reads and proceeds with the winner's mark. LOCKED is terminal.
type Engine struct {
	rules      *RuleSet
	thresholds Thresholds
	store      MarkStore
	restorer   Restorer
	localNets  []netip.Prefix
	logger     *logging.Logger
	sink       EventSink
}

// NewEngine wires the classification components together. sink may be nil.
func NewEngine(rules *RuleSet, th Thresholds, store MarkStore, restorer Restorer,
	localNets []netip.Prefix, logger *logging.Logger, sink EventSink) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	if sink == nil {
		sink = noopSink{}
	}
	return &Engine{
		rules:      rules,
		thresholds: th,
		store:      store,
		restorer:   restorer,
		localNets:  localNets,
		logger:     logging.WithComponent(logger, "classify"),
		sink:       sink,
	}
}

// HandleEgress processes a packet on the path where the engine has full
// context: it may classify a new connection, evaluate the demotion
// threshold, and always restores the cached tin onto the packet.
func (e *Engine) HandleEgress(key ConnKey) Decision {
	entry, err := e.store.Lookup(key)
	if err != nil {
		return e.miss(key, err)
	}

	raw := entry.Mark
	mark := DecodeMark(raw)

	switch mark.State() {
	case StateUnclassified:
		tin := e.rules.Classify(entry.Orig)
		next := ConnMark{Tin: tin, Settable: true}
		var won bool
		raw, won = e.commit(key, entry.Mark, next.Encode(entry.Mark))
		if won {
			e.sink.ConnClassified(tin)
		}

	case StateProvisional:
		if e.thresholds.Exceeded(entry.Counters, e.localOrigin(entry.Orig)) {
			demoted := Demote(mark)
			var won bool
			raw, won = e.commit(key, entry.Mark, demoted.Encode(entry.Mark))
			if won {
				e.sink.ConnDemoted(mark.Tin, demoted.Tin)
				e.logger.Debug("connection demoted",
					"conn", entry.Orig.String(),
					"from", mark.Tin.String(), "to", demoted.Tin.String())
			}
		}

	case StateLocked:
		// Terminal: nothing left to decide.
	}

	return e.restore(raw)
}

// HandleIngress processes a packet on the opposing path, which never
// classifies: it only replays the cached decision. A missing conntrack
// entry means the packet flows with no classification, never an error.
func (e *Engine) HandleIngress(key ConnKey) Decision {
	entry, err := e.store.Lookup(key)
	if err != nil {
		return e.miss(key, err)
	}
	return e.restore(entry.Mark)
}

// commit attempts the atomic mark transition. On a lost race the current
// mark is re-read and wins: classification is deterministic and demotion
// is idempotent, so the other racer's result is equally valid.
func (e *Engine) commit(key ConnKey, old, new uint32) (uint32, bool) {
	ok, err := e.store.CompareAndSet(key, old, new)
	if err != nil {
		e.logger.Warn("mark update failed", "conn", key.String(), "error", err)
		return old, false
	}
	if ok {
		return new, true
	}
	entry, err := e.store.Lookup(key)
	if err != nil {
		return old, false
	}
	return entry.Mark, false
}

func (e *Engine) restore(raw uint32) Decision {
	d := Decision{Mark: raw, State: DecodeMark(raw).State()}
	if dscp, ok := e.restorer.Restore(DecodeMark(raw)); ok {
		d.Stamp = true
		d.DSCP = dscp
		e.sink.PacketRestored(dscp)
	}
	return d
}

func (e *Engine) miss(key ConnKey, err error) Decision {
	if errors.GetKind(err) == errors.KindNotFound {
		e.sink.StoreMiss()
	} else {
		e.logger.Warn("mark store lookup failed", "conn", key.String(), "error", err)
	}
	return Decision{}
}

// localOrigin reports whether the connection was initiated from inside the
// local subnets. With no subnets configured the classifier assumes it sits
// on the local side, which holds for the single-router deployment.
func (e *Engine) localOrigin(orig ConnKey) bool {
	if len(e.localNets) == 0 {
		return true
	}
	for _, p := range e.localNets {
		if p.Contains(orig.SrcIP) {
			return true
		}
	}
	return false
}
