// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dataplane moves packets between the kernel's NFQUEUE targets
// and the classification engine. Two queues are serviced: egress packets
// get classified and stamped, ingress packets only get stamped from the
// cached connection mark.
package dataplane

import (
	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/shaper"
)

// VerdictType represents the type of verdict for a packet.
type VerdictType int

const (
	// VerdictAccept accepts the packet unmodified.
	VerdictAccept VerdictType = iota
	// VerdictAcceptStamped accepts the packet with its DSCP field
	// rewritten to the decided codepoint.
	VerdictAcceptStamped
)

// Verdict is the outcome of handling one queued packet.
type Verdict struct {
	Type VerdictType
	DSCP classify.DSCP // only used when Type is VerdictAcceptStamped
	// Mark is the skb mark to set, zero for none. Only egress packets
	// are marked: the mark steers them into their tin class on the
	// egress qdisc, and ingress has no local qdisc to steer into.
	Mark uint32
}

// Direction identifies which queue a packet arrived on.
type Direction int

const (
	Egress Direction = iota
	Ingress
)

func (d Direction) String() string {
	if d == Ingress {
		return "ingress"
	}
	return "egress"
}

// verdictFor translates an engine decision into a packet verdict.
func verdictFor(d classify.Decision, dir Direction) Verdict {
	if !d.Stamp {
		return Verdict{Type: VerdictAccept}
	}
	v := Verdict{Type: VerdictAcceptStamped, DSCP: d.DSCP}
	if dir == Egress {
		v.Mark = shaper.MarkForTin(d.DSCP.Tin())
	}
	return v
}
