// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

// The classifier owns the low byte of the 32-bit conntrack mark:
//
//	+--------- bits 31..8 ---------+--- 7 ---+---- 6 ----+-- 5..0 --+
//	|    other subsystems          |  fixed  | settable  |   tin    |
//	+------------------------------+---------+-----------+----------+
//
// tin holds the 6-bit DSCP codepoint, directly usable as `ct mark & 0x3f`
// in nftables expressions. Bits outside the low byte belong to routing and
// policy marks and are never touched.
const (
	// MarkTinMask covers the 6-bit tin field.
	MarkTinMask uint32 = 0x0000003f
	// MarkSettableBit is set once the fixed classifier has assigned a tin.
	MarkSettableBit uint32 = 0x00000040
	// MarkFixedBit is set once the classification is permanently locked.
	MarkFixedBit uint32 = 0x00000080
	// MarkRegionMask covers the whole reserved region.
	MarkRegionMask uint32 = 0x000000ff
)

// ConnMark is the decoded per-connection classification state.
// Invariant: Fixed implies Settable. Tin is meaningful only when Settable.
type ConnMark struct {
	Tin      DSCP
	Settable bool
	Fixed    bool
}

// State is the explicit classification state machine position.
type State int

const (
	StateUnclassified State = iota // settable=false, fixed=false
	StateProvisional               // settable=true, fixed=false
	StateLocked                    // settable=true, fixed=true
)

func (s State) String() string {
	switch s {
	case StateProvisional:
		return "provisional"
	case StateLocked:
		return "locked"
	default:
		return "unclassified"
	}
}

// DecodeMark extracts the classification state from a raw conntrack mark.
// No validation: the field is self-consistent by construction, so whatever
// bits are present are returned as-is.
func DecodeMark(raw uint32) ConnMark {
	return ConnMark{
		Tin:      DSCP(raw & MarkTinMask),
		Settable: raw&MarkSettableBit != 0,
		Fixed:    raw&MarkFixedBit != 0,
	}
}

// Encode writes the classification state into the reserved region of raw,
// preserving every bit outside it.
func (m ConnMark) Encode(raw uint32) uint32 {
	out := raw &^ MarkRegionMask
	out |= uint32(m.Tin) & MarkTinMask
	if m.Settable {
		out |= MarkSettableBit
	}
	if m.Fixed {
		out |= MarkFixedBit
	}
	return out
}

// State returns the state machine position encoded by the mark.
func (m ConnMark) State() State {
	switch {
	case m.Settable && m.Fixed:
		return StateLocked
	case m.Settable:
		return StateProvisional
	default:
		return StateUnclassified
	}
}
