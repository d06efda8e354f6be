// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"testing"
)

func TestMarkRoundTrip(t *testing.T) {
	tins := []DSCP{CS0, CS1, AF41, EF, CS7}
	foreign := []uint32{0x00000000, 0xF0000100, 0xFFFFFF00, 0x0220AB00}

	for _, tin := range tins {
		for _, settable := range []bool{false, true} {
			for _, fixed := range []bool{false, true} {
				if fixed && !settable {
					continue // invariant: fixed implies settable
				}
				m := ConnMark{Tin: tin, Settable: settable, Fixed: fixed}
				for _, other := range foreign {
					raw := m.Encode(other)
					if got := DecodeMark(raw); got != m {
						t.Errorf("decode(encode(%+v, %#x)) = %+v", m, other, got)
					}
					if raw&^MarkRegionMask != other&^MarkRegionMask {
						t.Errorf("encode(%+v, %#x) clobbered foreign bits: %#x", m, other, raw)
					}
				}
			}
		}
	}
}

func TestEncodeReadModifyWrite(t *testing.T) {
	// Encoding over an already-marked word must fully replace the
	// reserved region, not OR into it.
	old := ConnMark{Tin: EF, Settable: true}.Encode(0xF0000000)
	next := ConnMark{Tin: CS1, Settable: true, Fixed: true}.Encode(old)

	got := DecodeMark(next)
	if got.Tin != CS1 || !got.Settable || !got.Fixed {
		t.Errorf("re-encode produced %+v", got)
	}
	if next&0xFFFFFF00 != 0xF0000000 {
		t.Errorf("foreign bits changed: %#x", next)
	}
}

func TestMarkState(t *testing.T) {
	cases := []struct {
		mark ConnMark
		want State
	}{
		{ConnMark{}, StateUnclassified},
		{ConnMark{Tin: CS0, Settable: true}, StateProvisional},
		{ConnMark{Tin: CS1, Settable: true, Fixed: true}, StateLocked},
	}
	for _, c := range cases {
		if got := c.mark.State(); got != c.want {
			t.Errorf("State(%+v) = %v, want %v", c.mark, got, c.want)
		}
	}
}

func TestDecodeGarbageIsTotal(t *testing.T) {
	// Decode has no failure mode: arbitrary input yields the bits present.
	m := DecodeMark(0xFFFFFFFF)
	if m.Tin != DSCP(0x3f) || !m.Settable || !m.Fixed {
		t.Errorf("decode(all-ones) = %+v", m)
	}
}
