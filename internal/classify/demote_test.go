// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import "testing"

func TestDemoteBestEffortToBulk(t *testing.T) {
	m := Demote(ConnMark{Tin: CS0, Settable: true})
	if m.Tin != CS1 {
		t.Errorf("Tin = %s, want cs1", m.Tin)
	}
	if !m.Fixed {
		t.Error("demotion must lock the mark")
	}
}

func TestDemoteKeepsNonDefaultTin(t *testing.T) {
	// A connection already classified to a higher tin keeps it, but the
	// classification still locks.
	m := Demote(ConnMark{Tin: AF41, Settable: true})
	if m.Tin != AF41 {
		t.Errorf("Tin = %s, want af41", m.Tin)
	}
	if !m.Fixed {
		t.Error("demotion must lock the mark")
	}
}

func TestDemoteIdempotent(t *testing.T) {
	once := Demote(ConnMark{Tin: CS0, Settable: true})
	twice := Demote(once)
	if once != twice {
		t.Errorf("double demotion changed the mark: %+v vs %+v", once, twice)
	}
}
