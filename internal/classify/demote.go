// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

// Demote applies the one-shot demotion transition: a still-default
// (best effort) connection drops to bulk, any other tin keeps its fixed
// classification, and in every case the mark is permanently locked.
// Safe to apply twice; the second application changes nothing.
func Demote(m ConnMark) ConnMark {
	if m.Tin == CS0 {
		m.Tin = CS1
	}
	m.Fixed = true
	return m
}
