// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

// Restorer replays a cached classification onto packets. It is a read-only
// consumer of the mark: it never touches the settable or fixed bits, and
// it runs on both the egress and ingress paths, because classification
// itself only ever happens where the engine has full context.
type Restorer struct {
	// Wash replaces the cached tin with CS0 on the restore path. Used to
	// neutralize classification for debugging without touching the marks.
	Wash bool
}

// Restore returns the codepoint to stamp onto the packet and whether to
// stamp at all. Unclassified connections flow untouched.
func (r Restorer) Restore(m ConnMark) (DSCP, bool) {
	if !m.Settable {
		return 0, false
	}
	if r.Wash {
		return CS0, true
	}
	return m.Tin, true
}
