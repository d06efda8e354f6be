// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	stderrors "errors"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindUnknown:     "unknown",
		KindInternal:    "internal",
		KindValidation:  "validation",
		KindNotFound:    "not_found",
		KindUnavailable: "unavailable",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, KindUnavailable, "conntrack lookup failed")

	if err.Error() != "conntrack lookup failed: boom" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !Is(err, base) {
		t.Error("wrapped error should match base via Is")
	}
	if GetKind(err) != KindUnavailable {
		t.Errorf("GetKind = %v, want KindUnavailable", GetKind(err))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, KindInternal, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, KindInternal, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestGetKindForeignError(t *testing.T) {
	if GetKind(stderrors.New("plain")) != KindUnknown {
		t.Error("foreign errors should report KindUnknown")
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(KindValidation, "rule %d: bad port %d", 3, 70000)
	if GetKind(err) != KindValidation {
		t.Errorf("GetKind = %v, want KindValidation", GetKind(err))
	}
	if err.Error() != "rule 3: bad port 70000" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
