// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import "testing"

func TestNewThresholds(t *testing.T) {
	// 10000 kbit/s for 30 s = 10000*1000*30/8 bytes.
	th := NewThresholds(10000, 50000, 30, 30)
	if th.UploadBytes != 37_500_000 {
		t.Errorf("UploadBytes = %d, want 37500000", th.UploadBytes)
	}
	if th.DownloadBytes != 187_500_000 {
		t.Errorf("DownloadBytes = %d, want 187500000", th.DownloadBytes)
	}
}

func TestExceededLocalOrigin(t *testing.T) {
	th := NewThresholds(10000, 50000, 30, 30) // up 37.5MB, down 187.5MB

	// Locally originated: orig counts as upload, reply as download.
	if th.Exceeded(ConnCounters{OrigBytes: 37_499_999}, true) {
		t.Error("below upload threshold should not trigger")
	}
	if !th.Exceeded(ConnCounters{OrigBytes: 37_500_000}, true) {
		t.Error("upload threshold reached should trigger")
	}
	if th.Exceeded(ConnCounters{ReplyBytes: 100_000_000}, true) {
		t.Error("reply bytes below download threshold should not trigger")
	}
	if !th.Exceeded(ConnCounters{ReplyBytes: 187_500_000}, true) {
		t.Error("download threshold reached should trigger")
	}
}

func TestExceededSymmetry(t *testing.T) {
	th := NewThresholds(10000, 50000, 30, 30)

	// A locally originated connection with reply bytes at the download
	// threshold triggers identically to a remotely originated connection
	// with original-direction bytes at the same threshold.
	local := th.Exceeded(ConnCounters{ReplyBytes: 187_500_000}, true)
	remote := th.Exceeded(ConnCounters{OrigBytes: 187_500_000}, false)
	if !local || !remote {
		t.Errorf("threshold symmetry violated: local=%v remote=%v", local, remote)
	}

	// And the upload orientation flips the same way.
	local = th.Exceeded(ConnCounters{OrigBytes: 37_500_000}, true)
	remote = th.Exceeded(ConnCounters{ReplyBytes: 37_500_000}, false)
	if !local || !remote {
		t.Errorf("upload symmetry violated: local=%v remote=%v", local, remote)
	}
}
