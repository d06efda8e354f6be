// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

// Thresholds are the demotion byte limits, one per shaped direction.
// A connection that moves at least this many bytes has sustained full
// bandwidth for the configured duration, which is the bulk-transfer
// heuristic that triggers demotion.
type Thresholds struct {
	UploadBytes   uint64
	DownloadBytes uint64
}

// NewThresholds derives byte limits from the shaped bandwidth in kbit/s
// and the per-direction durations in seconds:
//
//	bytes = kbit * 1000 * seconds / 8
func NewThresholds(upKbit, downKbit, upSeconds, downSeconds int) Thresholds {
	return Thresholds{
		UploadBytes:   uint64(upKbit) * 1000 * uint64(upSeconds) / 8,
		DownloadBytes: uint64(downKbit) * 1000 * uint64(downSeconds) / 8,
	}
}

// Exceeded reports whether either directional byte counter has reached its
// limit. Which counter compares against which limit depends on where the
// connection originated: for a locally originated connection the original
// direction is upload and the reply direction is download; for a remotely
// originated connection the orientation flips. Both are always checked
// because counter direction is independent of which endpoint is local.
func (t Thresholds) Exceeded(c ConnCounters, localOrigin bool) bool {
	up, down := c.OrigBytes, c.ReplyBytes
	if !localOrigin {
		up, down = c.ReplyBytes, c.OrigBytes
	}
	return up >= t.UploadBytes || down >= t.DownloadBytes
}
