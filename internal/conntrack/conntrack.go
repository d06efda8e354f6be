// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package conntrack adapts the kernel's connection tracker to the
// classifier's mark store port. On Linux it speaks ctnetlink via
// github.com/ti-mo/conntrack; everywhere else a stub refuses to start.
// An in-memory simulation store backs tests and sim mode.
package conntrack

import (
	"grimm.is/tinmark/internal/classify"
)

// FlowInfo is a read-only view of one tracked, classified connection,
// exposed through the API.
type FlowInfo struct {
	Proto      uint8  `json:"proto"`
	SrcIP      string `json:"src_ip"`
	DstIP      string `json:"dst_ip"`
	SrcPort    uint16 `json:"src_port"`
	DstPort    uint16 `json:"dst_port"`
	Mark       uint32 `json:"mark"`
	State      string `json:"state"`
	DSCP       string `json:"dscp,omitempty"`
	Tin        string `json:"tin,omitempty"`
	OrigBytes  uint64 `json:"orig_bytes"`
	ReplyBytes uint64 `json:"reply_bytes"`
}

// FlowLister enumerates tracked flows for the API layer.
type FlowLister interface {
	Flows() ([]FlowInfo, error)
}

func flowInfo(orig classify.ConnKey, mark uint32, c classify.ConnCounters) FlowInfo {
	info := FlowInfo{
		Proto:      orig.Proto,
		SrcIP:      orig.SrcIP.String(),
		DstIP:      orig.DstIP.String(),
		SrcPort:    orig.SrcPort,
		DstPort:    orig.DstPort,
		Mark:       mark,
		OrigBytes:  c.OrigBytes,
		ReplyBytes: c.ReplyBytes,
	}
	m := classify.DecodeMark(mark)
	info.State = m.State().String()
	if m.Settable {
		info.DSCP = m.Tin.String()
		info.Tin = m.Tin.Tin().String()
	}
	return info
}
