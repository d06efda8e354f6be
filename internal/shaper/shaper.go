// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package shaper installs the egress HTB hierarchy that gives each tin
// its bandwidth share. Packets are steered into tin classes by fwmark
// filters; the mark is set per-packet by the queue readers.
package shaper

import "grimm.is/tinmark/internal/classify"

// Config describes the shaping applied to the WAN interface.
type Config struct {
	Interface  string
	UploadKbit int
}

// tinClass is one HTB leaf in the hierarchy.
type tinClass struct {
	Tin classify.Tin
	// Minor is the class handle minor id (1:Minor).
	Minor uint16
	// Prio orders borrowing of spare bandwidth, lower wins.
	Prio uint32
	// GuaranteePct of the shaped rate this tin is guaranteed under
	// contention. All tins may borrow up to the full rate.
	GuaranteePct int
}

// tinClasses is ordered by minor id. Guarantees sum below 100% so the
// root class always has headroom.
var tinClasses = []tinClass{
	{Tin: classify.TinBulk, Minor: 10, Prio: 7, GuaranteePct: 5},
	{Tin: classify.TinBestEffort, Minor: 11, Prio: 4, GuaranteePct: 40},
	{Tin: classify.TinVideo, Minor: 12, Prio: 2, GuaranteePct: 25},
	{Tin: classify.TinVoice, Minor: 13, Prio: 1, GuaranteePct: 25},
}

// defaultMinor is where unmarked traffic lands.
const defaultMinor = 11

// MarkForTin returns the skb mark that steers a packet into a tin's
// class. Zero is never returned: an unmarked packet falls through to
// the best-effort default class.
func MarkForTin(t classify.Tin) uint32 {
	return uint32(t) + 1
}

// rateBytes converts kbit/s to the bytes/s netlink expects.
func rateBytes(kbit int) uint64 {
	return uint64(kbit) * 1000 / 8
}

// guarantee computes a tin's guaranteed rate, with a floor of 1 kbyte/s
// so HTB never sees a zero rate.
func guarantee(totalKbit, pct int) uint64 {
	r := rateBytes(totalKbit) * uint64(pct) / 100
	if r < 1000 {
		r = 1000
	}
	return r
}

// TinStats is a readback of one tin class's counters.
type TinStats struct {
	Tin     string `json:"tin"`
	Bytes   uint64 `json:"bytes"`
	Packets uint64 `json:"packets"`
	Drops   uint64 `json:"drops"`
}
