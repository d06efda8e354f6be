// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package classify implements dual-level connection classification for the
// traffic shaper: a fixed host/port stage at connection start and a
// byte-threshold demotion stage for sustained bulk transfers. The decision
// is cached in a reserved region of the conntrack mark and replayed onto
// every later packet of the connection, in both directions.
package classify

import (
	"fmt"
	"strings"
)

// DSCP is a 6-bit differentiated services codepoint. It is the value
// written into the tin field of the connection mark and stamped onto
// packets; the downstream scheduler maps it to one of four tins.
type DSCP uint8

const (
	CS0  DSCP = 0 // best effort
	LE   DSCP = 1
	CS1  DSCP = 8 // bulk
	AF11 DSCP = 10
	AF12 DSCP = 12
	AF13 DSCP = 14
	CS2  DSCP = 16
	AF21 DSCP = 18
	AF22 DSCP = 20
	AF23 DSCP = 22
	CS3  DSCP = 24
	AF31 DSCP = 26
	AF32 DSCP = 28
	AF33 DSCP = 30
	CS4  DSCP = 32
	AF41 DSCP = 34
	AF42 DSCP = 36
	AF43 DSCP = 38
	CS5  DSCP = 40
	VA   DSCP = 44
	EF   DSCP = 46
	CS6  DSCP = 48
	CS7  DSCP = 56
)

// Tin is one of the four priority classes of the downstream scheduler.
type Tin int

const (
	TinBulk Tin = iota
	TinBestEffort
	TinVideo
	TinVoice
)

func (t Tin) String() string {
	switch t {
	case TinBulk:
		return "bulk"
	case TinBestEffort:
		return "besteffort"
	case TinVideo:
		return "video"
	case TinVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// Tin maps a codepoint to its scheduler tin, following the usual
// four-tin diffserv grouping.
func (d DSCP) Tin() Tin {
	switch d {
	case LE, CS1:
		return TinBulk
	case CS2, AF21, AF22, AF23, CS3, AF31, AF32, AF33, CS4, AF41, AF42, AF43:
		return TinVideo
	case CS5, VA, EF, CS6, CS7:
		return TinVoice
	default:
		return TinBestEffort
	}
}

// dscpNames maps configuration names to codepoints.
var dscpNames = map[string]DSCP{
	"cs0": CS0, "le": LE, "cs1": CS1,
	"af11": AF11, "af12": AF12, "af13": AF13,
	"cs2": CS2, "af21": AF21, "af22": AF22, "af23": AF23,
	"cs3": CS3, "af31": AF31, "af32": AF32, "af33": AF33,
	"cs4": CS4, "af41": AF41, "af42": AF42, "af43": AF43,
	"cs5": CS5, "va": VA, "ef": EF,
	"cs6": CS6, "cs7": CS7,
}

// ParseDSCP resolves a codepoint name like "ef" or "cs4".
func ParseDSCP(name string) (DSCP, error) {
	d, ok := dscpNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown DSCP name: %s", name)
	}
	return d, nil
}

func (d DSCP) String() string {
	for name, v := range dscpNames {
		if v == d {
			return name
		}
	}
	return fmt.Sprintf("dscp(%d)", uint8(d))
}
