// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dataplane

import (
	"encoding/binary"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/errors"
)

// ParseKey extracts the connection tuple from a raw IP packet as it
// arrives from the queue (no link layer). Non-TCP/UDP packets are not
// queued by the ruleset, so they report an error here.
func ParseKey(payload []byte) (classify.ConnKey, error) {
	if len(payload) == 0 {
		return classify.ConnKey{}, errors.New(errors.KindValidation, "empty packet payload")
	}

	var first gopacket.LayerType
	switch payload[0] >> 4 {
	case 4:
		first = layers.LayerTypeIPv4
	case 6:
		first = layers.LayerTypeIPv6
	default:
		return classify.ConnKey{}, errors.Errorf(errors.KindValidation, "unknown IP version nibble %d", payload[0]>>4)
	}

	packet := gopacket.NewPacket(payload, first, gopacket.NoCopy)

	var key classify.ConnKey
	if ip4 := packet.Layer(layers.LayerTypeIPv4); ip4 != nil {
		ip := ip4.(*layers.IPv4)
		key.SrcIP, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		key.DstIP, _ = netip.AddrFromSlice(ip.DstIP.To4())
	} else if ip6 := packet.Layer(layers.LayerTypeIPv6); ip6 != nil {
		ip := ip6.(*layers.IPv6)
		key.SrcIP, _ = netip.AddrFromSlice(ip.SrcIP)
		key.DstIP, _ = netip.AddrFromSlice(ip.DstIP)
	} else {
		return classify.ConnKey{}, errors.New(errors.KindValidation, "packet has no IP layer")
	}

	if tcp := packet.Layer(layers.LayerTypeTCP); tcp != nil {
		t := tcp.(*layers.TCP)
		key.Proto = 6
		key.SrcPort = uint16(t.SrcPort)
		key.DstPort = uint16(t.DstPort)
	} else if udp := packet.Layer(layers.LayerTypeUDP); udp != nil {
		u := udp.(*layers.UDP)
		key.Proto = 17
		key.SrcPort = uint16(u.SrcPort)
		key.DstPort = uint16(u.DstPort)
	} else {
		return classify.ConnKey{}, errors.New(errors.KindValidation, "packet has no TCP/UDP layer")
	}

	return key, nil
}

// StampDSCP rewrites the DSCP field of a raw IP packet in place and
// fixes the IPv4 header checksum incrementally. The payload is modified
// only when the codepoint actually changes; the return value reports
// whether bytes were touched.
func StampDSCP(payload []byte, dscp classify.DSCP) bool {
	if len(payload) == 0 {
		return false
	}
	switch payload[0] >> 4 {
	case 4:
		return stampIPv4(payload, dscp)
	case 6:
		return stampIPv6(payload, dscp)
	}
	return false
}

func stampIPv4(b []byte, dscp classify.DSCP) bool {
	if len(b) < 20 {
		return false
	}
	old := b[1]
	// keep the two ECN bits
	newTOS := byte(dscp)<<2 | old&0x03
	if newTOS == old {
		return false
	}
	b[1] = newTOS

	// RFC 1624 incremental checksum update over the changed 16-bit word
	// (version/IHL byte + TOS byte).
	oldWord := uint16(b[0])<<8 | uint16(old)
	newWord := uint16(b[0])<<8 | uint16(newTOS)
	sum := binary.BigEndian.Uint16(b[10:12])
	csum := uint32(^sum) + uint32(^oldWord) + uint32(newWord)
	for csum>>16 != 0 {
		csum = csum&0xffff + csum>>16
	}
	binary.BigEndian.PutUint16(b[10:12], ^uint16(csum))
	return true
}

func stampIPv6(b []byte, dscp classify.DSCP) bool {
	if len(b) < 40 {
		return false
	}
	// traffic class straddles bytes 0 and 1
	tc := (b[0]&0x0f)<<4 | b[1]>>4
	newTC := byte(dscp)<<2 | tc&0x03
	if newTC == tc {
		return false
	}
	b[0] = (b[0] & 0xf0) | newTC>>4
	b[1] = (b[1] & 0x0f) | newTC<<4
	return true
}
