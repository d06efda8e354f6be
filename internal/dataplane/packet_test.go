// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dataplane

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/tinmark/internal/classify"
)

func buildIPv4TCP(t *testing.T, src, dst string, sport, dport uint16, tos uint8) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TOS:      tos,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(src),
		DstIP:    net.ParseIP(dst),
	}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport)}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload([]byte("hello"))))
	return buf.Bytes()
}

func buildIPv6UDP(t *testing.T, src, dst string, sport, dport uint16) []byte {
	t.Helper()
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload([]byte("x"))))
	return buf.Bytes()
}

func TestParseKeyIPv4TCP(t *testing.T) {
	pkt := buildIPv4TCP(t, "192.168.1.10", "1.2.3.4", 40000, 443, 0)

	key, err := ParseKey(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), key.Proto)
	assert.Equal(t, "192.168.1.10", key.SrcIP.String())
	assert.Equal(t, "1.2.3.4", key.DstIP.String())
	assert.Equal(t, uint16(40000), key.SrcPort)
	assert.Equal(t, uint16(443), key.DstPort)
}

func TestParseKeyIPv6UDP(t *testing.T) {
	pkt := buildIPv6UDP(t, "2001:db8::1", "2001:db8::2", 5000, 53)

	key, err := ParseKey(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint8(17), key.Proto)
	assert.Equal(t, "2001:db8::1", key.SrcIP.String())
	assert.Equal(t, uint16(53), key.DstPort)
}

func TestParseKeyRejectsGarbage(t *testing.T) {
	_, err := ParseKey(nil)
	assert.Error(t, err)

	_, err = ParseKey([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}

// ipv4Checksum computes the header checksum from scratch.
func ipv4Checksum(hdr []byte) uint16 {
	var sum uint32
	for i := 0; i < len(hdr); i += 2 {
		if i == 10 {
			continue // checksum field itself
		}
		sum += uint32(binary.BigEndian.Uint16(hdr[i : i+2]))
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

func TestStampDSCPIPv4(t *testing.T) {
	pkt := buildIPv4TCP(t, "192.168.1.10", "1.2.3.4", 40000, 443, 0)

	changed := StampDSCP(pkt, classify.EF)
	require.True(t, changed)

	assert.Equal(t, byte(classify.EF)<<2, pkt[1])
	// incremental checksum update must agree with a full recompute
	assert.Equal(t, ipv4Checksum(pkt[:20]), binary.BigEndian.Uint16(pkt[10:12]))
}

func TestStampDSCPPreservesECN(t *testing.T) {
	pkt := buildIPv4TCP(t, "192.168.1.10", "1.2.3.4", 40000, 443, 0x02) // ECT(0)

	require.True(t, StampDSCP(pkt, classify.CS1))
	assert.Equal(t, byte(classify.CS1)<<2|0x02, pkt[1])
}

func TestStampDSCPNoChange(t *testing.T) {
	pkt := buildIPv4TCP(t, "192.168.1.10", "1.2.3.4", 40000, 443, byte(classify.EF)<<2)
	before := binary.BigEndian.Uint16(pkt[10:12])

	assert.False(t, StampDSCP(pkt, classify.EF))
	assert.Equal(t, before, binary.BigEndian.Uint16(pkt[10:12]))
}

func TestStampDSCPIPv6(t *testing.T) {
	pkt := buildIPv6UDP(t, "2001:db8::1", "2001:db8::2", 5000, 53)

	require.True(t, StampDSCP(pkt, classify.CS5))
	tc := (pkt[0]&0x0f)<<4 | pkt[1]>>4
	assert.Equal(t, byte(classify.CS5)<<2, tc)
}
