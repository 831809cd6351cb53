package main

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// wrapEthernet reconstructs a synthetic Ethernet/IPv4/UDP frame around a
// UDP payload read off a standard net.UDPConn socket, since the Edge
// Filter's classify operation assumes packets begin at Ethernet.
// A raw AF_PACKET/pcap capture path would hand classify real frames
// directly; the host binary here listens on an ordinary UDP socket with
// no libpcap/cgo dependency, so the frame is synthesized for the one
// field classify actually needs: the source IP.
func wrapEthernet(srcIP net.IP, srcPort uint16, dstPort uint16, payload []byte) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 0},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP.To4(),
		DstIP:    net.IPv4(127, 0, 0, 1),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	udp.SetNetworkLayerForChecksum(ip4)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip4, udp, gopacket.Payload(payload)); err != nil {
		return nil
	}
	return buf.Bytes()
}
