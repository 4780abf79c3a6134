// File: ipv4/decode.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Full header decoding for diagnostics. The forwarding hot path never calls
// this: it uses View directly so a malformed or truncated datagram never
// fails a parse it doesn't need. Decode exists for debug probes and tooling
// that want the complete field set (ToS, flags, protocol name, ...).

package ipv4

import (
	"fmt"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// Decode parses buf as a full IPv4 layer using gopacket, without copying
// the underlying bytes.
func Decode(buf []byte) (*layers.IPv4, error) {
	packet := gopacket.NewPacket(buf, layers.LayerTypeIPv4, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})
	layer := packet.Layer(layers.LayerTypeIPv4)
	if layer == nil {
		if err := packet.ErrorLayer(); err != nil {
			return nil, fmt.Errorf("ipv4: decode: %w", err.Error())
		}
		return nil, fmt.Errorf("ipv4: no IPv4 layer in packet")
	}
	// gopacket adds the IPv4 layer even when its header decode fails, and
	// marks the packet truncated when buf is shorter than the header.
	if packet.Metadata().Truncated {
		return nil, fmt.Errorf("ipv4: decode: truncated datagram")
	}
	hdr, ok := layer.(*layers.IPv4)
	if !ok {
		return nil, fmt.Errorf("ipv4: unexpected layer type %T", layer)
	}
	return hdr, nil
}
