// File: peer/l3peer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// L3Peer is the IPv4-aware forwarding peer: it reads one datagram per
// Handle call, resolves the destination through the forwarding map, and
// relays the unmodified bytes.

package peer

import (
	"fmt"
	"sync"

	"github.com/gopacket/gopacket/layers"

	"github.com/momentics/l3router/api"
	"github.com/momentics/l3router/forwarding"
	"github.com/momentics/l3router/ipv4"
)

// bufferSize is large enough to hold the maximum IPv4 datagram.
const bufferSize = 65536

// L3Peer forwards whole IPv4 datagrams between its source connection and
// whatever destination the forwarding map resolves to. The read buffer is
// owned exclusively by the peer for its registered lifetime, drawn once
// from a NUMA-aware pool rather than allocated per peer.
type L3Peer struct {
	conn api.NetConn
	addr forwarding.Key
	buf  api.Buffer

	snapMu   sync.Mutex
	lastSnap []byte // last IPv4 datagram read, forwarded or not, kept only for LastHeader
}

var _ Peer = (*L3Peer)(nil)

// NewL3Peer constructs a peer reading datagrams from conn. addr is the
// peer's local address, used only for bookkeeping; pass the zero Key when
// the peer has no address of its own (e.g. a bare pipe in tests). bufPool
// supplies the peer's read buffer, sized once at bufferSize for the
// peer's whole registered lifetime.
func NewL3Peer(conn api.NetConn, addr forwarding.Key, bufPool api.BufferPool) *L3Peer {
	return &L3Peer{conn: conn, addr: addr, buf: bufPool.Get(bufferSize, -1)}
}

// Socket returns the source connection's raw descriptor.
func (p *L3Peer) Socket() uintptr {
	return p.conn.RawFD()
}

// Address returns the peer's configured local address.
func (p *L3Peer) Address() forwarding.Key {
	return p.addr
}

// Handle reads at most one datagram from the source connection and, on an
// IPv4 datagram with a resolvable destination, relays it whole.
func (p *L3Peer) Handle(fm *forwarding.Map) error {
	raw := p.buf.Bytes()
	n, err := p.conn.Read(raw)
	if err != nil {
		return api.NewError(api.ErrCodeHandlerRead, "handler read/write failed").
			WithContext("source", p.Socket()).WithContext("cause", err.Error())
	}

	view := ipv4.New(raw[:n])
	if !view.Valid() || view.Version() != 4 {
		return nil // UnknownPacket: dropped silently, never surfaced.
	}

	total := int(view.TotalLen())
	if total < ipv4.HeaderLen {
		return nil // UnknownPacket: length claim too short to hold a header.
	}
	// If total exceeds n, the reference behavior is to trust the sender and
	// forward exactly total bytes rather than clamp to what was read.
	datagram := view.Slice(total)
	p.snapshot(datagram)

	key := forwarding.NewKey(view.Destination(), 0)
	socket, found, acquired := fm.TryGet(key)
	if !acquired || !found {
		return nil
	}

	return writeAll(socket, datagram)
}

// snapshot copies datagram into lastSnap for LastHeader to decode later, off
// the dispatch goroutine. Handle is single-threaded per peer, but LastHeader
// is called from a debug probe on a different goroutine, so the copy is
// guarded rather than shared with the read buffer directly.
func (p *L3Peer) snapshot(datagram []byte) {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	if cap(p.lastSnap) < len(datagram) {
		p.lastSnap = make([]byte, len(datagram))
	}
	p.lastSnap = p.lastSnap[:len(datagram)]
	copy(p.lastSnap, datagram)
}

// LastHeader fully decodes the IPv4 header of the most recently read IPv4
// datagram, including one dropped for lack of a destination, via gopacket,
// for debug probes and diagnostics. The forwarding
// hot path never calls this; see ipv4.Decode.
func (p *L3Peer) LastHeader() (*layers.IPv4, error) {
	p.snapMu.Lock()
	snap := append([]byte(nil), p.lastSnap...)
	p.snapMu.Unlock()

	if len(snap) == 0 {
		return nil, fmt.Errorf("peer: no ipv4 datagram observed yet")
	}
	return ipv4.Decode(snap)
}
