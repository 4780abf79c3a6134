package peer_test

import (
	"os"
	"testing"

	"github.com/momentics/l3router/api"
	"github.com/momentics/l3router/forwarding"
	"github.com/momentics/l3router/peer"
	"github.com/momentics/l3router/pool"
	"github.com/momentics/l3router/transport"
)

var testBufPool = pool.NewBufferPoolManager().GetPool(-1)

func buildIPv4Datagram(totalLen int, dst [4]byte, payload []byte) []byte {
	buf := make([]byte, totalLen)
	buf[0] = 0x45 // version 4, IHL 5
	buf[2] = byte(totalLen >> 8)
	buf[3] = byte(totalLen)
	buf[16] = dst[0]
	buf[17] = dst[1]
	buf[18] = dst[2]
	buf[19] = dst[3]
	copy(buf[20:], payload)
	return buf
}

func TestL3PeerForwardsResolvedDestination(t *testing.T) {
	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer inR.Close()
	defer inW.Close()

	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer outR.Close()
	defer outW.Close()

	fm := forwarding.New()
	dst := [4]byte{172, 168, 2, 32}
	fm.Put(forwarding.NewKey(dst, 0), transport.NewFileConn(outW).RawFD())

	datagram := buildIPv4Datagram(25, dst, []byte("Hello"))
	if _, err := inW.Write(datagram); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := peer.NewL3Peer(transport.NewFileConn(inR), forwarding.Key{}, testBufPool)
	if err := p.Handle(fm); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got := make([]byte, 64)
	n, err := outR.Read(got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 25 {
		t.Fatalf("expected 25 bytes, got %d", n)
	}
	if string(got[:n]) != string(datagram) {
		t.Fatalf("forwarded bytes differ")
	}
}

func TestL3PeerDropsNonIPv4(t *testing.T) {
	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer inR.Close()
	defer inW.Close()

	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer outR.Close()
	defer outW.Close()

	fm := forwarding.New()
	dst := [4]byte{172, 168, 2, 32}
	fm.Put(forwarding.NewKey(dst, 0), transport.NewFileConn(outW).RawFD())

	datagram := buildIPv4Datagram(25, dst, []byte("Hello"))
	datagram[0] = 0x65 // version 6 in the high nibble

	if _, err := inW.Write(datagram); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := peer.NewL3Peer(transport.NewFileConn(inR), forwarding.Key{}, testBufPool)
	if err := p.Handle(fm); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// Nothing should have been written to out; close outW and confirm outR reads EOF immediately.
	outW.Close()
	got := make([]byte, 1)
	n, _ := outR.Read(got)
	if n != 0 {
		t.Fatalf("expected no bytes forwarded for non-IPv4 datagram, got %d", n)
	}
}

func TestL3PeerForwardsHeaderOnlyDatagram(t *testing.T) {
	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer inR.Close()
	defer inW.Close()

	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer outR.Close()
	defer outW.Close()

	fm := forwarding.New()
	dst := [4]byte{10, 0, 0, 9}
	fm.Put(forwarding.NewKey(dst, 0), transport.NewFileConn(outW).RawFD())

	datagram := buildIPv4Datagram(20, dst, nil)
	if _, err := inW.Write(datagram); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := peer.NewL3Peer(transport.NewFileConn(inR), forwarding.Key{}, testBufPool)
	if err := p.Handle(fm); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got := make([]byte, 64)
	n, err := outR.Read(got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 20 {
		t.Fatalf("expected 20 bytes, got %d", n)
	}
}

func TestL3PeerDropsWhenDestinationAbsentFromMap(t *testing.T) {
	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer inR.Close()
	defer inW.Close()

	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer outR.Close()
	defer outW.Close()

	fm := forwarding.New() // deliberately empty: no entry for dst

	dst := [4]byte{203, 0, 113, 5}
	datagram := buildIPv4Datagram(25, dst, []byte("Hello"))
	if _, err := inW.Write(datagram); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := peer.NewL3Peer(transport.NewFileConn(inR), forwarding.Key{}, testBufPool)
	if err := p.Handle(fm); err != nil {
		t.Fatalf("handle: %v", err)
	}

	outW.Close()
	got := make([]byte, 1)
	n, _ := outR.Read(got)
	if n != 0 {
		t.Fatalf("expected no bytes forwarded when destination is absent from map, got %d", n)
	}
}

// TestDestinationWriteFailureEvictsSource pins the documented behavior: a
// write failure on the resolved destination surfaces as ErrCodeHandlerRead,
// the same classification a failure on the source connection would produce.
// The router's dispatch loop unregisters whichever peer owns the descriptor
// that returned the error, which here is the source, not the destination
// that actually failed. This is not being fixed silently; see the TODO at
// the write-failure call site in socket_linux.go/socket_windows.go.
func TestDestinationWriteFailureEvictsSource(t *testing.T) {
	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer inR.Close()
	defer inW.Close()

	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer outW.Close()
	outR.Close() // destination's read end is gone: writes to outW now fail EPIPE

	fm := forwarding.New()
	dst := [4]byte{198, 51, 100, 7}
	fm.Put(forwarding.NewKey(dst, 0), transport.NewFileConn(outW).RawFD())

	datagram := buildIPv4Datagram(25, dst, []byte("Hello"))
	if _, err := inW.Write(datagram); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := peer.NewL3Peer(transport.NewFileConn(inR), forwarding.Key{}, testBufPool)
	err = p.Handle(fm)
	if err == nil {
		t.Fatalf("expected an error from a failed destination write")
	}
	apiErr, ok := err.(*api.Error)
	if !ok {
		t.Fatalf("expected *api.Error, got %T", err)
	}
	if apiErr.Code != api.ErrCodeHandlerRead {
		t.Fatalf("expected ErrCodeHandlerRead, got %v", apiErr.Code)
	}
}
