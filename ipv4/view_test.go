package ipv4_test

import (
	"testing"

	"github.com/momentics/l3router/ipv4"
)

// header builds a minimal 20-byte IPv4 header with the given total length,
// protocol, and destination, followed by payload bytes.
func header(totalLen int, dst [4]byte, protocol uint8, payload []byte) []byte {
	buf := make([]byte, totalLen)
	buf[0] = 0x45 // version 4, IHL 5
	buf[1] = 0
	buf[2] = byte(totalLen >> 8)
	buf[3] = byte(totalLen)
	buf[8] = 64 // TTL
	buf[9] = protocol
	copy(buf[12:16], []byte{1, 2, 3, 4})
	copy(buf[16:20], dst[:])
	copy(buf[20:], payload)
	return buf
}

func TestViewValidRejectsShortBuffers(t *testing.T) {
	v := ipv4.New(make([]byte, 10))
	if v.Valid() {
		t.Fatal("expected a 10-byte buffer to be invalid")
	}
}

func TestViewValidAcceptsFullHeader(t *testing.T) {
	buf := header(24, [4]byte{9, 9, 9, 9}, 6, []byte("data"))
	v := ipv4.New(buf)
	if !v.Valid() {
		t.Fatal("expected a 24-byte buffer to be valid")
	}
}

func TestViewFieldAccessors(t *testing.T) {
	dst := [4]byte{192, 168, 0, 1}
	buf := header(28, dst, 17, []byte("hello!!!"))
	v := ipv4.New(buf)

	if v.Version() != 4 {
		t.Errorf("Version() = %d, want 4", v.Version())
	}
	if v.IHL() != 5 {
		t.Errorf("IHL() = %d, want 5", v.IHL())
	}
	if v.TotalLen() != 28 {
		t.Errorf("TotalLen() = %d, want 28", v.TotalLen())
	}
	if v.TTL() != 64 {
		t.Errorf("TTL() = %d, want 64", v.TTL())
	}
	if v.Protocol() != 17 {
		t.Errorf("Protocol() = %d, want 17", v.Protocol())
	}
	if v.Destination() != dst {
		t.Errorf("Destination() = %v, want %v", v.Destination(), dst)
	}
	if v.Source() != ([4]byte{1, 2, 3, 4}) {
		t.Errorf("Source() = %v, want {1,2,3,4}", v.Source())
	}
}

func TestViewSliceReturnsExactlyRequestedLength(t *testing.T) {
	buf := header(24, [4]byte{1, 1, 1, 1}, 1, []byte("data"))
	v := ipv4.New(buf)
	got := v.Slice(24)
	if len(got) != 24 {
		t.Fatalf("Slice(24) returned %d bytes, want 24", len(got))
	}
}
