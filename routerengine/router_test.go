package routerengine_test

import (
	"errors"
	"os"
	"testing"

	"github.com/momentics/l3router/api"
	"github.com/momentics/l3router/forwarding"
	"github.com/momentics/l3router/reactor"
	"github.com/momentics/l3router/routerengine"
)

var (
	errHandlerRead = api.NewError(api.ErrCodeHandlerRead, "test handler always fails")
	errAllocation  = errors.New("allocation refused")
)

// testPeer is a minimal peer.Peer used to exercise Router in isolation from
// L3Peer's IPv4-specific handling.
type testPeer struct {
	fd      uintptr
	f       *os.File
	onRead  func([]byte)
	failing bool
	handled int
}

func (p *testPeer) Socket() uintptr           { return p.fd }
func (p *testPeer) Address() forwarding.Key   { return forwarding.Key{} }
func (p *testPeer) Handle(_ *forwarding.Map) error {
	p.handled++
	buf := make([]byte, 4096)
	n, err := p.f.Read(buf)
	if err != nil {
		return handlerReadErr()
	}
	if p.failing {
		return handlerReadErr()
	}
	if p.onRead != nil {
		p.onRead(buf[:n])
	}
	return nil
}

func handlerReadErr() error {
	return errHandlerRead
}

func TestPipeRoundTrip(t *testing.T) {
	r, err := routerengine.New(routerengine.NewDefaultAllocator(), 1, 100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Shutdown()

	rd, wr, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer rd.Close()
	defer wr.Close()

	var got []byte
	p := &testPeer{fd: rd.Fd(), f: rd, onRead: func(b []byte) {
		got = append([]byte(nil), b...)
	}}

	if err := r.Register(p, reactor.EventRead); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := wr.Write([]byte("hello world!")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := r.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if string(got) != "hello world!" {
		t.Fatalf("expected %q, got %q", "hello world!", got)
	}
}

func TestSelfEvictionOnFailingHandler(t *testing.T) {
	r, err := routerengine.New(routerengine.NewDefaultAllocator(), 1, 100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Shutdown()

	rd, wr, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer rd.Close()
	defer wr.Close()

	calls := 0
	p := &testPeer{fd: rd.Fd(), f: rd, failing: true, onRead: func(b []byte) { calls++ }}

	if err := r.Register(p, reactor.EventRead); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := wr.Write([]byte("hello world!")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.handled != 1 {
		t.Fatalf("expected the handler to run once, got %d", p.handled)
	}
	if got := r.Stats()["registered_peers"]; got != 0 {
		t.Fatalf("expected the failing peer to be unregistered, registered_peers = %v", got)
	}

	if _, err := wr.Write([]byte("hello world!")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if p.handled != 1 {
		t.Fatalf("expected no handler call after eviction, got %d calls in total", p.handled)
	}

	if calls != 0 {
		t.Fatalf("expected the failing handler never to reach onRead, got %d calls", calls)
	}
}

type failingAllocator struct {
	failReactorImmediately bool
	failAfterBatches       int
	batches                int
}

func (a *failingAllocator) NewReactor() (reactor.EventReactor, error) {
	if a.failReactorImmediately {
		return nil, errAllocation
	}
	return routerengine.NewDefaultAllocator().NewReactor()
}

func (a *failingAllocator) NewEventBatch(n int) ([]reactor.Event, error) {
	if a.batches >= a.failAfterBatches {
		return nil, errAllocation
	}
	a.batches++
	return make([]reactor.Event, n), nil
}

// Register makes no allocator call; the allocator's first allocation is the
// readiness facility built by New, so that is where an immediate failure
// surfaces.
func TestAllocationFailureOnConstruction(t *testing.T) {
	_, err := routerengine.New(&failingAllocator{failReactorImmediately: true}, 1, 100)
	if err == nil {
		t.Fatal("expected an error from New when the reactor cannot be allocated")
	}
}

func TestAllocationFailureOnRun(t *testing.T) {
	alloc := &failingAllocator{failAfterBatches: 0}
	r, err := routerengine.New(alloc, 1, 100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Shutdown()

	if err := r.Run(); err == nil {
		t.Fatal("expected Run to fail once the allocator refuses the event batch")
	}
}
