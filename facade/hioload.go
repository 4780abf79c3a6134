// File: facade/hioload.go
// Package facade aggregates the router, its external collaborators, and the
// ambient stack (config, control, executor, scheduler, logging) into one
// object the command-line entrypoint can start and stop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine is the policy component the specification leaves external: it owns
// the decision of which peers exist and when forwarding-map entries are
// populated. The router itself stays ignorant of TUN devices, TCP sockets,
// or configuration.

package facade

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/momentics/l3router/adapters"
	"github.com/momentics/l3router/api"
	"github.com/momentics/l3router/forwarding"
	"github.com/momentics/l3router/internal/concurrency"
	"github.com/momentics/l3router/internal/session"
	"github.com/momentics/l3router/peer"
	"github.com/momentics/l3router/pool"
	"github.com/momentics/l3router/reactor"
	"github.com/momentics/l3router/routerengine"
	"github.com/momentics/l3router/transport"
	"github.com/momentics/l3router/transport/tcp"
)

// Config holds parameters immutable per run.
type Config struct {
	Device        string // TUN interface name, e.g. "tun0"
	Network       string // network address, informational (CLI --network)
	Netmask       string // netmask in dotted-quad form, e.g. "255.255.255.0"
	Address       string // local IPv4 address assigned to Device
	PeerAddress   string // remote peer's tunnel IPv4 address, for a point-to-point link
	ListenAddr    string // TCP listen address for inbound peers, e.g. ":8080"
	ConnectAddr   string // if set, dial this address in client mode instead of listening
	NumWorkers    int    // executor worker goroutines for background tasks
	NUMANode      int    // preferred NUMA node, -1 for none
	MaxConcurrent int    // Router's max_concurrent
	WaitTimeoutMs int    // Router's wait_timeout
	CPUAffinity   bool   // pin the router's own goroutine
	PinnedCPU     int    // CPU to pin the router goroutine to, when CPUAffinity is set
}

// DefaultConfig returns sane defaults for a single-tunnel deployment.
func DefaultConfig() *Config {
	return &Config{
		Device:        "tun0",
		Netmask:       "255.255.255.0",
		ListenAddr:    ":8080",
		NumWorkers:    4,
		NUMANode:      -1,
		MaxConcurrent: 32,
		WaitTimeoutMs: 100,
		CPUAffinity:   false,
		PinnedCPU:     0,
	}
}

// Engine wires the router to its external collaborators: TUN device,
// TCP accept loop, and the ambient control/executor/scheduler stack.
type Engine struct {
	cfg *Config
	log *logrus.Logger

	router *routerengine.Router
	tunFd  *os.File

	control  api.Control
	affinity api.Affinity
	executor api.Executor
	sched    *concurrency.Scheduler
	events   *concurrency.EventLoop
	sessions *session.Manager
	bufPool  *pool.BufferPoolManager

	mu     sync.Mutex
	stopCh chan struct{}
}

// statsReporter logs a periodic snapshot of engine counters. It runs off the
// router's hot path so a slow log sink never delays forwarding.
type statsReporter struct {
	engine *Engine
}

func (s *statsReporter) HandleEvent(ev concurrency.Event) {
	s.engine.log.WithFields(logrus.Fields(s.engine.Stats())).Info("periodic stats")
}

var _ api.GracefulShutdown = (*Engine)(nil)

// New constructs an Engine: it creates and configures the TUN device,
// builds the router, and registers a peer for the TUN device's traffic.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	tunFile, err := openTUN(cfg.Device, cfg.Address, cfg.Netmask)
	if err != nil {
		return nil, fmt.Errorf("facade: tun setup: %w", err)
	}

	router, err := routerengine.New(routerengine.NewDefaultAllocator(), cfg.MaxConcurrent, cfg.WaitTimeoutMs)
	if err != nil {
		tunFile.Close()
		return nil, fmt.Errorf("facade: router init: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		router:   router,
		tunFd:    tunFile,
		control:  adapters.NewControlAdapter(),
		affinity: adapters.NewAffinityAdapter(),
		executor: adapters.NewExecutorAdapter(cfg.NumWorkers, cfg.NUMANode),
		sched:    concurrency.NewScheduler(),
		events:   concurrency.NewEventLoop(8, 64),
		sessions: session.NewManager(16),
		bufPool:  pool.NewBufferPoolManager(),
		stopCh:   make(chan struct{}),
	}

	tunPeer := peer.NewL3Peer(transport.NewFileConn(tunFile), forwarding.Key{}, e.bufPool.GetPool(cfg.NUMANode))
	if err := router.Register(tunPeer, reactor.EventRead); err != nil {
		router.Shutdown()
		tunFile.Close()
		return nil, fmt.Errorf("facade: register tun peer: %w", err)
	}

	// Packets arriving over a TCP peer destined for our own tunnel address
	// must be written back into the TUN device. The local address is known
	// at startup, so this entry is populated immediately rather than left
	// to a runtime discovery protocol this deployment does not have.
	if localAddr, ok := parseIPv4(cfg.Address); ok {
		router.ForwardingMap().Put(forwarding.NewKey(localAddr, 0), tunPeer.Socket())
	}

	e.control.SetConfig(map[string]any{
		"device":      cfg.Device,
		"listen_addr": cfg.ListenAddr,
	})

	// The forwarding hot path only ever uses ipv4.View; the full gopacket
	// decode of the last datagram seen on the TUN device is exposed here so
	// Stats()/debug tooling can inspect the field set View doesn't surface.
	e.control.RegisterDebugProbe("tun.last_ipv4_header", func() any {
		hdr, err := tunPeer.LastHeader()
		if err != nil {
			return err.Error()
		}
		return map[string]any{
			"src":      hdr.SrcIP.String(),
			"dst":      hdr.DstIP.String(),
			"ttl":      hdr.TTL,
			"protocol": hdr.Protocol.String(),
		}
	})

	e.events.RegisterHandler(&statsReporter{engine: e})
	go e.events.Run()
	e.scheduleStatsTick()

	return e, nil
}

// scheduleStatsTick posts a tick to the maintenance event loop every five
// seconds and reschedules itself, stopping once the engine is shut down.
func (e *Engine) scheduleStatsTick() {
	var tick func()
	tick = func() {
		select {
		case <-e.stopCh:
			return
		default:
		}
		e.events.Post(concurrency.Event{Data: "tick"})
		e.sched.Schedule(int64(5*time.Second), tick)
	}
	e.sched.Schedule(int64(5*time.Second), tick)
}

// openTUN creates a TUN device via water and configures its address,
// netmask, and up flag via netlink, matching the SIOCSIFADDR/SIOCSIFNETMASK/
// SIOCSIFFLAGS contract the specification assigns to the external collaborator.
func openTUN(device, address, netmask string) (*os.File, error) {
	cfg := water.Config{DeviceType: water.TUN}
	cfg.PlatformSpecificParams = water.PlatformSpecificParams{Name: device}

	ifce, err := water.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("water.New: %w", err)
	}

	f, ok := ifce.ReadWriteCloser.(*os.File)
	if !ok {
		return nil, fmt.Errorf("tun device does not expose an *os.File descriptor")
	}

	// The reactor uses level-triggered epoll; a blocking read on an empty
	// TUN device would stall the whole dispatch loop rather than just
	// reporting the descriptor not-ready.
	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		f.Close()
		return nil, fmt.Errorf("unix.SetNonblock: %w", err)
	}

	if address != "" {
		link, err := netlink.LinkByName(device)
		if err != nil {
			return nil, fmt.Errorf("netlink.LinkByName: %w", err)
		}
		ones, _ := net.IPMask(net.ParseIP(netmask).To4()).Size()
		addr, err := netlink.ParseAddr(fmt.Sprintf("%s/%d", address, ones))
		if err != nil {
			return nil, fmt.Errorf("netlink.ParseAddr: %w", err)
		}
		if err := netlink.AddrAdd(link, addr); err != nil {
			return nil, fmt.Errorf("netlink.AddrAdd: %w", err)
		}
		if err := netlink.LinkSetUp(link); err != nil {
			return nil, fmt.Errorf("netlink.LinkSetUp: %w", err)
		}
	}

	return f, nil
}

// ForwardingMap exposes the router's forwarding table so a caller can
// populate it as new peers become known.
func (e *Engine) ForwardingMap() *forwarding.Map {
	return e.router.ForwardingMap()
}

// ListenTCP starts the accept loop for inbound TCP peers. Each accepted
// connection becomes an L3Peer registered with the router and tracked in
// the session manager; when cfg.PeerAddress is set, that address is bound
// to the peer's socket in the forwarding map (see adoptTCPPeer).
func (e *Engine) ListenTCP() error {
	cfg := &tcp.ListenerConfig{
		Addr: e.cfg.ListenAddr,
		ConnHandler: func(conn net.Conn) {
			e.adoptTCPPeer(conn)
		},
	}
	if e.cfg.CPUAffinity {
		cfg.WorkerCPUs = []int{e.cfg.PinnedCPU}
	}
	e.log.WithField("addr", e.cfg.ListenAddr).Info("listening for tcp peers")
	return tcp.StartTCPListener(cfg)
}

// ConnectTCP dials addr in client mode and registers the resulting
// connection the same way an accepted connection would be.
func (e *Engine) ConnectTCP(addr string) error {
	conn, err := tcp.DialTCP(addr)
	if err != nil {
		return fmt.Errorf("facade: connect: %w", err)
	}
	e.adoptTCPPeer(conn)
	return nil
}

func (e *Engine) adoptTCPPeer(conn net.Conn) {
	sess := session.NewSession(conn.RemoteAddr().String())
	e.sessions.Register(sess)

	p := peer.NewL3Peer(transport.NewNetConn(conn), forwarding.Key{}, e.bufPool.GetPool(e.cfg.NUMANode))
	if err := e.router.Register(p, reactor.EventRead); err != nil {
		e.log.WithError(err).Warn("failed to register tcp peer")
		e.sessions.Unregister(sess.ID())
		conn.Close()
		return
	}

	// Packets arriving over the TUN device destined for the remote peer's
	// tunnel address must be relayed out over this TCP connection. For a
	// point-to-point link the peer's address is a static deployment fact,
	// not something negotiated on connect.
	if peerAddr, ok := parseIPv4(e.cfg.PeerAddress); ok {
		e.router.ForwardingMap().Put(forwarding.NewKey(peerAddr, 0), p.Socket())
	}

	e.log.WithField("remote", conn.RemoteAddr()).Info("registered tcp peer")
}

// parseIPv4 converts a dotted-quad string into its 4-octet form. Returns
// ok=false for an empty or non-IPv4 address.
func parseIPv4(addr string) ([4]byte, bool) {
	var out [4]byte
	if addr == "" {
		return out, false
	}
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return out, false
	}
	copy(out[:], ip)
	return out, true
}

// Run drives the router's event loop, ticking until stopped. A tick error
// other than Interrupted is returned; an Interrupted error ends the loop cleanly.
func (e *Engine) Run() error {
	if e.cfg.CPUAffinity {
		if err := e.affinity.Pin(e.cfg.PinnedCPU, e.cfg.NUMANode); err != nil {
			e.log.WithError(err).Warn("cpu affinity pin failed")
		}
	}

	for {
		select {
		case <-e.stopCh:
			return nil
		default:
		}
		if err := e.router.Run(); err != nil {
			if apiErr, ok := err.(*api.Error); ok && apiErr.Code == api.ErrCodeInterrupted {
				return nil
			}
			return err
		}
	}
}

// Stats reports router and session counters for diagnostics.
func (e *Engine) Stats() map[string]any {
	stats := e.router.Stats()
	stats["sessions"] = e.sessions.Len()
	for k, v := range e.control.Stats() {
		stats[k] = v
	}
	return stats
}

// Shutdown stops the run loop and releases the router, TUN device, executor,
// and scheduler. Satisfies api.GracefulShutdown.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}

	// api.Executor doesn't declare Close; ExecutorAdapter provides it for
	// teardown, so reach it through the same assertion the interface hides.
	if c, ok := e.executor.(interface{ Close() }); ok {
		c.Close()
	}
	e.sched.Close()
	e.events.Stop()
	err := e.router.Shutdown()
	if cerr := e.tunFd.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
