// Package mesh is the LAN peer-to-peer connector: every process listens on
// QUIC, advertises itself over mDNS under its local participant id, and
// connects to every peer it finds.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/discovery"
	"github.com/SWAI-Ltd/multipass/internal/roster"
	"github.com/SWAI-Ltd/multipass/internal/transport"
)

const (
	ListenAlways = "always"
	ListenManual = "manual"

	sendQueue   = 64
	dialTimeout = 10 * time.Second
)

// ErrNotRunning is returned by Connect before Start or after Stop.
var ErrNotRunning = errors.New("mesh not running")

// Config for Node.
type Config struct {
	// Service is the mDNS service type, e.g. "_multipass._udp".
	Service string
	// Addr is the QUIC listen address; ":0" picks a port.
	Addr string
	// DisableDiscovery skips mDNS (containers, tests). Peers are then added
	// with Connect.
	DisableDiscovery bool
	Logger           *zap.Logger
}

// Node implements connector.Connector over QUIC links to LAN peers.
type Node struct {
	id   connector.ID
	host connector.Host
	cfg  Config
	log  *zap.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	server  *transport.Server
	disc    *discovery.Discovery
	peers   map[uuid.UUID]*peer
	seen    map[uuid.UUID]bool
	wg      sync.WaitGroup
}

type peer struct {
	id   uuid.UUID
	conn *transport.Conn
	out  chan []byte
	done chan struct{}

	mu       sync.Mutex
	observed map[uuid.UUID]roster.Participant
}

// NewNode returns a stopped node.
func NewNode(host connector.Host, cfg Config) *Node {
	if cfg.Addr == "" {
		cfg.Addr = transport.AddrAny
	}
	if cfg.Service == "" {
		cfg.Service = discovery.DefaultService
	}
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	id := connector.NewID()
	return &Node{
		id:    id,
		host:  host,
		cfg:   cfg,
		log:   log.With(zap.String("connector", id.String()), zap.String("kind", "mesh")),
		peers: make(map[uuid.UUID]*peer),
		seen:  make(map[uuid.UUID]bool),
	}
}

func (n *Node) ID() connector.ID { return n.id }

// Start listens and, unless disabled, advertises and browses. Failures are
// logged and leave the node stopped.
func (n *Node) Start() {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	server, err := transport.Listen(ctx, n.cfg.Addr, n.accept)
	if err != nil {
		n.mu.Unlock()
		cancel()
		n.log.Error("mesh listen failed", zap.String("addr", n.cfg.Addr), zap.Error(err))
		return
	}
	n.ctx, n.cancel, n.server = ctx, cancel, server
	n.running = true
	n.mu.Unlock()
	n.log.Info("mesh listening", zap.String("addr", server.Addr()))

	if n.cfg.DisableDiscovery {
		return
	}
	port := discovery.DefaultPort
	if _, p, err := discovery.ParseAddr(server.Addr()); err == nil && p > 0 {
		port = p
	}
	disc, err := discovery.New(n.cfg.Service, n.host.LocalID().String(), port, n.onPeer)
	if err != nil {
		n.log.Warn("mdns unavailable, manual connections only", zap.Error(err))
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running || n.ctx != ctx {
		_ = disc.Close()
		return
	}
	n.disc = disc
}

// Stop closes discovery, the listener and every peer link.
func (n *Node) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.cancel()
	if n.disc != nil {
		_ = n.disc.Close()
		n.disc = nil
	}
	_ = n.server.Close()
	peers := make([]*peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
	n.wg.Wait()
}

// Addr returns the listen address, or "" when stopped.
func (n *Node) Addr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return ""
	}
	return n.server.Addr()
}

// Peers returns the ids of connected peers.
func (n *Node) Peers() []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]uuid.UUID, 0, len(n.peers))
	for id := range n.peers {
		out = append(out, id)
	}
	return out
}

// Send queues data for every connected peer. QUIC streams are reliable, so
// reliable is ignored.
func (n *Node) Send(data []byte, _ bool) {
	n.mu.Lock()
	peers := make([]*peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.Unlock()
	for _, p := range peers {
		p.enqueue(data, n.log)
	}
}

// Connect dials addr directly, for peers mDNS cannot see.
func (n *Node) Connect(ctx context.Context, addr string) error {
	n.mu.Lock()
	running := n.running
	n.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	conn, err := transport.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("mesh: dial %s: %w", addr, err)
	}
	return n.handshake(conn)
}

// shouldDial breaks the symmetry of two peers finding each other: only the
// lexically smaller id dials.
func shouldDial(local, remote uuid.UUID) bool {
	return local.String() < remote.String()
}

func (n *Node) onPeer(p discovery.Peer, op discovery.Op) {
	remote, err := uuid.Parse(p.Name)
	if err != nil {
		n.log.Debug("ignoring non-participant instance", zap.String("name", p.Name))
		return
	}
	if op == discovery.Removed {
		n.log.Debug("peer unadvertised", zap.Stringer("peer", remote))
		return
	}
	if !shouldDial(n.host.LocalID(), remote) {
		return
	}
	n.mu.Lock()
	_, connected := n.peers[remote]
	ctx := n.ctx
	n.mu.Unlock()
	if connected || ctx == nil {
		return
	}
	go func() {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		if err := n.Connect(dctx, p.Addr); err != nil {
			n.log.Warn("mesh connect failed", zap.String("addr", p.Addr), zap.Error(err))
		}
	}()
}

func (n *Node) accept(conn *transport.Conn) {
	if err := n.acceptHandshake(conn); err != nil {
		n.log.Debug("inbound handshake failed", zap.String("addr", conn.RemoteAddr()), zap.Error(err))
	}
}

// handshake is the dialing side: it writes its id first so the stream
// reaches the listener, then reads the peer's.
func (n *Node) handshake(conn *transport.Conn) error {
	if err := sendPreface(conn, n.host.LocalID()); err != nil {
		_ = conn.Close()
		return err
	}
	remote, err := readPreface(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	return n.attach(remote, conn)
}

func (n *Node) acceptHandshake(conn *transport.Conn) error {
	remote, err := readPreface(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := sendPreface(conn, n.host.LocalID()); err != nil {
		_ = conn.Close()
		return err
	}
	return n.attach(remote, conn)
}

func sendPreface(conn *transport.Conn, id uuid.UUID) error {
	return conn.SendBytes(id[:])
}

func readPreface(conn *transport.Conn) (uuid.UUID, error) {
	b, err := conn.RecvBytes()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}

func (n *Node) attach(remote uuid.UUID, conn *transport.Conn) error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		_ = conn.Close()
		return ErrNotRunning
	}
	if _, dup := n.peers[remote]; dup {
		n.mu.Unlock()
		_ = conn.Close()
		n.log.Debug("duplicate link dropped", zap.Stringer("peer", remote))
		return nil
	}
	again := n.seen[remote]
	n.seen[remote] = true
	p := &peer{
		id:       remote,
		conn:     conn,
		out:      make(chan []byte, sendQueue),
		done:     make(chan struct{}),
		observed: make(map[uuid.UUID]roster.Participant),
	}
	n.peers[remote] = p
	n.wg.Add(2)
	n.mu.Unlock()

	n.log.Info("peer connected", zap.Stringer("peer", remote), zap.Bool("again", again))
	go n.writeLoop(p)
	go n.readLoop(p)

	hello, err := n.host.HelloMessage(again)
	if err != nil {
		n.log.Warn("hello failed", zap.Error(err))
		return nil
	}
	p.enqueue(hello, n.log)
	return nil
}

func (n *Node) writeLoop(p *peer) {
	defer n.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case data := <-p.out:
			if err := p.conn.SendBytes(data); err != nil {
				n.log.Debug("peer write failed", zap.Stringer("peer", p.id), zap.Error(err))
				_ = p.conn.Close()
				return
			}
		}
	}
}

func (n *Node) readLoop(p *peer) {
	defer n.wg.Done()
	defer n.detach(p)
	for {
		data, err := p.conn.RecvBytes()
		if err != nil {
			return
		}
		n.host.Receive(data, n, p.observe)
	}
}

// detach forgets p and removes every participant seen over its link.
func (n *Node) detach(p *peer) {
	close(p.done)
	_ = p.conn.Close()
	n.mu.Lock()
	if n.peers[p.id] == p {
		delete(n.peers, p.id)
	}
	n.mu.Unlock()

	p.mu.Lock()
	seen := p.observed
	p.observed = nil
	p.mu.Unlock()
	for _, who := range seen {
		n.host.RemoveRemote(who)
	}
	n.log.Info("peer disconnected", zap.Stringer("peer", p.id), zap.Int("participants", len(seen)))
}

func (p *peer) observe(who roster.Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.observed != nil {
		p.observed[who.ID] = who
	}
}

func (p *peer) enqueue(data []byte, log *zap.Logger) {
	select {
	case <-p.done:
	case p.out <- data:
	default:
		log.Warn("peer queue full, dropping payload", zap.Stringer("peer", p.id), zap.Int("bytes", len(data)))
	}
}
