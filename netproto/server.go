package netproto

import (
	"time"

	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
	"github.com/adred-codev/irmo/world"
)

// Server is the server-side half of one vhost: it owns the authoritative
// world it publishes (if any), the schema it expects clients to publish
// back (if any), and the table of peers currently talking to it, keyed by
// remote address. A transport.Driver holds one or more Servers and
// demultiplexes inbound datagrams to the right one by vhost name
// (spec.md §4.9).
type Server struct {
	Vhost      string
	World      *world.World
	MirrorSpec *schema.Spec

	// DefaultLocalSendWindowMax, if non-zero, is applied to every peer
	// as it is created (operator-configured receive cap, spec.md §3.1).
	DefaultLocalSendWindowMax int

	// OnPeerConnect and OnPeerDisconnect, if set, are called for every
	// peer this server tracks as it reaches Connected/Disconnected.
	// Intended for an observability event sink; the protocol engine
	// itself never reads these back.
	OnPeerConnect    func(addr string, p *Peer)
	OnPeerDisconnect func(addr string, p *Peer)

	send func(addr string, data []byte) error

	peers map[string]*Peer
}

// NewServer creates a server publishing world (nil if it publishes
// nothing) and expecting clients to optionally publish a world matching
// mirrorSpec (nil if it mirrors nothing back). send delivers one
// datagram to the given remote address.
func NewServer(vhost string, w *world.World, mirrorSpec *schema.Spec, send func(addr string, data []byte) error) *Server {
	return &Server{
		Vhost:      vhost,
		World:      w,
		MirrorSpec: mirrorSpec,
		send:       send,
		peers:      make(map[string]*Peer),
	}
}

// Peer looks up an existing peer by remote address.
func (s *Server) Peer(addr string) (*Peer, bool) {
	p, ok := s.peers[addr]
	return p, ok
}

// PeerCount returns the number of peers currently tracked (including
// lingering ones).
func (s *Server) PeerCount() int { return len(s.peers) }

// ForEachPeer calls fn for every tracked peer.
func (s *Server) ForEachPeer(fn func(addr string, p *Peer)) {
	for addr, p := range s.peers {
		fn(addr, p)
	}
}

// HandleDatagram routes an inbound datagram from addr, creating a new
// peer on a fresh, schema-matching SYN per spec.md §4.7's server-side
// handshake row.
func (s *Server) HandleDatagram(now time.Time, addr string, data []byte) {
	if p, ok := s.peers[addr]; ok {
		p.HandleDatagram(now, data)
		return
	}

	b := wire.NewBufferFromBytes(data)
	flagsRaw, err := b.ReadU16()
	if err != nil || Flags(flagsRaw) != FlagSYN {
		return
	}
	clientHash, err := b.ReadU32()
	if err != nil {
		return
	}
	serverHash, err := b.ReadU32()
	if err != nil {
		return
	}
	if _, err := b.ReadString(); err != nil {
		return
	}

	wantClientHash := uint32(0)
	if s.MirrorSpec != nil {
		wantClientHash = s.MirrorSpec.Hash()
	}
	wantServerHash := uint32(0)
	if s.World != nil {
		wantServerHash = s.World.Spec().Hash()
	}
	if clientHash != wantClientHash || serverHash != wantServerHash {
		s.refuse(addr)
		return
	}

	p := NewServerPeer(s.World, s.MirrorSpec, s.Vhost, func(payload []byte) error {
		return s.send(addr, payload)
	})
	p.connectAttempts = HandshakeAttempts - 1
	p.nextAttempt = now.Add(HandshakeInterval)
	if s.DefaultLocalSendWindowMax > 0 {
		p.SetLocalSendWindowMax(s.DefaultLocalSendWindowMax)
	}
	s.peers[addr] = p
	p.OnConnect(func(p *Peer) {
		if s.OnPeerConnect != nil {
			s.OnPeerConnect(addr, p)
		}
	})
	p.OnDisconnect(func(p *Peer) {
		// Retained for linger per spec.md §4.7; swept by Tick once the
		// linger window elapses and no external reference remains.
		if s.OnPeerDisconnect != nil {
			s.OnPeerDisconnect(addr, p)
		}
	})
}

// PeekSynVhost extracts the vhost name from a SYN datagram without
// otherwise consuming it, for use by a transport driver selecting which
// Server should handle a fresh peer (spec.md §4.9). ok is false if data
// is not a bare SYN frame.
func PeekSynVhost(data []byte) (vhost string, ok bool) {
	b := wire.NewBufferFromBytes(data)
	flagsRaw, err := b.ReadU16()
	if err != nil || Flags(flagsRaw) != FlagSYN {
		return "", false
	}
	if _, err := b.ReadU32(); err != nil {
		return "", false
	}
	if _, err := b.ReadU32(); err != nil {
		return "", false
	}
	v, err := b.ReadString()
	if err != nil {
		return "", false
	}
	return v, true
}

func (s *Server) refuse(addr string) {
	buf := wire.NewBuffer()
	buf.WriteU16(uint16(FlagSYN | FlagFIN))
	s.send(addr, buf.Bytes())
}

// Tick drives every tracked peer's state machine and protocol engine,
// then sweeps peers that have finished lingering with no outstanding
// external reference (spec.md §4.7's linger rule, §9's refcount note).
func (s *Server) Tick(now time.Time) {
	for addr, p := range s.peers {
		p.Tick(now)
		if p.state == StateDisconnected && p.lingering && now.After(p.lingerUntil) && p.Refcount() == 0 {
			delete(s.peers, addr)
		}
	}
}
