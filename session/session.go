// Package session implements the client-side orchestrator: blocking
// Connect/Disconnect helpers that drive the protocol engine until the
// peer state machine settles (spec.md §4.7's client rows, §5's "the only
// blocking primitive is block(transport, timeout_ms)").
package session

import (
	"errors"
	"time"

	"github.com/adred-codev/irmo/netproto"
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/transport"
	"github.com/adred-codev/irmo/world"
)

// ErrTimeout is returned by Connect/Disconnect if the peer does not
// settle into the target state before the deadline. Connect also returns
// it when the peer ends up Disconnected instead (for example, refused by
// the server or out of handshake attempts).
var ErrTimeout = errors.New("session: timed out waiting for peer to settle")

// PollInterval is how often Connect/Disconnect pump the transport while
// blocking.
const PollInterval = 10 * time.Millisecond

// Session is a client's handle on one connection: its socket, its single
// peer, and the address it talks to.
type Session struct {
	Socket transport.Socket
	Peer   *netproto.Peer
}

// Dial opens a UDP socket to remoteAddr and constructs a client peer.
// localWorld is the world this side publishes (nil if none); mirrorSpec
// is the schema this side expects to mirror from the server (nil if
// this side does not mirror). vhost selects a named server on the far
// side (empty string for the default).
func Dial(remoteAddr, vhost string, localWorld *world.World, mirrorSpec *schema.Spec) (*Session, error) {
	sock, raddr, err := transport.Dial(remoteAddr)
	if err != nil {
		return nil, err
	}
	peer := netproto.NewClientPeer(localWorld, mirrorSpec, vhost, func(data []byte) error {
		return sock.Send(raddr, data)
	})
	return &Session{Socket: sock, Peer: peer}, nil
}

// Connect drives the handshake to completion (or timeout), pumping the
// socket and the peer's Tick in a tight loop, per spec.md §4.7/§5. It
// blocks the calling goroutine; the caller should run it from a
// dedicated goroutine if it must remain responsive elsewhere.
func (s *Session) Connect(timeout time.Duration) error {
	s.Peer.Hold()
	defer s.Peer.Release()

	now := time.Now()
	deadline := now.Add(timeout)
	s.Peer.Connect(now)

	for {
		now = time.Now()
		if now.After(deadline) {
			return ErrTimeout
		}
		if addr, data, ok := s.Socket.Receive(); ok {
			_ = addr
			s.Peer.HandleDatagram(now, data)
		}
		s.Peer.Tick(now)
		switch s.Peer.State() {
		case netproto.StateConnected:
			return nil
		case netproto.StateDisconnected:
			return ErrTimeout
		}
		time.Sleep(PollInterval)
	}
}

// Disconnect drives a graceful teardown to completion (or timeout).
func (s *Session) Disconnect(timeout time.Duration) error {
	s.Peer.Hold()
	defer s.Peer.Release()

	now := time.Now()
	deadline := now.Add(timeout)
	s.Peer.Disconnect(now)

	for {
		now = time.Now()
		if now.After(deadline) {
			return ErrTimeout
		}
		if addr, data, ok := s.Socket.Receive(); ok {
			_ = addr
			s.Peer.HandleDatagram(now, data)
		}
		s.Peer.Tick(now)
		if s.Peer.State() == netproto.StateDisconnected {
			return nil
		}
		time.Sleep(PollInterval)
	}
}

// Close releases the underlying socket. Call after Disconnect (or
// instead of it, for an ungraceful close).
func (s *Session) Close() error {
	return s.Socket.Close()
}
