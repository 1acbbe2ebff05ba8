package transport

import (
	"net"
	"time"

	"github.com/adred-codev/irmo/netproto"
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/world"
	"github.com/rs/zerolog"
)

// Driver demultiplexes inbound datagrams from a Socket to the
// netproto.Server whose vhost matches the connecting peer's SYN
// (spec.md §4.9), and ticks every registered server's peers once per
// Tick call. It holds a string-keyed table of "virtual hosts" plus at
// most one default server, as spec.md §4.9 describes.
type Driver struct {
	socket   Socket
	servers  map[string]*netproto.Server
	fallback *netproto.Server

	// remoteAddrs maps the string form of an address (the key
	// netproto.Server's peer table uses) back to the net.Addr a Socket
	// send needs, populated as datagrams arrive.
	remoteAddrs map[string]net.Addr

	guard *synGuard

	log zerolog.Logger
}

// NewDriver wraps socket. log may be the zero Logger; pass a configured
// one from the observability package for production use.
func NewDriver(socket Socket, log zerolog.Logger) *Driver {
	return &Driver{
		socket:      socket,
		servers:     make(map[string]*netproto.Server),
		remoteAddrs: make(map[string]net.Addr),
		guard:       newSynGuard(5, 10),
		log:         log,
	}
}

// AddServer registers srv for vhost. An empty vhost registers the
// default server, selected when a SYN carries no vhost name or names one
// nobody registered.
func (d *Driver) AddServer(vhost string, srv *netproto.Server) {
	if vhost == "" {
		d.fallback = srv
		return
	}
	d.servers[vhost] = srv
}

// sendFunc is passed to netproto.NewServer/NewServerPeer as the
// low-level send primitive: it resolves the string address key back to
// a net.Addr and writes through the socket.
func (d *Driver) sendFunc(addrKey string, data []byte) error {
	addr, ok := d.remoteAddrs[addrKey]
	if !ok {
		return net.InvalidAddrError(addrKey)
	}
	return d.socket.Send(addr, data)
}

// NewServer is a convenience constructor binding the returned
// netproto.Server's send primitive to this driver's socket.
func (d *Driver) NewServer(vhost string, w *world.World, mirrorSpec *schema.Spec) *netproto.Server {
	srv := netproto.NewServer(vhost, w, mirrorSpec, d.sendFunc)
	d.AddServer(vhost, srv)
	return srv
}

func (d *Driver) serverFor(vhost string) *netproto.Server {
	if srv, ok := d.servers[vhost]; ok {
		return srv
	}
	return d.fallback
}

// Poll drains every datagram currently queued on the socket without
// blocking, dispatching each to the appropriate server/peer. Call this
// frequently (e.g. once per event-loop iteration) alongside Tick.
func (d *Driver) Poll(now time.Time) {
	for {
		addr, data, ok := d.socket.Receive()
		if !ok {
			return
		}
		d.handleDatagram(now, addr, data)
	}
}

func (d *Driver) handleDatagram(now time.Time, addr net.Addr, data []byte) {
	key := addr.String()
	d.remoteAddrs[key] = addr

	for _, srv := range d.servers {
		if _, ok := srv.Peer(key); ok {
			srv.HandleDatagram(now, key, data)
			return
		}
	}
	if d.fallback != nil {
		if _, ok := d.fallback.Peer(key); ok {
			d.fallback.HandleDatagram(now, key, data)
			return
		}
	}

	vhost, ok := netproto.PeekSynVhost(data)
	if !ok {
		return
	}
	if !d.guard.Allow(addr, now) {
		d.log.Warn().Str("addr", key).Msg("dropping SYN: source rate-limited")
		return
	}
	srv := d.serverFor(vhost)
	if srv == nil {
		d.log.Debug().Str("addr", key).Str("vhost", vhost).Msg("dropping SYN: no server for vhost")
		return
	}
	srv.HandleDatagram(now, key, data)
}

// Tick ticks every registered server (which in turn ticks its peers).
func (d *Driver) Tick(now time.Time) {
	for _, srv := range d.servers {
		srv.Tick(now)
	}
	if d.fallback != nil {
		d.fallback.Tick(now)
	}
}

// Close releases the underlying socket.
func (d *Driver) Close() error {
	return d.socket.Close()
}
