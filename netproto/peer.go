package netproto

import (
	"errors"
	"time"

	"github.com/adred-codev/irmo/atom"
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
	"github.com/adred-codev/irmo/world"
)

var (
	// ErrNoSchema is returned by InvokeMethod when this peer has neither
	// a mirrored nor a published schema to resolve the method against.
	ErrNoSchema = errors.New("netproto: no schema known to this peer")
	// ErrUnknownMethod is returned by InvokeMethod when the named method
	// is not declared in the resolved schema.
	ErrUnknownMethod = errors.New("netproto: unknown method")
	// ErrArgCount is returned by InvokeMethod when the supplied argument
	// count doesn't match the method's declared arguments.
	ErrArgCount = errors.New("netproto: wrong argument count for method")
)

// State is a position in the connection state machine (spec.md §4.7).
type State int

const (
	StateHandshaking State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Peer is one end of a connection: the state machine, send/receive
// windows, RTT estimator and congestion controller for a single remote
// address. A Peer is not safe for concurrent use; all mutation happens on
// the thread that calls Tick/HandleDatagram (spec.md §5).
type Peer struct {
	isServerSide bool
	send         func([]byte) error

	state           State
	connectAttempts int
	nextAttempt     time.Time

	lingering   bool
	lingerUntil time.Time

	refcount int

	// localWorld is the authoritative world this peer publishes, shared
	// across every peer attached to the same server (nil if this side
	// publishes nothing).
	localWorld *world.World
	// mirrorSpec/mirrorWorld describe the world this peer mirrors from
	// the remote side (nil if this side mirrors nothing). Each peer owns
	// its own mirror world; it is not shared.
	mirrorSpec  *schema.Spec
	mirrorWorld *world.World

	vhost string

	queue   *sendQueue
	sendWin sendWindow
	recvWin recvWindow

	needAck             bool
	localSendWindowMax  int
	remoteSendWindowMax int

	rtt  rttEstimator
	cong congestion

	onConnect    []func(*Peer)
	onDisconnect []func(*Peer)
}

func newPeer(isServerSide bool, localWorld *world.World, mirrorSpec *schema.Spec, vhost string, send func([]byte) error) *Peer {
	return &Peer{
		isServerSide: isServerSide,
		send:         send,
		localWorld:   localWorld,
		mirrorSpec:   mirrorSpec,
		vhost:        vhost,
		queue:        newSendQueue(),
		rtt:          newRTTEstimator(),
		cong:         newCongestion(),
	}
}

// NewClientPeer creates a client-initiated peer. Call Connect to begin
// the handshake. localWorld is the world this side publishes (nil if
// none); mirrorSpec is the schema expected of the world this side will
// mirror from the remote side (nil if this side does not mirror).
func NewClientPeer(localWorld *world.World, mirrorSpec *schema.Spec, vhost string, send func([]byte) error) *Peer {
	p := newPeer(false, localWorld, mirrorSpec, vhost, send)
	p.state = StateDisconnected
	return p
}

// NewServerPeer creates a peer representing one connected client, as seen
// from the server side, already mid-handshake (the initial SYN has just
// been accepted by Server). localWorld is the world this server
// publishes (nil if none); mirrorSpec is the schema expected of the
// world the client publishes back (nil if the server does not mirror
// anything from its clients).
func NewServerPeer(localWorld *world.World, mirrorSpec *schema.Spec, vhost string, send func([]byte) error) *Peer {
	p := newPeer(true, localWorld, mirrorSpec, vhost, send)
	p.state = StateHandshaking
	if mirrorSpec != nil {
		p.mirrorWorld = world.New(mirrorSpec, false)
	}
	p.sendSynAck()
	return p
}

// State returns the peer's current connection state.
func (p *Peer) State() State { return p.state }

// MirrorWorld returns the replicated world mirroring the remote side's
// authoritative world, or nil if this peer does not mirror anything (or
// has not completed the handshake yet).
func (p *Peer) MirrorWorld() *world.World { return p.mirrorWorld }

// Hold increments the peer's external reference count, keeping it alive
// through linger even after a disconnect. Mirrors session.Connect/
// Disconnect holding a handle for the duration of a blocking call.
func (p *Peer) Hold() { p.refcount++ }

// Release decrements the reference count.
func (p *Peer) Release() {
	if p.refcount > 0 {
		p.refcount--
	}
}

// Refcount returns the current external reference count.
func (p *Peer) Refcount() int { return p.refcount }

// OnConnect registers fn to run when the peer reaches Connected.
func (p *Peer) OnConnect(fn func(*Peer)) { p.onConnect = append(p.onConnect, fn) }

// OnDisconnect registers fn to run when the peer reaches Disconnected.
func (p *Peer) OnDisconnect(fn func(*Peer)) { p.onDisconnect = append(p.onDisconnect, fn) }

// SetLocalSendWindowMax sets the operator-configured receive cap
// advertised to the remote side, enqueuing a window-advertisement atom
// if the peer is already connected (spec.md §3.1).
func (p *Peer) SetLocalSendWindowMax(maxBytes int) {
	p.localSendWindowMax = maxBytes
	if p.state == StateConnected {
		p.queue.push(&atom.WindowAdvertAtom{MaxBytes: uint16(maxBytes)})
	}
}

// SendQueueDepth exposes the pending (not yet windowed) atom count for
// the irmo_sendqueue_depth metric.
func (p *Peer) SendQueueDepth() int { return p.queue.Len() }

// Cwnd, Ssthresh and Backoff expose congestion-control state for metrics.
func (p *Peer) Cwnd() int     { return p.cong.cwnd }
func (p *Peer) Ssthresh() int { return p.cong.ssthresh }
func (p *Peer) Backoff() int  { return p.cong.backoff }

func (p *Peer) localHash() uint32 {
	if p.localWorld == nil {
		return 0
	}
	return p.localWorld.Spec().Hash()
}

func (p *Peer) mirrorHash() uint32 {
	if p.mirrorSpec == nil {
		return 0
	}
	return p.mirrorSpec.Hash()
}

// --- world.PeerSink: hooked up via localWorld.AttachPeer(p) on connect ---

func (p *Peer) EnqueueNewObject(classOrdinal int, id uint16) {
	p.queue.enqueueNew(&atom.NewObjectAtom{ID: id, ClassOrdinal: uint8(classOrdinal)})
}

func (p *Peer) EnqueueChange(classOrdinal int, id uint16, varOrdinal int) {
	p.enqueueChange(uint8(classOrdinal), id, varOrdinal)
}

func (p *Peer) EnqueueDestroy(id uint16) {
	p.sendWin.neutralizeObject(id)
	p.queue.enqueueDestroy(id)
}

// InvokeMethod enqueues a method-invocation atom addressed to the remote
// side, by name, with positional argument values (spec.md §4.8). The
// method is resolved against whichever schema this peer knows: the one
// it mirrors from the remote side if set (the usual client-invokes-a
// server-method direction), otherwise the one it publishes locally (a
// server invoking a method declared on its own world). Unlike
// EnqueueChange, a method atom never coalesces with anything already
// queued — each call is its own point-in-time event.
func (p *Peer) InvokeMethod(methodName string, args ...wire.Value) error {
	spec := p.mirrorSpec
	if spec == nil && p.localWorld != nil {
		spec = p.localWorld.Spec()
	}
	if spec == nil {
		return ErrNoSchema
	}
	m, ok := spec.Method(methodName)
	if !ok {
		return ErrUnknownMethod
	}
	if len(args) != len(m.Arguments) {
		return ErrArgCount
	}
	p.queue.push(&atom.MethodAtom{MethodOrdinal: uint8(m.Ordinal), Args: args})
	return nil
}

// enqueueChange implements spec.md §4.3's coalescing rule in full: first
// neutralise any unacknowledged windowed change atom that already carries
// this variable, then fold the new value into the queued change atom for
// this object (allocating one if none is pending).
func (p *Peer) enqueueChange(classOrdinal uint8, id uint16, varOrdinal int) {
	obj, ok := p.localWorld.Object(id)
	if !ok {
		return
	}
	nvars := len(obj.Class().Variables)
	value := atom.ChangeValue{VarOrdinal: varOrdinal, Value: obj.RawValue(varOrdinal)}

	if ca := p.sendWin.findChangeForObject(id, varOrdinal); ca != nil {
		ca.ClearVar(varOrdinal)
		if ca.NumSet() == 0 {
			p.sendWin.neutralizeChangeAtomPtr(ca)
		}
	}
	p.queue.enqueueChangeQueued(classOrdinal, id, varOrdinal, nvars, value)
}

func (p *Peer) enqueueFullStateSnapshot() {
	p.localWorld.ForEachObject("", func(o *world.Object) bool {
		p.queue.enqueueNew(&atom.NewObjectAtom{ID: o.ID(), ClassOrdinal: uint8(o.Class().Ordinal)})
		return true
	})
	p.localWorld.ForEachObject("", func(o *world.Object) bool {
		class := o.Class()
		for _, v := range class.Variables {
			p.enqueueChange(uint8(class.Ordinal), o.ID(), v.Ordinal)
		}
		return true
	})
}

// --- atom.Target: Peer applies inbound atoms by delegating to its mirror
// world, except window-advertisement which belongs to the peer itself ---

func (p *Peer) ApplyNewObject(classOrdinal int, id uint16) error {
	if p.mirrorWorld == nil {
		return nil
	}
	return p.mirrorWorld.ApplyNewObject(classOrdinal, id)
}

func (p *Peer) ApplyDestroy(id uint16) error {
	if p.mirrorWorld == nil {
		return nil
	}
	return p.mirrorWorld.ApplyDestroy(id)
}

func (p *Peer) ApplyChange(c *atom.ChangeAtom) error {
	if p.mirrorWorld == nil {
		return nil
	}
	return p.mirrorWorld.ApplyChange(c)
}

func (p *Peer) ApplyMethod(m *atom.MethodAtom, source any) error {
	if p.mirrorWorld == nil {
		return nil
	}
	return p.mirrorWorld.ApplyMethod(m, source)
}

func (p *Peer) ApplyWindowAdvert(maxBytes uint16) error {
	p.remoteSendWindowMax = int(maxBytes)
	return nil
}

// --- handshake ---

// Connect begins the handshake from the client side, sending the first
// SYN immediately.
func (p *Peer) Connect(now time.Time) {
	p.state = StateHandshaking
	p.connectAttempts = HandshakeAttempts - 1
	p.nextAttempt = now.Add(HandshakeInterval)
	p.sendSyn()
}

// Disconnect begins a local-initiated disconnect, sending the first
// SYN|FIN immediately.
func (p *Peer) Disconnect(now time.Time) {
	if p.state != StateConnected {
		return
	}
	if p.localWorld != nil {
		p.localWorld.DetachPeer(p)
	}
	p.state = StateDisconnecting
	p.connectAttempts = HandshakeAttempts - 1
	p.nextAttempt = now.Add(HandshakeInterval)
	p.sendSynFin()
}

func (p *Peer) sendSyn() {
	buf := wire.NewBuffer()
	buf.WriteU16(uint16(FlagSYN))
	buf.WriteU32(p.localHash())
	buf.WriteU32(p.mirrorHash())
	buf.WriteString(p.vhost)
	p.send(buf.Bytes())
}

func (p *Peer) sendSynAck() {
	buf := wire.NewBuffer()
	buf.WriteU16(uint16(FlagSYN | FlagACK))
	p.send(buf.Bytes())
}

func (p *Peer) sendSynFin() {
	buf := wire.NewBuffer()
	buf.WriteU16(uint16(FlagSYN | FlagFIN))
	p.send(buf.Bytes())
}

func (p *Peer) sendSynFinAck() {
	buf := wire.NewBuffer()
	buf.WriteU16(uint16(FlagSYN | FlagFIN | FlagACK))
	p.send(buf.Bytes())
}

func (p *Peer) enterConnected(now time.Time) {
	p.state = StateConnected
	if p.localSendWindowMax > 0 {
		p.queue.push(&atom.WindowAdvertAtom{MaxBytes: uint16(p.localSendWindowMax)})
	}
	if p.localWorld != nil {
		p.localWorld.AttachPeer(p)
		p.enqueueFullStateSnapshot()
	}
	for _, fn := range p.onConnect {
		fn(p)
	}
}

func (p *Peer) disconnectNow(now time.Time) {
	if p.localWorld != nil {
		p.localWorld.DetachPeer(p)
	}
	p.state = StateDisconnected
	for _, fn := range p.onDisconnect {
		fn(p)
	}
}

func (p *Peer) handleControlFrame(now time.Time, flags Flags, b *wire.Buffer) {
	switch flags {
	case FlagSYN:
		p.handleSyn(now)
	case FlagSYN | FlagACK:
		p.handleSynAck(now)
	case FlagSYN | FlagFIN:
		p.handleSynFin(now)
	case FlagSYN | FlagFIN | FlagACK:
		p.handleSynFinAck(now)
	}
}

// handleSyn re-answers a duplicate initial SYN whose SYN|ACK reply may
// have been lost; the first SYN for a given address is handled by Server
// before a Peer even exists.
func (p *Peer) handleSyn(now time.Time) {
	if p.isServerSide && p.state == StateHandshaking {
		p.sendSynAck()
	}
}

func (p *Peer) handleSynAck(now time.Time) {
	if p.state != StateHandshaking {
		return
	}
	if p.isServerSide {
		p.enterConnected(now)
		return
	}
	if p.mirrorSpec != nil {
		p.mirrorWorld = world.New(p.mirrorSpec, false)
	}
	p.sendSynAck()
	p.enterConnected(now)
}

func (p *Peer) handleSynFin(now time.Time) {
	switch p.state {
	case StateHandshaking:
		p.state = StateDisconnected
		for _, fn := range p.onDisconnect {
			fn(p)
		}
	case StateConnected:
		p.disconnectNow(now)
		p.sendSynFinAck()
		p.lingering = true
		p.lingerUntil = now.Add(LingerDuration)
	case StateDisconnected:
		if p.lingering {
			p.sendSynFinAck()
		}
	}
}

func (p *Peer) handleSynFinAck(now time.Time) {
	if p.state == StateDisconnecting {
		p.state = StateDisconnected
		for _, fn := range p.onDisconnect {
			fn(p)
		}
	}
}

func (p *Peer) tickHandshakeRetry(now time.Time) {
	if now.Before(p.nextAttempt) {
		return
	}
	if p.connectAttempts <= 0 {
		p.state = StateDisconnected
		for _, fn := range p.onDisconnect {
			fn(p)
		}
		return
	}
	p.connectAttempts--
	p.nextAttempt = now.Add(HandshakeInterval)
	if p.state == StateHandshaking {
		p.sendSyn()
	} else {
		p.sendSynFin()
	}
}

// --- tick-driven protocol engine (spec.md §4.4) ---

// Tick drives the peer's state machine and, once Connected, the send
// side of the protocol engine. The transport driver calls this once per
// peer per iteration.
func (p *Peer) Tick(now time.Time) {
	switch p.state {
	case StateHandshaking, StateDisconnecting:
		p.tickHandshakeRetry(now)
	case StateConnected:
		p.tickConnected(now)
	}
}

func (p *Peer) tickConnected(now time.Time) {
	timeout := p.rtt.baseTimeout() * time.Duration(p.cong.backoff)
	if timeout > MaxTimeout {
		p.disconnectNow(now)
		return
	}

	p.pumpQueueToWindow()
	sentData := p.sendStaleSpans(now, timeout)

	if p.needAck && !sentData {
		p.sendAckOnly()
	}
}

func (p *Peer) pumpQueueToWindow() {
	cap := p.cong.effectiveWindow(p.localSendWindowMax, p.remoteSendWindowMax)
	for p.sendWin.totalBytes() < cap && !p.queue.peekEmpty() && p.sendWin.len() < MaxSendWindowAtoms {
		a := p.queue.pop()
		if a == nil {
			break
		}
		p.sendWin.push(a)
	}
}

func (p *Peer) sendStaleSpans(now time.Time, timeout time.Duration) bool {
	sentAny := false
	i := 0
	for i < p.sendWin.len() {
		e := p.sendWin.entries[i]
		if !e.SendTime.IsZero() && now.Sub(e.SendTime) < timeout {
			i++
			continue
		}
		start := i
		total := 0
		j := i
		for j < p.sendWin.len() {
			e := p.sendWin.entries[j]
			if !e.SendTime.IsZero() && now.Sub(e.SendTime) < timeout {
				break
			}
			l := e.Atom.WireLen()
			if total+l > PacketThreshold && j > start {
				break
			}
			total += l
			j++
		}
		p.buildAndSendPacket(now, start, j)
		sentAny = true
		i = j
	}
	return sentAny
}

func (p *Peer) buildAndSendPacket(now time.Time, start, end int) {
	if start == 0 && end > 0 && !p.sendWin.entries[0].SendTime.IsZero() {
		p.cong.onLoss()
	}
	for i := start; i < end; i++ {
		if !p.sendWin.entries[i].SendTime.IsZero() {
			p.sendWin.entries[i].Resent = true
		}
		p.sendWin.entries[i].SendTime = now
	}

	encStart := start
	for encStart > 0 {
		if _, isNull := p.sendWin.entries[encStart-1].Atom.(*atom.NullAtom); isNull {
			encStart--
		} else {
			break
		}
	}

	atoms := make([]atom.Atom, 0, end-encStart)
	for i := encStart; i < end; i++ {
		atoms = append(atoms, p.sendWin.entries[i].Atom)
	}

	buf := wire.NewBuffer()
	buf.WriteU16(uint16(FlagACK | FlagDTA))
	buf.WriteU16(uint16(p.recvWin.base))
	startSeq := p.sendWin.base + uint32(encStart)
	buf.WriteU16(uint16(startSeq))
	encodeAtomGroups(buf, atoms)

	p.needAck = false
	p.send(buf.Bytes())
}

func (p *Peer) sendAckOnly() {
	buf := wire.NewBuffer()
	buf.WriteU16(uint16(FlagACK))
	buf.WriteU16(uint16(p.recvWin.base))
	p.needAck = false
	p.send(buf.Bytes())
}

// --- inbound packet handling (spec.md §4.5) ---

// HandleDatagram processes one received datagram. Malformed input is
// dropped silently, per spec.md §7's protocol-violation policy.
func (p *Peer) HandleDatagram(now time.Time, data []byte) {
	b := wire.NewBufferFromBytes(data)
	flagsRaw, err := b.ReadU16()
	if err != nil {
		return
	}
	flags := Flags(flagsRaw)

	if !flags.Has(FlagDTA) && flags.Has(FlagSYN) {
		p.handleControlFrame(now, flags, b)
		return
	}
	if !flags.Has(FlagACK) {
		return
	}

	ackLow, err := b.ReadU16()
	if err != nil {
		return
	}

	var atoms []atom.Atom
	var startSeq uint32
	if flags.Has(FlagDTA) {
		startLow, err := b.ReadU16()
		if err != nil {
			return
		}
		startSeq = ReconstructSeq(p.recvWin.base, startLow)

		// spec.md §4.5 step 2: verify the whole atom span before decoding
		// any of it for real, then rewind and decode.
		verifyPos := b.Pos()
		if err := verifyAtomGroups(b, p.mirrorSpec); err != nil {
			return
		}
		b.Seek(verifyPos)
		decoded, err := decodeAtomGroups(b, p.mirrorSpec)
		if err != nil {
			return
		}
		atoms = decoded
	}

	p.handleAck(now, ackLow)

	if flags.Has(FlagDTA) {
		p.handleData(now, startSeq, atoms)
	}
}

func (p *Peer) handleAck(now time.Time, ackLow uint16) {
	if p.state != StateConnected {
		return
	}
	seq := ReconstructSeq(p.sendWin.base, ackLow)
	if seq < p.sendWin.base {
		return
	}
	relative := int(seq - p.sendWin.base)
	if relative > p.sendWin.len() {
		return
	}
	if relative == 0 {
		return
	}
	for i := 0; i < relative; i++ {
		e := p.sendWin.entries[i]
		if !e.Resent && !e.SendTime.IsZero() {
			p.rtt.update(now.Sub(e.SendTime))
		}
	}
	p.cong.onAck()
	p.sendWin.advance(relative)
}

func (p *Peer) handleData(now time.Time, startSeq uint32, atoms []atom.Atom) {
	if p.state != StateConnected || len(atoms) == 0 {
		p.needAck = true
		return
	}
	for i, a := range atoms {
		seq := startSeq + uint32(i)
		if int32(seq-p.recvWin.base) < 0 {
			continue
		}
		switch v := a.(type) {
		case *atom.ChangeAtom:
			v.Seq = seq
		case *atom.MethodAtom:
			v.Source = p
		}
		p.recvWin.insert(seq, a)
	}
	p.needAck = true

	startIdx := int(int32(startSeq - p.recvWin.base))
	if startIdx < 0 {
		startIdx = 0
	}
	p.recvWin.preExecuteChanges(startIdx, startIdx+len(atoms), p)
	p.recvWin.applyPrefix(p, func(err error) bool { return err == world.ErrNotReady })
}
