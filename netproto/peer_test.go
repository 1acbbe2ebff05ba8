package netproto

import (
	"testing"
	"time"

	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
	"github.com/adred-codev/irmo/world"
)

func buildDemoSpec(t *testing.T) *schema.Spec {
	t.Helper()
	b := schema.NewBuilder()
	player := b.AddClass("Player", "")
	b.AddVariable(player, "score", schema.TypeU32)
	b.AddVariable(player, "name", schema.TypeString)
	hit := b.AddMethod("hit")
	b.AddArgument(hit, "damage", schema.TypeU16)
	b.AddArgument(hit, "attacker", schema.TypeString)
	spec, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return spec
}

// harness wires a client peer and a server directly together in-process,
// queueing datagrams instead of calling HandleDatagram re-entrantly from
// inside a send callback.
type harness struct {
	t      *testing.T
	client *Peer
	server *Server
	toSrv  [][]byte
	toCli  [][]byte
}

func newHarness(t *testing.T, serverWorld *world.World, mirrorSpec *schema.Spec, clientSpec *schema.Spec) *harness {
	t.Helper()
	h := &harness{t: t}
	h.client = NewClientPeer(nil, clientSpec, "demo", func(data []byte) error {
		h.toSrv = append(h.toSrv, append([]byte(nil), data...))
		return nil
	})
	h.server = NewServer("demo", serverWorld, mirrorSpec, func(addr string, data []byte) error {
		h.toCli = append(h.toCli, append([]byte(nil), data...))
		return nil
	})
	return h
}

// pump drives both sides until both reach want, or maxRounds elapses.
func (h *harness) pump(want State, maxRounds int) {
	now := time.Now()
	for i := 0; i < maxRounds; i++ {
		now = now.Add(10 * time.Millisecond)

		srvIn := h.toSrv
		h.toSrv = nil
		for _, data := range srvIn {
			h.server.HandleDatagram(now, "client", data)
		}

		cliIn := h.toCli
		h.toCli = nil
		for _, data := range cliIn {
			h.client.HandleDatagram(now, data)
		}

		h.server.Tick(now)
		h.client.Tick(now)

		p, ok := h.server.Peer("client")
		if h.client.State() == want && ok && p.State() == want {
			return
		}
	}
	h.t.Fatalf("did not reach state %v within %d rounds (client=%v)", want, maxRounds, h.client.State())
}

// drive runs a fixed number of rounds regardless of state, to let queued
// atoms (e.g. a connect-time full-state snapshot) flow across.
func (h *harness) drive(rounds int) {
	now := time.Now()
	for i := 0; i < rounds; i++ {
		now = now.Add(10 * time.Millisecond)

		srvIn := h.toSrv
		h.toSrv = nil
		for _, data := range srvIn {
			h.server.HandleDatagram(now, "client", data)
		}

		cliIn := h.toCli
		h.toCli = nil
		for _, data := range cliIn {
			h.client.HandleDatagram(now, data)
		}

		h.server.Tick(now)
		h.client.Tick(now)
	}
}

func TestHandshakeReachesConnected(t *testing.T) {
	spec := buildDemoSpec(t)
	w := world.New(spec, true)
	h := newHarness(t, w, nil, spec)

	h.client.Connect(time.Now())
	h.pump(StateConnected, 20)

	srvPeer, ok := h.server.Peer("client")
	if !ok {
		t.Fatalf("server never created a peer for client")
	}
	if srvPeer.State() != StateConnected {
		t.Fatalf("server peer state = %v, want Connected", srvPeer.State())
	}
}

func TestReplicationMirrorsObjectState(t *testing.T) {
	spec := buildDemoSpec(t)
	w := world.New(spec, true)
	obj, err := w.NewObject("Player")
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := obj.SetString("name", "alice"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	h := newHarness(t, w, nil, spec)
	h.client.Connect(time.Now())
	h.pump(StateConnected, 20)

	// Let the full-state snapshot enqueued on connect propagate.
	h.drive(20)

	mirror := h.client.MirrorWorld()
	if mirror == nil {
		t.Fatalf("client has no mirror world")
	}
	mirrorObj, ok := mirror.Object(obj.ID())
	if !ok {
		t.Fatalf("mirror world missing replicated object %d", obj.ID())
	}
	name, err := mirrorObj.GetString("name")
	if err != nil || name != "alice" {
		t.Fatalf("mirrored name = %q, %v", name, err)
	}
}

func TestInvokeMethodDeliversToServer(t *testing.T) {
	spec := buildDemoSpec(t)
	w := world.New(spec, true)

	var gotDamage uint16
	var gotAttacker string
	if _, err := w.OnMethod("hit", func(args []world.Value, source any) {
		gotDamage = args[0].U16
		gotAttacker = args[1].String
	}); err != nil {
		t.Fatalf("OnMethod: %v", err)
	}

	h := newHarness(t, w, nil, spec)
	h.client.Connect(time.Now())
	h.pump(StateConnected, 20)
	h.drive(20)

	if err := h.client.InvokeMethod("hit", wire.Value{Type: schema.TypeU16, U16: 7}, wire.Value{Type: schema.TypeString, String: "alice"}); err != nil {
		t.Fatalf("InvokeMethod: %v", err)
	}
	h.drive(20)

	if gotDamage != 7 || gotAttacker != "alice" {
		t.Fatalf("hit observer saw damage=%d attacker=%q, want 7/alice", gotDamage, gotAttacker)
	}
}

func TestInvokeMethodRejectsUnknownName(t *testing.T) {
	spec := buildDemoSpec(t)
	p := NewClientPeer(nil, spec, "demo", func([]byte) error { return nil })
	if err := p.InvokeMethod("missing"); err != ErrUnknownMethod {
		t.Fatalf("err = %v, want ErrUnknownMethod", err)
	}
}

func TestInvokeMethodRejectsWrongArgCount(t *testing.T) {
	spec := buildDemoSpec(t)
	p := NewClientPeer(nil, spec, "demo", func([]byte) error { return nil })
	if err := p.InvokeMethod("hit", wire.Value{Type: schema.TypeU16, U16: 1}); err != ErrArgCount {
		t.Fatalf("err = %v, want ErrArgCount", err)
	}
}

func TestInvokeMethodWithoutSchemaFails(t *testing.T) {
	p := NewClientPeer(nil, nil, "demo", func([]byte) error { return nil })
	if err := p.InvokeMethod("hit"); err != ErrNoSchema {
		t.Fatalf("err = %v, want ErrNoSchema", err)
	}
}

func TestDisconnectReachesDisconnected(t *testing.T) {
	spec := buildDemoSpec(t)
	w := world.New(spec, true)
	h := newHarness(t, w, nil, spec)

	h.client.Connect(time.Now())
	h.pump(StateConnected, 20)

	h.client.Disconnect(time.Now())
	h.pump(StateDisconnected, 20)
}
