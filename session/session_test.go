package session

import (
	"testing"
	"time"

	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/transport"
	"github.com/adred-codev/irmo/world"
	"github.com/rs/zerolog"
)

func buildSessionTestSpec(t *testing.T) *schema.Spec {
	t.Helper()
	b := schema.NewBuilder()
	b.AddClass("Player", "")
	spec, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return spec
}

func TestDialConnectDisconnect(t *testing.T) {
	spec := buildSessionTestSpec(t)
	w := world.New(spec, true)

	serverSocket, err := transport.NewUDPSocket("127.0.0.1:0", 64)
	if err != nil {
		t.Fatalf("NewUDPSocket: %v", err)
	}
	defer serverSocket.Close()

	driver := transport.NewDriver(serverSocket, zerolog.Nop())
	driver.NewServer("demo", w, nil)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				driver.Poll(now)
				driver.Tick(now)
			}
		}
	}()

	sess, err := Dial(serverSocket.LocalAddr().String(), "demo", nil, spec)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	if err := sess.Connect(2 * time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := sess.Disconnect(2 * time.Second); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
}

func TestConnectTimesOutAgainstUnreachableServer(t *testing.T) {
	// Bind and immediately close a socket to obtain a port nothing is
	// listening on.
	probe, err := transport.NewUDPSocket("127.0.0.1:0", 1)
	if err != nil {
		t.Fatalf("NewUDPSocket: %v", err)
	}
	addr := probe.LocalAddr().String()
	probe.Close()

	sess, err := Dial(addr, "demo", nil, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	if err := sess.Connect(150 * time.Millisecond); err != ErrTimeout {
		t.Fatalf("Connect() err = %v, want ErrTimeout", err)
	}
}
