// Command irmo-server runs an example Irmo server: it publishes a small
// demo world, accepts replicating clients, and serves Prometheus metrics
// alongside structured logs. It exists to demonstrate the library, not
// as a production service in its own right (spec.md §1's "host
// application's... CLI... test harness" is explicitly out of scope for
// the core).
package main

import (
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/adred-codev/irmo/config"
	"github.com/adred-codev/irmo/netproto"
	"github.com/adred-codev/irmo/observability"
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/transport"
	"github.com/adred-codev/irmo/world"
	"github.com/prometheus/client_golang/prometheus"

	_ "go.uber.org/automaxprocs"
)

// demoSchema builds the schema used by cmd/irmo-server and cmd/irmo-client
// together: one class, Player, with a numeric score and a display name,
// and one method, hit, used to demonstrate method invocation round-trips.
func demoSchema() *schema.Spec {
	b := schema.NewBuilder()
	player := b.AddClass("Player", "")
	b.AddVariable(player, "score", schema.TypeU32)
	b.AddVariable(player, "name", schema.TypeString)
	hit := b.AddMethod("hit")
	b.AddArgument(hit, "damage", schema.TypeU16)
	b.AddArgument(hit, "attacker", schema.TypeString)
	spec, err := b.Build()
	if err != nil {
		panic(err)
	}
	return spec
}

func main() {
	cfg, err := config.Load(nil)
	if err != nil {
		panic(err)
	}

	logger := observability.NewLogger(observability.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.LogFields(logger)
	logger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("starting irmo-server")

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	hostStats, err := observability.NewHostStatsReporter(metrics)
	if err != nil {
		logger.Warn().Err(err).Msg("host stats reporter unavailable")
	} else {
		hostStats.Start(cfg.MetricsInterval)
		defer hostStats.Stop()
	}

	var sink *observability.EventSink
	if cfg.NATSURL != "" {
		sink, err = observability.NewEventSink(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logger.Warn().Err(err).Msg("NATS event sink unavailable")
		} else {
			defer sink.Close()
		}
	}

	spec := demoSchema()
	w := world.New(spec, true)
	p1, err := w.NewObject("Player")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed demo world")
	}
	_ = p1.SetString("name", "alice")

	if _, err := w.OnMethod("hit", func(args []world.Value, source any) {
		logger.Info().
			Uint16("damage", args[0].U16).
			Str("attacker", args[1].String).
			Msg("hit method invoked by client")
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to register hit observer")
	}

	socket, err := transport.NewUDPSocket(cfg.Addr, 1024)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bind socket")
	}
	defer socket.Close()

	driver := transport.NewDriver(socket, logger)
	srv := driver.NewServer(cfg.Vhost, w, nil)
	srv.DefaultLocalSendWindowMax = cfg.LocalSendWindowMax
	if sink != nil {
		srv.OnPeerConnect = func(addr string, _ *netproto.Peer) { sink.PeerConnected(cfg.Vhost, addr) }
		srv.OnPeerDisconnect = func(addr string, _ *netproto.Peer) { sink.PeerDisconnected(cfg.Vhost, addr, "disconnected") }
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler(reg))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	logger.Info().Str("addr", cfg.Addr).Msg("irmo-server listening")

	for {
		select {
		case <-sigCh:
			logger.Info().Msg("shutting down")
			return
		case now := <-ticker.C:
			driver.Poll(now)
			driver.Tick(now)
			metrics.ObserveServer(cfg.Vhost, srv)
		}
	}
}
