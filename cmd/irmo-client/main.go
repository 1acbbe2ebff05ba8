// Command irmo-client connects to an irmo-server instance, mirrors its
// demo world, and invokes the "hit" method once to demonstrate a
// full connect / replicate / method-invoke / disconnect cycle.
package main

import (
	"time"

	"github.com/adred-codev/irmo/config"
	"github.com/adred-codev/irmo/observability"
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/session"
	"github.com/adred-codev/irmo/wire"
	"github.com/adred-codev/irmo/world"

	_ "go.uber.org/automaxprocs"
)

// demoSchema mirrors cmd/irmo-server's schema exactly: the handshake's
// content-hash gate (spec.md §6) requires both sides to agree bit for
// bit on class/method layout.
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

	spec := demoSchema()

	sess, err := session.Dial(cfg.ServerAddr, cfg.Vhost, nil, spec)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to dial server")
	}
	defer sess.Close()

	logger.Info().Str("server", cfg.ServerAddr).Msg("connecting")
	if err := sess.Connect(cfg.HandshakeTimeout); err != nil {
		logger.Fatal().Err(err).Msg("connect failed")
	}
	logger.Info().Msg("connected")

	mirror := sess.Peer.MirrorWorld()
	if mirror != nil {
		mirror.OnAnyChange(func(o *world.Object, varOrdinal int) {
			logger.Debug().Uint16("id", o.ID()).Int("var", varOrdinal).Msg("mirrored variable changed")
		})
	}

	invoked := false
	deadline := time.Now().Add(2 * time.Second)
	invokeAt := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if addr, data, ok := sess.Socket.Receive(); ok {
			_ = addr
			sess.Peer.HandleDatagram(time.Now(), data)
		}
		if !invoked && time.Now().After(invokeAt) {
			args := []wire.Value{
				{Type: schema.TypeU16, U16: 7},
				{Type: schema.TypeString, String: "alice"},
			}
			if err := sess.Peer.InvokeMethod("hit", args...); err != nil {
				logger.Warn().Err(err).Msg("failed to invoke hit")
			} else {
				logger.Info().Msg("invoked hit(damage=7, attacker=alice)")
			}
			invoked = true
		}
		sess.Peer.Tick(time.Now())
		time.Sleep(10 * time.Millisecond)
	}

	if mirror != nil {
		_ = mirror.ForEachObject("Player", func(o *world.Object) bool {
			score, _ := o.GetInt("score")
			name, _ := o.GetString("name")
			logger.Info().Uint16("id", o.ID()).Uint32("score", score).Str("name", name).Msg("mirrored player")
			return true
		})
	}

	logger.Info().Msg("disconnecting")
	if err := sess.Disconnect(cfg.DisconnectTimeout); err != nil {
		logger.Warn().Err(err).Msg("disconnect did not complete cleanly")
	}
	logger.Info().Msg("disconnected")
}
