package observability

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// EventSink publishes peer lifecycle events (connect/disconnect/timeout)
// to a NATS subject for external monitoring. It is strictly a fan-out:
// nothing in the protocol engine reads these events back, so it carries
// no discovery or coordination semantics (spec.md's Non-goals around
// discovery are untouched by this).
type EventSink struct {
	conn    *nats.Conn
	subject string
}

// NewEventSink connects to url and scopes published subjects under
// subjectPrefix (e.g. "irmo.events"); the vhost name is appended per
// publish so subscribers can filter by server.
func NewEventSink(url, subjectPrefix string) (*EventSink, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &EventSink{conn: conn, subject: subjectPrefix}, nil
}

// PeerConnected publishes a connect event for vhost/addr.
func (s *EventSink) PeerConnected(vhost, addr string) {
	s.publish(vhost, fmt.Sprintf(`{"event":"connect","addr":%q}`, addr))
}

// PeerDisconnected publishes a disconnect event for vhost/addr.
func (s *EventSink) PeerDisconnected(vhost, addr, reason string) {
	s.publish(vhost, fmt.Sprintf(`{"event":"disconnect","addr":%q,"reason":%q}`, addr, reason))
}

func (s *EventSink) publish(vhost, payload string) {
	subject := s.subject
	if vhost != "" {
		subject = s.subject + "." + vhost
	}
	// Best-effort: a lifecycle notification is not worth failing the
	// protocol tick over, so errors are swallowed here. Callers that
	// care about delivery should watch nats.Conn's own stats/callbacks.
	_ = s.conn.Publish(subject, []byte(payload))
}

// Close closes the NATS connection.
func (s *EventSink) Close() {
	s.conn.Close()
}
