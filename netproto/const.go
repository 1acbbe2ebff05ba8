// Package netproto implements the peer state machine and protocol engine:
// the handshake, the send/receive windows, RTT estimation, congestion
// control, and the translation between wire packets and atom streams. It
// ties together schema, wire, atom and world.
package netproto

import "time"

// PacketThreshold is both the initial congestion window and the maximum
// wire length a single outbound packet's atom payload may occupy.
const PacketThreshold = 128

// InitialSSThresh is the starting slow-start threshold, in bytes.
const InitialSSThresh = 65535

// InitialRTTMean and InitialRTTDev seed the RTT estimator before any
// round-trip has been measured.
const (
	InitialRTTMean = 3000 * time.Millisecond
	InitialRTTDev  = 1000 * time.Millisecond
)

// HandshakeAttempts is the number of SYN (or SYN|FIN) retries in
// Handshaking or Disconnecting state before giving up.
const HandshakeAttempts = 6

// HandshakeInterval is the spacing between handshake retries.
const HandshakeInterval = 1 * time.Second

// MaxSendWindowAtoms caps the number of atoms held in the send window at
// once, independent of the byte-based congestion cap.
const MaxSendWindowAtoms = 1024

// MaxDatagram is the largest packet the transport will build or accept.
const MaxDatagram = 65536

// LingerDuration is how long a peer is retained after a remote-initiated
// disconnect, to re-answer a duplicate SYN|FIN whose ack may have been
// lost.
const LingerDuration = 10 * time.Second

// MaxTimeout is the ceiling on base_timeout*backoff; once exceeded, the
// peer is forced to Disconnected.
const MaxTimeout = 40 * time.Second
