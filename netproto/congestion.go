package netproto

// congestion implements TCP-Reno-style slow start and congestion
// avoidance over the atom stream's byte-denominated send window.
type congestion struct {
	cwnd     int
	ssthresh int
	backoff  int
}

func newCongestion() congestion {
	return congestion{
		cwnd:     PacketThreshold,
		ssthresh: InitialSSThresh,
		backoff:  1,
	}
}

// onLoss is called when the head of the send window must be resent. The
// first loss event of a run (backoff == 1) halves the window via
// ssthresh and resets cwnd to one packet; backoff then always doubles.
func (c *congestion) onLoss() {
	if c.backoff == 1 {
		c.ssthresh = c.cwnd / 2
		c.cwnd = PacketThreshold
	}
	c.backoff *= 2
}

// onAck is called once per acknowledged packet that made forward
// progress. It resets backoff and grows cwnd: by one packet-size in slow
// start, by PacketThreshold²/cwnd in congestion avoidance.
func (c *congestion) onAck() {
	c.backoff = 1
	if c.cwnd <= c.ssthresh {
		c.cwnd += PacketThreshold
	} else {
		c.cwnd += (PacketThreshold * PacketThreshold) / c.cwnd
	}
}

// effectiveWindow returns the send-window byte cap given the operator's
// local and remote-advertised caps (0 means unset), per spec.md §4.4
// step 2.
func (c *congestion) effectiveWindow(localMax, remoteMax int) int {
	switch {
	case localMax > 0 && remoteMax > 0:
		if localMax < remoteMax {
			return localMax
		}
		return remoteMax
	case localMax > 0:
		return localMax
	case remoteMax > 0:
		return remoteMax
	default:
		return c.cwnd
	}
}
