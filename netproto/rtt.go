package netproto

import "time"

// rttEstimator tracks a Jacobson/Karels-style smoothed round-trip time and
// mean deviation, in milliseconds. Updated only for atoms acknowledged
// without having been resent (a retransmitted atom's ack can't be
// attributed to either the original or the resend, so it is excluded —
// this is the classic retransmission ambiguity problem).
type rttEstimator struct {
	meanMS float64
	devMS  float64
}

func newRTTEstimator() rttEstimator {
	return rttEstimator{
		meanMS: float64(InitialRTTMean / time.Millisecond),
		devMS:  float64(InitialRTTDev / time.Millisecond),
	}
}

// update folds one fresh RTT sample into the estimator.
func (r *rttEstimator) update(measured time.Duration) {
	m := float64(measured / time.Millisecond)
	err := m - r.meanMS
	r.meanMS += err / 8
	if err < 0 {
		err = -err
	}
	r.devMS += (err - r.devMS) / 4
}

// baseTimeout is RTT_mean + 2*RTT_dev + 1ms, the retransmit timeout before
// backoff is applied.
func (r *rttEstimator) baseTimeout() time.Duration {
	ms := r.meanMS + 2*r.devMS + 1
	return time.Duration(ms * float64(time.Millisecond))
}
