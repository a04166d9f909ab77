package metrics

import (
	"sync/atomic"
	"time"
)

// statusSlots bounds the per-status histogram; codes outside [0,600) are ignored.
const statusSlots = 600

// Network aggregates client-side networking counters.
//
// All counters accumulate monotonically through atomic operations. Readers
// observe eventually consistent snapshots without additional synchronization,
// which is the only concurrency tolerance the transport requires.
type Network struct {
	requests      atomic.Uint64
	retries       atomic.Uint64
	sleepMS       atomic.Int64
	networkMS     atomic.Int64
	bytesReceived atomic.Uint64
	statuses      [statusSlots]atomic.Uint64
}

// RecordAttempt registers one finished physical attempt, successful or not.
// A transport error that produced no HTTP response is recorded as status 0.
func (n *Network) RecordAttempt(status int, elapsed time.Duration, bytes int) {
	n.requests.Add(1)
	n.networkMS.Add(elapsed.Milliseconds())
	if status >= 0 && status < statusSlots {
		n.statuses[status].Add(1)
	}
	n.bytesReceived.Add(uint64(bytes))
}

// RecordRetry registers one retry cycle and the backoff slept before it.
func (n *Network) RecordRetry(sleep time.Duration) {
	n.retries.Add(1)
	n.sleepMS.Add(sleep.Milliseconds())
}

// Requests returns the number of finished attempts.
func (n *Network) Requests() uint64 { return n.requests.Load() }

// Retries returns the number of retry cycles triggered.
func (n *Network) Retries() uint64 { return n.retries.Load() }

// SleepTime returns the total backoff time slept between attempts.
func (n *Network) SleepTime() time.Duration {
	return time.Duration(n.sleepMS.Load()) * time.Millisecond
}

// NetworkTime returns the accumulated wall-clock time spent in transfers.
func (n *Network) NetworkTime() time.Duration {
	return time.Duration(n.networkMS.Load()) * time.Millisecond
}

// BytesReceived returns the sum of response body sizes.
func (n *Network) BytesReceived() uint64 { return n.bytesReceived.Load() }

// StatusCount returns how many responses carried the given HTTP status.
// Codes outside [0,600) report zero.
func (n *Network) StatusCount(code int) uint64 {
	if code < 0 || code >= statusSlots {
		return 0
	}
	return n.statuses[code].Load()
}

// Statuses returns the non-zero slots of the status histogram.
func (n *Network) Statuses() map[int]uint64 {
	out := make(map[int]uint64)
	for code := range n.statuses {
		if v := n.statuses[code].Load(); v > 0 {
			out[code] = v
		}
	}
	return out
}
