package stats

import (
	"sync/atomic"
	"time"
)

// Live holds real-time aggregated metrics for an in-flight batch.
// Counters are updated by the orchestrator goroutine and read by the
// progress views.
type Live struct {
	Trials  uint64
	Success uint64
	Fail    uint64

	// Latency histograms, streaming approximations for the UI.
	// Exact report numbers come from Summarize over the raw results.
	Handshake *SafeHistogram
	PubAck    *SafeHistogram
	Total     *SafeHistogram
}

func NewLive() *Live {
	return &Live{
		Handshake: NewSafeHistogram(),
		PubAck:    NewSafeHistogram(),
		Total:     NewSafeHistogram(),
	}
}

// AddTrial records one finished trial. Durations are only sampled when
// present; a failed trial with a valid handshake still feeds the
// handshake histogram.
func (l *Live) AddTrial(success bool, handshake, puback, total *time.Duration) {
	atomic.AddUint64(&l.Trials, 1)
	if success {
		atomic.AddUint64(&l.Success, 1)
	} else {
		atomic.AddUint64(&l.Fail, 1)
	}
	if handshake != nil {
		l.Handshake.Record(*handshake)
	}
	if puback != nil {
		l.PubAck.Record(*puback)
	}
	if total != nil {
		l.Total.Record(*total)
	}
}

func (l *Live) ErrorRate() float64 {
	trials := atomic.LoadUint64(&l.Trials)
	if trials == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&l.Fail)
	return (float64(fails) / float64(trials)) * 100
}
