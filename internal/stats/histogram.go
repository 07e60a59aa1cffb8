package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	// 1us to 2min, 3 significant figures. Trial waits are capped by the
	// connect/publish timeouts, so 2min of range is plenty.
	h := hdrhistogram.New(1, int64(2*time.Minute/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// Record adds one latency sample. Samples beyond the trackable range are
// clamped rather than dropped, so an extreme outlier still shows up in the
// counts and tail quantiles.
func (h *SafeHistogram) Record(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := int64(d / time.Microsecond)
	if v > h.hist.HighestTrackableValue() {
		v = h.hist.HighestTrackableValue()
	}
	if v < h.hist.LowestTrackableValue() {
		v = h.hist.LowestTrackableValue()
	}
	return h.hist.RecordValue(v)
}

// QuantileMs returns the value at quantile q (0-100) in milliseconds.
func (h *SafeHistogram) QuantileMs(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.ValueAtQuantile(q)) / 1000.0
}

func (h *SafeHistogram) MeanMs() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean() / 1000.0
}

func (h *SafeHistogram) MaxMs() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.Max()) / 1000.0
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}
