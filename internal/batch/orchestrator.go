package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"mqttlat/internal/stats"
	"mqttlat/internal/trial"
)

// Snapshot is pushed over the updates channel after every trial; the
// progress views render from it.
type Snapshot struct {
	ConfigName  string
	ConfigIndex int
	ConfigCount int
	Iteration   int
	Iterations  int

	Trials  uint64
	Success uint64
	Fail    uint64

	P50HandshakeMs float64
	P95HandshakeMs float64
	MeanPubAckMs   float64
}

// UpdateChan carries live snapshots to a UI. Sends never block; a slow
// consumer just misses intermediate frames.
type UpdateChan chan Snapshot

// Result maps configuration names to their ordered trial results. Order
// preserves the batch's configuration sequence; each result list is in
// iteration order.
type Result struct {
	Order     []string
	PerConfig map[string][]trial.Result
}

// Orchestrator runs configurations x iterations sequentially. Trials never
// overlap, so one trial's connection teardown cannot skew the next one's
// measurements.
type Orchestrator struct {
	cfg     Config
	runner  *trial.Runner
	log     *logrus.Entry
	updates UpdateChan

	Live *stats.Live
}

func NewOrchestrator(cfg Config, runner *trial.Runner, updates UpdateChan, log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if updates == nil {
		// Avoid nil sends if no UI is attached.
		updates = make(UpdateChan, 10)
	}
	return &Orchestrator{
		cfg:     cfg,
		runner:  runner,
		log:     log,
		updates: updates,
		Live:    stats.NewLive(),
	}
}

// Run executes the batch. Cancellation is cooperative: the context is
// checked before each trial and during the inter-trial delay, and an
// in-flight trial always runs to its own completion or timeout first. On
// cancellation the configuration in progress flushes no results; fully
// completed configurations stay in the returned Result alongside
// ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	res := Result{PerConfig: make(map[string][]trial.Result)}

	for ci, tc := range o.cfg.Configurations {
		log := o.log.WithField("config", tc.Name)
		log.WithField("iterations", o.cfg.Iterations).Info("starting configuration")

		var results []trial.Result
		for i := 1; i <= o.cfg.Iterations; i++ {
			if err := ctx.Err(); err != nil {
				log.WithField("iteration", i).Warn("batch cancelled, discarding partial configuration")
				return res, err
			}

			tr := o.runner.Run(tc, i)
			results = append(results, tr)
			o.Live.AddTrial(tr.Success(), tr.Handshake, tr.PubAck, tr.Total)
			o.publish(tc.Name, ci, i)

			// Pacing keeps each trial's handshake cold; the last trial of
			// a configuration needs no trailing delay.
			if o.cfg.Delay > 0 && i < o.cfg.Iterations {
				if !sleepCtx(ctx, o.cfg.Delay) {
					log.Warn("batch cancelled during inter-trial delay, discarding partial configuration")
					return res, ctx.Err()
				}
			}
		}

		res.Order = append(res.Order, tc.Name)
		res.PerConfig[tc.Name] = results
		log.Info("configuration complete")
	}
	return res, nil
}

func (o *Orchestrator) publish(name string, configIdx, iteration int) {
	s := Snapshot{
		ConfigName:  name,
		ConfigIndex: configIdx + 1,
		ConfigCount: len(o.cfg.Configurations),
		Iteration:   iteration,
		Iterations:  o.cfg.Iterations,

		Trials:  atomic.LoadUint64(&o.Live.Trials),
		Success: atomic.LoadUint64(&o.Live.Success),
		Fail:    atomic.LoadUint64(&o.Live.Fail),

		P50HandshakeMs: o.Live.Handshake.QuantileMs(50),
		P95HandshakeMs: o.Live.Handshake.QuantileMs(95),
		MeanPubAckMs:   o.Live.PubAck.MeanMs(),
	}
	select {
	case o.updates <- s:
	default:
		// Drop the frame; the consumer is behind.
	}
}

// sleepCtx waits d or until ctx is cancelled; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
