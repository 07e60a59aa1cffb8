package trial

import (
	"time"

	"github.com/sirupsen/logrus"

	"mqttlat/internal/mqtt"
)

// Runner drives single trials: configure security, connect, publish once,
// disconnect, and reduce the timestamps to a Result. Failures land in the
// Result, never in a returned error, so a batch survives any single trial.
type Runner struct {
	opts      Options
	newClient mqtt.Factory
	log       *logrus.Entry
}

func NewRunner(opts Options, factory mqtt.Factory, log *logrus.Entry) *Runner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{opts: opts.withDefaults(), newClient: factory, log: log}
}

// Run executes one trial against cfg and returns its finalized result.
// It blocks for at most roughly the connect plus publish timeouts.
func (r *Runner) Run(cfg Config, iteration int) Result {
	st := NewState(iteration, cfg.Name)
	log := r.log.WithFields(logrus.Fields{
		"config":    cfg.Name,
		"iteration": iteration,
	})

	r.execute(cfg, st, log)

	res := st.Finalize()
	if res.Err != "" {
		log.WithField("error", res.Err).Warn("trial failed")
	} else {
		log.WithFields(logrus.Fields{
			"handshake": res.Handshake,
			"puback":    res.PubAck,
		}).Debug("trial complete")
	}
	return res
}

// execute walks the trial state machine. Every return path has already
// settled both gates, and the deferred cleanup below runs before the
// caller finalizes, so late callbacks cannot race the result.
func (r *Runner) execute(cfg Config, st *State, log *logrus.Entry) {
	events := &trialEvents{st: st, grace: r.opts.DisconnectGrace}
	client := r.newClient(events)

	// Idle -> Connecting. A security-material failure means no network
	// attempt at all.
	if cfg.TLS {
		sec := mqtt.TransportSecurity{
			CAFile:   cfg.CAFile,
			CertFile: cfg.CertFile,
			KeyFile:  cfg.KeyFile,
			Cipher:   cfg.Cipher,
		}
		if err := client.ConfigureTransportSecurity(sec); err != nil {
			st.RecordError(ErrSecurityConfig, "%v", err)
			return
		}
	}

	client.ConfigureCredentials(mqtt.Credentials{
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
	})

	st.RecordConnectSent()
	defer func() {
		// Disconnect is always attempted once connect was issued, whatever
		// happened since: transport resources must not leak into the next
		// trial. Its errors are logged, never recorded over a prior error.
		if st.ConnectIssued() {
			if err := client.Disconnect(); err != nil {
				log.WithError(err).Warn("disconnect failed")
			}
		}
		client.StopIOLoop()
	}()

	if err := client.Connect(cfg.Host, cfg.Port, r.opts.Keepalive); err != nil {
		st.RecordError(ErrConnectIssue, "%v", err)
		return
	}
	client.StartIOLoop()

	if !st.WaitConnect(r.opts.ConnectTimeout) {
		st.RecordError(ErrConnectTimeout, "no connack within %s", r.opts.ConnectTimeout)
	}
	if st.HasError() {
		return
	}

	// Connected -> Publishing.
	payload := telemetryPayload(r.opts.PayloadSize)
	st.RecordPublishSent()
	mid, err := client.Publish(r.opts.Topic, payload, r.opts.QoS)
	if err != nil {
		// Terminal for the trial, but the handshake sample stands.
		st.RecordError(ErrPublishIssue, "%v", err)
		return
	}
	st.SetPendingMessage(mid)

	if !st.WaitPublish(r.opts.PublishTimeout) {
		st.RecordError(ErrPublishTimeout, "no matching ack for mid %d within %s", mid, r.opts.PublishTimeout)
	}
}

// trialEvents is the per-trial sink for adapter callbacks. Methods run on
// the adapter's I/O goroutines; all mutation goes through State, which
// owns the synchronization.
type trialEvents struct {
	st    *State
	grace time.Duration
}

func (e *trialEvents) OnConnectAck(code mqtt.ConnackCode) {
	if code.Accepted() {
		e.st.RecordConnectAck()
		return
	}
	e.st.RecordError(ErrConnectRejected, "%s", code)
}

func (e *trialEvents) OnPublishAck(id mqtt.MessageID) {
	e.st.RecordPublishAck(id)
}

func (e *trialEvents) OnDisconnected(cause error) {
	e.st.NoteDisconnect(cause, e.grace)
}
